package pdf

import (
	"context"
	"fmt"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/ankitagger/ankitagger/pkg/logger"
)

const (
	// DefaultZoom renders pages at 1.5x of 72 DPI, matching what Anki
	// cards need without bloating the media folder.
	DefaultZoom = 1.5

	jpegQuality = 90
)

type Processor struct {
	zoom   float64
	logger *logger.Logger
}

func NewProcessor(zoom float64, log *logger.Logger) *Processor {
	if zoom <= 0 {
		zoom = DefaultZoom
	}
	return &Processor{zoom: zoom, logger: log}
}

// Validate runs a pdfcpu structural check and returns the page count.
// Called before rasterization so a corrupt input fails fast with a clear
// message instead of a mid-render error.
func (p *Processor) Validate(pdfPath string) (int, error) {
	if err := api.ValidateFile(pdfPath, nil); err != nil {
		return 0, fmt.Errorf("invalid PDF %s: %w", filepath.Base(pdfPath), err)
	}
	count, err := api.PageCountFile(pdfPath)
	if err != nil {
		return 0, fmt.Errorf("pdf page count failed: %w", err)
	}
	return count, nil
}

// RenderOptions controls where page images land and how existing files are
// treated.
type RenderOptions struct {
	// DestDir receives the images. When SaveDirect is false it is created
	// if missing (per-document subfolder); when true it must already exist
	// (the Anki media folder).
	DestDir    string
	SaveDirect bool
	// Overwrite replaces existing image files; otherwise they are kept and
	// still mapped.
	Overwrite bool
}

// RenderPages rasterizes every page of the PDF to JPG files named
// <base>_page_NNN.jpg and returns the 1-based page -> filename map used to
// build media cells. Per-page render failures are logged and skipped.
func (p *Processor) RenderPages(ctx context.Context, pdfPath, sanitizedBase string, opts RenderOptions) (map[int]string, error) {
	if opts.SaveDirect {
		if info, err := os.Stat(opts.DestDir); err != nil || !info.IsDir() {
			return nil, fmt.Errorf("image destination is not a directory: %s", opts.DestDir)
		}
	} else if err := os.MkdirAll(opts.DestDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}

	doc, err := fitz.New(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	numPages := doc.NumPage()
	p.logger.Info("PDF has %d pages", numPages)
	padWidth := len(fmt.Sprintf("%d", numPages))
	if padWidth < 3 {
		padWidth = 3
	}

	pageImages := make(map[int]string)

	// Page numbers are zero indexed in the fitz package.
	for i := 0; i < numPages; i++ {
		select {
		case <-ctx.Done():
			return pageImages, ctx.Err()
		default:
		}

		pageNum := i + 1
		filename := fmt.Sprintf("%s_page_%0*d.jpg", sanitizedBase, padWidth, pageNum)
		path := filepath.Join(opts.DestDir, filename)

		if _, err := os.Stat(path); err == nil && !opts.Overwrite {
			p.logger.Debug("Keeping existing image: %s", filename)
			pageImages[pageNum] = filename
			continue
		}

		img, err := doc.ImageDPI(i, 72*p.zoom)
		if err != nil {
			p.logger.Error("Failed to render page %d: %v", pageNum, err)
			continue
		}

		f, err := os.Create(path)
		if err != nil {
			p.logger.Error("Failed to create image file %s: %v", filename, err)
			continue
		}
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: jpegQuality})
		f.Close()
		if err != nil {
			p.logger.Error("Failed to encode image %s: %v", filename, err)
			continue
		}

		pageImages[pageNum] = filename
		if pageNum%10 == 0 || pageNum == numPages {
			p.logger.Debug("Generated image for page %d/%d", pageNum, numPages)
		}
	}

	p.logger.Info("Image generation complete, %d images", len(pageImages))
	return pageImages, nil
}

// ExtractText concatenates the plain text of all pages, with a blank line
// between pages.
func (p *Processor) ExtractText(ctx context.Context, pdfPath string) (string, error) {
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	var sb strings.Builder
	for i := 0; i < doc.NumPage(); i++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		text, err := doc.Text(i)
		if err != nil {
			p.logger.Warn("Couldn't extract text from page %d: %v", i+1, err)
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n\n")
	}

	return strings.TrimSpace(sb.String()), nil
}

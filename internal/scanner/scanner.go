// Package scanner walks a directory tree and collects the input files a
// bulk run will process.
package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ankitagger/ankitagger/pkg/logger"
)

type DirectoryScanner struct {
	logger *logger.Logger
}

func New(log *logger.Logger) *DirectoryScanner {
	return &DirectoryScanner{logger: log}
}

// FindPDFs returns every .pdf under dir (recursively), sorted by path. An
// empty result is an error so a mistyped directory fails loudly.
func (s *DirectoryScanner) FindPDFs(ctx context.Context, dir string) ([]string, error) {
	return s.FindFiles(ctx, dir, ".pdf")
}

// FindFiles returns every file under dir whose extension matches one of
// exts (case-insensitive), sorted by path.
func (s *DirectoryScanner) FindFiles(ctx context.Context, dir string, exts ...string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			return fmt.Errorf("error accessing path %s: %w", path, err)
		}

		if info.IsDir() {
			s.logger.Debug("Scanning directory: %s", path)
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		for _, want := range exts {
			if ext == want {
				files = append(files, path)
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(files) == 0 {
		names := make([]string, len(exts))
		for i, e := range exts {
			names[i] = strings.ToUpper(strings.TrimPrefix(e, "."))
		}
		return nil, fmt.Errorf("no %s files found in %s or its subdirectories", strings.Join(names, "/"), dir)
	}

	sort.Strings(files)
	s.logger.Info("Found %d input file(s) in %s", len(files), dir)
	return files, nil
}

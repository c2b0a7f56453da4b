package pdf

import "github.com/gen2brain/go-fitz"

// minimalPDF is a one-page empty document, enough to exercise the MuPDF
// load path.
var minimalPDF = []byte("%PDF-1.4\n" +
	"1 0 obj<</Type/Catalog/Pages 2 0 R>>endobj\n" +
	"2 0 obj<</Type/Pages/Kids[3 0 R]/Count 1>>endobj\n" +
	"3 0 obj<</Type/Page/Parent 2 0 R/MediaBox[0 0 612 792]>>endobj\n" +
	"trailer<</Root 1 0 R>>\n" +
	"%%EOF")

// Available reports whether the MuPDF rendering backend can actually be
// used on this machine. go-fitz loads the shared library at runtime, so a
// missing or broken libmupdf surfaces here as false instead of crashing a
// later render. Never panics.
func Available() (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()

	doc, err := fitz.NewFromMemory(minimalPDF)
	if err != nil {
		return false
	}
	defer doc.Close()
	return doc.NumPage() > 0
}

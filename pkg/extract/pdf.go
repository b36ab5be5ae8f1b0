// Package extract turns uploaded files into pages of plain text plus
// document metadata, ready for chunking.
package extract

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/xhad/askpdf/internal/models"
)

// ExtractPDFFile reads a PDF from disk. See ExtractPDF.
func ExtractPDFFile(path string) ([]models.Page, *models.DocumentMeta, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, nil, err
	}

	pages, meta, err := ExtractPDF(f, stat.Size())
	if err != nil {
		return nil, nil, err
	}
	meta.Filename = stat.Name()
	return pages, meta, nil
}

// ExtractPDFBytes extracts from an in-memory PDF, typically an upload.
func ExtractPDFBytes(data []byte, filename string) ([]models.Page, *models.DocumentMeta, error) {
	pages, meta, err := ExtractPDF(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, nil, err
	}
	meta.Filename = filename
	return pages, meta, nil
}

// ExtractPDF extracts one text page per PDF page, preserving the
// original page numbers. Pages without extractable text are dropped; if
// every page is empty (a scanned document, say) it returns an error.
func ExtractPDF(r io.ReaderAt, size int64) (pages []models.Page, meta *models.DocumentMeta, err error) {
	// The pdf library panics on some malformed files; surface those as
	// errors instead of crashing the caller.
	defer func() {
		if rec := recover(); rec != nil {
			pages, meta = nil, nil
			err = models.NewError(models.KindConfiguration, "malformed PDF: %v", rec)
		}
	}()

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return nil, nil, models.WrapError(models.KindConfiguration, err, "failed to parse PDF")
	}

	numPages := reader.NumPage()
	meta = &models.DocumentMeta{NumPages: numPages}

	if info := reader.Trailer().Key("Info"); info.Kind() == pdf.Dict {
		meta.Title = cleanText(info.Key("Title").RawString())
		meta.Author = cleanText(info.Key("Author").RawString())
	}

	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, nil, models.WrapError(models.KindConfiguration, err, "failed to extract text from page %d", i)
		}

		text = cleanText(text)
		if text == "" {
			continue
		}
		pages = append(pages, models.Page{PageNumber: i, Text: text})
	}

	if len(pages) == 0 {
		return nil, nil, models.NewError(models.KindConfiguration,
			"no extractable text in PDF (%d pages); scanned documents are not supported", numPages)
	}

	return pages, meta, nil
}

// cleanText strips control bytes and decoding artifacts that PDF text
// streams sometimes carry, then collapses runs of whitespace.
func cleanText(text string) string {
	text = strings.ReplaceAll(text, "\x00", "")
	text = strings.ReplaceAll(text, "�", "")
	return strings.TrimSpace(text)
}

// ValidateUpload rejects files the ingestion endpoint cannot handle
// before any bytes are parsed.
func ValidateUpload(filename string, size, maxSize int64) error {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf", ".html", ".htm":
	default:
		return models.NewError(models.KindConfiguration,
			"only PDF and HTML files are supported, got %q", filename)
	}
	if size > maxSize {
		return models.NewError(models.KindConfiguration,
			"file too large: %d bytes (limit %d)", size, maxSize)
	}
	return nil
}

// IsHTML reports whether the filename should go through the HTML
// extractor rather than the PDF one.
func IsHTML(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext == ".html" || ext == ".htm"
}

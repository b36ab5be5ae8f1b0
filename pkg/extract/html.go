package extract

import (
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/xhad/askpdf/internal/models"
)

// contentSelectors are tried in order to find the main content area of
// a page before falling back to the whole body.
var contentSelectors = []string{
	"main",
	"article",
	".content",
	"#content",
}

// ExtractHTML extracts the readable text of an HTML document as a
// single page. Paragraph boundaries are kept as blank lines so the
// chunker can split on them.
func ExtractHTML(r io.Reader, filename string) ([]models.Page, *models.DocumentMeta, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, nil, models.WrapError(models.KindConfiguration, err, "failed to parse HTML")
	}

	doc.Find("script, style, nav, header, footer, noscript").Remove()

	root := doc.Find("body")
	for _, selector := range contentSelectors {
		if selected := doc.Find(selector); selected.Length() > 0 {
			root = selected
			break
		}
	}

	var blocks []string
	root.Find("p, h1, h2, h3, h4, h5, h6, li, pre, blockquote").Each(func(_ int, selection *goquery.Selection) {
		text := strings.Join(strings.Fields(selection.Text()), " ")
		if text != "" {
			blocks = append(blocks, text)
		}
	})

	// Documents without block markup still get their raw text.
	if len(blocks) == 0 {
		if text := strings.Join(strings.Fields(root.Text()), " "); text != "" {
			blocks = append(blocks, text)
		}
	}

	if len(blocks) == 0 {
		return nil, nil, models.NewError(models.KindConfiguration, "no extractable text in HTML document")
	}

	meta := &models.DocumentMeta{
		Filename: filename,
		Title:    strings.TrimSpace(doc.Find("title").Text()),
		NumPages: 1,
	}

	pages := []models.Page{{PageNumber: 1, Text: strings.Join(blocks, "\n\n")}}
	return pages, meta, nil
}

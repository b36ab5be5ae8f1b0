package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/askpdf/internal/models"
)

func TestExtractHTML(t *testing.T) {
	html := `<!DOCTYPE html>
<html>
<head>
  <title>Release Notes</title>
  <style>body { color: red; }</style>
  <script>console.log("tracking");</script>
</head>
<body>
  <nav><a href="/">Home</a></nav>
  <main>
    <h1>Version 2.0</h1>
    <p>This release adds   streaming
       support.</p>
    <ul><li>Faster ingestion</li></ul>
  </main>
  <footer>Copyright</footer>
</body>
</html>`

	pages, meta, err := ExtractHTML(strings.NewReader(html), "notes.html")
	require.NoError(t, err)

	assert.Equal(t, "Release Notes", meta.Title)
	assert.Equal(t, "notes.html", meta.Filename)
	assert.Equal(t, 1, meta.NumPages)

	require.Len(t, pages, 1)
	assert.Equal(t, 1, pages[0].PageNumber)
	assert.Equal(t, "Version 2.0\n\nThis release adds streaming support.\n\nFaster ingestion", pages[0].Text)

	// Script, style, nav and footer text never leaks into the page.
	assert.NotContains(t, pages[0].Text, "tracking")
	assert.NotContains(t, pages[0].Text, "color: red")
	assert.NotContains(t, pages[0].Text, "Home")
	assert.NotContains(t, pages[0].Text, "Copyright")
}

func TestExtractHTML_NoBlockMarkup(t *testing.T) {
	pages, _, err := ExtractHTML(strings.NewReader("<html><body>just  raw text</body></html>"), "raw.html")
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "just raw text", pages[0].Text)
}

func TestExtractHTML_Empty(t *testing.T) {
	_, _, err := ExtractHTML(strings.NewReader("<html><body></body></html>"), "empty.html")
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindConfiguration))
}

func TestExtractPDFBytes_Malformed(t *testing.T) {
	_, _, err := ExtractPDFBytes([]byte("this is not a pdf"), "fake.pdf")
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindConfiguration))
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "hello world", cleanText("  hello\x00 world�  "))
}

func TestValidateUpload(t *testing.T) {
	assert.NoError(t, ValidateUpload("report.pdf", 10, 100))
	assert.NoError(t, ValidateUpload("REPORT.PDF", 10, 100))

	// HTML goes through the HTML extractor, so it must pass validation
	// too.
	assert.NoError(t, ValidateUpload("notes.html", 10, 100))
	assert.NoError(t, ValidateUpload("notes.htm", 10, 100))

	err := ValidateUpload("report.docx", 10, 100)
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindConfiguration))

	err = ValidateUpload("report.pdf", 200, 100)
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindConfiguration))
}

func TestIsHTML(t *testing.T) {
	assert.True(t, IsHTML("page.html"))
	assert.True(t, IsHTML("page.HTM"))
	assert.False(t, IsHTML("page.pdf"))
	assert.False(t, IsHTML("html"))
}

package export

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	content := "# 흑기사 보도자료\n\n본문 <내용>."

	doc, err := Render(content, "modified_article_v1.txt", FormatText)
	require.NoError(t, err)
	assert.Equal(t, "modified_article_v1.txt", doc.Filename)
	assert.Equal(t, content, string(doc.Body))

	doc, err = Render(content, "modified_article_v1.txt", FormatMarkdown)
	require.NoError(t, err)
	assert.Equal(t, "modified_article_v1.md", doc.Filename)

	doc, err = Render(content, "modified_article_v1.txt", FormatHTML)
	require.NoError(t, err)
	assert.Equal(t, "modified_article_v1.html", doc.Filename)
	assert.Equal(t, "text/html; charset=utf-8", doc.ContentType)
	body := string(doc.Body)
	assert.Contains(t, body, "<title>흑기사 보도자료</title>")
	assert.Contains(t, body, `<p style="font-size:24px;font-weight:700;margin:1em 0 0.6em;">흑기사 보도자료</p>`)
	assert.NotContains(t, body, "<h1>")
	assert.Contains(t, body, "&lt;내용&gt;")

	_, err = Render(content, "", FormatText)
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatText, f)

	f, err = ParseFormat("HTML")
	require.NoError(t, err)
	assert.Equal(t, FormatHTML, f)

	_, err = ParseFormat("pdf")
	assert.Error(t, err)
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteFile(filepath.Join(dir, "out"), Document{Filename: "../original_article.txt", Body: []byte("본문")})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "out", "original_article.txt"), path)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "본문", string(b))
}

package export

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
)

// Format is the file type an article is exported as.
type Format string

const (
	FormatText     Format = "txt"
	FormatMarkdown Format = "md"
	FormatHTML     Format = "html"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatText:
		return FormatText, nil
	case FormatMarkdown, FormatHTML:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// Document is a rendered export ready to be written or downloaded.
type Document struct {
	Filename    string
	ContentType string
	Body        []byte
}

// Render converts content to format. filename keeps its base name and gets
// the extension of the format.
func Render(content, filename string, format Format) (Document, error) {
	if filename == "" {
		return Document{}, errors.New("export filename is required")
	}
	base := strings.TrimSuffix(filename, filepath.Ext(filename))

	switch format {
	case FormatText, "":
		return Document{Filename: base + ".txt", ContentType: "text/plain; charset=utf-8", Body: []byte(content)}, nil
	case FormatMarkdown:
		return Document{Filename: base + ".md", ContentType: "text/markdown; charset=utf-8", Body: []byte(content)}, nil
	case FormatHTML:
		body, err := MarkdownToHTML(content)
		if err != nil {
			return Document{}, err
		}
		page := wrapPage(titleOf(content), body)
		return Document{Filename: base + ".html", ContentType: "text/html; charset=utf-8", Body: []byte(page)}, nil
	default:
		return Document{}, fmt.Errorf("unsupported export format %q", format)
	}
}

// WriteFile saves doc under dir and returns the written path.
func WriteFile(dir string, doc Document) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, filepath.Base(doc.Filename))
	if err := os.WriteFile(path, doc.Body, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// MarkdownToHTML renders article markdown. Headings get inline font sizes so
// the markup keeps its look when pasted into press portals that strip
// stylesheets.
func MarkdownToHTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return "", err
	}
	return convertHeadings(buf.String()), nil
}

var headingRe = regexp.MustCompile(`(?s)<h([1-6])[^>]*>(.*?)</h[1-6]>`)

var headingSizes = map[string]string{
	"1": "24px",
	"2": "22px",
	"3": "20px",
	"4": "18px",
	"5": "16px",
	"6": "15px",
}

func convertHeadings(s string) string {
	return headingRe.ReplaceAllStringFunc(s, func(block string) string {
		parts := headingRe.FindStringSubmatch(block)
		if len(parts) != 3 {
			return block
		}
		size := headingSizes[parts[1]]
		if size == "" {
			size = "18px"
		}
		text := strings.TrimSpace(parts[2])
		return fmt.Sprintf(`<p style="font-size:%s;font-weight:700;margin:1em 0 0.6em;">%s</p>`, size, text)
	})
}

func titleOf(md string) string {
	for _, line := range strings.Split(md, "\n") {
		line = strings.Trim(strings.TrimSpace(line), "#*_ ")
		if line != "" {
			return line
		}
	}
	return "article"
}

func wrapPage(title, body string) string {
	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>")
	sb.WriteString(html.EscapeString(title))
	sb.WriteString("</title>\n</head>\n<body>\n")
	sb.WriteString(body)
	sb.WriteString("</body>\n</html>\n")
	return sb.String()
}

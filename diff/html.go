package diff

import (
	"html"
	"strings"
)

const (
	removedStyle = "color: red; text-decoration: line-through"
	addedStyle   = "color: green; font-weight: bold"
)

// HTML renders the diff as highlight markup: removed text struck through in
// red, added text in bold green. All text is escaped.
func (d Diff) HTML() string {
	var sb strings.Builder
	for _, s := range d {
		text := html.EscapeString(s.Text)
		switch s.Kind {
		case Unchanged:
			sb.WriteString(text)
		case Removed:
			writeSpan(&sb, removedStyle, text)
		case Added:
			writeSpan(&sb, addedStyle, text)
		case Truncated:
			sb.WriteString(`<span class="diff-truncated">`)
			sb.WriteString(text)
			sb.WriteString(`</span>`)
		}
	}
	return sb.String()
}

func writeSpan(sb *strings.Builder, style, text string) {
	sb.WriteString(`<span style="`)
	sb.WriteString(style)
	sb.WriteString(`">`)
	sb.WriteString(text)
	sb.WriteString(`</span>`)
}

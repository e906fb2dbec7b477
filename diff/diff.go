package diff

import (
	"fmt"
	"strings"
	"unicode"
)

// Kind classifies a span of text relative to the two inputs.
type Kind int

const (
	Unchanged Kind = iota
	Added
	Removed
	// Truncated marks where the walk stopped because an input exceeded the cap.
	Truncated
)

func (k Kind) String() string {
	switch k {
	case Unchanged:
		return "unchanged"
	case Added:
		return "added"
	case Removed:
		return "removed"
	case Truncated:
		return "truncated"
	default:
		return "unknown"
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "unchanged":
		*k = Unchanged
	case "added":
		*k = Added
	case "removed":
		*k = Removed
	case "truncated":
		*k = Truncated
	default:
		return fmt.Errorf("unknown segment kind %q", b)
	}
	return nil
}

// Segment is one classified span.
type Segment struct {
	Kind Kind   `json:"kind"`
	Text string `json:"text"`
}

// Diff is the ordered list of segments, in the new text's left-to-right order.
type Diff []Segment

// Stats counts words per segment kind.
type Stats struct {
	Unchanged int  `json:"unchanged"`
	Added     int  `json:"added"`
	Removed   int  `json:"removed"`
	Truncated bool `json:"truncated"`
}

// Compute compares oldText and newText. It never fails; identical inputs
// yield only Unchanged segments.
func Compute(oldText, newText string, opts ...Option) Diff {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	b := &builder{}
	if o.granularity == Lines {
		diffLines(b, oldText, newText, o)
	} else {
		diffWords(b, oldText, newText, o)
	}
	return b.out
}

// OldText concatenates the Unchanged and Removed segments.
func (d Diff) OldText() string {
	return d.join(Unchanged, Removed)
}

// NewText concatenates the Unchanged and Added segments.
func (d Diff) NewText() string {
	return d.join(Unchanged, Added)
}

// Truncated reports whether the diff stopped at the cap.
func (d Diff) Truncated() bool {
	for _, s := range d {
		if s.Kind == Truncated {
			return true
		}
	}
	return false
}

// Changed reports whether any segment is Added or Removed.
func (d Diff) Changed() bool {
	for _, s := range d {
		if s.Kind == Added || s.Kind == Removed {
			return true
		}
	}
	return false
}

func (d Diff) Stats() Stats {
	var st Stats
	for _, s := range d {
		n := len(strings.Fields(s.Text))
		switch s.Kind {
		case Unchanged:
			st.Unchanged += n
		case Added:
			st.Added += n
		case Removed:
			st.Removed += n
		case Truncated:
			st.Truncated = true
		}
	}
	return st
}

func (d Diff) join(kinds ...Kind) string {
	var sb strings.Builder
	for _, s := range d {
		for _, k := range kinds {
			if s.Kind == k {
				sb.WriteString(s.Text)
				break
			}
		}
	}
	return sb.String()
}

// builder appends segments, merging runs of the same kind.
type builder struct {
	out Diff
}

func (b *builder) emit(k Kind, text string) {
	if text == "" {
		return
	}
	if n := len(b.out); n > 0 && b.out[n-1].Kind == k && k != Truncated {
		b.out[n-1].Text += text
		return
	}
	b.out = append(b.out, Segment{Kind: k, Text: text})
}

// token is a word and the whitespace that follows it.
type token struct {
	word  string
	space string
}

func (t token) text() string { return t.word + t.space }

// tokenize splits s into words, returning any leading whitespace separately.
func tokenize(s string) (string, []token) {
	start := strings.IndexFunc(s, func(r rune) bool { return !unicode.IsSpace(r) })
	if start < 0 {
		return s, nil
	}
	lead := s[:start]
	s = s[start:]

	var toks []token
	for len(s) > 0 {
		end := strings.IndexFunc(s, unicode.IsSpace)
		if end < 0 {
			toks = append(toks, token{word: s})
			break
		}
		word := s[:end]
		rest := s[end:]
		next := strings.IndexFunc(rest, func(r rune) bool { return !unicode.IsSpace(r) })
		if next < 0 {
			toks = append(toks, token{word: word, space: rest})
			break
		}
		toks = append(toks, token{word: word, space: rest[:next]})
		s = rest[next:]
	}
	return lead, toks
}

func diffWords(b *builder, oldText, newText string, o options) {
	oldLead, oldToks := tokenize(oldText)
	newLead, newToks := tokenize(newText)

	truncated := false
	if o.maxTokens > 0 {
		if len(oldToks) > o.maxTokens {
			oldToks = oldToks[:o.maxTokens]
			truncated = true
		}
		if len(newToks) > o.maxTokens {
			newToks = newToks[:o.maxTokens]
			truncated = true
		}
	}

	emitSpace(b, oldLead, newLead)

	i, j := 0, 0
	for i < len(oldToks) && j < len(newToks) {
		if oldToks[i].word == newToks[j].word {
			b.emit(Unchanged, oldToks[i].word)
			emitSpace(b, oldToks[i].space, newToks[j].space)
			i++
			j++
			continue
		}

		if k := lookahead(oldToks, i, newToks[j].word, o.window); k > 0 {
			for l := 0; l < k; l++ {
				b.emit(Removed, oldToks[i+l].text())
			}
			i += k
			continue
		}

		if k := lookahead(newToks, j, oldToks[i].word, o.window); k > 0 {
			for l := 0; l < k; l++ {
				b.emit(Added, newToks[j+l].text())
			}
			j += k
			continue
		}

		if o.substitution == SubstituteReplace {
			b.emit(Removed, oldToks[i].text())
		}
		b.emit(Added, newToks[j].text())
		i++
		j++
	}

	for ; j < len(newToks); j++ {
		b.emit(Added, newToks[j].text())
	}
	for ; i < len(oldToks); i++ {
		b.emit(Removed, oldToks[i].text())
	}

	if truncated {
		b.emit(Truncated, o.truncationNotice())
	}
}

// lookahead returns the offset k in [1, window] at which toks[from+k] holds
// word, or 0 when there is none.
func lookahead(toks []token, from int, word string, window int) int {
	for k := 1; k <= window && from+k < len(toks); k++ {
		if toks[from+k].word == word {
			return k
		}
	}
	return 0
}

func emitSpace(b *builder, oldSpace, newSpace string) {
	if oldSpace == newSpace {
		b.emit(Unchanged, oldSpace)
		return
	}
	b.emit(Removed, oldSpace)
	b.emit(Added, newSpace)
}

// splitLines keeps the trailing newline on each line.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func diffLines(b *builder, oldText, newText string, o options) {
	oldLines := splitLines(oldText)
	newLines := splitLines(newText)

	truncated := false
	if o.maxTokens > 0 {
		if len(oldLines) > o.maxTokens {
			oldLines = oldLines[:o.maxTokens]
			truncated = true
		}
		if len(newLines) > o.maxTokens {
			newLines = newLines[:o.maxTokens]
			truncated = true
		}
	}

	n := max(len(oldLines), len(newLines))
	for idx := 0; idx < n; idx++ {
		var oldLine, newLine string
		if idx < len(oldLines) {
			oldLine = oldLines[idx]
		}
		if idx < len(newLines) {
			newLine = newLines[idx]
		}
		if oldLine == newLine {
			b.emit(Unchanged, oldLine)
			continue
		}
		b.emit(Removed, oldLine)
		b.emit(Added, newLine)
	}

	if truncated {
		b.emit(Truncated, o.truncationNotice())
	}
}

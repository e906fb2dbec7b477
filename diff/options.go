package diff

import "fmt"

// Granularity selects the atomic unit that segments are built from.
type Granularity int

const (
	// Words splits on whitespace runs and aligns with a bounded lookahead.
	Words Granularity = iota
	// Lines compares line i against line i with no alignment search.
	Lines
)

// Substitution decides what happens to the old word when a pair of words
// differs and no lookahead match is found.
type Substitution int

const (
	// SubstituteReplace emits Removed(old) followed by Added(new).
	SubstituteReplace Substitution = iota
	// SubstituteDropOld emits only Added(new); the old word is not reported.
	SubstituteDropOld
)

const (
	DefaultWindow    = 3
	DefaultMaxTokens = 300
)

type options struct {
	granularity  Granularity
	substitution Substitution
	window       int
	maxTokens    int
}

func defaultOptions() options {
	return options{
		granularity:  Words,
		substitution: SubstituteReplace,
		window:       DefaultWindow,
		maxTokens:    DefaultMaxTokens,
	}
}

// truncationNotice names the cap in the unit it counts.
func (o options) truncationNotice() string {
	unit := "words"
	if o.granularity == Lines {
		unit = "lines"
	}
	return fmt.Sprintf("... (changes are highlighted for the first %d %s only)", o.maxTokens, unit)
}

// Option configures Compute.
type Option func(*options)

func WithGranularity(g Granularity) Option {
	return func(o *options) { o.granularity = g }
}

func WithSubstitution(s Substitution) Option {
	return func(o *options) { o.substitution = s }
}

// WithWindow sets how many tokens ahead the word walk searches for a match.
func WithWindow(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.window = n
		}
	}
}

// WithMaxTokens caps how many tokens of each input are compared. Zero or a
// negative value disables the cap.
func WithMaxTokens(n int) Option {
	return func(o *options) {
		if n < 0 {
			n = 0
		}
		o.maxTokens = n
	}
}

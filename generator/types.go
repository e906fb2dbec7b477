package generator

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"blacknight/diff"
)

var validate = validator.New()

// Requirements is the structured form describing the article to draft.
type Requirements struct {
	Organization string `json:"organization" validate:"max=200"`
	Project      string `json:"project" validate:"max=200"`
	Company      string `json:"company" validate:"max=200"`
	Keywords     string `json:"keywords" validate:"max=500"`
	Additional   string `json:"additional" validate:"max=4000"`
}

func (r Requirements) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequirements, err)
	}
	return nil
}

// Kind tells whether a version came from the initial generation or an edit.
type Kind int

const (
	Original Kind = iota
	Modified
)

func (k Kind) String() string {
	if k == Modified {
		return "modified"
	}
	return "original"
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "original":
		*k = Original
	case "modified":
		*k = Modified
	default:
		return fmt.Errorf("unknown version kind %q", b)
	}
	return nil
}

// Version is one snapshot of the article. Diff is set only on Modified
// versions and is relative to the version the edit was made from
// (SourceIndex), fixed at creation time.
type Version struct {
	Index       int        `json:"index"`
	Kind        Kind       `json:"kind"`
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	Request     string     `json:"request,omitempty"`
	SourceIndex int        `json:"source_index"`
	Diff        *diff.Diff `json:"diff,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// State of the version history.
type State int

const (
	Empty State = iota
	HasOriginal
	HasModifications
)

func (s State) String() string {
	switch s {
	case HasOriginal:
		return "has_original"
	case HasModifications:
		return "has_modifications"
	default:
		return "empty"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "has_original":
		*s = HasOriginal
	case "has_modifications":
		*s = HasModifications
	case "empty":
		*s = Empty
	default:
		return fmt.Errorf("unknown history state %q", b)
	}
	return nil
}

// ExportFile is what gets handed to the file-export collaborator.
type ExportFile struct {
	Content  string `json:"content"`
	Filename string `json:"filename"`
}

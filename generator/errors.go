package generator

import "errors"

var (
	ErrMissingReference     = errors.New("reference content is required")
	ErrNoArticle            = errors.New("no article has been generated yet")
	ErrGenerationFailed     = errors.New("article generation failed")
	ErrModificationFailed   = errors.New("article modification failed")
	ErrTimeout              = errors.New("generation backend timed out")
	ErrOperationInProgress  = errors.New("another generation is in progress")
	ErrIndexOutOfRange      = errors.New("version index out of range")
	ErrInvalidRequirements  = errors.New("invalid requirements")
	ErrEmptyRequest         = errors.New("modification request is empty")
	ErrEmptyBackendResponse = errors.New("model returned an empty article")
)

// IsValidation reports whether err was raised before any backend call.
func IsValidation(err error) bool {
	return errors.Is(err, ErrMissingReference) ||
		errors.Is(err, ErrNoArticle) ||
		errors.Is(err, ErrIndexOutOfRange) ||
		errors.Is(err, ErrInvalidRequirements) ||
		errors.Is(err, ErrEmptyRequest)
}

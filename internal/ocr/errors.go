package ocr

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedFormat is returned for files no extraction path understands.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// TextExtractionError is terminal: every extraction path for the document failed.
type TextExtractionError struct {
	Path   string
	Causes []error
}

func (e *TextExtractionError) Error() string {
	msgs := make([]string, 0, len(e.Causes))
	for _, c := range e.Causes {
		msgs = append(msgs, c.Error())
	}
	return fmt.Sprintf("text extraction failed for %s: %s", e.Path, strings.Join(msgs, "; "))
}

func (e *TextExtractionError) Unwrap() []error { return e.Causes }

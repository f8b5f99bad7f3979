package ocr

import (
	"context"
	"errors"
	"strings"
)

// Recognition failure modes. Both are fatal for the current scan: without
// readable text there is nothing to extract from.
var (
	ErrInvalidImage = errors.New("image is not readable")
	ErrNoText       = errors.New("no text recognized in image")
)

// Line is one recognized text line with its recognition confidence in [0,1].
type Line struct {
	Text       string
	Confidence float64
}

// Result is the output of a recognition pass over one receipt image.
type Result struct {
	Lines             []Line
	AverageConfidence float64
}

// Text joins the recognized lines in reading order.
func (r Result) Text() string {
	parts := make([]string, len(r.Lines))
	for i, ln := range r.Lines {
		parts[i] = ln.Text
	}
	return strings.Join(parts, "\n")
}

// LineTexts returns just the line strings, for the pattern extractor.
func (r Result) LineTexts() []string {
	out := make([]string, len(r.Lines))
	for i, ln := range r.Lines {
		out[i] = ln.Text
	}
	return out
}

// TextSource recognizes text in a receipt image. Implementations return
// ErrInvalidImage when the bytes cannot be decoded and ErrNoText when
// recognition produced no usable lines.
type TextSource interface {
	Recognize(ctx context.Context, image []byte) (Result, error)
}

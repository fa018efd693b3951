// Package represent renders the loaded dataset into the three textual
// representations under comparison. All builders are pure functions of the
// model: two invocations on the same model produce byte-identical text.
package represent

import (
	"errors"
	"fmt"

	"github.com/mosaictheory-jt/unstructured-analytics/internal/dataset"
)

// Format is the closed set of representation kinds. Adding a format means
// extending this enum and the Build switch, a compile-time-visible change.
type Format string

const (
	FormatRawCSV           Format = "raw_csv"
	FormatCSVWithMetadata  Format = "csv_with_metadata"
	FormatEnglishNarrative Format = "english_narrative"
)

// Formats lists every representation kind in comparison order.
func Formats() []Format {
	return []Format{FormatRawCSV, FormatCSVWithMetadata, FormatEnglishNarrative}
}

// ErrUnknownFormat is returned for format names outside the closed set.
var ErrUnknownFormat = errors.New("unknown format")

// ParseFormat validates a caller-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatRawCSV, FormatCSVWithMetadata, FormatEnglishNarrative:
		return Format(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// RenderError reports a value outside a template's domain. It is
// request-scoped: the shared model is never mutated, so one bad render
// does not poison later ones.
type RenderError struct {
	Format Format
	Detail string
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("cannot render %s: %s", e.Format, e.Detail)
}

// Build renders the model in the requested format.
func Build(m *dataset.Model, f Format) (string, error) {
	switch f {
	case FormatRawCSV:
		return buildRawCSV(m)
	case FormatCSVWithMetadata:
		return buildCSVWithMetadata(m)
	case FormatEnglishNarrative:
		return buildNarrative(m)
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, f)
}

// BuildAll renders every format, keyed by format name.
func BuildAll(m *dataset.Model) (map[Format]string, error) {
	out := make(map[Format]string, len(Formats()))
	for _, f := range Formats() {
		text, err := Build(m, f)
		if err != nil {
			return nil, err
		}
		out[f] = text
	}
	return out, nil
}

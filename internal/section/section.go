// Package section splices a replacement block into the region of a text
// document delimited by a start and an end marker line.
package section

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors returned by Patch and Extract.
var (
	// ErrMarkerNotFound is returned when the start or end marker is absent.
	ErrMarkerNotFound = errors.New("marker not found")

	// ErrAmbiguousMarker is returned when a marker occurs more than once.
	ErrAmbiguousMarker = errors.New("marker occurs more than once")

	// ErrMalformedOrder is returned when the end marker precedes the start marker.
	ErrMalformedOrder = errors.New("end marker precedes start marker")

	// ErrMarkerInBlock is returned when the replacement itself carries one of
	// the markers. Writing it would leave the document ambiguous.
	ErrMarkerInBlock = errors.New("replacement contains marker")
)

// MarkerError reports which marker made a document unusable.
type MarkerError struct {
	Marker string
	Count  int
	Err    error
}

func (e *MarkerError) Error() string {
	if errors.Is(e.Err, ErrAmbiguousMarker) {
		return fmt.Sprintf("%q: %v (%d occurrences)", e.Marker, e.Err, e.Count)
	}
	return fmt.Sprintf("%q: %v", e.Marker, e.Err)
}

func (e *MarkerError) Unwrap() error { return e.Err }

// Result is the outcome of Apply.
type Result struct {
	Document string
	Changed  bool
}

// Markers returns the HTML comment marker pair used for a named section.
func Markers(name string) (start, end string) {
	return "<!--START_SECTION:" + name + "-->", "<!--END_SECTION:" + name + "-->"
}

// Patch replaces everything between startMarker and endMarker with
// replacement. Text outside the span is returned untouched and the span ends
// up as start, EOL, replacement, EOL, end, where EOL is the document's line
// ending. The replacement is written as given; see MatchLineEndings.
func Patch(document, startMarker, endMarker, replacement string) (string, error) {
	s, e, err := locate(document, startMarker, endMarker)
	if err != nil {
		return "", err
	}
	for _, m := range []string{startMarker, endMarker} {
		if strings.Contains(replacement, m) {
			return "", &MarkerError{Marker: m, Count: strings.Count(replacement, m), Err: ErrMarkerInBlock}
		}
	}

	eol := lineEnding(document)

	var b strings.Builder
	b.Grow(len(document) + len(replacement))
	b.WriteString(document[:s+len(startMarker)])
	b.WriteString(eol)
	b.WriteString(replacement)
	b.WriteString(eol)
	b.WriteString(document[e:])
	return b.String(), nil
}

// PatchNamed is Patch with the markers produced by Markers(name).
func PatchNamed(document, name, replacement string) (string, error) {
	start, end := Markers(name)
	return Patch(document, start, end, replacement)
}

// Apply patches the document and reports whether its content changed.
func Apply(document, startMarker, endMarker, replacement string) (Result, error) {
	patched, err := Patch(document, startMarker, endMarker, replacement)
	if err != nil {
		return Result{}, err
	}
	return Result{Document: patched, Changed: patched != document}, nil
}

// Extract returns the current span content without the line breaks that
// separate it from the markers.
func Extract(document, startMarker, endMarker string) (string, error) {
	s, e, err := locate(document, startMarker, endMarker)
	if err != nil {
		return "", err
	}
	span := document[s+len(startMarker) : e]
	span = strings.TrimPrefix(span, "\r\n")
	span = strings.TrimPrefix(span, "\n")
	if strings.HasSuffix(span, "\r\n") {
		span = span[:len(span)-2]
	} else {
		span = strings.TrimSuffix(span, "\n")
	}
	return span, nil
}

// locate returns the offset of the start marker and of the end marker.
func locate(document, startMarker, endMarker string) (int, int, error) {
	if err := checkUnique(document, startMarker); err != nil {
		return 0, 0, err
	}
	if err := checkUnique(document, endMarker); err != nil {
		return 0, 0, err
	}

	s := strings.Index(document, startMarker)
	e := strings.Index(document, endMarker)
	if e < s+len(startMarker) {
		return 0, 0, &MarkerError{Marker: endMarker, Count: 1, Err: ErrMalformedOrder}
	}
	return s, e, nil
}

func checkUnique(document, marker string) error {
	if marker == "" {
		return &MarkerError{Marker: marker, Err: ErrMarkerNotFound}
	}
	switch n := strings.Count(document, marker); {
	case n == 0:
		return &MarkerError{Marker: marker, Err: ErrMarkerNotFound}
	case n > 1:
		return &MarkerError{Marker: marker, Count: n, Err: ErrAmbiguousMarker}
	}
	return nil
}

func lineEnding(document string) string {
	if strings.Contains(document, "\r\n") {
		return "\r\n"
	}
	return "\n"
}

// MatchLineEndings rewrites the line breaks of block to the convention used
// by document, CRLF when the document contains any, LF otherwise.
func MatchLineEndings(document, block string) string {
	block = strings.ReplaceAll(block, "\r\n", "\n")
	if eol := lineEnding(document); eol != "\n" {
		return strings.ReplaceAll(block, "\n", eol)
	}
	return block
}

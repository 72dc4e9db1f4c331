// Package doverr defines the error kinds surfaced by the DOV search client.
//
// Every failure returned by the client is a *Error whose Kind is one of the
// sentinels below, so callers can branch with errors.Is:
//
//	if errors.Is(err, doverr.ErrFeatureOverflow) {
//	    // split the query
//	}
package doverr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrLayerNotFound            = errors.New("layer not found")
	ErrMetadataNotFound         = errors.New("metadata not found")
	ErrFeatureCatalogueNotFound = errors.New("feature catalogue not found")
	ErrInvalidSearchParameter   = errors.New("invalid search parameter")
	ErrInvalidField             = errors.New("invalid field")
	ErrWFSGetFeature            = errors.New("wfs getfeature error")
	ErrFeatureOverflow          = errors.New("feature overflow")
	ErrRemoteFetch              = errors.New("remote fetch failed")
	ErrXMLParse                 = errors.New("xml parse error")
	ErrXSDFetch                 = errors.New("xsd fetch failed")
	ErrLogReplay                = errors.New("log replay mismatch")

	// ErrProgramming marks misuse of the API (wrong shapes, unbound state).
	ErrProgramming = errors.New("programming error")
)

// Error carries the kind, a human message and the offending input.
type Error struct {
	Kind  error
	Msg   string
	Input any
	Err   error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func New(kind error, input any, format string, args ...any) *Error {
	return &Error{Kind: kind, Input: input, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind error, input any, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Input: input, Err: err, Msg: fmt.Sprintf(format, args...)}
}

// InvalidField builds an ErrInvalidField for name. When a known name matches
// case-insensitively it is suggested in the message.
func InvalidField(name, reason string, known []string) *Error {
	msg := fmt.Sprintf("unknown %s '%s'", reason, name)
	if s := Suggest(name, known); s != "" {
		msg += fmt.Sprintf(", did you mean '%s'?", s)
	}
	return &Error{Kind: ErrInvalidField, Input: name, Msg: msg}
}

// Suggest returns the first known name equal to name ignoring case, or "".
func Suggest(name string, known []string) string {
	sorted := append([]string(nil), known...)
	sort.Strings(sorted)
	for _, k := range sorted {
		if k != name && strings.EqualFold(k, name) {
			return k
		}
	}
	return ""
}

// InputOf returns the offending input carried by err, if any.
func InputOf(err error) (any, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Input, true
	}
	return nil, false
}

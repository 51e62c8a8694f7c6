package apperr

import (
	"errors"
	"net/http"
)

// Kind tags a failure so the HTTP layer can pick a status and app code.
type Kind int

const (
	Unexpected Kind = iota
	NotFound
	InvalidInput
	TranscriptionFailure
	SynthesisFailure
	GenerationFailure
	Configuration
	Timeout
)

// Application-level error codes carried in the response envelope.
const (
	CodeNotFound             = 40400
	CodeInvalidInput         = 42200
	CodeUnexpected           = 50000
	CodeTranscriptionFailure = 50001
	CodeSynthesisFailure     = 50002
	CodeGenerationFailure    = 50003
	CodeConfiguration        = 50004
	CodeTimeout              = 50005
)

// Mapping is the HTTP status and app code a Kind resolves to.
type Mapping struct {
	Status int
	Code   int
}

var table = map[Kind]Mapping{
	NotFound:             {http.StatusNotFound, CodeNotFound},
	InvalidInput:         {http.StatusUnprocessableEntity, CodeInvalidInput},
	Unexpected:           {http.StatusInternalServerError, CodeUnexpected},
	TranscriptionFailure: {http.StatusInternalServerError, CodeTranscriptionFailure},
	SynthesisFailure:     {http.StatusBadGateway, CodeSynthesisFailure},
	GenerationFailure:    {http.StatusInternalServerError, CodeGenerationFailure},
	Configuration:        {http.StatusInternalServerError, CodeConfiguration},
	Timeout:              {http.StatusGatewayTimeout, CodeTimeout},
}

var names = map[Kind]string{
	Unexpected:           "unexpected",
	NotFound:             "not_found",
	InvalidInput:         "invalid_input",
	TranscriptionFailure: "transcription_failure",
	SynthesisFailure:     "synthesis_failure",
	GenerationFailure:    "generation_failure",
	Configuration:        "configuration",
	Timeout:              "timeout",
}

func (k Kind) String() string {
	if n, ok := names[k]; ok {
		return n
	}
	return "unknown"
}

// Lookup returns the mapping for kind, falling back to Unexpected.
func Lookup(kind Kind) Mapping {
	if m, ok := table[kind]; ok {
		return m
	}
	return table[Unexpected]
}

// Error is a failure tagged with a Kind. Message is what clients see.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap tags err with kind; the message becomes "prefix: err".
func Wrap(kind Kind, err error, prefix string) *Error {
	msg := prefix
	if err != nil {
		msg = prefix + ": " + err.Error()
	}
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf reports the Kind of the first *Error in err's chain, or Unexpected.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unexpected
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

package api

import (
	"math"
	"time"
)

const (
	messageSuccess = "Success"
	messageFail    = "Fail"
)

// Meta carries timing and routing information of a response
type Meta struct {
	// Result is the elapsed time in milliseconds since the request started
	Result   int64  `json:"result"`
	Version  string `json:"version"`
	Resource string `json:"resource"`
}

// ErrorBody is the error part of a failed response
type ErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Envelope is the shape of every JSON response
type Envelope struct {
	Code    int        `json:"code"`
	Message string     `json:"message"`
	Meta    Meta       `json:"meta"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

// Responder builds envelopes stamped with the API version
type Responder struct {
	version string
}

func NewResponder(version string) *Responder {
	return &Responder{version: version}
}

// Success wraps data
func (r *Responder) Success(code int, data any, resource string, start time.Time) Envelope {
	return Envelope{
		Code:    code,
		Message: messageSuccess,
		Meta:    r.meta(resource, start),
		Data:    data,
	}
}

// Failure reports errorCode and message verbatim
func (r *Responder) Failure(code, errorCode int, message, resource string, start time.Time) Envelope {
	return Envelope{
		Code:    code,
		Message: messageFail,
		Meta:    r.meta(resource, start),
		Error:   &ErrorBody{Code: errorCode, Message: message},
	}
}

func (r *Responder) meta(resource string, start time.Time) Meta {
	return Meta{
		Result:   elapsedMillis(start),
		Version:  r.version,
		Resource: resource,
	}
}

func elapsedMillis(start time.Time) int64 {
	ms := math.Round(float64(time.Since(start).Microseconds()) / 1000)
	if ms < 0 {
		return 0
	}
	return int64(ms)
}

// Package lookuperr defines the error taxonomy shared by the resolver,
// hosts source, failover policy, and lookup controller. Every error that
// crosses a component boundary in this module is, or wraps, a *Error with
// one of the Codes below.
package lookuperr

import "errors"

// Code is a resolver/controller error kind. It deliberately mirrors the
// textual error codes a system getaddrinfo-style resolver would surface
// (NOTFOUND, TIMEOUT, ...), plus a handful the controller owns outright.
type Code string

const (
	NotFound    Code = "NOTFOUND"
	NoData      Code = "NODATA"
	ServFail    Code = "SERVFAIL"
	Refused     Code = "REFUSED"
	ConnRefused Code = "CONNREFUSED"
	Timeout     Code = "TIMEOUT"
	BadFamily   Code = "BADFAMILY"
	BadName     Code = "BADNAME"
	BadQuery    Code = "BADQUERY"
	BadResp     Code = "BADRESP"
	BadFlags    Code = "BADFLAGS"
	BadHints    Code = "BADHINTS"
	Cancelled   Code = "CANCELLED"
	FormErr     Code = "FORMERR"
	NoMem       Code = "NOMEM"
	NoName      Code = "NONAME"
	NotImp      Code = "NOTIMP"
	NotInit     Code = "NOTINITIALIZED"

	// EmptyArray is raised internally by the selection strategy on an empty
	// candidate list. The controller must never let it escape to a caller.
	EmptyArray Code = "EMPTY_ARRAY"

	HostsNotFound        Code = "HOSTS_NOT_FOUND"
	HostsNotReadable     Code = "HOSTS_NOT_READABLE"
	HostsParseError      Code = "HOSTS_PARSE_ERROR"
	UnsupportedPlatform  Code = "UNSUPPORTED_PLATFORM"
)

// Error is a code-carrying error. Err, if non-nil, is the underlying cause
// (a transport error, a parse error, ...) and is reachable via Unwrap.
type Error struct {
	Code Code
	Err  error
}

func New(code Code) *Error {
	return &Error{Code: code}
}

func Wrap(code Code, err error) *Error {
	return &Error{Code: code, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return string(e.Code) + ": " + e.Err.Error()
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf extracts the Code from err, walking its Unwrap chain. ok is false
// if err is nil or carries no *Error.
func CodeOf(err error) (code Code, ok bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}

// Is reports whether err's code equals code.
func Is(err error, code Code) bool {
	got, ok := CodeOf(err)
	return ok && got == code
}

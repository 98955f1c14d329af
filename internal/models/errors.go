package models

import (
	"errors"
	"fmt"
)

// MaxDetailRunes caps error text returned to clients.
const MaxDetailRunes = 50

type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindNotFound
	KindUpstreamFetch
	KindUpstreamTimeout
	KindPersistence
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindUpstreamFetch:
		return "upstream_fetch"
	case KindUpstreamTimeout:
		return "upstream_timeout"
	case KindPersistence:
		return "persistence"
	default:
		return "internal"
	}
}

// Error is an application error with a client-facing message.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func NewError(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func ValidationErrorf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

func NotFoundErrorf(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Detail is the message shown to clients, truncated to MaxDetailRunes.
// Upstream errors include the cause; persistence errors never do.
func (e *Error) Detail() string {
	switch e.Kind {
	case KindUpstreamFetch, KindUpstreamTimeout:
		return Truncate(e.Error(), MaxDetailRunes)
	default:
		return Truncate(e.Msg, MaxDetailRunes)
	}
}

// KindOf reports the kind of err, KindInternal for foreign errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

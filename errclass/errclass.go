// Package errclass defines the error taxonomy shared by the platform sync
// subsystem: auth, quota, not-found, transient, and malformed-input failures.
// Every provider error is folded into one of these classes so callers can
// decide between retrying, cooling down, and degrading to a safe default.
package errclass

import (
	"errors"
	"fmt"
	"strings"
)

// Class buckets an error by how the caller should react to it.
type Class int

const (
	// ClassTransient indicates a network/timeout/5xx failure worth retrying.
	ClassTransient Class = iota
	// ClassAuth indicates missing or invalid credentials. Permanent until
	// configuration changes.
	ClassAuth
	// ClassQuota indicates provider- or locally-detected quota exhaustion.
	// Never retried; bounded by the cooldown window.
	ClassQuota
	// ClassNotFound indicates the channel does not resolve. Cached as a
	// negative result.
	ClassNotFound
	// ClassMalformed indicates unparseable input. Permanent for that value.
	ClassMalformed
)

// String returns a human-readable name for the class.
func (c Class) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassAuth:
		return "auth"
	case ClassQuota:
		return "quota"
	case ClassNotFound:
		return "not_found"
	case ClassMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Error carries a class alongside the wrapped cause.
type Error struct {
	Class Class
	Err   error
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %v", e.Class, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// New wraps err with an explicit class.
func New(class Class, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Class: class, Err: err}
}

// Newf wraps a formatted message with an explicit class.
func Newf(class Class, format string, args ...any) error {
	return &Error{Class: class, Err: fmt.Errorf(format, args...)}
}

func Auth(err error) error      { return New(ClassAuth, err) }
func Quota(err error) error     { return New(ClassQuota, err) }
func NotFound(err error) error  { return New(ClassNotFound, err) }
func Transient(err error) error { return New(ClassTransient, err) }
func Malformed(err error) error { return New(ClassMalformed, err) }

// ClassOf returns the class of err. Errors without an explicit class fall
// back to string-pattern matching, defaulting to transient so unknown
// failures are not given up on too early.
func ClassOf(err error) Class {
	if err == nil {
		return ClassTransient
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Class
	}
	return classifyMessage(err.Error())
}

// Is reports whether err carries the given class.
func Is(err error, class Class) bool { return err != nil && ClassOf(err) == class }

// IsPermanent reports whether err should never be retried.
func IsPermanent(err error) bool {
	switch ClassOf(err) {
	case ClassAuth, ClassQuota, ClassNotFound, ClassMalformed:
		return true
	default:
		return false
	}
}

// classifyMessage buckets an error by message patterns. Ordering matters:
// server errors are checked before auth so "503 service unavailable" is not
// swallowed by the generic "unavailable" content checks below.
func classifyMessage(msg string) Class {
	lower := strings.ToLower(msg)

	// Retryable server errors first.
	if strings.Contains(lower, "500") ||
		strings.Contains(lower, "502") ||
		strings.Contains(lower, "503") ||
		strings.Contains(lower, "504") ||
		strings.Contains(lower, "internal server error") ||
		strings.Contains(lower, "bad gateway") ||
		strings.Contains(lower, "service unavailable") ||
		strings.Contains(lower, "gateway timeout") {
		return ClassTransient
	}

	// Quota before auth: YouTube quota denials arrive as 403s.
	quotaPatterns := []string{
		"quota",
		"dailylimitexceeded",
		"ratelimitexceeded",
		"rate limit",
		"too many requests",
		"429",
	}
	for _, p := range quotaPatterns {
		if strings.Contains(lower, p) {
			return ClassQuota
		}
	}

	if strings.Contains(lower, "401") ||
		strings.Contains(lower, "403") ||
		strings.Contains(lower, "unauthorized") ||
		strings.Contains(lower, "access denied") ||
		strings.Contains(lower, "invalid client") ||
		strings.Contains(lower, "missing client") ||
		strings.Contains(lower, "api key") {
		return ClassAuth
	}

	if strings.Contains(lower, "404") ||
		strings.Contains(lower, "not found") ||
		strings.Contains(lower, "does not exist") ||
		strings.Contains(lower, "no longer available") {
		return ClassNotFound
	}

	invalidInputPatterns := []string{
		"invalid url",
		"malformed url",
		"invalid channel",
		"unsupported url",
		"unparseable",
	}
	for _, p := range invalidInputPatterns {
		if strings.Contains(lower, p) {
			return ClassMalformed
		}
	}

	// Everything else (connection resets, timeouts, DNS, EOF) is transient.
	return ClassTransient
}

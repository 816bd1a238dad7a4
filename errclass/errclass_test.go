package errclass

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassOf_Explicit(t *testing.T) {
	cases := []struct {
		err  error
		want Class
	}{
		{Auth(errors.New("missing twitch client id")), ClassAuth},
		{Quota(errors.New("daily budget spent")), ClassQuota},
		{NotFound(errors.New("channel gone")), ClassNotFound},
		{Malformed(errors.New("garbage input")), ClassMalformed},
		{Transient(errors.New("conn reset")), ClassTransient},
	}
	for _, c := range cases {
		if got := ClassOf(c.err); got != c.want {
			t.Errorf("ClassOf(%v) = %s, want %s", c.err, got, c.want)
		}
	}
}

func TestClassOf_Wrapped(t *testing.T) {
	inner := Quota(errors.New("quotaExceeded"))
	wrapped := fmt.Errorf("youtube live check: %w", inner)
	if got := ClassOf(wrapped); got != ClassQuota {
		t.Errorf("ClassOf(wrapped) = %s, want quota", got)
	}
}

func TestClassOf_MessagePatterns(t *testing.T) {
	cases := []struct {
		msg  string
		want Class
	}{
		{"googleapi: Error 403: quotaExceeded", ClassQuota},
		{"429 too many requests", ClassQuota},
		{"twitch token request failed: 401 Unauthorized", ClassAuth},
		{"user not found", ClassNotFound},
		{"invalid url: ht!tp://??", ClassMalformed},
		{"connection reset by peer", ClassTransient},
		{"503 service unavailable", ClassTransient},
		{"Get https://api.twitch.tv: context deadline exceeded", ClassTransient},
	}
	for _, c := range cases {
		if got := ClassOf(errors.New(c.msg)); got != c.want {
			t.Errorf("ClassOf(%q) = %s, want %s", c.msg, got, c.want)
		}
	}
}

func TestIsPermanent(t *testing.T) {
	if !IsPermanent(Quota(errors.New("spent"))) {
		t.Error("quota errors must be permanent for retry purposes")
	}
	if !IsPermanent(Auth(errors.New("no creds"))) {
		t.Error("auth errors must be permanent")
	}
	if IsPermanent(Transient(errors.New("timeout"))) {
		t.Error("transient errors must not be permanent")
	}
	if IsPermanent(nil) {
		t.Error("nil is not permanent")
	}
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package net holds URL helpers shared by the outbound clients.
package net

import (
	"errors"
	"net/url"
	"strings"
)

// SanitizeURL removes user info and query parameters for safe logging.
func SanitizeURL(rawURL string) string {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return "invalid-url-redacted"
	}
	parsedURL.User = nil
	parsedURL.RawQuery = ""
	return parsedURL.String()
}

// RedactURLError strips credentials and query parameters from the URL
// carried by a *url.Error, which net/http embeds in every transport failure.
// The input error is not modified. When the *url.Error is wrapped, the
// wrapper's message is rewritten as well and the result unwraps to the
// sanitized *url.Error. Other errors pass through.
func RedactURLError(err error) error {
	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		return err
	}
	clean := &url.Error{Op: urlErr.Op, URL: SanitizeURL(urlErr.URL), Err: urlErr.Err}
	if err == error(urlErr) {
		return clean
	}
	return &redactedError{
		msg: strings.ReplaceAll(err.Error(), urlErr.URL, clean.URL),
		err: clean,
	}
}

type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.err }

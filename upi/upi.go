// Package upi rewrites generic UPI payment URIs into application specific deep links.
package upi

import (
	"errors"
	"strings"
)

// Prefix is the scheme prefix every UPI payment URI starts with.
const Prefix = "upi://"

var (
	// ErrInvalidScheme is returned when the URI does not start with "upi://".
	ErrInvalidScheme = errors.New("not a upi uri")
	// ErrEmptyPayload is returned when nothing follows the "upi://" prefix.
	ErrEmptyPayload = errors.New("upi uri has no payload")
)

// pathPrefixed lists the schemes whose handlers expect the payload under a "/upi/" path segment.
var pathPrefixed = map[string]struct{}{
	"gpay":    {},
	"paytmmp": {},
}

// IsPathPrefixed reports whether deep links for scheme carry the "upi/" path segment.
func IsPathPrefixed(scheme string) bool {
	_, ok := pathPrefixed[scheme]
	return ok
}

// Transform converts a UPI URI into a deep link for the application registered under targetScheme.
//
// Only the prefix comparison is case-insensitive. The first six characters are then dropped
// positionally, and the remaining payload is carried over verbatim.
func Transform(uri string, targetScheme string) (string, error) {
	if len(uri) < len(Prefix) || !strings.EqualFold(uri[:len(Prefix)], Prefix) {
		return "", ErrInvalidScheme
	}

	payload := uri[len(Prefix):]
	if payload == "" {
		return "", ErrEmptyPayload
	}

	if IsPathPrefixed(targetScheme) {
		return targetScheme + "://upi/" + payload, nil
	}
	return targetScheme + "://" + payload, nil
}

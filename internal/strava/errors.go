// Strava Sync - Activity and Kudos Synchronization for Strava
// Copyright 2026 Jose F. de la Fuente (jfdelafuente)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jfdelafuente/strava-sync

package strava

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
)

// ErrorKind classifies a remote API failure so the caller can decide
// between retry and abort without string-matching error text.
type ErrorKind int

const (
	// KindUnknown is the zero value; it never appears on a returned error.
	KindUnknown ErrorKind = iota

	// KindTLS is an SSL/certificate verification failure.
	KindTLS

	// KindAuth is an HTTP 401: the access token is invalid or expired.
	// Always fatal to the current run; token refresh happened upstream.
	KindAuth

	// KindRateLimited is an HTTP 429. The client performs no backoff and
	// surfaces the error immediately; retrying is the caller's decision.
	KindRateLimited

	// KindHTTP is any other non-2xx HTTP status.
	KindHTTP

	// KindNetwork is a transport failure: DNS, connect, timeout.
	KindNetwork
)

func (k ErrorKind) String() string {
	switch k {
	case KindTLS:
		return "tls"
	case KindAuth:
		return "auth"
	case KindRateLimited:
		return "rate_limited"
	case KindHTTP:
		return "http"
	case KindNetwork:
		return "network"
	default:
		return "unknown"
	}
}

// APIError is a classified failure from the remote Strava API.
type APIError struct {
	Kind       ErrorKind
	StatusCode int // 0 when the failure happened before a response arrived
	Endpoint   string
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("strava: %s error on %s (HTTP %d): %v", e.Kind, e.Endpoint, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("strava: %s error on %s: %v", e.Kind, e.Endpoint, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

// Classify returns the ErrorKind of err, or KindUnknown if err is not an
// APIError.
func Classify(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}

// IsAuth reports whether err is a 401 authentication failure.
func IsAuth(err error) bool { return Classify(err) == KindAuth }

// IsRateLimited reports whether err is a 429 rate-limit failure.
func IsRateLimited(err error) bool { return Classify(err) == KindRateLimited }

// classifyTransportError maps an http.Client transport failure to a typed
// APIError. Certificate problems are distinguished from plain network
// failures so corporate-proxy environments get an actionable error.
func classifyTransportError(endpoint string, err error) *APIError {
	kind := KindNetwork

	var certVerify *tls.CertificateVerificationError
	var unknownAuthority x509.UnknownAuthorityError
	var hostnameErr x509.HostnameError
	var certInvalid x509.CertificateInvalidError
	var recordHeader tls.RecordHeaderError
	switch {
	case errors.As(err, &certVerify),
		errors.As(err, &unknownAuthority),
		errors.As(err, &hostnameErr),
		errors.As(err, &certInvalid),
		errors.As(err, &recordHeader):
		kind = KindTLS
	}

	return &APIError{Kind: kind, Endpoint: endpoint, Err: err}
}

// classifyStatus maps a non-2xx HTTP status to a typed APIError.
func classifyStatus(endpoint string, status int, body []byte) *APIError {
	kind := KindHTTP
	switch status {
	case 401:
		kind = KindAuth
	case 429:
		kind = KindRateLimited
	}
	return &APIError{
		Kind:       kind,
		StatusCode: status,
		Endpoint:   endpoint,
		Err:        fmt.Errorf("unexpected status: %s", string(body)),
	}
}

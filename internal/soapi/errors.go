package soapi

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// ErrNoAccessToken indicates a token exchange succeeded but returned no token.
var ErrNoAccessToken = errors.New("token exchange returned no access token")

// ErrEmptyResponse indicates a create call returned no resource to read back.
var ErrEmptyResponse = errors.New("API returned an empty response")

// ConnectivityError is returned when the initial reachability check fails.
// Nothing else can proceed without it.
type ConnectivityError struct {
	API        string
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *ConnectivityError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unable to connect to API %s at %s: %v", e.API, e.URL, e.Err)
	}
	return fmt.Sprintf("unable to connect to API %s at %s (status %d): check your URL, token and key: %s",
		e.API, e.URL, e.StatusCode, truncate(e.Body, 500))
}

func (e *ConnectivityError) Unwrap() error {
	return e.Err
}

// CallError is a non-success HTTP status from an API call.
type CallError struct {
	API        string
	Method     Method
	URL        string
	StatusCode int
	Body       string
}

func (e *CallError) Error() string {
	return fmt.Sprintf("API %s %s %s failed with status %d: %s",
		e.API, e.Method, e.URL, e.StatusCode, truncate(e.Body, 500))
}

// IsFatal reports whether err should stop an import run. Every error the
// clients return is fatal except context cancellation, which callers usually
// want to report differently.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var connErr *ConnectivityError
	var callErr *CallError
	return errors.As(err, &connErr) || errors.As(err, &callErr) ||
		errors.Is(err, ErrNoAccessToken) || errors.Is(err, ErrEmptyResponse)
}

// truncate shortens a string to at most maxLen bytes, adding "..." if
// truncated. It never splits a UTF-8 sequence.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

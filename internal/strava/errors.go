package strava

import "fmt"

// AuthenticationError reports that the token endpoint rejected a grant. Body carries the
// endpoint's error payload.
type AuthenticationError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *AuthenticationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("strava token request rejected with status %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("strava token request failed: %v", e.Err)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// FetchError reports a failed activities page request. Any FetchError aborts the export.
type FetchError struct {
	Page       int
	StatusCode int
	Body       string
	Err        error
}

func (e *FetchError) Error() string {
	switch {
	case e.StatusCode != 0 && e.StatusCode != 200:
		return fmt.Sprintf("fetch activities page %d: status %d: %s", e.Page, e.StatusCode, e.Body)
	case e.Err != nil:
		return fmt.Sprintf("fetch activities page %d: %v", e.Page, e.Err)
	default:
		return fmt.Sprintf("fetch activities page %d failed", e.Page)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

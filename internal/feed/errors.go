package feed

import "fmt"

// UpstreamFetchError reports a failed feed fetch. Every caller coalesced on
// the same fetch receives the same error value.
type UpstreamFetchError struct {
	Feed string
	Err  error
}

func (e *UpstreamFetchError) Error() string {
	return fmt.Sprintf("fetch feed %q: %v", e.Feed, e.Err)
}

func (e *UpstreamFetchError) Unwrap() error { return e.Err }

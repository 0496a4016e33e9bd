package models

import (
	"errors"
	"fmt"
)

// FetchError wraps a network or HTTP failure while fetching a page, resolving a
// link or talking to the notification channel. It is recovered per post or per
// notification edit and never aborts a poll cycle.
type FetchError struct {
	Op  string
	URL string
	Err error
}

func (e *FetchError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsFetchError reports whether err has a FetchError in its chain.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

package thingspeak

import (
	"errors"
	"fmt"
)

// ErrWriteRejected signals a non-positive entry id from the update endpoint.
var ErrWriteRejected = errors.New("thingspeak rejected update")

// FetchError covers transport failures and non-2xx statuses on channel reads
// and writes. Callers decide the retry policy.
type FetchError struct {
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("thingspeak request failed: %v", e.Err)
	}
	return fmt.Sprintf("thingspeak request failed: status %d", e.Status)
}

func (e *FetchError) Unwrap() error { return e.Err }

package coach

import (
	"errors"
	"fmt"
)

// ErrMalformedResponse is returned when a response body does not carry the
// fields the client depends on.
var ErrMalformedResponse = errors.New("malformed coach response")

// StatusError reports a non-2xx reply from the coach service.
type StatusError struct {
	Endpoint string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned http %d", e.Endpoint, e.Code)
	}
	return fmt.Sprintf("%s returned http %d: %s", e.Endpoint, e.Code, e.Body)
}

// Package availability carries the availability-toggle flow: the publisher
// used on the HTTP path and the consumer that flips the stored flag.
package availability

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Event is published whenever a book's availability is looked up. It carries
// the flag as read at publish time.
type Event struct {
	BookID       int64 `json:"book_id"`
	Availability bool  `json:"availability"`
}

// Response is emitted after the consumer persisted a toggle.
type Response struct {
	BookID          int64 `json:"book_id"`
	NewAvailability bool  `json:"new_availability"`
}

// DecodeError reports a message body that is not a valid Event.
type DecodeError struct {
	Body []byte
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode availability event: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

var (
	errMissingBookID       = errors.New("book_id must be a positive integer")
	errMissingAvailability = errors.New("availability is required")
)

// DecodeEvent parses body. Both fields are required and book_id must be positive.
func DecodeEvent(body []byte) (Event, error) {
	var raw struct {
		BookID       *int64 `json:"book_id"`
		Availability *bool  `json:"availability"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return Event{}, &DecodeError{Body: body, Err: err}
	}
	if raw.BookID == nil || *raw.BookID <= 0 {
		return Event{}, &DecodeError{Body: body, Err: errMissingBookID}
	}
	if raw.Availability == nil {
		return Event{}, &DecodeError{Body: body, Err: errMissingAvailability}
	}
	return Event{BookID: *raw.BookID, Availability: *raw.Availability}, nil
}

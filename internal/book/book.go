package book

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when no book has the requested id.
	ErrNotFound = errors.New("book not found")
	// ErrDuplicateISBN is returned when another book already carries the isbn.
	ErrDuplicateISBN = errors.New("book with this ISBN already exists")
	// ErrValidation is wrapped by every ValidationError.
	ErrValidation = errors.New("invalid book")
)

// Book is one row of the books table.
type Book struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	Author        string    `json:"author"`
	PublishedYear *int      `json:"published_year"`
	ISBN          *string   `json:"isbn"`
	Availability  bool      `json:"availability"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Query filters a listing. Title and Author match case-insensitive substrings.
type Query struct {
	Title   string
	Author  string
	AfterID int64
	Limit   int
}

// CreateInput is the payload of POST /books.
type CreateInput struct {
	Title         string  `json:"title" validate:"required,max=255"`
	Author        string  `json:"author" validate:"required,max=255"`
	PublishedYear *int    `json:"published_year" validate:"omitempty,gte=0,lte=9999"`
	ISBN          *string `json:"isbn" validate:"omitempty,max=20"`
	Availability  *bool   `json:"availability"`
}

// UpdateInput is the payload of PUT /books/{id}. Nil fields are left unchanged.
type UpdateInput struct {
	Title         *string `json:"title" validate:"omitempty,max=255"`
	Author        *string `json:"author" validate:"omitempty,max=255"`
	PublishedYear *int    `json:"published_year" validate:"omitempty,gte=0,lte=9999"`
	ISBN          *string `json:"isbn" validate:"omitempty,max=20"`
	Availability  *bool   `json:"availability"`
}

// Empty reports whether the update changes nothing.
func (in UpdateInput) Empty() bool {
	return in.Title == nil && in.Author == nil && in.PublishedYear == nil &&
		in.ISBN == nil && in.Availability == nil
}

// FieldError describes one rejected field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every rejected field of a payload.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return fmt.Sprintf("%v: %s", ErrValidation, strings.Join(msgs, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// normalizeISBN trims the isbn and maps blank to nil, so books without an
// isbn never collide on the unique index.
func normalizeISBN(isbn *string) *string {
	if isbn == nil {
		return nil
	}
	v := strings.TrimSpace(*isbn)
	if v == "" {
		return nil
	}
	return &v
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

package book

import (
	"context"
)

//go:generate mockgen -source=ports.go -destination=mock_repository_test.go -package=book

// Repository defines the contract for book data storage.
type Repository interface {
	List(ctx context.Context, q Query) ([]Book, error)
	Get(ctx context.Context, id int64) (Book, error)
	GetByISBN(ctx context.Context, isbn string) (Book, error)
	Create(ctx context.Context, in CreateInput) (Book, error)
	Update(ctx context.Context, id int64, in UpdateInput) (Book, error)
	SetAvailability(ctx context.Context, id int64, availability bool) (Book, error)
	Delete(ctx context.Context, id int64) error
}

// AvailabilityNotifier is told about every availability lookup. It must not
// fail the caller.
type AvailabilityNotifier interface {
	PublishAvailability(ctx context.Context, bookID int64, availability bool)
}

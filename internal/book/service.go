package book

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Service provides book-related business logic.
type Service struct {
	repo     Repository
	notifier AvailabilityNotifier
	logger   *zap.Logger
}

type nopNotifier struct{}

func (nopNotifier) PublishAvailability(context.Context, int64, bool) {}

// NewService creates a new book service. A nil notifier disables availability
// events.
func NewService(repo Repository, notifier AvailabilityNotifier, logger *zap.Logger) *Service {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, notifier: notifier, logger: logger}
}

// List returns the books matching q.
func (s *Service) List(ctx context.Context, q Query) ([]Book, error) {
	return s.repo.List(ctx, q)
}

// Get returns a book by id.
func (s *Service) Get(ctx context.Context, id int64) (Book, error) {
	return s.repo.Get(ctx, id)
}

// Create validates in, rejects a taken isbn and inserts the book.
func (s *Service) Create(ctx context.Context, in CreateInput) (Book, error) {
	if err := validateCreate(&in); err != nil {
		return Book{}, err
	}

	if in.ISBN != nil {
		if err := s.ensureISBNFree(ctx, *in.ISBN, 0); err != nil {
			return Book{}, err
		}
	}

	b, err := s.repo.Create(ctx, in)
	if err != nil {
		return Book{}, fmt.Errorf("create book: %w", err)
	}
	s.logger.Info("book created", zap.Int64("book_id", b.ID))
	return b, nil
}

// Update applies the non-nil fields of in to the book.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (Book, error) {
	if err := validateUpdate(&in); err != nil {
		return Book{}, err
	}

	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Book{}, err
	}
	if in.Empty() {
		return current, nil
	}

	if in.ISBN != nil && (current.ISBN == nil || *current.ISBN != *in.ISBN) {
		if err := s.ensureISBNFree(ctx, *in.ISBN, id); err != nil {
			return Book{}, err
		}
	}

	b, err := s.repo.Update(ctx, id, in)
	if err != nil {
		return Book{}, fmt.Errorf("update book %d: %w", id, err)
	}
	return b, nil
}

// Delete removes a book.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete book %d: %w", id, err)
	}
	s.logger.Info("book deleted", zap.Int64("book_id", id))
	return nil
}

// CheckAvailability returns the stored flag and hands it to the notifier
// before returning.
func (s *Service) CheckAvailability(ctx context.Context, id int64) (bool, error) {
	b, err := s.repo.Get(ctx, id)
	if err != nil {
		return false, err
	}
	s.notifier.PublishAvailability(ctx, b.ID, b.Availability)
	return b.Availability, nil
}

// ensureISBNFree fails with ErrDuplicateISBN if a book other than selfID holds isbn.
func (s *Service) ensureISBNFree(ctx context.Context, isbn string, selfID int64) error {
	existing, err := s.repo.GetByISBN(ctx, isbn)
	switch {
	case errors.Is(err, ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("check isbn: %w", err)
	case existing.ID != selfID:
		return ErrDuplicateISBN
	default:
		return nil
	}
}

package availability

import (
	"context"
	"errors"
	"sync"
	"time"

	"bookcatalog/internal/book"
	"bookcatalog/internal/queue"
)

type memStore struct {
	mu     sync.Mutex
	books  map[int64]book.Book
	writes int
	getErr error
	setErr error
}

func newMemStore(books ...book.Book) *memStore {
	s := &memStore{books: make(map[int64]book.Book)}
	for _, b := range books {
		s.books[b.ID] = b
	}
	return s
}

func (s *memStore) Get(_ context.Context, id int64) (book.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return book.Book{}, s.getErr
	}
	b, ok := s.books[id]
	if !ok {
		return book.Book{}, book.ErrNotFound
	}
	return b, nil
}

func (s *memStore) SetAvailability(_ context.Context, id int64, availability bool) (book.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return book.Book{}, s.setErr
	}
	b, ok := s.books[id]
	if !ok {
		return book.Book{}, book.ErrNotFound
	}
	b.Availability = availability
	b.UpdatedAt = time.Now()
	s.books[id] = b
	s.writes++
	return b, nil
}

func (s *memStore) available(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.books[id].Availability
}

func (s *memStore) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

var errBroker = errors.New("broker down")

// failingChannel rejects every publish.
type failingChannel struct {
	queue.Channel
}

func (failingChannel) Publish(context.Context, string, []byte) error {
	return &queue.ChannelError{Op: "publish", Err: errBroker}
}

// panickingStore blows up on lookup.
type panickingStore struct{}

func (panickingStore) Get(context.Context, int64) (book.Book, error) { panic("store exploded") }

func (panickingStore) SetAvailability(context.Context, int64, bool) (book.Book, error) {
	panic("unreachable")
}

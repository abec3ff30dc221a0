package library

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventsourcing"
)

// BookCopyAggregateType is the aggregate type under which book copies are stored.
const BookCopyAggregateType = "BookCopy"

var ErrBookCopyNotInCirculation = errors.New("book copy is not in circulation")
var ErrBookCopyAlreadyLent = errors.New("book copy is lent to another reader")
var ErrBookCopyNotLentToReader = errors.New("book copy was never lent to this reader")
var ErrBookCopyIsLent = errors.New("book copy is currently lent")

// BookCopy is one physical copy of a book in the library.
type BookCopy struct {
	eventsourcing.AggregateRoot

	ISBN          string
	Title         string
	Authors       string
	InCirculation bool
	LentTo        uuid.UUID
	formerReaders map[uuid.UUID]struct{}
}

var bookCopyHandlers = buildBookCopyHandlers()

func buildBookCopyHandlers() *eventsourcing.HandlerTable[*BookCopy] {
	table := eventsourcing.NewHandlerTable[*BookCopy]()

	eventsourcing.When(table, func(b *BookCopy, e *BookCopyAddedToCirculation) {
		b.ISBN, b.Title, b.Authors = e.ISBN, e.Title, e.Authors
		b.InCirculation = true
	})

	eventsourcing.When(table, func(b *BookCopy, e *BookCopyLentToReader) {
		b.LentTo = e.ReaderID
		b.formerReaders[e.ReaderID] = struct{}{}
	})

	eventsourcing.When(table, func(b *BookCopy, _ *BookCopyReturnedByReader) {
		b.LentTo = uuid.Nil
	})

	eventsourcing.When(table, func(b *BookCopy, _ *BookCopyRemovedFromCirculation) {
		b.InCirculation = false
	})

	return table
}

// NewBookCopy creates an empty book copy, it is the factory of the BookCopy repository.
func NewBookCopy(bookID uuid.UUID) *BookCopy {
	b := &BookCopy{formerReaders: make(map[uuid.UUID]struct{})}
	b.AggregateRoot = eventsourcing.NewAggregateRoot(bookID, eventsourcing.FoldWith(bookCopyHandlers, b))

	return b
}

func (b *BookCopy) addToCirculation(isbn, title, authors string, at time.Time) error {
	return b.Apply(buildBookCopyAddedToCirculation(isbn, title, authors, at))
}

// lendToReader does nothing if the copy is already lent to this reader.
func (b *BookCopy) lendToReader(readerID uuid.UUID, at time.Time) error {
	if b.LentTo == readerID {
		return nil
	}

	if !b.InCirculation {
		return ErrBookCopyNotInCirculation
	}

	if b.LentTo != uuid.Nil {
		return ErrBookCopyAlreadyLent
	}

	return b.Apply(buildBookCopyLentToReader(readerID, at))
}

// returnFromReader does nothing if this reader has already returned the copy.
func (b *BookCopy) returnFromReader(readerID uuid.UUID, at time.Time) error {
	_, wasLentToReader := b.formerReaders[readerID]

	if wasLentToReader && b.LentTo != readerID {
		return nil
	}

	if !b.InCirculation {
		return ErrBookCopyNotInCirculation
	}

	if !wasLentToReader {
		return ErrBookCopyNotLentToReader
	}

	return b.Apply(buildBookCopyReturnedByReader(readerID, at))
}

// removeFromCirculation does nothing if the copy was already removed.
func (b *BookCopy) removeFromCirculation(at time.Time) error {
	if !b.InCirculation {
		return nil
	}

	if b.LentTo != uuid.Nil {
		return ErrBookCopyIsLent
	}

	return b.Apply(buildBookCopyRemovedFromCirculation(at))
}

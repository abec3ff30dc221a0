package fixtures

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventsourcing"
)

// BookCopyAggregateType is the aggregate type under which book copies are stored.
const BookCopyAggregateType = "BookCopy"

var ErrBookCopyNotInCirculation = errors.New("book copy is not in circulation")
var ErrBookCopyAlreadyLent = errors.New("book copy is already lent")
var ErrBookCopyNotLentToReader = errors.New("book copy is not lent to this reader")

// BookCopy is an event-sourced book copy of a library.
type BookCopy struct {
	eventsourcing.AggregateRoot

	ISBN          string
	Title         string
	InCirculation bool
	LentTo        uuid.UUID
	TimesLent     int
}

var bookCopyHandlers = buildBookCopyHandlers()

func buildBookCopyHandlers() *eventsourcing.HandlerTable[*BookCopy] {
	table := eventsourcing.NewHandlerTable[*BookCopy]()

	eventsourcing.When(table, func(b *BookCopy, e *BookCopyAddedToCirculation) {
		b.ISBN = e.ISBN
		b.Title = e.Title
		b.InCirculation = true
	})

	eventsourcing.When(table, func(b *BookCopy, e *BookCopyLentToReader) {
		b.LentTo = e.ReaderID
		b.TimesLent++
	})

	eventsourcing.When(table, func(b *BookCopy, _ *BookCopyReturnedByReader) {
		b.LentTo = uuid.Nil
	})

	eventsourcing.When(table, func(b *BookCopy, _ *BookCopyRemovedFromCirculation) {
		b.InCirculation = false
	})

	return table
}

// NewBookCopy creates an empty BookCopy shell with the given id, used as repository factory.
func NewBookCopy(bookID uuid.UUID) *BookCopy {
	b := &BookCopy{}
	b.AggregateRoot = eventsourcing.NewAggregateRoot(bookID, eventsourcing.FoldWith(bookCopyHandlers, b))

	return b
}

// AddToCirculation is the creation command of a BookCopy.
func (b *BookCopy) AddToCirculation(isbn, title string, at time.Time) error {
	return b.Apply(BuildBookCopyAddedToCirculation(isbn, title, at))
}

// LendToReader lends the copy, it fails if it is not in circulation or already lent.
func (b *BookCopy) LendToReader(readerID uuid.UUID, at time.Time) error {
	if !b.InCirculation {
		return ErrBookCopyNotInCirculation
	}

	if b.LentTo != uuid.Nil {
		return ErrBookCopyAlreadyLent
	}

	return b.Apply(BuildBookCopyLentToReader(readerID, at))
}

// ReturnFromReader returns the copy, it fails if it is not lent to the reader.
func (b *BookCopy) ReturnFromReader(readerID uuid.UUID, at time.Time) error {
	if b.LentTo != readerID {
		return ErrBookCopyNotLentToReader
	}

	return b.Apply(BuildBookCopyReturnedByReader(readerID, at))
}

// RemoveFromCirculation takes the copy out of circulation.
func (b *BookCopy) RemoveFromCirculation(at time.Time) error {
	if !b.InCirculation {
		return ErrBookCopyNotInCirculation
	}

	return b.Apply(BuildBookCopyRemovedFromCirculation(at))
}

package library

import (
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventsourcing"
)

const (
	BookCopyAddedToCirculationEventType     = "BookCopyAddedToCirculation"
	BookCopyLentToReaderEventType           = "BookCopyLentToReader"
	BookCopyReturnedByReaderEventType       = "BookCopyReturnedByReader"
	BookCopyRemovedFromCirculationEventType = "BookCopyRemovedFromCirculation"
)

// BookCopyAddedToCirculation is the first event of every book copy.
type BookCopyAddedToCirculation struct {
	eventsourcing.EventBase
	ISBN    string `json:"isbn"`
	Title   string `json:"title"`
	Authors string `json:"authors"`
}

// BookCopyLentToReader represents when a book copy is lent to a reader.
type BookCopyLentToReader struct {
	eventsourcing.EventBase
	ReaderID uuid.UUID `json:"readerId"`
}

// BookCopyReturnedByReader represents when a reader returns a book copy.
type BookCopyReturnedByReader struct {
	eventsourcing.EventBase
	ReaderID uuid.UUID `json:"readerId"`
}

// BookCopyRemovedFromCirculation represents when a book copy is taken out of the library for good.
type BookCopyRemovedFromCirculation struct {
	eventsourcing.EventBase
}

func buildBookCopyAddedToCirculation(isbn, title, authors string, at time.Time) *BookCopyAddedToCirculation {
	return &BookCopyAddedToCirculation{
		EventBase: eventsourcing.NewEventBaseOccurredAt(at),
		ISBN:      isbn,
		Title:     title,
		Authors:   authors,
	}
}

func buildBookCopyLentToReader(readerID uuid.UUID, at time.Time) *BookCopyLentToReader {
	return &BookCopyLentToReader{EventBase: eventsourcing.NewEventBaseOccurredAt(at), ReaderID: readerID}
}

func buildBookCopyReturnedByReader(readerID uuid.UUID, at time.Time) *BookCopyReturnedByReader {
	return &BookCopyReturnedByReader{EventBase: eventsourcing.NewEventBaseOccurredAt(at), ReaderID: readerID}
}

func buildBookCopyRemovedFromCirculation(at time.Time) *BookCopyRemovedFromCirculation {
	return &BookCopyRemovedFromCirculation{EventBase: eventsourcing.NewEventBaseOccurredAt(at)}
}

// NewEventRegistry returns a registry that knows all events of the library.
func NewEventRegistry() *eventsourcing.EventRegistry {
	return eventsourcing.NewEventRegistry().
		MustRegister(BookCopyAddedToCirculationEventType, func() eventsourcing.Event { return &BookCopyAddedToCirculation{} }).
		MustRegister(BookCopyLentToReaderEventType, func() eventsourcing.Event { return &BookCopyLentToReader{} }).
		MustRegister(BookCopyReturnedByReaderEventType, func() eventsourcing.Event { return &BookCopyReturnedByReader{} }).
		MustRegister(BookCopyRemovedFromCirculationEventType, func() eventsourcing.Event { return &BookCopyRemovedFromCirculation{} })
}

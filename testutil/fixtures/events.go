package fixtures

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
	SomethingHasHappenedEventType           = "SomethingHasHappened"
)

// BookCopyEvent is implemented by all events of the BookCopy aggregate.
type BookCopyEvent interface {
	eventsourcing.Event
	IsBookCopyEvent()
}

// LendingEvent is implemented by the events that involve a reader.
type LendingEvent interface {
	BookCopyEvent
	Reader() uuid.UUID
}

// BookCopyAddedToCirculation represents when a book copy is added to library circulation.
type BookCopyAddedToCirculation struct {
	eventsourcing.EventBase
	ISBN  string `json:"isbn"`
	Title string `json:"title"`
}

// BuildBookCopyAddedToCirculation creates a new BookCopyAddedToCirculation event.
func BuildBookCopyAddedToCirculation(isbn, title string, occurredAt time.Time) *BookCopyAddedToCirculation {
	return &BookCopyAddedToCirculation{
		EventBase: eventsourcing.NewEventBaseOccurredAt(occurredAt),
		ISBN:      isbn,
		Title:     title,
	}
}

func (e *BookCopyAddedToCirculation) IsBookCopyEvent() {}

// BookCopyLentToReader represents when a book copy is lent to a reader.
type BookCopyLentToReader struct {
	eventsourcing.EventBase
	ReaderID uuid.UUID `json:"readerId"`
}

// BuildBookCopyLentToReader creates a new BookCopyLentToReader event.
func BuildBookCopyLentToReader(readerID uuid.UUID, occurredAt time.Time) *BookCopyLentToReader {
	return &BookCopyLentToReader{
		EventBase: eventsourcing.NewEventBaseOccurredAt(occurredAt),
		ReaderID:  readerID,
	}
}

func (e *BookCopyLentToReader) IsBookCopyEvent() {}

// Reader returns the reader the copy was lent to.
func (e *BookCopyLentToReader) Reader() uuid.UUID {
	return e.ReaderID
}

// BookCopyReturnedByReader represents when a reader returns a book copy.
type BookCopyReturnedByReader struct {
	eventsourcing.EventBase
	ReaderID uuid.UUID `json:"readerId"`
}

// BuildBookCopyReturnedByReader creates a new BookCopyReturnedByReader event.
func BuildBookCopyReturnedByReader(readerID uuid.UUID, occurredAt time.Time) *BookCopyReturnedByReader {
	return &BookCopyReturnedByReader{
		EventBase: eventsourcing.NewEventBaseOccurredAt(occurredAt),
		ReaderID:  readerID,
	}
}

func (e *BookCopyReturnedByReader) IsBookCopyEvent() {}

// Reader returns the reader who returned the copy.
func (e *BookCopyReturnedByReader) Reader() uuid.UUID {
	return e.ReaderID
}

// BookCopyRemovedFromCirculation represents when a book copy is removed from library circulation.
type BookCopyRemovedFromCirculation struct {
	eventsourcing.EventBase
}

// BuildBookCopyRemovedFromCirculation creates a new BookCopyRemovedFromCirculation event.
func BuildBookCopyRemovedFromCirculation(occurredAt time.Time) *BookCopyRemovedFromCirculation {
	return &BookCopyRemovedFromCirculation{EventBase: eventsourcing.NewEventBaseOccurredAt(occurredAt)}
}

func (e *BookCopyRemovedFromCirculation) IsBookCopyEvent() {}

// SomethingHasHappened is an event no BookCopy handler knows about.
type SomethingHasHappened struct {
	eventsourcing.EventBase
	Description string `json:"description"`
}

// BuildSomethingHasHappened creates a new SomethingHasHappened event.
func BuildSomethingHasHappened(description string, occurredAt time.Time) *SomethingHasHappened {
	return &SomethingHasHappened{
		EventBase:   eventsourcing.NewEventBaseOccurredAt(occurredAt),
		Description: description,
	}
}

// NewEventRegistry returns a registry that knows all fixture events.
func NewEventRegistry() *eventsourcing.EventRegistry {
	return eventsourcing.NewEventRegistry().
		MustRegister(BookCopyAddedToCirculationEventType, func() eventsourcing.Event { return &BookCopyAddedToCirculation{} }).
		MustRegister(BookCopyLentToReaderEventType, func() eventsourcing.Event { return &BookCopyLentToReader{} }).
		MustRegister(BookCopyReturnedByReaderEventType, func() eventsourcing.Event { return &BookCopyReturnedByReader{} }).
		MustRegister(BookCopyRemovedFromCirculationEventType, func() eventsourcing.Event { return &BookCopyRemovedFromCirculation{} }).
		MustRegister(SomethingHasHappenedEventType, func() eventsourcing.Event { return &SomethingHasHappened{} })
}

package library

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventsourcing"
	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventsourcing/repository"
)

// MaxBooksPerReader is the number of book copies a reader may have lent at the same time.
const MaxBooksPerReader = 10

const (
	commandAddBookCopy    = "add_book_copy"
	commandLendBookCopy   = "lend_book_copy"
	commandReturnBookCopy = "return_book_copy"
	commandRemoveBookCopy = "remove_book_copy"

	metricCommandDuration   = "library_command_duration_seconds"
	metricCommandRetries    = "library_command_retries_total"
	metricCommandRetryDelay = "library_command_retry_delay_seconds"

	logMsgCommandHandled    = "command handled"
	logMsgCommandRejected   = "command rejected"
	logMsgMaxRetriesReached = "giving up after concurrency conflicts"
	logMsgDiscardFailed     = "could not discard book copy"

	logAttrCommand  = "command"
	logAttrBookID   = "book_id"
	logAttrReaderID = "reader_id"
	logAttrAttempt  = "attempt"
	logAttrDuration = "duration_ms"
)

var ErrNilBookCopies = errors.New("book copies must not be nil")
var ErrNilLoans = errors.New("loans must not be nil")
var ErrEmptyReaderID = errors.New("empty reader id supplied")
var ErrReaderHasTooManyBooks = errors.New("reader has too many books lent")

// BookCopies loads and saves book copies. It is implemented by repository.Repository and repository.CachingRepository.
type BookCopies interface {
	Load(ctx context.Context, bookID uuid.UUID) (*BookCopy, error)
	Save(ctx context.Context, book *BookCopy) error
	Discard(book *BookCopy) error
}

// Loans tells how many book copies a reader currently has. It is eventually consistent.
type Loans interface {
	CurrentlyLentBy(ctx context.Context, readerID uuid.UUID) (int, error)
}

// Library handles the commands of the lending desk.
// Every command loads the book copy, decides and saves; a concurrency conflict repeats the whole cycle.
type Library struct {
	books    BookCopies
	loans    Loans
	now      func() time.Time
	retry    retryConfig
	observer eventsourcing.Observer
}

// Option configures a Library.
type Option func(*Library) error

// WithClock sets the clock that stamps the events, time.Now by default.
func WithClock(now func() time.Time) Option {
	return func(l *Library) error {
		l.now = now
		return nil
	}
}

// WithRetries configures how commands are retried after a concurrency conflict.
func WithRetries(options ...RetryOption) Option {
	return func(l *Library) error {
		config, err := buildRetryConfig(options)
		if err != nil {
			return err
		}

		l.retry = config

		return nil
	}
}

// WithLogger sets the logger for the Library.
func WithLogger(logger eventsourcing.Logger) Option {
	return func(l *Library) error {
		l.observer.Logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the Library, preferred over the plain logger.
func WithContextualLogger(logger eventsourcing.ContextualLogger) Option {
	return func(l *Library) error {
		l.observer.ContextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for command durations and retries.
func WithMetrics(collector eventsourcing.MetricsCollector) Option {
	return func(l *Library) error {
		l.observer.Metrics = collector
		return nil
	}
}

// WithTracing sets the tracing collector, which gets one span per command.
func WithTracing(collector eventsourcing.TracingCollector) Option {
	return func(l *Library) error {
		l.observer.Tracing = collector
		return nil
	}
}

// NewLibrary creates a Library on top of the book copy repository and the loan counts.
func NewLibrary(books BookCopies, loans Loans, options ...Option) (*Library, error) {
	if books == nil {
		return nil, ErrNilBookCopies
	}

	if loans == nil {
		return nil, ErrNilLoans
	}

	retry, _ := buildRetryConfig(nil)
	l := &Library{books: books, loans: loans, now: time.Now, retry: retry}

	for _, option := range options {
		if err := option(l); err != nil {
			return nil, err
		}
	}

	return l, nil
}

// AddBookCopy puts a new book copy into circulation. Adding a copy that exists already does nothing.
func (l *Library) AddBookCopy(ctx context.Context, bookID uuid.UUID, isbn, title, authors string) error {
	return l.handle(ctx, commandAddBookCopy, bookID, uuid.Nil, func(ctx context.Context) error {
		existing, err := l.books.Load(ctx, bookID)
		if err == nil {
			l.discardQuietly(ctx, existing)
			return nil
		}

		if !errors.Is(err, eventsourcing.ErrAggregateNotFound) {
			return err
		}

		book := NewBookCopy(bookID)
		if err = book.addToCirculation(isbn, title, authors, l.now()); err != nil {
			return err
		}

		return l.books.Save(ctx, book)
	})
}

// LendBookCopyToReader fails with ErrReaderHasTooManyBooks if the reader has MaxBooksPerReader copies lent.
func (l *Library) LendBookCopyToReader(ctx context.Context, bookID, readerID uuid.UUID) error {
	if readerID == uuid.Nil {
		return ErrEmptyReaderID
	}

	return l.handle(ctx, commandLendBookCopy, bookID, readerID, func(ctx context.Context) error {
		return l.decide(ctx, bookID, func(book *BookCopy) error {
			if book.LentTo != readerID {
				lent, err := l.loans.CurrentlyLentBy(ctx, readerID)
				if err != nil {
					return err
				}

				if lent >= MaxBooksPerReader {
					return ErrReaderHasTooManyBooks
				}
			}

			return book.lendToReader(readerID, l.now())
		})
	})
}

// ReturnBookCopyFromReader takes the book copy back from the reader it is lent to.
func (l *Library) ReturnBookCopyFromReader(ctx context.Context, bookID, readerID uuid.UUID) error {
	if readerID == uuid.Nil {
		return ErrEmptyReaderID
	}

	return l.handle(ctx, commandReturnBookCopy, bookID, readerID, func(ctx context.Context) error {
		return l.decide(ctx, bookID, func(book *BookCopy) error {
			return book.returnFromReader(readerID, l.now())
		})
	})
}

// RemoveBookCopyFromCirculation takes a book copy out of circulation, it must not be lent.
func (l *Library) RemoveBookCopyFromCirculation(ctx context.Context, bookID uuid.UUID) error {
	return l.handle(ctx, commandRemoveBookCopy, bookID, uuid.Nil, func(ctx context.Context) error {
		return l.decide(ctx, bookID, func(book *BookCopy) error {
			return book.removeFromCirculation(l.now())
		})
	})
}

// decide loads the book copy, runs the decision and saves the outcome.
// The book copy is discarded whenever nothing gets persisted.
func (l *Library) decide(ctx context.Context, bookID uuid.UUID, decision func(book *BookCopy) error) error {
	book, err := l.books.Load(ctx, bookID)
	if err != nil {
		return err
	}

	if err = decision(book); err != nil {
		l.discardQuietly(ctx, book)
		return err
	}

	if err = l.books.Save(ctx, book); err != nil && !errors.Is(err, repository.ErrPublishingFailed) {
		l.discardQuietly(ctx, book)
		return err
	}

	return err
}

func (l *Library) handle(ctx context.Context, command string, bookID, readerID uuid.UUID, fn func(ctx context.Context) error) error {
	ctx, span := l.observer.StartSpan(ctx, "library."+command, map[string]string{logAttrBookID: bookID.String()})
	start := time.Now()

	err := l.retryOnConflict(ctx, command, fn)

	duration := time.Since(start)
	labels := map[string]string{eventsourcing.LabelOperation: command, eventsourcing.LabelStatus: eventsourcing.StatusSuccess}

	if err != nil {
		labels[eventsourcing.LabelStatus] = eventsourcing.StatusError
		l.observer.Info(ctx, logMsgCommandRejected,
			logAttrCommand, command,
			logAttrBookID, bookID.String(),
			logAttrReaderID, readerID.String(),
			eventsourcing.LogAttrError, err.Error())
	} else {
		l.observer.Debug(ctx, logMsgCommandHandled,
			logAttrCommand, command,
			logAttrBookID, bookID.String(),
			logAttrReaderID, readerID.String(),
			logAttrDuration, eventsourcing.ToMilliseconds(duration))
	}

	l.observer.RecordDuration(ctx, metricCommandDuration, duration, labels)
	l.observer.FinishSpan(span, labels[eventsourcing.LabelStatus], nil)

	return err
}

func (l *Library) discardQuietly(ctx context.Context, book *BookCopy) {
	err := l.books.Discard(book)
	if err != nil && !errors.Is(err, repository.ErrUnknownAggregate) {
		l.observer.Warn(ctx, logMsgDiscardFailed, logAttrBookID, book.AggregateID().String(), eventsourcing.LogAttrError, err.Error())
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventsourcing"
	"github.com/AntonStoeckl/eventsourcing-dispatch-go/example/library"
)

const (
	defaultBooks      = 200
	defaultReaders    = 50
	defaultClerks     = 8
	defaultOperations = 250
	removalShare      = 10
)

// simulation drives the lending desk: it adds all book copies, lets the clerks lend and return
// copies to random readers concurrently, and finally removes every removalShare-th copy.
type simulation struct {
	books      int
	readers    int
	clerks     int
	operations int
	seed       int64
}

type outcome struct {
	succeeded int64
	rejected  int64
}

type counters struct {
	succeeded atomic.Int64
	rejected  atomic.Int64
}

func (s simulation) run(ctx context.Context, desk *library.Library) (outcome, error) {
	var c counters

	bookIDs := make([]uuid.UUID, s.books)
	for i := range bookIDs {
		bookIDs[i] = uuid.New()
		isbn := fmt.Sprintf("978-3-16-%06d-0", i)

		if err := c.track(desk.AddBookCopy(ctx, bookIDs[i], isbn, "Book "+strconv.Itoa(i), "Anonymous")); err != nil {
			return c.outcome(), err
		}
	}

	readerIDs := make([]uuid.UUID, s.readers)
	for i := range readerIDs {
		readerIDs[i] = uuid.New()
	}

	g, gctx := errgroup.WithContext(ctx)

	for clerk := 0; clerk < s.clerks; clerk++ {
		random := rand.New(rand.NewSource(s.seed + int64(clerk))) //nolint:gosec // no security concern in a simulation

		g.Go(func() error {
			for op := 0; op < s.operations; op++ {
				if gctx.Err() != nil {
					return gctx.Err()
				}

				bookID := bookIDs[random.Intn(len(bookIDs))]
				readerID := readerIDs[random.Intn(len(readerIDs))]

				var err error
				if random.Intn(2) == 0 {
					err = desk.LendBookCopyToReader(gctx, bookID, readerID)
				} else {
					err = desk.ReturnBookCopyFromReader(gctx, bookID, readerID)
				}

				if err = c.track(err); err != nil {
					return err
				}
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return c.outcome(), err
	}

	for i := 0; i < len(bookIDs); i += removalShare {
		if err := c.track(desk.RemoveBookCopyFromCirculation(ctx, bookIDs[i])); err != nil {
			return c.outcome(), err
		}
	}

	return c.outcome(), nil
}

// track counts the result of a command. Rejections by the library rules are expected, anything else ends the simulation.
func (c *counters) track(err error) error {
	switch {
	case err == nil:
		c.succeeded.Add(1)
		return nil
	case isRejection(err):
		c.rejected.Add(1)
		return nil
	default:
		return err
	}
}

func (c *counters) outcome() outcome {
	return outcome{succeeded: c.succeeded.Load(), rejected: c.rejected.Load()}
}

func isRejection(err error) bool {
	return errors.Is(err, library.ErrBookCopyNotInCirculation) ||
		errors.Is(err, library.ErrBookCopyAlreadyLent) ||
		errors.Is(err, library.ErrBookCopyNotLentToReader) ||
		errors.Is(err, library.ErrBookCopyIsLent) ||
		errors.Is(err, library.ErrReaderHasTooManyBooks) ||
		errors.Is(err, eventsourcing.ErrConcurrencyConflict)
}

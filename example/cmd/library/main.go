// Command library runs a lending desk simulation on top of the event-sourcing building blocks.
//
// Book copies are added, lent and returned by concurrent clerks. Every saved event goes through an
// AsyncEventBus into a TransactionalListener that maintains the loan counts projection. The storage
// engine, locking strategy, bus and listener settings come from the config package.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/AntonStoeckl/eventsourcing-dispatch-go/config"
	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventsourcing"
	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventsourcing/eventhandling"
	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventsourcing/repository"
	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventstore"
	"github.com/AntonStoeckl/eventsourcing-dispatch-go/example/library"
	"github.com/AntonStoeckl/eventsourcing-dispatch-go/logrusadapter"
	"github.com/AntonStoeckl/eventsourcing-dispatch-go/promadapters"
)

const shutdownTimeout = 10 * time.Second

func main() {
	var (
		configPath = flag.String("config", "", "path of a YAML configuration file")
		books      = flag.Int("books", defaultBooks, "number of book copies to add")
		readers    = flag.Int("readers", defaultReaders, "number of readers")
		clerks     = flag.Int("clerks", defaultClerks, "number of concurrent clerks")
		operations = flag.Int("operations", defaultOperations, "number of lend or return operations per clerk")
	)

	flag.Parse()

	conf, err := config.Load(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("could not load configuration")
	}

	logger, err := conf.Log.NewLogger()
	if err != nil {
		logrus.WithError(err).Fatal("could not create logger")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var metrics eventsourcing.MetricsCollector
	if conf.Metrics.Enable {
		registry := prometheus.NewRegistry()

		collector, metricsErr := promadapters.NewMetricsCollector(registry)
		if metricsErr != nil {
			logger.WithError(metricsErr).Fatal("could not create metrics collector")
		}

		metrics = collector
		server := serveMetrics(conf.Metrics.Addr, registry, logger)
		defer shutdownServer(server, logger)
	}

	sim := simulation{books: *books, readers: *readers, clerks: *clerks, operations: *operations, seed: time.Now().UnixNano()}

	if err = run(ctx, conf, logrusadapter.NewFromLogger(logger), metrics, sim); err != nil {
		logger.WithError(err).Fatal("simulation failed")
	}

	if conf.Metrics.Enable {
		logger.Info("serving metrics until interrupted")
		<-ctx.Done()
	}
}

// run wires the components from the configuration and runs the simulation. A nil metrics collector disables metrics.
func run(ctx context.Context, conf *config.Config, logger *logrusadapter.Logger, metrics eventsourcing.MetricsCollector, sim simulation) error {
	storeOptions := []eventstore.Option{eventstore.WithContextualLogger(logger)}
	busOptions := append(conf.Bus.Options(), eventhandling.WithContextualLogger(logger))
	listenerOptions := append(conf.Listener.Options(), eventhandling.WithBatchContextualLogger(logger))
	libraryOptions := []library.Option{library.WithContextualLogger(logger)}

	strategy, err := conf.Repository.Strategy()
	if err != nil {
		return err
	}

	repositoryOptions := []repository.Option{repository.WithContextualLogger(logger), repository.WithLockingStrategy(strategy)}

	if metrics != nil {
		storeOptions = append(storeOptions, eventstore.WithMetrics(metrics))
		busOptions = append(busOptions, eventhandling.WithMetrics(metrics))
		listenerOptions = append(listenerOptions, eventhandling.WithBatchMetrics(metrics))
		repositoryOptions = append(repositoryOptions, repository.WithMetrics(metrics))
		libraryOptions = append(libraryOptions, library.WithMetrics(metrics))
	}

	store, err := openStorage(ctx, conf, storeOptions...)
	if err != nil {
		return err
	}
	defer store.Close()

	loanCounts := library.NewLoanCounts(store.counters)

	projection, err := eventhandling.NewTransactionalListener(library.NewLoanCountsListener(loanCounts), store.txManager, listenerOptions...)
	if err != nil {
		return err
	}

	if err = projection.Start(); err != nil {
		return err
	}

	bus, err := eventhandling.NewAsyncEventBus(busOptions...)
	if err != nil {
		return errors.Join(err, stopWithin(projection.Stop))
	}

	if err = bus.Subscribe(projection); err != nil {
		return errors.Join(err, stopWithin(bus.Shutdown), stopWithin(projection.Stop))
	}

	bookCopies, err := newBookCopies(conf.Repository, store.events, append(repositoryOptions, repository.WithEventBus(bus))...)
	if err != nil {
		return errors.Join(err, stopWithin(bus.Shutdown), stopWithin(projection.Stop))
	}

	desk, err := library.NewLibrary(bookCopies, loanCounts, libraryOptions...)
	if err != nil {
		return errors.Join(err, stopWithin(bus.Shutdown), stopWithin(projection.Stop))
	}

	outcome, simErr := sim.run(ctx, desk)

	// The bus hands its last events to the projection before the projection drains its buffer.
	if err = errors.Join(simErr, stopWithin(bus.Shutdown), stopWithin(projection.Stop)); err != nil {
		return err
	}

	return report(ctx, logger, loanCounts, outcome, projection.DroppedCount())
}

func newBookCopies(conf config.Repository, store eventsourcing.EventStore, options ...repository.Option) (library.BookCopies, error) {
	if conf.CacheSize > 0 {
		return repository.NewCachingRepository(library.BookCopyAggregateType, library.NewBookCopy, store, conf.CacheSize, options...)
	}

	return repository.NewRepository(library.BookCopyAggregateType, library.NewBookCopy, store, options...)
}

func report(ctx context.Context, logger *logrusadapter.Logger, loanCounts *library.LoanCounts, outcome outcome, dropped int64) error {
	inCirculation, err := loanCounts.InCirculation(ctx)
	if err != nil {
		return err
	}

	lentOut, err := loanCounts.LentOut(ctx)
	if err != nil {
		return err
	}

	logger.InfoContext(ctx, "simulation finished",
		"books_in_circulation", inCirculation,
		"books_lent_out", lentOut,
		"commands_succeeded", outcome.succeeded,
		"commands_rejected", outcome.rejected,
		"events_dropped", dropped)

	return nil
}

func stopWithin(stop func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return stop(ctx)
}

func serveMetrics(addr string, registry *prometheus.Registry, logger *logrus.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("metrics server stopped")
		}
	}()

	return server
}

func shutdownServer(server *http.Server, logger *logrus.Logger) {
	if err := stopWithin(server.Shutdown); err != nil {
		logger.WithError(err).Warn("could not shut down metrics server")
	}
}

package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/eventsourcing-dispatch-go/config"
	"github.com/AntonStoeckl/eventsourcing-dispatch-go/logrusadapter"
	"github.com/AntonStoeckl/eventsourcing-dispatch-go/promadapters"
)

func givenConfig(t *testing.T, env map[string]string) *config.Config {
	t.Helper()

	for key, value := range env {
		t.Setenv(key, value)
	}

	conf, err := config.Load("")
	require.NoError(t, err)

	return conf
}

func givenSmallSimulation() simulation {
	return simulation{books: 20, readers: 5, clerks: 4, operations: 25, seed: 42}
}

func finishedEntry(t *testing.T, hook *logrustest.Hook) *logrus.Entry {
	t.Helper()

	for _, entry := range hook.AllEntries() {
		if entry.Message == "simulation finished" {
			return entry
		}
	}

	require.Fail(t, "no simulation finished entry logged")

	return nil
}

func Test_Run_When_UsingTheConfiguredEngine(t *testing.T) {
	testCases := []struct {
		description string
		env         func(t *testing.T) map[string]string
	}{
		{
			description: "memory engine with optimistic locking",
			env: func(_ *testing.T) map[string]string {
				return map[string]string{"EVENTSOURCING_STORAGE_ENGINE": config.EngineMemory}
			},
		},
		{
			description: "memory engine with pessimistic locking and a cache",
			env: func(_ *testing.T) map[string]string {
				return map[string]string{
					"EVENTSOURCING_STORAGE_ENGINE":   config.EngineMemory,
					"EVENTSOURCING_LOCKING_STRATEGY": "pessimistic",
					"EVENTSOURCING_CACHE_SIZE":       "8",
				}
			},
		},
		{
			description: "bolt engine",
			env: func(t *testing.T) map[string]string {
				return map[string]string{
					"EVENTSOURCING_STORAGE_ENGINE": config.EngineBolt,
					"EVENTSOURCING_BOLT_FILE":      filepath.Join(t.TempDir(), "library.db"),
				}
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			// setup
			conf := givenConfig(t, tc.env(t))
			logger, hook := logrustest.NewNullLogger()

			// act
			err := run(context.Background(), conf, logrusadapter.NewFromLogger(logger), nil, givenSmallSimulation())

			// assert
			require.NoError(t, err)

			entry := finishedEntry(t, hook)
			// every tenth copy is removed unless it is lent at that moment
			assert.GreaterOrEqual(t, entry.Data["books_in_circulation"], 18)
			assert.LessOrEqual(t, entry.Data["books_in_circulation"], 20)
			assert.EqualValues(t, 0, entry.Data["events_dropped"])
			assert.GreaterOrEqual(t, entry.Data["books_lent_out"], 0)
		})
	}
}

func Test_Run_When_MetricsAreEnabled(t *testing.T) {
	// setup
	conf := givenConfig(t, map[string]string{"EVENTSOURCING_STORAGE_ENGINE": config.EngineMemory})
	logger, _ := logrustest.NewNullLogger()
	registry := prometheus.NewRegistry()
	metrics, err := promadapters.NewMetricsCollector(registry)
	require.NoError(t, err)

	// act
	err = run(context.Background(), conf, logrusadapter.NewFromLogger(logger), metrics, givenSmallSimulation())

	// assert
	require.NoError(t, err)

	families, err := registry.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, family := range families {
		names = append(names, family.GetName())
	}

	assert.Contains(t, names, "library_command_duration_seconds")
}

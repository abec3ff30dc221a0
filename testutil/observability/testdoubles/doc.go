// Package testdoubles provides spies for the observability interfaces of package eventsourcing.
//
// The spies record every call behind a mutex, so they can be shared by the goroutines of an event bus
// and inspected afterward by the test.
package testdoubles

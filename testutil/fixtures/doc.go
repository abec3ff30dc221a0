// Package fixtures contains a minimal event-sourced domain for testing.
//
// The BookCopy aggregate of a library management domain and its events are used by the tests of the
// repository, the event handling and the storage engines. The events carry a small interface hierarchy
// (BookCopyEvent, LendingEvent) so that handler resolution by specificity can be tested too.
//
// This is testing infrastructure - not production domain code. For a complete wiring example, see example/.
package fixtures

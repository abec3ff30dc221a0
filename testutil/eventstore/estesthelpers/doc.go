// Package estesthelpers provides EventStore-agnostic test utilities.
//
// Test ID Generation:
//
//	GivenUniqueID: generates UUID v7 for test aggregate IDs
//
// Test Data Setup:
//
//	GivenBookCopyEvents: builds a contiguous run of numbered book copy events
//	GivenEventsWereAppended: appends events and fails the test on error
//
// Contract:
//
//	RunEventStoreContract: the behavior every eventsourcing.EventStore engine must show,
//	run by the memory, bolt and postgres engine tests against their own instances
package estesthelpers

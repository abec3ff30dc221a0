// Package library is an example domain built on the event-sourcing packages of this module.
//
// A BookCopy aggregate is added to circulation, lent to and returned by readers, and removed again.
// Library handles these commands with a repository and retries them after concurrency conflicts.
// LoanCounts is a projection of the emitted events, kept in memory, in bolt or in postgres.
package library

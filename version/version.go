// Package version provides types to work with Event Stream versions,
// used for optimistic concurrency checks on the Event Store.
package version

// Version is the type to specify Event Stream versions.
// Versions start from 1, as they represent the length of a single Event Stream.
type Version uint64

// SelectFromBeginning is a Selector value that will return all the Domain Events
// in an Event Stream.
var SelectFromBeginning = Selector{From: 0}

// Selector specifies which slice of the Event Stream to select when streaming
// Domain Events from the Event Store.
//
// The From version is inclusive.
type Selector struct {
	From Version
}

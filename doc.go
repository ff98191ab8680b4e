// Package eventfold contains types and abstractions to write Event-sourced
// applications, without having to take care of the infrastructure setup
// necessary to run such an architecture.
//
// The library contains multiple packages, you might want to start from
// `aggregate` to implement your Aggregate types, backed by the Event Store
// implementations in `event`, `postgres` or `sqlite`.
//
// `bus` and `dispatcher` deliver committed Domain Events to in-process
// subscribers, and `projection` helps building Read Models out of them.
package eventfold

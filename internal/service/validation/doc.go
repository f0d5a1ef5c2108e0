// Package validation runs PAN validation over configured sources.
//
// A run takes the per-source lock, loads the records, pushes them through
// the pan pipeline, stores the result in the redis cache and the postgres
// audit tables when those are configured, and hands it to the report sinks.
// Storage is reached only through the interfaces in repository.go.
package validation

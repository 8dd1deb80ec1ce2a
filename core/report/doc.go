// Package report defines the result of a run and the Sink contract used to
// publish it. Concrete sinks live in infra/sinks and register themselves by
// type name; NewSink builds a single sink or a MultiSink from configuration.
package report

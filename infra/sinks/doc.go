// Package sinks contains the report.Sink implementations selectable from the
// configuration. Importing the package registers them.
package sinks

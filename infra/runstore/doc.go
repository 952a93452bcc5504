// Package runstore provides SQL backed implementations of runs.Store.
//
// Importing the package registers the "sqlite" and "postgres" backends with
// runs.Open. Both read a single "dsn" setting from the module config.
package runstore

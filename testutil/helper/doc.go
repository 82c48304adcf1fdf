// Package helper provides test doubles and fixtures shared by the activity store test suites.
//
// It contains spies for the logging, metrics and tracing interfaces, a configurable
// in-memory StoreStub, and fixture builders for activities.
package helper

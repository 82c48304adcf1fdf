// Package catalog exposes the activity catalog operations used by the website and the admin area.
//
// Every operation returns an activitystore.Result envelope instead of an error. The Code of the envelope
// tells apart success, fallback data, missing activities, invalid input and backend failures.
// Single-activity lookups by id or slug are the only operations that answer from the fallback
// table, and only when the backend failed; a missing activity is always reported as not found.
//
// Wrap a Service with Observe to get a span, duration metrics and completion logs per operation.
package catalog

// Package observability provides the structured zap logger and the local
// activity log for TaskFlow. Activity is persisted as JSON Lines so it can be
// filtered and summarized without a server round-trip.
package observability

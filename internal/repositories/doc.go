// Package repositories provides the persistence layer for the local run log.
//
// The log is write-only diagnostics: the engine records each run and the
// items it failed to apply, the way the legacy tool appended failed
// subreddits to a side log file. Nothing here is read back by a later run —
// every run still starts from a freshly fetched snapshot pair.
package repositories

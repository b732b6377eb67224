// Package tasks implements the reconciliation engine that converges a
// destination Reddit account's state toward a source account's state.
//
// The core abstraction is [TransferEngine], which orchestrates a run:
// fetch both snapshots, assert the accounts use distinct credentials,
// compute set and saved-item diffs, apply the mutations with per-item
// failure tolerance, then copy preferences. Operations emit progress
// updates via channels for non-blocking status reporting to the CLI/UI
// layers.
//
// A run is strictly sequential: every phase assumes its diff was computed
// against the same immutable snapshot pair, so nothing is re-fetched
// mid-run and nothing is applied concurrently.
package tasks

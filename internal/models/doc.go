// Package models defines domain entities for the rdx account transfer tool.
//
// The central type is [Snapshot], an immutable point-in-time capture of one
// Reddit account's subscriptions, friends, saved items, and preferences.
// Snapshots are built once per account per run by the tasks package and every
// diff in a run is computed against the same snapshot pair.
//
// Saved items are identified by [ItemKey], the (kind, id) pair. Metadata such
// as title or score never participates in identity: two listings of the same
// item with different vote counts are the same item.
package models

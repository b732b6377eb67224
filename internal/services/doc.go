// Package services defines the [Service] interface for talking to the Reddit
// API and its OAuth2-backed implementation [RedditService].
//
// The transfer engine in the tasks package treats Service as a black box: it
// never sees pagination cursors, token refreshes, or rate limiting. Each
// Service value is bound to exactly one account's script-app credentials;
// a transfer holds two of them.
package services

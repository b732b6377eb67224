package models

import (
	"fmt"
	"time"
)

// Kind identifies the type of a saved item. The set is closed: Reddit only
// allows saving submissions (links) and comments, so anything else appearing
// in a saved listing means the upstream parser is broken.
type Kind int

const (
	KindSubmission Kind = iota
	KindComment
)

// ParseKind maps a Reddit thing kind ("t3", "t1") to a [Kind].
// Unrecognized kinds are a construction-time error, never a valid value.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "t3":
		return KindSubmission, nil
	case "t1":
		return KindComment, nil
	default:
		return 0, fmt.Errorf("unknown thing kind %q", s)
	}
}

func (k Kind) String() string {
	switch k {
	case KindSubmission:
		return "submission"
	case KindComment:
		return "comment"
	default:
		return ""
	}
}

// Prefix returns the Reddit fullname type prefix for the kind ("t3", "t1").
func (k Kind) Prefix() string {
	switch k {
	case KindSubmission:
		return "t3"
	case KindComment:
		return "t1"
	default:
		return ""
	}
}

// Valid reports whether k is a member of the closed kind set.
func (k Kind) Valid() bool {
	return k == KindSubmission || k == KindComment
}

// ItemKey is the identity of a saved item for all set and diff operations.
type ItemKey struct {
	Kind Kind
	ID   string
}

func (k ItemKey) String() string {
	return k.Kind.Prefix() + "_" + k.ID
}

// SavedItem is a submission or comment marked "saved" by a user.
type SavedItem struct {
	Kind      Kind
	ID        string
	Title     string
	Subreddit string
	Author    string
	Permalink string
	CreatedAt time.Time
	NSFW      bool
}

// Key returns the item's (kind, id) identity.
func (s SavedItem) Key() ItemKey {
	return ItemKey{Kind: s.Kind, ID: s.ID}
}

// Fullname returns the Reddit fullname (e.g. "t3_abc123") used by the
// save/unsave endpoints.
func (s SavedItem) Fullname() string {
	return s.Key().String()
}

// Snapshot is an immutable capture of one account's remote state.
//
// Saved is ordered oldest-first: the listing API returns newest-first and the
// fetcher reverses it so that re-saving items sequentially recreates the
// source's chronological order on the destination.
type Snapshot struct {
	Username      string
	Identity      string // API client id; distinguishes credential identities
	Subscriptions map[string]struct{}
	Friends       map[string]struct{}
	Saved         []SavedItem
	Preferences   map[string]any
}

// SavedKeys returns the identity set of the snapshot's saved items.
func (s *Snapshot) SavedKeys() map[ItemKey]struct{} {
	keys := make(map[ItemKey]struct{}, len(s.Saved))
	for _, item := range s.Saved {
		keys[item.Key()] = struct{}{}
	}
	return keys
}

// package services defines interface Service for interacting with the Reddit API
package services

import (
	"context"

	"github.com/natanlao/rdx/internal/models"
)

// Service defines the operations the transfer engine needs from a remote
// account handle. All listing methods return complete, exhaustively paginated
// results; all mutating methods act on the bound account.
type Service interface {
	// Authenticate performs the OAuth2 password grant for the bound account.
	// Must be called before any other method.
	Authenticate(ctx context.Context, password string) error

	// ListSubscriptions retrieves the full set of subscribed subreddit names.
	ListSubscriptions(ctx context.Context) (map[string]struct{}, error)

	// ListFriends retrieves the full set of friended usernames.
	ListFriends(ctx context.Context) (map[string]struct{}, error)

	// ListSaved retrieves all saved items in the order the API returns them
	// (newest-first).
	ListSaved(ctx context.Context) ([]models.SavedItem, error)

	// Preferences retrieves the account's full flat preference map.
	Preferences(ctx context.Context) (map[string]any, error)

	// UpdatePreferences overwrites the account's preferences in one bulk call.
	UpdatePreferences(ctx context.Context, prefs map[string]any) error

	// Subscribe subscribes the account to a subreddit by display name.
	Subscribe(ctx context.Context, subreddit string) error

	// Unsubscribe removes a subreddit subscription.
	Unsubscribe(ctx context.Context, subreddit string) error

	// Friend adds a user to the account's friend list.
	Friend(ctx context.Context, username string) error

	// Unfriend removes a user from the account's friend list.
	Unfriend(ctx context.Context, username string) error

	// Save marks a submission or comment as saved.
	Save(ctx context.Context, key models.ItemKey) error

	// Unsave removes a submission or comment from the saved listing.
	Unsave(ctx context.Context, key models.ItemKey) error

	// Username returns the account name the service is bound to.
	Username() string

	// Identity returns the opaque credential identity (the script-app client
	// id). Two services with equal identities share API keys.
	Identity() string

	// Name returns a display name for the service (e.g. "Reddit")
	Name() string
}

package tasks

import (
	"context"
	"fmt"

	"github.com/natanlao/rdx/internal/models"
	"github.com/natanlao/rdx/internal/services"
	"github.com/natanlao/rdx/internal/shared"
)

// FetchSnapshot builds an immutable [models.Snapshot] by eagerly fetching all
// four state categories for one account. Any failure is fatal: a partial
// snapshot is never returned, because a diff against it could issue
// destructive mutations.
//
// Saved items are deduplicated by (kind, id) and reversed into oldest-first
// order, recovering the chronology the newest-first listing API obscures.
func FetchSnapshot(ctx context.Context, svc services.Service, progress chan<- ProgressUpdate) (*models.Snapshot, error) {
	snap := &models.Snapshot{
		Username: svc.Username(),
		Identity: svc.Identity(),
	}

	sendProgress(progress, fetchCategoryUpdate(1, 4, svc.Username(), "subscriptions"))
	subs, err := svc.ListSubscriptions(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: subscriptions for /u/%s: %v", shared.ErrFetchFailed, svc.Username(), err)
	}
	snap.Subscriptions = subs

	sendProgress(progress, fetchCategoryUpdate(2, 4, svc.Username(), "friends"))
	friends, err := svc.ListFriends(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: friends for /u/%s: %v", shared.ErrFetchFailed, svc.Username(), err)
	}
	snap.Friends = friends

	sendProgress(progress, fetchCategoryUpdate(3, 4, svc.Username(), "saved items"))
	saved, err := FetchSaved(ctx, svc)
	if err != nil {
		return nil, err
	}
	snap.Saved = saved

	sendProgress(progress, fetchCategoryUpdate(4, 4, svc.Username(), "preferences"))
	prefs, err := svc.Preferences(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: preferences for /u/%s: %v", shared.ErrFetchFailed, svc.Username(), err)
	}
	snap.Preferences = prefs

	return snap, nil
}

// FetchSaved fetches the saved listing and converts it from the
// API's newest-first order to oldest-first, dropping duplicate identities.
func FetchSaved(ctx context.Context, svc services.Service) ([]models.SavedItem, error) {
	newestFirst, err := svc.ListSaved(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: saved items for /u/%s: %v", shared.ErrFetchFailed, svc.Username(), err)
	}

	seen := make(map[models.ItemKey]struct{}, len(newestFirst))
	items := make([]models.SavedItem, 0, len(newestFirst))
	for _, item := range newestFirst {
		if _, dup := seen[item.Key()]; dup {
			continue
		}
		seen[item.Key()] = struct{}{}
		items = append(items, item)
	}

	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return items, nil
}

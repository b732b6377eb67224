package tasks

import (
	"fmt"

	"github.com/natanlao/rdx/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchSource Phase = iota
	FetchDest
	Subscriptions
	Friends
	UnsaveItems
	SaveItems
	CopyPreferences
)

func (p Phase) String() string {
	switch p {
	case FetchSource:
		return "fetch_source"
	case FetchDest:
		return "fetch_dest"
	case Subscriptions:
		return "subscriptions"
	case Friends:
		return "friends"
	case UnsaveItems:
		return "unsave_items"
	case SaveItems:
		return "save_items"
	case CopyPreferences:
		return "copy_preferences"
	default:
		return ""
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
		// Sent successfully
	default:
		// Channel full or closed, skip this update
	}
}

// fetchCategoryUpdate reports one of the four snapshot fetch steps. The phase
// (source vs destination) is fixed up by the caller via withPhase.
func fetchCategoryUpdate(step, total int, username, category string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSource,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Fetching %s for /u/%s...", category, username),
	}
}

func withPhase(update ProgressUpdate, phase Phase) ProgressUpdate {
	update.Phase = phase
	return update
}

func subscribeUpdate(step, total int, subreddit string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Subscriptions,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Subscribe to /r/%s", step, total, subreddit),
	}
}

func friendUpdate(step, total int, username string, add bool) ProgressUpdate {
	verb := "Friend"
	if !add {
		verb = "Unfriend"
	}
	return ProgressUpdate{
		Phase:   Friends,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s /u/%s", step, total, verb, username),
	}
}

func unsaveUpdate(step, total int, item models.SavedItem) ProgressUpdate {
	return ProgressUpdate{
		Phase:   UnsaveItems,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Unsave %s %s", step, total, item.Kind, item.Fullname()),
	}
}

func saveUpdate(step, total int, item models.SavedItem) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SaveItems,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Save %s %s", step, total, item.Kind, item.Fullname()),
		Data:    item,
	}
}

func copyPreferencesUpdate(count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CopyPreferences,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Copying %d preferences...", count),
	}
}

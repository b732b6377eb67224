package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/natanlao/rdx/internal/models"
	"github.com/natanlao/rdx/internal/services"
	"github.com/natanlao/rdx/internal/shared"
)

// retryBaseDelay is the first backoff step for a failed per-item call.
const retryBaseDelay = 500 * time.Millisecond

// ItemFailure records one mutating call that failed after retries.
type ItemFailure struct {
	Item string
	Err  error
}

// CategoryReport aggregates outcomes for one mutation category.
type CategoryReport struct {
	Applied  int
	Failures []ItemFailure
}

// Failed returns the number of items that could not be applied.
func (c CategoryReport) Failed() int {
	return len(c.Failures)
}

// Report summarizes a run: applied and failed counts per category.
// It accompanies the run's result even when a later phase fails fatally,
// since earlier phases stay committed (the run is not transactional).
type Report struct {
	RunID         string
	Source        string
	Destination   string
	Subscriptions CategoryReport
	Friends       CategoryReport
	Unsaved       CategoryReport
	Saved         CategoryReport
	Preferences   int // preference keys copied
}

// FailureSink receives per-item failures as they happen, for durable
// recording outside the in-memory report.
type FailureSink interface {
	Record(runID, category, item string, err error)
}

type nopSink struct{}

func (nopSink) Record(string, string, string, error) {}

// EngineOpts contains optional dependencies for a [TransferEngine].
type EngineOpts struct {
	Logger   *log.Logger
	Failures FailureSink
	Retries  int // extra attempts per failed item call
}

// TransferEngine reconciles a destination account's state toward a source
// account's state. Both services must be authenticated before use.
type TransferEngine struct {
	src      services.Service
	dst      services.Service
	logger   *log.Logger
	failures FailureSink
	retries  int
	runID    string
}

// NewTransferEngine creates an engine bound to a source/destination pair.
func NewTransferEngine(src, dst services.Service, opts EngineOpts) *TransferEngine {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Failures == nil {
		opts.Failures = nopSink{}
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}

	return &TransferEngine{
		src:      src,
		dst:      dst,
		logger:   opts.Logger,
		failures: opts.Failures,
		retries:  opts.Retries,
		runID:    shared.GenerateID(),
	}
}

// RunID identifies this engine's run in the failure log.
func (e *TransferEngine) RunID() string {
	return e.runID
}

// EnsureDistinctIdentity rejects a source/destination pair that resolves to
// the same credential identity. Reddit issues one script-app key pair per
// account, so equal client ids mean both handles point at the same account
// and a sync would eat its own snapshot. Must pass before any mutating call.
func EnsureDistinctIdentity(src, dst services.Service) error {
	if src.Identity() == dst.Identity() {
		return fmt.Errorf("%w: generate one key pair per account", shared.ErrSameCredentials)
	}
	return nil
}

// Run performs a full transfer: subscriptions, friends, saved items, then
// preferences. Per-item failures are recorded and skipped; fetch errors,
// identity collisions, and unexpected saved-item kinds abort the run.
//
// The returned report is valid even when err != nil: phases that completed
// before the failure stay committed.
func (e *TransferEngine) Run(ctx context.Context, progress chan<- ProgressUpdate) (*Report, error) {
	report := &Report{
		RunID:       e.runID,
		Source:      e.src.Username(),
		Destination: e.dst.Username(),
	}

	if err := EnsureDistinctIdentity(e.src, e.dst); err != nil {
		return report, err
	}

	src, dst, err := e.fetchSnapshots(ctx, progress)
	if err != nil {
		return report, err
	}

	subDiff := ComputeSetDiff(src.Subscriptions, dst.Subscriptions)
	friendDiff := ComputeSetDiff(src.Friends, dst.Friends)
	savedDiff := ComputeSavedDiff(src.Saved, dst.Saved)

	if err := e.applySubscriptions(ctx, subDiff, &report.Subscriptions, progress); err != nil {
		return report, err
	}
	if err := e.applyFriends(ctx, friendDiff, &report.Friends, progress); err != nil {
		return report, err
	}
	if err := e.applySaved(ctx, savedDiff, report, progress); err != nil {
		return report, err
	}
	if err := e.copyPreferences(ctx, src, report, progress); err != nil {
		return report, err
	}

	return report, nil
}

// Subscriptions performs a subscribe-only transfer. Only the subscription
// sets are fetched; nothing else is touched.
func (e *TransferEngine) Subscriptions(ctx context.Context, progress chan<- ProgressUpdate) (*Report, error) {
	report := &Report{
		RunID:       e.runID,
		Source:      e.src.Username(),
		Destination: e.dst.Username(),
	}

	if err := EnsureDistinctIdentity(e.src, e.dst); err != nil {
		return report, err
	}

	sendProgress(progress, withPhase(fetchCategoryUpdate(1, 2, e.src.Username(), "subscriptions"), FetchSource))
	srcSubs, err := e.src.ListSubscriptions(ctx)
	if err != nil {
		return report, fmt.Errorf("%w: subscriptions for /u/%s: %v", shared.ErrFetchFailed, e.src.Username(), err)
	}

	sendProgress(progress, withPhase(fetchCategoryUpdate(2, 2, e.dst.Username(), "subscriptions"), FetchDest))
	dstSubs, err := e.dst.ListSubscriptions(ctx)
	if err != nil {
		return report, fmt.Errorf("%w: subscriptions for /u/%s: %v", shared.ErrFetchFailed, e.dst.Username(), err)
	}

	diff := ComputeSetDiff(srcSubs, dstSubs)
	if err := e.applySubscriptions(ctx, diff, &report.Subscriptions, progress); err != nil {
		return report, err
	}
	return report, nil
}

// Unsave removes the newest count saved items from one account. A count of
// zero or less unsaves everything. Used to wipe a mangled saved listing
// before re-running a transfer.
func (e *TransferEngine) Unsave(ctx context.Context, svc services.Service, count int, progress chan<- ProgressUpdate) (*Report, error) {
	report := &Report{
		RunID:       e.runID,
		Source:      svc.Username(),
		Destination: svc.Username(),
	}

	saved, err := FetchSaved(ctx, svc)
	if err != nil {
		return report, err
	}

	// Oldest-first, so the newest count items are the tail.
	if count > 0 && count < len(saved) {
		saved = saved[len(saved)-count:]
	}

	if err := e.unsaveItems(ctx, svc, saved, &report.Unsaved, progress); err != nil {
		return report, err
	}
	return report, nil
}

func (e *TransferEngine) fetchSnapshots(ctx context.Context, progress chan<- ProgressUpdate) (src, dst *models.Snapshot, err error) {
	srcProgress, srcDone := relayPhase(progress, FetchSource)
	src, err = FetchSnapshot(ctx, e.src, srcProgress)
	close(srcProgress)
	<-srcDone
	if err != nil {
		return nil, nil, err
	}

	dstProgress, dstDone := relayPhase(progress, FetchDest)
	dst, err = FetchSnapshot(ctx, e.dst, dstProgress)
	close(dstProgress)
	<-dstDone
	if err != nil {
		return nil, nil, err
	}

	return src, dst, nil
}

// relayPhase forwards snapshot-fetch updates with the phase rewritten, so the
// consumer can tell the source fetch from the destination fetch. The returned
// done channel closes once the relay has drained; callers must wait on it
// before closing or abandoning progress.
func relayPhase(progress chan<- ProgressUpdate, phase Phase) (chan ProgressUpdate, <-chan struct{}) {
	relay := make(chan ProgressUpdate, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range relay {
			sendProgress(progress, withPhase(update, phase))
		}
	}()
	return relay, done
}

// applySubscriptions applies only the add side of the diff. Unsubscribes are
// deliberately never issued during a transfer: new accounts are rate-limited
// and the computed removals are usually subreddits the destination owner
// still wants.
func (e *TransferEngine) applySubscriptions(ctx context.Context, diff SetDiff, report *CategoryReport, progress chan<- ProgressUpdate) error {
	total := len(diff.Add)
	for i, subreddit := range diff.Add {
		if err := ctx.Err(); err != nil {
			return err
		}

		sendProgress(progress, subscribeUpdate(i+1, total, subreddit))
		e.logger.Info("subscribe", "subreddit", subreddit)

		if err := e.applyItem(ctx, func(ctx context.Context) error {
			return e.dst.Subscribe(ctx, subreddit)
		}); err != nil {
			e.recordFailure("subscriptions", "/r/"+subreddit, err, report)
			continue
		}
		report.Applied++
	}
	return nil
}

// applyFriends applies both sides of the diff: missing friends are added and
// extra friends removed, converging the destination's list on the source's.
func (e *TransferEngine) applyFriends(ctx context.Context, diff SetDiff, report *CategoryReport, progress chan<- ProgressUpdate) error {
	total := len(diff.Add) + len(diff.Remove)
	step := 0

	for _, username := range diff.Remove {
		if err := ctx.Err(); err != nil {
			return err
		}

		step++
		sendProgress(progress, friendUpdate(step, total, username, false))
		e.logger.Info("unfriend", "user", username)

		if err := e.applyItem(ctx, func(ctx context.Context) error {
			return e.dst.Unfriend(ctx, username)
		}); err != nil {
			e.recordFailure("friends", "/u/"+username, err, report)
			continue
		}
		report.Applied++
	}

	for _, username := range diff.Add {
		if err := ctx.Err(); err != nil {
			return err
		}

		step++
		sendProgress(progress, friendUpdate(step, total, username, true))
		e.logger.Info("friend", "user", username)

		if err := e.applyItem(ctx, func(ctx context.Context) error {
			return e.dst.Friend(ctx, username)
		}); err != nil {
			e.recordFailure("friends", "/u/"+username, err, report)
			continue
		}
		report.Applied++
	}

	return nil
}

// applySaved unsaves the destination's extra items, then saves the source's
// missing items sequentially in oldest-first order. The save loop must not
// be reordered or parallelized: Reddit prepends each save to the listing,
// and sequential oldest-to-newest application is what recreates the source's
// chronology.
func (e *TransferEngine) applySaved(ctx context.Context, diff SavedDiff, report *Report, progress chan<- ProgressUpdate) error {
	if err := e.unsaveItems(ctx, e.dst, diff.Unsave, &report.Unsaved, progress); err != nil {
		return err
	}

	total := len(diff.Save)
	for i, item := range diff.Save {
		if err := ctx.Err(); err != nil {
			return err
		}

		if !item.Kind.Valid() {
			return fmt.Errorf("%w: %d", shared.ErrUnexpectedKind, item.Kind)
		}

		sendProgress(progress, saveUpdate(i+1, total, item))
		e.logger.Info("save", "kind", item.Kind.String(), "id", item.ID, "title", item.Title)

		if err := e.applyItem(ctx, func(ctx context.Context) error {
			return e.dst.Save(ctx, item.Key())
		}); err != nil {
			e.recordFailure("saved", item.Fullname(), err, &report.Saved)
			continue
		}
		report.Saved.Applied++
	}

	return nil
}

// unsaveItems removes items from svc's saved listing. An item whose kind is
// outside the closed set is a schema-invariant violation and aborts the
// phase; a failed unsave call is recorded and skipped.
func (e *TransferEngine) unsaveItems(ctx context.Context, svc services.Service, items []models.SavedItem, report *CategoryReport, progress chan<- ProgressUpdate) error {
	total := len(items)
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}

		if !item.Kind.Valid() {
			return fmt.Errorf("%w: %d", shared.ErrUnexpectedKind, item.Kind)
		}

		sendProgress(progress, unsaveUpdate(i+1, total, item))
		e.logger.Info("unsave", "kind", item.Kind.String(), "id", item.ID)

		if err := e.applyItem(ctx, func(ctx context.Context) error {
			return svc.Unsave(ctx, item.Key())
		}); err != nil {
			e.recordFailure("unsaved", item.Fullname(), err, report)
			continue
		}
		report.Applied++
	}
	return nil
}

// copyPreferences pushes the source's full preference map to the destination
// in one bulk call, last writer wins. Failure is fatal for this phase only;
// mutations from earlier phases stay committed.
func (e *TransferEngine) copyPreferences(ctx context.Context, src *models.Snapshot, report *Report, progress chan<- ProgressUpdate) error {
	if len(src.Preferences) == 0 {
		return nil
	}

	sendProgress(progress, copyPreferencesUpdate(len(src.Preferences)))
	e.logger.Info("copy preferences", "keys", len(src.Preferences), "from", src.Username, "to", e.dst.Username())

	if err := e.dst.UpdatePreferences(ctx, src.Preferences); err != nil {
		return fmt.Errorf("failed to copy preferences: %w", err)
	}

	report.Preferences = len(src.Preferences)
	return nil
}

// applyItem runs one mutating call with bounded retry and exponential
// backoff. Context cancellation stops retrying immediately.
func (e *TransferEngine) applyItem(ctx context.Context, fn func(context.Context) error) error {
	var err error
	backoff := retryBaseDelay

	for attempt := 0; attempt <= e.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		if err = fn(ctx); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
	}
	return err
}

func (e *TransferEngine) recordFailure(category, item string, err error, report *CategoryReport) {
	e.logger.Warn("apply failed", "category", category, "item", item, "err", err)
	e.failures.Record(e.runID, category, item, err)
	report.Failures = append(report.Failures, ItemFailure{Item: item, Err: err})
}

package tasks

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/natanlao/rdx/internal/models"
	"github.com/natanlao/rdx/internal/services"
	"github.com/natanlao/rdx/internal/shared"
)

type mockService struct {
	username string
	identity string

	subscriptions map[string]struct{}
	friends       map[string]struct{}
	saved         []models.SavedItem // newest-first, as the listing API returns
	prefs         map[string]any

	listSubsErr    error
	listFriendsErr error
	listSavedErr   error
	prefsErr       error
	updatePrefsErr error

	// Per-item failure injection. failuresLeft counts down per item so a
	// call can fail n times and then succeed, exercising the retry path.
	subscribeErr map[string]error
	saveErr      map[models.ItemKey]error
	unsaveErr    map[models.ItemKey]error
	failuresLeft map[string]int

	subscribed   []string
	unsubscribed []string
	friended     []string
	unfriended   []string
	savedCalls   []models.ItemKey
	unsavedCalls []models.ItemKey
	pushedPrefs  map[string]any
}

var _ services.Service = (*mockService)(nil)

func (m *mockService) Authenticate(ctx context.Context, password string) error { return nil }
func (m *mockService) Username() string                                        { return m.username }
func (m *mockService) Identity() string                                        { return m.identity }
func (m *mockService) Name() string                                            { return "Reddit" }

func (m *mockService) ListSubscriptions(ctx context.Context) (map[string]struct{}, error) {
	if m.listSubsErr != nil {
		return nil, m.listSubsErr
	}
	return m.subscriptions, nil
}

func (m *mockService) ListFriends(ctx context.Context) (map[string]struct{}, error) {
	if m.listFriendsErr != nil {
		return nil, m.listFriendsErr
	}
	return m.friends, nil
}

func (m *mockService) ListSaved(ctx context.Context) ([]models.SavedItem, error) {
	if m.listSavedErr != nil {
		return nil, m.listSavedErr
	}
	return m.saved, nil
}

func (m *mockService) Preferences(ctx context.Context) (map[string]any, error) {
	if m.prefsErr != nil {
		return nil, m.prefsErr
	}
	return m.prefs, nil
}

func (m *mockService) UpdatePreferences(ctx context.Context, prefs map[string]any) error {
	if m.updatePrefsErr != nil {
		return m.updatePrefsErr
	}
	m.pushedPrefs = prefs
	return nil
}

// consumeFailure reports whether a call keyed by item should still fail.
func (m *mockService) consumeFailure(item string) bool {
	if m.failuresLeft == nil {
		return false
	}
	if left, ok := m.failuresLeft[item]; ok && left > 0 {
		m.failuresLeft[item] = left - 1
		return true
	}
	return false
}

func (m *mockService) Subscribe(ctx context.Context, subreddit string) error {
	if err := m.subscribeErr[subreddit]; err != nil {
		return err
	}
	if m.consumeFailure(subreddit) {
		return fmt.Errorf("transient failure for /r/%s", subreddit)
	}
	m.subscribed = append(m.subscribed, subreddit)
	return nil
}

func (m *mockService) Unsubscribe(ctx context.Context, subreddit string) error {
	m.unsubscribed = append(m.unsubscribed, subreddit)
	return nil
}

func (m *mockService) Friend(ctx context.Context, username string) error {
	m.friended = append(m.friended, username)
	return nil
}

func (m *mockService) Unfriend(ctx context.Context, username string) error {
	m.unfriended = append(m.unfriended, username)
	return nil
}

func (m *mockService) Save(ctx context.Context, key models.ItemKey) error {
	if err := m.saveErr[key]; err != nil {
		return err
	}
	m.savedCalls = append(m.savedCalls, key)
	return nil
}

func (m *mockService) Unsave(ctx context.Context, key models.ItemKey) error {
	if err := m.unsaveErr[key]; err != nil {
		return err
	}
	m.unsavedCalls = append(m.unsavedCalls, key)
	return nil
}

func (m *mockService) mutationCount() int {
	return len(m.subscribed) + len(m.unsubscribed) + len(m.friended) +
		len(m.unfriended) + len(m.savedCalls) + len(m.unsavedCalls) + len(m.pushedPrefs)
}

// recordingSink captures failure-sink calls for assertions.
type recordingSink struct {
	records []string
}

func (s *recordingSink) Record(runID, category, item string, err error) {
	s.records = append(s.records, category+"/"+item)
}

func drained(buf int) chan ProgressUpdate {
	ch := make(chan ProgressUpdate, buf)
	go func() {
		for range ch {
		}
	}()
	return ch
}

func TestTransferEngine_Run(t *testing.T) {
	oldPost := saved(models.KindSubmission, "old")
	midComment := saved(models.KindComment, "mid")
	newPost := saved(models.KindSubmission, "new")
	strayPost := saved(models.KindSubmission, "stray")

	src := &mockService{
		username:      "alice",
		identity:      "client-a",
		subscriptions: set("golang", "programming", "aww"),
		friends:       set("carol", "dave"),
		// Listing order is newest-first; the engine re-saves oldest-first.
		saved: []models.SavedItem{newPost, midComment, oldPost},
		prefs: map[string]any{"nightmode": true, "lang": "en"},
	}
	dst := &mockService{
		username:      "alice_backup",
		identity:      "client-b",
		subscriptions: set("golang", "pics"),
		friends:       set("carol", "eve"),
		saved:         []models.SavedItem{strayPost, midComment},
	}

	engine := NewTransferEngine(src, dst, EngineOpts{})
	progressCh := drained(100)
	report, err := engine.Run(context.Background(), progressCh)
	close(progressCh)

	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// Subscriptions are add-only; the destination's extras survive.
	if want := []string{"aww", "programming"}; !reflect.DeepEqual(dst.subscribed, want) {
		t.Errorf("subscribed = %v, want %v", dst.subscribed, want)
	}
	if len(dst.unsubscribed) != 0 {
		t.Errorf("unsubscribed = %v, want none", dst.unsubscribed)
	}

	// Friends converge both ways.
	if want := []string{"dave"}; !reflect.DeepEqual(dst.friended, want) {
		t.Errorf("friended = %v, want %v", dst.friended, want)
	}
	if want := []string{"eve"}; !reflect.DeepEqual(dst.unfriended, want) {
		t.Errorf("unfriended = %v, want %v", dst.unfriended, want)
	}

	// Saved items: destination-only item removed, missing items saved in
	// the source's oldest-first order.
	if want := []models.ItemKey{strayPost.Key()}; !reflect.DeepEqual(dst.unsavedCalls, want) {
		t.Errorf("unsaved = %v, want %v", dst.unsavedCalls, want)
	}
	if want := []models.ItemKey{oldPost.Key(), newPost.Key()}; !reflect.DeepEqual(dst.savedCalls, want) {
		t.Errorf("saved = %v, want %v", dst.savedCalls, want)
	}

	if !reflect.DeepEqual(dst.pushedPrefs, src.prefs) {
		t.Errorf("pushed prefs = %v, want %v", dst.pushedPrefs, src.prefs)
	}

	if report.Subscriptions.Applied != 2 || report.Friends.Applied != 2 ||
		report.Unsaved.Applied != 1 || report.Saved.Applied != 2 || report.Preferences != 2 {
		t.Errorf("report = %+v, want 2/2/1/2 applied and 2 preference keys", report)
	}
	if report.RunID == "" {
		t.Error("report.RunID should not be empty")
	}
}

func TestTransferEngine_Run_IdenticalStateIsIdempotent(t *testing.T) {
	items := []models.SavedItem{saved(models.KindSubmission, "p1"), saved(models.KindComment, "c1")}

	src := &mockService{
		username:      "alice",
		identity:      "client-a",
		subscriptions: set("golang", "aww"),
		friends:       set("carol"),
		saved:         items,
	}
	dst := &mockService{
		username:      "bob",
		identity:      "client-b",
		subscriptions: set("golang", "aww"),
		friends:       set("carol"),
		saved:         items,
	}

	engine := NewTransferEngine(src, dst, EngineOpts{})
	report, err := engine.Run(context.Background(), nil)

	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if dst.mutationCount() != 0 {
		t.Errorf("identical accounts produced %d mutations, want 0", dst.mutationCount())
	}
	if report.Subscriptions.Applied+report.Friends.Applied+report.Unsaved.Applied+report.Saved.Applied != 0 {
		t.Errorf("report = %+v, want nothing applied", report)
	}
}

func TestTransferEngine_Run_SameIdentity(t *testing.T) {
	src := &mockService{username: "alice", identity: "client-a", subscriptions: set("golang")}
	dst := &mockService{username: "alice_alt", identity: "client-a"}

	engine := NewTransferEngine(src, dst, EngineOpts{})
	_, err := engine.Run(context.Background(), nil)

	if !errors.Is(err, shared.ErrSameCredentials) {
		t.Fatalf("Run() error = %v, want ErrSameCredentials", err)
	}
	if dst.mutationCount() != 0 {
		t.Error("no mutation may be issued when identities collide")
	}
}

func TestTransferEngine_Run_FetchFailureIsFatal(t *testing.T) {
	src := &mockService{
		username:      "alice",
		identity:      "client-a",
		subscriptions: set("golang"),
		listSavedErr:  fmt.Errorf("503 from reddit"),
	}
	dst := &mockService{username: "bob", identity: "client-b"}

	engine := NewTransferEngine(src, dst, EngineOpts{})
	_, err := engine.Run(context.Background(), nil)

	if !errors.Is(err, shared.ErrFetchFailed) {
		t.Fatalf("Run() error = %v, want ErrFetchFailed", err)
	}
	if dst.mutationCount() != 0 {
		t.Error("no mutation may be issued after a failed snapshot fetch")
	}
}

func TestTransferEngine_Run_PerItemFailureContinues(t *testing.T) {
	src := &mockService{
		username:      "alice",
		identity:      "client-a",
		subscriptions: set("aaa", "bbb", "ccc"),
		saved:         []models.SavedItem{saved(models.KindSubmission, "p1")},
		prefs:         map[string]any{"nightmode": true},
	}
	dst := &mockService{
		username:     "bob",
		identity:     "client-b",
		subscribeErr: map[string]error{"bbb": fmt.Errorf("403 quarantined")},
	}
	sink := &recordingSink{}

	engine := NewTransferEngine(src, dst, EngineOpts{Failures: sink})
	report, err := engine.Run(context.Background(), nil)

	if err != nil {
		t.Fatalf("Run() error = %v, per-item failures must not abort the run", err)
	}

	if want := []string{"aaa", "ccc"}; !reflect.DeepEqual(dst.subscribed, want) {
		t.Errorf("subscribed = %v, want %v (skip the failed item, keep going)", dst.subscribed, want)
	}
	if report.Subscriptions.Applied != 2 || report.Subscriptions.Failed() != 1 {
		t.Errorf("subscriptions report = %+v, want applied 2 failed 1", report.Subscriptions)
	}
	if report.Subscriptions.Failures[0].Item != "/r/bbb" {
		t.Errorf("failure item = %q, want /r/bbb", report.Subscriptions.Failures[0].Item)
	}

	// Later phases still ran.
	if report.Saved.Applied != 1 || report.Preferences != 1 {
		t.Errorf("report = %+v, later phases should still run", report)
	}

	if want := []string{"subscriptions//r/bbb"}; !reflect.DeepEqual(sink.records, want) {
		t.Errorf("sink records = %v, want %v", sink.records, want)
	}
}

func TestTransferEngine_Run_PreferenceCopyFailureIsPhaseLocal(t *testing.T) {
	src := &mockService{
		username:      "alice",
		identity:      "client-a",
		subscriptions: set("golang"),
		saved:         []models.SavedItem{saved(models.KindSubmission, "p1")},
		prefs:         map[string]any{"nightmode": true},
	}
	dst := &mockService{
		username:       "bob",
		identity:       "client-b",
		updatePrefsErr: fmt.Errorf("500 from reddit"),
	}

	engine := NewTransferEngine(src, dst, EngineOpts{})
	report, err := engine.Run(context.Background(), nil)

	if err == nil {
		t.Fatal("Run() error = nil, a failed preference push must surface")
	}

	// Earlier phases stay committed and reported.
	if report.Subscriptions.Applied != 1 || report.Saved.Applied != 1 {
		t.Errorf("report = %+v, earlier phases must stay committed", report)
	}
	if report.Preferences != 0 {
		t.Errorf("report.Preferences = %d, want 0 when the push fails", report.Preferences)
	}
	if dst.pushedPrefs != nil {
		t.Errorf("pushedPrefs = %v, want none recorded on failure", dst.pushedPrefs)
	}
}

func TestTransferEngine_Run_UnexpectedKindAborts(t *testing.T) {
	src := &mockService{
		username:      "alice",
		identity:      "client-a",
		subscriptions: set("golang"),
		saved: []models.SavedItem{
			{Kind: models.Kind(9), ID: "mystery"},
			saved(models.KindSubmission, "fine"),
		},
	}
	dst := &mockService{username: "bob", identity: "client-b"}

	engine := NewTransferEngine(src, dst, EngineOpts{})
	report, err := engine.Run(context.Background(), nil)

	if !errors.Is(err, shared.ErrUnexpectedKind) {
		t.Fatalf("Run() error = %v, want ErrUnexpectedKind", err)
	}

	// Earlier phases stay committed; the report reflects them.
	if report.Subscriptions.Applied != 1 {
		t.Errorf("subscriptions applied = %d, want 1", report.Subscriptions.Applied)
	}
}

func TestTransferEngine_Run_RetriesTransientFailure(t *testing.T) {
	src := &mockService{
		username:      "alice",
		identity:      "client-a",
		subscriptions: set("golang"),
	}
	dst := &mockService{
		username:     "bob",
		identity:     "client-b",
		failuresLeft: map[string]int{"golang": 1},
	}

	engine := NewTransferEngine(src, dst, EngineOpts{Retries: 1})
	report, err := engine.Run(context.Background(), nil)

	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Subscriptions.Applied != 1 || report.Subscriptions.Failed() != 0 {
		t.Errorf("report = %+v, want the retried item applied", report.Subscriptions)
	}
	if want := []string{"golang"}; !reflect.DeepEqual(dst.subscribed, want) {
		t.Errorf("subscribed = %v, want %v", dst.subscribed, want)
	}
}

func TestTransferEngine_Run_Cancellation(t *testing.T) {
	src := &mockService{username: "alice", identity: "client-a", subscriptions: set("golang")}
	dst := &mockService{username: "bob", identity: "client-b"}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := NewTransferEngine(src, dst, EngineOpts{})
	_, err := engine.Run(ctx, nil)

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if dst.mutationCount() != 0 {
		t.Error("no mutation may be issued on a cancelled context")
	}
}

func TestTransferEngine_Subscriptions(t *testing.T) {
	src := &mockService{
		username:      "alice",
		identity:      "client-a",
		subscriptions: set("golang", "aww"),
		friends:       set("carol"),
		saved:         []models.SavedItem{saved(models.KindSubmission, "p1")},
	}
	dst := &mockService{
		username:      "bob",
		identity:      "client-b",
		subscriptions: set("golang"),
	}

	engine := NewTransferEngine(src, dst, EngineOpts{})
	report, err := engine.Subscriptions(context.Background(), nil)

	if err != nil {
		t.Fatalf("Subscriptions() error = %v", err)
	}
	if want := []string{"aww"}; !reflect.DeepEqual(dst.subscribed, want) {
		t.Errorf("subscribed = %v, want %v", dst.subscribed, want)
	}
	if len(dst.friended)+len(dst.savedCalls)+len(dst.pushedPrefs) != 0 {
		t.Error("subscribe-only transfer must not touch friends, saved items, or preferences")
	}
	if report.Subscriptions.Applied != 1 {
		t.Errorf("report = %+v, want 1 applied", report.Subscriptions)
	}
}

func TestTransferEngine_Unsave(t *testing.T) {
	oldest := saved(models.KindSubmission, "oldest")
	middle := saved(models.KindComment, "middle")
	newest := saved(models.KindSubmission, "newest")

	t.Run("count takes the newest items", func(t *testing.T) {
		svc := &mockService{
			username: "alice",
			identity: "client-a",
			saved:    []models.SavedItem{newest, middle, oldest}, // newest-first
		}

		engine := NewTransferEngine(svc, svc, EngineOpts{})
		report, err := engine.Unsave(context.Background(), svc, 2, nil)

		if err != nil {
			t.Fatalf("Unsave() error = %v", err)
		}
		if want := []models.ItemKey{middle.Key(), newest.Key()}; !reflect.DeepEqual(svc.unsavedCalls, want) {
			t.Errorf("unsaved = %v, want the newest two %v", svc.unsavedCalls, want)
		}
		if report.Unsaved.Applied != 2 {
			t.Errorf("report = %+v, want 2 applied", report.Unsaved)
		}
	})

	t.Run("zero count unsaves everything", func(t *testing.T) {
		svc := &mockService{
			username: "alice",
			identity: "client-a",
			saved:    []models.SavedItem{newest, middle, oldest},
		}

		engine := NewTransferEngine(svc, svc, EngineOpts{})
		report, err := engine.Unsave(context.Background(), svc, 0, nil)

		if err != nil {
			t.Fatalf("Unsave() error = %v", err)
		}
		if len(svc.unsavedCalls) != 3 {
			t.Errorf("unsaved %d items, want 3", len(svc.unsavedCalls))
		}
		if report.Unsaved.Applied != 3 {
			t.Errorf("report = %+v, want 3 applied", report.Unsaved)
		}
	})
}

func TestEnsureDistinctIdentity(t *testing.T) {
	a := &mockService{username: "alice", identity: "client-a"}
	b := &mockService{username: "bob", identity: "client-b"}
	aAgain := &mockService{username: "alice_alt", identity: "client-a"}

	if err := EnsureDistinctIdentity(a, b); err != nil {
		t.Errorf("EnsureDistinctIdentity() = %v, want nil for distinct identities", err)
	}
	if err := EnsureDistinctIdentity(a, aAgain); !errors.Is(err, shared.ErrSameCredentials) {
		t.Errorf("EnsureDistinctIdentity() = %v, want ErrSameCredentials", err)
	}
}

func TestProgressUpdate_NonBlocking(t *testing.T) {
	src := &mockService{
		username:      "alice",
		identity:      "client-a",
		subscriptions: set("golang", "aww", "pics"),
		saved:         []models.SavedItem{saved(models.KindSubmission, "p1")},
		prefs:         map[string]any{"nightmode": true},
	}
	dst := &mockService{username: "bob", identity: "client-b"}

	engine := NewTransferEngine(src, dst, EngineOpts{})

	// Unbuffered channel with no consumer: every send must fall through.
	progressCh := make(chan ProgressUpdate)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := engine.Run(context.Background(), progressCh); err != nil {
			t.Errorf("Run() error = %v", err)
		}
	}()

	<-done
}

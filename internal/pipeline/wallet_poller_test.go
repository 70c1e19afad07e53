package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alanyoungcy/walletwatch/internal/domain"
	"github.com/alanyoungcy/walletwatch/internal/platform/polymarket"
)

type memStore struct {
	mu       sync.Mutex
	state    map[string]string
	trades   map[string]domain.ObservedTrade
	wallets  []string
	setCalls int
}

func newMemStore(wallets ...string) *memStore {
	return &memStore{
		state:   map[string]string{},
		trades:  map[string]domain.ObservedTrade{},
		wallets: wallets,
	}
}

func (s *memStore) GetState(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.state[key]
	if !ok {
		return "", domain.ErrNotFound
	}
	return v, nil
}

func (s *memStore) SetState(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setCalls++
	s.state[key] = value
	return nil
}

func (s *memStore) HasTrade(_ context.Context, tx string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.trades[tx]
	return ok, nil
}

func (s *memStore) InsertTrade(_ context.Context, ev domain.TradeEvent, category string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.trades[ev.TxHash]; ok {
		return false, nil
	}
	s.trades[ev.TxHash] = domain.ObservedTrade{Event: ev, Category: category}
	return true, nil
}

func (s *memStore) MarkNotified(_ context.Context, tx string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trades[tx]
	if !ok {
		return domain.ErrNotFound
	}
	t.Notified = true
	s.trades[tx] = t
	return nil
}

func (s *memStore) GetTrade(_ context.Context, tx string) (domain.ObservedTrade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trades[tx]
	if !ok {
		return domain.ObservedTrade{}, domain.ErrNotFound
	}
	return t, nil
}

func (s *memStore) ListWallets(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.wallets...), nil
}

type stubFetcher struct {
	mu      sync.Mutex
	events  []domain.TradeEvent
	err     error
	queries []polymarket.ActivityQuery
}

func (f *stubFetcher) UserActivity(_ context.Context, q polymarket.ActivityQuery) ([]domain.TradeEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.TradeEvent
	for _, ev := range f.events {
		if q.Start == 0 || ev.Timestamp >= q.Start {
			out = append(out, ev)
		}
	}
	return out, nil
}

type nopResolver struct{ meta map[string]domain.MarketMeta }

func (r nopResolver) Resolve(_ context.Context, id string) (domain.MarketMeta, bool) {
	m, ok := r.meta[id]
	return m, ok
}

type funcFilter func(domain.TradeEvent, string) bool

func (f funcFilter) Matches(ev domain.TradeEvent, c string) bool { return f(ev, c) }

var acceptAll = funcFilter(func(domain.TradeEvent, string) bool { return true })

type recNotifier struct {
	mu   sync.Mutex
	sent []domain.TradeEvent
	err  error
}

func (n *recNotifier) NotifyTrade(_ context.Context, ev domain.TradeEvent, _ *domain.MarketMeta) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, ev)
	return nil
}

func fill(tx string, ts int64) domain.TradeEvent {
	return domain.TradeEvent{
		Wallet: "0xw", Timestamp: ts, ConditionID: "c1", Type: domain.ActivityTypeTrade,
		Side: domain.SideBuy, Price: 0.5, Size: 10, USDCSize: 5, TxHash: tx,
	}
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newPoller(f ActivityFetcher, s PollerStore, flt TradeFilter, n TradeNotifier) *WalletPoller {
	return NewWalletPoller(f, s, nopResolver{}, flt, n, WalletPollerConfig{PollInterval: time.Millisecond}, discard())
}

func TestPollWalletOrdersAscending(t *testing.T) {
	fetcher := &stubFetcher{events: []domain.TradeEvent{fill("0x5", 5), fill("0x1", 1), fill("0x3", 3)}}
	store := newMemStore()
	notifier := &recNotifier{}
	p := newPoller(fetcher, store, acceptAll, notifier)

	stats, err := p.PollWallet(context.Background(), "0xW")
	if err != nil {
		t.Fatalf("PollWallet: %v", err)
	}
	want := []string{"0x1", "0x3", "0x5"}
	if len(notifier.sent) != len(want) {
		t.Fatalf("sent %d, want %d", len(notifier.sent), len(want))
	}
	for i, tx := range want {
		if notifier.sent[i].TxHash != tx {
			t.Errorf("sent[%d] = %s, want %s", i, notifier.sent[i].TxHash, tx)
		}
	}
	if stats.Cursor != 5 {
		t.Errorf("cursor = %d, want 5", stats.Cursor)
	}
	if got := store.state[domain.CursorKey("0xw")]; got != `{"last_ts":5}` {
		t.Errorf("stored cursor = %s", got)
	}
}

func TestPollWalletCursorCoversRejectedEvents(t *testing.T) {
	redeem := fill("0xr", 20)
	redeem.Type = "REDEEM"
	noTx := fill("", 30)
	fetcher := &stubFetcher{events: []domain.TradeEvent{fill("0x1", 10), redeem, noTx}}
	store := newMemStore()
	p := newPoller(fetcher, store, acceptAll, &recNotifier{})

	stats, err := p.PollWallet(context.Background(), "0xw")
	if err != nil {
		t.Fatalf("PollWallet: %v", err)
	}
	if stats.Cursor != 30 {
		t.Errorf("cursor = %d, want 30", stats.Cursor)
	}
	if stats.Rejected != 2 || stats.Stored != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestPollWalletCursorMonotonic(t *testing.T) {
	fetcher := &stubFetcher{events: []domain.TradeEvent{fill("0x1", 100)}}
	store := newMemStore()
	p := newPoller(fetcher, store, acceptAll, &recNotifier{})

	if _, err := p.PollWallet(context.Background(), "0xw"); err != nil {
		t.Fatalf("first poll: %v", err)
	}
	if q := fetcher.queries[0]; q.Start != 0 || q.Limit != defaultPageSize {
		t.Errorf("first query = %+v", q)
	}

	fetcher.events = []domain.TradeEvent{fill("0x0", 50)}
	writes := store.setCalls
	stats, err := p.PollWallet(context.Background(), "0xw")
	if err != nil {
		t.Fatalf("second poll: %v", err)
	}
	if q := fetcher.queries[1]; q.Start != 101 {
		t.Errorf("second start = %d, want 101", q.Start)
	}
	if stats.Cursor != 100 {
		t.Errorf("cursor = %d, want 100", stats.Cursor)
	}
	if store.setCalls != writes {
		t.Error("cursor rewritten without advancing")
	}
}

func TestPollWalletNotifiesOnceAcrossCycles(t *testing.T) {
	ev := fill("0xabc", 1000)
	ev.Title = "Presidential election"
	fetcher := &stubFetcher{events: []domain.TradeEvent{ev}}
	store := newMemStore("0xw")
	notifier := &recNotifier{}
	p := newPoller(fetcher, store, acceptAll, notifier)

	for i := 0; i < 2; i++ {
		if _, err := p.PollWallet(context.Background(), "0xw"); err != nil {
			t.Fatalf("cycle %d: %v", i, err)
		}
		// The feed may still return the boundary trade.
		fetcher.queries = nil
		store.state[domain.CursorKey("0xw")] = `{"last_ts":999}`
	}

	if len(notifier.sent) != 1 {
		t.Fatalf("notified %d times, want 1", len(notifier.sent))
	}
	tr, err := store.GetTrade(context.Background(), "0xabc")
	if err != nil || !tr.Notified {
		t.Errorf("trade = %+v, %v; want notified", tr, err)
	}
}

func TestPollWalletFilteredTradesNotStored(t *testing.T) {
	fetcher := &stubFetcher{events: []domain.TradeEvent{fill("0x1", 1)}}
	store := newMemStore()
	notifier := &recNotifier{}
	reject := funcFilter(func(domain.TradeEvent, string) bool { return false })
	p := newPoller(fetcher, store, reject, notifier)

	stats, err := p.PollWallet(context.Background(), "0xw")
	if err != nil {
		t.Fatalf("PollWallet: %v", err)
	}
	if stats.Filtered != 1 || len(store.trades) != 0 || len(notifier.sent) != 0 {
		t.Errorf("stats = %+v trades = %d", stats, len(store.trades))
	}
	if stats.Cursor != 1 {
		t.Errorf("cursor = %d, want 1", stats.Cursor)
	}
}

func TestPollWalletPassesCategoryToFilter(t *testing.T) {
	fetcher := &stubFetcher{events: []domain.TradeEvent{fill("0x1", 1)}}
	store := newMemStore()
	var gotCategory string
	flt := funcFilter(func(_ domain.TradeEvent, c string) bool { gotCategory = c; return true })
	p := NewWalletPoller(fetcher, store,
		nopResolver{meta: map[string]domain.MarketMeta{"c1": {Category: "Politics"}}},
		flt, &recNotifier{}, WalletPollerConfig{}, discard())

	if _, err := p.PollWallet(context.Background(), "0xw"); err != nil {
		t.Fatalf("PollWallet: %v", err)
	}
	if gotCategory != "Politics" {
		t.Errorf("category = %q", gotCategory)
	}
	if store.trades["0x1"].Category != "Politics" {
		t.Errorf("stored category = %q", store.trades["0x1"].Category)
	}
}

func TestPollWalletNotifyFailureLeavesUnnotified(t *testing.T) {
	fetcher := &stubFetcher{events: []domain.TradeEvent{fill("0x1", 1)}}
	store := newMemStore()
	notifier := &recNotifier{err: errors.New("telegram down")}
	p := newPoller(fetcher, store, acceptAll, notifier)

	stats, err := p.PollWallet(context.Background(), "0xw")
	if err != nil {
		t.Fatalf("PollWallet: %v", err)
	}
	if stats.Stored != 1 || stats.Notified != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if store.trades["0x1"].Notified {
		t.Error("trade marked notified after failed send")
	}
}

func TestPollWalletFetchErrorKeepsCursor(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("boom")}
	store := newMemStore()
	store.state[domain.CursorKey("0xw")] = `{"last_ts":7}`
	p := newPoller(fetcher, store, acceptAll, &recNotifier{})

	if _, err := p.PollWallet(context.Background(), "0xw"); err == nil {
		t.Fatal("expected error")
	}
	if store.state[domain.CursorKey("0xw")] != `{"last_ts":7}` {
		t.Error("cursor changed on fetch error")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	fetcher := &stubFetcher{events: []domain.TradeEvent{fill("0x1", 1)}}
	store := newMemStore("0xa", "0xb")
	notifier := &recNotifier{}
	p := newPoller(fetcher, store, acceptAll, notifier)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for {
		notifier.mu.Lock()
		n := len(notifier.sent)
		notifier.mu.Unlock()
		if n > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("poller never notified")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}

type fakeLocker struct {
	held     map[string]bool
	released []string
}

func (l *fakeLocker) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	if ttl < time.Minute {
		return nil, errors.New("lease ttl too short")
	}
	if l.held[key] {
		return nil, domain.ErrLockHeld
	}
	return func() { l.released = append(l.released, key) }, nil
}

func TestPollAllSkipsLeasedWallets(t *testing.T) {
	fetcher := &stubFetcher{events: []domain.TradeEvent{fill("0x1", 1)}}
	store := newMemStore("0xa", "0xb")
	locker := &fakeLocker{held: map[string]bool{"poll:0xa": true}}
	p := newPoller(fetcher, store, acceptAll, &recNotifier{}).WithLocker(locker)

	p.pollAll(context.Background())

	if len(fetcher.queries) != 1 || fetcher.queries[0].User != "0xb" {
		t.Fatalf("queries = %+v, want only 0xb", fetcher.queries)
	}
	if len(locker.released) != 1 || locker.released[0] != "poll:0xb" {
		t.Errorf("released = %v", locker.released)
	}
}

func TestTriggerStartsCycleEarly(t *testing.T) {
	fetcher := &stubFetcher{}
	store := newMemStore("0xa")
	p := NewWalletPoller(fetcher, store, nopResolver{}, acceptAll, &recNotifier{},
		WalletPollerConfig{PollInterval: time.Hour}, discard())

	queries := func() int {
		fetcher.mu.Lock()
		defer fetcher.mu.Unlock()
		return len(fetcher.queries)
	}
	waitFor := func(min int) {
		t.Helper()
		deadline := time.After(2 * time.Second)
		for queries() < min {
			select {
			case <-deadline:
				t.Fatalf("queries = %d, want >= %d", queries(), min)
			case <-time.After(5 * time.Millisecond):
			}
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = p.Run(ctx) }()

	waitFor(1)
	time.Sleep(20 * time.Millisecond)
	first := queries()

	if !p.Trigger() {
		t.Fatal("Trigger = false on idle poller")
	}
	waitFor(first + 1)
}

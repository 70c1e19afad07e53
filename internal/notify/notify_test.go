package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/walletwatch/internal/domain"
	"github.com/alanyoungcy/walletwatch/internal/service"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type recSender struct {
	name string
	err  error
	got  []Message
}

func (s *recSender) Send(_ context.Context, m Message) error {
	s.got = append(s.got, m)
	return s.err
}

func (s *recSender) Name() string { return s.name }

func sampleEvent() domain.TradeEvent {
	idx := 0
	return domain.TradeEvent{
		Wallet: "0xAbC", Timestamp: 1700000000, ConditionID: "c1", Type: domain.ActivityTypeTrade,
		Side: domain.SideBuy, Price: 0.42, Size: 100, USDCSize: 42, Outcome: "Yes",
		OutcomeIndex: &idx, Title: "Will it rain (tomorrow)?", TxHash: "0xabc",
	}
}

// ── notifier ──

func TestNotifyTradeFansOut(t *testing.T) {
	bad := &recSender{name: "bad", err: errors.New("down")}
	good := &recSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, discard())

	if err := n.NotifyTrade(context.Background(), sampleEvent(), nil); err != nil {
		t.Fatalf("NotifyTrade: %v", err)
	}
	if len(bad.got) != 1 || len(good.got) != 1 {
		t.Fatalf("deliveries bad=%d good=%d", len(bad.got), len(good.got))
	}
	m := good.got[0]
	if m.Event != EventTrade || len(m.Actions) != 2 || len(m.Actions[0]) != 2 {
		t.Errorf("message = %+v", m)
	}
	cb, err := DecodeCallback(m.Actions[0][1].Data)
	if err != nil || cb.Kind != CallbackFollow || cb.Mode != domain.MirrorNow || cb.TxHash != "0xabc" {
		t.Errorf("follow-now button = %+v, %v", cb, err)
	}
}

func TestNotifyTradeFailsWhenNothingDelivered(t *testing.T) {
	ctx := context.Background()
	n := NewNotifier([]Sender{&recSender{name: "a", err: errors.New("x")}}, nil, discard())
	if err := n.NotifyTrade(ctx, sampleEvent(), nil); !errors.Is(err, ErrNotDelivered) {
		t.Errorf("err = %v, want ErrNotDelivered", err)
	}
	n = NewNotifier(nil, nil, discard())
	if err := n.NotifyTrade(ctx, sampleEvent(), nil); !errors.Is(err, ErrNotDelivered) {
		t.Errorf("no senders: err = %v", err)
	}
}

func TestNotifyEventFilter(t *testing.T) {
	s := &recSender{name: "s"}
	n := NewNotifier([]Sender{s}, []string{EventTrade, " mirror_failed "}, discard())
	ctx := context.Background()

	_ = n.NotifyEvent(ctx, EventMirrorExecuted, "ok")
	_ = n.NotifyEvent(ctx, EventMirrorFailed, "boom.")
	if len(s.got) != 1 || s.got[0].Event != EventMirrorFailed {
		t.Fatalf("got = %+v", s.got)
	}
	if s.got[0].Markdown != `boom\.` {
		t.Errorf("markdown = %q", s.got[0].Markdown)
	}
}

// ── rendering ──

func TestRenderTradeMarkdown(t *testing.T) {
	meta := &domain.MarketMeta{Category: " Weather ", Slug: "rain-tomorrow"}
	got := RenderTradeMarkdown(sampleEvent(), meta)

	for _, want := range []string{
		"🧾 *Whale trade detected*",
		"*Wallet:* `0xabc`",
		`*Market:* Will it rain \(tomorrow\)?`,
		"*Category:* Weather",
		"*Slug:* `rain-tomorrow`",
		"*Side:* *BUY*",
		"*Price:* `0.4200`",
		"*Shares:* `100.00`",
		"*USDC:* `42.00`",
		"*Time:* `2023-11-14T22:13:20.000Z`",
		"*Tx:* `0xabc`",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("markdown missing %q:\n%s", want, got)
		}
	}
}

func TestRenderTradeFallbacks(t *testing.T) {
	ev := sampleEvent()
	ev.Title, ev.Outcome, ev.Side = "", "", ""

	got := RenderTradeText(ev, nil)
	if !strings.Contains(got, "Market: (unknown market)") || !strings.Contains(got, "Side: BUY") {
		t.Errorf("text = %s", got)
	}
	if strings.Contains(got, "Outcome:") || strings.Contains(got, "Category:") {
		t.Errorf("empty fields rendered: %s", got)
	}

	got = RenderTradeText(ev, &domain.MarketMeta{Question: "Q?"})
	if !strings.Contains(got, "Market: Q?") {
		t.Errorf("question fallback missing: %s", got)
	}
}

// ── commands ──

type memBotStore struct {
	state   map[string]string
	wallets map[string]bool
}

func newBotStore() *memBotStore {
	return &memBotStore{state: map[string]string{}, wallets: map[string]bool{}}
}

func (s *memBotStore) GetState(_ context.Context, k string) (string, error) {
	v, ok := s.state[k]
	if !ok {
		return "", domain.ErrNotFound
	}
	return v, nil
}

func (s *memBotStore) SetState(_ context.Context, k, v string) error { s.state[k] = v; return nil }

func (s *memBotStore) AddWallet(_ context.Context, w string) error {
	s.wallets[domain.NormalizeWallet(w)] = true
	return nil
}

func (s *memBotStore) RemoveWallet(_ context.Context, w string) error {
	delete(s.wallets, domain.NormalizeWallet(w))
	return nil
}

func (s *memBotStore) ListWallets(context.Context) ([]string, error) {
	var out []string
	for w := range s.wallets {
		out = append(out, w)
	}
	sort.Strings(out)
	return out, nil
}

type fakeMirror struct {
	followErr error
	ignored   []string
	followed  []domain.MirrorMode
}

func (m *fakeMirror) Follow(_ context.Context, tx string, mode domain.MirrorMode) (service.MirrorOutcome, error) {
	m.followed = append(m.followed, mode)
	if m.followErr != nil {
		return service.MirrorOutcome{}, m.followErr
	}
	return service.MirrorOutcome{
		TxHash: tx, Mode: mode,
		Price: decimal.RequireFromString("0.54"), Size: decimal.RequireFromString("9.25"), Type: domain.OrderTypeFOK,
	}, nil
}

func (m *fakeMirror) Ignore(_ context.Context, tx string) error {
	if tx == "0xmissing" {
		return domain.ErrNotFound
	}
	m.ignored = append(m.ignored, tx)
	return nil
}

func TestStartClaimsChatOnce(t *testing.T) {
	ctx := context.Background()
	store := newBotStore()
	c := NewCommands(store, &fakeMirror{}, StatusInfo{}, 0, discard())

	if got := c.HandleCommand(ctx, 42, "/status"); got != notAuthorized {
		t.Errorf("status before start = %q", got)
	}
	if got := c.HandleCommand(ctx, 42, "/start"); !strings.Contains(got, "Authorized chat: 42") {
		t.Errorf("start = %q", got)
	}
	if store.state[ChatIDStateKey] != "42" {
		t.Errorf("chat id not persisted: %v", store.state)
	}
	if got := c.HandleCommand(ctx, 7, "/start"); !strings.Contains(got, "Authorized chat: 42") {
		t.Errorf("second start = %q", got)
	}
	if got := c.HandleCommand(ctx, 7, "/wallets"); got != notAuthorized {
		t.Errorf("other chat = %q", got)
	}

	// A fresh process picks the stored id up.
	c2 := NewCommands(store, &fakeMirror{}, StatusInfo{}, 0, discard())
	if err := c2.LoadChatID(ctx); err != nil || c2.ChatID() != 42 {
		t.Errorf("LoadChatID = %d, %v", c2.ChatID(), err)
	}
}

func TestWalletCommands(t *testing.T) {
	ctx := context.Background()
	store := newBotStore()
	c := NewCommands(store, &fakeMirror{}, StatusInfo{}, 42, discard())

	if got := c.HandleCommand(ctx, 42, "/addwallet"); !strings.HasPrefix(got, "Usage:") {
		t.Errorf("no arg = %q", got)
	}
	if got := c.HandleCommand(ctx, 42, "/addwallet@watchbot 0xABC"); got != "Added wallet: 0xabc" {
		t.Errorf("add = %q", got)
	}
	if got := c.HandleCommand(ctx, 42, "/wallets"); !strings.Contains(got, "0xabc") {
		t.Errorf("wallets = %q", got)
	}
	if got := c.HandleCommand(ctx, 42, "/rmwallet 0xAbc"); got != "Removed wallet: 0xabc" {
		t.Errorf("rm = %q", got)
	}
	if len(store.wallets) != 0 {
		t.Errorf("wallets left: %v", store.wallets)
	}
	if got := c.HandleCommand(ctx, 42, "/unknown"); got != "" {
		t.Errorf("unknown = %q", got)
	}
}

func TestStatusReply(t *testing.T) {
	status := StatusInfo{
		Criteria: domain.FilterCriteria{
			MinUSDC:    250,
			Categories: map[string]struct{}{"politics": {}, "crypto": {}},
			CopySides:  map[domain.Side]struct{}{domain.SideBuy: {}},
		},
		TradingEnabled: true,
	}
	c := NewCommands(newBotStore(), &fakeMirror{}, status, 1, discard())
	got := c.HandleCommand(context.Background(), 1, "/status")
	for _, want := range []string{"Categories: crypto, politics", "Keywords: (none)", "Min USDC size: 250", "Copy sides: BUY", "Trading: ENABLED"} {
		if !strings.Contains(got, want) {
			t.Errorf("status missing %q:\n%s", want, got)
		}
	}
}

func TestHandleCallback(t *testing.T) {
	ctx := context.Background()
	m := &fakeMirror{}
	c := NewCommands(newBotStore(), m, StatusInfo{}, 42, discard())

	follow, _ := EncodeCallback(Callback{Kind: CallbackFollow, TxHash: "0xabc", Mode: domain.MirrorNow})
	ignore, _ := EncodeCallback(Callback{Kind: CallbackIgnore, TxHash: "0xabc"})
	missing, _ := EncodeCallback(Callback{Kind: CallbackIgnore, TxHash: "0xmissing"})

	if r := c.HandleCallback(ctx, 7, follow); r.Answer != notAuthorized || len(m.followed) != 0 {
		t.Errorf("unauthorized = %+v", r)
	}
	if r := c.HandleCallback(ctx, 42, "!!"); r.Answer != "Bad callback data." {
		t.Errorf("garbage = %+v", r)
	}
	r := c.HandleCallback(ctx, 42, follow)
	if r.Answer != "Order sent (NOW)." || !strings.Contains(r.Reply, "Price: 0.54") {
		t.Errorf("follow = %+v", r)
	}
	if r := c.HandleCallback(ctx, 42, ignore); r.Answer != "Ignored." || len(m.ignored) != 1 {
		t.Errorf("ignore = %+v", r)
	}
	if r := c.HandleCallback(ctx, 42, missing); r.Answer != "Trade not found (maybe old)." {
		t.Errorf("missing = %+v", r)
	}

	m.followErr = domain.ErrNoLiquidity
	if r := c.HandleCallback(ctx, 42, follow); r.Answer != "Order failed." || !strings.Contains(r.Reply, "no liquidity") {
		t.Errorf("failed follow = %+v", r)
	}
	m.followErr = domain.ErrSideDisabled
	if r := c.HandleCallback(ctx, 42, follow); r.Answer != "Copy side disabled." || r.Reply != "" {
		t.Errorf("side disabled = %+v", r)
	}
}

// ── discord ──

func TestDiscordSender(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := NewDiscordSender(srv.URL)
	if err := d.Send(context.Background(), Message{Title: "T", Text: "body"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got["content"] != "**T**\nbody" {
		t.Errorf("content = %q", got["content"])
	}
}

func TestDiscordSenderStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer srv.Close()

	err := NewDiscordSender(srv.URL).Send(context.Background(), Message{Title: "T"})
	if err == nil || !strings.Contains(err.Error(), "400") {
		t.Errorf("err = %v", err)
	}
}

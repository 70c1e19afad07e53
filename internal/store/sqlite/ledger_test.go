package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/alanyoungcy/walletwatch/internal/domain"
)

func openTest(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func sampleTrade(tx string) domain.TradeEvent {
	idx := 1
	return domain.TradeEvent{
		Wallet: "0xABC", Timestamp: 1700000000, ConditionID: "c1", Type: domain.ActivityTypeTrade,
		Side: domain.SideBuy, Price: 0.42, Size: 100, USDCSize: 42, Outcome: "No",
		OutcomeIndex: &idx, Asset: "tok-1", Title: "Will it rain?", Slug: "rain", TxHash: tx,
	}
}

func TestInsertTradeIdempotent(t *testing.T) {
	ctx := context.Background()
	l := openTest(t)

	inserted, err := l.InsertTrade(ctx, sampleTrade("0xabc"), "weather")
	if err != nil || !inserted {
		t.Fatalf("first insert = %v, %v", inserted, err)
	}
	inserted, err = l.InsertTrade(ctx, sampleTrade("0xabc"), "other")
	if err != nil {
		t.Fatalf("second insert: %v", err)
	}
	if inserted {
		t.Error("duplicate insert reported inserted")
	}

	tr, err := l.GetTrade(ctx, "0xabc")
	if err != nil {
		t.Fatalf("GetTrade: %v", err)
	}
	if tr.Category != "weather" {
		t.Errorf("category = %q, first write must win", tr.Category)
	}
	if tr.Notified {
		t.Error("new trade should not be notified")
	}
	if tr.Event.OutcomeIndex == nil || *tr.Event.OutcomeIndex != 1 || tr.Event.Asset != "tok-1" {
		t.Errorf("event = %+v", tr.Event)
	}

	has, err := l.HasTrade(ctx, "0xabc")
	if err != nil || !has {
		t.Errorf("HasTrade = %v, %v", has, err)
	}
	has, _ = l.HasTrade(ctx, "0xdef")
	if has {
		t.Error("HasTrade true for unknown hash")
	}
}

func TestMarkNotified(t *testing.T) {
	ctx := context.Background()
	l := openTest(t)

	if err := l.MarkNotified(ctx, "0xnone"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("MarkNotified(unknown) = %v", err)
	}
	_, _ = l.InsertTrade(ctx, sampleTrade("0x1"), "")
	if err := l.MarkNotified(ctx, "0x1"); err != nil {
		t.Fatalf("MarkNotified: %v", err)
	}
	tr, _ := l.GetTrade(ctx, "0x1")
	if !tr.Notified {
		t.Error("trade not marked")
	}
}

func TestGetTradeBadPayload(t *testing.T) {
	ctx := context.Background()
	l := openTest(t)
	_, _ = l.InsertTrade(ctx, sampleTrade("0x1"), "")
	if _, err := l.db.Exec(`UPDATE observed_trades SET raw_json = '{broken' WHERE tx_hash = '0x1'`); err != nil {
		t.Fatal(err)
	}
	if _, err := l.GetTrade(ctx, "0x1"); !errors.Is(err, domain.ErrBadPayload) {
		t.Errorf("err = %v, want ErrBadPayload", err)
	}
	if _, err := l.GetTrade(ctx, "0x2"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestState(t *testing.T) {
	ctx := context.Background()
	l := openTest(t)

	if _, err := l.GetState(ctx, "cursor:0xa"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetState(missing) = %v", err)
	}
	_ = l.SetState(ctx, "cursor:0xa", `{"last_ts":1}`)
	_ = l.SetState(ctx, "cursor:0xa", `{"last_ts":2}`)
	v, err := l.GetState(ctx, "cursor:0xa")
	if err != nil || v != `{"last_ts":2}` {
		t.Errorf("GetState = %q, %v", v, err)
	}
}

func TestWallets(t *testing.T) {
	ctx := context.Background()
	l := openTest(t)

	_ = l.AddWallet(ctx, "0xAAA")
	_ = l.AddWallet(ctx, "0xaaa")
	_ = l.AddWallet(ctx, " 0xBBB ")
	ws, err := l.ListWallets(ctx)
	if err != nil {
		t.Fatalf("ListWallets: %v", err)
	}
	if len(ws) != 2 || ws[0] != "0xaaa" || ws[1] != "0xbbb" {
		t.Errorf("wallets = %v", ws)
	}
	_ = l.RemoveWallet(ctx, "0xAAA")
	ws, _ = l.ListWallets(ctx)
	if len(ws) != 1 || ws[0] != "0xbbb" {
		t.Errorf("after remove = %v", ws)
	}
}

func TestMetaOverwrite(t *testing.T) {
	ctx := context.Background()
	l := openTest(t)

	if _, err := l.GetMeta(ctx, "c1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetMeta(missing) = %v", err)
	}
	_ = l.PutMeta(ctx, domain.MarketMeta{ConditionID: "c1", Category: "politics", ClobTokenIDs: []string{"a", "b"}})
	_ = l.PutMeta(ctx, domain.MarketMeta{ConditionID: "c1", Question: "Q"})
	m, err := l.GetMeta(ctx, "c1")
	if err != nil {
		t.Fatalf("GetMeta: %v", err)
	}
	if m.Category != "" || len(m.ClobTokenIDs) != 0 || m.Question != "Q" {
		t.Errorf("meta = %+v, want wholesale overwrite", m)
	}
}

func TestActions(t *testing.T) {
	ctx := context.Background()
	l := openTest(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, kind := range []domain.ActionKind{domain.ActionIgnore, domain.FollowAction(domain.MirrorNow, false), domain.FollowAction(domain.MirrorPassive, true)} {
		err := l.AppendAction(ctx, domain.MirrorAction{
			ID: string(rune('a' + i)), TxHash: "0x1", Kind: kind,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			Result:    json.RawMessage(`{"ok":true}`),
		})
		if err != nil {
			t.Fatalf("AppendAction: %v", err)
		}
	}
	if err := l.AppendAction(ctx, domain.MirrorAction{ID: "a", TxHash: "0x1", Kind: domain.ActionIgnore, CreatedAt: base}); err == nil {
		t.Error("duplicate action id accepted")
	}

	got, err := l.ListActionsSince(ctx, base, 0)
	if err != nil {
		t.Fatalf("ListActionsSince: %v", err)
	}
	if len(got) != 2 || got[0].Kind != "FOLLOW_NOW" || got[1].Kind != "FOLLOW_PASSIVE_ERROR" {
		t.Fatalf("actions = %+v", got)
	}
	if !got[0].CreatedAt.Equal(base.Add(time.Minute)) {
		t.Errorf("created at = %v", got[0].CreatedAt)
	}

	got, _ = l.ListActionsSince(ctx, time.Time{}, 1)
	if len(got) != 1 || got[0].ID != "a" {
		t.Errorf("limited = %+v", got)
	}
}

func TestOpenFilePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.sqlite")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = l.AddWallet(context.Background(), "0xabc")
	_ = l.Close()

	l2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer l2.Close()
	ws, _ := l2.ListWallets(context.Background())
	if len(ws) != 1 {
		t.Errorf("wallets after reopen = %v", ws)
	}
}

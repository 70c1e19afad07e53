package pricing

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/walletwatch/internal/domain"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func some(s string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d(s), Valid: true}
}

func book(bid, ask string) domain.OrderBookTop {
	b := domain.OrderBookTop{TickSize: d("0.01")}
	if bid != "" {
		b.BestBid = some(bid)
	}
	if ask != "" {
		b.BestAsk = some(ask)
	}
	return b
}

func TestQuoteImmediateBuyRoundsUp(t *testing.T) {
	e := New(Config{MaxUSDCPerTrade: d("5"), SlippageTicks: 2})
	q, err := e.Quote(domain.SideBuy, domain.MirrorNow, d("5"), book("0.50", "0.52"))
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if !q.Price.Equal(d("0.54")) {
		t.Errorf("price = %s, want 0.54", q.Price)
	}
	if q.Type != domain.OrderTypeFOK {
		t.Errorf("type = %s, want FOK", q.Type)
	}
}

func TestQuoteImmediateSellRoundsDown(t *testing.T) {
	e := New(Config{MaxUSDCPerTrade: d("5"), SlippageTicks: 1})
	q, err := e.Quote(domain.SideSell, domain.MirrorNow, d("5"), book("0.50", "0.52"))
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if !q.Price.Equal(d("0.49")) {
		t.Errorf("price = %s, want 0.49", q.Price)
	}
}

func TestQuoteImmediateOffTickPrices(t *testing.T) {
	e := New(Config{MaxUSDCPerTrade: d("5"), SlippageTicks: 1})

	q, err := e.Quote(domain.SideBuy, domain.MirrorNow, d("5"), book("", "0.523"))
	if err != nil {
		t.Fatalf("Quote buy: %v", err)
	}
	if !q.Price.Equal(d("0.54")) {
		t.Errorf("buy price = %s, want 0.54", q.Price)
	}

	q, err = e.Quote(domain.SideSell, domain.MirrorNow, d("5"), book("0.507", ""))
	if err != nil {
		t.Fatalf("Quote sell: %v", err)
	}
	if !q.Price.Equal(d("0.49")) {
		t.Errorf("sell price = %s, want 0.49", q.Price)
	}
}

func TestQuoteImmediateClamps(t *testing.T) {
	e := New(Config{MaxUSDCPerTrade: d("5"), SlippageTicks: 5})

	q, err := e.Quote(domain.SideBuy, domain.MirrorNow, d("1"), book("", "0.99"))
	if err != nil {
		t.Fatalf("Quote buy: %v", err)
	}
	if !q.Price.Equal(d("0.999")) {
		t.Errorf("buy price = %s, want 0.999", q.Price)
	}

	q, err = e.Quote(domain.SideSell, domain.MirrorNow, d("1"), book("0.02", ""))
	if err != nil {
		t.Fatalf("Quote sell: %v", err)
	}
	if !q.Price.Equal(d("0.001")) {
		t.Errorf("sell price = %s, want 0.001", q.Price)
	}
}

func TestQuotePassiveJoinsOwnSide(t *testing.T) {
	e := New(Config{MaxUSDCPerTrade: d("5"), SlippageTicks: 2})

	q, err := e.Quote(domain.SideBuy, domain.MirrorPassive, d("5"), book("0.50", "0.52"))
	if err != nil {
		t.Fatalf("Quote buy: %v", err)
	}
	if !q.Price.Equal(d("0.50")) || q.Type != domain.OrderTypeGTC {
		t.Errorf("buy = %s %s, want 0.50 GTC", q.Price, q.Type)
	}

	q, err = e.Quote(domain.SideSell, domain.MirrorPassive, d("5"), book("0.50", "0.52"))
	if err != nil {
		t.Fatalf("Quote sell: %v", err)
	}
	if !q.Price.Equal(d("0.52")) || q.Type != domain.OrderTypeGTC {
		t.Errorf("sell = %s %s, want 0.52 GTC", q.Price, q.Type)
	}
}

func TestQuoteSizeFloor(t *testing.T) {
	e := New(Config{MaxUSDCPerTrade: d("5")})

	b := book("0.50", "")
	q, err := e.Quote(domain.SideBuy, domain.MirrorPassive, d("5"), b)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if !q.Size.Equal(d("10")) {
		t.Errorf("size = %s, want 10", q.Size)
	}

	b.MinOrderSize = d("15")
	q, err = e.Quote(domain.SideBuy, domain.MirrorPassive, d("5"), b)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if !q.Size.Equal(d("15")) {
		t.Errorf("size = %s, want 15", q.Size)
	}
}

func TestQuoteCeilingClamp(t *testing.T) {
	e := New(Config{MaxUSDCPerTrade: d("5")})
	q, err := e.Quote(domain.SideBuy, domain.MirrorPassive, d("100"), book("0.50", ""))
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if !q.Spend.Equal(d("5")) {
		t.Errorf("spend = %s, want 5", q.Spend)
	}
	if !q.Size.Equal(d("10")) {
		t.Errorf("size = %s, want 10", q.Size)
	}
}

func TestQuoteNoLiquidity(t *testing.T) {
	e := New(Config{MaxUSDCPerTrade: d("5"), SlippageTicks: 2})

	tests := []struct {
		name string
		side domain.Side
		mode domain.MirrorMode
		book domain.OrderBookTop
	}{
		{"immediate buy, no ask", domain.SideBuy, domain.MirrorNow, book("0.50", "")},
		{"immediate sell, no bid", domain.SideSell, domain.MirrorNow, book("", "0.52")},
		{"passive buy, no bid", domain.SideBuy, domain.MirrorPassive, book("", "0.52")},
		{"passive sell, no ask", domain.SideSell, domain.MirrorPassive, book("0.50", "")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Quote(tt.side, tt.mode, d("5"), tt.book)
			if !errors.Is(err, domain.ErrNoLiquidity) {
				t.Fatalf("err = %v, want ErrNoLiquidity", err)
			}
		})
	}
}

func TestQuoteInvalidSize(t *testing.T) {
	e := New(Config{MaxUSDCPerTrade: d("5")})

	// A zero bid cannot size an order.
	if _, err := e.Quote(domain.SideBuy, domain.MirrorPassive, d("5"), book("0", "")); !errors.Is(err, domain.ErrInvalidSize) {
		t.Errorf("zero price: err = %v, want ErrInvalidSize", err)
	}
	// Zero spend with no exchange minimum gives size 0.
	if _, err := e.Quote(domain.SideBuy, domain.MirrorPassive, d("0"), book("0.5", "")); !errors.Is(err, domain.ErrInvalidSize) {
		t.Errorf("zero spend: err = %v, want ErrInvalidSize", err)
	}
}

func TestQuoteDefaultsTick(t *testing.T) {
	e := New(Config{MaxUSDCPerTrade: d("5"), SlippageTicks: 1})
	b := book("", "0.52")
	b.TickSize = decimal.Zero
	q, err := e.Quote(domain.SideBuy, domain.MirrorNow, d("5"), b)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if !q.Price.Equal(d("0.53")) || !q.TickSize.Equal(d("0.01")) {
		t.Errorf("got price %s tick %s, want 0.53 / 0.01", q.Price, q.TickSize)
	}
}

func TestRoundToTick(t *testing.T) {
	tests := []struct {
		price, tick string
		dir         Rounding
		want        string
	}{
		{"0.523", "0.01", RoundDown, "0.52"},
		{"0.523", "0.01", RoundUp, "0.53"},
		{"0.525", "0.01", RoundNearest, "0.53"},
		{"0.52", "0.01", RoundUp, "0.52"},
		{"0.52", "0.01", RoundDown, "0.52"},
		{"0.1234", "0.001", RoundDown, "0.123"},
		{"0.1234", "0.001", RoundUp, "0.124"},
		{"0.7", "0.1", RoundUp, "0.7"},
		{"0.3", "0", RoundUp, "0.3"},
	}
	for _, tt := range tests {
		got := RoundToTick(d(tt.price), d(tt.tick), tt.dir)
		if !got.Equal(d(tt.want)) {
			t.Errorf("RoundToTick(%s, %s, %d) = %s, want %s", tt.price, tt.tick, tt.dir, got, tt.want)
		}
	}
}

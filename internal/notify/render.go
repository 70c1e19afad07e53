package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-telegram/bot"

	"github.com/alanyoungcy/walletwatch/internal/domain"
)

const tradeTitle = "Whale trade detected"

// Button labels of a trade alert.
const (
	labelFollowPassive = "📥 Follow (Bid/Ask)"
	labelFollowNow     = "⚡ Follow (Now, FOK)"
	labelIgnore        = "🙈 Ignore"
)

type tradeView struct {
	wallet, title, category, outcome, slug string
	side, price, shares, usdc, when, tx    string
}

func viewOf(ev domain.TradeEvent, meta *domain.MarketMeta) tradeView {
	v := tradeView{
		wallet:  domain.NormalizeWallet(ev.Wallet),
		title:   ev.Title,
		outcome: ev.Outcome,
		slug:    ev.Slug,
		side:    string(ev.Side),
		price:   fmt.Sprintf("%.4f", ev.Price),
		shares:  fmt.Sprintf("%.2f", ev.Size),
		usdc:    fmt.Sprintf("%.2f", ev.USDCSize),
		when:    time.Unix(ev.Timestamp, 0).UTC().Format("2006-01-02T15:04:05.000Z"),
		tx:      ev.TxHash,
	}
	if v.side == "" {
		v.side = string(domain.SideBuy)
	}
	if meta != nil {
		if v.title == "" {
			v.title = meta.Question
		}
		if v.slug == "" {
			v.slug = meta.Slug
		}
		v.category = strings.TrimSpace(meta.Category)
	}
	if v.title == "" {
		v.title = "(unknown market)"
	}
	return v
}

// RenderTradeMarkdown renders a trade alert as Telegram MarkdownV2. Free
// text is escaped; identifiers sit in code spans.
func RenderTradeMarkdown(ev domain.TradeEvent, meta *domain.MarketMeta) string {
	v := viewOf(ev, meta)
	lines := []string{
		"🧾 *" + escapeMarkdown(tradeTitle) + "*",
		"",
		"*Wallet:* " + code(v.wallet),
		"*Market:* " + escapeMarkdown(v.title),
	}
	if v.category != "" {
		lines = append(lines, "*Category:* "+escapeMarkdown(v.category))
	}
	if v.outcome != "" {
		lines = append(lines, "*Outcome:* "+escapeMarkdown(v.outcome))
	}
	if v.slug != "" {
		lines = append(lines, "*Slug:* "+code(v.slug))
	}
	lines = append(lines,
		"*Side:* *"+v.side+"*",
		"*Price:* "+code(v.price),
		"*Shares:* "+code(v.shares),
		"*USDC:* "+code(v.usdc),
		"*Time:* "+code(v.when),
	)
	if v.tx != "" {
		lines = append(lines, "*Tx:* "+code(v.tx))
	}
	return strings.Join(lines, "\n")
}

// RenderTradeText renders a trade alert as plain text.
func RenderTradeText(ev domain.TradeEvent, meta *domain.MarketMeta) string {
	v := viewOf(ev, meta)
	var b strings.Builder
	fmt.Fprintf(&b, "Wallet: %s\nMarket: %s\n", v.wallet, v.title)
	if v.category != "" {
		fmt.Fprintf(&b, "Category: %s\n", v.category)
	}
	if v.outcome != "" {
		fmt.Fprintf(&b, "Outcome: %s\n", v.outcome)
	}
	if v.slug != "" {
		fmt.Fprintf(&b, "Slug: %s\n", v.slug)
	}
	fmt.Fprintf(&b, "Side: %s\nPrice: %s\nShares: %s\nUSDC: %s\nTime: %s", v.side, v.price, v.shares, v.usdc, v.when)
	if v.tx != "" {
		fmt.Fprintf(&b, "\nTx: %s", v.tx)
	}
	return b.String()
}

// TradeActions returns the follow/ignore keyboard for a trade.
func TradeActions(txHash string) ([][]Action, error) {
	passive, err := EncodeCallback(Callback{Kind: CallbackFollow, TxHash: txHash, Mode: domain.MirrorPassive})
	if err != nil {
		return nil, err
	}
	now, err := EncodeCallback(Callback{Kind: CallbackFollow, TxHash: txHash, Mode: domain.MirrorNow})
	if err != nil {
		return nil, err
	}
	ignore, err := EncodeCallback(Callback{Kind: CallbackIgnore, TxHash: txHash})
	if err != nil {
		return nil, err
	}
	return [][]Action{
		{{Label: labelFollowPassive, Data: passive}, {Label: labelFollowNow, Data: now}},
		{{Label: labelIgnore, Data: ignore}},
	}, nil
}

func escapeMarkdown(s string) string {
	return bot.EscapeMarkdown(s)
}

// code wraps s in a MarkdownV2 code span, where only ` and \ need escaping.
func code(s string) string {
	r := strings.NewReplacer(`\`, `\\`, "`", "\\`")
	return "`" + r.Replace(s) + "`"
}

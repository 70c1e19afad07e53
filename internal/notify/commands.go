package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/alanyoungcy/walletwatch/internal/domain"
	"github.com/alanyoungcy/walletwatch/internal/service"
)

// ChatIDStateKey is the ledger state key holding the captured chat id.
const ChatIDStateKey = "telegram:chat_id"

const notAuthorized = "Not authorized."

// Mirror executes operator decisions on alerted trades.
type Mirror interface {
	Follow(ctx context.Context, txHash string, mode domain.MirrorMode) (service.MirrorOutcome, error)
	Ignore(ctx context.Context, txHash string) error
}

// BotStore is the slice of the ledger the chat commands touch.
type BotStore interface {
	domain.StateStore
	domain.WalletStore
}

// StatusInfo is the static part of the /status reply.
type StatusInfo struct {
	Criteria       domain.FilterCriteria
	TradingEnabled bool
}

// Commands implements the chat command and button handlers independently
// of the bot transport. Only the authorized chat may use them; the first
// /start claims authorization when no chat id is configured.
type Commands struct {
	store  BotStore
	mirror Mirror
	status StatusInfo
	logger *slog.Logger

	mu     sync.Mutex
	chatID int64
}

// NewCommands creates the handler set. chatID is the configured chat, or 0.
func NewCommands(store BotStore, mirror Mirror, status StatusInfo, chatID int64, logger *slog.Logger) *Commands {
	return &Commands{
		store:  store,
		mirror: mirror,
		status: status,
		chatID: chatID,
		logger: logger.With(slog.String("component", "telegram_commands")),
	}
}

// SetMirror attaches the mirror flow. It must be called before the bot
// starts receiving updates.
func (c *Commands) SetMirror(m Mirror) {
	c.mirror = m
}

// LoadChatID adopts a chat id persisted by an earlier /start when none is
// configured.
func (c *Commands) LoadChatID(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.chatID != 0 {
		return nil
	}
	raw, err := c.store.GetState(ctx, ChatIDStateKey)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("notify: load chat id: %w", err)
	}
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return fmt.Errorf("notify: stored chat id %q: %w", raw, domain.ErrBadPayload)
	}
	c.chatID = id
	return nil
}

// ChatID returns the authorized chat, or 0 when none is known yet.
func (c *Commands) ChatID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chatID
}

func (c *Commands) authorized(chatID int64) bool {
	own := c.ChatID()
	return own != 0 && own == chatID
}

// Names lists the supported commands with their descriptions.
func (c *Commands) Names() map[string]string {
	return map[string]string{
		"start":     "Claim the bot and show status",
		"status":    "Show filters and trading state",
		"wallets":   "List watched wallets",
		"addwallet": "Watch a wallet: /addwallet 0x...",
		"rmwallet":  "Stop watching a wallet: /rmwallet 0x...",
	}
}

// HandleCommand runs a slash command from chatID and returns the reply.
// Text that is not a known command yields an empty reply.
func (c *Commands) HandleCommand(ctx context.Context, chatID int64, text string) string {
	cmd, args := parseCommand(text)
	if cmd == "" {
		return ""
	}
	if cmd == "start" {
		return c.start(ctx, chatID)
	}
	if _, ok := c.Names()[cmd]; !ok {
		return ""
	}
	if !c.authorized(chatID) {
		return notAuthorized
	}

	switch cmd {
	case "status":
		return c.statusReply(ctx)
	case "wallets":
		return c.walletsReply(ctx)
	case "addwallet":
		return c.editWallet(ctx, args, true)
	case "rmwallet":
		return c.editWallet(ctx, args, false)
	}
	return ""
}

func (c *Commands) start(ctx context.Context, chatID int64) string {
	c.mu.Lock()
	claimed := false
	if c.chatID == 0 {
		c.chatID = chatID
		claimed = true
	}
	own := c.chatID
	c.mu.Unlock()

	if claimed {
		if err := c.store.SetState(ctx, ChatIDStateKey, strconv.FormatInt(chatID, 10)); err != nil {
			c.logger.ErrorContext(ctx, "persist chat id failed", slog.String("error", err.Error()))
		}
		c.logger.InfoContext(ctx, "chat authorized; set WALLETWATCH_TELEGRAM_CHAT_ID to pin it",
			slog.Int64("chat_id", chatID))
	}

	n := 0
	if ws, err := c.store.ListWallets(ctx); err == nil {
		n = len(ws)
	}
	return fmt.Sprintf("✅ Bot online. Authorized chat: %d\nTrading: %s\nWatched wallets: %d",
		own, onOff(c.status.TradingEnabled), n)
}

func (c *Commands) statusReply(ctx context.Context) string {
	ws, err := c.store.ListWallets(ctx)
	if err != nil {
		return "Could not list wallets: " + err.Error()
	}
	cr := c.status.Criteria

	sides := make([]string, 0, len(cr.CopySides))
	for s := range cr.CopySides {
		sides = append(sides, string(s))
	}
	sort.Strings(sides)

	return fmt.Sprintf("📊 Status\nWallets: %d\nCategories: %s\nKeywords: %s\nMin USDC size: %g\nCopy sides: %s\nTrading: %s",
		len(ws),
		listOrNone(setKeys(cr.Categories)),
		listOrNone(cr.Keywords),
		cr.MinUSDC,
		listOrNone(sides),
		onOff(c.status.TradingEnabled),
	)
}

func (c *Commands) walletsReply(ctx context.Context) string {
	ws, err := c.store.ListWallets(ctx)
	if err != nil {
		return "Could not list wallets: " + err.Error()
	}
	if len(ws) == 0 {
		return "No wallets watched."
	}
	return "Watched wallets:\n" + strings.Join(ws, "\n")
}

func (c *Commands) editWallet(ctx context.Context, args []string, add bool) string {
	verb := "addwallet"
	if !add {
		verb = "rmwallet"
	}
	if len(args) == 0 {
		return fmt.Sprintf("Usage: /%s 0xabc...", verb)
	}
	w := domain.NormalizeWallet(args[0])

	var err error
	if add {
		err = c.store.AddWallet(ctx, w)
	} else {
		err = c.store.RemoveWallet(ctx, w)
	}
	if err != nil {
		c.logger.ErrorContext(ctx, "wallet update failed", slog.String("command", verb), slog.String("error", err.Error()))
		return "Failed: " + err.Error()
	}
	if add {
		return "Added wallet: " + w
	}
	return "Removed wallet: " + w
}

// CallbackReply is the outcome of a button press: Answer is the short toast,
// Reply an optional follow-up chat message.
type CallbackReply struct {
	Answer string
	Reply  string
}

// HandleCallback decodes and executes a button press from chatID.
func (c *Commands) HandleCallback(ctx context.Context, chatID int64, data string) CallbackReply {
	if !c.authorized(chatID) {
		return CallbackReply{Answer: notAuthorized}
	}
	cb, err := DecodeCallback(data)
	if err != nil {
		return CallbackReply{Answer: "Bad callback data."}
	}

	if cb.Kind == CallbackIgnore {
		if err := c.mirror.Ignore(ctx, cb.TxHash); err != nil {
			return CallbackReply{Answer: lookupAnswer(err)}
		}
		return CallbackReply{Answer: "Ignored."}
	}

	out, err := c.mirror.Follow(ctx, cb.TxHash, cb.Mode)
	switch {
	case err == nil:
		return CallbackReply{
			Answer: fmt.Sprintf("Order sent (%s).", cb.Mode),
			Reply: fmt.Sprintf("✅ Followed (%s).\nPrice: %s\nSize: %s\nOrderType: %s",
				cb.Mode, out.Price, out.Size, out.Type),
		}
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrBadPayload),
		errors.Is(err, domain.ErrTokenUnresolved), errors.Is(err, domain.ErrBadCallback):
		return CallbackReply{Answer: lookupAnswer(err)}
	case errors.Is(err, domain.ErrSideDisabled):
		return CallbackReply{Answer: "Copy side disabled."}
	default:
		return CallbackReply{Answer: "Order failed.", Reply: "❌ Order failed: " + err.Error()}
	}
}

func lookupAnswer(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "Trade not found (maybe old)."
	case errors.Is(err, domain.ErrBadPayload):
		return "Bad stored trade payload."
	case errors.Is(err, domain.ErrTokenUnresolved):
		return "Could not resolve tokenID for this trade."
	case errors.Is(err, domain.ErrBadCallback):
		return "Bad callback data."
	default:
		return "Failed: " + err.Error()
	}
}

// parseCommand splits "/cmd@bot a b" into "cmd" and its args.
func parseCommand(text string) (string, []string) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil
	}
	cmd := strings.TrimPrefix(fields[0], "/")
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	return strings.ToLower(cmd), fields[1:]
}

func onOff(b bool) string {
	if b {
		return "ENABLED"
	}
	return "DISABLED"
}

func listOrNone(xs []string) string {
	if len(xs) == 0 {
		return "(none)"
	}
	return strings.Join(xs, ", ")
}

func setKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Package notify delivers trade alerts and mirror results to the operator's
// channels (Telegram, Discord). Alerts are filtered by event type so
// operators receive only what they asked for.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/walletwatch/internal/domain"
)

// Event names.
const (
	EventTrade          = "trade"
	EventMirrorExecuted = "mirror_executed"
	EventMirrorFailed   = "mirror_failed"
)

// ErrNotDelivered is returned when no channel accepted a message.
var ErrNotDelivered = errors.New("notify: message not delivered")

// Action is an inline button attached to a message. Data is an encoded
// Callback.
type Action struct {
	Label string
	Data  string
}

// Message is one notification. Channels that support rich text use
// Markdown (Telegram MarkdownV2) and Actions; the rest use Title and Text.
type Message struct {
	Event    string
	Title    string
	Text     string
	Markdown string
	Actions  [][]Action
}

// Sender is implemented by each notification channel.
type Sender interface {
	Send(ctx context.Context, msg Message) error
	// Name returns a short identifier for the sender (e.g. "telegram").
	Name() string
}

// Notifier dispatches messages to every registered Sender. One failing
// sender never blocks delivery to the others.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier. Only events listed in events are
// forwarded; an empty list allows all events.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// NotifyTrade sends a trade alert with follow/ignore actions. It returns
// an error unless at least one channel delivered the alert, so the caller
// only marks the trade notified when someone actually saw it.
func (n *Notifier) NotifyTrade(ctx context.Context, ev domain.TradeEvent, meta *domain.MarketMeta) error {
	actions, err := TradeActions(ev.TxHash)
	if err != nil {
		return fmt.Errorf("notify: trade actions: %w", err)
	}
	return n.Notify(ctx, Message{
		Event:    EventTrade,
		Title:    tradeTitle,
		Text:     RenderTradeText(ev, meta),
		Markdown: RenderTradeMarkdown(ev, meta),
		Actions:  actions,
	})
}

// NotifyEvent sends a plain-text event such as a mirror result.
func (n *Notifier) NotifyEvent(ctx context.Context, event, text string) error {
	return n.Notify(ctx, Message{
		Event:    event,
		Title:    eventTitle(event),
		Text:     text,
		Markdown: escapeMarkdown(text),
	})
}

// Notify forwards msg to all senders if its event is allowed. A filtered
// event is not an error.
func (n *Notifier) Notify(ctx context.Context, msg Message) error {
	if len(n.events) > 0 && !n.events[msg.Event] {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("event", msg.Event))
		return nil
	}
	return n.dispatch(ctx, msg)
}

func (n *Notifier) dispatch(ctx context.Context, msg Message) error {
	if len(n.senders) == 0 {
		return fmt.Errorf("%w: no channels configured", ErrNotDelivered)
	}

	var (
		errs      []string
		delivered int
	)
	for _, s := range n.senders {
		if err := s.Send(ctx, msg); err != nil {
			n.logger.WarnContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("event", msg.Event),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
			continue
		}
		delivered++
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("event", msg.Event),
		)
	}

	if delivered == 0 {
		return fmt.Errorf("%w: %s", ErrNotDelivered, strings.Join(errs, "; "))
	}
	return nil
}

func eventTitle(event string) string {
	switch event {
	case EventMirrorExecuted:
		return "Mirror order sent"
	case EventMirrorFailed:
		return "Mirror order failed"
	default:
		return event
	}
}

package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

var errNoChat = errors.New("telegram: no authorized chat yet; send /start to the bot")

// TelegramChannel is both a Sender for alerts and the interactive side of
// the bot: it routes commands and button presses to Commands.
type TelegramChannel struct {
	bot    *bot.Bot
	cmds   *Commands
	logger *slog.Logger
}

var _ Sender = (*TelegramChannel)(nil)

// NewTelegramChannel creates the bot client. No network call is made until
// Run.
func NewTelegramChannel(token string, cmds *Commands, logger *slog.Logger) (*TelegramChannel, error) {
	t := &TelegramChannel{
		cmds:   cmds,
		logger: logger.With(slog.String("component", "telegram")),
	}
	b, err := bot.New(token,
		bot.WithSkipGetMe(),
		bot.WithDefaultHandler(t.handleUpdate),
	)
	if err != nil {
		return nil, fmt.Errorf("telegram: new bot: %w", err)
	}
	t.bot = b
	return t, nil
}

// Name returns the sender identifier.
func (t *TelegramChannel) Name() string {
	return "telegram"
}

// Send posts msg to the authorized chat as MarkdownV2 with its actions as
// an inline keyboard.
func (t *TelegramChannel) Send(ctx context.Context, msg Message) error {
	chatID := t.cmds.ChatID()
	if chatID == 0 {
		return errNoChat
	}

	text := msg.Markdown
	if text == "" {
		text = "*" + escapeMarkdown(msg.Title) + "*\n" + escapeMarkdown(msg.Text)
	}
	params := &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeMarkdown,
	}
	if kb := inlineKeyboard(msg.Actions); kb != nil {
		params.ReplyMarkup = kb
	}

	if _, err := t.bot.SendMessage(ctx, params); err != nil {
		return fmt.Errorf("telegram: send message: %w", err)
	}
	return nil
}

// Run registers the command menu and long-polls for updates until ctx is
// done.
func (t *TelegramChannel) Run(ctx context.Context) error {
	if err := t.cmds.LoadChatID(ctx); err != nil {
		t.logger.WarnContext(ctx, "could not load stored chat id", slog.String("error", err.Error()))
	}
	if _, err := t.bot.SetMyCommands(ctx, &bot.SetMyCommandsParams{Commands: t.menu()}); err != nil {
		t.logger.WarnContext(ctx, "set bot commands failed", slog.String("error", err.Error()))
	}
	if t.cmds.ChatID() == 0 {
		t.logger.WarnContext(ctx, "no telegram chat id configured; send /start to the bot once")
	}

	t.logger.InfoContext(ctx, "telegram bot started")
	t.bot.Start(ctx)
	t.logger.InfoContext(ctx, "telegram bot stopped")
	return nil
}

func (t *TelegramChannel) menu() []models.BotCommand {
	names := t.cmds.Names()
	keys := make([]string, 0, len(names))
	for k := range names {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	cmds := make([]models.BotCommand, 0, len(keys))
	for _, k := range keys {
		cmds = append(cmds, models.BotCommand{Command: k, Description: names[k]})
	}
	return cmds
}

func (t *TelegramChannel) handleUpdate(ctx context.Context, b *bot.Bot, update *models.Update) {
	switch {
	case update.CallbackQuery != nil:
		t.handleCallback(ctx, b, update.CallbackQuery)
	case update.Message != nil && strings.HasPrefix(update.Message.Text, "/"):
		msg := update.Message
		reply := t.cmds.HandleCommand(ctx, msg.Chat.ID, msg.Text)
		if reply == "" {
			return
		}
		t.reply(ctx, b, msg.Chat.ID, reply)
	}
}

func (t *TelegramChannel) handleCallback(ctx context.Context, b *bot.Bot, q *models.CallbackQuery) {
	chatID := callbackChatID(q)
	res := t.cmds.HandleCallback(ctx, chatID, q.Data)

	_, err := b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: q.ID,
		Text:            res.Answer,
	})
	if err != nil {
		t.logger.WarnContext(ctx, "answer callback failed", slog.String("error", err.Error()))
	}
	if res.Reply != "" && chatID != 0 {
		t.reply(ctx, b, chatID, res.Reply)
	}
}

func (t *TelegramChannel) reply(ctx context.Context, b *bot.Bot, chatID int64, text string) {
	if _, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		t.logger.WarnContext(ctx, "reply failed",
			slog.Int64("chat_id", chatID),
			slog.String("error", err.Error()),
		)
	}
}

func callbackChatID(q *models.CallbackQuery) int64 {
	switch {
	case q.Message.Message != nil:
		return q.Message.Message.Chat.ID
	case q.Message.InaccessibleMessage != nil:
		return q.Message.InaccessibleMessage.Chat.ID
	}
	return 0
}

func inlineKeyboard(rows [][]Action) *models.InlineKeyboardMarkup {
	if len(rows) == 0 {
		return nil
	}
	kb := &models.InlineKeyboardMarkup{}
	for _, row := range rows {
		buttons := make([]models.InlineKeyboardButton, 0, len(row))
		for _, a := range row {
			buttons = append(buttons, models.InlineKeyboardButton{Text: a.Label, CallbackData: a.Data})
		}
		kb.InlineKeyboard = append(kb.InlineKeyboard, buttons)
	}
	return kb
}

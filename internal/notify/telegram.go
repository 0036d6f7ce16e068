// Package notify delivers due-review reminders to learners.
package notify

import (
	"context"
	"fmt"
	"strconv"

	"github.com/example/learnengine/internal/errkind"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Sender is the subset of tgbotapi.BotAPI used for reminders.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier sends reminders as Telegram messages.
type TelegramNotifier struct {
	api     Sender
	chatIDs map[string]int64
	logger  *zap.Logger
}

// NewTelegramNotifier authorizes the bot token and returns a notifier.
// chatIDs maps user IDs to chat IDs; numeric user IDs without an entry are used directly.
func NewTelegramNotifier(token string, chatIDs map[string]int64, logger *zap.Logger) (*TelegramNotifier, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("unable to create bot: %w", err)
	}
	n := NewTelegramNotifierWithSender(api, chatIDs, logger)
	n.logger.Info("telegram notifier authorized", zap.String("account", api.Self.UserName))
	return n, nil
}

// NewTelegramNotifierWithSender returns a notifier over an existing sender.
func NewTelegramNotifierWithSender(api Sender, chatIDs map[string]int64, logger *zap.Logger) *TelegramNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TelegramNotifier{api: api, chatIDs: chatIDs, logger: logger}
}

// ChatID resolves the Telegram chat of userID.
func (n *TelegramNotifier) ChatID(userID string) (int64, error) {
	if id, ok := n.chatIDs[userID]; ok {
		return id, nil
	}
	// Private chats share the user's Telegram ID.
	id, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return 0, errkind.New(errkind.InvalidInput, "no telegram chat for user %q", userID)
	}
	return id, nil
}

// SendReminders tells userID that count items are due.
func (n *TelegramNotifier) SendReminders(ctx context.Context, userID string, count int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	chatID, err := n.ChatID(userID)
	if err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(chatID, ReminderText(count))
	if _, err := n.api.Send(msg); err != nil {
		n.logger.Warn("send reminder failed", zap.String("user_id", userID), zap.Error(err))
		return fmt.Errorf("send reminder to %s: %w", userID, err)
	}
	n.logger.Info("reminder sent", zap.String("user_id", userID), zap.Int("due", count))
	return nil
}

// ReminderText formats the reminder for count due items.
func ReminderText(count int) string {
	noun := "items"
	if count == 1 {
		noun = "item"
	}
	return fmt.Sprintf("You have %d %s due for review. Start a session before they slip away!", count, noun)
}

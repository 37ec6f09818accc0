// Package telegram posts complaint alerts to a Telegram chat through the
// Bot API.
package telegram

import (
	"context"
	"fmt"
	"html"
	"strings"

	"complaintdesk/backend/internal/localization"
	"complaintdesk/backend/internal/logging"
	"complaintdesk/backend/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Sender is the part of *tgbotapi.BotAPI the notifier uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier sends complaint alerts to one chat. A nil *Notifier is a valid
// disabled notifier.
type Notifier struct {
	bot    Sender
	chatID int64
	loc    *localization.Localizer
	lang   string
	log    *zap.Logger
}

// NewNotifier authorizes the bot token and returns a notifier for chatID.
func NewNotifier(token string, chatID int64, loc *localization.Localizer, log *zap.Logger) (*Notifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to authorize telegram bot: %w", err)
	}
	bot.Debug = false
	log = logging.OrNop(log)
	log.Info("telegram bot authorized", zap.String("account", bot.Self.UserName))
	return NewNotifierWithSender(bot, chatID, loc, log), nil
}

// NewNotifierWithSender builds a notifier around an existing sender.
func NewNotifierWithSender(bot Sender, chatID int64, loc *localization.Localizer, log *zap.Logger) *Notifier {
	if loc == nil {
		loc = localization.Default()
	}
	return &Notifier{
		bot:    bot,
		chatID: chatID,
		loc:    loc,
		lang:   localization.DefaultLanguage,
		log:    logging.OrNop(log),
	}
}

// ComplaintStatusChanged posts the transition. Failures are logged only so
// a Telegram outage never fails a reload.
func (n *Notifier) ComplaintStatusChanged(ctx context.Context, change models.StatusChange) {
	if n == nil {
		return
	}
	headline := n.loc.Format(n.lang, "complaint.status_changed", change.Complaint.Title, change.To)

	var b strings.Builder
	fmt.Fprintf(&b, "🔔 <b>%s</b>\n", html.EscapeString(headline))
	fmt.Fprintf(&b, "#%s: %s → %s", html.EscapeString(string(change.Complaint.ID)), change.From, change.To)
	if change.Complaint.EmployeeID != nil {
		fmt.Fprintf(&b, "\nEmployee: %s", html.EscapeString(*change.Complaint.EmployeeID))
	}

	if err := n.send(ctx, b.String()); err != nil {
		n.log.Warn("failed to send status alert",
			zap.String("complaint_id", string(change.Complaint.ID)), zap.Error(err))
	}
}

// ComplaintCreated posts a newly submitted complaint.
func (n *Notifier) ComplaintCreated(ctx context.Context, c models.Complaint) error {
	if n == nil {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🆕 <b>New Complaint: #%s</b>\n\n", html.EscapeString(string(c.ID)))
	fmt.Fprintf(&b, "<b>%s</b>\n", html.EscapeString(c.Title))
	if c.Description != "" {
		fmt.Fprintf(&b, "%s\n", html.EscapeString(c.Description))
	}
	fmt.Fprintf(&b, "Type: %s\nAddress: %s", c.ComplaintType, html.EscapeString(c.Address))

	if err := n.send(ctx, b.String()); err != nil {
		return fmt.Errorf("failed to send complaint %s to telegram: %w", c.ID, err)
	}
	return nil
}

func (n *Notifier) send(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML

	if _, err := n.bot.Send(msg); err != nil {
		return err
	}
	n.log.Debug("telegram alert sent", zap.Int64("chat_id", n.chatID))
	return nil
}

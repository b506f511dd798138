// Package notify pushes fill and close alerts to Telegram.
package notify

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"papertrade/internal/store"
)

// Telegram sends trade alerts to a single chat. It slots into the engine as
// a notifier; alerts are best-effort and never block a fill.
type Telegram struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegram connects the bot. Returns an error when the token is rejected.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	log.Info().Str("username", api.Self.UserName).Msg("🤖 Telegram bot connected")
	return &Telegram{api: api, chatID: chatID}, nil
}

func (t *Telegram) send(text string) {
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := t.api.Send(msg); err != nil {
		log.Warn().Err(err).Msg("Telegram send failed")
	}
}

// OrderFilled announces an executed order with its fill price.
func (t *Telegram) OrderFilled(order store.Order, price decimal.Decimal) {
	emoji := "🟢"
	if order.Side == store.SideSell {
		emoji = "🔴"
	}
	t.send(fmt.Sprintf("%s *%s %s* %s\nQty: `%s` @ `%s`\nFee: `%s`",
		emoji, order.Side, order.OrderType, order.Symbol,
		order.Quantity.String(), price.String(), order.Fee.String()))
}

// PositionClosed announces a fully closed position with its realized result.
func (t *Telegram) PositionClosed(h store.PositionHistory) {
	emoji := "✅"
	if h.RealizedPnl.IsNegative() {
		emoji = "❌"
	}
	t.send(fmt.Sprintf("%s *%s %s closed*\nQty: `%s`  Entry: `%s`  Exit: `%s`\nPnL: `%s`  Fees: `%s`",
		emoji, h.Side, h.Symbol,
		h.Quantity.String(), h.EntryPrice.String(), h.ExitPrice.String(),
		h.RealizedPnl.String(), h.TotalFee.String()))
}

// AccountUpdate is a no-op; balance changes are implied by the fill alerts.
func (t *Telegram) AccountUpdate(uint) {}

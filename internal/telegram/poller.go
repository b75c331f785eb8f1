package telegram

import (
	"context"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/hitoshi/grindbot/internal/bot"
)

// UpdateHandler は変換済みの入力を処理する。bot.Dispatcherが実装する。
type UpdateHandler interface {
	Handle(ctx context.Context, upd bot.Update) error
}

// Poller はロングポーリングで受信した更新をUpdateHandlerに渡す。
// 更新は受信順に1件ずつ処理する。
type Poller struct {
	api     botAPI
	handler UpdateHandler
	timeout int
	logger  *slog.Logger
}

// NewPoller はPollerの新しいインスタンスを生成する。timeoutはロングポーリングの秒数。
func NewPoller(api botAPI, handler UpdateHandler, timeout int, logger *slog.Logger) *Poller {
	if timeout <= 0 {
		timeout = 60
	}
	return &Poller{api: api, handler: handler, timeout: timeout, logger: logger}
}

// Run はコンテキストがキャンセルされるまで更新を受信し続ける。
func (p *Poller) Run(ctx context.Context) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = p.timeout
	updates := p.api.GetUpdatesChan(cfg)

	p.logger.Info("Telegramの更新受信を開始しました", slog.Int("timeout_sec", p.timeout))

	for {
		select {
		case <-ctx.Done():
			p.api.StopReceivingUpdates()
			p.logger.Info("Telegramの更新受信を停止しました")
			return
		case raw, ok := <-updates:
			if !ok {
				return
			}
			p.dispatch(ctx, raw)
		}
	}
}

func (p *Poller) dispatch(ctx context.Context, raw tgbotapi.Update) {
	if raw.CallbackQuery != nil {
		// ボタンのローディング表示を止める
		if _, err := p.api.Request(tgbotapi.NewCallback(raw.CallbackQuery.ID, "")); err != nil {
			p.logger.Warn("failed to answer callback query", slog.String("error", err.Error()))
		}
	}

	upd, ok := ToUpdate(raw)
	if !ok {
		return
	}
	if err := p.handler.Handle(ctx, upd); err != nil {
		p.logger.Error("failed to handle telegram update",
			slog.Int("update_id", raw.UpdateID),
			slog.Int64("user_id", upd.UserID),
			slog.String("error", err.Error()),
		)
	}
}

// ToUpdate はTelegramの更新をbot.Updateに変換する。処理対象外の更新はokがfalseになる。
func ToUpdate(raw tgbotapi.Update) (bot.Update, bool) {
	switch {
	case raw.Message != nil && raw.Message.From != nil:
		m := raw.Message
		upd := bot.Update{
			UserID:    m.From.ID,
			FirstName: m.From.FirstName,
			MessageID: m.MessageID,
		}
		if m.Chat != nil {
			upd.ChatID = m.Chat.ID
		}
		if cmd, args, ok := bot.ParseCommand(m.Text); ok {
			upd.Command = cmd
			upd.Args = args
			return upd, true
		}
		if strings.TrimSpace(m.Text) == "" {
			return bot.Update{}, false
		}
		upd.Text = m.Text
		return upd, true

	case raw.CallbackQuery != nil && raw.CallbackQuery.From != nil:
		q := raw.CallbackQuery
		upd := bot.Update{
			UserID:       q.From.ID,
			FirstName:    q.From.FirstName,
			CallbackData: q.Data,
		}
		if q.Message != nil {
			upd.MessageID = q.Message.MessageID
			if q.Message.Chat != nil {
				upd.ChatID = q.Message.Chat.ID
			}
		}
		return upd, upd.CallbackData != ""

	default:
		return bot.Update{}, false
	}
}

// Package telegram はTelegram Bot APIとのトランスポートを提供する。
// 送信はmessage.Senderとして、受信はロングポーリングでbot.Updateに変換して扱う。
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/hitoshi/grindbot/internal/message"
)

// botAPI は*tgbotapi.BotAPIのうち使用するメソッド。テストでは差し替える。
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

var _ botAPI = (*tgbotapi.BotAPI)(nil)

// NewBotAPI はトークンでBot APIクライアントを生成する。生成時にgetMeで疎通を確認する。
func NewBotAPI(token string) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("Telegram Bot APIへの接続に失敗しました: %w", err)
	}
	return api, nil
}

// Sender はmessage.MessageをHTMLパースモードのTelegramメッセージとして送信する。
// 429や5xxは指数バックオフで再試行する。
type Sender struct {
	api         botAPI
	maxAttempts int
	sleep       func(ctx context.Context, d time.Duration) error
}

var _ message.Sender = (*Sender)(nil)

// NewSender はSenderの新しいインスタンスを生成する。
func NewSender(api botAPI) *Sender {
	return &Sender{
		api:         api,
		maxAttempts: defaultMaxAttempts,
		sleep:       sleepContext,
	}
}

// Send はメッセージを送信する。EditMessageIDが設定されている場合は既存メッセージを編集する。
// Bot APIクライアントはコンテキストに対応しないため、送信前と再試行の待機中にのみキャンセルを確認する。
func (s *Sender) Send(ctx context.Context, chatID int64, msg message.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var c tgbotapi.Chattable
	if msg.EditMessageID != 0 {
		edit := tgbotapi.NewEditMessageText(chatID, msg.EditMessageID, msg.Text)
		edit.ParseMode = tgbotapi.ModeHTML
		if markup, ok := keyboard(msg.Buttons); ok {
			edit.ReplyMarkup = &markup
		}
		c = edit
	} else {
		out := tgbotapi.NewMessage(chatID, msg.Text)
		out.ParseMode = tgbotapi.ModeHTML
		out.DisableWebPagePreview = true
		if markup, ok := keyboard(msg.Buttons); ok {
			out.ReplyMarkup = markup
		}
		c = out
	}

	var err error
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		if attempt > 0 {
			if werr := s.sleep(ctx, CalculateBackoff(attempt-1, err)); werr != nil {
				return werr
			}
		}
		_, err = s.api.Send(c)
		if err == nil {
			return nil
		}
		if msg.EditMessageID != 0 && isNotModified(err) {
			return nil
		}
		if ClassifyError(err) != SendResultRetry {
			break
		}
	}
	return fmt.Errorf("telegram send (chat %d): %w", chatID, err)
}

// keyboard はボタン行をインラインキーボードに変換する。
func keyboard(rows [][]message.Button) (tgbotapi.InlineKeyboardMarkup, bool) {
	if len(rows) == 0 {
		return tgbotapi.InlineKeyboardMarkup{}, false
	}
	out := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			if b.URL != "" {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.URL))
			} else {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
			}
		}
		out = append(out, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(out...), true
}

// isNotModified は同じ内容での編集に対するエラーかを判定する。
func isNotModified(err error) bool {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return strings.Contains(apiErr.Message, "message is not modified")
	}
	return strings.Contains(err.Error(), "message is not modified")
}

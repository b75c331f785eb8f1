package telegram

import (
	"context"
	"errors"
	"net"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// SendResult はBot APIのエラーに基づく送信結果の分類。
type SendResult int

const (
	// SendResultOK は送信成功。
	SendResultOK SendResult = iota
	// SendResultStop は再試行しても成功しないエラー（400/401/403/404）。
	SendResultStop
	// SendResultRetry は時間をおいて再試行すべきエラー（429/5xx/ネットワークエラー）。
	SendResultRetry
)

const (
	// defaultMaxAttempts は1メッセージあたりの最大送信回数。
	defaultMaxAttempts = 3
	// initialBackoff は指数バックオフの初回遅延。
	initialBackoff = 500 * time.Millisecond
	// maxBackoff は指数バックオフおよびretry_after待機の上限。
	maxBackoff = 5 * time.Second
)

// ClassifyError は送信エラーを分類する。nilはSendResultOK。
func ClassifyError(err error) SendResult {
	if err == nil {
		return SendResultOK
	}
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 429:
			return SendResultRetry
		case apiErr.Code >= 500:
			return SendResultRetry
		default:
			return SendResultStop
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return SendResultRetry
	}
	return SendResultStop
}

// CalculateBackoff は再試行回数に基づいて待機時間を計算する。
// 429でretry_afterが返された場合はその秒数を優先する。いずれもmaxBackoffで頭打ち。
func CalculateBackoff(attempt int, err error) time.Duration {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		return min(time.Duration(apiErr.RetryAfter)*time.Second, maxBackoff)
	}
	delay := initialBackoff
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

// sleepContext はdだけ待機する。待機中にキャンセルされた場合はコンテキストのエラーを返す。
func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

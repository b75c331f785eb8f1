// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
	"strings"
)

// AppError は統一エラーフォーマットを表す。
// Actionはチャット上でユーザーに返す案内文として使う。
type AppError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ（ログ用）
	Category string // カテゴリ: validation, user, delivery, payload, config
	Action   string // ユーザー向け対処方法
	Err      error  // 原因となったエラー
}

// Error はerrorインターフェースを実装する。
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap は原因エラーを返す。
func (e *AppError) Unwrap() error {
	return e.Err
}

// 定義済みエラーコード
const (
	ErrCodeValidation       = "VALIDATION_FAILED"
	ErrCodeUnknownUser      = "UNKNOWN_USER"
	ErrCodeDelivery         = "DELIVERY_FAILED"
	ErrCodeMalformedPayload = "MALFORMED_PAYLOAD"
	ErrCodeConfiguration    = "CONFIGURATION_INVALID"
)

// HasCode はエラーチェーン内に指定コードのAppErrorが含まれるかを返す。
func HasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// NewValidationError は入力値の検証エラーを生成する。
// オンボーディングでは同じステップを再度入力させる。
func NewValidationError(field, example string) *AppError {
	return &AppError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("無効な入力値です: %s", field),
		Category: "validation",
		Action:   fmt.Sprintf("❌ Inserisci un numero valido (es: %s)", example),
	}
}

// NewSelectionError は選択肢以外の入力に対する検証エラーを生成する。
func NewSelectionError(field string) *AppError {
	return &AppError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("選択肢以外の入力です: %s", field),
		Category: "validation",
		Action:   "👆 Scegli una delle opzioni qui sopra.",
	}
}

// NewUnknownUserError はプロフィール未作成のユーザーによる操作のエラーを生成する。
func NewUnknownUserError(userID int64) *AppError {
	return &AppError{
		Code:     ErrCodeUnknownUser,
		Message:  fmt.Sprintf("プロフィールが存在しません: %d", userID),
		Category: "user",
		Action:   "Usa /setup per configurare il profilo!",
	}
}

// NewDeliveryError は通知の送信失敗エラーを生成する。
func NewDeliveryError(userID int64, err error) *AppError {
	return &AppError{
		Code:     ErrCodeDelivery,
		Message:  fmt.Sprintf("メッセージの送信に失敗しました: %d", userID),
		Category: "delivery",
		Err:      err,
	}
}

// NewMalformedPayloadError はコンパニオンアプリからの不正なペイロードのエラーを生成する。
func NewMalformedPayloadError(reason string, err error) *AppError {
	return &AppError{
		Code:     ErrCodeMalformedPayload,
		Message:  fmt.Sprintf("ペイロードの解析に失敗しました: %s", reason),
		Category: "payload",
		Err:      err,
	}
}

// NewConfigurationError は起動時設定の不備エラーを生成する。
func NewConfigurationError(problems []string) *AppError {
	return &AppError{
		Code:     ErrCodeConfiguration,
		Message:  fmt.Sprintf("設定が不正です: %s", strings.Join(problems, ", ")),
		Category: "config",
		Action:   "環境変数を確認してください。",
	}
}

// NewTextExpectedError はテキスト入力を求めるステップで選択肢が押された場合のエラーを生成する。
func NewTextExpectedError(field string) *AppError {
	return &AppError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("テキスト入力が必要です: %s", field),
		Category: "validation",
		Action:   "✍️ Scrivi la risposta in un messaggio.",
	}
}

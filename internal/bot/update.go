// Package bot はチャットからの入力をオンボーディング・プロフィール操作・
// コンパニオンアプリ連携へ振り分け、返信メッセージを送信する。
// トランスポート（Telegram）には依存せず、Update と message.Sender だけを扱う。
package bot

import "strings"

// Update はトランスポートから受け取った1件の入力。
// Command、CallbackData、WebAppData、Text のうち最初に設定されているものとして扱う。
type Update struct {
	UserID    int64
	ChatID    int64
	FirstName string

	// Command はスラッシュと@ボット名を除いた小文字のコマンド名。
	Command string
	Args    []string

	// CallbackData はインラインボタンのコールバックデータ。
	// MessageID はボタンが付いていたメッセージで、返信はこのメッセージを編集する。
	CallbackData string
	MessageID    int

	// WebAppData はコンパニオンアプリから送られた生のJSON。
	WebAppData []byte

	Text string
}

// ParseCommand はメッセージ本文をコマンド名と引数に分解する。
// "/setpeso@WinterGrindBot 75.5" は ("setpeso", ["75.5"]) になる。
func ParseCommand(text string) (string, []string, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil, false
	}
	cmd := strings.TrimPrefix(fields[0], "/")
	if i := strings.Index(cmd, "@"); i >= 0 {
		cmd = cmd[:i]
	}
	if cmd == "" {
		return "", nil, false
	}
	return strings.ToLower(cmd), fields[1:], true
}

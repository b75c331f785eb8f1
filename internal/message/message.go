// Package message はチャットへ送る送信メッセージのモデルと送信インターフェースを定義する。
// 具体的なトランスポート（Telegram等）には依存しない。
package message

import "context"

// Button はインラインキーボードのボタン。URLとDataのどちらか一方を設定する。
type Button struct {
	Text string
	URL  string // コンパニオンアプリ等を開くリンク
	Data string // コールバックデータ（例: goal_bulk）
}

// Message は1通の送信メッセージ。TextはHTMLパースモードで解釈される。
type Message struct {
	Text    string
	Buttons [][]Button
	// EditMessageID が0以外の場合、新規送信ではなく既存メッセージを編集する。
	EditMessageID int
}

// Sender はメッセージ送信のインターフェース。
type Sender interface {
	Send(ctx context.Context, chatID int64, msg Message) error
}

// SenderFunc は関数をSenderとして扱うためのアダプタ。
type SenderFunc func(ctx context.Context, chatID int64, msg Message) error

// Send はf(ctx, chatID, msg)を呼び出す。
func (f SenderFunc) Send(ctx context.Context, chatID int64, msg Message) error {
	return f(ctx, chatID, msg)
}

// Text はボタン無しのメッセージを生成する。
func Text(text string) Message {
	return Message{Text: text}
}

// WithLink は1行1ボタンのURLボタンを付けたメッセージを生成する。
func WithLink(text, label, url string) Message {
	return Message{
		Text:    text,
		Buttons: [][]Button{{{Text: label, URL: url}}},
	}
}

// Choice は選択肢ボタンの表示名とコールバックデータ。
type Choice struct {
	Label string
	Data  string
}

// WithChoices は選択肢を1行1ボタンで並べたメッセージを生成する。
func WithChoices(text string, choices ...Choice) Message {
	rows := make([][]Button, len(choices))
	for i, c := range choices {
		rows[i] = []Button{{Text: c.Label, Data: c.Data}}
	}
	return Message{Text: text, Buttons: rows}
}

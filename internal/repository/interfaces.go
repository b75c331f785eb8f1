// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/grindbot/internal/model"
)

// UserStore はユーザーのプロフィールと設定の永続化インターフェース。
// キーはユーザーID。1キー単位の取得・保存がアトミックであることを保証する。
// 同一ユーザーへの読み取り→変更→書き込みの直列化は呼び出し側（profile.Service）が行う。
type UserStore interface {
	// FindProfile は指定ユーザーのプロフィールを取得する。見つからない場合はnilを返す。
	FindProfile(ctx context.Context, userID int64) (*model.UserProfile, error)

	// SaveProfile はプロフィールを丸ごと上書き保存する。
	SaveProfile(ctx context.Context, profile *model.UserProfile) error

	// FindSettings は指定ユーザーの設定を取得する。見つからない場合はnilを返す。
	FindSettings(ctx context.Context, userID int64) (*model.UserSettings, error)

	// SaveSettings は設定を丸ごと上書き保存する。
	SaveSettings(ctx context.Context, settings *model.UserSettings) error

	// SaveOnboarding はオンボーディング完了時のプロフィールと設定を同時に保存する。
	// どちらか一方だけが保存されることはない。
	SaveOnboarding(ctx context.Context, profile *model.UserProfile, settings *model.UserSettings) error

	// ListUsers はプロフィールまたは設定を持つ全ユーザーを返す。
	// 設定レコードが無いユーザーはSettingsがnilになる。
	ListUsers(ctx context.Context) ([]model.UserRecord, error)
}

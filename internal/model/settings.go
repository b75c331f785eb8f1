package model

import (
	"encoding/json"
	"time"
)

// 通知の種類。スケジューラのジョブ種別と一致する。
const (
	ReminderMorning      = "morning"
	ReminderEvening      = "evening"
	ReminderWeeklyReport = "weekly_report"
)

// UserSettings はユーザーごとの通知設定とコンパニオンアプリの状態。
type UserSettings struct {
	UserID          int64
	Notifications   bool
	ReminderMorning bool
	ReminderEvening bool
	ReminderWeekly  bool
	// AppState はコンパニオンアプリから stateUpdate で送られた状態。丸ごと置き換える。
	AppState  json.RawMessage
	UpdatedAt time.Time
}

// DefaultSettings は全フラグを有効にした設定を返す。
func DefaultSettings(userID int64) *UserSettings {
	return &UserSettings{
		UserID:          userID,
		Notifications:   true,
		ReminderMorning: true,
		ReminderEvening: true,
		ReminderWeekly:  true,
		UpdatedAt:       time.Now(),
	}
}

// NotificationsEnabled は指定種別の通知を送ってよいかを判定する。
// 設定レコードが存在しない（nil）場合は有効として扱う。
// 未知の種別は全体フラグのみで判定する。
func NotificationsEnabled(s *UserSettings, kind string) bool {
	if s == nil {
		return true
	}
	if !s.Notifications {
		return false
	}
	switch kind {
	case ReminderMorning:
		return s.ReminderMorning
	case ReminderEvening:
		return s.ReminderEvening
	case ReminderWeeklyReport:
		return s.ReminderWeekly
	default:
		return true
	}
}

// Clone は設定のコピーを返す。AppStateも複製する。
func (s *UserSettings) Clone() *UserSettings {
	if s == nil {
		return nil
	}
	c := *s
	if s.AppState != nil {
		c.AppState = append(json.RawMessage(nil), s.AppState...)
	}
	return &c
}

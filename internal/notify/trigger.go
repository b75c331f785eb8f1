// Package notify は定期通知のスケジューリングと全ユーザーへの配信を提供する。
package notify

import (
	"fmt"
	"strings"
	"time"
)

// Trigger は定期ジョブの発火時刻の指定。
// Weekdayがnilの場合は毎日、指定されている場合は毎週その曜日に発火する。
type Trigger struct {
	Hour     int
	Minute   int
	Weekday  *time.Weekday
	Location *time.Location
}

// Daily は毎日指定時刻に発火するTriggerを返す。
func Daily(hour, minute int, loc *time.Location) Trigger {
	return Trigger{Hour: hour, Minute: minute, Location: loc}
}

// Weekly は毎週指定曜日の指定時刻に発火するTriggerを返す。
func Weekly(day time.Weekday, hour, minute int, loc *time.Location) Trigger {
	return Trigger{Hour: hour, Minute: minute, Weekday: &day, Location: loc}
}

// Next はafterより厳密に後の、次の発火時刻を返す。
// 時刻はLocationの壁時計で計算するため、夏時間の切り替えをまたいでも同じ時刻に発火する。
func (t Trigger) Next(after time.Time) time.Time {
	loc := t.Location
	if loc == nil {
		loc = time.Local
	}
	local := after.In(loc)

	// 週次の場合でも8日先までに必ず見つかる
	for i := 0; i <= 7; i++ {
		candidate := time.Date(local.Year(), local.Month(), local.Day()+i, t.Hour, t.Minute, 0, 0, loc)
		if t.Weekday != nil && candidate.Weekday() != *t.Weekday {
			continue
		}
		if candidate.After(after) {
			return candidate
		}
	}
	return time.Date(local.Year(), local.Month(), local.Day()+8, t.Hour, t.Minute, 0, 0, loc)
}

// String はログ出力用の表現を返す（例: "daily 08:00", "sunday 21:00"）。
func (t Trigger) String() string {
	day := "daily"
	if t.Weekday != nil {
		day = strings.ToLower(t.Weekday.String())
	}
	return fmt.Sprintf("%s %02d:%02d", day, t.Hour, t.Minute)
}

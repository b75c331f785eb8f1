package notify

import (
	"time"

	"github.com/hitoshi/grindbot/internal/model"
)

// ScheduleConfig は3種類の定期通知の発火時刻。
type ScheduleConfig struct {
	Location      *time.Location
	MorningHour   int
	MorningMinute int
	EveningHour   int
	EveningMinute int
	WeeklyDay     time.Weekday
	WeeklyHour    int
	WeeklyMinute  int
}

// DefaultSchedule は朝8:00、夜20:00、日曜21:00のスケジュールを返す。
func DefaultSchedule(loc *time.Location) ScheduleConfig {
	return ScheduleConfig{
		Location:    loc,
		MorningHour: 8,
		EveningHour: 20,
		WeeklyDay:   time.Sunday,
		WeeklyHour:  21,
	}
}

// Jobs はスケジュール設定から登録すべき3つのジョブを返す。
func (c ScheduleConfig) Jobs() []Job {
	return []Job{
		{
			ID:      "morning_reminder",
			Kind:    model.ReminderMorning,
			Trigger: Daily(c.MorningHour, c.MorningMinute, c.Location),
		},
		{
			ID:      "evening_reminder",
			Kind:    model.ReminderEvening,
			Trigger: Daily(c.EveningHour, c.EveningMinute, c.Location),
		},
		{
			ID:      "weekly_report",
			Kind:    model.ReminderWeeklyReport,
			Trigger: Weekly(c.WeeklyDay, c.WeeklyHour, c.WeeklyMinute, c.Location),
		},
	}
}

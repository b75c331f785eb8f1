package notify

import (
	"fmt"
	"time"

	"github.com/hitoshi/grindbot/internal/message"
	"github.com/hitoshi/grindbot/internal/model"
	"github.com/hitoshi/grindbot/internal/progress"
)

// Reminders は通知種別ごとのメッセージを組み立てる。
type Reminders struct {
	appURL   string
	location *time.Location
}

// NewReminders はRemindersを生成する。曜日の判定はlocの壁時計で行う。
func NewReminders(appURL string, loc *time.Location) *Reminders {
	if loc == nil {
		loc = time.Local
	}
	return &Reminders{appURL: appURL, location: loc}
}

// Build は通知種別のメッセージを返す。未知の種別はエラー。
func (r *Reminders) Build(kind string, now time.Time) (message.Message, error) {
	switch kind {
	case model.ReminderMorning:
		return r.morning(now), nil
	case model.ReminderEvening:
		return message.WithLink(
			"🌙 <b>Check Serale</b>\n\n"+
				"Hai già loggato oggi?\n\n"+
				"✅ Allenamento fatto?\n"+
				"✅ Dieta rispettata?\n\n"+
				"Ogni giorno conta! 💪",
			"📱 Segna Ora", r.appURL,
		), nil
	case model.ReminderWeeklyReport:
		return message.WithLink(
			"📊 <b>REPORT SETTIMANALE</b>\n\n"+
				"Settimana completata! 🎉\n\n"+
				"È il momento di:\n"+
				"1️⃣ Controllare i tuoi punti totali\n"+
				"2️⃣ Vedere se hai guadagnato uno sgarro\n"+
				"3️⃣ Resettare per la prossima settimana\n\n"+
				"La costanza batte il talento! 🔥",
			"📊 Vedi Report", r.appURL,
		), nil
	default:
		return message.Message{}, fmt.Errorf("unknown reminder kind: %s", kind)
	}
}

func (r *Reminders) morning(now time.Time) message.Message {
	day := now.In(r.location).Weekday()
	text := fmt.Sprintf(
		"☀️ <b>Buongiorno Bestia!</b>\n\nOggi è %s\n\n%s\n\nAndiamo a spaccare! 💪🔥",
		progress.DayName(day), progress.WorkoutFor(day),
	)
	return message.WithLink(text, "📱 Apri App", r.appURL)
}

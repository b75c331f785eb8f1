package progress

import "time"

// weeklyPlan は曜日ごとのトレーニングメニュー。
var weeklyPlan = map[time.Weekday]string{
	time.Monday:    "💪 Upper A (Push) - Petto, Spalle, Tricipiti",
	time.Tuesday:   "🦵 Lower A (Squat) - Gambe Focus Quadricipiti",
	time.Wednesday: "🏃 Cardio - 20-30 minuti corsa",
	time.Thursday:  "💪 Upper B (Pull) - Dorso, Bicipiti",
	time.Friday:    "🦵 Lower B (Deadlift) - Gambe Focus Femorali",
	time.Saturday:  "🏃 Cardio - 20-30 minuti corsa",
	time.Sunday:    "😌 Riposo / Stretching",
}

var dayNames = map[time.Weekday]string{
	time.Monday:    "Lunedì",
	time.Tuesday:   "Martedì",
	time.Wednesday: "Mercoledì",
	time.Thursday:  "Giovedì",
	time.Friday:    "Venerdì",
	time.Saturday:  "Sabato",
	time.Sunday:    "Domenica",
}

// WorkoutFor は指定曜日のトレーニングメニューを返す。
func WorkoutFor(day time.Weekday) string {
	if w, ok := weeklyPlan[day]; ok {
		return w
	}
	return "Riposo"
}

// DayName は曜日の表示名を返す。
func DayName(day time.Weekday) string {
	if n, ok := dayNames[day]; ok {
		return n
	}
	return "oggi"
}

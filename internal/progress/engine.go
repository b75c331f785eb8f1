// Package progress は週ごとの達成状況からポイント、ティア、sgarro（チートポイント）獲得を算出する。
// 週データはコンパニオンアプリが保持しており、このパッケージは入力として受け取るだけ。
package progress

// ポイント配分
const (
	WorkoutPoints = 15
	CardioPoints  = 10
	DietPoints    = 3

	// MaxPoints は週ポイントの上限。超過分は切り捨てる。
	MaxPoints = 100
	// SgarroThreshold はsgarroを獲得できる最低ポイント。
	SgarroThreshold = 90
)

// Days は週の曜日キー（月曜始まり）。
var Days = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

// DayFlags は1日分の達成フラグ。
type DayFlags struct {
	Workout bool `json:"workout"`
	Diet    bool `json:"diet"`
	Cardio  bool `json:"cardio"`
}

// WeekState は曜日キーから達成フラグへのマッピング。
type WeekState map[string]DayFlags

// Tier は週ポイントによる達成度の区分。
type Tier string

const (
	TierReset      Tier = "RESET"
	TierInRecovery Tier = "IN_RECOVERY"
	TierSolid      Tier = "SOLID"
	TierBeast      Tier = "BEAST"
)

// Report は週の集計結果。
type Report struct {
	Points       int
	Tier         Tier
	AwardsSgarro bool
	WorkoutDays  int
	CardioDays   int
	DietDays     int
}

// ComputePoints は週データの合計ポイントを計算する。
// 1日あたり workout 15点、cardio 10点、diet 3点。合計は100で頭打ちになる。
func ComputePoints(week WeekState) int {
	points := 0
	for _, day := range week {
		if day.Workout {
			points += WorkoutPoints
		}
		if day.Cardio {
			points += CardioPoints
		}
		if day.Diet {
			points += DietPoints
		}
	}
	if points > MaxPoints {
		return MaxPoints
	}
	return points
}

// ClassifyTier はポイントをティアに分類する。各帯の下限を含む。
func ClassifyTier(points int) Tier {
	switch {
	case points >= 90:
		return TierBeast
	case points >= 75:
		return TierSolid
	case points >= 60:
		return TierInRecovery
	default:
		return TierReset
	}
}

// AwardsSgarro はその週でsgarroを獲得したかを返す。
// 累計残高はコンパニオンアプリ側で管理する。
func AwardsSgarro(points int) bool {
	return points >= SgarroThreshold
}

// Summarize は週データを集計してレポートを返す。
func Summarize(week WeekState) Report {
	points := ComputePoints(week)
	r := Report{
		Points:       points,
		Tier:         ClassifyTier(points),
		AwardsSgarro: AwardsSgarro(points),
	}
	for _, day := range week {
		if day.Workout {
			r.WorkoutDays++
		}
		if day.Cardio {
			r.CardioDays++
		}
		if day.Diet {
			r.DietDays++
		}
	}
	return r
}

// EmptyWeek は全曜日のフラグをfalseにした週データを返す。
func EmptyWeek() WeekState {
	week := make(WeekState, len(Days))
	for _, d := range Days {
		week[d] = DayFlags{}
	}
	return week
}

// Package model はドメインモデルを定義する。
package model

import "time"

// Goal はユーザーのトレーニング目標を表す。
type Goal string

const (
	GoalBulk     Goal = "bulk"
	GoalCut      Goal = "cut"
	GoalMaintain Goal = "maintain"
)

// ParseGoal は文字列をGoalに変換する。未知の値の場合はfalseを返す。
func ParseGoal(s string) (Goal, bool) {
	switch Goal(s) {
	case GoalBulk, GoalCut, GoalMaintain:
		return Goal(s), true
	default:
		return "", false
	}
}

// ActivityLevel はユーザーの活動レベルを表す。
type ActivityLevel string

const (
	ActivitySedentary  ActivityLevel = "sedentary"
	ActivityLight      ActivityLevel = "light"
	ActivityModerate   ActivityLevel = "moderate"
	ActivityActive     ActivityLevel = "active"
	ActivityVeryActive ActivityLevel = "very_active"
)

// ParseActivityLevel は文字列をActivityLevelに変換する。未知の値の場合はfalseを返す。
func ParseActivityLevel(s string) (ActivityLevel, bool) {
	switch ActivityLevel(s) {
	case ActivitySedentary, ActivityLight, ActivityModerate, ActivityActive, ActivityVeryActive:
		return ActivityLevel(s), true
	default:
		return "", false
	}
}

// Sex はBMR計算式の分岐に使う性別。
type Sex string

const (
	SexMale   Sex = "male"
	SexFemale Sex = "female"
)

// Macros は1日あたりの目標カロリーと三大栄養素（g）。
// JSONキーはコンパニオンアプリのペイロード形式に合わせる。
type Macros struct {
	Calories int `json:"calories"`
	Protein  int `json:"protein"`
	Carbs    int `json:"carbs"`
	Fats     int `json:"fats"`
}

// UserProfile はオンボーディング完了時に作成されるユーザープロフィール。
// BMR、TDEE、Macrosは派生値であり、Goal・体重・身長・年齢・活動レベルの
// いずれかを変更した場合は必ず nutrition.Apply で再計算してから保存する。
type UserProfile struct {
	UserID      int64
	Name        string
	WeightKg    float64
	HeightCm    float64
	Age         int
	Goal        Goal
	Activity    ActivityLevel
	BMR         float64
	TDEE        float64
	Macros      Macros
	CurrentWeek int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UserRecord は通知対象の列挙に使うユーザー単位のレコード。
// Settingsがnilの場合は設定レコードが存在しないことを示す。
type UserRecord struct {
	UserID   int64
	Settings *UserSettings
}

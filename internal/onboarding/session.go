// Package onboarding はプロフィール作成の対話を状態機械として実装する。
package onboarding

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/grindbot/internal/model"
	"github.com/hitoshi/grindbot/internal/nutrition"
)

// State はオンボーディングの現在ステップ。
type State int

const (
	StateAwaitingName State = iota
	StateAwaitingWeight
	StateAwaitingHeight
	StateAwaitingAge
	StateAwaitingGoal
	StateAwaitingActivity
	StateComplete
	StateCancelled
)

var stateNames = map[State]string{
	StateAwaitingName:     "AWAITING_NAME",
	StateAwaitingWeight:   "AWAITING_WEIGHT",
	StateAwaitingHeight:   "AWAITING_HEIGHT",
	StateAwaitingAge:      "AWAITING_AGE",
	StateAwaitingGoal:     "AWAITING_GOAL",
	StateAwaitingActivity: "AWAITING_ACTIVITY",
	StateComplete:         "COMPLETE",
	StateCancelled:        "CANCELLED",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// Terminal は終端状態かどうかを返す。
func (s State) Terminal() bool {
	return s == StateComplete || s == StateCancelled
}

// 選択肢のコールバックデータの接頭辞
const (
	GoalPrefix     = "goal_"
	ActivityPrefix = "activity_"
)

// Input はセッションへの1回分の入力。TextとSelectionのどちらか一方のみを設定する。
type Input struct {
	Text      string
	Selection string
}

func (in Input) isSelection() bool {
	return in.Selection != ""
}

// Session は1ユーザー分の進行中のオンボーディング。
// 収集済みの値は有効な入力でのみ更新される。
type Session struct {
	UserID   int64
	State    State
	Name     string
	WeightKg float64
	HeightCm float64
	Age      int
	Goal     model.Goal
	Activity model.ActivityLevel
}

// NewSession は名前入力待ちのセッションを生成する。
func NewSession(userID int64) *Session {
	return &Session{UserID: userID, State: StateAwaitingName}
}

// Transition は1回の入力に対する遷移結果。
// Errがnilでない場合は同じステップの再入力を促す（Nextは現在の状態のまま）。
// NextがStateCompleteの場合はProfileとSettingsに保存すべき内容が入る。
type Transition struct {
	From     State
	Next     State
	Err      *model.AppError
	Profile  *model.UserProfile
	Settings *model.UserSettings
}

// Advanced は状態が進んだかを返す。
func (t Transition) Advanced() bool {
	return t.Err == nil && t.Next != t.From
}

type stepFunc func(s *Session, in Input, now time.Time) Transition

var steps = map[State]stepFunc{
	StateAwaitingName:     stepName,
	StateAwaitingWeight:   stepWeight,
	StateAwaitingHeight:   stepHeight,
	StateAwaitingAge:      stepAge,
	StateAwaitingGoal:     stepGoal,
	StateAwaitingActivity: stepActivity,
}

// Advance は現在の状態の遷移関数を適用し、成功した場合のみセッションを更新する。
// 終端状態では何もしない。
func (s *Session) Advance(in Input, now time.Time) Transition {
	step, ok := steps[s.State]
	if !ok {
		return Transition{From: s.State, Next: s.State}
	}
	t := step(s, in, now)
	t.From = s.State
	if t.Err == nil {
		s.State = t.Next
	}
	return t
}

// Cancel は非終端状態のセッションをキャンセル済みにする。
func (s *Session) Cancel() bool {
	if s.State.Terminal() {
		return false
	}
	s.State = StateCancelled
	return true
}

func reprompt(s *Session, err *model.AppError) Transition {
	return Transition{Next: s.State, Err: err}
}

func stepName(s *Session, in Input, _ time.Time) Transition {
	if in.isSelection() {
		return reprompt(s, model.NewTextExpectedError("name"))
	}
	name := strings.TrimSpace(in.Text)
	if name == "" {
		return reprompt(s, model.NewTextExpectedError("name"))
	}
	s.Name = name
	return Transition{Next: StateAwaitingWeight}
}

func stepWeight(s *Session, in Input, _ time.Time) Transition {
	if in.isSelection() {
		return reprompt(s, model.NewTextExpectedError("weight"))
	}
	w, ok := ParseDecimal(in.Text)
	if !ok {
		return reprompt(s, model.NewValidationError("weight", "75"))
	}
	s.WeightKg = w
	return Transition{Next: StateAwaitingHeight}
}

func stepHeight(s *Session, in Input, _ time.Time) Transition {
	if in.isSelection() {
		return reprompt(s, model.NewTextExpectedError("height"))
	}
	h, ok := ParseDecimal(in.Text)
	if !ok {
		return reprompt(s, model.NewValidationError("height", "175"))
	}
	s.HeightCm = h
	return Transition{Next: StateAwaitingAge}
}

func stepAge(s *Session, in Input, _ time.Time) Transition {
	if in.isSelection() {
		return reprompt(s, model.NewTextExpectedError("age"))
	}
	age, err := strconv.Atoi(strings.TrimSpace(in.Text))
	if err != nil || age <= 0 {
		return reprompt(s, model.NewValidationError("age", "25"))
	}
	s.Age = age
	return Transition{Next: StateAwaitingGoal}
}

func stepGoal(s *Session, in Input, _ time.Time) Transition {
	if !in.isSelection() {
		return reprompt(s, model.NewSelectionError("goal"))
	}
	goal, ok := model.ParseGoal(strings.TrimPrefix(in.Selection, GoalPrefix))
	if !ok || !strings.HasPrefix(in.Selection, GoalPrefix) {
		return reprompt(s, model.NewSelectionError("goal"))
	}
	s.Goal = goal
	return Transition{Next: StateAwaitingActivity}
}

// stepActivity は活動レベルを受け取り、BMR→TDEE→マクロを計算して
// 保存すべきプロフィールと設定を組み立てる。保存自体はManagerが行う。
func stepActivity(s *Session, in Input, now time.Time) Transition {
	if !in.isSelection() {
		return reprompt(s, model.NewSelectionError("activity"))
	}
	level, ok := model.ParseActivityLevel(strings.TrimPrefix(in.Selection, ActivityPrefix))
	if !ok || !strings.HasPrefix(in.Selection, ActivityPrefix) {
		return reprompt(s, model.NewSelectionError("activity"))
	}
	s.Activity = level

	bmr := nutrition.ComputeBMR(s.WeightKg, s.HeightCm, s.Age, model.SexMale)
	tdee := nutrition.ComputeTDEE(bmr, level)

	p := &model.UserProfile{
		UserID:      s.UserID,
		Name:        s.Name,
		WeightKg:    s.WeightKg,
		HeightCm:    s.HeightCm,
		Age:         s.Age,
		Goal:        s.Goal,
		Activity:    level,
		BMR:         bmr,
		TDEE:        tdee,
		Macros:      nutrition.ComputeMacros(tdee, s.Goal),
		CurrentWeek: 1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	return Transition{
		Next:     StateComplete,
		Profile:  p,
		Settings: model.DefaultSettings(s.UserID),
	}
}

// ParseDecimal はカンマまたはドットを小数点とする正の数値を解析する。
// 体重の更新など、オンボーディング以外の数値入力でも使う。
func ParseDecimal(text string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(text), ",", "."), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, false
	}
	return v, true
}

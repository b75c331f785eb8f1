package onboarding

import (
	"testing"
	"time"

	"github.com/hitoshi/grindbot/internal/model"
	"github.com/hitoshi/grindbot/internal/nutrition"
)

var testNow = time.Date(2026, 1, 12, 9, 30, 0, 0, time.UTC)

func text(s string) Input   { return Input{Text: s} }
func choose(s string) Input { return Input{Selection: s} }

// advanceAll は入力を順に適用し、いずれかが拒否された場合はテストを失敗させる。
func advanceAll(t *testing.T, s *Session, inputs ...Input) Transition {
	t.Helper()
	var last Transition
	for _, in := range inputs {
		last = s.Advance(in, testNow)
		if last.Err != nil {
			t.Fatalf("input %+v rejected at %s: %v", in, last.From, last.Err)
		}
	}
	return last
}

func TestSession_HappyPath(t *testing.T) {
	s := NewSession(42)

	last := advanceAll(t, s,
		text("Marco"),
		text("80"),
		text("180"),
		text("30"),
		choose("goal_bulk"),
		choose("activity_moderate"),
	)

	if s.State != StateComplete || last.Next != StateComplete {
		t.Fatalf("State = %s, want COMPLETE", s.State)
	}

	p := last.Profile
	if p == nil || last.Settings == nil {
		t.Fatal("expected profile and settings on completion")
	}
	if p.UserID != 42 || p.Name != "Marco" || p.Goal != model.GoalBulk || p.Activity != model.ActivityModerate {
		t.Errorf("profile = %+v", p)
	}

	wantBMR := nutrition.ComputeBMR(80, 180, 30, model.SexMale)
	wantTDEE := nutrition.ComputeTDEE(wantBMR, model.ActivityModerate)
	if p.BMR != wantBMR || p.TDEE != wantTDEE {
		t.Errorf("BMR/TDEE = %v/%v, want %v/%v", p.BMR, p.TDEE, wantBMR, wantTDEE)
	}
	if want := nutrition.ComputeMacros(wantTDEE, model.GoalBulk); p.Macros != want {
		t.Errorf("Macros = %+v, want %+v", p.Macros, want)
	}
	if !p.CreatedAt.Equal(testNow) {
		t.Errorf("CreatedAt = %v, want %v", p.CreatedAt, testNow)
	}
	if p.CurrentWeek != 1 {
		t.Errorf("CurrentWeek = %d, want 1", p.CurrentWeek)
	}

	st := last.Settings
	if !st.Notifications || !st.ReminderMorning || !st.ReminderEvening || !st.ReminderWeekly {
		t.Errorf("settings = %+v, want every flag enabled", st)
	}
}

// TestSession_NonNumericWeight_KeepsState は体重ステップでの非数値入力が
// 状態を進めず、収集済みの名前も保持することを検証する。
func TestSession_NonNumericWeight_KeepsState(t *testing.T) {
	s := NewSession(1)
	advanceAll(t, s, text("Giulia"))

	tr := s.Advance(text("settanta"), testNow)

	if tr.Err == nil {
		t.Fatal("expected validation error")
	}
	if tr.Err.Code != model.ErrCodeValidation {
		t.Errorf("Code = %s, want %s", tr.Err.Code, model.ErrCodeValidation)
	}
	if tr.Err.Action != "❌ Inserisci un numero valido (es: 75)" {
		t.Errorf("Action = %q", tr.Err.Action)
	}
	if s.State != StateAwaitingWeight || tr.Next != StateAwaitingWeight {
		t.Errorf("State = %s, want AWAITING_WEIGHT", s.State)
	}
	if s.Name != "Giulia" {
		t.Errorf("Name = %q, want Giulia", s.Name)
	}
	if s.WeightKg != 0 {
		t.Errorf("WeightKg = %v, want 0", s.WeightKg)
	}
	if tr.Advanced() {
		t.Error("Advanced() = true, want false")
	}
}

func TestSession_DecimalSeparators(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"75", 75},
		{"75.5", 75.5},
		{"75,5", 75.5},
		{" 80,25 ", 80.25},
	}

	for _, tt := range tests {
		s := NewSession(1)
		advanceAll(t, s, text("A"), text(tt.in))
		if s.WeightKg != tt.want {
			t.Errorf("weight %q = %v, want %v", tt.in, s.WeightKg, tt.want)
		}
	}
}

func TestSession_RejectsInvalidNumbers(t *testing.T) {
	for _, in := range []string{"", "abc", "0", "-70", "NaN", "Inf", "1e999"} {
		s := NewSession(1)
		advanceAll(t, s, text("A"))
		if tr := s.Advance(text(in), testNow); tr.Err == nil {
			t.Errorf("weight %q accepted, want rejection", in)
		}
		if s.State != StateAwaitingWeight {
			t.Errorf("weight %q: State = %s", in, s.State)
		}
	}
}

func TestSession_AgeMustBeInteger(t *testing.T) {
	s := NewSession(1)
	advanceAll(t, s, text("A"), text("70"), text("170"))

	for _, in := range []string{"25.5", "venti", "0"} {
		tr := s.Advance(text(in), testNow)
		if tr.Err == nil {
			t.Errorf("age %q accepted", in)
		}
	}
	if s.State != StateAwaitingAge {
		t.Fatalf("State = %s, want AWAITING_AGE", s.State)
	}

	advanceAll(t, s, text("25"))
	if s.Age != 25 || s.State != StateAwaitingGoal {
		t.Errorf("Age = %d State = %s", s.Age, s.State)
	}
}

func TestSession_EmptyNameRejected(t *testing.T) {
	s := NewSession(1)
	if tr := s.Advance(text("   "), testNow); tr.Err == nil {
		t.Error("blank name accepted")
	}
	if s.State != StateAwaitingName {
		t.Errorf("State = %s", s.State)
	}
}

// TestSession_InputKindMismatch は選択ステップでのテキスト、テキストステップでの選択が拒否されることを検証する。
func TestSession_InputKindMismatch(t *testing.T) {
	s := NewSession(1)
	if tr := s.Advance(choose("goal_bulk"), testNow); tr.Err == nil {
		t.Error("selection accepted at name step")
	}

	advanceAll(t, s, text("A"), text("70"), text("170"), text("25"))

	tr := s.Advance(text("bulk"), testNow)
	if tr.Err == nil {
		t.Fatal("text accepted at goal step")
	}
	if tr.Err.Action != "👆 Scegli una delle opzioni qui sopra." {
		t.Errorf("Action = %q", tr.Err.Action)
	}

	for _, bad := range []string{"goal_recomp", "activity_moderate", "bulk"} {
		if tr := s.Advance(choose(bad), testNow); tr.Err == nil {
			t.Errorf("selection %q accepted at goal step", bad)
		}
	}
	if s.State != StateAwaitingGoal {
		t.Fatalf("State = %s", s.State)
	}

	advanceAll(t, s, choose("goal_cut"))
	if tr := s.Advance(choose("goal_bulk"), testNow); tr.Err == nil {
		t.Error("goal selection accepted at activity step")
	}
	if s.Goal != model.GoalCut {
		t.Errorf("Goal = %s, want cut", s.Goal)
	}
}

func TestSession_Cancel(t *testing.T) {
	s := NewSession(1)
	advanceAll(t, s, text("A"), text("70"))

	if !s.Cancel() {
		t.Fatal("Cancel() = false from non-terminal state")
	}
	if s.State != StateCancelled {
		t.Errorf("State = %s", s.State)
	}
	if s.Cancel() {
		t.Error("Cancel() = true from terminal state")
	}

	tr := s.Advance(text("170"), testNow)
	if tr.Advanced() || s.State != StateCancelled {
		t.Errorf("terminal session advanced to %s", s.State)
	}
}

func TestState_String(t *testing.T) {
	if StateAwaitingActivity.String() != "AWAITING_ACTIVITY" {
		t.Errorf("String() = %s", StateAwaitingActivity)
	}
	if State(99).String() != "UNKNOWN" {
		t.Errorf("String() = %s", State(99))
	}
}

package repository

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/hitoshi/grindbot/internal/model"
)

func sampleProfile(userID int64) *model.UserProfile {
	return &model.UserProfile{
		UserID:      userID,
		Name:        "Marco",
		WeightKg:    80,
		HeightCm:    180,
		Age:         30,
		Goal:        model.GoalBulk,
		Activity:    model.ActivityModerate,
		BMR:         1780,
		TDEE:        2759,
		Macros:      model.Macros{Calories: 3034, Protein: 227, Carbs: 341, Fats: 84},
		CurrentWeek: 1,
	}
}

func TestMemoryUserStore_FindProfile_NotFound(t *testing.T) {
	store := NewMemoryUserStore()

	p, err := store.FindProfile(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p != nil {
		t.Errorf("expected nil profile, got %+v", p)
	}

	st, err := store.FindSettings(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st != nil {
		t.Errorf("expected nil settings, got %+v", st)
	}
}

func TestMemoryUserStore_SaveProfile_RoundTrip(t *testing.T) {
	store := NewMemoryUserStore()
	ctx := context.Background()

	in := sampleProfile(10)
	if err := store.SaveProfile(ctx, in); err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}

	got, err := store.FindProfile(ctx, 10)
	if err != nil {
		t.Fatalf("FindProfile: %v", err)
	}
	if got == nil || got.Name != "Marco" || got.Macros != in.Macros {
		t.Errorf("FindProfile = %+v, want %+v", got, in)
	}
}

// TestMemoryUserStore_ReturnsCopies は保存後の呼び出し側の変更がストアに影響しないことを検証する。
func TestMemoryUserStore_ReturnsCopies(t *testing.T) {
	store := NewMemoryUserStore()
	ctx := context.Background()

	in := sampleProfile(10)
	store.SaveProfile(ctx, in)
	in.Name = "changed"

	got, _ := store.FindProfile(ctx, 10)
	got.WeightKg = 1

	again, _ := store.FindProfile(ctx, 10)
	if again.Name != "Marco" {
		t.Errorf("Name = %q, want Marco", again.Name)
	}
	if again.WeightKg != 80 {
		t.Errorf("WeightKg = %v, want 80", again.WeightKg)
	}

	st := model.DefaultSettings(10)
	st.AppState = json.RawMessage(`{"streak":3}`)
	store.SaveSettings(ctx, st)
	st.AppState[2] = 'X'

	gotSt, _ := store.FindSettings(ctx, 10)
	if string(gotSt.AppState) != `{"streak":3}` {
		t.Errorf("AppState = %s, want {\"streak\":3}", gotSt.AppState)
	}
}

func TestMemoryUserStore_SaveOnboarding_WritesBoth(t *testing.T) {
	store := NewMemoryUserStore()
	ctx := context.Background()

	if err := store.SaveOnboarding(ctx, sampleProfile(5), model.DefaultSettings(5)); err != nil {
		t.Fatalf("SaveOnboarding: %v", err)
	}

	p, _ := store.FindProfile(ctx, 5)
	st, _ := store.FindSettings(ctx, 5)
	if p == nil || st == nil {
		t.Fatalf("profile=%v settings=%v, want both present", p, st)
	}
	if !st.Notifications {
		t.Error("Notifications = false, want true")
	}
}

// TestMemoryUserStore_ListUsers は設定の有無にかかわらず全ユーザーがID順で列挙されることを検証する。
func TestMemoryUserStore_ListUsers(t *testing.T) {
	store := NewMemoryUserStore()
	ctx := context.Background()

	store.SaveProfile(ctx, sampleProfile(30))
	store.SaveSettings(ctx, &model.UserSettings{UserID: 20, Notifications: false})
	store.SaveOnboarding(ctx, sampleProfile(10), model.DefaultSettings(10))

	users, err := store.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 3 {
		t.Fatalf("len = %d, want 3", len(users))
	}

	wantIDs := []int64{10, 20, 30}
	for i, id := range wantIDs {
		if users[i].UserID != id {
			t.Errorf("users[%d].UserID = %d, want %d", i, users[i].UserID, id)
		}
	}
	if users[2].Settings != nil {
		t.Errorf("user 30 Settings = %+v, want nil", users[2].Settings)
	}
	if users[1].Settings == nil || users[1].Settings.Notifications {
		t.Errorf("user 20 Settings = %+v, want notifications off", users[1].Settings)
	}
}

func TestMemoryUserStore_ConcurrentAccess(t *testing.T) {
	store := NewMemoryUserStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := int64(0); i < 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			store.SaveOnboarding(ctx, sampleProfile(id), model.DefaultSettings(id))
			store.FindProfile(ctx, id)
			store.ListUsers(ctx)
		}(i)
	}
	wg.Wait()

	users, _ := store.ListUsers(ctx)
	if len(users) != 50 {
		t.Errorf("len = %d, want 50", len(users))
	}
}

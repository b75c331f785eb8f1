// Package profile はユーザープロフィールと設定の更新ロジックを提供する。
// 同一ユーザーへの読み取り→変更→書き込みはユーザー単位で直列化される。
package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/grindbot/internal/model"
	"github.com/hitoshi/grindbot/internal/nutrition"
	"github.com/hitoshi/grindbot/internal/repository"
)

// Service はプロフィール・設定操作のサービス層。
type Service struct {
	store  repository.UserStore
	locks  *keyedMutex
	now    func() time.Time
	logger *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(store repository.UserStore, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		locks:  newKeyedMutex(),
		now:    time.Now,
		logger: logger,
	}
}

// Get はユーザーのプロフィールを返す。未作成の場合はUnknownUserErrorを返す。
func (s *Service) Get(ctx context.Context, userID int64) (*model.UserProfile, error) {
	p, err := s.store.FindProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}
	if p == nil {
		return nil, model.NewUnknownUserError(userID)
	}
	return p, nil
}

// Settings はユーザーの設定を返す。レコードが無い場合は既定値（全て有効）を返すが保存はしない。
func (s *Service) Settings(ctx context.Context, userID int64) (*model.UserSettings, error) {
	st, err := s.store.FindSettings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("設定の取得に失敗しました: %w", err)
	}
	if st == nil {
		return model.DefaultSettings(userID), nil
	}
	return st, nil
}

// CompleteOnboarding はオンボーディング完了時のプロフィールと設定を保存する。
// 既存のプロフィールは丸ごと上書きされる。
func (s *Service) CompleteOnboarding(ctx context.Context, p *model.UserProfile, st *model.UserSettings) error {
	unlock := s.locks.Lock(p.UserID)
	defer unlock()

	now := s.now()
	p.UpdatedAt = now
	st.UpdatedAt = now

	if err := s.store.SaveOnboarding(ctx, p, st); err != nil {
		return fmt.Errorf("オンボーディング結果の保存に失敗しました: %w", err)
	}

	s.logger.Info("profile created",
		slog.Int64("user_id", p.UserID),
		slog.String("goal", string(p.Goal)),
		slog.Int("calories", p.Macros.Calories),
	)
	return nil
}

// ChangeGoal は目標を変更し、マクロを再計算して保存する。
func (s *Service) ChangeGoal(ctx context.Context, userID int64, goal model.Goal) (*model.UserProfile, error) {
	if _, ok := model.ParseGoal(string(goal)); !ok {
		return nil, model.NewSelectionError("goal")
	}
	return s.mutateProfile(ctx, userID, func(p *model.UserProfile) error {
		p.Goal = goal
		return nil
	})
}

// UpdateWeight は体重を更新し、BMR・TDEE・マクロを再計算して保存する。
func (s *Service) UpdateWeight(ctx context.Context, userID int64, weightKg float64) (*model.UserProfile, error) {
	if weightKg <= 0 {
		return nil, model.NewValidationError("weight", "75.5")
	}
	return s.mutateProfile(ctx, userID, func(p *model.UserProfile) error {
		p.WeightKg = weightKg
		return nil
	})
}

// Recompute は保存済みの身体データからBMR・TDEE・マクロを再計算して保存する。
func (s *Service) Recompute(ctx context.Context, userID int64) (*model.UserProfile, error) {
	return s.mutateProfile(ctx, userID, func(p *model.UserProfile) error {
		return nil
	})
}

// SetCurrentWeek はプロフィールに現在の週番号を記録する。
func (s *Service) SetCurrentWeek(ctx context.Context, userID int64, week int) (*model.UserProfile, error) {
	if week <= 0 {
		return nil, model.NewValidationError("week", "5")
	}
	return s.mutateProfile(ctx, userID, func(p *model.UserProfile) error {
		p.CurrentWeek = week
		return nil
	})
}

// ToggleNotifications は通知の全体フラグを反転する。
// 設定レコードが無い場合は既定値（有効）から反転するため、結果は無効になる。
func (s *Service) ToggleNotifications(ctx context.Context, userID int64) (*model.UserSettings, error) {
	return s.mutateSettings(ctx, userID, func(st *model.UserSettings) error {
		st.Notifications = !st.Notifications
		return nil
	})
}

// ToggleReminder は種別ごとの通知フラグを反転する。
func (s *Service) ToggleReminder(ctx context.Context, userID int64, kind string) (*model.UserSettings, error) {
	return s.mutateSettings(ctx, userID, func(st *model.UserSettings) error {
		switch kind {
		case model.ReminderMorning:
			st.ReminderMorning = !st.ReminderMorning
		case model.ReminderEvening:
			st.ReminderEvening = !st.ReminderEvening
		case model.ReminderWeeklyReport:
			st.ReminderWeekly = !st.ReminderWeekly
		default:
			return model.NewSelectionError("reminder")
		}
		return nil
	})
}

// ReplaceAppState はコンパニオンアプリの状態を丸ごと置き換える。
func (s *Service) ReplaceAppState(ctx context.Context, userID int64, state json.RawMessage) error {
	_, err := s.mutateSettings(ctx, userID, func(st *model.UserSettings) error {
		st.AppState = append(json.RawMessage(nil), state...)
		return nil
	})
	return err
}

// mutateProfile はユーザーロックを取得した上でプロフィールを読み込み、
// fnで変更した後に派生値を再計算して保存する。
func (s *Service) mutateProfile(ctx context.Context, userID int64, fn func(p *model.UserProfile) error) (*model.UserProfile, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	p, err := s.store.FindProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}
	if p == nil {
		return nil, model.NewUnknownUserError(userID)
	}

	if err := fn(p); err != nil {
		return nil, err
	}
	nutrition.Apply(p)
	p.UpdatedAt = s.now()

	if err := s.store.SaveProfile(ctx, p); err != nil {
		return nil, fmt.Errorf("プロフィールの保存に失敗しました: %w", err)
	}
	return p, nil
}

// mutateSettings はユーザーロックを取得した上で設定を読み込み（無ければ既定値）、
// fnで変更した後に保存する。
func (s *Service) mutateSettings(ctx context.Context, userID int64, fn func(st *model.UserSettings) error) (*model.UserSettings, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	st, err := s.store.FindSettings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("設定の取得に失敗しました: %w", err)
	}
	if st == nil {
		st = model.DefaultSettings(userID)
	}

	if err := fn(st); err != nil {
		return nil, err
	}
	st.UpdatedAt = s.now()

	if err := s.store.SaveSettings(ctx, st); err != nil {
		return nil, fmt.Errorf("設定の保存に失敗しました: %w", err)
	}
	return st, nil
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/grindbot/internal/model"
)

// execer は*sql.DBと*sql.Txの共通部分。
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// PostgresUserStore はPostgreSQLを使用したUserStore実装。
// user_profiles と user_settings の2テーブルを扱う。
type PostgresUserStore struct {
	db *sql.DB
}

// NewPostgresUserStore はPostgresUserStoreを生成する。
func NewPostgresUserStore(db *sql.DB) *PostgresUserStore {
	return &PostgresUserStore{db: db}
}

const upsertProfileSQL = `
INSERT INTO user_profiles (
	user_id, name, weight_kg, height_cm, age, goal, activity,
	bmr, tdee, calories, protein_g, carbs_g, fats_g, current_week,
	created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
ON CONFLICT (user_id) DO UPDATE SET
	name = EXCLUDED.name,
	weight_kg = EXCLUDED.weight_kg,
	height_cm = EXCLUDED.height_cm,
	age = EXCLUDED.age,
	goal = EXCLUDED.goal,
	activity = EXCLUDED.activity,
	bmr = EXCLUDED.bmr,
	tdee = EXCLUDED.tdee,
	calories = EXCLUDED.calories,
	protein_g = EXCLUDED.protein_g,
	carbs_g = EXCLUDED.carbs_g,
	fats_g = EXCLUDED.fats_g,
	current_week = EXCLUDED.current_week,
	created_at = EXCLUDED.created_at,
	updated_at = EXCLUDED.updated_at`

const upsertSettingsSQL = `
INSERT INTO user_settings (
	user_id, notifications, reminder_morning, reminder_evening, reminder_weekly,
	app_state, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (user_id) DO UPDATE SET
	notifications = EXCLUDED.notifications,
	reminder_morning = EXCLUDED.reminder_morning,
	reminder_evening = EXCLUDED.reminder_evening,
	reminder_weekly = EXCLUDED.reminder_weekly,
	app_state = EXCLUDED.app_state,
	updated_at = EXCLUDED.updated_at`

// FindProfile は指定ユーザーのプロフィールを取得する。見つからない場合はnilを返す。
func (s *PostgresUserStore) FindProfile(ctx context.Context, userID int64) (*model.UserProfile, error) {
	p := &model.UserProfile{}
	var goal, activity string
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, name, weight_kg, height_cm, age, goal, activity,
		        bmr, tdee, calories, protein_g, carbs_g, fats_g, current_week,
		        created_at, updated_at
		 FROM user_profiles WHERE user_id = $1`,
		userID,
	).Scan(
		&p.UserID, &p.Name, &p.WeightKg, &p.HeightCm, &p.Age, &goal, &activity,
		&p.BMR, &p.TDEE, &p.Macros.Calories, &p.Macros.Protein, &p.Macros.Carbs, &p.Macros.Fats,
		&p.CurrentWeek, &p.CreatedAt, &p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}

	p.Goal = model.Goal(goal)
	p.Activity = model.ActivityLevel(activity)
	return p, nil
}

// SaveProfile はプロフィールをUPSERTする。
func (s *PostgresUserStore) SaveProfile(ctx context.Context, profile *model.UserProfile) error {
	return saveProfile(ctx, s.db, profile)
}

// FindSettings は指定ユーザーの設定を取得する。見つからない場合はnilを返す。
func (s *PostgresUserStore) FindSettings(ctx context.Context, userID int64) (*model.UserSettings, error) {
	st := &model.UserSettings{}
	var appState []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, notifications, reminder_morning, reminder_evening, reminder_weekly,
		        app_state, updated_at
		 FROM user_settings WHERE user_id = $1`,
		userID,
	).Scan(
		&st.UserID, &st.Notifications, &st.ReminderMorning, &st.ReminderEvening, &st.ReminderWeekly,
		&appState, &st.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find settings: %w", err)
	}

	if len(appState) > 0 {
		st.AppState = appState
	}
	return st, nil
}

// SaveSettings は設定をUPSERTする。
func (s *PostgresUserStore) SaveSettings(ctx context.Context, settings *model.UserSettings) error {
	return saveSettings(ctx, s.db, settings)
}

// SaveOnboarding はプロフィールと設定を同一トランザクションで保存する。
func (s *PostgresUserStore) SaveOnboarding(ctx context.Context, profile *model.UserProfile, settings *model.UserSettings) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := saveProfile(ctx, tx, profile); err != nil {
		return err
	}
	if err := saveSettings(ctx, tx, settings); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListUsers はプロフィールまたは設定を持つ全ユーザーを返す。
// 設定レコードが無いユーザーはSettingsがnilになる。
func (s *PostgresUserStore) ListUsers(ctx context.Context) ([]model.UserRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT COALESCE(s.user_id, p.user_id),
		        s.user_id IS NOT NULL,
		        COALESCE(s.notifications, TRUE),
		        COALESCE(s.reminder_morning, TRUE),
		        COALESCE(s.reminder_evening, TRUE),
		        COALESCE(s.reminder_weekly, TRUE),
		        s.app_state,
		        s.updated_at
		 FROM user_settings s
		 FULL OUTER JOIN user_profiles p ON p.user_id = s.user_id
		 ORDER BY 1`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var records []model.UserRecord
	for rows.Next() {
		var (
			rec         model.UserRecord
			hasSettings bool
			st          model.UserSettings
			appState    []byte
			updatedAt   sql.NullTime
		)
		if err := rows.Scan(
			&rec.UserID, &hasSettings,
			&st.Notifications, &st.ReminderMorning, &st.ReminderEvening, &st.ReminderWeekly,
			&appState, &updatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		if hasSettings {
			st.UserID = rec.UserID
			if len(appState) > 0 {
				st.AppState = appState
			}
			st.UpdatedAt = updatedAt.Time
			rec.Settings = &st
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}

	return records, nil
}

func saveProfile(ctx context.Context, db execer, p *model.UserProfile) error {
	updatedAt := p.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	_, err := db.ExecContext(ctx, upsertProfileSQL,
		p.UserID, p.Name, p.WeightKg, p.HeightCm, p.Age, string(p.Goal), string(p.Activity),
		p.BMR, p.TDEE, p.Macros.Calories, p.Macros.Protein, p.Macros.Carbs, p.Macros.Fats,
		p.CurrentWeek, p.CreatedAt, updatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}

func saveSettings(ctx context.Context, db execer, st *model.UserSettings) error {
	// jsonbへはテキストとして渡す（[]byteはbyteaとしてエンコードされるため）
	var appState interface{}
	if len(st.AppState) > 0 {
		appState = string(st.AppState)
	}
	updatedAt := st.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	_, err := db.ExecContext(ctx, upsertSettingsSQL,
		st.UserID, st.Notifications, st.ReminderMorning, st.ReminderEvening, st.ReminderWeekly,
		appState, updatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert settings: %w", err)
	}
	return nil
}

// compile-time interface check
var _ UserStore = (*PostgresUserStore)(nil)

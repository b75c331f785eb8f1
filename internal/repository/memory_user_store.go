package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/hitoshi/grindbot/internal/model"
)

// MemoryUserStore はプロセス内メモリにユーザーデータを保持するUserStore実装。
// DATABASE_URL未設定時に使用する。再起動でデータは失われる。
// 呼び出し側との共有を避けるため、保存時・取得時ともにコピーを扱う。
type MemoryUserStore struct {
	mu       sync.RWMutex
	profiles map[int64]*model.UserProfile
	settings map[int64]*model.UserSettings
}

// NewMemoryUserStore はMemoryUserStoreを生成する。
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		profiles: make(map[int64]*model.UserProfile),
		settings: make(map[int64]*model.UserSettings),
	}
}

// FindProfile は指定ユーザーのプロフィールを取得する。見つからない場合はnilを返す。
func (s *MemoryUserStore) FindProfile(ctx context.Context, userID int64) (*model.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[userID]
	if !ok {
		return nil, nil
	}
	c := *p
	return &c, nil
}

// SaveProfile はプロフィールを上書き保存する。
func (s *MemoryUserStore) SaveProfile(ctx context.Context, profile *model.UserProfile) error {
	c := *profile

	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.UserID] = &c
	return nil
}

// FindSettings は指定ユーザーの設定を取得する。見つからない場合はnilを返す。
func (s *MemoryUserStore) FindSettings(ctx context.Context, userID int64) (*model.UserSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.settings[userID]
	if !ok {
		return nil, nil
	}
	return st.Clone(), nil
}

// SaveSettings は設定を上書き保存する。
func (s *MemoryUserStore) SaveSettings(ctx context.Context, settings *model.UserSettings) error {
	c := settings.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[settings.UserID] = c
	return nil
}

// SaveOnboarding はプロフィールと設定を1回のロック内で保存する。
func (s *MemoryUserStore) SaveOnboarding(ctx context.Context, profile *model.UserProfile, settings *model.UserSettings) error {
	p := *profile
	st := settings.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.UserID] = &p
	s.settings[settings.UserID] = st
	return nil
}

// ListUsers はプロフィールまたは設定を持つ全ユーザーをユーザーID昇順で返す。
func (s *MemoryUserStore) ListUsers(ctx context.Context) ([]model.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[int64]bool, len(s.profiles)+len(s.settings))
	records := make([]model.UserRecord, 0, len(s.profiles)+len(s.settings))

	for id, st := range s.settings {
		seen[id] = true
		records = append(records, model.UserRecord{UserID: id, Settings: st.Clone()})
	}
	for id := range s.profiles {
		if !seen[id] {
			records = append(records, model.UserRecord{UserID: id})
		}
	}

	sort.Slice(records, func(i, j int) bool { return records[i].UserID < records[j].UserID })
	return records, nil
}

// compile-time interface check
var _ UserStore = (*MemoryUserStore)(nil)

package onboarding

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/grindbot/internal/model"
)

// Completer はオンボーディング完了時にプロフィールと設定をまとめて保存する。
// profile.Serviceが実装する。
type Completer interface {
	CompleteOnboarding(ctx context.Context, p *model.UserProfile, st *model.UserSettings) error
}

type entry struct {
	mu      sync.Mutex
	session *Session
}

// Manager はユーザーごとの進行中セッションを保持する。
// セッションはメモリ上にのみ存在し、完了・キャンセル・プロセス再起動で破棄される。
type Manager struct {
	mu        sync.Mutex
	sessions  map[int64]*entry
	completer Completer
	now       func() time.Time
	logger    *slog.Logger
}

// NewManager はManagerを生成する。
func NewManager(completer Completer, logger *slog.Logger) *Manager {
	return &Manager{
		sessions:  make(map[int64]*entry),
		completer: completer,
		now:       time.Now,
		logger:    logger,
	}
}

// Start は新しいセッションを開始する。進行中のセッションがあれば破棄して置き換える。
func (m *Manager) Start(userID int64) Session {
	e := &entry{session: NewSession(userID)}

	m.mu.Lock()
	_, restarted := m.sessions[userID]
	m.sessions[userID] = e
	m.mu.Unlock()

	if restarted {
		m.logger.Info("onboarding restarted", slog.Int64("user_id", userID))
	}
	return *e.session
}

// Active はユーザーに進行中のセッションがあるかを返す。
func (m *Manager) Active(userID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[userID]
	return ok
}

// Snapshot は進行中のセッションのコピーを返す。
func (m *Manager) Snapshot(userID int64) (Session, bool) {
	e := m.lookup(userID)
	if e == nil {
		return Session{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return *e.session, true
}

// Cancel は進行中のセッションをキャンセルして破棄する。セッションが無ければfalseを返す。
func (m *Manager) Cancel(userID int64) bool {
	e := m.lookup(userID)
	if e == nil {
		return false
	}

	e.mu.Lock()
	cancelled := e.session.Cancel()
	e.mu.Unlock()

	m.remove(userID, e)
	return cancelled
}

// HandleText はテキスト入力をセッションに渡す。セッションが無い場合はokがfalseになる。
func (m *Manager) HandleText(ctx context.Context, userID int64, text string) (Session, Transition, bool, error) {
	return m.handle(ctx, userID, Input{Text: text})
}

// HandleSelection は選択肢（コールバックデータ）をセッションに渡す。
func (m *Manager) HandleSelection(ctx context.Context, userID int64, data string) (Session, Transition, bool, error) {
	return m.handle(ctx, userID, Input{Selection: data})
}

// handle は1回分の入力を処理する。完了遷移の場合のみストアへの書き込みが発生し、
// 書き込みに失敗した場合はセッションを活動レベル入力待ちに戻してエラーを返す。
func (m *Manager) handle(ctx context.Context, userID int64, in Input) (Session, Transition, bool, error) {
	e := m.lookup(userID)
	if e == nil {
		return Session{}, Transition{}, false, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	t := e.session.Advance(in, m.now())
	if t.Err != nil {
		m.logger.Debug("onboarding input rejected",
			slog.Int64("user_id", userID),
			slog.String("state", t.From.String()),
			slog.String("code", t.Err.Code),
		)
		return *e.session, t, true, nil
	}

	if t.Next == StateComplete {
		if err := m.completer.CompleteOnboarding(ctx, t.Profile, t.Settings); err != nil {
			e.session.State = t.From
			return *e.session, t, true, fmt.Errorf("プロフィールの保存に失敗しました: %w", err)
		}
		m.remove(userID, e)
	}

	return *e.session, t, true, nil
}

func (m *Manager) lookup(userID int64) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[userID]
}

// remove はマップ上のエントリがeのままである場合のみ削除する。
// 処理中にStartで置き換えられた新しいセッションは残す。
func (m *Manager) remove(userID int64, e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions[userID] == e {
		delete(m.sessions, userID)
	}
}

package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/grindbot/internal/companion"
	"github.com/hitoshi/grindbot/internal/message"
	"github.com/hitoshi/grindbot/internal/metrics"
	"github.com/hitoshi/grindbot/internal/model"
	"github.com/hitoshi/grindbot/internal/notify"
	"github.com/hitoshi/grindbot/internal/onboarding"
	"github.com/hitoshi/grindbot/internal/security"
)

// Profiles はプロフィールと設定の操作。profile.Serviceが実装する。
type Profiles interface {
	Get(ctx context.Context, userID int64) (*model.UserProfile, error)
	Settings(ctx context.Context, userID int64) (*model.UserSettings, error)
	ChangeGoal(ctx context.Context, userID int64, goal model.Goal) (*model.UserProfile, error)
	UpdateWeight(ctx context.Context, userID int64, weightKg float64) (*model.UserProfile, error)
	Recompute(ctx context.Context, userID int64) (*model.UserProfile, error)
	SetCurrentWeek(ctx context.Context, userID int64, week int) (*model.UserProfile, error)
	ToggleNotifications(ctx context.Context, userID int64) (*model.UserSettings, error)
	ToggleReminder(ctx context.Context, userID int64, kind string) (*model.UserSettings, error)
}

// PayloadHandler はコンパニオンアプリからの受信データを処理する。companion.Handlerが実装する。
type PayloadHandler interface {
	Handle(ctx context.Context, userID int64, data []byte) (message.Message, bool, error)
}

// Config はDispatcherの表示に関わる設定。
type Config struct {
	// AppURL はコンパニオンアプリのベースURL。
	AppURL string
	// Schedule は案内文に表示する通知時刻と、/oggiの曜日判定に使うタイムゾーン。
	Schedule notify.ScheduleConfig
}

// handlerFunc は1件の入力に対する返信を返す。Textが空の返信は送信しない。
type handlerFunc func(ctx context.Context, upd Update) (message.Message, error)

// Dispatcher はUpdateを種類ごとのハンドラへ振り分ける。
// ハンドラ内のpanicは1件の入力の失敗として扱い、ループ全体には波及させない。
type Dispatcher struct {
	profiles  Profiles
	sessions  *onboarding.Manager
	payloads  PayloadHandler
	sender    message.Sender
	sanitizer security.NameSanitizer
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
	cfg       Config
	now       func() time.Time

	commands map[string]handlerFunc

	mu             sync.Mutex
	awaitingWeight map[int64]bool
}

// NewDispatcher はDispatcherの新しいインスタンスを生成する。
func NewDispatcher(
	profiles Profiles,
	sessions *onboarding.Manager,
	payloads PayloadHandler,
	sender message.Sender,
	sanitizer security.NameSanitizer,
	mc metrics.MetricsCollector,
	logger *slog.Logger,
	cfg Config,
) *Dispatcher {
	if mc == nil {
		mc = metrics.NopCollector{}
	}
	if cfg.Schedule.Location == nil {
		cfg.Schedule.Location = time.Local
	}
	d := &Dispatcher{
		profiles:       profiles,
		sessions:       sessions,
		payloads:       payloads,
		sender:         sender,
		sanitizer:      sanitizer,
		metrics:        mc,
		logger:         logger,
		cfg:            cfg,
		now:            time.Now,
		awaitingWeight: make(map[int64]bool),
	}
	d.commands = map[string]handlerFunc{
		"start":           d.handleStart,
		"setup":           d.handleSetup,
		"cancel":          d.handleCancel,
		"menu":            d.handleMenu,
		"help":            d.handleHelp,
		"app":             d.handleApp,
		"profilo":         d.handleProfile,
		"macros":          d.handleMacros,
		"oggi":            d.handleToday,
		"status":          d.handleStatus,
		"notifiche":       d.handleNotifications,
		"setsettimana":    d.handleSetWeek,
		"addsgarro":       d.handleAddSgarro,
		"setpeso":         d.handleSetWeight,
		"resetsettimana":  d.handleResetWeek,
		"addstreak":       d.handleAddStreak,
		"cambiaobiettivo": d.handleChangeGoal,
		"cambiapeso":      d.handleAskWeight,
		"ricalcola":       d.handleRecompute,
	}
	return d
}

// Handle は1件のUpdateを処理して返信を送信する。
// ユーザー起因のエラーは案内文として返信し、呼び出し元にはnilを返す。
// 送信の失敗とpanicのみエラーとして返す。
func (d *Dispatcher) Handle(ctx context.Context, upd Update) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("panic recovered",
				slog.Int64("user_id", upd.UserID),
				slog.String("command", upd.Command),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("update handler panicked: %v", r)
		}
	}()

	reply, herr := d.route(ctx, upd)
	if herr != nil {
		reply = d.errorReply(upd, herr)
	}
	if reply.Text == "" {
		return nil
	}

	chatID := upd.ChatID
	if chatID == 0 {
		chatID = upd.UserID
	}
	if err := d.sender.Send(ctx, chatID, reply); err != nil {
		return fmt.Errorf("返信の送信に失敗しました: %w", err)
	}
	return nil
}

func (d *Dispatcher) route(ctx context.Context, upd Update) (message.Message, error) {
	switch {
	case upd.Command != "":
		h, ok := d.commands[upd.Command]
		if !ok {
			d.metrics.RecordCommand("unknown")
			return message.Text(textUnknownCmd), nil
		}
		d.metrics.RecordCommand(upd.Command)
		return h(ctx, upd)
	case upd.CallbackData != "":
		return d.handleCallback(ctx, upd)
	case upd.WebAppData != nil:
		return d.handleWebAppData(ctx, upd)
	default:
		return d.handleText(ctx, upd)
	}
}

// errorReply はハンドラのエラーを返信文に変換する。
// AppErrorのActionがあればそれを返し、それ以外は内部エラーとしてログに残す。
func (d *Dispatcher) errorReply(upd Update, err error) message.Message {
	var appErr *model.AppError
	if errors.As(err, &appErr) && appErr.Action != "" {
		d.logger.Info("request rejected",
			slog.Int64("user_id", upd.UserID),
			slog.String("command", upd.Command),
			slog.String("code", appErr.Code),
		)
		return message.Text(appErr.Action)
	}
	d.logger.Error("failed to handle update",
		slog.Int64("user_id", upd.UserID),
		slog.String("command", upd.Command),
		slog.String("callback", upd.CallbackData),
		slog.String("error", err.Error()),
	)
	return message.Text(textGenericError)
}

func (d *Dispatcher) setAwaitingWeight(userID int64, v bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if v {
		d.awaitingWeight[userID] = true
	} else {
		delete(d.awaitingWeight, userID)
	}
}

func (d *Dispatcher) isAwaitingWeight(userID int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.awaitingWeight[userID]
}

// handleText はコマンド以外のテキストを処理する。
// 進行中のオンボーディング、体重入力待ちの順に判定する。
func (d *Dispatcher) handleText(ctx context.Context, upd Update) (message.Message, error) {
	if d.sessions.Active(upd.UserID) {
		text := upd.Text
		if s, ok := d.sessions.Snapshot(upd.UserID); ok && s.State == onboarding.StateAwaitingName {
			text = d.sanitizer.Clean(text)
		}
		s, t, ok, err := d.sessions.HandleText(ctx, upd.UserID, text)
		if ok {
			return d.onboardingReply(upd, s, t, err)
		}
	}

	if d.isAwaitingWeight(upd.UserID) {
		return d.handleNewWeight(ctx, upd)
	}

	return message.Text(textIdleHint), nil
}

func (d *Dispatcher) handleCallback(ctx context.Context, upd Update) (message.Message, error) {
	data := upd.CallbackData
	switch {
	case strings.HasPrefix(data, changeGoalPrefix):
		return d.handleChangeGoalSelection(ctx, upd)
	case strings.HasPrefix(data, onboarding.GoalPrefix), strings.HasPrefix(data, onboarding.ActivityPrefix):
		s, t, ok, err := d.sessions.HandleSelection(ctx, upd.UserID, data)
		if !ok {
			return editOf(upd, message.Text(textNoSetup)), nil
		}
		reply, err := d.onboardingReply(upd, s, t, err)
		if err != nil || t.Err != nil {
			return reply, err
		}
		return editOf(upd, reply), nil
	default:
		d.logger.Debug("unknown callback ignored",
			slog.Int64("user_id", upd.UserID),
			slog.String("callback", data),
		)
		return message.Message{}, nil
	}
}

func (d *Dispatcher) handleWebAppData(ctx context.Context, upd Update) (message.Message, error) {
	reply, ok, err := d.payloads.Handle(ctx, upd.UserID, upd.WebAppData)
	if err != nil {
		// 不正なデータはログに残して無視する
		d.logger.Warn("failed to handle companion payload",
			slog.Int64("user_id", upd.UserID),
			slog.String("error", err.Error()),
		)
		return message.Message{}, nil
	}
	if !ok {
		return message.Message{}, nil
	}
	return reply, nil
}

// onboardingReply は遷移結果から次の質問または完了メッセージを組み立てる。
func (d *Dispatcher) onboardingReply(upd Update, s onboarding.Session, t onboarding.Transition, err error) (message.Message, error) {
	if err != nil {
		d.logger.Error("failed to complete onboarding",
			slog.Int64("user_id", upd.UserID),
			slog.String("error", err.Error()),
		)
		return message.WithChoices(textSaveFailed, activityChoices...), nil
	}
	if t.Err != nil {
		return message.Text(t.Err.Action), nil
	}
	if t.Next == onboarding.StateComplete {
		d.metrics.RecordOnboardingCompleted()
		d.setAwaitingWeight(upd.UserID, false)
		url, err := d.appURL(companion.ProfilePayload(t.Profile))
		if err != nil {
			return message.Message{}, err
		}
		return message.WithLink(profileConfiguredText(t.Profile), "🔥 Apri Winter Grind", url), nil
	}
	return stepPrompt(s), nil
}

// editOf は返信をコールバック元メッセージの編集に変える。
func editOf(upd Update, msg message.Message) message.Message {
	msg.EditMessageID = upd.MessageID
	return msg
}

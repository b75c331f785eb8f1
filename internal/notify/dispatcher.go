package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/hitoshi/grindbot/internal/message"
	"github.com/hitoshi/grindbot/internal/metrics"
	"github.com/hitoshi/grindbot/internal/model"
)

// UserLister は通知対象の列挙に使うストアの部分インターフェース。
type UserLister interface {
	ListUsers(ctx context.Context) ([]model.UserRecord, error)
}

// FiringResult は1回の発火の配信結果。
type FiringResult struct {
	FiringID   string
	Kind       string
	Recipients int
	Delivered  int
	Failed     int
	StartedAt  time.Time
	Duration   time.Duration
}

// Partial は一部の宛先への送信に失敗したかを返す。
func (r *FiringResult) Partial() bool {
	return r.Failed > 0 && r.Delivered > 0
}

// DispatcherConfig は配信の並列数・タイムアウト・送信レートの設定。
type DispatcherConfig struct {
	SendTimeout    time.Duration
	MaxConcurrency int
	RatePerSec     float64
}

// Dispatcher は発火ごとに通知対象ユーザーを列挙し、並列でメッセージを送信する。
// 1宛先の失敗は他の宛先への送信を止めない。
type Dispatcher struct {
	users          UserLister
	sender         message.Sender
	reminders      *Reminders
	limiter        *rate.Limiter
	metrics        metrics.MetricsCollector
	logger         *slog.Logger
	sendTimeout    time.Duration
	maxConcurrency int
	now            func() time.Time
}

// NewDispatcher はDispatcherの新しいインスタンスを生成する。
// MaxConcurrencyが0以下の場合は10、SendTimeoutが0以下の場合は10秒を使用する。
// RatePerSecが0以下の場合は送信レートを制限しない。
func NewDispatcher(
	users UserLister,
	sender message.Sender,
	reminders *Reminders,
	mc metrics.MetricsCollector,
	logger *slog.Logger,
	cfg DispatcherConfig,
) *Dispatcher {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 10
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RatePerSec > 0 {
		burst := int(cfg.RatePerSec)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst)
	}
	if mc == nil {
		mc = metrics.NopCollector{}
	}
	return &Dispatcher{
		users:          users,
		sender:         sender,
		reminders:      reminders,
		limiter:        limiter,
		metrics:        mc,
		logger:         logger,
		sendTimeout:    cfg.SendTimeout,
		maxConcurrency: cfg.MaxConcurrency,
		now:            time.Now,
	}
}

// Run は指定種別の通知を、通知が有効な全ユーザーへ送信する。
// 設定レコードが無いユーザーは有効として扱う。
// ユーザー列挙に失敗した場合のみエラーを返し、個別の送信失敗は結果に集計する。
func (d *Dispatcher) Run(ctx context.Context, kind string) (*FiringResult, error) {
	start := d.now()

	msg, err := d.reminders.Build(kind, start)
	if err != nil {
		return nil, err
	}

	users, err := d.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("通知対象ユーザーの取得に失敗しました: %w", err)
	}

	recipients := make([]int64, 0, len(users))
	for _, u := range users {
		if model.NotificationsEnabled(u.Settings, kind) {
			recipients = append(recipients, u.UserID)
		}
	}

	res := &FiringResult{
		FiringID:   uuid.NewString(),
		Kind:       kind,
		Recipients: len(recipients),
		StartedAt:  start,
	}

	// semaphoreパターンで並列数を制御
	sem := make(chan struct{}, d.maxConcurrency)
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	for _, userID := range recipients {
		wg.Add(1)
		sem <- struct{}{}

		go func(id int64) {
			defer wg.Done()
			defer func() { <-sem }()

			err := d.deliver(ctx, id, kind, res.FiringID, msg)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failed++
			} else {
				res.Delivered++
			}
		}(userID)
	}

	wg.Wait()

	res.Duration = d.now().Sub(start)
	d.metrics.RecordFiring(kind, res.Partial())
	return res, nil
}

// deliver は1宛先へ送信する。送信レートの待機は発火のコンテキストで行い、
// sendTimeoutは送信そのものにだけ適用する。超過は失敗として扱う。
// Senderがコンテキストを無視してブロックしても、この関数はタイムアウトで戻る。
func (d *Dispatcher) deliver(ctx context.Context, userID int64, kind, firingID string, msg message.Message) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return d.fail(userID, kind, firingID, err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	start := time.Now()
	done := make(chan error, 1)
	go func() {
		done <- d.sender.Send(sendCtx, userID, msg)
	}()

	var err error
	select {
	case err = <-done:
	case <-sendCtx.Done():
		err = sendCtx.Err()
	}
	d.metrics.RecordSendLatency(time.Since(start))

	if err != nil {
		return d.fail(userID, kind, firingID, err)
	}
	d.metrics.RecordDeliverySuccess(kind)
	return nil
}

func (d *Dispatcher) fail(userID int64, kind, firingID string, cause error) error {
	derr := model.NewDeliveryError(userID, cause)
	d.metrics.RecordDeliveryFailure(kind)
	d.logger.Warn("通知の送信に失敗しました",
		slog.String("firing_id", firingID),
		slog.String("kind", kind),
		slog.Int64("user_id", userID),
		slog.String("error", derr.Error()),
	)
	return derr
}

package notify

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Runner はジョブ種別ごとの配信処理。Dispatcherが実装する。
type Runner interface {
	Run(ctx context.Context, kind string) (*FiringResult, error)
}

// Job は定期実行するジョブの登録内容。IDが同じジョブは置き換えられる。
type Job struct {
	ID      string
	Kind    string
	Trigger Trigger
}

// JobInfo は登録済みジョブと次回発火予定時刻。
type JobInfo struct {
	Job
	NextRun time.Time
}

type registration struct {
	job   Job
	gen   uint64
	next  time.Time
	timer Timer
}

// firing はタイマーからループへ渡される発火通知。
// genが現在の登録と一致しない発火は置き換え前のタイマーのものとして破棄する。
type firing struct {
	id  string
	gen uint64
}

// Scheduler は定期ジョブを管理する単一ループのスケジューラ。
// タイマーは発火をチャネルに積むだけで、ジョブ本体はStartのループ内で1件ずつ実行する。
type Scheduler struct {
	mu     sync.Mutex
	jobs   map[string]*registration
	gen    uint64
	clock  Clock
	runner Runner
	fires  chan firing
	logger *slog.Logger

	// done はStartの終了時に閉じる。以降のタイマー発火は捨てる。
	done     chan struct{}
	stopOnce sync.Once
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
func NewScheduler(runner Runner, clock Clock, logger *slog.Logger) *Scheduler {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Scheduler{
		jobs:   make(map[string]*registration),
		clock:  clock,
		runner: runner,
		fires:  make(chan firing, 16),
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Register はジョブを登録する。同じIDのジョブが既にあれば、そのタイマーを停止して置き換える。
// 同一IDに対して有効なタイマーは常に高々1つ。
func (s *Scheduler) Register(job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	replaced := false
	if old, ok := s.jobs[job.ID]; ok {
		old.timer.Stop()
		replaced = true
	}

	s.gen++
	reg := &registration{job: job, gen: s.gen}
	s.jobs[job.ID] = reg
	s.arm(reg, s.clock.Now())

	s.logger.Info("ジョブを登録しました",
		slog.String("job_id", job.ID),
		slog.String("kind", job.Kind),
		slog.String("trigger", job.Trigger.String()),
		slog.Time("next_run", reg.next),
		slog.Bool("replaced", replaced),
	)
}

// Jobs は登録済みジョブをID順で返す。
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]JobInfo, 0, len(s.jobs))
	for _, reg := range s.jobs {
		infos = append(infos, JobInfo{Job: reg.job, NextRun: reg.next})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// Start はスケジューラのループを開始する。
// コンテキストがキャンセルされるまで実行を継続し、終了時に全タイマーを停止する。
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("通知スケジューラを開始しました", slog.Int("job_count", len(s.Jobs())))

	for {
		select {
		case <-ctx.Done():
			s.stopAll()
			s.logger.Info("通知スケジューラを停止しました")
			return
		case f := <-s.fires:
			s.handle(ctx, f)
		}
	}
}

// drain は溜まっている発火を全て処理して件数を返す。テスト用。
func (s *Scheduler) drain(ctx context.Context) int {
	n := 0
	for {
		select {
		case f := <-s.fires:
			s.handle(ctx, f)
			n++
		default:
			return n
		}
	}
}

// handle は1件の発火を処理する。次回のタイマーを先に設定してからジョブ本体を実行する。
func (s *Scheduler) handle(ctx context.Context, f firing) {
	s.mu.Lock()
	reg, ok := s.jobs[f.id]
	if !ok || reg.gen != f.gen {
		s.mu.Unlock()
		s.logger.Debug("置き換え済みジョブの発火を破棄しました", slog.String("job_id", f.id))
		return
	}
	scheduled := reg.next
	after := scheduled
	if now := s.clock.Now(); now.After(after) {
		after = now
	}
	s.arm(reg, after)
	job := reg.job
	s.mu.Unlock()

	s.logger.Info("ジョブを実行します",
		slog.String("job_id", job.ID),
		slog.String("kind", job.Kind),
		slog.Time("scheduled_at", scheduled),
	)

	res, err := s.runner.Run(ctx, job.Kind)
	if err != nil {
		s.logger.Error("ジョブの実行に失敗しました",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	level := slog.LevelInfo
	if res.Failed > 0 {
		level = slog.LevelWarn
	}
	s.logger.Log(ctx, level, "ジョブが完了しました",
		slog.String("job_id", job.ID),
		slog.String("firing_id", res.FiringID),
		slog.Int("recipients", res.Recipients),
		slog.Int("delivered", res.Delivered),
		slog.Int("failed", res.Failed),
		slog.Bool("partial", res.Partial()),
	)
}

// arm はafter以降の次回発火時刻でタイマーを設定する。s.muを保持した状態で呼ぶこと。
func (s *Scheduler) arm(reg *registration, after time.Time) {
	reg.next = reg.job.Trigger.Next(after)
	f := firing{id: reg.job.ID, gen: reg.gen}
	reg.timer = s.clock.AfterFunc(reg.next.Sub(s.clock.Now()), func() {
		select {
		case s.fires <- f:
		case <-s.done:
		}
	})
}

// stopAll は全タイマーを停止し、送信待ちのタイマーコールバックを解放する。
func (s *Scheduler) stopAll() {
	s.stopOnce.Do(func() { close(s.done) })

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, reg := range s.jobs {
		reg.timer.Stop()
	}
}

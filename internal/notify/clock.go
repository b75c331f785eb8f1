package notify

import "time"

// Timer は停止可能なタイマー。*time.Timerが満たす。
type Timer interface {
	Stop() bool
}

// Clock は現在時刻とタイマーの供給元。テストでは手動で進める実装に差し替える。
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// SystemClock は実時間のClock。
type SystemClock struct{}

// Now は現在時刻を返す。
func (SystemClock) Now() time.Time {
	return time.Now()
}

// AfterFunc はd経過後にfを別ゴルーチンで呼び出す。
func (SystemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

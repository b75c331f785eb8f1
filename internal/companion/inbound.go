package companion

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/grindbot/internal/message"
	"github.com/hitoshi/grindbot/internal/metrics"
	"github.com/hitoshi/grindbot/internal/model"
	"github.com/hitoshi/grindbot/internal/progress"
)

// 受信ペイロードの種別。
const (
	TypeSgarroUsed  = "sgarro_used"
	TypeStateUpdate = "stateUpdate"
	TypeStateReport = "state_report"
)

// Inbound はコンパニオンアプリから送られるデータ。typeで中身の解釈が変わる。
type Inbound struct {
	Type            string          `json:"type"`
	RemainingSgarri int             `json:"remainingSgarri"`
	State           json.RawMessage `json:"state,omitempty"`
}

// reportState は state_report の state から必要な部分だけを取り出す。
type reportState struct {
	WeekData progress.WeekState `json:"weekData"`
}

// Parse は受信データを解析する。不正なJSONはMalformedPayloadErrorを返す。
func Parse(data []byte) (*Inbound, error) {
	var in Inbound
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, model.NewMalformedPayloadError("json", err)
	}
	return &in, nil
}

// StateStore はアプリ状態の保存先。profile.Serviceが実装する。
type StateStore interface {
	ReplaceAppState(ctx context.Context, userID int64, state json.RawMessage) error
}

// Handler は受信データを解釈し、必要に応じて状態を保存し、ユーザーへの返信を組み立てる。
type Handler struct {
	states  StateStore
	metrics metrics.MetricsCollector
	logger  *slog.Logger
}

// NewHandler はHandlerの新しいインスタンスを生成する。
func NewHandler(states StateStore, mc metrics.MetricsCollector, logger *slog.Logger) *Handler {
	if mc == nil {
		mc = metrics.NopCollector{}
	}
	return &Handler{states: states, metrics: mc, logger: logger}
}

// Handle は1件の受信データを処理する。
// 返信が必要な場合はreply=trueとメッセージを返す。
// 未知の種別は無視してnilを返す。不正なデータはMalformedPayloadErrorを返すので、
// 呼び出し側はログに残して処理を継続すること。
func (h *Handler) Handle(ctx context.Context, userID int64, data []byte) (message.Message, bool, error) {
	in, err := Parse(data)
	if err != nil {
		h.metrics.RecordInboundPayload("malformed")
		return message.Message{}, false, err
	}

	switch in.Type {
	case TypeSgarroUsed:
		h.metrics.RecordInboundPayload(in.Type)
		return message.Text(fmt.Sprintf(
			"🍕 <b>Sgarro Usato!</b>\n\nGoditelo 😋\nSgarri rimasti: %d", in.RemainingSgarri,
		)), true, nil

	case TypeStateUpdate:
		if !isObject(in.State) {
			h.metrics.RecordInboundPayload("malformed")
			return message.Message{}, false, model.NewMalformedPayloadError("stateUpdate without state object", nil)
		}
		if err := h.states.ReplaceAppState(ctx, userID, in.State); err != nil {
			return message.Message{}, false, fmt.Errorf("アプリ状態の保存に失敗しました: %w", err)
		}
		h.metrics.RecordInboundPayload(in.Type)
		return message.Message{}, false, nil

	case TypeStateReport:
		var st reportState
		if len(in.State) == 0 {
			h.metrics.RecordInboundPayload("malformed")
			return message.Message{}, false, model.NewMalformedPayloadError("state_report without state", nil)
		}
		if err := json.Unmarshal(in.State, &st); err != nil {
			h.metrics.RecordInboundPayload("malformed")
			return message.Message{}, false, model.NewMalformedPayloadError("state_report weekData", err)
		}
		h.metrics.RecordInboundPayload(in.Type)
		return message.Text(ReportText(progress.Summarize(st.WeekData))), true, nil

	default:
		h.metrics.RecordInboundPayload("unknown")
		h.logger.Debug("未知のペイロード種別を無視しました",
			slog.Int64("user_id", userID),
			slog.String("type", in.Type),
		)
		return message.Message{}, false, nil
	}
}

// ReportText は週の集計結果の表示テキストを返す。
func ReportText(r progress.Report) string {
	var b strings.Builder
	b.WriteString("📊 <b>REPORT SETTIMANALE</b>\n\n")
	fmt.Fprintf(&b, "🏆 Punti: %d/%d\n", r.Points, progress.MaxPoints)
	fmt.Fprintf(&b, "%s Livello: %s\n\n", tierEmoji(r.Tier), r.Tier)
	fmt.Fprintf(&b, "💪 Allenamenti: %d\n", r.WorkoutDays)
	fmt.Fprintf(&b, "🏃 Cardio: %d\n", r.CardioDays)
	fmt.Fprintf(&b, "🥗 Dieta rispettata: %d giorni\n\n", r.DietDays)
	if r.AwardsSgarro {
		b.WriteString("🍕 Hai guadagnato uno sgarro!")
	} else {
		fmt.Fprintf(&b, "Ti servono %d punti per lo sgarro. Forza! 🔥", progress.SgarroThreshold)
	}
	return b.String()
}

func tierEmoji(t progress.Tier) string {
	switch t {
	case progress.TierBeast:
		return "🦍"
	case progress.TierSolid:
		return "💪"
	case progress.TierInRecovery:
		return "⚠️"
	default:
		return "🔄"
	}
}

func isObject(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return strings.HasPrefix(trimmed, "{") && json.Valid(raw)
}

package companion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/hitoshi/grindbot/internal/model"
)

// mockStateStore はStateStoreのテスト用モック。
type mockStateStore struct {
	replaceFn func(ctx context.Context, userID int64, state json.RawMessage) error
	saved     map[int64]json.RawMessage
}

func (m *mockStateStore) ReplaceAppState(ctx context.Context, userID int64, state json.RawMessage) error {
	if m.replaceFn != nil {
		return m.replaceFn(ctx, userID, state)
	}
	if m.saved == nil {
		m.saved = make(map[int64]json.RawMessage)
	}
	m.saved[userID] = state
	return nil
}

func newTestHandler(store StateStore) (*Handler, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return NewHandler(store, nil, logger), &buf
}

func TestHandle_SgarroUsed(t *testing.T) {
	h, _ := newTestHandler(&mockStateStore{})

	msg, reply, err := h.Handle(context.Background(), 1, []byte(`{"type":"sgarro_used","remainingSgarri":2}`))
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if !reply {
		t.Fatal("sgarro_used should produce a reply")
	}
	if !strings.Contains(msg.Text, "Sgarro Usato!") || !strings.Contains(msg.Text, "Sgarri rimasti: 2") {
		t.Errorf("reply text = %q", msg.Text)
	}
}

func TestHandle_StateUpdateReplacesState(t *testing.T) {
	store := &mockStateStore{}
	h, _ := newTestHandler(store)

	payload := `{"type":"stateUpdate","state":{"currentWeek":3,"streak":4}}`
	_, reply, err := h.Handle(context.Background(), 42, []byte(payload))
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if reply {
		t.Error("stateUpdate should not produce a reply")
	}
	if got := string(store.saved[42]); got != `{"currentWeek":3,"streak":4}` {
		t.Errorf("saved state = %s", got)
	}
}

func TestHandle_StateUpdateWithoutObject(t *testing.T) {
	store := &mockStateStore{}
	h, _ := newTestHandler(store)

	for _, payload := range []string{`{"type":"stateUpdate"}`, `{"type":"stateUpdate","state":[1,2]}`} {
		_, _, err := h.Handle(context.Background(), 1, []byte(payload))
		if !model.HasCode(err, model.ErrCodeMalformedPayload) {
			t.Errorf("Handle(%s) error = %v, want MALFORMED_PAYLOAD", payload, err)
		}
	}
	if len(store.saved) != 0 {
		t.Error("nothing should be saved for malformed stateUpdate")
	}
}

func TestHandle_StateUpdateStoreError(t *testing.T) {
	store := &mockStateStore{
		replaceFn: func(ctx context.Context, userID int64, state json.RawMessage) error {
			return errors.New("db down")
		},
	}
	h, _ := newTestHandler(store)

	_, _, err := h.Handle(context.Background(), 1, []byte(`{"type":"stateUpdate","state":{}}`))
	if err == nil || !strings.Contains(err.Error(), "db down") {
		t.Errorf("Handle() error = %v, want wrapped store error", err)
	}
}

func TestHandle_StateReport(t *testing.T) {
	h, _ := newTestHandler(&mockStateStore{})

	week := map[string]map[string]bool{}
	for _, d := range []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"} {
		week[d] = map[string]bool{"workout": true, "diet": true, "cardio": false}
	}
	state, _ := json.Marshal(map[string]any{"weekData": week})
	payload, _ := json.Marshal(map[string]any{"type": "state_report", "state": json.RawMessage(state)})

	msg, reply, err := h.Handle(context.Background(), 1, payload)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if !reply {
		t.Fatal("state_report should produce a reply")
	}
	// 7 * (15 + 3) = 126 → 100で頭打ち
	if !strings.Contains(msg.Text, "Punti: 100/100") || !strings.Contains(msg.Text, "BEAST") {
		t.Errorf("report text = %q", msg.Text)
	}
	if !strings.Contains(msg.Text, "Hai guadagnato uno sgarro") {
		t.Errorf("report should announce sgarro, got %q", msg.Text)
	}
}

func TestHandle_UnknownTypeIgnored(t *testing.T) {
	h, buf := newTestHandler(&mockStateStore{})

	_, reply, err := h.Handle(context.Background(), 1, []byte(`{"type":"confetti"}`))
	if err != nil {
		t.Errorf("Handle() error = %v, want nil", err)
	}
	if reply {
		t.Error("unknown type should not produce a reply")
	}
	if !strings.Contains(buf.String(), "confetti") {
		t.Errorf("unknown type should be logged, got: %s", buf.String())
	}
}

func TestHandle_InvalidJSON(t *testing.T) {
	h, _ := newTestHandler(&mockStateStore{})

	_, reply, err := h.Handle(context.Background(), 1, []byte(`{"type":`))
	if !model.HasCode(err, model.ErrCodeMalformedPayload) {
		t.Errorf("Handle() error = %v, want MALFORMED_PAYLOAD", err)
	}
	if reply {
		t.Error("invalid JSON should not produce a reply")
	}
}

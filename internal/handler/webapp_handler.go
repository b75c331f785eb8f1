package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/grindbot/internal/companion"
	"github.com/hitoshi/grindbot/internal/message"
	"github.com/hitoshi/grindbot/internal/model"
)

// maxPayloadBytes はコンパニオンアプリから受け付けるボディの上限。
const maxPayloadBytes = 64 << 10

// PayloadHandler はコンパニオンアプリからの受信データを処理する。companion.Handlerが実装する。
type PayloadHandler interface {
	Handle(ctx context.Context, userID int64, data []byte) (message.Message, bool, error)
}

// ProfileFinder はアプリURLの組み立てに使うプロフィール取得のインターフェース。
type ProfileFinder interface {
	Get(ctx context.Context, userID int64) (*model.UserProfile, error)
}

// WebAppHandler はコンパニオンアプリ向けのHTTPハンドラー。
type WebAppHandler struct {
	payloads PayloadHandler
	profiles ProfileFinder
	sender   message.Sender
	appURL   string
	logger   *slog.Logger
}

// NewWebAppHandler はWebAppHandlerを生成する。
func NewWebAppHandler(payloads PayloadHandler, profiles ProfileFinder, sender message.Sender, appURL string, logger *slog.Logger) *WebAppHandler {
	return &WebAppHandler{
		payloads: payloads,
		profiles: profiles,
		sender:   sender,
		appURL:   appURL,
		logger:   logger,
	}
}

// appURLResponse はアプリURL取得のレスポンスボディ。
type appURLResponse struct {
	URL string `json:"url"`
}

// ReceiveData はコンパニオンアプリが送信したJSONを処理し、返信があればユーザーのチャットへ送る。
// POST /api/webapp/{userID}
func (h *WebAppHandler) ReceiveData(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	if err != nil {
		handleServiceError(w, h.logger, model.NewMalformedPayloadError("body", err))
		return
	}

	reply, hasReply, err := h.payloads.Handle(r.Context(), userID, body)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	if hasReply {
		if err := h.sender.Send(r.Context(), userID, reply); err != nil {
			handleServiceError(w, h.logger, model.NewDeliveryError(userID, err))
			return
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// AppURL はユーザーのプロフィールを載せたコンパニオンアプリURLを返す。
// プロフィール未作成の場合はベースURLを返す。
// GET /api/users/{userID}/app-url
func (h *WebAppHandler) AppURL(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var payload companion.Payload
	p, err := h.profiles.Get(r.Context(), userID)
	switch {
	case model.HasCode(err, model.ErrCodeUnknownUser):
	case err != nil:
		handleServiceError(w, h.logger, err)
		return
	default:
		payload = companion.ProfilePayload(p)
		if p.CurrentWeek > 0 {
			payload.CurrentWeek = companion.Int(p.CurrentWeek)
		}
	}

	url, err := companion.BuildURL(h.appURL, payload)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, appURLResponse{URL: url})
}

// userID はパスのユーザーIDを解析する。不正な場合は400を書き込みfalseを返す。
func (h *WebAppHandler) userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "userID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		handleServiceError(w, h.logger, &model.AppError{
			Code:     model.ErrCodeValidation,
			Message:  "ユーザーIDが不正です: " + raw,
			Category: "validation",
			Action:   "数値のTelegramユーザーIDを指定してください。",
		})
		return 0, false
	}
	return id, true
}

package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/grindbot/internal/middleware"
	"github.com/hitoshi/grindbot/internal/model"
)

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var appErr *model.AppError
	if errors.As(err, &appErr) {
		if status, ok := mapAppErrorToHTTPStatus(appErr); ok {
			middleware.WriteErrorResponse(w, status, appErr)
			return
		}
	}

	// 対応表にないエラーは内部サーバーエラーとして扱う
	logger.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAppErrorToHTTPStatus はAppErrorコードからHTTPステータスコードにマッピングする。
func mapAppErrorToHTTPStatus(appErr *model.AppError) (int, bool) {
	switch appErr.Code {
	case model.ErrCodeMalformedPayload, model.ErrCodeValidation:
		return http.StatusBadRequest, true
	case model.ErrCodeUnknownUser:
		return http.StatusNotFound, true
	case model.ErrCodeDelivery:
		return http.StatusBadGateway, true
	default:
		return 0, false
	}
}

package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/grindbot/internal/model"
)

// エラーコード
const (
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeForbidden    = "FORBIDDEN"
)

// initDataScheme はAuthorizationヘッダーでinitDataを渡すときのスキーム名。
const initDataScheme = "tma "

var (
	errInitDataMissing   = errors.New("initData is missing")
	errInitDataSignature = errors.New("initData signature mismatch")
	errInitDataExpired   = errors.New("initData is expired")
	errInitDataUser      = errors.New("initData has no valid user")
)

// InitDataVerifier はTelegram Mini Appがリクエストに付与するinitDataの署名を検証する。
// 秘密鍵はHMAC-SHA256("WebAppData", ボットトークン)。
type InitDataVerifier struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// NewInitDataVerifier はボットトークンから検証器を生成する。
// maxAgeが0以下の場合はauth_dateの経過時間を確認しない。
func NewInitDataVerifier(botToken string, maxAge time.Duration, logger *slog.Logger) *InitDataVerifier {
	mac := hmac.New(sha256.New, []byte("WebAppData"))
	mac.Write([]byte(botToken))
	return &InitDataVerifier{
		secret: mac.Sum(nil),
		maxAge: maxAge,
		now:    time.Now,
		logger: logger,
	}
}

// Verify はinitData（クエリ文字列形式）の署名と有効期限を検証し、署名されたユーザーIDを返す。
func (v *InitDataVerifier) Verify(initData string) (int64, error) {
	if initData == "" {
		return 0, errInitDataMissing
	}
	values, err := url.ParseQuery(initData)
	if err != nil {
		return 0, err
	}

	hash := values.Get("hash")
	if hash == "" {
		return 0, errInitDataMissing
	}
	values.Del("hash")

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+values.Get(k))
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(strings.Join(lines, "\n")))
	got, err := hex.DecodeString(hash)
	if err != nil || !hmac.Equal(got, mac.Sum(nil)) {
		return 0, errInitDataSignature
	}

	if v.maxAge > 0 {
		authDate, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
		if err != nil || v.now().Sub(time.Unix(authDate, 0)) > v.maxAge {
			return 0, errInitDataExpired
		}
	}

	var user struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal([]byte(values.Get("user")), &user); err != nil || user.ID <= 0 {
		return 0, errInitDataUser
	}
	return user.ID, nil
}

// Middleware は"Authorization: tma <initData>"を検証し、署名されたユーザーが
// keyFnで取り出したパスのユーザーと一致するリクエストだけを通す。
// 検証に失敗した場合は401、ユーザーが一致しない場合は403を返す。
func (v *InitDataVerifier) Middleware(keyFn KeyFunc) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			initData, ok := strings.CutPrefix(auth, initDataScheme)
			if !ok {
				initData = ""
			}

			userID, err := v.Verify(initData)
			if err != nil {
				v.logger.Warn("initData verification failed",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				WriteErrorResponse(w, http.StatusUnauthorized, &model.AppError{
					Code:     ErrCodeUnauthorized,
					Message:  "Telegramの署名を検証できません。",
					Category: "auth",
					Action:   "Telegramからミニアプリを開き直してください。",
				})
				return
			}

			if keyFn(r) != strconv.FormatInt(userID, 10) {
				v.logger.Warn("initData user does not match path",
					slog.Int64("signed_user_id", userID),
					slog.String("path", r.URL.Path),
				)
				WriteErrorResponse(w, http.StatusForbidden, &model.AppError{
					Code:     ErrCodeForbidden,
					Message:  "他のユーザーのデータにはアクセスできません。",
					Category: "auth",
					Action:   "自分のユーザーIDでリクエストしてください。",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Package companion はコンパニオンWebアプリとのデータ受け渡しを扱う。
// 送信方向はJSON→base64をURLのクエリに載せ、受信方向はアプリから返されるJSONを解釈する。
package companion

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/hitoshi/grindbot/internal/model"
	"github.com/hitoshi/grindbot/internal/progress"
)

// QueryParam はURLにペイロードを載せるクエリパラメータ名。
const QueryParam = "data"

// SavedWeight は週ごとの体重記録。
type SavedWeight struct {
	Week   int     `json:"week"`
	Weight float64 `json:"weight"`
}

// Payload はコンパニオンアプリへ渡すデータ。設定したキーだけがJSONに含まれる。
// 0が意味を持つ整数値はポインタで保持する。
type Payload struct {
	Macros          *model.Macros      `json:"macros,omitempty"`
	UserName        string             `json:"userName,omitempty"`
	Goal            model.Goal         `json:"goal,omitempty"`
	CurrentWeek     *int               `json:"currentWeek,omitempty"`
	PointsForSgarro *int               `json:"pointsForSgarro,omitempty"`
	SavedWeights    []SavedWeight      `json:"savedWeights,omitempty"`
	WeekData        progress.WeekState `json:"weekData,omitempty"`
	Streak          *int               `json:"streak,omitempty"`
}

// Int は整数フィールド設定用のヘルパー。
func Int(v int) *int {
	return &v
}

// ProfilePayload はプロフィールからマクロ・名前・目標を載せたペイロードを生成する。
func ProfilePayload(p *model.UserProfile) Payload {
	macros := p.Macros
	return Payload{
		Macros:   &macros,
		UserName: p.Name,
		Goal:     p.Goal,
	}
}

// IsEmpty はキーが1つも設定されていないかを返す。
func (p Payload) IsEmpty() bool {
	return p.Macros == nil &&
		p.UserName == "" &&
		p.Goal == "" &&
		p.CurrentWeek == nil &&
		p.PointsForSgarro == nil &&
		len(p.SavedWeights) == 0 &&
		len(p.WeekData) == 0 &&
		p.Streak == nil
}

// Encode はペイロードをJSON化し、標準base64でエンコードする。
func Encode(p Payload) (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("ペイロードのJSON変換に失敗しました: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Decode はEncodeの逆変換を行う。
func Decode(encoded string) (Payload, error) {
	var p Payload
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return p, model.NewMalformedPayloadError("base64", err)
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, model.NewMalformedPayloadError("json", err)
	}
	return p, nil
}

// BuildURL はベースURLにエンコード済みペイロードを付けたURLを返す。
// ペイロードが空の場合はベースURLをそのまま返す。
func BuildURL(base string, p Payload) (string, error) {
	if p.IsEmpty() {
		return base, nil
	}
	encoded, err := Encode(p)
	if err != nil {
		return "", err
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + QueryParam + "=" + url.QueryEscape(encoded), nil
}

package bot

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/hitoshi/grindbot/internal/companion"
	"github.com/hitoshi/grindbot/internal/message"
	"github.com/hitoshi/grindbot/internal/model"
	"github.com/hitoshi/grindbot/internal/onboarding"
	"github.com/hitoshi/grindbot/internal/progress"
)

// appURL はペイロード付きのコンパニオンアプリURLを返す。
func (d *Dispatcher) appURL(p companion.Payload) (string, error) {
	return companion.BuildURL(d.cfg.AppURL, p)
}

// linkReply はペイロード付きURLボタンの返信を組み立てる。
func (d *Dispatcher) linkReply(text, label string, p companion.Payload) (message.Message, error) {
	url, err := d.appURL(p)
	if err != nil {
		return message.Message{}, err
	}
	return message.WithLink(text, label, url), nil
}

// findProfile はプロフィールを取得する。未作成の場合は(nil, nil)を返す。
func (d *Dispatcher) findProfile(ctx context.Context, userID int64) (*model.UserProfile, error) {
	p, err := d.profiles.Get(ctx, userID)
	if model.HasCode(err, model.ErrCodeUnknownUser) {
		return nil, nil
	}
	return p, err
}

func (d *Dispatcher) handleStart(ctx context.Context, upd Update) (message.Message, error) {
	p, err := d.findProfile(ctx, upd.UserID)
	if err != nil {
		return message.Message{}, err
	}
	if p == nil {
		return message.Text(welcomeText(upd.FirstName)), nil
	}
	return d.linkReply(welcomeBackText(upd.FirstName), "🔥 Apri Winter Grind", companion.ProfilePayload(p))
}

func (d *Dispatcher) handleSetup(_ context.Context, upd Update) (message.Message, error) {
	d.setAwaitingWeight(upd.UserID, false)
	d.sessions.Start(upd.UserID)
	return message.Text(setupPromptText), nil
}

func (d *Dispatcher) handleCancel(_ context.Context, upd Update) (message.Message, error) {
	cancelledWeight := d.isAwaitingWeight(upd.UserID)
	d.setAwaitingWeight(upd.UserID, false)
	if d.sessions.Cancel(upd.UserID) {
		return message.Text(textSetupCancel), nil
	}
	if cancelledWeight {
		return message.Text("Aggiornamento peso annullato."), nil
	}
	return message.Text(textNoSetup), nil
}

func (d *Dispatcher) handleMenu(context.Context, Update) (message.Message, error) {
	return message.Text(menuText), nil
}

func (d *Dispatcher) handleHelp(context.Context, Update) (message.Message, error) {
	return message.Text(helpText(d.cfg.Schedule)), nil
}

func (d *Dispatcher) handleApp(ctx context.Context, upd Update) (message.Message, error) {
	p, err := d.findProfile(ctx, upd.UserID)
	if err != nil {
		return message.Message{}, err
	}
	var payload companion.Payload
	if p != nil {
		payload = companion.ProfilePayload(p)
	}
	return d.linkReply("Clicca per aprire Winter Grind 💪", "🔥 Apri App", payload)
}

func (d *Dispatcher) handleProfile(ctx context.Context, upd Update) (message.Message, error) {
	p, err := d.findProfile(ctx, upd.UserID)
	if err != nil {
		return message.Message{}, err
	}
	if p == nil {
		return message.Text(textNoProfile), nil
	}
	return message.Text(profileText(p)), nil
}

func (d *Dispatcher) handleMacros(ctx context.Context, upd Update) (message.Message, error) {
	p, err := d.profiles.Get(ctx, upd.UserID)
	if err != nil {
		return message.Message{}, err
	}
	return message.WithLink(macrosText(p.Macros), "📱 Apri App", d.cfg.AppURL), nil
}

func (d *Dispatcher) handleToday(context.Context, Update) (message.Message, error) {
	day := d.now().In(d.cfg.Schedule.Location).Weekday()
	return message.WithLink(todayText(day), "✅ Segna Completato", d.cfg.AppURL), nil
}

// handleStatus はコンパニオンアプリから最後に同期された週データを集計して表示する。
func (d *Dispatcher) handleStatus(ctx context.Context, upd Update) (message.Message, error) {
	st, err := d.profiles.Settings(ctx, upd.UserID)
	if err != nil {
		return message.Message{}, err
	}
	var state struct {
		WeekData progress.WeekState `json:"weekData"`
	}
	if len(st.AppState) == 0 || json.Unmarshal(st.AppState, &state) != nil || len(state.WeekData) == 0 {
		return message.WithLink(noStatusText, "📱 Apri App", d.cfg.AppURL), nil
	}
	return message.WithLink(companion.ReportText(progress.Summarize(state.WeekData)), "📊 Vedi Report", d.cfg.AppURL), nil
}

var reminderArgs = map[string]string{
	"mattina":   model.ReminderMorning,
	"morning":   model.ReminderMorning,
	"sera":      model.ReminderEvening,
	"evening":   model.ReminderEvening,
	"report":    model.ReminderWeeklyReport,
	"weekly":    model.ReminderWeeklyReport,
	"settimana": model.ReminderWeeklyReport,
}

// handleNotifications は引数なしで全体の通知を、引数ありで種別ごとのリマインダーを切り替える。
func (d *Dispatcher) handleNotifications(ctx context.Context, upd Update) (message.Message, error) {
	if len(upd.Args) == 0 {
		st, err := d.profiles.ToggleNotifications(ctx, upd.UserID)
		if err != nil {
			return message.Message{}, err
		}
		return message.Text(notificationsText(st, d.cfg.Schedule)), nil
	}

	kind, ok := reminderArgs[strings.ToLower(upd.Args[0])]
	if !ok {
		return message.Text(usageText("notifiche", "mattina|sera|report", "sera")), nil
	}
	st, err := d.profiles.ToggleReminder(ctx, upd.UserID, kind)
	if err != nil {
		return message.Message{}, err
	}
	return message.Text(reminderToggledText(kind, st)), nil
}

// intArg は最初の引数を整数として解析する。lowest未満は不正とする。
func intArg(args []string, lowest int) (int, bool) {
	if len(args) == 0 {
		return 0, false
	}
	v, err := strconv.Atoi(args[0])
	if err != nil || v < lowest {
		return 0, false
	}
	return v, true
}

func (d *Dispatcher) handleSetWeek(ctx context.Context, upd Update) (message.Message, error) {
	week, ok := intArg(upd.Args, 1)
	if !ok {
		return message.Text(usageText("setsettimana", "numero", "5")), nil
	}
	// プロフィールがあれば保存する。未作成でもアプリ側の更新は行う
	if _, err := d.profiles.SetCurrentWeek(ctx, upd.UserID, week); err != nil && !model.HasCode(err, model.ErrCodeUnknownUser) {
		return message.Message{}, err
	}
	return d.linkReply(
		"✅ <b>Settimana impostata a: "+strconv.Itoa(week)+"</b>\n\nApri l'app per applicare 👇",
		"📱 Apri App (Settimana Aggiornata)",
		companion.Payload{CurrentWeek: companion.Int(week)},
	)
}

func (d *Dispatcher) handleAddSgarro(_ context.Context, upd Update) (message.Message, error) {
	points, ok := intArg(upd.Args, 0)
	if !ok {
		return message.Text(usageText("addsgarro", "numero", "2")), nil
	}
	return d.linkReply(
		"✅ <b>Impostati "+strconv.Itoa(points)+" punti sgarro!</b>\n\nApri l'app 🍕",
		"🍕 Apri App (Sgarri Aggiornati)",
		companion.Payload{PointsForSgarro: companion.Int(points)},
	)
}

func (d *Dispatcher) handleSetWeight(ctx context.Context, upd Update) (message.Message, error) {
	if len(upd.Args) == 0 {
		return message.Text(usageText("setpeso", "peso", "75.5")), nil
	}
	weight, ok := onboarding.ParseDecimal(upd.Args[0])
	if !ok {
		return message.Text(usageText("setpeso", "peso", "75.5")), nil
	}

	week := 1
	p, err := d.findProfile(ctx, upd.UserID)
	if err != nil {
		return message.Message{}, err
	}
	if p != nil && p.CurrentWeek > 0 {
		week = p.CurrentWeek
	}

	return d.linkReply(
		"✅ <b>Peso aggiunto: "+formatNumber(weight)+" kg</b>\n\nApri l'app per vedere 📊",
		"⚖️ Apri App (Peso Aggiunto)",
		companion.Payload{SavedWeights: []companion.SavedWeight{{Week: week, Weight: weight}}},
	)
}

func (d *Dispatcher) handleResetWeek(context.Context, Update) (message.Message, error) {
	return d.linkReply(
		"⚠️ <b>Settimana Resettata</b>\n\nApri l'app per confermare 👇",
		"🔄 Apri App (Reset Applicato)",
		companion.Payload{WeekData: progress.EmptyWeek()},
	)
}

func (d *Dispatcher) handleAddStreak(_ context.Context, upd Update) (message.Message, error) {
	streak, ok := intArg(upd.Args, 0)
	if !ok {
		return message.Text(usageText("addstreak", "numero", "3")), nil
	}
	return d.linkReply(
		"✅ <b>Streak impostata a: "+strconv.Itoa(streak)+"</b>\n\nApri l'app 🔥",
		"🔥 Apri App (Streak Aggiornata)",
		companion.Payload{Streak: companion.Int(streak)},
	)
}

func (d *Dispatcher) handleChangeGoal(ctx context.Context, upd Update) (message.Message, error) {
	if _, err := d.profiles.Get(ctx, upd.UserID); err != nil {
		return message.Message{}, err
	}
	return message.WithChoices("🎯 <b>CAMBIA OBIETTIVO</b>\n\nSeleziona il nuovo obiettivo:", changeGoalChoices...), nil
}

func (d *Dispatcher) handleChangeGoalSelection(ctx context.Context, upd Update) (message.Message, error) {
	goal, ok := model.ParseGoal(strings.TrimPrefix(upd.CallbackData, changeGoalPrefix))
	if !ok {
		return message.Message{}, model.NewSelectionError("goal")
	}
	p, err := d.profiles.ChangeGoal(ctx, upd.UserID, goal)
	if err != nil {
		return message.Message{}, err
	}
	macros := p.Macros
	reply, err := d.linkReply(goalChangedText(p), "📱 Apri App (Aggiornata)",
		companion.Payload{Macros: &macros, Goal: p.Goal})
	if err != nil {
		return message.Message{}, err
	}
	return editOf(upd, reply), nil
}

func (d *Dispatcher) handleAskWeight(ctx context.Context, upd Update) (message.Message, error) {
	if _, err := d.profiles.Get(ctx, upd.UserID); err != nil {
		return message.Message{}, err
	}
	d.setAwaitingWeight(upd.UserID, true)
	return message.Text(askWeightText), nil
}

// handleNewWeight は /cambiapeso 後のテキストを新しい体重として処理する。
// 数値でない場合は入力待ちを維持する。
func (d *Dispatcher) handleNewWeight(ctx context.Context, upd Update) (message.Message, error) {
	weight, ok := onboarding.ParseDecimal(upd.Text)
	if !ok {
		return message.Text(textInvalidPeso), nil
	}
	d.setAwaitingWeight(upd.UserID, false)

	p, err := d.profiles.UpdateWeight(ctx, upd.UserID, weight)
	if err != nil {
		return message.Message{}, err
	}
	macros := p.Macros
	return d.linkReply(weightUpdatedText(p), "📱 Apri App (Aggiornata)", companion.Payload{Macros: &macros})
}

func (d *Dispatcher) handleRecompute(ctx context.Context, upd Update) (message.Message, error) {
	p, err := d.profiles.Recompute(ctx, upd.UserID)
	if err != nil {
		return message.Message{}, err
	}
	macros := p.Macros
	return d.linkReply(recomputedText(p), "📱 Apri App (Aggiornata)", companion.Payload{Macros: &macros})
}

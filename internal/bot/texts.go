package bot

import (
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/grindbot/internal/message"
	"github.com/hitoshi/grindbot/internal/model"
	"github.com/hitoshi/grindbot/internal/notify"
	"github.com/hitoshi/grindbot/internal/onboarding"
	"github.com/hitoshi/grindbot/internal/progress"
)

const (
	textGenericError = "⚠️ Qualcosa è andato storto, riprova tra poco."
	textUnknownCmd   = "🤔 Comando non riconosciuto.\n\nUsa /menu per vedere tutti i comandi."
	textIdleHint     = "Usa /menu per vedere tutti i comandi 💪"
	textNoProfile    = "❌ Non hai ancora un profilo configurato.\n\nUsa /setup per crearlo!"
	textSetupCancel  = "Setup annullato. Usa /setup per ricominciare."
	textNoSetup      = "Nessun setup in corso. Usa /setup per iniziare."
	textSaveFailed   = "⚠️ Non sono riuscito a salvare il profilo. Scegli di nuovo il livello di attività."
	textInvalidPeso  = "❌ Inserisci un numero valido (es: 75.5)"
)

var goalChoices = []message.Choice{
	{Label: "💪 Massa Muscolare (Bulk)", Data: onboarding.GoalPrefix + string(model.GoalBulk)},
	{Label: "🔥 Definizione (Cut)", Data: onboarding.GoalPrefix + string(model.GoalCut)},
	{Label: "⚖️ Mantenimento", Data: onboarding.GoalPrefix + string(model.GoalMaintain)},
}

var activityChoices = []message.Choice{
	{Label: "🛋️ Sedentario (poco esercizio)", Data: onboarding.ActivityPrefix + string(model.ActivitySedentary)},
	{Label: "🚶 Leggero (1-3 giorni/sett)", Data: onboarding.ActivityPrefix + string(model.ActivityLight)},
	{Label: "🏃 Moderato (3-5 giorni/sett)", Data: onboarding.ActivityPrefix + string(model.ActivityModerate)},
	{Label: "💪 Attivo (6-7 giorni/sett)", Data: onboarding.ActivityPrefix + string(model.ActivityActive)},
	{Label: "🔥 Molto Attivo (2x al giorno)", Data: onboarding.ActivityPrefix + string(model.ActivityVeryActive)},
}

// changeGoalPrefix は目標変更ボタンのコールバックデータの接頭辞。
const changeGoalPrefix = "change_goal_"

var changeGoalChoices = []message.Choice{
	{Label: "💪 Massa Muscolare", Data: changeGoalPrefix + string(model.GoalBulk)},
	{Label: "🔥 Definizione", Data: changeGoalPrefix + string(model.GoalCut)},
	{Label: "⚖️ Mantenimento", Data: changeGoalPrefix + string(model.GoalMaintain)},
}

var goalNames = map[model.Goal]string{
	model.GoalBulk:     "💪 Massa Muscolare",
	model.GoalCut:      "🔥 Definizione",
	model.GoalMaintain: "⚖️ Mantenimento",
}

var goalEmoji = map[model.Goal]string{
	model.GoalBulk:     "💪",
	model.GoalCut:      "🔥",
	model.GoalMaintain: "⚖️",
}

func goalName(g model.Goal) string {
	if n, ok := goalNames[g]; ok {
		return n
	}
	return string(g)
}

// esc はユーザー入力をHTMLパースモード用にエスケープする。
func esc(s string) string {
	return html.EscapeString(s)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func welcomeText(firstName string) string {
	return "🔥 <b>BENVENUTO IN WINTER GRIND</b> 🔥\n\n" +
		"Ciao " + esc(firstName) + "!\n\n" +
		"Prima di iniziare, configuriamo il tuo profilo personalizzato.\n\n" +
		"Usa /setup per iniziare la configurazione! 💪"
}

func welcomeBackText(firstName string) string {
	return "Bentornato " + esc(firstName) + "! 💪\n\n" +
		"Usa /menu per vedere tutti i comandi\n" +
		"Usa /setup per riconfigurare il tuo profilo"
}

const setupPromptText = "👤 <b>SETUP PROFILO</b>\n\n" +
	"Ti farò alcune domande per personalizzare la tua esperienza.\n\n" +
	"Iniziamo! Come ti chiami? (o scrivi il nome che preferisci)"

// stepPrompt は遷移後の状態に応じた次の質問を返す。
func stepPrompt(s onboarding.Session) message.Message {
	switch s.State {
	case onboarding.StateAwaitingWeight:
		return message.Text("Perfetto " + esc(s.Name) + "! 👍\n\n" +
			"⚖️ Qual è il tuo peso attuale? (in kg)\n\nEsempio: 75")
	case onboarding.StateAwaitingHeight:
		return message.Text("✅ Peso: " + formatNumber(s.WeightKg) + " kg\n\n" +
			"📏 Qual è la tua altezza? (in cm)\n\nEsempio: 175")
	case onboarding.StateAwaitingAge:
		return message.Text("✅ Altezza: " + formatNumber(s.HeightCm) + " cm\n\n" +
			"🎂 Quanti anni hai?\n\nEsempio: 25")
	case onboarding.StateAwaitingGoal:
		return message.WithChoices(fmt.Sprintf("✅ Età: %d anni\n\n🎯 Qual è il tuo obiettivo?", s.Age), goalChoices...)
	case onboarding.StateAwaitingActivity:
		return message.WithChoices("✅ Obiettivo: "+goalName(s.Goal)+"\n\n🏃 Qual è il tuo livello di attività?", activityChoices...)
	default:
		return message.Text(setupPromptText)
	}
}

func profileConfiguredText(p *model.UserProfile) string {
	var b strings.Builder
	b.WriteString("✅ <b>PROFILO CONFIGURATO!</b>\n\n")
	fmt.Fprintf(&b, "👤 Nome: %s\n", esc(p.Name))
	fmt.Fprintf(&b, "⚖️ Peso: %s kg\n", formatNumber(p.WeightKg))
	fmt.Fprintf(&b, "📏 Altezza: %s cm\n", formatNumber(p.HeightCm))
	fmt.Fprintf(&b, "🎂 Età: %d anni\n", p.Age)
	fmt.Fprintf(&b, "%s Obiettivo: %s\n\n", goalEmoji[p.Goal], strings.ToUpper(string(p.Goal)))
	b.WriteString("📊 <b>I TUOI NUMERI:</b>\n")
	fmt.Fprintf(&b, "🔥 Calorie giornaliere: %d kcal\n", p.Macros.Calories)
	fmt.Fprintf(&b, "🥩 Proteine: %dg\n", p.Macros.Protein)
	fmt.Fprintf(&b, "🍚 Carboidrati: %dg\n", p.Macros.Carbs)
	fmt.Fprintf(&b, "🥑 Grassi: %dg\n\n", p.Macros.Fats)
	b.WriteString("Questi dati sono già impostati nella tua app! 🎉\n\n")
	b.WriteString("Usa /menu per vedere tutti i comandi disponibili.")
	return b.String()
}

func profileText(p *model.UserProfile) string {
	var b strings.Builder
	b.WriteString("👤 <b>IL TUO PROFILO</b>\n\n")
	fmt.Fprintf(&b, "📝 Nome: %s\n", esc(p.Name))
	fmt.Fprintf(&b, "⚖️ Peso: %s kg\n", formatNumber(p.WeightKg))
	fmt.Fprintf(&b, "📏 Altezza: %s cm\n", formatNumber(p.HeightCm))
	fmt.Fprintf(&b, "🎂 Età: %d anni\n", p.Age)
	fmt.Fprintf(&b, "🎯 Obiettivo: %s\n", goalName(p.Goal))
	fmt.Fprintf(&b, "📅 Settimana: %d\n\n", p.CurrentWeek)
	b.WriteString("📊 <b>METABOLISMO:</b>\n")
	fmt.Fprintf(&b, "🔥 BMR: %d kcal/giorno\n", int(p.BMR))
	fmt.Fprintf(&b, "⚡ TDEE: %d kcal/giorno\n\n", int(p.TDEE))
	b.WriteString("🍽️ <b>MACRO GIORNALIERE:</b>\n")
	fmt.Fprintf(&b, "📍 Calorie: %d kcal\n", p.Macros.Calories)
	fmt.Fprintf(&b, "🥩 Proteine: %dg\n", p.Macros.Protein)
	fmt.Fprintf(&b, "🍚 Carboidrati: %dg\n", p.Macros.Carbs)
	fmt.Fprintf(&b, "🥑 Grassi: %dg\n\n", p.Macros.Fats)
	b.WriteString("Usa /cambiaobiettivo o /cambiapeso per aggiornare.")
	return b.String()
}

func macrosText(m model.Macros) string {
	return "🍽️ <b>LE TUE MACRO GIORNALIERE</b>\n\n" +
		fmt.Sprintf("📍 Calorie: <b>%d kcal</b>\n", m.Calories) +
		fmt.Sprintf("🥩 Proteine: <b>%dg</b>\n", m.Protein) +
		fmt.Sprintf("🍚 Carboidrati: <b>%dg</b>\n", m.Carbs) +
		fmt.Sprintf("🥑 Grassi: <b>%dg</b>", m.Fats)
}

func todayText(day time.Weekday) string {
	return "📅 <b>Oggi è " + progress.DayName(day) + "</b>\n\n" +
		progress.WorkoutFor(day) + "\n\n" +
		"Hai già completato l'allenamento? 💪"
}

func goalChangedText(p *model.UserProfile) string {
	return "✅ <b>Obiettivo cambiato: " + goalName(p.Goal) + "</b>\n\n" +
		"📊 <b>NUOVE MACRO:</b>\n" +
		fmt.Sprintf("🔥 Calorie: %d kcal\n", p.Macros.Calories) +
		fmt.Sprintf("🥩 Proteine: %dg\n", p.Macros.Protein) +
		fmt.Sprintf("🍚 Carboidrati: %dg\n", p.Macros.Carbs) +
		fmt.Sprintf("🥑 Grassi: %dg\n\n", p.Macros.Fats) +
		"Apri l'app per vedere le modifiche!"
}

func recomputedText(p *model.UserProfile) string {
	return "✅ <b>RICALCOLO COMPLETATO</b>\n\n" +
		"📊 <b>NUOVI VALORI:</b>\n" +
		fmt.Sprintf("🔥 BMR: %d kcal\n", int(p.BMR)) +
		fmt.Sprintf("⚡ TDEE: %d kcal\n\n", int(p.TDEE)) +
		"🍽️ <b>MACRO:</b>\n" +
		fmt.Sprintf("📍 %d kcal\n", p.Macros.Calories) +
		fmt.Sprintf("🥩 %dg proteine\n", p.Macros.Protein) +
		fmt.Sprintf("🍚 %dg carbo\n", p.Macros.Carbs) +
		fmt.Sprintf("🥑 %dg grassi", p.Macros.Fats)
}

func weightUpdatedText(p *model.UserProfile) string {
	return "✅ <b>Peso aggiornato: " + formatNumber(p.WeightKg) + " kg</b>\n\n" +
		"Le tue macro sono state ricalcolate!\n" +
		fmt.Sprintf("🔥 Nuove calorie: %d kcal\n\n", p.Macros.Calories) +
		"Usa /macros per vederle tutte."
}

const askWeightText = "⚖️ <b>AGGIORNA PESO</b>\n\n" +
	"Inserisci il nuovo peso in kg:\n\n" +
	"Esempio: <code>75.5</code>"

func usageText(cmd, arg, example string) string {
	return fmt.Sprintf("❌ Uso: <code>/%s &lt;%s&gt;</code>\nEsempio: <code>/%s %s</code>", cmd, arg, cmd, example)
}

func scheduleLines(s notify.ScheduleConfig) string {
	return fmt.Sprintf("• %02d:%02d - Allenamento del giorno\n", s.MorningHour, s.MorningMinute) +
		fmt.Sprintf("• %02d:%02d - Reminder serale\n", s.EveningHour, s.EveningMinute) +
		fmt.Sprintf("• %s %02d:%02d - Report settimanale\n", progress.DayName(s.WeeklyDay), s.WeeklyHour, s.WeeklyMinute)
}

func notificationsText(st *model.UserSettings, s notify.ScheduleConfig) string {
	status, emoji := "disattivate", "🔕"
	if st.Notifications {
		status, emoji = "attivate", "🔔"
	}
	return fmt.Sprintf("%s <b>Notifiche %s</b>\n\n", emoji, status) +
		"Promemoria programmati:\n" +
		scheduleLines(s) + "\n" +
		"Usa di nuovo /notifiche per cambiare.\n" +
		"Usa /notifiche mattina|sera|report per un singolo promemoria."
}

var reminderLabels = map[string]string{
	model.ReminderMorning:      "mattutino",
	model.ReminderEvening:      "serale",
	model.ReminderWeeklyReport: "del report settimanale",
}

func reminderToggledText(kind string, st *model.UserSettings) string {
	enabled := model.NotificationsEnabled(st, kind)
	status, emoji := "disattivato", "🔕"
	if enabled {
		status, emoji = "attivato", "🔔"
	}
	text := fmt.Sprintf("%s Promemoria %s %s", emoji, reminderLabels[kind], status)
	if !st.Notifications {
		text += "\n\nLe notifiche sono disattivate: usa /notifiche per riattivarle."
	}
	return text
}

const menuText = "📋 <b>MENU COMPLETO</b>\n\n" +
	"<b>🏠 Base:</b>\n" +
	"/app - Apri la Mini App\n" +
	"/oggi - Allenamento di oggi\n" +
	"/status - Stato settimanale\n\n" +
	"<b>⚙️ Configurazione:</b>\n" +
	"/setup - Configura profilo\n" +
	"/profilo - Vedi il tuo profilo\n" +
	"/macros - Mostra le tue macro\n" +
	"/notifiche - Gestisci promemoria\n\n" +
	"<b>🛠️ Modifica Dati App:</b>\n" +
	"/setsettimana &lt;N&gt; - Imposta settimana (es: /setsettimana 5)\n" +
	"/addsgarro &lt;N&gt; - Aggiungi punti sgarro (es: /addsgarro 2)\n" +
	"/setpeso &lt;N&gt; - Aggiungi peso (es: /setpeso 75.5)\n" +
	"/resetsettimana - Reset settimana corrente\n" +
	"/addstreak &lt;N&gt; - Aggiungi streak (es: /addstreak 3)\n\n" +
	"<b>📊 Personalizzazione:</b>\n" +
	"/cambiaobiettivo - Cambia obiettivo (bulk/cut/maintain)\n" +
	"/cambiapeso - Aggiorna peso\n" +
	"/ricalcola - Ricalcola macro\n\n" +
	"<b>❓ Altro:</b>\n" +
	"/help - Guida completa"

func helpText(s notify.ScheduleConfig) string {
	return "📖 <b>GUIDA WINTER GRIND</b>\n\n" +
		"<b>🎯 Come Funziona:</b>\n" +
		"1️⃣ Configura il tuo profilo con /setup\n" +
		"2️⃣ Ricevi macro personalizzate\n" +
		"3️⃣ Traccia allenamenti e dieta nell'app\n" +
		"4️⃣ Accumula punti e guadagna sgarri\n\n" +
		"<b>📊 Sistema Punti:</b>\n" +
		fmt.Sprintf("• Palestra = %d punti\n", progress.WorkoutPoints) +
		fmt.Sprintf("• Cardio = %d punti\n", progress.CardioPoints) +
		fmt.Sprintf("• Dieta = %d punti\n", progress.DietPoints) +
		fmt.Sprintf("• %d+ punti = 1 sgarro 🍕\n\n", progress.SgarroThreshold) +
		"<b>🔔 Notifiche Automatiche:</b>\n" +
		scheduleLines(s) + "\n" +
		"<b>⚙️ Personalizzazione:</b>\n" +
		"Il bot calcola automaticamente le tue macro in base a:\n" +
		"- Peso, altezza, età\n" +
		"- Obiettivo (massa/definizione/mantenimento)\n" +
		"- Livello di attività\n\n" +
		"Usa /menu per vedere tutti i comandi! 💪"
}

const noStatusText = "📊 Nessun dato settimanale ancora.\n\nApri l'app e segna allenamenti e dieta per vedere il tuo stato! 💪"

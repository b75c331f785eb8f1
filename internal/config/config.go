// Package config は起動時設定の読み込みを提供する。
// 値の優先順位は 既定値 < スケジュールファイル(YAML) < 環境変数。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hitoshi/grindbot/internal/database"
	"github.com/hitoshi/grindbot/internal/logger"
	"github.com/hitoshi/grindbot/internal/model"
	"github.com/hitoshi/grindbot/internal/notify"
)

// DefaultTimezone は通知スケジュールの既定タイムゾーン。
const DefaultTimezone = "Europe/Rome"

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Telegram
	BotToken    string
	PollTimeout int

	// コンパニオンアプリ
	MiniAppURL        string
	CORSAllowedOrigin string
	WebAppRatePerMin  int
	InitDataMaxAge    time.Duration

	// Database（空の場合はメモリストア）
	DatabaseURL string
	DBPool      database.PoolConfig

	// Schedule
	Timezone string
	Schedule notify.ScheduleConfig

	// Delivery
	SendTimeout       time.Duration
	SendMaxConcurrent int
	SendRatePerSec    float64

	// Server
	ServerPort string

	// Logging
	LogLevel slog.Level
}

// scheduleFile はSCHEDULE_FILEで指定するYAMLの形式。
//
//	timezone: Europe/Rome
//	morning: "08:00"
//	evening: "20:00"
//	weekly_report:
//	  day: sunday
//	  time: "21:00"
type scheduleFile struct {
	Timezone     string `yaml:"timezone"`
	Morning      string `yaml:"morning"`
	Evening      string `yaml:"evening"`
	WeeklyReport struct {
		Day  string `yaml:"day"`
		Time string `yaml:"time"`
	} `yaml:"weekly_report"`
}

// LoadEnvFile は.envファイルを環境変数に読み込む。既に設定済みの環境変数は上書きしない。
// ファイルが存在しない場合はfalseを返し、エラーにはしない。
func LoadEnvFile(path string) (bool, error) {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf(".envファイルの読み込みに失敗しました: %w", err)
	}
	return true, nil
}

// Load は環境変数からConfigを読み込む。
// 必須項目の欠落や不正な値はまとめてConfigurationErrorとして返す。
func Load() (*Config, error) {
	cfg := &Config{}
	var problems []string

	cfg.BotToken = strings.TrimSpace(os.Getenv("BOT_TOKEN"))
	if cfg.BotToken == "" {
		problems = append(problems, "BOT_TOKEN is required")
	}

	cfg.MiniAppURL = strings.TrimSpace(os.Getenv("MINI_APP_URL"))
	if cfg.MiniAppURL == "" {
		problems = append(problems, "MINI_APP_URL is required")
	} else if origin, err := originOf(cfg.MiniAppURL); err != nil {
		problems = append(problems, "MINI_APP_URL: "+err.Error())
	} else {
		cfg.CORSAllowedOrigin = origin
	}

	// スケジュール: 既定値 → YAML → 環境変数
	sf := scheduleFile{
		Timezone: DefaultTimezone,
		Morning:  "08:00",
		Evening:  "20:00",
	}
	sf.WeeklyReport.Day = "sunday"
	sf.WeeklyReport.Time = "21:00"

	if path := os.Getenv("SCHEDULE_FILE"); path != "" {
		if err := readScheduleFile(path, &sf); err != nil {
			problems = append(problems, "SCHEDULE_FILE: "+err.Error())
		}
	}
	sf.Timezone = getEnvString("TIMEZONE", sf.Timezone)
	sf.Morning = getEnvString("MORNING_TIME", sf.Morning)
	sf.Evening = getEnvString("EVENING_TIME", sf.Evening)
	sf.WeeklyReport.Day = getEnvString("WEEKLY_REPORT_DAY", sf.WeeklyReport.Day)
	sf.WeeklyReport.Time = getEnvString("WEEKLY_REPORT_TIME", sf.WeeklyReport.Time)

	schedule, scheduleProblems := buildSchedule(sf)
	problems = append(problems, scheduleProblems...)
	cfg.Timezone = sf.Timezone
	cfg.Schedule = schedule

	level, ok := logger.ParseLevel(os.Getenv("LOG_LEVEL"))
	if !ok {
		problems = append(problems, "LOG_LEVEL must be one of debug, info, warn, error")
	}
	cfg.LogLevel = level

	if len(problems) > 0 {
		return nil, model.NewConfigurationError(problems)
	}

	// Optional fields with defaults
	cfg.DatabaseURL = getEnvString("DATABASE_URL", "")
	cfg.PollTimeout = getEnvInt("POLL_TIMEOUT", 60)
	cfg.WebAppRatePerMin = getEnvInt("WEBAPP_RATE_PER_MIN", 30)
	cfg.InitDataMaxAge = getEnvDuration("WEBAPP_INIT_DATA_MAX_AGE", 24*time.Hour)
	cfg.SendTimeout = getEnvDuration("SEND_TIMEOUT", 10*time.Second)
	cfg.SendMaxConcurrent = getEnvInt("SEND_MAX_CONCURRENT", 10)
	cfg.SendRatePerSec = getEnvFloat("SEND_RATE_PER_SEC", 25)

	// プールの既定値は通知の並列送信数から決める
	pool := database.PoolFor(cfg.SendMaxConcurrent)
	cfg.DBPool = database.PoolConfig{
		MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", pool.MaxOpenConns),
		MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", pool.MaxIdleConns),
		ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", pool.ConnMaxLifetime),
	}
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")

	return cfg, nil
}

// readScheduleFile はYAMLのスケジュールファイルを読み込み、記載された項目だけをsfに上書きする。
func readScheduleFile(path string, sf *scheduleFile) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var file scheduleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("invalid YAML: %w", err)
	}
	if file.Timezone != "" {
		sf.Timezone = file.Timezone
	}
	if file.Morning != "" {
		sf.Morning = file.Morning
	}
	if file.Evening != "" {
		sf.Evening = file.Evening
	}
	if file.WeeklyReport.Day != "" {
		sf.WeeklyReport.Day = file.WeeklyReport.Day
	}
	if file.WeeklyReport.Time != "" {
		sf.WeeklyReport.Time = file.WeeklyReport.Time
	}
	return nil
}

// buildSchedule は文字列のスケジュール設定を検証してScheduleConfigに変換する。
func buildSchedule(sf scheduleFile) (notify.ScheduleConfig, []string) {
	var problems []string

	loc, err := time.LoadLocation(sf.Timezone)
	if err != nil {
		problems = append(problems, fmt.Sprintf("TIMEZONE %q is not a valid IANA zone", sf.Timezone))
		loc = time.UTC
	}
	cfg := notify.DefaultSchedule(loc)

	if h, m, err := ParseClock(sf.Morning); err != nil {
		problems = append(problems, "MORNING_TIME: "+err.Error())
	} else {
		cfg.MorningHour, cfg.MorningMinute = h, m
	}
	if h, m, err := ParseClock(sf.Evening); err != nil {
		problems = append(problems, "EVENING_TIME: "+err.Error())
	} else {
		cfg.EveningHour, cfg.EveningMinute = h, m
	}
	if d, err := ParseWeekday(sf.WeeklyReport.Day); err != nil {
		problems = append(problems, "WEEKLY_REPORT_DAY: "+err.Error())
	} else {
		cfg.WeeklyDay = d
	}
	if h, m, err := ParseClock(sf.WeeklyReport.Time); err != nil {
		problems = append(problems, "WEEKLY_REPORT_TIME: "+err.Error())
	} else {
		cfg.WeeklyHour, cfg.WeeklyMinute = h, m
	}

	return cfg, problems
}

// ParseClock は"HH:MM"形式の時刻を時と分に分解する。
func ParseClock(s string) (hour, minute int, err error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, 0, fmt.Errorf("%q is not in HH:MM format", s)
	}
	hour, errH := strconv.Atoi(hh)
	minute, errM := strconv.Atoi(mm)
	if errH != nil || errM != nil || len(mm) != 2 {
		return 0, 0, fmt.Errorf("%q is not in HH:MM format", s)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%q is out of range", s)
	}
	return hour, minute, nil
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
	"sun":       time.Sunday,
	"mon":       time.Monday,
	"tue":       time.Tuesday,
	"wed":       time.Wednesday,
	"thu":       time.Thursday,
	"fri":       time.Friday,
	"sat":       time.Saturday,
}

// ParseWeekday は英語の曜日名（sunday, sun等、大文字小文字不問）をtime.Weekdayに変換する。
func ParseWeekday(s string) (time.Weekday, error) {
	d, ok := weekdays[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("%q is not a weekday", s)
	}
	return d, nil
}

// originOf はhttp/httpsのURLを検証し、CORSで使うオリジン（scheme://host）を返す。
func originOf(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return "", errors.New("host is empty")
	}
	return u.Scheme + "://" + u.Host, nil
}

func getEnvString(key, defaultVal string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil || i <= 0 {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return defaultVal
	}
	return f
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

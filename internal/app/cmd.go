package app

import (
	"fmt"
	"io"

	"github.com/spf13/pflag"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はボット（Telegram受信・HTTP・通知スケジューラ）を起動することを示す。
	CommandServe Command = "serve"
	// CommandWorker は通知スケジューラのみを起動することを示す。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// Options はコマンドライン引数の解析結果。
type Options struct {
	Command Command
	// EnvFile は起動時に読み込む.envファイルのパス。
	EnvFile string
	// DisableScheduler はserveで通知スケジューラを起動しない（workerを別プロセスで動かす構成用）。
	DisableScheduler bool
}

// ParseArgs はフラグとサブコマンドを解析する。フラグはサブコマンドの前後どちらにも置ける。
func ParseArgs(args []string) (Options, error) {
	fs := pflag.NewFlagSet("grindbot", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var opts Options
	fs.StringVar(&opts.EnvFile, "env-file", ".env", "path to a .env file loaded before reading the environment")
	fs.BoolVar(&opts.DisableScheduler, "disable-scheduler", false, "do not run the notification scheduler in serve mode")

	if err := fs.Parse(args); err != nil {
		return Options{}, fmt.Errorf("invalid arguments: %w", err)
	}
	opts.Command = ParseCommand(fs.Args())
	return opts, nil
}

// ParseCommand は位置引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case "worker":
		return CommandWorker
	case "serve":
		return CommandServe
	case "migrate":
		return CommandMigrate
	case "healthcheck":
		return CommandHealthcheck
	default:
		return CommandServe
	}
}

package app

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/hitoshi/promed/internal/config"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。サブコマンド省略時の既定。
	CommandServe Command = "serve"
	// CommandWorker は日次通知とセッション掃除を行うワーカーモードで起動することを示す。
	CommandWorker Command = "worker"
	// CommandNotify は通知パスを1回だけ実行して終了することを示す。cronからの起動用。
	CommandNotify Command = "notify"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// newRootCommand はサブコマンドを登録したルートコマンドを生成する。
// 設定の読み込みはPersistentPreRunEで行い、healthcheckのみフル初期化をスキップする。
func newRootCommand(w io.Writer) *cobra.Command {
	var cfg *config.Config

	initialize := func(cmd *cobra.Command, _ []string) error {
		c, err := Init(w)
		if err != nil {
			return fmt.Errorf("initialization failed: %w", err)
		}
		cfg = c
		slog.Info("starting application",
			slog.String("command", cmd.Name()),
			slog.String("port", cfg.ServerPort),
			slog.String("base_url", cfg.BaseURL),
		)
		return nil
	}

	serve := func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context(), cfg)
	}

	root := &cobra.Command{
		Use:               "promed",
		Short:             "medicine expiry tracking service",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: initialize,
		RunE:              serve,
	}

	root.AddCommand(&cobra.Command{
		Use:   string(CommandServe),
		Short: "JSON APIサーバーを起動する",
		RunE:  serve,
	})

	root.AddCommand(&cobra.Command{
		Use:   string(CommandWorker),
		Short: "日次の期限通知とセッション掃除を行うワーカーを起動する",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWorker(cmd.Context(), cfg)
		},
	})

	var date string
	notify := &cobra.Command{
		Use:   string(CommandNotify),
		Short: "期限通知パスを1回実行して終了する",
		RunE: func(cmd *cobra.Command, _ []string) error {
			today, err := parseNotifyDate(date, cfg.NotifyTimezone)
			if err != nil {
				return err
			}
			return runNotify(cmd.Context(), cfg, today)
		},
	}
	notify.Flags().StringVar(&date, "date", "", "通知の基準日（YYYY-MM-DD）。省略時はNOTIFY_TIMEZONEにおける今日")
	root.AddCommand(notify)

	root.AddCommand(&cobra.Command{
		Use:   string(CommandMigrate),
		Short: "データベースマイグレーションを適用する",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cfg)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   string(CommandHealthcheck),
		Short: "ローカルのAPIサーバーの/healthを確認する",
		// 軽量サブコマンドのため、フル初期化をスキップする
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			port := os.Getenv("SERVER_PORT")
			if port == "" {
				port = "8080"
			}
			return runHealthcheck(cmd.Context(), port)
		},
	})

	return root
}

// parseNotifyDate は--dateの値を通知基準日に変換する。
// 空文字列の場合はゼロ値を返し、Notifier側で現在日付を使用させる。
func parseNotifyDate(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	d, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date %q: expected YYYY-MM-DD", s)
	}
	return d, nil
}

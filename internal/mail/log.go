package mail

import (
	"context"
	"log/slog"
)

// LogChannel はメールを送信せず、内容を構造化ログに出力する。
// SMTP_HOSTが未設定の場合に使用され、常に成功する。
type LogChannel struct {
	logger *slog.Logger
}

// NewLogChannel はLogChannelを生成する。
func NewLogChannel(logger *slog.Logger) *LogChannel {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogChannel{logger: logger}
}

// Send はメールの内容をinfoレベルでログに出力する。
func (c *LogChannel) Send(ctx context.Context, to, subject, body string) error {
	c.logger.InfoContext(ctx, "メール送信が無効のため内容をログに出力しました",
		slog.String("recipient", to),
		slog.String("subject", subject),
		slog.String("body", body),
	)
	return nil
}

// Package mail は期限通知メールの送信チャネルを提供する。
//
// SMTPChannel はgo-mailでSMTPサーバーへ送信する。
// LogChannel はSMTPが未設定の環境向けに、送信内容を構造化ログへ出力するだけのチャネル。
package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"sync"
	"time"

	gomail "github.com/wneessen/go-mail"
)

// ErrInvalidAddress は送信先または送信元アドレスの形式が不正であることを示す。
var ErrInvalidAddress = errors.New("invalid mail address")

// SMTPConfig はSMTP接続の設定を保持する。
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

// SMTPChannel はSMTPサーバー経由でプレーンテキストのメールを送信する。
type SMTPChannel struct {
	mu     sync.Mutex
	client *gomail.Client
	from   string
	logger *slog.Logger
}

// NewSMTPChannel はSMTPChannelを生成する。
// Usernameが設定されている場合のみPLAIN認証を行い、TLSは可能な場合に使用する。
// 接続は送信のたびに確立する。
func NewSMTPChannel(cfg SMTPConfig, logger *slog.Logger) (*SMTPChannel, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := mail.ParseAddress(cfg.From); err != nil {
		return nil, fmt.Errorf("%w: from %q: %v", ErrInvalidAddress, cfg.From, err)
	}

	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, gomail.WithTimeout(cfg.Timeout))
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}

	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create SMTP client: %w", err)
	}

	return &SMTPChannel{
		client: client,
		from:   cfg.From,
		logger: logger,
	}, nil
}

// Send はメールを1通送信する。
// 送信先アドレスが不正な場合は接続せずにErrInvalidAddressを返す。
func (c *SMTPChannel) Send(ctx context.Context, to, subject, body string) error {
	msg, err := c.buildMessage(to, subject, body)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	if err := c.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send mail via SMTP: %w", err)
	}

	c.logger.Debug("SMTPでメールを送信しました",
		slog.String("recipient", to),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

func (c *SMTPChannel) buildMessage(to, subject, body string) (*gomail.Msg, error) {
	if _, err := mail.ParseAddress(to); err != nil {
		return nil, fmt.Errorf("%w: to %q: %v", ErrInvalidAddress, to, err)
	}

	msg := gomail.NewMsg()
	if err := msg.From(c.from); err != nil {
		return nil, fmt.Errorf("%w: from %q: %v", ErrInvalidAddress, c.from, err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("%w: to %q: %v", ErrInvalidAddress, to, err)
	}
	msg.Subject(subject)
	msg.SetDate()
	msg.SetMessageID()
	msg.SetBodyString(gomail.TypeTextPlain, body)
	return msg, nil
}

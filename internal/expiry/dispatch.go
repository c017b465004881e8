package expiry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/promed/internal/model"
)

// RecipientResolver は所有者IDから送信先メールアドレスを解決する。
// 解決できない場合はErrRecipientNotFoundをラップしたエラーを返す。
type RecipientResolver interface {
	ResolveEmail(ctx context.Context, ownerID string) (string, error)
}

// MailChannel は外部のメール送信手段。
type MailChannel interface {
	Send(ctx context.Context, to, subject, body string) error
}

// MetricsRecorder は通知配信のメトリクスを記録する。
type MetricsRecorder interface {
	RecordNotificationSent(reason string)
	RecordNotificationFailed(reason string, kind string)
	RecordPassCompleted(duration time.Duration, attempted, failed int)
}

// 失敗種別（メトリクスのラベル値）
const (
	FailureRecipientNotFound = "recipient_not_found"
	FailureMailDelivery      = "mail_delivery"
)

// DispatchFailure は1件の通知失敗の記録。
type DispatchFailure struct {
	MedicineID string
	Reason     model.NotificationReason
	Error      string
}

// DispatchReport は通知バッチの結果集計。
// Attempted == Succeeded + Failed が常に成り立つ。
type DispatchReport struct {
	Attempted int
	Succeeded int
	Failed    int
	Failures  []DispatchFailure
}

// Dispatcher は通知対象ごとに送信先を解決し、メールを送信する。
type Dispatcher struct {
	recipients RecipientResolver
	channel    MailChannel
	formatter  MessageFormatter
	recorder   MetricsRecorder
	logger     *slog.Logger
}

// NewDispatcher はDispatcherを生成する。recorderはnilでもよい。
func NewDispatcher(
	recipients RecipientResolver,
	channel MailChannel,
	formatter MessageFormatter,
	recorder MetricsRecorder,
	logger *slog.Logger,
) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		recipients: recipients,
		channel:    channel,
		formatter:  formatter,
		recorder:   recorder,
		logger:     logger,
	}
}

// Dispatch は対象を入力順に1件ずつ処理し、1対象につき最大1通のメールを送信する。
// 送信先の解決失敗や送信失敗はログに記録して集計し、残りの対象の処理を継続する。
// エラーを呼び出し元へ返すことはなく、常に集計結果を返す。
func (d *Dispatcher) Dispatch(ctx context.Context, targets []Target) *DispatchReport {
	report := &DispatchReport{}

	for _, t := range targets {
		report.Attempted++

		if err := d.dispatchOne(ctx, t); err != nil {
			report.Failed++
			report.Failures = append(report.Failures, DispatchFailure{
				MedicineID: t.Medicine.ID,
				Reason:     t.Reason,
				Error:      err.Error(),
			})

			kind := FailureMailDelivery
			if errors.Is(err, ErrRecipientNotFound) {
				kind = FailureRecipientNotFound
			}
			d.logger.Warn("期限通知の送信に失敗しました",
				slog.String("medicine_id", t.Medicine.ID),
				slog.String("owner_id", t.Medicine.OwnerID),
				slog.String("reason", string(t.Reason)),
				slog.String("failure", kind),
				slog.String("error", err.Error()),
			)
			if d.recorder != nil {
				d.recorder.RecordNotificationFailed(string(t.Reason), kind)
			}
			continue
		}

		report.Succeeded++
		if d.recorder != nil {
			d.recorder.RecordNotificationSent(string(t.Reason))
		}
	}

	return report
}

func (d *Dispatcher) dispatchOne(ctx context.Context, t Target) error {
	to, err := d.recipients.ResolveEmail(ctx, t.Medicine.OwnerID)
	if err != nil {
		if errors.Is(err, ErrRecipientNotFound) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrRecipientNotFound, err)
	}

	subject, body := d.formatter.Format(t.Medicine, t.Reason)

	if err := d.channel.Send(ctx, to, subject, body); err != nil {
		var mde *MailDeliveryError
		if errors.As(err, &mde) {
			return mde
		}
		return &MailDeliveryError{Recipient: to, Err: err}
	}

	d.logger.Info("期限通知を送信しました",
		slog.String("medicine_id", t.Medicine.ID),
		slog.String("reason", string(t.Reason)),
	)
	return nil
}

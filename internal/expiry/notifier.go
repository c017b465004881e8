package expiry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/promed/internal/model"
)

// MedicineSource は通知候補の医薬品を取得するインターフェース。
type MedicineSource interface {
	// ListExpiringBetween は使用期限がfrom以上to以下の医薬品を返す（両端の日付を含む）。
	ListExpiringBetween(ctx context.Context, from, to time.Time) ([]*model.Medicine, error)
}

// Notifier は日次の期限通知パスを実行する。
// 呼び出し間で可変状態を保持しない。同じ日に2回実行すると2回送信される。
type Notifier struct {
	source     MedicineSource
	dispatcher *Dispatcher
	recorder   MetricsRecorder
	logger     *slog.Logger
	location   *time.Location
	now        func() time.Time
}

// NewNotifier はNotifierを生成する。
// locationは「今日」を決めるタイムゾーンで、nilの場合はUTCを使用する。
func NewNotifier(
	source MedicineSource,
	dispatcher *Dispatcher,
	recorder MetricsRecorder,
	logger *slog.Logger,
	location *time.Location,
) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	if location == nil {
		location = time.UTC
	}
	return &Notifier{
		source:     source,
		dispatcher: dispatcher,
		recorder:   recorder,
		logger:     logger,
		location:   location,
		now:        time.Now,
	}
}

// WithClock は現在時刻の取得関数を差し替えたNotifierを返す。テスト用。
func (n *Notifier) WithClock(now func() time.Time) *Notifier {
	c := *n
	c.now = now
	return &c
}

// RunDailyPass は1日分の通知パスを実行する。
// todayがゼロ値の場合は設定タイムゾーンにおける現在日付を使用する。
// 候補の取得に失敗した場合のみエラーを返し、対象ごとの失敗は集計結果に含める。
func (n *Notifier) RunDailyPass(ctx context.Context, today time.Time) (*DispatchReport, error) {
	start := n.now()
	if today.IsZero() {
		today = Today(start, n.location)
	}

	n.logger.Info("期限通知パスを開始します",
		slog.String("date", today.Format(dateLayout)),
	)

	// 候補は期限当日と前日のみのため、取得範囲を[today, today+1]に絞る
	candidates, err := n.source.ListExpiringBetween(ctx, today, today.AddDate(0, 0, 1))
	if err != nil {
		n.logger.Error("通知候補の取得に失敗しました",
			slog.String("date", today.Format(dateLayout)),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to list notification candidates: %w", err)
	}

	targets := SelectNotificationTargets(candidates, today)

	n.logger.Info("通知対象を選定しました",
		slog.String("date", today.Format(dateLayout)),
		slog.Int("candidate_count", len(candidates)),
		slog.Int("target_count", len(targets)),
	)

	report := n.dispatcher.Dispatch(ctx, targets)

	duration := n.now().Sub(start)
	if n.recorder != nil {
		n.recorder.RecordPassCompleted(duration, report.Attempted, report.Failed)
	}

	n.logger.Info("期限通知パスが完了しました",
		slog.String("date", today.Format(dateLayout)),
		slog.Int("attempted", report.Attempted),
		slog.Int("succeeded", report.Succeeded),
		slog.Int("failed", report.Failed),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return report, nil
}

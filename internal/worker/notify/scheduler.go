// Package notify は日次の期限通知パスを決まった時刻に起動するスケジューラを提供する。
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/promed/internal/expiry"
)

// PassRunner は1日分の通知パスを実行するインターフェース。
// expiry.Notifierが満たす。
type PassRunner interface {
	RunDailyPass(ctx context.Context, today time.Time) (*expiry.DispatchReport, error)
}

// Scheduler は毎日hour:minute（locationの壁時計）に通知パスを実行する。
// 起動直後には実行しない。再起動で同じ日の通知が二重に送られるのを避けるため。
type Scheduler struct {
	runner   PassRunner
	logger   *slog.Logger
	location *time.Location
	hour     int
	minute   int

	now   func() time.Time
	after func(d time.Duration) <-chan time.Time
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// locationがnilの場合はUTCを使用する。
func NewScheduler(runner PassRunner, location *time.Location, hour, minute int, logger *slog.Logger) *Scheduler {
	if location == nil {
		location = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		runner:   runner,
		logger:   logger,
		location: location,
		hour:     hour,
		minute:   minute,
		now:      time.Now,
		after:    time.After,
	}
}

// NextRun はnowより後で最も近い実行時刻を返す。
// 当日の実行時刻をまだ過ぎていなければ当日、過ぎていれば翌日の同時刻となる。
// 日付の加算はtime.Dateで行うため、夏時間の切り替え日でも壁時計の時刻を維持する。
func (s *Scheduler) NextRun(now time.Time) time.Time {
	local := now.In(s.location)
	y, m, d := local.Date()
	next := time.Date(y, m, d, s.hour, s.minute, 0, 0, s.location)
	if !next.After(local) {
		next = time.Date(y, m, d+1, s.hour, s.minute, 0, 0, s.location)
	}
	return next
}

// Start はコンテキストがキャンセルされるまで、日次の実行時刻ごとに通知パスを実行する。
// キャンセルは待機のみを中断し、実行中のパスは最後まで完了させる。
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("通知スケジューラを開始しました",
		slog.Int("hour", s.hour),
		slog.Int("minute", s.minute),
		slog.String("timezone", s.location.String()),
	)

	for {
		if ctx.Err() != nil {
			s.logger.Info("通知スケジューラを停止しました")
			return
		}

		now := s.now()
		next := s.NextRun(now)
		s.logger.Info("次回の通知パスを予約しました",
			slog.Time("next_run", next),
		)

		select {
		case <-ctx.Done():
			s.logger.Info("通知スケジューラを停止しました")
			return
		case <-s.after(next.Sub(now)):
			s.RunOnce(context.WithoutCancel(ctx), expiry.Today(next, s.location))
		}
	}
}

// RunOnce は指定日の通知パスを1回実行する。
// 候補取得の失敗はログに記録し、次回の実行時刻まで待機を続ける。
func (s *Scheduler) RunOnce(ctx context.Context, today time.Time) *expiry.DispatchReport {
	report, err := s.runner.RunDailyPass(ctx, today)
	if err != nil {
		s.logger.Error("通知パスの実行に失敗しました",
			slog.String("date", today.Format("2006-01-02")),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return report
}

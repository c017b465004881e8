package expiry

import (
	"time"

	"github.com/hitoshi/promed/internal/model"
)

// Target は通知対象の医薬品と通知理由の組。
type Target struct {
	Medicine *model.Medicine
	Reason   model.NotificationReason
}

// SelectNotificationTargets は今日メール通知すべき医薬品を選定する。
// 残日数が1（期限前日）ならReasonDueTomorrow、0（期限当日）ならReasonDueTodayとし、
// それ以外の残日数は状態区分がStatusExpiringSoonであっても対象外とする。
// 入力順を保持し、重複の除去は行わない。
func SelectNotificationTargets(medicines []*model.Medicine, today time.Time) []Target {
	var targets []Target
	for _, m := range medicines {
		if m == nil {
			continue
		}
		switch DaysRemaining(m.ExpiryDate, today) {
		case 1:
			targets = append(targets, Target{Medicine: m, Reason: model.ReasonDueTomorrow})
		case 0:
			targets = append(targets, Target{Medicine: m, Reason: model.ReasonDueToday})
		}
	}
	return targets
}

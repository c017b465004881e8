// Package expiry は医薬品の使用期限に基づく状態区分と、期限通知メールの
// 送信対象選定・配信を提供する。
//
// 状態区分（Classify）と通知対象の判定（SelectNotificationTargets）は
// 残日数の算出のみを共有する別々のポリシーであり、閾値を統合してはならない。
package expiry

import (
	"time"

	"github.com/hitoshi/promed/internal/model"
)

// ExpiringSoonDays はStatusExpiringSoonとみなす残日数の上限（この値を含む）。
const ExpiringSoonDays = 7

const secondsPerDay = 24 * 60 * 60

// DaysRemaining は今日から使用期限までの暦日数を返す。
// 時刻とタイムゾーンのオフセットは無視し、各値の年月日のみを比較する。
// 使用期限を過ぎている場合は負の値になる。
func DaysRemaining(expiryDate, today time.Time) int {
	e := civilDate(expiryDate)
	t := civilDate(today)
	// Duration差分は約292年で飽和するため、Unix日数の差で求める
	return int(e.Unix()/secondsPerDay - t.Unix()/secondsPerDay)
}

// Classify は使用期限と今日の日付から状態区分を返す。
// 判定は上から順に評価する:
//   - 残日数 < 0: StatusExpired
//   - 0 <= 残日数 <= 7: StatusExpiringSoon
//   - それ以外: StatusValid
func Classify(expiryDate, today time.Time) model.StatusTier {
	days := DaysRemaining(expiryDate, today)
	switch {
	case days < 0:
		return model.StatusExpired
	case days <= ExpiringSoonDays:
		return model.StatusExpiringSoon
	default:
		return model.StatusValid
	}
}

// WithStatus は医薬品に参照時点の状態区分と残日数を付与する。
func WithStatus(m *model.Medicine, today time.Time) model.MedicineWithStatus {
	return model.MedicineWithStatus{
		Medicine:      *m,
		Status:        Classify(m.ExpiryDate, today),
		DaysRemaining: DaysRemaining(m.ExpiryDate, today),
	}
}

// Today は指定タイムゾーンにおける現在日付（0時0分）を返す。
func Today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := now.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// civilDate は年月日のみを保持したUTCの0時を返す。
// 夏時間の切り替えで1日が23/25時間になる影響を避けるためUTCで計算する。
func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

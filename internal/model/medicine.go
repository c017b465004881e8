// Package model はドメインモデルを定義する。
package model

import "time"

// Medicine はユーザーが登録した医薬品の在庫アイテムを表す。
// 作成後は削除以外で変更されない。
type Medicine struct {
	ID              string    `db:"id"`
	OwnerID         string    `db:"owner_id"`
	Name            string    `db:"name"`
	FactoryName     string    `db:"factory_name"`
	Uses            string    `db:"uses"`
	ManufactureDate time.Time `db:"manufacture_date"` // 日付のみ有効
	ExpiryDate      time.Time `db:"expiry_date"`      // 日付のみ有効
	QRIdentifier    string    `db:"qr_identifier"`    // 公開詳細ページURLに埋め込むUUID
	CreatedAt       time.Time `db:"created_at"`
}

// StatusTier は医薬品の使用期限に対する表示用の状態区分。
// 永続化せず、参照のたびに使用期限と当日の日付から再計算する。
type StatusTier string

const (
	// StatusValid は使用期限まで8日以上ある状態。
	StatusValid StatusTier = "valid"
	// StatusExpiringSoon は使用期限まで0〜7日の状態（当日を含む）。
	StatusExpiringSoon StatusTier = "expiring_soon"
	// StatusExpired は使用期限を過ぎた状態。
	StatusExpired StatusTier = "expired"
)

// Valid は既知の状態区分かどうかを返す。
func (s StatusTier) Valid() bool {
	switch s {
	case StatusValid, StatusExpiringSoon, StatusExpired:
		return true
	default:
		return false
	}
}

// NotificationReason は期限通知メールを送信する理由。
// StatusTierとは独立したポリシーで、前日と当日の2種類のみ。
type NotificationReason string

const (
	// ReasonDueTomorrow は使用期限が翌日であることを示す。
	ReasonDueTomorrow NotificationReason = "due_tomorrow"
	// ReasonDueToday は使用期限が当日であることを示す。
	ReasonDueToday NotificationReason = "due_today"
)

// MedicineWithStatus は医薬品と参照時点で算出した状態区分を結合したモデル。
type MedicineWithStatus struct {
	Medicine
	Status        StatusTier
	DaysRemaining int
}

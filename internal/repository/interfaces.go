// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/promed/internal/model"
)

// ErrNotFound は操作対象の行が存在しないことを示す。
var ErrNotFound = errors.New("record not found")

// UserRepository はユーザーデータの参照インターフェース。
// ユーザーの作成は外部の認証フロントエンドが行う。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// SessionRepository はセッションデータの参照インターフェース。
type SessionRepository interface {
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
}

// MedicineRepository は医薬品データの永続化インターフェース。
type MedicineRepository interface {
	// Create は医薬品を作成する。
	Create(ctx context.Context, medicine *model.Medicine) error

	// FindByID は指定IDの医薬品を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Medicine, error)

	// FindByQRIdentifier はQR識別子で医薬品を取得する。見つからない場合はnilを返す。
	FindByQRIdentifier(ctx context.Context, qrIdentifier string) (*model.Medicine, error)

	// ListByOwner は所有者の医薬品一覧を使用期限の昇順で返す。
	ListByOwner(ctx context.Context, ownerID string) ([]*model.Medicine, error)

	// DeleteByOwnerAndID は所有者スコープで医薬品を削除する。
	// 該当行がない場合はErrNotFoundを返す。
	DeleteByOwnerAndID(ctx context.Context, ownerID, id string) error

	// ListExpiringBetween は使用期限がfrom以上to以下の医薬品を全所有者分返す。
	// 日付の時刻部分は無視する。
	ListExpiringBetween(ctx context.Context, from, to time.Time) ([]*model.Medicine, error)
}

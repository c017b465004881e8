// Package medicine は医薬品在庫の登録・参照・削除のドメインロジックを提供する。
package medicine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/promed/internal/expiry"
	"github.com/hitoshi/promed/internal/model"
	"github.com/hitoshi/promed/internal/repository"
	"github.com/hitoshi/promed/internal/security"
)

// DateLayout はAPIで受け渡す日付の形式。
const DateLayout = "2006-01-02"

// 名称・製造元の最大文字数（DBのVARCHAR(255)に合わせる）
const maxNameLength = 255

// 受け付ける最小の西暦年
const minYear = 1

// CreateInput は医薬品登録の入力値。日付はYYYY-MM-DD形式の文字列で受け取る。
type CreateInput struct {
	Name            string
	FactoryName     string
	Uses            string
	ManufactureDate string
	ExpiryDate      string
}

// Service は医薬品管理のサービス層。
// 状態区分は保存せず、参照のたびに設定タイムゾーンの「今日」から算出する。
type Service struct {
	repo      repository.MedicineRepository
	sanitizer security.TextSanitizerService
	location  *time.Location
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// locationがnilの場合はUTCを使用する。
func NewService(
	repo repository.MedicineRepository,
	sanitizer security.TextSanitizerService,
	location *time.Location,
) *Service {
	if location == nil {
		location = time.UTC
	}
	return &Service{
		repo:      repo,
		sanitizer: sanitizer,
		location:  location,
		now:       time.Now,
	}
}

// WithClock は現在時刻の取得関数を差し替える。テスト用。
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Today は設定タイムゾーンにおける今日の日付を返す。
func (s *Service) Today() time.Time {
	return expiry.Today(s.now(), s.location)
}

// Create は入力値を検証・サニタイズして医薬品を登録する。
// IDとQR識別子はUUIDで生成する。
func (s *Service) Create(ctx context.Context, ownerID string, in CreateInput) (*model.MedicineWithStatus, error) {
	name := s.sanitizer.Sanitize(in.Name)
	factory := s.sanitizer.Sanitize(in.FactoryName)
	uses := s.sanitizer.Sanitize(in.Uses)

	switch {
	case name == "":
		return nil, model.NewInvalidMedicineError("nameは必須です")
	case factory == "":
		return nil, model.NewInvalidMedicineError("factory_nameは必須です")
	case uses == "":
		return nil, model.NewInvalidMedicineError("usesは必須です")
	case utf8.RuneCountInString(name) > maxNameLength:
		return nil, model.NewInvalidMedicineError(fmt.Sprintf("nameは%d文字以内で入力してください", maxNameLength))
	case utf8.RuneCountInString(factory) > maxNameLength:
		return nil, model.NewInvalidMedicineError(fmt.Sprintf("factory_nameは%d文字以内で入力してください", maxNameLength))
	}

	manufactured, err := parseDate(in.ManufactureDate)
	if err != nil {
		return nil, model.NewInvalidMedicineError("manufacture_dateはYYYY-MM-DD形式で指定してください")
	}
	expires, err := parseDate(in.ExpiryDate)
	if err != nil {
		return nil, model.NewInvalidMedicineError("expiry_dateはYYYY-MM-DD形式で指定してください")
	}
	if manufactured.After(expires) {
		return nil, model.NewInvalidMedicineError("manufacture_dateはexpiry_date以前の日付を指定してください")
	}

	m := &model.Medicine{
		ID:              uuid.New().String(),
		OwnerID:         ownerID,
		Name:            name,
		FactoryName:     factory,
		Uses:            uses,
		ManufactureDate: manufactured,
		ExpiryDate:      expires,
		QRIdentifier:    uuid.New().String(),
		CreatedAt:       s.now().UTC(),
	}

	if err := s.repo.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("医薬品の登録に失敗しました: %w", err)
	}

	result := expiry.WithStatus(m, s.Today())
	return &result, nil
}

// List は所有者の医薬品一覧を状態区分付きで返す。
// statusFilterが空でない場合は該当する状態区分のみに絞り込む。
func (s *Service) List(ctx context.Context, ownerID, statusFilter string) ([]model.MedicineWithStatus, error) {
	var filter model.StatusTier
	if statusFilter != "" {
		filter = model.StatusTier(statusFilter)
		if !filter.Valid() {
			return nil, model.NewInvalidStatusFilterError(statusFilter)
		}
	}

	medicines, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("医薬品一覧の取得に失敗しました: %w", err)
	}

	today := s.Today()
	results := make([]model.MedicineWithStatus, 0, len(medicines))
	for _, m := range medicines {
		ms := expiry.WithStatus(m, today)
		if filter != "" && ms.Status != filter {
			continue
		}
		results = append(results, ms)
	}
	return results, nil
}

// Get は所有者スコープで医薬品を取得する。
// 他ユーザーの医薬品は存在しないものとして扱う。
func (s *Service) Get(ctx context.Context, ownerID, id string) (*model.MedicineWithStatus, error) {
	if !isUUID(id) {
		return nil, model.NewMedicineNotFoundError(id)
	}

	m, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("医薬品の取得に失敗しました: %w", err)
	}
	if m == nil || m.OwnerID != ownerID {
		return nil, model.NewMedicineNotFoundError(id)
	}

	result := expiry.WithStatus(m, s.Today())
	return &result, nil
}

// GetByQR はQR識別子から医薬品を取得する。公開詳細ページ用で所有者の確認は行わない。
func (s *Service) GetByQR(ctx context.Context, qrIdentifier string) (*model.MedicineWithStatus, error) {
	if !isUUID(qrIdentifier) {
		return nil, model.NewMedicineNotFoundError(qrIdentifier)
	}

	m, err := s.repo.FindByQRIdentifier(ctx, qrIdentifier)
	if err != nil {
		return nil, fmt.Errorf("医薬品の取得に失敗しました: %w", err)
	}
	if m == nil {
		return nil, model.NewMedicineNotFoundError(qrIdentifier)
	}

	result := expiry.WithStatus(m, s.Today())
	return &result, nil
}

// Delete は所有者スコープで医薬品を削除する。
func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	if !isUUID(id) {
		return model.NewMedicineNotFoundError(id)
	}

	err := s.repo.DeleteByOwnerAndID(ctx, ownerID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.NewMedicineNotFoundError(id)
	}
	if err != nil {
		return fmt.Errorf("医薬品の削除に失敗しました: %w", err)
	}
	return nil
}

// parseDate はYYYY-MM-DD形式の日付を解釈する。
// PostgreSQLのDATE型が受け付けない西暦0年は拒否する。
func parseDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	if d.Year() < minYear {
		return time.Time{}, fmt.Errorf("year %d is out of range", d.Year())
	}
	return d, nil
}

func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

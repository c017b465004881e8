package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/hitoshi/promed/internal/model"
)

const medicineColumns = `id, owner_id, name, factory_name, uses,
	manufacture_date, expiry_date, qr_identifier, created_at`

// PostgresMedicineRepo はPostgreSQLを使用した医薬品リポジトリ。
// 行とモデルのマッピングにはsqlxのdbタグを使用する。
type PostgresMedicineRepo struct {
	db *sqlx.DB
}

// NewPostgresMedicineRepo はPostgresMedicineRepoを生成する。
// 既存の*sql.DBをlib/pqドライバ名でラップする。
func NewPostgresMedicineRepo(db *sql.DB) *PostgresMedicineRepo {
	if db == nil {
		return &PostgresMedicineRepo{}
	}
	return &PostgresMedicineRepo{db: sqlx.NewDb(db, "postgres")}
}

// Create は医薬品を作成する。
// DATE列はセッションのタイムゾーンに左右されないよう"YYYY-MM-DD"で渡す。
func (r *PostgresMedicineRepo) Create(ctx context.Context, medicine *model.Medicine) error {
	_, err := r.db.NamedExecContext(ctx,
		`INSERT INTO medicines (`+medicineColumns+`)
		 VALUES (:id, :owner_id, :name, :factory_name, :uses,
		         :manufacture_date, :expiry_date, :qr_identifier, :created_at)`,
		map[string]any{
			"id":               medicine.ID,
			"owner_id":         medicine.OwnerID,
			"name":             medicine.Name,
			"factory_name":     medicine.FactoryName,
			"uses":             medicine.Uses,
			"manufacture_date": DateParam(medicine.ManufactureDate),
			"expiry_date":      DateParam(medicine.ExpiryDate),
			"qr_identifier":    medicine.QRIdentifier,
			"created_at":       medicine.CreatedAt,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to create medicine: %w", err)
	}
	return nil
}

// FindByID は指定IDの医薬品を取得する。見つからない場合はnilを返す。
func (r *PostgresMedicineRepo) FindByID(ctx context.Context, id string) (*model.Medicine, error) {
	return r.findOne(ctx, `SELECT `+medicineColumns+` FROM medicines WHERE id = $1`, id)
}

// FindByQRIdentifier はQR識別子で医薬品を取得する。見つからない場合はnilを返す。
func (r *PostgresMedicineRepo) FindByQRIdentifier(ctx context.Context, qrIdentifier string) (*model.Medicine, error) {
	return r.findOne(ctx, `SELECT `+medicineColumns+` FROM medicines WHERE qr_identifier = $1`, qrIdentifier)
}

func (r *PostgresMedicineRepo) findOne(ctx context.Context, query string, arg string) (*model.Medicine, error) {
	medicine := &model.Medicine{}
	err := r.db.GetContext(ctx, medicine, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find medicine: %w", err)
	}
	return medicine, nil
}

// ListByOwner は所有者の医薬品一覧を使用期限の昇順で返す。
func (r *PostgresMedicineRepo) ListByOwner(ctx context.Context, ownerID string) ([]*model.Medicine, error) {
	var medicines []*model.Medicine
	err := r.db.SelectContext(ctx, &medicines,
		`SELECT `+medicineColumns+`
		 FROM medicines
		 WHERE owner_id = $1
		 ORDER BY expiry_date ASC, created_at ASC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list medicines by owner: %w", err)
	}
	return medicines, nil
}

// DeleteByOwnerAndID は所有者スコープで医薬品を削除する。
// 該当行がない場合はErrNotFoundを返す。
func (r *PostgresMedicineRepo) DeleteByOwnerAndID(ctx context.Context, ownerID, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM medicines WHERE id = $1 AND owner_id = $2`,
		id, ownerID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete medicine: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListExpiringBetween は使用期限がfrom以上to以下の医薬品を全所有者分返す。
func (r *PostgresMedicineRepo) ListExpiringBetween(ctx context.Context, from, to time.Time) ([]*model.Medicine, error) {
	var medicines []*model.Medicine
	err := r.db.SelectContext(ctx, &medicines,
		`SELECT `+medicineColumns+`
		 FROM medicines
		 WHERE expiry_date BETWEEN $1::date AND $2::date
		 ORDER BY expiry_date ASC, owner_id ASC, created_at ASC`,
		DateParam(from), DateParam(to),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list expiring medicines: %w", err)
	}
	return medicines, nil
}

// DateParam はtime.TimeをDATE列の比較用に"YYYY-MM-DD"へ変換する。
// タイムゾーン変換によって日付がずれないよう、値自身の年月日をそのまま使用する。
func DateParam(t time.Time) string {
	return t.Format("2006-01-02")
}

// compile-time interface check
var _ MedicineRepository = (*PostgresMedicineRepo)(nil)

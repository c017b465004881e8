// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, medicine, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeMedicineNotFound    = "MEDICINE_NOT_FOUND"
	ErrCodeInvalidMedicine     = "INVALID_MEDICINE"
	ErrCodeInvalidStatusFilter = "INVALID_STATUS_FILTER"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeInvalidRequest      = "INVALID_REQUEST"
	ErrCodeCSRFInvalid         = "CSRF_TOKEN_INVALID"
	ErrCodeRateLimited         = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal            = "INTERNAL_ERROR"
)

// NewMedicineNotFoundError は医薬品未検出エラーを生成する。
func NewMedicineNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeMedicineNotFound,
		Message:  fmt.Sprintf("指定された医薬品が見つかりません: %s", id),
		Category: "medicine",
		Action:   "医薬品IDまたはQRコードを確認してください。",
	}
}

// NewInvalidMedicineError は医薬品の入力値が不正な場合のエラーを生成する。
func NewInvalidMedicineError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidMedicine,
		Message:  fmt.Sprintf("医薬品の入力内容が正しくありません: %s", reason),
		Category: "validation",
		Action:   "名称・製造元・用途を入力し、日付はYYYY-MM-DD形式で製造日が使用期限以前になるよう指定してください。",
	}
}

// NewInvalidStatusFilterError は無効な状態フィルタエラーを生成する。
func NewInvalidStatusFilterError(filter string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidStatusFilter,
		Message:  fmt.Sprintf("無効な状態フィルタです: %s", filter),
		Category: "validation",
		Action:   "statusには valid、expiring_soon、expired のいずれかを指定してください。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewInvalidRequestError はリクエストボディの解析失敗エラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewCSRFInvalidError はCSRFトークン検証失敗エラーを生成する。
func NewCSRFInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFInvalid,
		Message:  "CSRFトークンの検証に失敗しました。",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "Retry-Afterヘッダーの秒数だけ待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

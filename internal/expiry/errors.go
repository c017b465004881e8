package expiry

import (
	"errors"
	"fmt"
)

// ErrRecipientNotFound は医薬品の所有者に送信先メールアドレスを解決できないことを示す。
var ErrRecipientNotFound = errors.New("recipient not found")

// MailDeliveryError はメール送信の失敗を表す。一時的・恒久的な失敗を区別しない。
type MailDeliveryError struct {
	Recipient string
	Err       error
}

// Error はerrorインターフェースを実装する。
func (e *MailDeliveryError) Error() string {
	return fmt.Sprintf("mail delivery to %s failed: %v", e.Recipient, e.Err)
}

// Unwrap は元のエラーを返す。
func (e *MailDeliveryError) Unwrap() error {
	return e.Err
}

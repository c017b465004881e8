package expiry

import (
	"fmt"
	"strings"

	"github.com/hitoshi/promed/internal/model"
)

const dateLayout = "2006-01-02"

// MessageFormatter は期限通知メールの件名と本文を組み立てる。
type MessageFormatter struct {
	// BaseURL が設定されている場合、本文に公開詳細ページのURLを含める。
	BaseURL string
}

// Format は医薬品名と通知理由を含む件名・本文を返す。
func (f MessageFormatter) Format(m *model.Medicine, reason model.NotificationReason) (subject, body string) {
	var when string
	switch reason {
	case model.ReasonDueTomorrow:
		when = "明日"
	case model.ReasonDueToday:
		when = "本日"
	default:
		when = "まもなく"
	}

	subject = fmt.Sprintf("[ProMed] %sが%s使用期限を迎えます", m.Name, when)

	var b strings.Builder
	fmt.Fprintf(&b, "登録されている医薬品の使用期限が%sです。\n\n", when)
	fmt.Fprintf(&b, "医薬品名: %s\n", m.Name)
	fmt.Fprintf(&b, "製造元: %s\n", m.FactoryName)
	fmt.Fprintf(&b, "使用期限: %s\n", m.ExpiryDate.Format(dateLayout))
	if url := DetailURL(f.BaseURL, m.QRIdentifier); url != "" {
		fmt.Fprintf(&b, "詳細: %s\n", url)
	}
	b.WriteString("\n期限切れの医薬品は使用せず、適切に廃棄してください。\n")

	return subject, b.String()
}

// DetailURL はQR識別子から公開詳細ページのURLを組み立てる。
// baseURLまたは識別子が空の場合は空文字列を返す。
func DetailURL(baseURL, qrIdentifier string) string {
	if baseURL == "" || qrIdentifier == "" {
		return ""
	}
	return strings.TrimRight(baseURL, "/") + "/m/" + qrIdentifier
}

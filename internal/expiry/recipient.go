package expiry

import (
	"context"
	"fmt"
	"strings"

	"github.com/hitoshi/promed/internal/model"
)

// UserFinder はユーザーの検索インターフェース。
// repository.UserRepositoryの部分集合として定義する。
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// UserRecipientResolver はユーザーリポジトリから送信先メールアドレスを解決する。
type UserRecipientResolver struct {
	users UserFinder
}

// NewUserRecipientResolver はUserRecipientResolverを生成する。
func NewUserRecipientResolver(users UserFinder) *UserRecipientResolver {
	return &UserRecipientResolver{users: users}
}

// ResolveEmail は所有者のメールアドレスを返す。
// ユーザーが存在しない、またはメールアドレスが空の場合はErrRecipientNotFoundを返す。
func (r *UserRecipientResolver) ResolveEmail(ctx context.Context, ownerID string) (string, error) {
	user, err := r.users.FindByID(ctx, ownerID)
	if err != nil {
		return "", fmt.Errorf("%w: failed to look up owner %s: %v", ErrRecipientNotFound, ownerID, err)
	}
	if user == nil {
		return "", fmt.Errorf("%w: owner %s does not exist", ErrRecipientNotFound, ownerID)
	}
	email := strings.TrimSpace(user.Email)
	if email == "" {
		return "", fmt.Errorf("%w: owner %s has no email address", ErrRecipientNotFound, ownerID)
	}
	return email, nil
}

package expiry

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/promed/internal/model"
)

type mockUserFinder struct {
	findByIDFn func(ctx context.Context, id string) (*model.User, error)
}

func (m *mockUserFinder) FindByID(ctx context.Context, id string) (*model.User, error) {
	return m.findByIDFn(ctx, id)
}

func TestUserRecipientResolver_ReturnsEmail(t *testing.T) {
	r := NewUserRecipientResolver(&mockUserFinder{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, Email: " alice@example.com "}, nil
		},
	})

	got, err := r.ResolveEmail(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "alice@example.com" {
		t.Errorf("email = %q, want alice@example.com", got)
	}
}

func TestUserRecipientResolver_NotFoundCases(t *testing.T) {
	tests := []struct {
		name string
		user *model.User
		err  error
	}{
		{"missing user", nil, nil},
		{"empty email", &model.User{ID: "u1"}, nil},
		{"lookup error", nil, errors.New("db down")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewUserRecipientResolver(&mockUserFinder{
				findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
					return tt.user, tt.err
				},
			})

			_, err := r.ResolveEmail(context.Background(), "u1")
			if !errors.Is(err, ErrRecipientNotFound) {
				t.Errorf("err = %v, want ErrRecipientNotFound", err)
			}
		})
	}
}

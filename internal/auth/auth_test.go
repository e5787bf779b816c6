package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/adnan855570/Global-Dorm-App/internal/core/apperr"
	"github.com/adnan855570/Global-Dorm-App/internal/core/model"
	"github.com/adnan855570/Global-Dorm-App/internal/store"
)

type memUsers struct {
	mu    sync.Mutex
	users map[string]model.User
}

func (m *memUsers) CreateUser(_ context.Context, u model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.Email]; ok {
		return store.ErrDuplicate
	}
	m.users[u.Email] = u
	return nil
}

func (m *memUsers) UserByEmail(_ context.Context, email string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[email]
	if !ok {
		return model.User{}, store.ErrNotFound
	}
	return u, nil
}

func newService(t *testing.T) (*Service, *memUsers, *Tokens) {
	t.Helper()
	tokens, err := NewTokens("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	users := &memUsers{users: map[string]model.User{}}
	return NewService(users, tokens, nil, WithBcryptCost(bcrypt.MinCost)), users, tokens
}

func TestRegisterLoginAuthenticate(t *testing.T) {
	svc, users, _ := newService(t)
	ctx := context.Background()
	creds := model.Credentials{Email: "student@uni.ac.uk", Password: "hunter2"}

	pub, err := svc.Register(ctx, creds)
	if err != nil || pub.Email != creds.Email {
		t.Fatalf("Register=(%+v,%v)", pub, err)
	}
	if stored := users.users[creds.Email].HashedPassword; stored == "" || stored == creds.Password {
		t.Fatalf("password must be stored hashed, got %q", stored)
	}

	if _, err := svc.Register(ctx, creds); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("duplicate register err=%v", err)
	}

	tok, err := svc.Login(ctx, creds)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if tok.TokenType != "bearer" || tok.AccessToken == "" {
		t.Fatalf("token=%+v", tok)
	}
	sub, err := svc.Authenticate(tok.AccessToken)
	if err != nil || sub != creds.Email {
		t.Fatalf("Authenticate=(%q,%v)", sub, err)
	}
}

func TestLogin_Unauthorized(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	_, _ = svc.Register(ctx, model.Credentials{Email: "a@x.io", Password: "right"})

	if _, err := svc.Login(ctx, model.Credentials{Email: "a@x.io", Password: "wrong"}); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("wrong password err=%v", err)
	}
	if _, err := svc.Login(ctx, model.Credentials{Email: "b@x.io", Password: "right"}); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("unknown email err=%v", err)
	}
}

func TestRegister_Validation(t *testing.T) {
	svc, _, _ := newService(t)
	if _, err := svc.Register(context.Background(), model.Credentials{Email: "not-an-email", Password: "x"}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("err=%v", err)
	}
}

func TestAuthenticate_RejectsBadTokens(t *testing.T) {
	svc, _, tokens := newService(t)
	good, _ := tokens.Issue("a@x.io")

	other, _ := NewTokens("other-secret", time.Hour)
	foreign, _ := other.Issue("a@x.io")

	expiring, _ := NewTokens("test-secret", time.Minute)
	expiring.now = func() time.Time { return time.Now().Add(-2 * time.Minute) }
	expired, _ := expiring.Issue("a@x.io")

	noSub, _ := tokens.Issue("")

	for name, tok := range map[string]string{
		"corrupted":  good[:len(good)-3] + "abc",
		"garbage":    "not.a.token",
		"wrong key":  foreign,
		"expired":    expired,
		"no subject": noSub,
		"empty":      "",
	} {
		if _, err := svc.Authenticate(tok); !errors.Is(err, apperr.ErrUnauthorized) {
			t.Fatalf("%s: err=%v", name, err)
		}
	}
}

func TestRequireAuth(t *testing.T) {
	svc, _, tokens := newService(t)
	var seen string
	h := RequireAuth(svc, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = SubjectFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	good, _ := tokens.Issue("a@x.io")
	cases := []struct {
		header string
		status int
	}{
		{"", http.StatusUnauthorized},
		{"Basic abc", http.StatusUnauthorized},
		{"Bearer ", http.StatusUnauthorized},
		{"Bearer junk", http.StatusUnauthorized},
		{"Bearer " + good, http.StatusNoContent},
		{"bearer " + good, http.StatusNoContent},
	}
	for _, tc := range cases {
		seen = ""
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != tc.status {
			t.Fatalf("%q: status=%d want %d", tc.header, rec.Code, tc.status)
		}
		if tc.status == http.StatusUnauthorized {
			if !strings.Contains(rec.Body.String(), "detail") || rec.Header().Get("WWW-Authenticate") != "Bearer" {
				t.Fatalf("%q: body=%q", tc.header, rec.Body.String())
			}
		} else if seen != "a@x.io" {
			t.Fatalf("%q: subject=%q", tc.header, seen)
		}
	}
}

func TestNewTokens_RequiresSecret(t *testing.T) {
	if _, err := NewTokens("", time.Hour); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}

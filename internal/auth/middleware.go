package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/adnan855570/Global-Dorm-App/internal/core/apperr"
	"github.com/adnan855570/Global-Dorm-App/internal/core/respond"
	mylog "github.com/adnan855570/Global-Dorm-App/internal/logger"
)

type Authenticator interface {
	Authenticate(token string) (string, error)
}

type subjectKey struct{}

func WithSubject(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, subjectKey{}, email)
}

func SubjectFromContext(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(subjectKey{}).(string)
	return s, ok && s != ""
}

// RequireAuth rejects requests without a valid bearer token and puts the
// caller's email on the request context.
func RequireAuth(a Authenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				respond.Error(w, r, logger, apperr.New(apperr.KindUnauthorized, "Not authenticated"))
				return
			}
			sub, err := a.Authenticate(token)
			if err != nil {
				respond.Error(w, r, logger, err)
				return
			}
			ctx := WithSubject(r.Context(), sub)
			ctx = mylog.WithSubject(ctx, sub)
			next.ServeHTTP(w, r.WithContext(ctx))
		}
		return http.HandlerFunc(fn)
	}
}

func bearerToken(h string) (string, bool) {
	scheme, tok, found := strings.Cut(strings.TrimSpace(h), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}

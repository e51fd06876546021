package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/joao-fontenele/cartflow/internal/domain"
	"github.com/joao-fontenele/cartflow/internal/respond"
)

const RoleAdmin = "admin"

type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

type contextKey struct{}

// Verifier checks HS256 bearer tokens. Tokens are issued elsewhere; only the signature,
// expiry and user_id claim are checked here.
type Verifier struct {
	secret []byte
	logger *slog.Logger
}

func NewVerifier(secret string, logger *slog.Logger) *Verifier {
	return &Verifier{secret: []byte(secret), logger: logger}
}

func (v *Verifier) Verify(tokenString string) (domain.Requester, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return domain.Requester{}, err
	}
	if claims.UserID == "" {
		return domain.Requester{}, errors.New("token has no user_id claim")
	}
	return domain.Requester{UserID: claims.UserID, IsAdmin: claims.Role == RoleAdmin}, nil
}

// Middleware rejects requests without a valid bearer token and stores the requester in the
// request context.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			respond.Message(w, v.logger, http.StatusUnauthorized, "missing bearer token")
			return
		}

		requester, err := v.Verify(token)
		if err != nil {
			v.logger.Info("rejected token", "error", err, "path", r.URL.Path)
			respond.Message(w, v.logger, http.StatusUnauthorized, "invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithRequester(r.Context(), requester)))
	})
}

func (v *Verifier) Wrap(h http.HandlerFunc) http.Handler {
	return v.Middleware(h)
}

func WithRequester(ctx context.Context, requester domain.Requester) context.Context {
	return context.WithValue(ctx, contextKey{}, requester)
}

func FromContext(ctx context.Context) (domain.Requester, bool) {
	requester, ok := ctx.Value(contextKey{}).(domain.Requester)
	return requester, ok
}

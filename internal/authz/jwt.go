package authz

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// Claims are the bearer token claims understood by the service.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role,omitempty"`
}

// TokenVerifier validates HS256 bearer tokens.
type TokenVerifier struct {
	secret       []byte
	issuer       string
	sysadminRole string
}

// NewTokenVerifier creates a verifier. issuer may be empty to accept any.
func NewTokenVerifier(secret, issuer, sysadminRole string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret), issuer: issuer, sysadminRole: sysadminRole}
}

// Verify parses tokenStr and returns the principal it represents.
// The signing method is pinned to HS256.
func (v *TokenVerifier) Verify(tokenStr string) (Principal, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return Principal{}, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return Principal{}, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return Principal{}, errors.New("token has no subject")
	}
	return Principal{
		UserID:   claims.Subject,
		Sysadmin: v.sysadminRole != "" && claims.Role == v.sysadminRole,
	}, nil
}

// Sign issues a token for subject with the given role.
func (v *TokenVerifier) Sign(subject, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: role,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Middleware attaches the principal of a valid bearer token to the request
// context. Requests without an Authorization header continue anonymously so
// that open reads work; a malformed or invalid token is rejected with 401.
func (v *TokenVerifier) Middleware(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			tokenStr, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || tokenStr == "" {
				unauthorized(w, "invalid authorization header format")
				return
			}

			p, err := v.Verify(tokenStr)
			if err != nil {
				logger.Debug().Err(err).Msg("rejected bearer token")
				unauthorized(w, "invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// SystemMiddleware runs every request as the system principal. Used when
// authentication is disabled.
func SystemMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), SystemPrincipal())))
	})
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="scientometrics"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

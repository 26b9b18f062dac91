// File: internal/infra/web/auth.go
package web

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ===== Session/JWT primitives =====

type AuthConfig struct {
	HMACSecret   []byte
	CookieName   string
	SecureCookie bool
	TTL          time.Duration
}

// AuthManager mints and validates short-lived admin sessions. Operators log
// in once with the API key and get a JWT cookie for the rest of the session.
type AuthManager struct{ cfg AuthConfig }

func NewAuthManager(secret string, secure bool, ttl time.Duration) *AuthManager {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &AuthManager{cfg: AuthConfig{
		HMACSecret:   []byte(secret),
		CookieName:   "admin_session",
		SecureCookie: secure,
		TTL:          ttl,
	}}
}

type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func (a *AuthManager) Mint(w http.ResponseWriter) (string, time.Time, error) {
	now := time.Now()
	expires := now.Add(a.cfg.TTL)
	claims := AdminClaims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			Subject:   "admin",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.cfg.HMACSecret)
	if err != nil {
		return "", time.Time{}, err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     a.cfg.CookieName,
		Value:    signed,
		Path:     "/",
		MaxAge:   int(a.cfg.TTL.Seconds()),
		HttpOnly: true,
		Secure:   a.cfg.SecureCookie,
		SameSite: http.SameSiteStrictMode,
	})
	return signed, expires, nil
}

func (a *AuthManager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.cfg.SecureCookie,
		SameSite: http.SameSiteStrictMode,
	})
}

func (a *AuthManager) ParseFromRequest(r *http.Request) (*AdminClaims, error) {
	// Authorization: Bearer <jwt>
	if hdr := r.Header.Get("Authorization"); hdr != "" {
		if strings.HasPrefix(strings.ToLower(hdr), "bearer ") {
			return a.parse(strings.TrimSpace(hdr[7:]))
		}
	}
	// Cookie
	if c, err := r.Cookie(a.cfg.CookieName); err == nil {
		return a.parse(c.Value)
	}
	return nil, errors.New("missing token")
}

func (a *AuthManager) parse(tok string) (*AdminClaims, error) {
	claims := &AdminClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.cfg.HMACSecret, nil
	})
	if err != nil || !tkn.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// requireAdmin guards the admin API. A request passes with either the static
// API key as a bearer token or a session minted by handleAdminLogin.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" {
			s.log.Error().Msg("admin API key is not configured")
			writeError(w, http.StatusForbidden, "admin API disabled")
			return
		}

		if tok := bearerToken(r); tok != "" {
			if subtle.ConstantTimeCompare([]byte(tok), []byte(s.apiKey)) == 1 {
				next.ServeHTTP(w, r)
				return
			}
		}
		if s.auth != nil {
			if _, err := s.auth.ParseFromRequest(r); err == nil {
				next.ServeHTTP(w, r)
				return
			}
		}
		writeError(w, http.StatusUnauthorized, "unauthorized")
	})
}

func bearerToken(r *http.Request) string {
	hdr := r.Header.Get("Authorization")
	if hdr == "" {
		return ""
	}
	parts := strings.SplitN(hdr, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/openbar/beerexchange/pkg/logger"
)

var errInvalidCredentials = errors.New("invalid credentials")

// defaultTokenTTL is how long an admin login stays valid.
const defaultTokenTTL = 12 * time.Hour

// AuthConfig carries the admin credentials and the token signing key.
type AuthConfig struct {
	Username     string
	PasswordHash string
	JWTSecret    string
	TokenTTL     time.Duration
}

type authenticator struct {
	cfg AuthConfig
	log *logger.Logger
}

func newAuthenticator(cfg AuthConfig, log *logger.Logger) *authenticator {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = defaultTokenTTL
	}
	return &authenticator{cfg: cfg, log: log}
}

func (a *authenticator) enabled() bool {
	return a.cfg.Username != "" && a.cfg.PasswordHash != "" && a.cfg.JWTSecret != ""
}

func (a *authenticator) login(w http.ResponseWriter, r *http.Request) {
	if !a.enabled() {
		writeError(w, http.StatusServiceUnavailable, errors.New("admin login not configured"))
		return
	}

	var payload struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if payload.Username == "" || payload.Password == "" {
		writeError(w, http.StatusBadRequest, errors.New("username and password required"))
		return
	}

	if !strings.EqualFold(payload.Username, a.cfg.Username) {
		writeError(w, http.StatusUnauthorized, errInvalidCredentials)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.cfg.PasswordHash), []byte(payload.Password)); err != nil {
		a.log.WithField("username", payload.Username).Warn("failed admin login")
		writeError(w, http.StatusUnauthorized, errInvalidCredentials)
		return
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   a.cfg.Username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.cfg.TokenTTL)),
	})
	signed, err := token.SignedString([]byte(a.cfg.JWTSecret))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": signed})
}

// requireAdmin guards mutating routes. With auth unconfigured every request
// passes, which keeps local development friction-free.
func (a *authenticator) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.enabled() {
			next.ServeHTTP(w, r)
			return
		}

		raw := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer"))
		if raw == "" {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		claims := jwt.RegisteredClaims{}
		_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(a.cfg.JWTSecret), nil
		})
		if err != nil {
			writeError(w, http.StatusUnauthorized, fmt.Errorf("invalid token: %w", err))
			return
		}
		next.ServeHTTP(w, r)
	})
}

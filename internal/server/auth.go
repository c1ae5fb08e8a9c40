package server

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/crypto/bcrypt"

	"github.com/region23/servicedesk/pkg/errors"
)

// telegramSecretHeader заголовок с секретом, заданным в setWebhook
const telegramSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// verifiedTokenTTL сколько живет запись о проверенном bcrypt токене
const verifiedTokenTTL = 5 * time.Minute

// newTokenCache кеширует отпечатки токенов, уже прошедших bcrypt проверку
func newTokenCache() *expirable.LRU[[sha256.Size]byte, struct{}] {
	return expirable.NewLRU[[sha256.Size]byte, struct{}](64, nil, verifiedTokenTTL)
}

// authEnabled сообщает, настроен ли токен администратора.
// Без токена изменяющие запросы открыты, это режим локальной установки.
func (s *Server) authEnabled() bool {
	return s.config.Server.AdminToken != "" || s.config.Server.AdminTokenHash != ""
}

// checkAdminToken сравнивает токен с bcrypt хешем или открытым токеном
func (s *Server) checkAdminToken(token string) bool {
	if token == "" {
		return false
	}
	if hash := s.config.Server.AdminTokenHash; hash != "" {
		key := sha256.Sum256([]byte(token))
		if _, ok := s.verifiedTokens.Get(key); ok {
			return true
		}
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) != nil {
			return false
		}
		s.verifiedTokens.Add(key, struct{}{})
		return true
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.config.Server.AdminToken)) == 1
}

// bearerToken извлекает токен из заголовка Authorization
func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// requireAdmin пропускает только запросы с токеном администратора
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authEnabled() {
			next(w, r)
			return
		}

		if !s.checkAdminToken(bearerToken(r)) {
			s.securityLogger.LogFailedAuth(r, "invalid admin token")
			w.Header().Set("WWW-Authenticate", `Bearer realm="servicedesk"`)
			s.writeJSON(w, http.StatusUnauthorized, errorResponse{
				Message: errors.UserMessage(errors.ErrAccessDenied),
				Code:    errors.ErrAccessDenied.Code,
			})
			return
		}

		next(w, r)
	}
}

// verifyWebhookSecret проверяет секрет, который Telegram присылает с каждым обновлением
func (s *Server) verifyWebhookSecret(r *http.Request) bool {
	secret := s.config.Telegram.SecretToken
	if secret == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(r.Header.Get(telegramSecretHeader)), []byte(secret)) == 1
}

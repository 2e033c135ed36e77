// auth.go — проверка сессии UI (cookie с подписанным JWT).
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	apierrors "github.com/bigkaa/chanstore/internal/api/errors"
	"github.com/bigkaa/chanstore/internal/auth"
)

// contextKey — тип для ключей контекста.
type contextKey string

// ContextKeySession — данные сессии в контексте запроса.
const ContextKeySession contextKey = "session"

// LoginPath — страница входа, куда перенаправляются запросы без сессии.
const LoginPath = "/login"

// SessionAuth — middleware проверки сессии.
type SessionAuth struct {
	sessionManager *auth.SessionManager
	logger         *slog.Logger
}

// NewSessionAuth создаёт middleware проверки сессии.
func NewSessionAuth(sessionManager *auth.SessionManager, logger *slog.Logger) *SessionAuth {
	return &SessionAuth{
		sessionManager: sessionManager,
		logger:         logger.With(slog.String("component", "auth_middleware")),
	}
}

// Middleware возвращает HTTP middleware. Без действующей сессии
// страницы перенаправляются на /login, а API-запросы получают 401.
func (sa *SessionAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := sa.sessionManager.GetSessionFromRequest(r)
			if err != nil {
				sa.logger.Debug("Ошибка чтения сессии",
					slog.String("error", err.Error()),
					slog.String("remote_addr", r.RemoteAddr),
				)
				// Повреждённый или истёкший cookie — очищаем
				sa.sessionManager.ClearSessionCookie(w)
				sa.reject(w, r)
				return
			}
			if session == nil {
				sa.reject(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeySession, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (sa *SessionAuth) reject(w http.ResponseWriter, r *http.Request) {
	if wantsHTML(r) {
		http.Redirect(w, r, LoginPath, http.StatusFound)
		return
	}
	apierrors.Unauthorized(w, "Требуется вход")
}

// wantsHTML — навигация браузера: GET с Accept text/html и не XHR.
func wantsHTML(r *http.Request) bool {
	if r.Method != http.MethodGet {
		return false
	}
	if r.Header.Get("X-Requested-With") == "XMLHttpRequest" {
		return false
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

// SessionFromContext извлекает SessionData из контекста запроса.
// Возвращает nil если запрос не прошёл через SessionAuth.
func SessionFromContext(ctx context.Context) *auth.SessionData {
	session, ok := ctx.Value(ContextKeySession).(*auth.SessionData)
	if !ok {
		return nil
	}
	return session
}

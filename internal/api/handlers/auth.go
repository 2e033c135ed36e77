// auth.go — вход и выход администратора UI.
package handlers

import (
	"log/slog"
	"mime"
	"net/http"

	apierrors "github.com/bigkaa/chanstore/internal/api/errors"
	"github.com/bigkaa/chanstore/internal/auth"
)

// AuthHandler — обработчики входа и выхода.
type AuthHandler struct {
	sessionManager *auth.SessionManager
	credentials    auth.Credentials
	// loginPage — HTML страницы входа
	loginPage []byte
	logger    *slog.Logger
}

// NewAuthHandler создаёт обработчик входа.
func NewAuthHandler(sessionManager *auth.SessionManager, credentials auth.Credentials, loginPage []byte, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		sessionManager: sessionManager,
		credentials:    credentials,
		loginPage:      loginPage,
		logger:         logger.With(slog.String("component", "auth_handler")),
	}
}

// loginRequest — учётные данные из JSON-тела.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginPage — GET /login.
func (h *AuthHandler) LoginPage(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(h.loginPage)
}

// Login — POST /login.
// Принимает форму (username, password) или JSON. Форма после входа
// перенаправляется на /, JSON получает {"success": true}.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	isJSON := isJSONRequest(r)

	var req loginRequest
	if isJSON {
		if err := decodeJSON(w, r, &req); err != nil {
			apierrors.ValidationError(w, err.Error())
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			apierrors.ValidationError(w, "Некорректная форма входа")
			return
		}
		req.Username = r.PostFormValue("username")
		req.Password = r.PostFormValue("password")
	}

	if !h.credentials.Check(req.Username, req.Password) {
		h.logger.Warn("Неудачная попытка входа",
			slog.String("username", req.Username),
			slog.String("remote_addr", r.RemoteAddr),
		)
		if isJSON {
			apierrors.Unauthorized(w, "Неверный логин или пароль")
			return
		}
		http.Redirect(w, r, "/login?error=1", http.StatusSeeOther)
		return
	}

	if err := h.sessionManager.SetSessionCookie(w, req.Username); err != nil {
		h.logger.Error("Ошибка создания сессии", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Не удалось создать сессию")
		return
	}

	h.logger.Info("Вход выполнен",
		slog.String("username", req.Username),
		slog.String("remote_addr", r.RemoteAddr),
	)

	if isJSON {
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Logout — POST /logout. Удаляет cookie и перенаправляет на /login.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessionManager.ClearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func isJSONRequest(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}

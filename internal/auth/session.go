// Пакет auth — вход администратора и управление сессиями UI.
// Сессия хранится в cookie как JWT, подписанный HS256.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Имя cookie сессии UI.
const SessionCookieName = "chanstore_session"

// ErrInvalidSession — подпись или срок действия сессии не прошли проверку.
var ErrInvalidSession = errors.New("недействительная сессия")

// Claims — утверждения JWT сессии.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
}

// SessionData — данные сессии, извлечённые из cookie.
type SessionData struct {
	Username  string
	ExpiresAt time.Time
}

// SessionManager — выпуск и проверка сессий UI.
type SessionManager struct {
	// key — секрет подписи HS256
	key []byte
	// ttl — время жизни сессии
	ttl time.Duration
	// secure — использовать Secure flag для cookie (true для HTTPS)
	secure bool
	// now — источник времени (подменяется в тестах)
	now func() time.Time
}

// NewSessionManager создаёт менеджер сессий.
// Если secret пустой — генерируется случайный ключ (сессии не переживают рестарт).
func NewSessionManager(secret string, ttl time.Duration, secure bool) (*SessionManager, error) {
	var key []byte
	if secret == "" {
		key = make([]byte, 32)
		if _, err := io.ReadFull(rand.Reader, key); err != nil {
			return nil, fmt.Errorf("ошибка генерации ключа сессии: %w", err)
		}
	} else {
		key = []byte(secret)
	}

	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &SessionManager{
		key:    key,
		ttl:    ttl,
		secure: secure,
		now:    time.Now,
	}, nil
}

// Issue выпускает подписанный токен сессии для пользователя.
func (sm *SessionManager) Issue(username string) (string, error) {
	now := sm.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(sm.ttl)),
		},
		Username: username,
	})

	signed, err := token.SignedString(sm.key)
	if err != nil {
		return "", fmt.Errorf("ошибка подписи сессии: %w", err)
	}
	return signed, nil
}

// Parse проверяет подпись и срок действия токена сессии.
func (sm *SessionManager) Parse(tokenString string) (*SessionData, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("неожиданный алгоритм подписи: %v", t.Header["alg"])
		}
		return sm.key, nil
	}, jwt.WithTimeFunc(sm.now), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if !token.Valid || claims.Username == "" {
		return nil, ErrInvalidSession
	}

	data := &SessionData{Username: claims.Username}
	if claims.ExpiresAt != nil {
		data.ExpiresAt = claims.ExpiresAt.Time
	}
	return data, nil
}

// SetSessionCookie выпускает сессию и устанавливает cookie в ответ.
func (sm *SessionManager) SetSessionCookie(w http.ResponseWriter, username string) error {
	signed, err := sm.Issue(username)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    signed,
		Path:     "/",
		MaxAge:   int(sm.ttl.Seconds()),
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// GetSessionFromRequest извлекает и проверяет сессию из cookie запроса.
// Возвращает nil, nil если cookie отсутствует.
func (sm *SessionManager) GetSessionFromRequest(r *http.Request) (*SessionData, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return nil, nil
		}
		return nil, err
	}

	return sm.Parse(cookie.Value)
}

// ClearSessionCookie удаляет cookie сессии (logout).
func (sm *SessionManager) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Credentials — учётные данные администратора.
type Credentials struct {
	Username string
	Password string
}

// Check сравнивает логин и пароль за постоянное время.
func (c Credentials) Check(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(c.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(c.Password)) == 1
	return userOK && passOK && c.Username != ""
}

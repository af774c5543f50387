package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMissingSecret - секрет подписи токена не задан
var ErrMissingSecret = errors.New("jwt secret is not set")

// NewToken выпускает HS256-токен для покупателя. Токены в продакшене выпускает внешний сервис
// аутентификации, здесь функция нужна для локальной отладки и тестов.
func NewToken(subject, secret string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", ErrMissingSecret
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": subject,
		"exp": now.Add(ttl).Unix(),
		"iat": now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

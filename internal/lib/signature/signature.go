// Package signature проверяет подлинность уведомлений платёжных провайдеров.
// Обе схемы работают по принципу fail closed: отсутствие секрета, заголовка
// или несовпадение подписи приводит к отказу.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
)

var (
	// ErrInvalidSignature - отправитель не подтвердил подлинность уведомления
	ErrInvalidSignature = errors.New("invalid signature")
	// ErrMissingSignature - заголовок с подписью отсутствует
	ErrMissingSignature = fmt.Errorf("%w: signature header is missing", ErrInvalidSignature)
	// ErrMissingSecret - на сервере не настроен секрет, проверка невозможна
	ErrMissingSecret = errors.New("signature secret is not configured")
)

const checksumSeparator = "###"

// ComputeChecksum вычисляет hex(SHA256(payload || saltKey)) + "###" + saltIndex
func ComputeChecksum(payload, saltKey, saltIndex string) string {
	sum := sha256.Sum256([]byte(payload + saltKey))
	return hex.EncodeToString(sum[:]) + checksumSeparator + saltIndex
}

// VerifyChecksum сверяет заголовок X-VERIFY с контрольной суммой base64-полезной нагрузки
func VerifyChecksum(payload, header, saltKey, saltIndex string) error {
	if saltKey == "" {
		return ErrMissingSecret
	}
	if header == "" {
		return ErrMissingSignature
	}
	if !equal(ComputeChecksum(payload, saltKey, saltIndex), header) {
		return ErrInvalidSignature
	}
	return nil
}

// ComputeHMAC вычисляет hex(HMAC-SHA256(body, secret)) над сырым телом запроса
func ComputeHMAC(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyHMAC сверяет подпись провайдера с HMAC от сырого тела (не пересериализованного JSON)
func VerifyHMAC(body []byte, header, secret string) error {
	if secret == "" {
		return ErrMissingSecret
	}
	if header == "" {
		return ErrMissingSignature
	}
	if !equal(ComputeHMAC(body, secret), header) {
		return ErrInvalidSignature
	}
	return nil
}

func equal(expected, actual string) bool {
	return subtle.ConstantTimeCompare([]byte(expected), []byte(actual)) == 1
}

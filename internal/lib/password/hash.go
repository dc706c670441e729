// Package password реализует хеширование паролей и одноразовых кодов.
//
// GetHash создает bcrypt-хеш для безопасного хранения.
// CompareHash сравнивает bcrypt-хеш с введённым значением.
// GenerateCode выдаёт числовой одноразовый код для сброса пароля.
package password

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// GetHash принимает пароль пользователя и возвращает его bcrypt‑хэш.
func GetHash(password string) (string, error) {
	const op = "password.GetHash"
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return string(hashedPassword), nil
}

// CompareHash сравнивает bcrypt‑хэш с введённым паролем.
//
// Возвращает nil, если пароль соответствует хэшу, иначе ошибку.
func CompareHash(originalHash, externalPassword string) error {
	const op = "password.CompareHash"
	if err := bcrypt.CompareHashAndPassword([]byte(originalHash), []byte(externalPassword)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GenerateCode возвращает случайный числовой код из digits цифр.
func GenerateCode(digits int) (string, error) {
	const op = "password.GenerateCode"
	if digits <= 0 {
		return "", fmt.Errorf("%s: digits must be positive", op)
	}
	var b strings.Builder
	b.Grow(digits)
	ten := big.NewInt(10)
	for range digits {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}

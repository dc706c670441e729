// Package jwt реализует выпуск и проверку подписанных токенов доступа.
//
// Токен несёт email, назначение (claim aud) и срок действия.
// Подпись HS256 на секрете сервера.
package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrExpired токен просрочен.
	ErrExpired = errors.New("token expired")
	// ErrMalformed токен повреждён, подписан чужим ключом или не содержит email.
	ErrMalformed = errors.New("token malformed")
	// ErrWrongPurpose токен валиден, но выпущен для другого назначения.
	// Всегда сопровождается ErrMalformed.
	ErrWrongPurpose = errors.New("token issued for another purpose")
)

// Purpose назначение токена, записывается в claim aud.
type Purpose string

const (
	// PurposeAccess токен доступа к API.
	PurposeAccess Purpose = "access"
	// PurposeEmailVerification токен из ссылки подтверждения почты.
	PurposeEmailVerification Purpose = "email_verification"
)

// Maker описывает интерфейс для генерации и парсинга JWT токенов.
type Maker interface {
	GenerateToken(email string) (string, error)
	GenerateTokenWithTTL(email string, purpose Purpose, ttl time.Duration) (string, error)
	ParseToken(tokenStr string, purpose Purpose) (*Claims, error)
}

// Claims данные, хранящиеся в токене.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// MakerImpl реализует Maker с использованием секретного ключа
// и времени жизни токена (TTL).
type MakerImpl struct {
	secretKey string
	tokenTTL  time.Duration
}

// NewJWTMaker создаёт новый экземпляр MakerImpl на основе секретного ключа и TTL.
func NewJWTMaker(secretKey string, ttl time.Duration) *MakerImpl {
	return &MakerImpl{
		secretKey: secretKey,
		tokenTTL:  ttl,
	}
}

// GenerateToken выпускает токен доступа со стандартным временем жизни.
func (j *MakerImpl) GenerateToken(email string) (string, error) {
	return j.GenerateTokenWithTTL(email, PurposeAccess, j.tokenTTL)
}

// GenerateTokenWithTTL выпускает токен заданного назначения с заданным временем жизни.
func (j *MakerImpl) GenerateTokenWithTTL(email string, purpose Purpose, ttl time.Duration) (string, error) {
	const op = "jwt.GenerateTokenWithTTL"
	now := time.Now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{string(purpose)},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(j.secretKey))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return signed, nil
}

// ParseToken проверяет подпись, алгоритм, срок действия и назначение токена.
// Любая ошибка сводится к ErrExpired или ErrMalformed.
func (j *MakerImpl) ParseToken(tokenStr string, purpose Purpose) (*Claims, error) {
	const op = "jwt.ParseToken"
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(_ *jwt.Token) (any, error) {
		return []byte(j.secretKey), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(string(purpose)),
	)
	if err != nil {
		// Чужое назначение важнее просрочки: такой токен не годится ни в каком виде
		switch {
		case errors.Is(err, jwt.ErrTokenInvalidAudience), errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
			return nil, fmt.Errorf("%s: %w: %w", op, ErrMalformed, ErrWrongPurpose)
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, fmt.Errorf("%s: %w", op, ErrExpired)
		}
		return nil, fmt.Errorf("%s: %w: %v", op, ErrMalformed, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Email == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrMalformed)
	}
	return claims, nil
}

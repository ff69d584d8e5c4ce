package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "spacebobble"

var (
	ErrInvalidToken = errors.New("auth: invalid token")
	ErrShortSecret  = errors.New("auth: secret key must be at least 32 bytes")
)

// Claims содержимое токена администратора
type Claims struct {
	Admin bool `json:"admin"`
	jwt.RegisteredClaims
}

// Issuer выпускает и проверяет HS256 токены
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer создаёт выпускающего с секретом в base64. Пустой секрет
// заменяется случайным: токены тогда живут до перезапуска процесса.
func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	var key []byte
	if secret == "" {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("генерация секрета: %w", err)
		}
	} else {
		decoded, err := base64.StdEncoding.DecodeString(secret)
		if err != nil {
			return nil, fmt.Errorf("секрет должен быть в base64: %w", err)
		}
		if len(decoded) < 32 {
			return nil, ErrShortSecret
		}
		key = decoded
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Issuer{secret: key, ttl: ttl, now: time.Now}, nil
}

// Issue выпускает токен для subject
func (i *Issuer) Issue(subject string, admin bool) (string, error) {
	now := i.now()
	claims := &Claims{
		Admin: admin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   subject,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// Validate проверяет подпись, срок действия и издателя
func (i *Issuer) Validate(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(i.now))
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// GenerateSecureSecret случайный секрет в base64 для конфигурации
func GenerateSecureSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return base64.StdEncoding.EncodeToString(b)
}

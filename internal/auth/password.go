package auth

import (
	"golang.org/x/crypto/bcrypt"
)

// HashPassword bcrypt-хэш пароля с DefaultCost
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword сверяет пароль с хэшем. Пустой хэш не подходит ни к чему.
func CheckPassword(hash string, password string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

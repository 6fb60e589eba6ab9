package validation

import (
	"regexp"

	"github.com/iudanet/infirmary/internal/models"
)

// UsernamePattern определяет допустимый формат username сотрудника
// Только латинские буквы, цифры, точка и нижнее подчеркивание
var UsernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.]+$`)

const (
	// MinUsernameLen минимальная длина username
	MinUsernameLen = 3
	// MaxUsernameLen максимальная длина username
	MaxUsernameLen = 32
	// MinPasswordLen минимальная длина пароля
	MinPasswordLen = 8
)

// ValidateUsername проверяет логин сотрудника медпункта
func ValidateUsername(username string) error {
	switch {
	case username == "":
		return models.NewValidationError("username", "cannot be empty")
	case len(username) < MinUsernameLen:
		return models.NewValidationError("username", "must be at least %d characters long", MinUsernameLen)
	case len(username) > MaxUsernameLen:
		return models.NewValidationError("username", "must not exceed %d characters", MaxUsernameLen)
	case !UsernamePattern.MatchString(username):
		return models.NewValidationError("username", "can only contain letters, numbers, dots and underscores")
	}
	return nil
}

// ValidatePassword проверяет минимальные требования к паролю
func ValidatePassword(password string) error {
	if password == "" {
		return models.NewValidationError("password", "cannot be empty")
	}
	if len(password) < MinPasswordLen {
		return models.NewValidationError("password", "must be at least %d characters long", MinPasswordLen)
	}
	return nil
}

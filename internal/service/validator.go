package service

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/mtlprog/teamtask/internal/domain"
)

const (
	maxTitleLength       = 200
	maxDescriptionLength = 5000
	maxProjectNameLength = 100
	maxUsernameLength    = 50
	minPasswordLength    = 8
	maxPasswordLength    = 72 // bcrypt ignores anything longer
)

// validateTitle trims and checks a task title.
func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", fmt.Errorf("%w: title is required", domain.ErrValidation)
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return "", fmt.Errorf("%w: title must be at most %d characters", domain.ErrValidation, maxTitleLength)
	}
	return title, nil
}

func validateDescription(description string) (string, error) {
	description = strings.TrimSpace(description)
	if utf8.RuneCountInString(description) > maxDescriptionLength {
		return "", fmt.Errorf("%w: description must be at most %d characters", domain.ErrValidation, maxDescriptionLength)
	}
	return description, nil
}

func validateProjectName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: project name is required", domain.ErrValidation)
	}
	if utf8.RuneCountInString(name) > maxProjectNameLength {
		return "", fmt.Errorf("%w: project name must be at most %d characters", domain.ErrValidation, maxProjectNameLength)
	}
	return name, nil
}

func validateUsername(username string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", fmt.Errorf("%w: username is required", domain.ErrValidation)
	}
	if utf8.RuneCountInString(username) > maxUsernameLength {
		return "", fmt.Errorf("%w: username must be at most %d characters", domain.ErrValidation, maxUsernameLength)
	}
	return username, nil
}

// normalizeEmail lowercases a bare address and rejects anything else,
// including display-name forms like "Alice <a@example.com>".
func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: invalid email address", domain.ErrValidation)
	}
	return email, nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", domain.ErrValidation, minPasswordLength)
	}
	if len(password) > maxPasswordLength {
		return fmt.Errorf("%w: password must be at most %d bytes", domain.ErrValidation, maxPasswordLength)
	}
	return nil
}

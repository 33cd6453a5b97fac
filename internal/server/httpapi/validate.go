package httpapi

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/codementor-ai/auth-service/internal/common"
	"github.com/codementor-ai/auth-service/internal/server/models"
	"github.com/codementor-ai/auth-service/internal/server/services"
)

var (
	emailPattern    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,30}$`)
)

// validateRegistration checks the registration payload. Length violations of
// the password map to WEAK_PASSWORD; everything else collects into a single
// VALIDATION_ERROR so clients see all problems at once.
func validateRegistration(req *registerRequest) *common.Error {
	var problems []string

	req.Email = strings.TrimSpace(req.Email)
	req.Username = strings.TrimSpace(req.Username)

	if !emailPattern.MatchString(req.Email) {
		problems = append(problems, "email must be a valid email address")
	}
	if !usernamePattern.MatchString(req.Username) {
		problems = append(problems, "username must be 3-30 characters of letters, digits, underscore or hyphen")
	}

	if len(req.Password) < services.MinPasswordLength {
		return common.ErrWeakPassword
	}
	if !hasPasswordComplexity(req.Password) {
		problems = append(problems, "password must contain a lowercase letter, an uppercase letter and a digit")
	}

	if req.InitialLanguage != "" && !models.IsSupportedLanguage(req.InitialLanguage) {
		problems = append(problems, "initialLanguage must be one of the supported languages")
	}

	if len(problems) > 0 {
		return common.Validation(strings.Join(problems, "; "))
	}
	return nil
}

func hasPasswordComplexity(password string) bool {
	var lower, upper, digit bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return lower && upper && digit
}

// validateLogin checks the login payload.
func validateLogin(req *loginRequest) *common.Error {
	var problems []string

	req.Email = strings.TrimSpace(req.Email)

	if req.Email == "" {
		problems = append(problems, "email is required")
	}
	if req.Password == "" {
		problems = append(problems, "password is required")
	}

	if len(problems) > 0 {
		return common.Validation(strings.Join(problems, "; "))
	}
	return nil
}

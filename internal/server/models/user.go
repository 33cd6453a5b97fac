// Package models defines the persistent entities of the auth service and the
// pure state transitions applied to them. Nothing in this package touches
// storage: lock accounting and assessment scoring are plain functions whose
// results the repositories apply atomically.
package models

import "time"

// Account lockout policy: after MaxLoginAttempts consecutive failures the
// account is locked for LockDuration. MaxRefreshTokens caps the number of
// concurrently valid refresh tokens per user.
const (
	MaxLoginAttempts = 5
	LockDuration     = 2 * time.Hour
	MaxRefreshTokens = 5
)

// Level is a user's learning level.
type Level string

const (
	LevelBeginner     Level = "beginner"
	LevelIntermediate Level = "intermediate"
	LevelAdvanced     Level = "advanced"
)

// SupportedLanguage is a programming language the platform teaches.
type SupportedLanguage string

const (
	LangPython     SupportedLanguage = "python"
	LangJavaScript SupportedLanguage = "javascript"
	LangJava       SupportedLanguage = "java"
	LangCpp        SupportedLanguage = "cpp"
	LangHTML       SupportedLanguage = "html"
	LangCSS        SupportedLanguage = "css"
)

// SupportedLanguages lists every valid SupportedLanguage value.
var SupportedLanguages = []SupportedLanguage{
	LangPython, LangJavaScript, LangJava, LangCpp, LangHTML, LangCSS,
}

// IsSupportedLanguage reports whether s names a supported language.
func IsSupportedLanguage(s string) bool {
	for _, l := range SupportedLanguages {
		if string(l) == s {
			return true
		}
	}
	return false
}

// Preferences holds a user's UI and explanation preferences.
// Stored as a single jsonb column.
type Preferences struct {
	ExplanationStyle   string              `json:"explanationStyle"`
	DetailLevel        string              `json:"detailLevel"`
	PreferredLanguages []SupportedLanguage `json:"preferredLanguages"`
	Theme              string              `json:"theme"`
	Notifications      bool                `json:"notifications"`
}

// DefaultPreferences returns the preferences assigned at registration.
func DefaultPreferences(initial SupportedLanguage) Preferences {
	return Preferences{
		ExplanationStyle:   "detailed",
		DetailLevel:        "basic",
		PreferredLanguages: []SupportedLanguage{initial},
		Theme:              "light",
		Notifications:      true,
	}
}

// Progress tracks a user's learning state.
type Progress struct {
	CompletedModules         []string
	CurrentLanguage          SupportedLanguage
	StreakDays               int
	TotalInteractions        int
	LastActiveDate           time.Time
	KnowledgeAssessmentScore *int
}

// User is the persistent account record. PasswordHash, lock accounting and
// refresh tokens must never leave the service; clients only ever see the
// Public view.
type User struct {
	ID            string
	Email         string
	Username      string
	PasswordHash  string
	LearningLevel Level
	Preferences   Preferences
	Progress      Progress
	EmailVerified bool
	LastLoginAt   *time.Time
	LoginAttempts int
	LockUntil     *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsLocked reports whether the account is locked at the given instant.
// The lock state is derived, never stored.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockUntil != nil && u.LockUntil.After(now)
}

// LoginAttemptUpdate describes the account-lock columns to write after a
// failed login. It is produced by NextFailedLogin from a snapshot of the
// record and applied by the repository with a compare-and-swap update.
type LoginAttemptUpdate struct {
	Attempts  int
	LockUntil *time.Time
}

// NextFailedLogin computes the lock transition for one more failed login
// observed at now:
//
//   - a previously set lock that has already expired is cleared and the
//     counter restarts at 1;
//   - otherwise the counter increments, and crossing MaxLoginAttempts on an
//     unlocked account sets the lock to now + LockDuration.
func NextFailedLogin(u *User, now time.Time) LoginAttemptUpdate {
	if u.LockUntil != nil && u.LockUntil.Before(now) {
		return LoginAttemptUpdate{Attempts: 1}
	}

	upd := LoginAttemptUpdate{Attempts: u.LoginAttempts + 1, LockUntil: u.LockUntil}
	if upd.Attempts >= MaxLoginAttempts && !u.IsLocked(now) {
		until := now.Add(LockDuration)
		upd.LockUntil = &until
	}
	return upd
}

// PublicUser is the sanitized view of a user record: no password hash, no
// refresh tokens, no lock accounting.
type PublicUser struct {
	UserID        string         `json:"userId"`
	Email         string         `json:"email"`
	Username      string         `json:"username"`
	LearningLevel Level          `json:"learningLevel"`
	Preferences   Preferences    `json:"preferences"`
	Progress      PublicProgress `json:"progress"`
	EmailVerified bool           `json:"emailVerified"`
	LastLoginAt   *time.Time     `json:"lastLoginAt,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// PublicProgress mirrors Progress with wire-format field names.
type PublicProgress struct {
	CompletedModules         []string          `json:"completedModules"`
	CurrentLanguage          SupportedLanguage `json:"currentLanguage"`
	StreakDays               int               `json:"streakDays"`
	TotalInteractions        int               `json:"totalInteractions"`
	LastActiveDate           time.Time         `json:"lastActiveDate"`
	KnowledgeAssessmentScore *int              `json:"knowledgeAssessmentScore,omitempty"`
}

// Public returns the sanitized client-facing view of the user.
func (u *User) Public() PublicUser {
	modules := u.Progress.CompletedModules
	if modules == nil {
		modules = []string{}
	}
	return PublicUser{
		UserID:        u.ID,
		Email:         u.Email,
		Username:      u.Username,
		LearningLevel: u.LearningLevel,
		Preferences:   u.Preferences,
		Progress: PublicProgress{
			CompletedModules:         modules,
			CurrentLanguage:          u.Progress.CurrentLanguage,
			StreakDays:               u.Progress.StreakDays,
			TotalInteractions:        u.Progress.TotalInteractions,
			LastActiveDate:           u.Progress.LastActiveDate,
			KnowledgeAssessmentScore: u.Progress.KnowledgeAssessmentScore,
		},
		EmailVerified: u.EmailVerified,
		LastLoginAt:   u.LastLoginAt,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

// Package services implements the application logic of the auth service:
// registration, login with account lockout, refresh-token rotation and the
// knowledge assessment.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

	"github.com/codementor-ai/auth-service/internal/common"
	"github.com/codementor-ai/auth-service/internal/dbx"
	"github.com/codementor-ai/auth-service/internal/logging"
	"github.com/codementor-ai/auth-service/internal/server/auth"
	"github.com/codementor-ai/auth-service/internal/server/config"
	"github.com/codementor-ai/auth-service/internal/server/metrics"
	"github.com/codementor-ai/auth-service/internal/server/models"
	"github.com/codementor-ai/auth-service/internal/server/repositories/repomanager"
)

// BcryptCost is the work factor for password hashing.
const BcryptCost = 12

// MinPasswordLength is the shortest password Register accepts.
const MinPasswordLength = 8

// failedLoginRetries bounds the compare-and-swap loop recording a failed
// login under concurrent attempts on the same account.
const failedLoginRetries = 3

// TokenPair is an access token plus the opaque refresh token issued with it.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// AuthService owns the session lifecycle. All methods return *common.Error
// values for expected failures; anything else is an infrastructure fault.
type AuthService struct {
	db                           *sql.DB
	repomanager                  repomanager.RepositoryManager
	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
	logger                       logging.Logger
	metrics                      *metrics.Metrics
	now                          func() time.Time
}

func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, logger logging.Logger, mtr *metrics.Metrics) *AuthService {
	return &AuthService{
		db:                           db,
		repomanager:                  m,
		jwtSecret:                    []byte(cfg.SecretKey),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
		logger:                       logger,
		metrics:                      mtr,
		now:                          time.Now,
	}
}

// Register creates a new account with default preferences and issues the
// first token pair. Email uniqueness is case-insensitive.
func (s *AuthService) Register(ctx context.Context, email, username, password string, initialLanguage models.SupportedLanguage) (*models.User, *TokenPair, error) {

	if len(password) < MinPasswordLength {
		return nil, nil, common.ErrWeakPassword
	}

	email = strings.ToLower(strings.TrimSpace(email))

	usersRepo := s.repomanager.Users(s.db)

	exists, err := usersRepo.ExistsByEmailOrUsername(ctx, email, username)
	if err != nil {
		return nil, nil, common.Internal("REGISTRATION_FAILED", "Failed to register user", err)
	}
	if exists {
		return nil, nil, common.ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return nil, nil, common.Internal("REGISTRATION_FAILED", "Failed to register user", err)
	}

	now := s.now()
	user := &models.User{
		ID:            uuid.NewString(),
		Email:         email,
		Username:      username,
		PasswordHash:  string(hash),
		LearningLevel: models.LevelBeginner,
		Preferences:   models.DefaultPreferences(initialLanguage),
		Progress: models.Progress{
			CompletedModules: []string{},
			CurrentLanguage:  initialLanguage,
			LastActiveDate:   now,
		},
	}

	var pair *TokenPair

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		created, err := s.repomanager.Users(tx).Create(ctx, user)
		if err != nil {
			return err
		}
		user = created

		pair, err = s.issueTokenPair(ctx, tx, user)
		return err
	})
	if err != nil {
		// A concurrent registration can slip past the existence check;
		// the unique indexes are authoritative.
		if isUniqueViolation(err) {
			return nil, nil, common.ErrUserExists
		}
		return nil, nil, common.Internal("REGISTRATION_FAILED", "Failed to register user", err)
	}

	s.metrics.RegistrationsTotal.Inc()
	s.logger.Info(ctx, "user registered", "user_id", user.ID)

	return user, pair, nil
}

// Login verifies credentials and issues a token pair. Failed attempts are
// counted per account; crossing the attempt threshold locks the account for
// models.LockDuration. A login against a locked account fails before the
// password is checked.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, *TokenPair, error) {

	email = strings.ToLower(strings.TrimSpace(email))

	usersRepo := s.repomanager.Users(s.db)

	user, err := usersRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.metrics.LoginsTotal.WithLabelValues(metrics.OutcomeFailure).Inc()
			return nil, nil, common.ErrInvalidCredentials
		}
		return nil, nil, common.Internal("LOGIN_FAILED", "Failed to login", err)
	}

	now := s.now()
	if user.IsLocked(now) {
		s.metrics.LoginsTotal.WithLabelValues(metrics.OutcomeLocked).Inc()
		return nil, nil, common.ErrAccountLocked
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		if err := s.recordFailedLogin(ctx, user); err != nil {
			s.logger.Error(ctx, "failed to record login attempt", "user_id", user.ID, "error", err)
		}
		s.metrics.LoginsTotal.WithLabelValues(metrics.OutcomeFailure).Inc()
		return nil, nil, common.ErrInvalidCredentials
	}

	var pair *TokenPair

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Users(tx).RecordLogin(ctx, user.ID, now); err != nil {
			return fmt.Errorf("error recording login: %w", err)
		}

		pair, err = s.issueTokenPair(ctx, tx, user)
		return err
	})
	if err != nil {
		return nil, nil, common.Internal("LOGIN_FAILED", "Failed to login", err)
	}

	user.LoginAttempts = 0
	user.LockUntil = nil
	user.LastLoginAt = &now
	user.Progress.LastActiveDate = now

	s.metrics.LoginsTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	s.logger.Info(ctx, "user logged in", "user_id", user.ID)

	return user, pair, nil
}

// recordFailedLogin applies the lock transition for one failed attempt. The
// write is guarded by the attempts value of the snapshot; when concurrent
// failures race, the losers re-read and retry so no attempt goes uncounted.
func (s *AuthService) recordFailedLogin(ctx context.Context, user *models.User) error {
	repo := s.repomanager.Users(s.db)

	for range failedLoginRetries {
		now := s.now()
		upd := models.NextFailedLogin(user, now)

		applied, err := repo.ApplyFailedLogin(ctx, user.ID, user.LoginAttempts, upd)
		if err != nil {
			return err
		}
		if applied {
			if upd.LockUntil != nil && !user.IsLocked(now) {
				s.metrics.LockoutsTotal.Inc()
				s.logger.Warn(ctx, "account locked", "user_id", user.ID, "until", upd.LockUntil)
			}
			return nil
		}

		user, err = repo.GetByID(ctx, user.ID)
		if err != nil {
			return err
		}
	}

	return errors.New("failed login update contended")
}

// RefreshToken rotates a refresh token: the presented token is atomically
// replaced by a fresh one in its slot and a new access token is issued.
// A token that was already rotated, expired or never issued is rejected.
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {

	repo := s.repomanager.RefreshTokens(s.db)

	token, err := repo.Find(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.metrics.TokenRefreshesTotal.WithLabelValues(metrics.OutcomeFailure).Inc()
			return nil, common.ErrInvalidRefreshToken
		}
		return nil, common.Internal("REFRESH_FAILED", "Failed to refresh token", err)
	}

	if token.ExpiresAt.Before(s.now()) {
		s.metrics.TokenRefreshesTotal.WithLabelValues(metrics.OutcomeFailure).Inc()
		s.logger.Debug(ctx, "refresh token expired", "user_id", token.UserID)
		return nil, common.ErrInvalidRefreshToken
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidRefreshToken
		}
		return nil, common.Internal("REFRESH_FAILED", "Failed to refresh token", err)
	}

	accessToken, err := auth.GenerateToken(user.ID, user.Email, user.Username, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, common.Internal("REFRESH_FAILED", "Failed to refresh token", err)
	}

	newRefreshToken, err := auth.NewRefreshToken()
	if err != nil {
		return nil, common.Internal("REFRESH_FAILED", "Failed to refresh token", err)
	}

	rotated, err := repo.Rotate(ctx, refreshToken, newRefreshToken, s.refreshTokenValidityDuration)
	if err != nil {
		return nil, common.Internal("REFRESH_FAILED", "Failed to refresh token", err)
	}
	if !rotated {
		// Lost the race to a concurrent rotation of the same token.
		s.metrics.TokenRefreshesTotal.WithLabelValues(metrics.OutcomeFailure).Inc()
		return nil, common.ErrInvalidRefreshToken
	}

	s.metrics.TokenRefreshesTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()

	return &TokenPair{AccessToken: accessToken, RefreshToken: newRefreshToken}, nil
}

// Logout revokes a refresh token. Logging out with a token that is unknown
// or already revoked succeeds; revocation is idempotent.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	repo := s.repomanager.RefreshTokens(s.db)

	if err := repo.Delete(ctx, refreshToken); err != nil {
		return common.Internal("LOGOUT_FAILED", "Failed to logout", err)
	}

	return nil
}

// GetUserByID returns the account record for the given ID.
func (s *AuthService) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrUserNotFound
		}
		return nil, common.Internal("GET_USER_FAILED", "Failed to get user", err)
	}
	return user, nil
}

// PerformKnowledgeAssessment scores the responses, derives the learning
// level and persists both on the user's record.
func (s *AuthService) PerformKnowledgeAssessment(ctx context.Context, userID string, responses []models.AssessmentResponse) (int, models.Level, error) {

	usersRepo := s.repomanager.Users(s.db)

	if _, err := usersRepo.GetByID(ctx, userID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return 0, "", common.ErrUserNotFound
		}
		return 0, "", common.Internal("ASSESSMENT_FAILED", "Failed to perform assessment", err)
	}

	score, level := models.ScoreAssessment(responses)

	if err := usersRepo.SaveAssessment(ctx, userID, score, level); err != nil {
		return 0, "", common.Internal("ASSESSMENT_FAILED", "Failed to perform assessment", err)
	}

	s.metrics.AssessmentsTotal.WithLabelValues(string(level)).Inc()
	s.logger.Info(ctx, "assessment completed", "user_id", userID, "score", score, "level", level)

	return score, level, nil
}

// issueTokenPair signs an access token and stores a fresh refresh token for
// the user, evicting the oldest token beyond the per-user cap.
func (s *AuthService) issueTokenPair(ctx context.Context, tx dbx.DBTX, user *models.User) (*TokenPair, error) {
	accessToken, err := auth.GenerateToken(user.ID, user.Email, user.Username, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, fmt.Errorf("error generating access token: %w", err)
	}

	refreshToken, err := auth.NewRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("error generating refresh token: %w", err)
	}

	repo := s.repomanager.RefreshTokens(tx)
	if err := repo.Create(ctx, user.ID, refreshToken, s.refreshTokenValidityDuration); err != nil {
		return nil, fmt.Errorf("error storing refresh token: %w", err)
	}

	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

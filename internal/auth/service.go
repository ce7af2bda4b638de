// Package auth authenticates API users with bcrypt passwords and JWT access
// tokens, and manages user accounts.
package auth

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore/entities"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore/repository"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/errors"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/logger"
)

// GetLogger returns the auth module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("auth")
}

// Sentinel errors for authentication failures.
var (
	ErrInvalidCredentials = errors.NewStd("invalid credentials")
	ErrInvalidToken       = errors.NewStd("invalid or expired token")
	ErrTooManyAttempts    = errors.NewStd("too many login attempts")
)

// Operation labels for auth metrics.
const (
	OpLogin = "login"
	OpToken = "token"
)

// Recorder receives authentication outcomes.
type Recorder interface {
	RecordAuthOperation(operation, status string)
}

// Session is the result of a successful login.
type Session struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	User      *entities.User `json:"-"`
}

// Service logs users in and resolves tokens to users.
type Service struct {
	db       *gorm.DB
	tokens   *TokenService
	limiter  *LoginLimiter
	recorder Recorder
	logger   logger.Logger
}

// NewService creates an auth service. limiter and recorder may be nil.
func NewService(db *gorm.DB, tokens *TokenService, limiter *LoginLimiter, recorder Recorder) *Service {
	if limiter == nil {
		limiter = NewLoginLimiter(0)
	}
	return &Service{
		db:       db,
		tokens:   tokens,
		limiter:  limiter,
		recorder: recorder,
		logger:   GetLogger(),
	}
}

func (s *Service) record(operation string, err error) {
	if s.recorder == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	s.recorder.RecordAuthOperation(operation, status)
}

// Login checks the credentials of username and issues a token. client
// identifies the caller for rate limiting.
func (s *Service) Login(ctx context.Context, client, username, password string) (session *Session, err error) {
	defer func() { s.record(OpLogin, err) }()

	if !s.limiter.Allow(client) {
		s.logger.Warn("login rate limited", logger.String("client", client))
		return nil, errors.New(ErrTooManyAttempts).
			Category(errors.CategoryRateLimit).
			Context("client", client).
			Build()
	}

	user, err := repository.NewUserRepository(s.db).GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}
	if user == nil || !CheckPassword(user.PasswordHash, password) {
		s.logger.Info("login failed", logger.String("username", username), logger.String("client", client))
		return nil, errors.New(ErrInvalidCredentials).Category(errors.CategoryUnauthorized).Build()
	}

	token, expires, err := s.tokens.Issue(user)
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategorySystem).
			Context("operation", "issue_token").
			Build()
	}
	s.logger.Info("user logged in", logger.Uint("user_id", user.ID))
	return &Session{Token: token, ExpiresAt: expires, User: user}, nil
}

// Authenticate resolves a bearer token to its user.
func (s *Service) Authenticate(ctx context.Context, token string) (user *entities.User, err error) {
	defer func() { s.record(OpToken, err) }()

	claims, err := s.tokens.Validate(token)
	if err != nil {
		return nil, errors.New(ErrInvalidToken).
			Category(errors.CategoryUnauthorized).
			Context("reason", err.Error()).
			Build()
	}
	id, err := claims.UserID()
	if err != nil {
		return nil, errors.New(ErrInvalidToken).Category(errors.CategoryUnauthorized).Build()
	}
	user, err = repository.NewUserRepository(s.db).GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, errors.New(ErrInvalidToken).Category(errors.CategoryUnauthorized).Build()
		}
		return nil, err
	}
	return user, nil
}

// CreateUserInput holds the fields of a new account.
type CreateUserInput struct {
	Username       string                   `json:"username"`
	Password       string                   `json:"password"`
	Email          string                   `json:"email"`
	FirstName      string                   `json:"first_name"`
	LastName       string                   `json:"last_name"`
	IsStaff        bool                     `json:"is_staff"`
	ExpertiseLevel *entities.ExpertiseLevel `json:"expertise_level"`
}

// CreateUser validates and stores a new account.
func (s *Service) CreateUser(ctx context.Context, in *CreateUserInput) (*entities.User, error) {
	fe := errors.FieldErrors{}
	username := strings.TrimSpace(in.Username)
	if username == "" {
		fe.Add("username", errors.CodeBlank, "This field may not be blank.")
	}
	if len(in.Password) < MinPasswordLength {
		fe.Addf("password", errors.CodeMinValue, "Ensure this field has at least %d characters.", MinPasswordLength)
	}
	if in.ExpertiseLevel != nil && !in.ExpertiseLevel.Valid() {
		fe.Addf("expertise_level", errors.CodeInvalid, "%q is not a valid choice.", *in.ExpertiseLevel)
	}
	if !fe.Empty() {
		return nil, errors.New(fe).Category(errors.CategoryValidation).Build()
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user := &entities.User{
		Username:       username,
		Email:          strings.TrimSpace(in.Email),
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		PasswordHash:   hash,
		IsStaff:        in.IsStaff,
		ExpertiseLevel: in.ExpertiseLevel,
	}
	if err := repository.NewUserRepository(s.db).Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, errors.Fields("username", errors.CodeUnique, "A user with that username already exists.")
		}
		return nil, err
	}
	s.logger.Info("user created", logger.Uint("user_id", user.ID), logger.Bool("is_staff", user.IsStaff))
	return user, nil
}

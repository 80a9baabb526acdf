package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-task-manager/internal/domain/entity"
	repo "github.com/oksasatya/go-task-manager/internal/domain/repository"
	"github.com/oksasatya/go-task-manager/pkg/helpers"
	"github.com/oksasatya/go-task-manager/pkg/mailer"
	mailtpl "github.com/oksasatya/go-task-manager/pkg/mailer/templates"
	"github.com/oksasatya/go-task-manager/pkg/metrics"
)

// JobPublisher enqueues background jobs; *helpers.RabbitPublisher
// implements it.
type JobPublisher interface {
	PublishJSON(ctx context.Context, body any) error
}

// AuthService registers users, checks credentials and issues access tokens.
type AuthService struct {
	Repo    repo.UserRepository
	JWT     *helpers.JWTManager
	Logger  *logrus.Logger
	Metrics *metrics.Collector
	// Pub, when set, receives a welcome email job after registration.
	Pub     JobPublisher
	AppName string
	// LoginURL is linked from the welcome email when set.
	LoginURL string
	// BcryptCost of new password hashes; out-of-range values use the default.
	BcryptCost int

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(repo repo.UserRepository, jwt *helpers.JWTManager, logger *logrus.Logger, bcryptCost int) *AuthService {
	return &AuthService{
		Repo:       repo,
		JWT:        jwt,
		Logger:     logger,
		BcryptCost: bcryptCost,
	}
}

type RegisterInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,pwd"`
	Name     string `json:"name" validate:"required"`
}

// AccessToken is the login result.
type AccessToken struct {
	AccessToken string     `json:"access_token"`
	TokenType   string     `json:"token_type"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// Identity is the caller resolved from a bearer token.
type Identity struct {
	UserID string
	Email  string
}

// sanitize returns a copy of u without the password hash.
func sanitize(u *entity.User) *entity.User {
	out := *u
	out.Password = ""
	return &out
}

// Register creates a user. A taken email is reported as ErrEmailTaken whether
// the lookup catches it or the store's uniqueness constraint does.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*entity.User, error) {
	if err := validate(in); err != nil {
		return nil, err
	}

	existing, err := s.Repo.GetByEmail(ctx, in.Email)
	switch {
	case err == nil && existing != nil:
		s.Metrics.RecordAuth("register", "conflict")
		return nil, ErrEmailTaken
	case err != nil && !errors.Is(err, repo.ErrNotFound):
		s.Metrics.RecordAuth("register", "error")
		return nil, fmt.Errorf("lookup email: %w", err)
	}

	hash, err := helpers.HashPasswordWithCost(in.Password, s.BcryptCost)
	if err != nil {
		s.Metrics.RecordAuth("register", "error")
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &entity.User{Email: in.Email, Password: hash, Name: in.Name}
	if err := s.Repo.Create(ctx, u); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			// lost a race with a concurrent registration
			s.Metrics.RecordAuth("register", "conflict")
			return nil, ErrEmailTaken
		}
		s.Metrics.RecordAuth("register", "error")
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.Metrics.RecordAuth("register", "ok")
	s.enqueueWelcome(ctx, u)
	return sanitize(u), nil
}

func (s *AuthService) enqueueWelcome(ctx context.Context, u *entity.User) {
	if s.Pub == nil {
		return
	}
	data := mailtpl.NewWelcomeData(s.AppName, u.Name, u.Email, mailtpl.WithTime(u.CreatedAt), mailtpl.WithLoginURL(s.LoginURL))
	job := mailer.EmailJob{To: u.Email, Template: mailtpl.Welcome, Data: mailtpl.ToMap(data)}
	if err := s.Pub.PublishJSON(ctx, job); err != nil && s.Logger != nil {
		s.Logger.WithError(err).WithField("user_id", u.ID).Warn("enqueue welcome email failed")
	}
}

// ValidateUser returns the user when password matches the stored hash and
// (nil, nil) otherwise. Unknown emails and wrong passwords are deliberately
// indistinguishable, including in timing.
func (s *AuthService) ValidateUser(ctx context.Context, email, password string) (*entity.User, error) {
	u, err := s.Repo.GetByEmail(ctx, email)
	if errors.Is(err, repo.ErrNotFound) {
		helpers.CompareHashAndPassword(s.fallbackHash(), password)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !helpers.CompareHashAndPassword(u.Password, password) {
		return nil, nil
	}
	return sanitize(u), nil
}

// fallbackHash is compared against when the email is unknown so that both
// failure paths pay for one bcrypt comparison.
func (s *AuthService) fallbackHash() string {
	s.dummyOnce.Do(func() {
		h, err := helpers.HashPasswordWithCost("not-a-real-password", s.BcryptCost)
		if err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}

// Login issues an access token encoding the user's id and email.
func (s *AuthService) Login(ctx context.Context, u *entity.User) (*AccessToken, error) {
	tok, exp, err := s.JWT.GenerateAccessToken(u.ID, u.Email)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", u.ID).Error("generate access token failed")
		}
		return nil, err
	}
	out := &AccessToken{AccessToken: tok, TokenType: "Bearer"}
	if !exp.IsZero() {
		out.ExpiresAt = &exp
	}
	return out, nil
}

// Authenticate validates email/password and issues a token.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*AccessToken, error) {
	u, err := s.ValidateUser(ctx, email, password)
	if err != nil {
		s.Metrics.RecordAuth("login", "error")
		return nil, err
	}
	if u == nil {
		s.Metrics.RecordAuth("login", "invalid_credentials")
		return nil, ErrInvalidCredentials
	}
	tok, err := s.Login(ctx, u)
	if err != nil {
		s.Metrics.RecordAuth("login", "error")
		return nil, err
	}
	s.Metrics.RecordAuth("login", "ok")
	return tok, nil
}

// Identify verifies a bearer token and returns the identity it carries.
func (s *AuthService) Identify(token string) (*Identity, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	claims, err := s.JWT.ParseAccessToken(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return &Identity{UserID: claims.UserID, Email: claims.Email}, nil
}

// GetUser returns the user without the password hash.
func (s *AuthService) GetUser(ctx context.Context, userID string) (*entity.User, error) {
	u, err := s.Repo.GetByID(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return sanitize(u), nil
}

package app

import (
	"context"
	"strings"

	"greenplay-service/internal/auth"
	"greenplay-service/internal/domain"
)

// AccountService registers and authenticates users.
type AccountService struct {
	store       Store
	tokens      *auth.TokenManager
	emailDomain string
	clock       Clock
}

func NewAccountService(store Store, tokens *auth.TokenManager, emailDomain string, clock Clock) *AccountService {
	return &AccountService{store: store, tokens: tokens, emailDomain: emailDomain, clock: clock}
}

// Registration is the sign-up payload.
type Registration struct {
	Email     string `json:"email" binding:"required"`
	Password  string `json:"password" binding:"required"`
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
	StudentID string `json:"studentId" binding:"required"`
	Faculty   string `json:"faculty" binding:"required"`
}

// Session is an issued token and the user it belongs to.
type Session struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

// Register creates a student together with its zeroed stats.
func (s *AccountService) Register(ctx context.Context, r Registration) (Session, error) {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.StudentID = strings.TrimSpace(r.StudentID)
	r.Faculty = strings.TrimSpace(r.Faculty)
	if r.FirstName == "" || r.LastName == "" || r.StudentID == "" || r.Faculty == "" {
		return Session{}, domain.Validation("firstName, lastName, studentId and faculty are required")
	}
	if err := auth.ValidateEmail(r.Email, s.emailDomain); err != nil {
		return Session{}, err
	}
	if err := auth.ValidatePassword(r.Password); err != nil {
		return Session{}, err
	}
	hash, err := auth.HashPassword(r.Password)
	if err != nil {
		return Session{}, err
	}

	now := s.clock.now()
	user := domain.User{
		Email:        r.Email,
		PasswordHash: hash,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		StudentID:    r.StudentID,
		Faculty:      r.Faculty,
		Role:         domain.RoleStudent,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.CreateUser(ctx, &user)
	})
	if err != nil {
		return Session{}, err
	}
	return s.issue(user)
}

// Login exchanges credentials for a token.
func (s *AccountService) Login(ctx context.Context, email, password string) (Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return Session{}, domain.Validation("email and password are required")
	}
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if domain.IsNotFound(err) {
			return Session{}, domain.Unauthorized("invalid email or password")
		}
		return Session{}, err
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return Session{}, domain.Unauthorized("invalid email or password")
	}
	return s.issue(user)
}

// Me returns the authenticated user.
func (s *AccountService) Me(ctx context.Context, userID int64) (domain.User, error) {
	return s.store.GetUser(ctx, userID)
}

// Authenticate resolves a bearer token to its claims.
func (s *AccountService) Authenticate(token string) (auth.Claims, error) {
	return s.tokens.Parse(token)
}

func (s *AccountService) issue(user domain.User) (Session, error) {
	token, err := s.tokens.Issue(user)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, User: user}, nil
}

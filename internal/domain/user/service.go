// internal/domain/user/service.go
package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/drinksharbour/drinksharbour-api/internal/config"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/cart"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/apperrors"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/auth"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/email"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// CartMerger folds a guest cart into a user's cart after sign in
type CartMerger interface {
	MergeGuestCart(ctx context.Context, userID uint, sessionID string) (*cart.CartResponse, error)
}

// Service handles user business logic
type Service struct {
	db              *gorm.DB
	config          *config.Config
	passwordManager *auth.PasswordManager
	jwtManager      *auth.JWTManager
	carts           CartMerger
	emailService    *email.EmailService
	logger          *logrus.Entry
	now             func() time.Time
}

// NewService creates a new user service
func NewService(db *gorm.DB, cfg *config.Config, carts CartMerger, emails *email.EmailService, logger *logrus.Entry) *Service {
	return &Service{
		db:              db,
		config:          cfg,
		passwordManager: auth.NewPasswordManager(cfg),
		jwtManager:      auth.NewJWTManager(cfg),
		carts:           carts,
		emailService:    emails,
		logger:          logger,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// RegisterRequest represents user registration data
type RegisterRequest struct {
	Email           string `json:"email" binding:"required,email,max=255"`
	Password        string `json:"password" binding:"required,min=8,max=72"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
	FirstName       string `json:"first_name" binding:"required,max=100"`
	LastName        string `json:"last_name" binding:"required,max=100"`
	Phone           string `json:"phone" binding:"max=20"`
	DateOfBirth     string `json:"date_of_birth" binding:"omitempty,datetime=2006-01-02"`
}

// LoginRequest represents user login data
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// UpdateProfileRequest represents profile changes; nil fields are left untouched
type UpdateProfileRequest struct {
	FirstName   *string `json:"first_name" binding:"omitempty,max=100"`
	LastName    *string `json:"last_name" binding:"omitempty,max=100"`
	Phone       *string `json:"phone" binding:"omitempty,max=20"`
	Avatar      *string `json:"avatar" binding:"omitempty,url,max=500"`
	DateOfBirth *string `json:"date_of_birth" binding:"omitempty,datetime=2006-01-02"`
}

// ChangePasswordRequest represents a password change
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8,max=72"`
	ConfirmPassword string `json:"confirm_password" binding:"required,eqfield=NewPassword"`
}

// AuthResponse represents authentication response
type AuthResponse struct {
	User         *User  `json:"user"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Register creates a customer account. sessionID, when set, names a guest cart to adopt.
func (s *Service) Register(ctx context.Context, req *RegisterRequest, sessionID string) (*AuthResponse, error) {
	// Validate password confirmation
	if req.Password != req.ConfirmPassword {
		return nil, apperrors.New(apperrors.CodeValidation, "passwords do not match")
	}
	if err := s.passwordManager.ValidatePassword(req.Password); err != nil {
		return nil, apperrors.New(apperrors.CodeValidation, err.Error())
	}

	dob, err := s.parseBirthDate(req.DateOfBirth)
	if err != nil {
		return nil, err
	}

	// Hash password
	hashedPassword, err := s.passwordManager.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	user := User{
		Email:       req.Email,
		Password:    hashedPassword,
		FirstName:   strings.TrimSpace(req.FirstName),
		LastName:    strings.TrimSpace(req.LastName),
		Phone:       req.Phone,
		DateOfBirth: dob,
		Role:        auth.RoleCustomer,
		IsActive:    true,
		LastLoginAt: &now,
	}

	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.New(apperrors.CodeConflict, "user with this email already exists")
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.WithField("user_id", user.ID).Info("user registered")

	name, address := user.GetDisplayName(), user.Email
	s.emailService.Async(email.EmailTypeWelcome, func(ctx context.Context) error {
		return s.emailService.SendWelcomeEmail(ctx, address, name)
	})

	s.mergeCart(ctx, user.ID, sessionID)
	return s.issueTokens(&user)
}

// Login authenticates a user
func (s *Service) Login(ctx context.Context, req *LoginRequest, sessionID string) (*AuthResponse, error) {
	var user User
	err := s.db.WithContext(ctx).
		Where("email = ? AND is_active = ?", strings.ToLower(strings.TrimSpace(req.Email)), true).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.CodeUnauthorized, "invalid email or password")
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	// Verify password
	if err := s.passwordManager.VerifyPassword(req.Password, user.Password); err != nil {
		return nil, apperrors.New(apperrors.CodeUnauthorized, "invalid email or password")
	}

	// Update last login
	now := s.now()
	user.LastLoginAt = &now
	if err := s.db.WithContext(ctx).Model(&user).UpdateColumn("last_login_at", now).Error; err != nil {
		s.logger.WithError(err).WithField("user_id", user.ID).Warn("failed to record last login")
	}

	s.mergeCart(ctx, user.ID, sessionID)
	return s.issueTokens(&user)
}

// RefreshToken issues a new token pair from a refresh token.
// Role and tenant are reloaded so revoked privileges do not survive a refresh.
func (s *Service) RefreshToken(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	claims, err := s.jwtManager.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeUnauthorized, err, "invalid refresh token")
	}

	user, err := s.activeUser(ctx, claims.UserID)
	if err != nil {
		if apperrors.Is(err, apperrors.CodeNotFound) {
			return nil, apperrors.New(apperrors.CodeUnauthorized, "user not found or inactive")
		}
		return nil, err
	}
	return s.issueTokens(user)
}

// GetProfile gets user profile by ID
func (s *Service) GetProfile(ctx context.Context, userID uint) (*User, error) {
	return s.activeUser(ctx, userID)
}

// UpdateProfile updates user profile
func (s *Service) UpdateProfile(ctx context.Context, userID uint, req *UpdateProfileRequest) (*User, error) {
	user, err := s.activeUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.FirstName != nil {
		updates["first_name"] = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		updates["last_name"] = strings.TrimSpace(*req.LastName)
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if req.Avatar != nil {
		updates["avatar"] = *req.Avatar
	}
	if req.DateOfBirth != nil {
		dob, err := s.parseBirthDate(*req.DateOfBirth)
		if err != nil {
			return nil, err
		}
		updates["date_of_birth"] = dob
	}
	if len(updates) == 0 {
		return user, nil
	}

	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return s.activeUser(ctx, userID)
}

// ChangePassword changes user password after verifying current password
func (s *Service) ChangePassword(ctx context.Context, userID uint, req *ChangePasswordRequest) error {
	var user User
	if err := s.db.WithContext(ctx).Where("id = ? AND is_active = ?", userID, true).First(&user).Error; err != nil {
		return apperrors.FromGorm(err, "user")
	}

	// Verify current password
	if err := s.passwordManager.VerifyPassword(req.CurrentPassword, user.Password); err != nil {
		return apperrors.New(apperrors.CodeUnauthorized, "current password is incorrect")
	}
	if req.NewPassword != req.ConfirmPassword {
		return apperrors.New(apperrors.CodeValidation, "passwords do not match")
	}
	if err := s.passwordManager.ValidatePassword(req.NewPassword); err != nil {
		return apperrors.New(apperrors.CodeValidation, err.Error())
	}

	// Hash new password
	hashedPassword, err := s.passwordManager.HashPassword(req.NewPassword)
	if err != nil {
		return fmt.Errorf("failed to hash new password: %w", err)
	}

	if err := s.db.WithContext(ctx).Model(&user).Update("password", hashedPassword).Error; err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	s.logger.WithField("user_id", userID).Info("password changed")
	return nil
}

func (s *Service) activeUser(ctx context.Context, userID uint) (*User, error) {
	var user User
	if err := s.db.WithContext(ctx).Where("id = ? AND is_active = ?", userID, true).First(&user).Error; err != nil {
		return nil, apperrors.FromGorm(err, "user")
	}
	return &user, nil
}

// parseBirthDate enforces the legal drinking age when a birth date is given
func (s *Service) parseBirthDate(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	dob, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, apperrors.New(apperrors.CodeValidation, "date_of_birth must be formatted YYYY-MM-DD")
	}

	legalAge := s.config.Marketplace.LegalDrinkingAge
	if legalAge <= 0 {
		legalAge = 21
	}
	if AgeOn(dob, s.now()) < legalAge {
		return nil, apperrors.Newf(apperrors.CodeValidation, "you must be at least %d years old", legalAge)
	}
	return &dob, nil
}

func (s *Service) mergeCart(ctx context.Context, userID uint, sessionID string) {
	if sessionID == "" || s.carts == nil {
		return
	}
	if _, err := s.carts.MergeGuestCart(ctx, userID, sessionID); err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Warn("failed to merge guest cart")
	}
}

func (s *Service) issueTokens(user *User) (*AuthResponse, error) {
	accessToken, err := s.jwtManager.GenerateAccessToken(user.Principal())
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err := s.jwtManager.GenerateRefreshToken(user.Principal())
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return &AuthResponse{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.config.JWT.AccessTokenExpiry.Seconds()),
	}, nil
}

package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"

	"storyhub/internal/repository"
	"storyhub/pkg/logger"
	"storyhub/pkg/models"
	"storyhub/pkg/utils"
)

// AuthService defines account and session operations
type AuthService interface {
	Signup(ctx context.Context, req models.SignupRequest) (*models.LoginResponse, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error)
	ValidateToken(ctx context.Context, tokenString string) (*models.User, error)
	// GetProfile resolves idOrName as an id first, then as a display name
	GetProfile(ctx context.Context, idOrName string) (*models.User, error)
	UpdateProfile(ctx context.Context, userID string, req models.UpdateProfileRequest) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
	AdminAction(ctx context.Context, actor *models.User, action models.AdminActionType, targetID string) (*models.User, error)
	// EnsureBootstrapAdmin creates the reserved administrator if it is missing
	EnsureBootstrapAdmin(ctx context.Context, password string) error
}

// AuthOptions configure token issuing and login behaviour
type AuthOptions struct {
	JWTSecret string
	JWTIssuer string
	JWTExpiry time.Duration
	// AutoProvision creates a plain user for an unknown login id instead of failing
	AutoProvision bool
}

type authService struct {
	userRepo repository.UserRepository
	opts     AuthOptions
}

// JWT claims structure
type jwtClaims struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// NewAuthService creates a new authentication service
func NewAuthService(userRepo repository.UserRepository, opts AuthOptions) AuthService {
	if opts.JWTExpiry <= 0 {
		opts.JWTExpiry = 24 * time.Hour
	}
	return &authService{userRepo: userRepo, opts: opts}
}

// Signup creates an account and signs it in
func (s *authService) Signup(ctx context.Context, req models.SignupRequest) (*models.LoginResponse, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}

	exists, err := s.userRepo.ExistsByEmailOrName(ctx, req.Email, req.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to check identity: %w", err)
	}
	if exists {
		return nil, models.ErrIdentityTaken
	}

	role := models.UserRoleUser
	if req.IsTranslator {
		role = models.UserRoleTranslator
	}
	user, err := s.createUser(ctx, req.Name, req.Email, req.Password, role)
	if err != nil {
		return nil, err
	}
	return s.session(user)
}

// Login accepts an email or a display name as login id
func (s *authService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	loginID := strings.TrimSpace(req.LoginID)
	if loginID == "" || req.Password == "" {
		return nil, models.ErrInvalidCredentials
	}

	user, err := s.userRepo.GetByLogin(ctx, loginID)
	if errors.Is(err, models.ErrUserNotFound) && s.opts.AutoProvision {
		return s.provision(ctx, loginID, req.Password)
	}
	if err != nil {
		return nil, models.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, models.ErrInvalidCredentials
	}
	return s.session(user)
}

// provision signs up an unknown login id on the fly. A login id that looks like an
// email becomes the email; otherwise it becomes the name with a placeholder email.
func (s *authService) provision(ctx context.Context, loginID, password string) (*models.LoginResponse, error) {
	name, email := loginID, ""
	if strings.Contains(loginID, "@") {
		email = strings.ToLower(loginID)
		name = strings.SplitN(loginID, "@", 2)[0]
	}
	if email == "" {
		email = strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@users.storyhub.local"
	}
	user, err := s.createUser(ctx, name, email, password, models.UserRoleUser)
	if err != nil {
		return nil, err
	}
	logger.WithFields(map[string]interface{}{"user_id": user.ID}).Info("auto-provisioned account on login")
	return s.session(user)
}

func (s *authService) createUser(ctx context.Context, name, email, password string, role models.UserRole) (*models.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user := &models.User{
		ID:           utils.GenerateUserID(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hashedPassword),
		Role:         role,
		JoinedAt:     time.Now().UTC(),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// ValidateToken verifies a JWT token and returns the current state of its user
func (s *authService) ValidateToken(ctx context.Context, tokenString string) (*models.User, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwtClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.opts.JWTSecret), nil
	})
	if err != nil {
		return nil, models.ErrInvalidToken
	}

	claims, ok := token.Claims.(*jwtClaims)
	if !ok || !token.Valid {
		return nil, models.ErrInvalidToken
	}

	// Roles may have changed since the token was issued
	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, models.ErrInvalidToken
	}
	return user, nil
}

func (s *authService) GetProfile(ctx context.Context, idOrName string) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, idOrName)
	if errors.Is(err, models.ErrUserNotFound) {
		user, err = s.userRepo.GetByName(ctx, idOrName)
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *authService) UpdateProfile(ctx context.Context, userID string, req models.UpdateProfileRequest) (*models.User, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.IsBootstrapAdmin() && req.Name != user.Name {
		return nil, models.ErrProtectedUser
	}
	if req.Name != user.Name {
		other, err := s.userRepo.GetByName(ctx, req.Name)
		if err == nil && other.ID != user.ID {
			return nil, models.ErrIdentityTaken
		}
		if err != nil && !errors.Is(err, models.ErrUserNotFound) {
			return nil, fmt.Errorf("failed to check name: %w", err)
		}
	}

	user.Name = req.Name
	user.Description = req.Description
	user.Avatar = req.Avatar
	user.Cover = req.Cover
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return user, nil
}

func (s *authService) ListUsers(ctx context.Context) ([]*models.User, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// AdminAction applies a moderation action. The bootstrap administrator is immune to all of them.
func (s *authService) AdminAction(ctx context.Context, actor *models.User, action models.AdminActionType, targetID string) (*models.User, error) {
	if actor == nil || actor.Role != models.UserRoleAdmin {
		return nil, models.ErrForbidden
	}

	target, err := s.userRepo.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if target.IsBootstrapAdmin() {
		return nil, models.NewHTTPError(models.ErrCodeForbidden, models.ErrProtectedUser.Error(), http.StatusForbidden, models.ErrProtectedUser)
	}

	switch action {
	case models.AdminActionDeleteUser:
		if err := s.userRepo.Delete(ctx, target.ID); err != nil {
			return nil, fmt.Errorf("failed to delete user: %w", err)
		}
		return target, nil
	case models.AdminActionToggleRole:
		if target.Role == models.UserRoleAdmin {
			target.Role = models.UserRoleUser
		} else {
			target.Role = models.UserRoleAdmin
		}
	case models.AdminActionToggleVerify:
		target.IsVerified = !target.IsVerified
	default:
		return nil, fmt.Errorf("unknown admin action %q: %w", action, models.ErrInvalidInput)
	}

	if err := s.userRepo.Update(ctx, target); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	logger.WithFields(map[string]interface{}{
		"actor":  actor.ID,
		"target": target.ID,
		"action": action,
	}).Info("admin action applied")
	return target, nil
}

func (s *authService) EnsureBootstrapAdmin(ctx context.Context, password string) error {
	_, err := s.userRepo.GetByID(ctx, models.BootstrapAdminID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, models.ErrUserNotFound) {
		return fmt.Errorf("failed to look up bootstrap admin: %w", err)
	}
	if password == "" {
		logger.Warn("bootstrap admin missing and auth.bootstrap_admin_password is empty, skipping")
		return nil
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	admin := &models.User{
		ID:           models.BootstrapAdminID,
		Name:         models.BootstrapAdminName,
		Email:        "admin@storyhub.local",
		PasswordHash: string(hashedPassword),
		Role:         models.UserRoleAdmin,
		IsVerified:   true,
		JoinedAt:     time.Now().UTC(),
	}
	if err := s.userRepo.Create(ctx, admin); err != nil {
		return fmt.Errorf("failed to create bootstrap admin: %w", err)
	}
	logger.Info("bootstrap admin created")
	return nil
}

func (s *authService) session(user *models.User) (*models.LoginResponse, error) {
	token, expiresAt, err := s.generateToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return &models.LoginResponse{
		Token:     token,
		User:      user,
		ExpiresIn: int(time.Until(expiresAt).Seconds()),
	}, nil
}

// generateToken creates a new JWT token for a user
func (s *authService) generateToken(user *models.User) (string, time.Time, error) {
	expiresAt := time.Now().Add(s.opts.JWTExpiry)

	claims := &jwtClaims{
		UserID: user.ID,
		Name:   user.Name,
		Role:   string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    s.opts.JWTIssuer,
			Subject:   user.ID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.opts.JWTSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

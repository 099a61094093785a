package core

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyhub/internal/repository"
	"storyhub/pkg/database"
	"storyhub/pkg/models"
)

func newAuthService(t *testing.T, autoProvision bool) (AuthService, repository.UserRepository) {
	t.Helper()
	db, err := database.Open(database.Config{
		Driver: database.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "users.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db))

	repo := repository.NewSQLUserRepository(db)
	svc := NewAuthService(repo, AuthOptions{
		JWTSecret:     "test-secret",
		JWTIssuer:     "storyhub-test",
		JWTExpiry:     time.Hour,
		AutoProvision: autoProvision,
	})
	return svc, repo
}

func TestSignupAndLogin(t *testing.T) {
	ctx := context.Background()
	svc, _ := newAuthService(t, false)

	resp, err := svc.Signup(ctx, models.SignupRequest{Name: "Kuma", Email: "Kuma@Example.com", Password: "secret123", IsTranslator: true})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, models.UserRoleTranslator, resp.User.Role)
	assert.Equal(t, "kuma@example.com", resp.User.Email)

	byEmail, err := svc.Login(ctx, models.LoginRequest{LoginID: "kuma@example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, byEmail.User.ID)

	byName, err := svc.Login(ctx, models.LoginRequest{LoginID: "Kuma", Password: "secret123"})
	require.NoError(t, err)

	user, err := svc.ValidateToken(ctx, byName.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, user.ID)

	_, err = svc.Login(ctx, models.LoginRequest{LoginID: "Kuma", Password: "wrong"})
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	_, err = svc.Login(ctx, models.LoginRequest{LoginID: "nobody", Password: "secret123"})
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
}

func TestSignupRejectsTakenIdentity(t *testing.T) {
	ctx := context.Background()
	svc, _ := newAuthService(t, false)

	_, err := svc.Signup(ctx, models.SignupRequest{Name: "Kuma", Email: "kuma@example.com", Password: "secret123"})
	require.NoError(t, err)

	_, err = svc.Signup(ctx, models.SignupRequest{Name: "Other", Email: "kuma@example.com", Password: "secret123"})
	assert.ErrorIs(t, err, models.ErrIdentityTaken)
	_, err = svc.Signup(ctx, models.SignupRequest{Name: "Kuma", Email: "other@example.com", Password: "secret123"})
	assert.ErrorIs(t, err, models.ErrIdentityTaken)

	_, err = svc.Signup(ctx, models.SignupRequest{Name: "X", Email: "not-an-email", Password: "1"})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestValidateTokenRejectsForeignTokens(t *testing.T) {
	ctx := context.Background()
	svc, repo := newAuthService(t, false)
	other := NewAuthService(repo, AuthOptions{JWTSecret: "another-secret"})

	resp, err := other.Signup(ctx, models.SignupRequest{Name: "Kuma", Email: "kuma@example.com", Password: "secret123"})
	require.NoError(t, err)

	_, err = svc.ValidateToken(ctx, resp.Token)
	assert.ErrorIs(t, err, models.ErrInvalidToken)
	_, err = svc.ValidateToken(ctx, "garbage")
	assert.ErrorIs(t, err, models.ErrInvalidToken)
}

func TestLoginAutoProvision(t *testing.T) {
	ctx := context.Background()
	svc, _ := newAuthService(t, true)

	resp, err := svc.Login(ctx, models.LoginRequest{LoginID: "neko@example.com", Password: "meow1234"})
	require.NoError(t, err)
	assert.Equal(t, models.UserRoleUser, resp.User.Role)
	assert.Equal(t, "neko", resp.User.Name)

	again, err := svc.Login(ctx, models.LoginRequest{LoginID: "neko", Password: "meow1234"})
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, again.User.ID)
}

func TestGetProfileIDThenName(t *testing.T) {
	ctx := context.Background()
	svc, _ := newAuthService(t, false)

	resp, err := svc.Signup(ctx, models.SignupRequest{Name: "Kuma", Email: "kuma@example.com", Password: "secret123"})
	require.NoError(t, err)

	byID, err := svc.GetProfile(ctx, resp.User.ID)
	require.NoError(t, err)
	byName, err := svc.GetProfile(ctx, "Kuma")
	require.NoError(t, err)
	assert.Equal(t, byID.ID, byName.ID)

	_, err = svc.GetProfile(ctx, "ghost")
	assert.True(t, errors.Is(err, models.ErrUserNotFound))
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	svc, _ := newAuthService(t, false)

	kuma, err := svc.Signup(ctx, models.SignupRequest{Name: "Kuma", Email: "kuma@example.com", Password: "secret123"})
	require.NoError(t, err)
	_, err = svc.Signup(ctx, models.SignupRequest{Name: "Neko", Email: "neko@example.com", Password: "secret123"})
	require.NoError(t, err)

	updated, err := svc.UpdateProfile(ctx, kuma.User.ID, models.UpdateProfileRequest{Name: "Kuma Bear", Description: "translator of cozy stories"})
	require.NoError(t, err)
	assert.Equal(t, "Kuma Bear", updated.Name)

	_, err = svc.UpdateProfile(ctx, kuma.User.ID, models.UpdateProfileRequest{Name: "Neko"})
	assert.ErrorIs(t, err, models.ErrIdentityTaken)
}

func TestAdminActions(t *testing.T) {
	ctx := context.Background()
	svc, _ := newAuthService(t, false)
	require.NoError(t, svc.EnsureBootstrapAdmin(ctx, "admin-pass"))
	require.NoError(t, svc.EnsureBootstrapAdmin(ctx, "admin-pass"), "second call is a no-op")

	admin, err := svc.Login(ctx, models.LoginRequest{LoginID: models.BootstrapAdminName, Password: "admin-pass"})
	require.NoError(t, err)
	assert.Equal(t, models.UserRoleAdmin, admin.User.Role)

	kuma, err := svc.Signup(ctx, models.SignupRequest{Name: "Kuma", Email: "kuma@example.com", Password: "secret123"})
	require.NoError(t, err)

	target, err := svc.AdminAction(ctx, admin.User, models.AdminActionToggleRole, kuma.User.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UserRoleAdmin, target.Role)

	target, err = svc.AdminAction(ctx, admin.User, models.AdminActionToggleRole, kuma.User.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UserRoleUser, target.Role)

	target, err = svc.AdminAction(ctx, admin.User, models.AdminActionToggleVerify, kuma.User.ID)
	require.NoError(t, err)
	assert.True(t, target.IsVerified)

	_, err = svc.AdminAction(ctx, kuma.User, models.AdminActionDeleteUser, admin.User.ID)
	assert.ErrorIs(t, err, models.ErrForbidden)

	for _, action := range []models.AdminActionType{models.AdminActionDeleteUser, models.AdminActionToggleRole} {
		_, err = svc.AdminAction(ctx, admin.User, action, models.BootstrapAdminID)
		assert.ErrorIs(t, err, models.ErrProtectedUser)
	}

	_, err = svc.AdminAction(ctx, admin.User, "ban_forever", kuma.User.ID)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = svc.AdminAction(ctx, admin.User, models.AdminActionDeleteUser, kuma.User.ID)
	require.NoError(t, err)

	users, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, models.BootstrapAdminID, users[0].ID)
}

// internal/services/auth_service_test.go
package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/licenseloom/loom-backend/internal/models"
	"github.com/licenseloom/loom-backend/internal/utils"
)

type AuthTestSuite struct {
	suite.Suite
	db   *gorm.DB
	auth *AuthService
}

func (s *AuthTestSuite) SetupTest() {
	s.db = newTestDB(s.T())
	cfg := newTestConfig()
	utils.SetJWTSecret(cfg.JWT.SecretKey)
	s.auth = NewAuthService(s.db, cfg)
}

func (s *AuthTestSuite) register(username, email string) *AuthResponse {
	response, err := s.auth.Register(&RegisterRequest{
		Username: username,
		Email:    email,
		Password: "TestPass123!",
		UserType: models.UserTypeCreator,
	})
	require.NoError(s.T(), err)
	return response
}

func (s *AuthTestSuite) TestRegisterAndLogin() {
	registered := s.register("alice_creator", "alice@example.com")
	assert.NotEmpty(s.T(), registered.AccessToken)
	assert.Equal(s.T(), "Bearer", registered.TokenType)

	response, err := s.auth.Login(&LoginRequest{
		Email:    "alice@example.com",
		Password: "TestPass123!",
	})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), registered.User.ID, response.User.ID)

	claims, err := utils.ValidateJWT(response.AccessToken)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), registered.User.ID.String(), claims.UserID)
	assert.Equal(s.T(), string(models.UserTypeCreator), claims.UserType)
}

func (s *AuthTestSuite) TestLoginWrongPassword() {
	s.register("alice_creator", "alice@example.com")

	_, err := s.auth.Login(&LoginRequest{
		Email:    "alice@example.com",
		Password: "WrongPass123!",
	})
	assert.Error(s.T(), err)
}

func (s *AuthTestSuite) TestRegisterDuplicateEmail() {
	s.register("alice_creator", "alice@example.com")

	_, err := s.auth.Register(&RegisterRequest{
		Username: "other_name",
		Email:    "alice@example.com",
		Password: "TestPass123!",
		UserType: models.UserTypeMember,
	})
	assert.Error(s.T(), err)
}

func (s *AuthTestSuite) TestRegisterRejectsAdminType() {
	_, err := s.auth.Register(&RegisterRequest{
		Username: "wannabe_admin",
		Email:    "admin2@example.com",
		Password: "TestPass123!",
		UserType: models.UserTypeAdmin,
	})
	assert.Error(s.T(), err)
}

func (s *AuthTestSuite) TestRegisterRejectsWeakPassword() {
	_, err := s.auth.Register(&RegisterRequest{
		Username: "alice_creator",
		Email:    "alice@example.com",
		Password: "weak",
		UserType: models.UserTypeCreator,
	})
	assert.Error(s.T(), err)
}

func (s *AuthTestSuite) TestRefreshToken() {
	registered := s.register("alice_creator", "alice@example.com")

	response, err := s.auth.RefreshToken(registered.RefreshToken)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), registered.User.ID, response.User.ID)
	assert.NotEmpty(s.T(), response.AccessToken)

	_, err = s.auth.RefreshToken("not-a-token")
	assert.Error(s.T(), err)
}

func TestAuthSuite(t *testing.T) {
	suite.Run(t, new(AuthTestSuite))
}

// Package businessflow contains the core business logic and use cases for the referral marketplace workflows
package businessflow

import (
	"context"
	"testing"
	"time"

	"github.com/Hassan-Shakoor/DealShark-BE/app/dto"
	"github.com/Hassan-Shakoor/DealShark-BE/app/services"
	"github.com/Hassan-Shakoor/DealShark-BE/models"
	"github.com/Hassan-Shakoor/DealShark-BE/repository"
	testingutil "github.com/Hassan-Shakoor/DealShark-BE/testing"
	"github.com/Hassan-Shakoor/DealShark-BE/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixturePassword matches the hash the fixtures write for every test user
const fixturePassword = "TestPass123"

func newLoginFlowForTest(t *testing.T, testDB *testingutil.TestDB) LoginFlow {
	t.Helper()

	tokenService, err := services.NewTokenService(
		1*time.Hour, 24*time.Hour, "test-issuer", "test-audience",
		false, "", "", "test-secret-key-for-jwt-signing-32-chars",
	)
	require.NoError(t, err)

	return NewLoginFlow(
		repository.NewUserRepository(testDB.DB),
		repository.NewBusinessRepository(testDB.DB),
		repository.NewUserSessionRepository(testDB.DB),
		repository.NewAuditLogRepository(testDB.DB),
		tokenService,
		testDB.DB,
	)
}

func TestLogin(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		loginFlow := newLoginFlowForTest(t, testDB)

		t.Run("SuccessfulLogin", func(t *testing.T) {
			user, err := fixtures.CreateTestUser(models.UserRoleCustomer)
			require.NoError(t, err)

			result, err := loginFlow.Login(context.Background(), &dto.LoginRequest{
				Email:    user.Email,
				Password: fixturePassword,
			}, testMetadata())
			require.NoError(t, err)
			require.NotNil(t, result)
			assert.Equal(t, user.ID, result.User.ID)
			assert.NotEmpty(t, result.Session.SessionToken)
			assert.NotNil(t, result.Session.RefreshToken)
			assert.Equal(t, "Bearer", result.Session.TokenType)
		})

		t.Run("UnknownEmailAndWrongPasswordAreIndistinguishable", func(t *testing.T) {
			user, err := fixtures.CreateTestUser(models.UserRoleCustomer)
			require.NoError(t, err)

			_, errUnknown := loginFlow.Login(context.Background(), &dto.LoginRequest{
				Email:    "nobody@example.com",
				Password: fixturePassword,
			}, testMetadata())
			require.Error(t, errUnknown)
			assert.True(t, IsInvalidCredentials(errUnknown))

			_, errWrongPass := loginFlow.Login(context.Background(), &dto.LoginRequest{
				Email:    user.Email,
				Password: "WrongPass123",
			}, testMetadata())
			require.Error(t, errWrongPass)
			assert.True(t, IsInvalidCredentials(errWrongPass))

			// Both failures surface the same error to the caller
			assert.Equal(t, errUnknown.Error(), errWrongPass.Error())
		})

		t.Run("InactiveAccount", func(t *testing.T) {
			user, err := fixtures.CreateTestUser(models.UserRoleCustomer)
			require.NoError(t, err)

			err = testDB.DB.Model(&models.User{}).Where("id = ?", user.ID).
				Update("is_active", false).Error
			require.NoError(t, err)

			result, err := loginFlow.Login(context.Background(), &dto.LoginRequest{
				Email:    user.Email,
				Password: fixturePassword,
			}, testMetadata())
			assert.Error(t, err)
			assert.Nil(t, result)
			assert.True(t, IsAccountInactive(err))
		})

		t.Run("UnverifiedEmail", func(t *testing.T) {
			user, err := fixtures.CreateTestUser(models.UserRoleCustomer)
			require.NoError(t, err)

			err = testDB.DB.Model(&models.User{}).Where("id = ?", user.ID).
				Update("is_email_verified", false).Error
			require.NoError(t, err)

			result, err := loginFlow.Login(context.Background(), &dto.LoginRequest{
				Email:    user.Email,
				Password: fixturePassword,
			}, testMetadata())
			assert.Error(t, err)
			assert.Nil(t, result)
			assert.True(t, IsEmailNotVerified(err))
		})

		t.Run("BusinessLoginAttachesProfile", func(t *testing.T) {
			user, err := fixtures.CreateTestUser(models.UserRoleBusiness)
			require.NoError(t, err)
			business, err := fixtures.CreateTestBusiness(user.ID, false)
			require.NoError(t, err)

			result, err := loginFlow.Login(context.Background(), &dto.LoginRequest{
				Email:    user.Email,
				Password: fixturePassword,
			}, testMetadata())
			require.NoError(t, err)
			require.NotNil(t, result.User.Business)
			assert.Equal(t, business.BusinessName, result.User.Business.BusinessName)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestRefreshTokenFlow(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		loginFlow := newLoginFlowForTest(t, testDB)
		sessionRepo := repository.NewUserSessionRepository(testDB.DB)

		t.Run("SuccessfulRefreshRotatesSession", func(t *testing.T) {
			user, err := fixtures.CreateTestUser(models.UserRoleCustomer)
			require.NoError(t, err)

			login, err := loginFlow.Login(context.Background(), &dto.LoginRequest{
				Email:    user.Email,
				Password: fixturePassword,
			}, testMetadata())
			require.NoError(t, err)
			require.NotNil(t, login.Session.RefreshToken)

			result, err := loginFlow.RefreshToken(context.Background(), &dto.RefreshTokenRequest{
				RefreshToken: *login.Session.RefreshToken,
			}, testMetadata())
			require.NoError(t, err)
			assert.NotEmpty(t, result.Session.SessionToken)
			assert.NotEqual(t, login.Session.SessionToken, result.Session.SessionToken)

			// The old session is expired after rotation
			oldSession, err := sessionRepo.BySessionToken(context.Background(), login.Session.SessionToken)
			require.NoError(t, err)
			require.NotNil(t, oldSession)
			assert.False(t, oldSession.IsValid())

			// The old refresh token cannot be replayed
			replay, err := loginFlow.RefreshToken(context.Background(), &dto.RefreshTokenRequest{
				RefreshToken: *login.Session.RefreshToken,
			}, testMetadata())
			assert.Error(t, err)
			assert.Nil(t, replay)
		})

		t.Run("UnknownRefreshToken", func(t *testing.T) {
			result, err := loginFlow.RefreshToken(context.Background(), &dto.RefreshTokenRequest{
				RefreshToken: "not-a-real-token",
			}, testMetadata())
			assert.Error(t, err)
			assert.Nil(t, result)
			assert.True(t, IsSessionNotFound(err))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestLogout(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		loginFlow := newLoginFlowForTest(t, testDB)
		sessionRepo := repository.NewUserSessionRepository(testDB.DB)

		t.Run("SuccessfulLogout", func(t *testing.T) {
			user, err := fixtures.CreateTestUser(models.UserRoleCustomer)
			require.NoError(t, err)

			login, err := loginFlow.Login(context.Background(), &dto.LoginRequest{
				Email:    user.Email,
				Password: fixturePassword,
			}, testMetadata())
			require.NoError(t, err)

			err = loginFlow.Logout(context.Background(), user.ID, login.Session.SessionToken, testMetadata())
			require.NoError(t, err)

			session, err := sessionRepo.BySessionToken(context.Background(), login.Session.SessionToken)
			require.NoError(t, err)
			require.NotNil(t, session)
			assert.False(t, utils.IsTrue(session.IsActive))
		})

		t.Run("LogoutWithForeignSession", func(t *testing.T) {
			owner, err := fixtures.CreateTestUser(models.UserRoleCustomer)
			require.NoError(t, err)
			other, err := fixtures.CreateTestUser(models.UserRoleCustomer)
			require.NoError(t, err)

			login, err := loginFlow.Login(context.Background(), &dto.LoginRequest{
				Email:    owner.Email,
				Password: fixturePassword,
			}, testMetadata())
			require.NoError(t, err)

			// Another user cannot expire someone else's session
			err = loginFlow.Logout(context.Background(), other.ID, login.Session.SessionToken, testMetadata())
			assert.Error(t, err)
			assert.True(t, IsSessionNotFound(err))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestMe(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		loginFlow := newLoginFlowForTest(t, testDB)

		t.Run("CustomerProfile", func(t *testing.T) {
			user, err := fixtures.CreateTestUser(models.UserRoleCustomer)
			require.NoError(t, err)

			profile, err := loginFlow.Me(context.Background(), user.ID)
			require.NoError(t, err)
			assert.Equal(t, user.Email, profile.Email)
			assert.Nil(t, profile.Business)
		})

		t.Run("BusinessProfileIncluded", func(t *testing.T) {
			user, err := fixtures.CreateTestUser(models.UserRoleBusiness)
			require.NoError(t, err)
			_, err = fixtures.CreateTestBusiness(user.ID, true)
			require.NoError(t, err)

			profile, err := loginFlow.Me(context.Background(), user.ID)
			require.NoError(t, err)
			require.NotNil(t, profile.Business)
			assert.True(t, utils.IsTrue(profile.Business.IsOnboardingCompleted))
		})

		t.Run("UnknownUser", func(t *testing.T) {
			profile, err := loginFlow.Me(context.Background(), 999999)
			assert.Error(t, err)
			assert.Nil(t, profile)
			assert.True(t, IsUserNotFound(err))
		})

		return nil
	})
	require.NoError(t, err)
}

// Package businessflow contains the core business logic and use cases for the referral marketplace workflows
package businessflow

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
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

func testMetadata() *ClientMetadata {
	return &ClientMetadata{
		IPAddress: "127.0.0.1",
		UserAgent: "test-agent",
	}
}

func uniqueEmail(prefix string) string {
	return fmt.Sprintf("%s.%d@example.com", prefix, rand.Intn(100000000))
}

func newSignupFlowForTest(t *testing.T, testDB *testingutil.TestDB) SignupFlow {
	t.Helper()

	tokenService, err := services.NewTokenService(
		1*time.Hour, 24*time.Hour, "test-issuer", "test-audience",
		false, "", "", "test-secret-key-for-jwt-signing-32-chars",
	)
	require.NoError(t, err)

	return NewSignupFlow(
		repository.NewUserRepository(testDB.DB),
		repository.NewBusinessRepository(testDB.DB),
		repository.NewOTPVerificationRepository(testDB.DB),
		repository.NewUserSessionRepository(testDB.DB),
		repository.NewAuditLogRepository(testDB.DB),
		tokenService,
		services.NewNotificationService(services.NewMockEmailProvider()),
		services.NewMockPaymentGateway(),
		testDB.DB,
	)
}

func TestSignup(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		signupFlow := newSignupFlowForTest(t, testDB)
		userRepo := repository.NewUserRepository(testDB.DB)
		businessRepo := repository.NewBusinessRepository(testDB.DB)
		otpRepo := repository.NewOTPVerificationRepository(testDB.DB)

		t.Run("SuccessfulCustomerSignup", func(t *testing.T) {
			email := uniqueEmail("customer")
			req := &dto.SignupRequest{
				Role:            models.UserRoleCustomer,
				FirstName:       "John",
				LastName:        "Doe",
				Email:           email,
				Password:        "SecurePass123",
				ConfirmPassword: "SecurePass123",
			}

			result, err := signupFlow.Signup(context.Background(), req, testMetadata())
			require.NoError(t, err)
			require.NotNil(t, result)
			assert.True(t, result.OTPSent)
			assert.NotZero(t, result.UserID)
			assert.Contains(t, result.OTPTarget, "****")

			user, err := userRepo.ByEmail(context.Background(), email)
			require.NoError(t, err)
			require.NotNil(t, user)
			assert.Equal(t, models.UserRoleCustomer, user.Role)
			assert.True(t, utils.IsTrue(user.IsActive))
			assert.False(t, utils.IsTrue(user.IsEmailVerified))

			// Customers never get a business profile
			business, err := businessRepo.ByUserID(context.Background(), user.ID)
			require.NoError(t, err)
			assert.Nil(t, business)

			otp, err := otpRepo.LatestActiveByUser(context.Background(), user.ID, models.OTPTypeEmail)
			require.NoError(t, err)
			require.NotNil(t, otp)
			assert.Equal(t, models.OTPStatusPending, otp.Status)
			assert.Len(t, otp.OTPCode, 6)
			assert.True(t, otp.ExpiresAt.After(time.Now()))
		})

		t.Run("SuccessfulBusinessSignup", func(t *testing.T) {
			email := uniqueEmail("business")
			req := &dto.SignupRequest{
				Role:            models.UserRoleBusiness,
				FirstName:       "Jane",
				LastName:        "Smith",
				Email:           email,
				Password:        "SecurePass123",
				ConfirmPassword: "SecurePass123",
				BusinessName:    utils.ToPtr("Smith Retail"),
				Industry:        utils.ToPtr("retail"),
			}

			result, err := signupFlow.Signup(context.Background(), req, testMetadata())
			require.NoError(t, err)
			require.NotNil(t, result)

			user, err := userRepo.ByEmail(context.Background(), email)
			require.NoError(t, err)
			require.NotNil(t, user)
			assert.Equal(t, models.UserRoleBusiness, user.Role)

			business, err := businessRepo.ByUserID(context.Background(), user.ID)
			require.NoError(t, err)
			require.NotNil(t, business)
			assert.Equal(t, "Smith Retail", business.BusinessName)
			assert.False(t, business.IsOnboarded())
		})

		t.Run("BusinessSignupWithoutBusinessFields", func(t *testing.T) {
			req := &dto.SignupRequest{
				Role:            models.UserRoleBusiness,
				FirstName:       "Jane",
				LastName:        "Smith",
				Email:           uniqueEmail("incomplete"),
				Password:        "SecurePass123",
				ConfirmPassword: "SecurePass123",
			}

			result, err := signupFlow.Signup(context.Background(), req, testMetadata())
			assert.Error(t, err)
			assert.Nil(t, result)
			assert.True(t, IsBusinessFieldsRequired(err))
		})

		t.Run("DuplicateVerifiedEmailRejected", func(t *testing.T) {
			email := uniqueEmail("verified")
			req := &dto.SignupRequest{
				Role:            models.UserRoleCustomer,
				FirstName:       "John",
				LastName:        "Doe",
				Email:           email,
				Password:        "SecurePass123",
				ConfirmPassword: "SecurePass123",
			}

			_, err := signupFlow.Signup(context.Background(), req, testMetadata())
			require.NoError(t, err)

			user, err := userRepo.ByEmail(context.Background(), email)
			require.NoError(t, err)
			require.NoError(t, userRepo.MarkEmailVerified(context.Background(), user.ID))

			result, err := signupFlow.Signup(context.Background(), req, testMetadata())
			assert.Error(t, err)
			assert.Nil(t, result)
			assert.True(t, IsEmailAlreadyExists(err))
		})

		t.Run("UnverifiedReRegistrationRestartsSignup", func(t *testing.T) {
			email := uniqueEmail("pending")
			req := &dto.SignupRequest{
				Role:            models.UserRoleCustomer,
				FirstName:       "John",
				LastName:        "Doe",
				Email:           email,
				Password:        "SecurePass123",
				ConfirmPassword: "SecurePass123",
			}

			first, err := signupFlow.Signup(context.Background(), req, testMetadata())
			require.NoError(t, err)

			// A second signup before verification resends the code instead of
			// conflicting, and no second user row appears.
			second, err := signupFlow.Signup(context.Background(), req, testMetadata())
			require.NoError(t, err)
			assert.Equal(t, first.UserID, second.UserID)
			assert.True(t, second.OTPSent)

			count, err := userRepo.Count(context.Background(), models.UserFilter{Email: &email})
			require.NoError(t, err)
			assert.Equal(t, int64(1), count)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestVerifyOTP(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		signupFlow := newSignupFlowForTest(t, testDB)
		userRepo := repository.NewUserRepository(testDB.DB)
		otpRepo := repository.NewOTPVerificationRepository(testDB.DB)
		sessionRepo := repository.NewUserSessionRepository(testDB.DB)

		signup := func(t *testing.T) (string, *models.OTPVerification) {
			t.Helper()

			email := uniqueEmail("verify")
			_, err := signupFlow.Signup(context.Background(), &dto.SignupRequest{
				Role:            models.UserRoleCustomer,
				FirstName:       "John",
				LastName:        "Doe",
				Email:           email,
				Password:        "SecurePass123",
				ConfirmPassword: "SecurePass123",
			}, testMetadata())
			require.NoError(t, err)

			user, err := userRepo.ByEmail(context.Background(), email)
			require.NoError(t, err)

			otp, err := otpRepo.LatestActiveByUser(context.Background(), user.ID, models.OTPTypeEmail)
			require.NoError(t, err)
			require.NotNil(t, otp)

			return email, otp
		}

		t.Run("SuccessfulVerification", func(t *testing.T) {
			email, otp := signup(t)

			result, err := signupFlow.VerifyOTP(context.Background(), &dto.OTPVerificationRequest{
				Email:   email,
				OTPCode: otp.OTPCode,
			}, testMetadata())
			require.NoError(t, err)
			require.NotNil(t, result)
			assert.NotEmpty(t, result.Token)
			assert.NotEmpty(t, result.RefreshToken)
			assert.True(t, utils.IsTrue(result.User.IsEmailVerified))

			user, err := userRepo.ByEmail(context.Background(), email)
			require.NoError(t, err)
			assert.True(t, utils.IsTrue(user.IsEmailVerified))

			session, err := sessionRepo.BySessionToken(context.Background(), result.Token)
			require.NoError(t, err)
			require.NotNil(t, session)
			assert.True(t, session.IsValid())
		})

		t.Run("OTPIsSingleUse", func(t *testing.T) {
			email, otp := signup(t)

			_, err := signupFlow.VerifyOTP(context.Background(), &dto.OTPVerificationRequest{
				Email:   email,
				OTPCode: otp.OTPCode,
			}, testMetadata())
			require.NoError(t, err)

			// Replaying the same code must fail; the account is verified and
			// the code is burned.
			result, err := signupFlow.VerifyOTP(context.Background(), &dto.OTPVerificationRequest{
				Email:   email,
				OTPCode: otp.OTPCode,
			}, testMetadata())
			assert.Error(t, err)
			assert.Nil(t, result)
			assert.True(t, IsAlreadyVerified(err))
		})

		t.Run("WrongCodeCountsAttempt", func(t *testing.T) {
			email, otp := signup(t)

			wrongCode := "000000"
			if otp.OTPCode == wrongCode {
				wrongCode = "000001"
			}

			result, err := signupFlow.VerifyOTP(context.Background(), &dto.OTPVerificationRequest{
				Email:   email,
				OTPCode: wrongCode,
			}, testMetadata())
			assert.Error(t, err)
			assert.Nil(t, result)
			assert.True(t, IsInvalidOTPCode(err))

			// The correct code still works afterwards
			verified, err := signupFlow.VerifyOTP(context.Background(), &dto.OTPVerificationRequest{
				Email:   email,
				OTPCode: otp.OTPCode,
			}, testMetadata())
			require.NoError(t, err)
			assert.NotEmpty(t, verified.Token)
		})

		t.Run("MaxAttemptsExhaustsOTP", func(t *testing.T) {
			email, otp := signup(t)

			wrongCode := "000000"
			if otp.OTPCode == wrongCode {
				wrongCode = "000001"
			}

			for i := 0; i < utils.OTPMaxAttempts; i++ {
				_, err := signupFlow.VerifyOTP(context.Background(), &dto.OTPVerificationRequest{
					Email:   email,
					OTPCode: wrongCode,
				}, testMetadata())
				assert.Error(t, err)
			}

			// The correct code is now rejected too
			result, err := signupFlow.VerifyOTP(context.Background(), &dto.OTPVerificationRequest{
				Email:   email,
				OTPCode: otp.OTPCode,
			}, testMetadata())
			assert.Error(t, err)
			assert.Nil(t, result)
			assert.True(t, IsOTPMaxAttempts(err))
		})

		t.Run("UnknownEmail", func(t *testing.T) {
			result, err := signupFlow.VerifyOTP(context.Background(), &dto.OTPVerificationRequest{
				Email:   "nobody@example.com",
				OTPCode: "123456",
			}, testMetadata())
			assert.Error(t, err)
			assert.Nil(t, result)
			assert.True(t, IsUserNotFound(err))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestResendOTP(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		signupFlow := newSignupFlowForTest(t, testDB)
		userRepo := repository.NewUserRepository(testDB.DB)
		otpRepo := repository.NewOTPVerificationRepository(testDB.DB)

		t.Run("ResendInvalidatesOldOTP", func(t *testing.T) {
			email := uniqueEmail("resend")
			_, err := signupFlow.Signup(context.Background(), &dto.SignupRequest{
				Role:            models.UserRoleCustomer,
				FirstName:       "John",
				LastName:        "Doe",
				Email:           email,
				Password:        "SecurePass123",
				ConfirmPassword: "SecurePass123",
			}, testMetadata())
			require.NoError(t, err)

			user, err := userRepo.ByEmail(context.Background(), email)
			require.NoError(t, err)

			oldOTP, err := otpRepo.LatestActiveByUser(context.Background(), user.ID, models.OTPTypeEmail)
			require.NoError(t, err)
			require.NotNil(t, oldOTP)

			result, err := signupFlow.ResendOTP(context.Background(), &dto.OTPResendRequest{Email: email}, testMetadata())
			require.NoError(t, err)
			assert.True(t, result.OTPSent)
			assert.Contains(t, result.MaskedOTPTarget, "****")

			newOTP, err := otpRepo.LatestActiveByUser(context.Background(), user.ID, models.OTPTypeEmail)
			require.NoError(t, err)
			require.NotNil(t, newOTP)
			assert.NotEqual(t, oldOTP.ID, newOTP.ID)

			// The old code no longer verifies
			if oldOTP.OTPCode != newOTP.OTPCode {
				_, err = signupFlow.VerifyOTP(context.Background(), &dto.OTPVerificationRequest{
					Email:   email,
					OTPCode: oldOTP.OTPCode,
				}, testMetadata())
				assert.Error(t, err)
			}
		})

		t.Run("ResendForVerifiedUser", func(t *testing.T) {
			fixtures := testingutil.NewTestFixtures(testDB)
			user, err := fixtures.CreateTestUser(models.UserRoleCustomer)
			require.NoError(t, err)

			result, err := signupFlow.ResendOTP(context.Background(), &dto.OTPResendRequest{Email: user.Email}, testMetadata())
			assert.Error(t, err)
			assert.Nil(t, result)
			assert.True(t, IsAlreadyVerified(err))
		})

		t.Run("ResendForUnknownEmail", func(t *testing.T) {
			result, err := signupFlow.ResendOTP(context.Background(), &dto.OTPResendRequest{Email: "nobody@example.com"}, testMetadata())
			assert.Error(t, err)
			assert.Nil(t, result)
			assert.True(t, IsUserNotFound(err))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestGenerateOTP(t *testing.T) {
	seen := make(map[string]bool)

	for i := 0; i < 100; i++ {
		code, err := GenerateOTP()
		require.NoError(t, err)
		require.Len(t, code, 6)

		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 100000)
		assert.LessOrEqual(t, n, 999999)

		seen[code] = true
	}

	// 100 draws from a 900k space should essentially never collide down to
	// a handful of distinct values.
	assert.Greater(t, len(seen), 90)
}

func TestMaskEmail(t *testing.T) {
	tests := []struct {
		email    string
		expected string
	}{
		{"john.doe@example.com", "j****e@example.com"},
		{"jane@example.com", "j****e@example.com"},
		{"ab@example.com", "ab@example.com"},
		{"a@example.com", "a@example.com"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, MaskEmail(tt.email))
	}
}

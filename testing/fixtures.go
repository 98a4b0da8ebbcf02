// Package testing provides test utilities and database setup for testing the referral marketplace
package testing

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/Hassan-Shakoor/DealShark-BE/models"
	"github.com/Hassan-Shakoor/DealShark-BE/utils"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestUser creates a verified user with the specified role
func (tf *TestFixtures) CreateTestUser(role string) (*models.User, error) {
	// Hash password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("TestPass123"), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	suffix := rand.Intn(100000000)

	user := &models.User{
		UUID:            uuid.New(),
		FirstName:       "John",
		LastName:        "Doe",
		Email:           fmt.Sprintf("john.doe.%d@example.com", suffix),
		PasswordHash:    string(hashedPassword),
		Role:            role,
		IsEmailVerified: utils.ToPtr(true),
		IsActive:        utils.ToPtr(true),
	}

	err = tf.DB.DB.Create(user).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create test user: %w", err)
	}

	return user, nil
}

// CreateTestBusiness creates a business profile for a user, optionally with a
// connected payment account and completed onboarding
func (tf *TestFixtures) CreateTestBusiness(userID uint, onboarded bool) (*models.Business, error) {
	business := &models.Business{
		UUID:                  uuid.New(),
		UserID:                userID,
		BusinessName:          fmt.Sprintf("Test Business %d", rand.Intn(100000)),
		Industry:              "retail",
		IsOnboardingCompleted: utils.ToPtr(onboarded),
	}

	if onboarded {
		business.StripeAccountID = utils.ToPtr(fmt.Sprintf("acct_test%d", rand.Intn(100000000)))
	}

	err := tf.DB.DB.Create(business).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create test business: %w", err)
	}

	return business, nil
}

// CreateTestDeal creates an active deal for a business
func (tf *TestFixtures) CreateTestDeal(businessID uint, rewardType string, commissionPct *float64) (*models.Deal, error) {
	deal := &models.Deal{
		UUID:            uuid.New(),
		BusinessID:      businessID,
		DealName:        fmt.Sprintf("Test Deal %d", rand.Intn(100000)),
		DealDescription: "A test deal for the referral marketplace",
		RewardType:      rewardType,
		CommissionPct:   commissionPct,
		IsActive:        utils.ToPtr(true),
	}

	err := tf.DB.DB.Create(deal).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create test deal: %w", err)
	}

	return deal, nil
}

// CreateTestSubscription creates a subscription with a unique referral code
func (tf *TestFixtures) CreateTestSubscription(dealID, referrerUserID uint) (*models.Subscription, error) {
	code := randomReferralCode()

	subscription := &models.Subscription{
		UUID:           uuid.New(),
		DealID:         dealID,
		ReferrerUserID: referrerUserID,
		ReferralCode:   code,
		ReferralLink:   "https://dealshark.com/ref/" + code,
	}

	err := tf.DB.DB.Create(subscription).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create test subscription: %w", err)
	}

	return subscription, nil
}

// CreateTestOTP creates a pending OTP verification record
func (tf *TestFixtures) CreateTestOTP(userID uint, otpCode string) (*models.OTPVerification, error) {
	otp := &models.OTPVerification{
		CorrelationID: uuid.New(),
		UserID:        userID,
		OTPCode:       otpCode,
		OTPType:       models.OTPTypeEmail,
		TargetValue:   "john.doe@example.com",
		Status:        models.OTPStatusPending,
		AttemptsCount: 0,
		MaxAttempts:   utils.OTPMaxAttempts,
		ExpiresAt:     time.Now().UTC().Add(10 * time.Minute),
	}

	err := tf.DB.DB.Create(otp).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create test OTP: %w", err)
	}

	return otp, nil
}

// CreateExpiredOTP creates an expired OTP for testing
func (tf *TestFixtures) CreateExpiredOTP(userID uint) (*models.OTPVerification, error) {
	otp := &models.OTPVerification{
		CorrelationID: uuid.New(),
		UserID:        userID,
		OTPCode:       "123456",
		OTPType:       models.OTPTypeEmail,
		TargetValue:   "john.doe@example.com",
		Status:        models.OTPStatusPending,
		AttemptsCount: 0,
		MaxAttempts:   utils.OTPMaxAttempts,
		ExpiresAt:     time.Now().UTC().Add(-1 * time.Hour), // Expired 1 hour ago
	}

	err := tf.DB.DB.Create(otp).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create expired OTP: %w", err)
	}

	return otp, nil
}

// CreateTestSession creates an active user session
func (tf *TestFixtures) CreateTestSession(userID uint) (*models.UserSession, error) {
	sessionToken := fmt.Sprintf("test-session-%d-%d", userID, rand.Intn(100000000))
	refreshToken := fmt.Sprintf("test-refresh-%d-%d", userID, rand.Intn(100000000))

	ipAddress := "127.0.0.1"
	userAgent := "Test User Agent"

	session := &models.UserSession{
		CorrelationID: uuid.New(),
		UserID:        userID,
		SessionToken:  sessionToken,
		RefreshToken:  &refreshToken,
		ExpiresAt:     time.Now().UTC().Add(24 * time.Hour),
		IsActive:      utils.ToPtr(true),
		IPAddress:     &ipAddress,
		UserAgent:     &userAgent,
	}

	err := tf.DB.DB.Create(session).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create test session: %w", err)
	}

	return session, nil
}

// CreateTestSettlement creates a settlement with both legs pending
func (tf *TestFixtures) CreateTestSettlement(sub *models.Subscription, gross int64, pct float64) (*models.Settlement, error) {
	referrerCut, businessCut := models.SplitAmount(gross, pct)

	subscriptionID := sub.ID
	settlement := &models.Settlement{
		CorrelationID:          uuid.New(),
		SubscriptionID:         &subscriptionID,
		DealID:                 sub.DealID,
		ReferrerUserID:         sub.ReferrerUserID,
		ReferralCode:           sub.ReferralCode,
		EventID:                fmt.Sprintf("evt_test%d", rand.Intn(100000000)),
		GrossAmount:            gross,
		Currency:               "usd",
		CommissionPct:          pct,
		ReferrerCut:            referrerCut,
		BusinessCut:            businessCut,
		ReferrerTransferStatus: models.TransferStatusPending,
		BusinessTransferStatus: models.TransferStatusPending,
	}

	err := tf.DB.DB.Create(settlement).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create test settlement: %w", err)
	}

	return settlement, nil
}

func randomReferralCode() string {
	b := make([]byte, models.ReferralCodeLength)
	for i := range b {
		b[i] = models.ReferralCodeAlphabet[rand.Intn(len(models.ReferralCodeAlphabet))]
	}
	return string(b)
}

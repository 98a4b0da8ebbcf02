// Package models contains domain models for the referral marketplace
package models

import (
	"testing"
	"time"

	"github.com/Hassan-Shakoor/DealShark-BE/utils"
	"github.com/stretchr/testify/assert"
)

func TestSplitAmount(t *testing.T) {
	tests := []struct {
		name             string
		gross            int64
		pct              float64
		expectedReferrer int64
		expectedBusiness int64
	}{
		{
			name:             "even split at 10 percent",
			gross:            10000,
			pct:              10,
			expectedReferrer: 1000,
			expectedBusiness: 9000,
		},
		{
			name:             "fractional cut rounds down",
			gross:            999,
			pct:              10,
			expectedReferrer: 99,
			expectedBusiness: 900,
		},
		{
			name:             "fractional percentage rounds down",
			gross:            10000,
			pct:              12.5,
			expectedReferrer: 1250,
			expectedBusiness: 8750,
		},
		{
			name:             "repeating fraction rounds down",
			gross:            100,
			pct:              33.33,
			expectedReferrer: 33,
			expectedBusiness: 67,
		},
		{
			name:             "full commission",
			gross:            5000,
			pct:              100,
			expectedReferrer: 5000,
			expectedBusiness: 0,
		},
		{
			name:             "tiny amount below one cent of cut",
			gross:            1,
			pct:              10,
			expectedReferrer: 0,
			expectedBusiness: 1,
		},
		{
			name:             "zero gross",
			gross:            0,
			pct:              10,
			expectedReferrer: 0,
			expectedBusiness: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			referrerCut, businessCut := SplitAmount(tt.gross, tt.pct)

			assert.Equal(t, tt.expectedReferrer, referrerCut)
			assert.Equal(t, tt.expectedBusiness, businessCut)

			// The two cuts must always reassemble the gross exactly
			assert.Equal(t, tt.gross, referrerCut+businessCut)
		})
	}
}

func TestSplitAmountConservation(t *testing.T) {
	// Sweep a range of amounts and rates; no cent may be created or lost
	for gross := int64(0); gross <= 1000; gross += 7 {
		for _, pct := range []float64{0.5, 1, 2.5, 7, 10, 33.33, 50, 99.99, 100} {
			referrerCut, businessCut := SplitAmount(gross, pct)

			assert.Equal(t, gross, referrerCut+businessCut, "gross %d pct %f", gross, pct)
			assert.GreaterOrEqual(t, referrerCut, int64(0))
			assert.GreaterOrEqual(t, businessCut, int64(0))
		}
	}
}

func TestUserHelpers(t *testing.T) {
	user := &User{
		FirstName: "John",
		LastName:  "Doe",
		Role:      UserRoleBusiness,
	}

	assert.Equal(t, "John Doe", user.FullName())
	assert.True(t, user.IsBusiness())
	assert.False(t, user.IsCustomer())

	customer := &User{Role: UserRoleCustomer}
	assert.True(t, customer.IsCustomer())
	assert.False(t, customer.IsBusiness())
}

func TestBusinessHelpers(t *testing.T) {
	business := &Business{}
	assert.False(t, business.HasStripeAccount())
	assert.False(t, business.IsOnboarded())
	assert.False(t, business.CanCreateDeals())

	business.StripeAccountID = utils.ToPtr("acct_123")
	assert.True(t, business.HasStripeAccount())
	assert.False(t, business.IsOnboarded())
	assert.False(t, business.CanCreateDeals())

	business.IsOnboardingCompleted = utils.ToPtr(true)
	assert.True(t, business.IsOnboarded())
	assert.True(t, business.CanCreateDeals())

	// Empty account ID does not count as connected
	empty := &Business{StripeAccountID: utils.ToPtr("")}
	assert.False(t, empty.HasStripeAccount())
}

func TestDealHelpers(t *testing.T) {
	commission := &Deal{
		RewardType:    RewardTypeCommission,
		CommissionPct: utils.ToPtr(15.0),
	}
	assert.True(t, commission.IsCommission())
	assert.Equal(t, 15.0, commission.CommissionRate())

	noReward := &Deal{RewardType: RewardTypeNoReward}
	assert.False(t, noReward.IsCommission())
	assert.Equal(t, 0.0, noReward.CommissionRate())

	// Commission type without a percentage yields a zero rate
	missing := &Deal{RewardType: RewardTypeCommission}
	assert.Equal(t, 0.0, missing.CommissionRate())
}

func TestOTPVerificationHelpers(t *testing.T) {
	pending := &OTPVerification{
		Status:        OTPStatusPending,
		AttemptsCount: 0,
		MaxAttempts:   3,
		ExpiresAt:     time.Now().UTC().Add(5 * time.Minute),
	}
	assert.True(t, pending.IsPending())
	assert.False(t, pending.IsExpired())
	assert.True(t, pending.CanAttempt())

	expired := &OTPVerification{
		Status:    OTPStatusPending,
		ExpiresAt: time.Now().UTC().Add(-1 * time.Minute),
	}
	assert.True(t, expired.IsExpired())
	assert.False(t, expired.CanAttempt())

	exhausted := &OTPVerification{
		Status:        OTPStatusPending,
		AttemptsCount: 3,
		MaxAttempts:   3,
		ExpiresAt:     time.Now().UTC().Add(5 * time.Minute),
	}
	assert.False(t, exhausted.CanAttempt())

	used := &OTPVerification{
		Status:    OTPStatusUsed,
		ExpiresAt: time.Now().UTC().Add(5 * time.Minute),
	}
	assert.False(t, used.IsPending())
	assert.False(t, used.CanAttempt())
}

func TestUserSessionHelpers(t *testing.T) {
	valid := &UserSession{
		IsActive:  utils.ToPtr(true),
		ExpiresAt: time.Now().UTC().Add(1 * time.Hour),
	}
	assert.False(t, valid.IsExpired())
	assert.True(t, valid.IsValid())

	expired := &UserSession{
		IsActive:  utils.ToPtr(true),
		ExpiresAt: time.Now().UTC().Add(-1 * time.Hour),
	}
	assert.True(t, expired.IsExpired())
	assert.False(t, expired.IsValid())

	inactive := &UserSession{
		IsActive:  utils.ToPtr(false),
		ExpiresAt: time.Now().UTC().Add(1 * time.Hour),
	}
	assert.False(t, inactive.IsValid())
}

func TestReferralCodeConstants(t *testing.T) {
	assert.Equal(t, 8, ReferralCodeLength)
	assert.Len(t, ReferralCodeAlphabet, 36)

	for _, c := range ReferralCodeAlphabet {
		isUpper := c >= 'A' && c <= 'Z'
		isDigit := c >= '0' && c <= '9'
		assert.True(t, isUpper || isDigit, "unexpected alphabet character %q", c)
	}
}

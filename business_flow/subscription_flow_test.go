// Package businessflow contains the core business logic and use cases for the referral marketplace workflows
package businessflow

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/Hassan-Shakoor/DealShark-BE/app/dto"
	"github.com/Hassan-Shakoor/DealShark-BE/models"
	"github.com/Hassan-Shakoor/DealShark-BE/repository"
	testingutil "github.com/Hassan-Shakoor/DealShark-BE/testing"
	"github.com/Hassan-Shakoor/DealShark-BE/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const testReferralBaseURL = "https://dealshark.test"

func newSubscriptionFlowForTest(testDB *testingutil.TestDB) SubscriptionFlow {
	return NewSubscriptionFlow(
		repository.NewUserRepository(testDB.DB),
		repository.NewBusinessRepository(testDB.DB),
		repository.NewDealRepository(testDB.DB),
		repository.NewSubscriptionRepository(testDB.DB),
		repository.NewAuditLogRepository(testDB.DB),
		nil,
		testReferralBaseURL,
		testDB.DB,
	)
}

// activeDeal creates an onboarded business with one active commission deal
func activeDeal(t *testing.T, fixtures *testingutil.TestFixtures) (*models.User, *models.Deal) {
	t.Helper()

	owner, err := fixtures.CreateTestUser(models.UserRoleBusiness)
	require.NoError(t, err)
	business, err := fixtures.CreateTestBusiness(owner.ID, true)
	require.NoError(t, err)
	deal, err := fixtures.CreateTestDeal(business.ID, models.RewardTypeCommission, utils.ToPtr(10.0))
	require.NoError(t, err)

	return owner, deal
}

// eligibleReferrer creates a user with a linked and onboarded payout account,
// the precondition for subscribing to any deal
func eligibleReferrer(t *testing.T, fixtures *testingutil.TestFixtures) *models.User {
	t.Helper()

	referrer, err := fixtures.CreateTestUser(models.UserRoleCustomer)
	require.NoError(t, err)
	_, err = fixtures.CreateTestBusiness(referrer.ID, true)
	require.NoError(t, err)

	return referrer
}

func countSubscriptions(t *testing.T, testDB *testingutil.TestDB, dealID, referrerUserID uint) int64 {
	t.Helper()

	var count int64
	err := testDB.DB.Model(&models.Subscription{}).
		Where("deal_id = ? AND referrer_user_id = ?", dealID, referrerUserID).
		Count(&count).Error
	require.NoError(t, err)
	return count
}

func TestSubscribe(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		subscriptionFlow := newSubscriptionFlowForTest(testDB)

		t.Run("SuccessfulSubscribe", func(t *testing.T) {
			_, deal := activeDeal(t, fixtures)
			referrer := eligibleReferrer(t, fixtures)

			result, err := subscriptionFlow.Subscribe(context.Background(), referrer.ID,
				&dto.SubscribeRequest{DealID: deal.ID}, testMetadata())
			require.NoError(t, err)
			require.NotNil(t, result)
			assert.False(t, result.AlreadySubscribed)

			code := result.Subscription.ReferralCode
			assert.Len(t, code, models.ReferralCodeLength)
			for _, c := range code {
				assert.Contains(t, models.ReferralCodeAlphabet, string(c))
			}

			assert.Equal(t, testReferralBaseURL+"/ref/"+code, result.Subscription.ReferralLink)
			require.NotNil(t, result.Subscription.Deal)
			assert.Equal(t, deal.DealName, result.Subscription.Deal.DealName)
		})

		t.Run("SubscribeIsIdempotent", func(t *testing.T) {
			_, deal := activeDeal(t, fixtures)
			referrer := eligibleReferrer(t, fixtures)

			first, err := subscriptionFlow.Subscribe(context.Background(), referrer.ID,
				&dto.SubscribeRequest{DealID: deal.ID}, testMetadata())
			require.NoError(t, err)

			second, err := subscriptionFlow.Subscribe(context.Background(), referrer.ID,
				&dto.SubscribeRequest{DealID: deal.ID}, testMetadata())
			require.NoError(t, err)

			// Same row, same code; no second code is ever minted
			assert.True(t, second.AlreadySubscribed)
			assert.Equal(t, first.Subscription.ID, second.Subscription.ID)
			assert.Equal(t, first.Subscription.ReferralCode, second.Subscription.ReferralCode)
		})

		t.Run("ReferrerWithoutPayoutAccountIsRejected", func(t *testing.T) {
			_, deal := activeDeal(t, fixtures)
			referrer, err := fixtures.CreateTestUser(models.UserRoleCustomer)
			require.NoError(t, err)

			result, err := subscriptionFlow.Subscribe(context.Background(), referrer.ID,
				&dto.SubscribeRequest{DealID: deal.ID}, testMetadata())
			assert.Error(t, err)
			assert.Nil(t, result)
			assert.True(t, IsReferrerNoPayoutAccount(err))

			// The rejection leaves no subscription behind
			assert.EqualValues(t, 0, countSubscriptions(t, testDB, deal.ID, referrer.ID))
		})

		t.Run("ReferrerWithIncompleteOnboardingIsRejected", func(t *testing.T) {
			_, deal := activeDeal(t, fixtures)
			referrer, err := fixtures.CreateTestUser(models.UserRoleCustomer)
			require.NoError(t, err)
			payout, err := fixtures.CreateTestBusiness(referrer.ID, false)
			require.NoError(t, err)

			// Account linked but the provider has not opened every gate yet
			err = testDB.DB.Model(&models.Business{}).Where("id = ?", payout.ID).
				Update("stripe_account_id", "acct_incomplete_ref").Error
			require.NoError(t, err)

			result, err := subscriptionFlow.Subscribe(context.Background(), referrer.ID,
				&dto.SubscribeRequest{DealID: deal.ID}, testMetadata())
			assert.Error(t, err)
			assert.Nil(t, result)
			assert.True(t, IsReferrerNotOnboarded(err))
			assert.EqualValues(t, 0, countSubscriptions(t, testDB, deal.ID, referrer.ID))
		})

		t.Run("DistinctReferrersGetDistinctCodes", func(t *testing.T) {
			_, deal := activeDeal(t, fixtures)

			codes := make(map[string]bool)
			for i := 0; i < 5; i++ {
				referrer := eligibleReferrer(t, fixtures)

				result, err := subscriptionFlow.Subscribe(context.Background(), referrer.ID,
					&dto.SubscribeRequest{DealID: deal.ID}, testMetadata())
				require.NoError(t, err)

				assert.False(t, codes[result.Subscription.ReferralCode])
				codes[result.Subscription.ReferralCode] = true
			}
		})

		t.Run("SubscribeToUnknownDeal", func(t *testing.T) {
			referrer := eligibleReferrer(t, fixtures)

			result, err := subscriptionFlow.Subscribe(context.Background(), referrer.ID,
				&dto.SubscribeRequest{DealID: 999999}, testMetadata())
			assert.Error(t, err)
			assert.Nil(t, result)
			assert.True(t, IsDealNotFound(err))
		})

		t.Run("SubscribeToInactiveDeal", func(t *testing.T) {
			_, deal := activeDeal(t, fixtures)
			referrer := eligibleReferrer(t, fixtures)

			err := testDB.DB.Model(&models.Deal{}).Where("id = ?", deal.ID).
				Update("is_active", false).Error
			require.NoError(t, err)

			result, err := subscriptionFlow.Subscribe(context.Background(), referrer.ID,
				&dto.SubscribeRequest{DealID: deal.ID}, testMetadata())
			assert.Error(t, err)
			assert.Nil(t, result)
			assert.True(t, IsDealNotFound(err))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestUnsubscribe(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		subscriptionFlow := newSubscriptionFlowForTest(testDB)

		t.Run("SuccessfulUnsubscribe", func(t *testing.T) {
			_, deal := activeDeal(t, fixtures)
			referrer := eligibleReferrer(t, fixtures)

			sub, err := subscriptionFlow.Subscribe(context.Background(), referrer.ID,
				&dto.SubscribeRequest{DealID: deal.ID}, testMetadata())
			require.NoError(t, err)

			err = subscriptionFlow.Unsubscribe(context.Background(), referrer.ID, deal.ID, testMetadata())
			require.NoError(t, err)

			// The row is gone and the dead code no longer resolves
			assert.EqualValues(t, 0, countSubscriptions(t, testDB, deal.ID, referrer.ID))
			_, err = subscriptionFlow.Resolve(context.Background(), sub.Subscription.ReferralCode)
			assert.Error(t, err)
			assert.True(t, IsReferralCodeNotFound(err))
		})

		t.Run("ReSubscribeAfterUnsubscribeMintsNewCode", func(t *testing.T) {
			_, deal := activeDeal(t, fixtures)
			referrer := eligibleReferrer(t, fixtures)

			first, err := subscriptionFlow.Subscribe(context.Background(), referrer.ID,
				&dto.SubscribeRequest{DealID: deal.ID}, testMetadata())
			require.NoError(t, err)

			require.NoError(t, subscriptionFlow.Unsubscribe(context.Background(), referrer.ID, deal.ID, testMetadata()))

			second, err := subscriptionFlow.Subscribe(context.Background(), referrer.ID,
				&dto.SubscribeRequest{DealID: deal.ID}, testMetadata())
			require.NoError(t, err)
			require.NotNil(t, second)

			// A fresh enrollment, not a resurrected one
			assert.False(t, second.AlreadySubscribed)
			assert.NotEqual(t, first.Subscription.ID, second.Subscription.ID)
			assert.NotEqual(t, first.Subscription.ReferralCode, second.Subscription.ReferralCode)
			assert.EqualValues(t, 1, countSubscriptions(t, testDB, deal.ID, referrer.ID))

			resolved, err := subscriptionFlow.Resolve(context.Background(), second.Subscription.ReferralCode)
			require.NoError(t, err)
			assert.Equal(t, second.Subscription.ReferralCode, resolved.ReferralCode)

			_, err = subscriptionFlow.Resolve(context.Background(), first.Subscription.ReferralCode)
			assert.Error(t, err)
			assert.True(t, IsReferralCodeNotFound(err))
		})

		t.Run("UnsubscribeWithoutSubscription", func(t *testing.T) {
			_, deal := activeDeal(t, fixtures)
			referrer := eligibleReferrer(t, fixtures)

			err := subscriptionFlow.Unsubscribe(context.Background(), referrer.ID, deal.ID, testMetadata())
			assert.Error(t, err)
			assert.True(t, IsSubscriptionNotFound(err))
		})

		t.Run("DoubleUnsubscribe", func(t *testing.T) {
			_, deal := activeDeal(t, fixtures)
			referrer := eligibleReferrer(t, fixtures)

			_, err := subscriptionFlow.Subscribe(context.Background(), referrer.ID,
				&dto.SubscribeRequest{DealID: deal.ID}, testMetadata())
			require.NoError(t, err)

			require.NoError(t, subscriptionFlow.Unsubscribe(context.Background(), referrer.ID, deal.ID, testMetadata()))

			err = subscriptionFlow.Unsubscribe(context.Background(), referrer.ID, deal.ID, testMetadata())
			assert.Error(t, err)
			assert.True(t, IsSubscriptionNotFound(err))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestResolve(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		subscriptionFlow := newSubscriptionFlowForTest(testDB)

		t.Run("SuccessfulResolve", func(t *testing.T) {
			_, deal := activeDeal(t, fixtures)
			referrer := eligibleReferrer(t, fixtures)

			sub, err := subscriptionFlow.Subscribe(context.Background(), referrer.ID,
				&dto.SubscribeRequest{DealID: deal.ID}, testMetadata())
			require.NoError(t, err)

			result, err := subscriptionFlow.Resolve(context.Background(), sub.Subscription.ReferralCode)
			require.NoError(t, err)
			assert.Equal(t, sub.Subscription.ReferralCode, result.ReferralCode)
			assert.Equal(t, deal.DealName, result.Deal.DealName)
			assert.NotEmpty(t, result.Business.BusinessName)
			assert.Equal(t, referrer.FullName(), result.ReferrerName)
		})

		t.Run("ResolveIsCaseInsensitive", func(t *testing.T) {
			_, deal := activeDeal(t, fixtures)
			referrer := eligibleReferrer(t, fixtures)

			sub, err := subscriptionFlow.Subscribe(context.Background(), referrer.ID,
				&dto.SubscribeRequest{DealID: deal.ID}, testMetadata())
			require.NoError(t, err)

			result, err := subscriptionFlow.Resolve(context.Background(),
				strings.ToLower(sub.Subscription.ReferralCode))
			require.NoError(t, err)
			assert.Equal(t, sub.Subscription.ReferralCode, result.ReferralCode)
		})

		t.Run("UnknownCode", func(t *testing.T) {
			result, err := subscriptionFlow.Resolve(context.Background(), "ZZZZZZZZ")
			assert.Error(t, err)
			assert.Nil(t, result)
			assert.True(t, IsReferralCodeNotFound(err))
		})

		t.Run("MalformedCode", func(t *testing.T) {
			for _, code := range []string{"", "ABC", "TOOLONGCODE123"} {
				result, err := subscriptionFlow.Resolve(context.Background(), code)
				assert.Error(t, err, "code %q", code)
				assert.Nil(t, result)
				assert.True(t, IsReferralCodeNotFound(err))
			}
		})

		return nil
	})
	require.NoError(t, err)
}

func TestDealSubscribers(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		subscriptionFlow := newSubscriptionFlowForTest(testDB)

		owner, deal := activeDeal(t, fixtures)

		var referrers []*models.User
		for i := 0; i < 3; i++ {
			referrer := eligibleReferrer(t, fixtures)
			referrers = append(referrers, referrer)

			_, err := subscriptionFlow.Subscribe(context.Background(), referrer.ID,
				&dto.SubscribeRequest{DealID: deal.ID}, testMetadata())
			require.NoError(t, err)
		}

		t.Run("OwnerSeesSubscribers", func(t *testing.T) {
			result, err := subscriptionFlow.DealSubscribers(context.Background(), owner.ID, deal.ID)
			require.NoError(t, err)
			assert.Equal(t, deal.ID, result.DealID)
			require.Len(t, result.Subscribers, 3)

			emails := make(map[string]bool)
			for _, s := range result.Subscribers {
				assert.NotEmpty(t, s.ReferralCode)
				assert.NotEmpty(t, s.ReferralLink)
				emails[s.Email] = true
			}
			for _, r := range referrers {
				assert.True(t, emails[r.Email])
			}
		})

		t.Run("ForeignBusinessDenied", func(t *testing.T) {
			intruder, _ := activeDeal(t, fixtures)

			result, err := subscriptionFlow.DealSubscribers(context.Background(), intruder.ID, deal.ID)
			assert.Error(t, err)
			assert.Nil(t, result)
			assert.True(t, IsDealAccessDenied(err))
		})

		t.Run("CustomerDenied", func(t *testing.T) {
			customer, err := fixtures.CreateTestUser(models.UserRoleCustomer)
			require.NoError(t, err)

			result, err := subscriptionFlow.DealSubscribers(context.Background(), customer.ID, deal.ID)
			assert.Error(t, err)
			assert.Nil(t, result)
			assert.True(t, IsNotBusinessAccount(err))
		})

		t.Run("ExportProducesWorkbook", func(t *testing.T) {
			filename, data, err := subscriptionFlow.ExportDealSubscribers(context.Background(), owner.ID, deal.ID, testMetadata())
			require.NoError(t, err)
			assert.Contains(t, filename, ".xlsx")
			require.NotEmpty(t, data)

			xl, err := excelize.OpenReader(bytes.NewReader(data))
			require.NoError(t, err)
			defer func() { _ = xl.Close() }()

			rows, err := xl.GetRows(xl.GetSheetName(0))
			require.NoError(t, err)
			// Header plus one row per subscriber
			require.Len(t, rows, 4)
			assert.Equal(t, "user_id", rows[0][0])
			assert.Equal(t, "referral_code", rows[0][3])
		})

		return nil
	})
	require.NoError(t, err)
}

func TestMySubscriptions(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		subscriptionFlow := newSubscriptionFlowForTest(testDB)

		referrer := eligibleReferrer(t, fixtures)

		_, firstDeal := activeDeal(t, fixtures)
		_, secondDeal := activeDeal(t, fixtures)

		for _, deal := range []*models.Deal{firstDeal, secondDeal} {
			_, err := subscriptionFlow.Subscribe(context.Background(), referrer.ID,
				&dto.SubscribeRequest{DealID: deal.ID}, testMetadata())
			require.NoError(t, err)
		}

		result, err := subscriptionFlow.MySubscriptions(context.Background(), referrer.ID)
		require.NoError(t, err)
		require.Len(t, result.Subscriptions, 2)

		// Unsubscribing removes the entry from the list
		require.NoError(t, subscriptionFlow.Unsubscribe(context.Background(), referrer.ID, firstDeal.ID, testMetadata()))

		result, err = subscriptionFlow.MySubscriptions(context.Background(), referrer.ID)
		require.NoError(t, err)
		require.Len(t, result.Subscriptions, 1)
		assert.Equal(t, secondDeal.ID, result.Subscriptions[0].DealID)

		return nil
	})
	require.NoError(t, err)
}

func TestGenerateReferralCode(t *testing.T) {
	seen := make(map[string]bool)

	for i := 0; i < 200; i++ {
		code, err := GenerateReferralCode()
		require.NoError(t, err)
		require.Len(t, code, models.ReferralCodeLength)

		for _, c := range code {
			assert.Contains(t, models.ReferralCodeAlphabet, string(c))
		}

		seen[code] = true
	}

	// 36^8 combinations; 200 draws colliding would point at a broken RNG
	assert.Len(t, seen, 200)
}

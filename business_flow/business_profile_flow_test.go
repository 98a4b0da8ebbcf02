// Package businessflow contains the core business logic and use cases for the referral marketplace workflows
package businessflow

import (
	"context"
	"testing"

	"github.com/Hassan-Shakoor/DealShark-BE/app/services"
	"github.com/Hassan-Shakoor/DealShark-BE/models"
	"github.com/Hassan-Shakoor/DealShark-BE/repository"
	testingutil "github.com/Hassan-Shakoor/DealShark-BE/testing"
	"github.com/Hassan-Shakoor/DealShark-BE/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBusinessProfileFlowForTest(testDB *testingutil.TestDB, gateway services.PaymentGateway) BusinessProfileFlow {
	return NewBusinessProfileFlow(
		repository.NewUserRepository(testDB.DB),
		repository.NewBusinessRepository(testDB.DB),
		repository.NewDealRepository(testDB.DB),
		repository.NewAuditLogRepository(testDB.DB),
		gateway,
		OnboardingURLs{
			RefreshURL: "https://dealshark.test/onboarding/refresh",
			ReturnURL:  "https://dealshark.test/onboarding/return",
		},
		testDB.DB,
	)
}

func onboardingFlag(t *testing.T, testDB *testingutil.TestDB, businessID uint) bool {
	t.Helper()

	var row models.Business
	err := testDB.DB.First(&row, businessID).Error
	require.NoError(t, err)

	return row.IsOnboarded()
}

func TestGetMyBusinessOnboardingRefresh(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)

		t.Run("OpenGatesCompleteOnboarding", func(t *testing.T) {
			user, err := fixtures.CreateTestUser(models.UserRoleBusiness)
			require.NoError(t, err)
			business, err := fixtures.CreateTestBusiness(user.ID, false)
			require.NoError(t, err)

			// The account was connected but the webhook never arrived
			err = testDB.DB.Model(&models.Business{}).Where("id = ?", business.ID).
				Update("stripe_account_id", "acct_refresh_open").Error
			require.NoError(t, err)

			gateway := services.NewMockPaymentGateway()
			gateway.AccountStatuses = map[string]*services.AccountStatus{
				"acct_refresh_open": {
					AccountID:        "acct_refresh_open",
					DetailsSubmitted: true,
					ChargesEnabled:   true,
					PayoutsEnabled:   true,
				},
			}
			profileFlow := newBusinessProfileFlowForTest(testDB, gateway)

			profile, err := profileFlow.GetMyBusiness(context.Background(), user.ID)
			require.NoError(t, err)
			assert.True(t, utils.IsTrue(profile.IsOnboardingCompleted))
			assert.True(t, onboardingFlag(t, testDB, business.ID))
		})

		t.Run("ClosedGatesRevokeOnboarding", func(t *testing.T) {
			user, err := fixtures.CreateTestUser(models.UserRoleBusiness)
			require.NoError(t, err)
			business, err := fixtures.CreateTestBusiness(user.ID, true)
			require.NoError(t, err)

			// Unscripted accounts report every gate closed
			gateway := services.NewMockPaymentGateway()
			profileFlow := newBusinessProfileFlowForTest(testDB, gateway)

			profile, err := profileFlow.GetMyBusiness(context.Background(), user.ID)
			require.NoError(t, err)
			assert.False(t, utils.IsTrue(profile.IsOnboardingCompleted))
			assert.False(t, onboardingFlag(t, testDB, business.ID))
		})

		t.Run("ProviderErrorLeavesFlagUntouched", func(t *testing.T) {
			user, err := fixtures.CreateTestUser(models.UserRoleBusiness)
			require.NoError(t, err)
			business, err := fixtures.CreateTestBusiness(user.ID, true)
			require.NoError(t, err)

			gateway := services.NewMockPaymentGateway()
			gateway.FailAccountStatus = true
			profileFlow := newBusinessProfileFlowForTest(testDB, gateway)

			profile, err := profileFlow.GetMyBusiness(context.Background(), user.ID)
			require.NoError(t, err)
			assert.True(t, utils.IsTrue(profile.IsOnboardingCompleted))
			assert.True(t, onboardingFlag(t, testDB, business.ID))
		})

		t.Run("NoConnectedAccountSkipsProvider", func(t *testing.T) {
			user, err := fixtures.CreateTestUser(models.UserRoleBusiness)
			require.NoError(t, err)
			business, err := fixtures.CreateTestBusiness(user.ID, false)
			require.NoError(t, err)

			// Would error if the provider were consulted
			gateway := services.NewMockPaymentGateway()
			gateway.FailAccountStatus = true
			profileFlow := newBusinessProfileFlowForTest(testDB, gateway)

			profile, err := profileFlow.GetMyBusiness(context.Background(), user.ID)
			require.NoError(t, err)
			assert.False(t, utils.IsTrue(profile.IsOnboardingCompleted))
			assert.False(t, onboardingFlag(t, testDB, business.ID))
		})

		return nil
	})
	require.NoError(t, err)
}

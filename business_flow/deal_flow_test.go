// Package businessflow contains the core business logic and use cases for the referral marketplace workflows
package businessflow

import (
	"context"
	"testing"

	"github.com/Hassan-Shakoor/DealShark-BE/app/dto"
	"github.com/Hassan-Shakoor/DealShark-BE/models"
	"github.com/Hassan-Shakoor/DealShark-BE/repository"
	testingutil "github.com/Hassan-Shakoor/DealShark-BE/testing"
	"github.com/Hassan-Shakoor/DealShark-BE/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDealFlowForTest(testDB *testingutil.TestDB) DealFlow {
	return NewDealFlow(
		repository.NewUserRepository(testDB.DB),
		repository.NewBusinessRepository(testDB.DB),
		repository.NewDealRepository(testDB.DB),
		repository.NewAuditLogRepository(testDB.DB),
		testDB.DB,
	)
}

func commissionDealRequest(name string, pct float64) *dto.CreateDealRequest {
	return &dto.CreateDealRequest{
		DealName:        name,
		DealDescription: "Test deal description",
		RewardType:      models.RewardTypeCommission,
		CommissionPct:   utils.ToPtr(pct),
	}
}

// onboardedBusinessUser creates a business user whose payment onboarding is done
func onboardedBusinessUser(t *testing.T, fixtures *testingutil.TestFixtures) (*models.User, *models.Business) {
	t.Helper()

	user, err := fixtures.CreateTestUser(models.UserRoleBusiness)
	require.NoError(t, err)
	business, err := fixtures.CreateTestBusiness(user.ID, true)
	require.NoError(t, err)

	return user, business
}

func TestCreateDeal(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		dealFlow := newDealFlowForTest(testDB)

		t.Run("SuccessfulCommissionDeal", func(t *testing.T) {
			user, business := onboardedBusinessUser(t, fixtures)

			deal, err := dealFlow.CreateDeal(context.Background(), user.ID,
				commissionDealRequest("Summer Sale", 15), testMetadata())
			require.NoError(t, err)
			require.NotNil(t, deal)
			assert.Equal(t, business.ID, deal.BusinessID)
			assert.Equal(t, "Summer Sale", deal.DealName)
			assert.Equal(t, models.RewardTypeCommission, deal.RewardType)
			require.NotNil(t, deal.CommissionPct)
			assert.Equal(t, 15.0, *deal.CommissionPct)
		})

		t.Run("SuccessfulNoRewardDeal", func(t *testing.T) {
			user, _ := onboardedBusinessUser(t, fixtures)

			deal, err := dealFlow.CreateDeal(context.Background(), user.ID, &dto.CreateDealRequest{
				DealName:          "Brand Awareness",
				DealDescription:   "Share for the love of it",
				RewardType:        models.RewardTypeNoReward,
				CustomerIncentive: utils.ToPtr("10% off first order"),
			}, testMetadata())
			require.NoError(t, err)
			assert.Equal(t, models.RewardTypeNoReward, deal.RewardType)
			assert.Nil(t, deal.CommissionPct)
		})

		t.Run("CommissionDealRequiresPercentage", func(t *testing.T) {
			user, _ := onboardedBusinessUser(t, fixtures)

			deal, err := dealFlow.CreateDeal(context.Background(), user.ID, &dto.CreateDealRequest{
				DealName:        "Broken Deal",
				DealDescription: "Missing percentage",
				RewardType:      models.RewardTypeCommission,
			}, testMetadata())
			assert.Error(t, err)
			assert.Nil(t, deal)
			assert.True(t, IsCommissionPctRequired(err))
		})

		t.Run("NoRewardDealForbidsPercentage", func(t *testing.T) {
			user, _ := onboardedBusinessUser(t, fixtures)

			deal, err := dealFlow.CreateDeal(context.Background(), user.ID, &dto.CreateDealRequest{
				DealName:        "Broken Deal",
				DealDescription: "Stray percentage",
				RewardType:      models.RewardTypeNoReward,
				CommissionPct:   utils.ToPtr(10.0),
			}, testMetadata())
			assert.Error(t, err)
			assert.Nil(t, deal)
			assert.True(t, IsCommissionPctForbidden(err))
		})

		t.Run("CommissionPercentageBounds", func(t *testing.T) {
			user, _ := onboardedBusinessUser(t, fixtures)

			for _, pct := range []float64{0, -5, 100.01, 150} {
				deal, err := dealFlow.CreateDeal(context.Background(), user.ID,
					commissionDealRequest("Bounds Deal", pct), testMetadata())
				assert.Error(t, err, "pct %f", pct)
				assert.Nil(t, deal)
				assert.True(t, IsCommissionPctOutOfRange(err))
			}

			// 100 is inclusive
			deal, err := dealFlow.CreateDeal(context.Background(), user.ID,
				commissionDealRequest("Full Commission", 100), testMetadata())
			require.NoError(t, err)
			assert.NotNil(t, deal)
		})

		t.Run("RequiresConnectedPaymentAccount", func(t *testing.T) {
			user, err := fixtures.CreateTestUser(models.UserRoleBusiness)
			require.NoError(t, err)
			_, err = fixtures.CreateTestBusiness(user.ID, false)
			require.NoError(t, err)

			deal, err := dealFlow.CreateDeal(context.Background(), user.ID,
				commissionDealRequest("Gated Deal", 10), testMetadata())
			assert.Error(t, err)
			assert.Nil(t, deal)
			assert.True(t, IsNoStripeAccount(err))
		})

		t.Run("RequiresCompletedOnboarding", func(t *testing.T) {
			user, err := fixtures.CreateTestUser(models.UserRoleBusiness)
			require.NoError(t, err)
			business, err := fixtures.CreateTestBusiness(user.ID, false)
			require.NoError(t, err)

			// Connected account but onboarding never finished
			err = testDB.DB.Model(&models.Business{}).Where("id = ?", business.ID).
				Update("stripe_account_id", "acct_incomplete").Error
			require.NoError(t, err)

			deal, err := dealFlow.CreateDeal(context.Background(), user.ID,
				commissionDealRequest("Gated Deal", 10), testMetadata())
			assert.Error(t, err)
			assert.Nil(t, deal)
			assert.True(t, IsOnboardingIncomplete(err))
		})

		t.Run("CustomerCannotCreateDeals", func(t *testing.T) {
			user, err := fixtures.CreateTestUser(models.UserRoleCustomer)
			require.NoError(t, err)

			deal, err := dealFlow.CreateDeal(context.Background(), user.ID,
				commissionDealRequest("Customer Deal", 10), testMetadata())
			assert.Error(t, err)
			assert.Nil(t, deal)
			assert.True(t, IsNotBusinessAccount(err))
		})

		t.Run("DuplicateCommissionAmount", func(t *testing.T) {
			user, _ := onboardedBusinessUser(t, fixtures)

			_, err := dealFlow.CreateDeal(context.Background(), user.ID,
				commissionDealRequest("First Offer", 15), testMetadata())
			require.NoError(t, err)

			// A second active commission deal at the same percentage is a
			// conflict regardless of its name
			deal, err := dealFlow.CreateDeal(context.Background(), user.ID,
				commissionDealRequest("Second Offer", 15), testMetadata())
			assert.Error(t, err)
			assert.Nil(t, deal)
			assert.True(t, IsDuplicateCommissionPct(err))
		})

		t.Run("DifferentPercentagesAllowed", func(t *testing.T) {
			user, _ := onboardedBusinessUser(t, fixtures)

			_, err := dealFlow.CreateDeal(context.Background(), user.ID,
				commissionDealRequest("Ten Percent Offer", 10), testMetadata())
			require.NoError(t, err)

			deal, err := dealFlow.CreateDeal(context.Background(), user.ID,
				commissionDealRequest("Twenty Percent Offer", 20), testMetadata())
			require.NoError(t, err)
			assert.NotNil(t, deal)
		})

		t.Run("SamePercentageAllowedAcrossBusinesses", func(t *testing.T) {
			firstUser, _ := onboardedBusinessUser(t, fixtures)
			secondUser, _ := onboardedBusinessUser(t, fixtures)

			_, err := dealFlow.CreateDeal(context.Background(), firstUser.ID,
				commissionDealRequest("Shared Rate", 10), testMetadata())
			require.NoError(t, err)

			deal, err := dealFlow.CreateDeal(context.Background(), secondUser.ID,
				commissionDealRequest("Shared Rate", 10), testMetadata())
			require.NoError(t, err)
			assert.NotNil(t, deal)
		})

		t.Run("NoRewardDealsDoNotConflict", func(t *testing.T) {
			user, _ := onboardedBusinessUser(t, fixtures)

			for _, name := range []string{"Awareness One", "Awareness Two"} {
				deal, err := dealFlow.CreateDeal(context.Background(), user.ID, &dto.CreateDealRequest{
					DealName:        name,
					DealDescription: "Share for the love of it",
					RewardType:      models.RewardTypeNoReward,
				}, testMetadata())
				require.NoError(t, err)
				assert.NotNil(t, deal)
			}
		})

		t.Run("DeletionFreesTheCommissionSlot", func(t *testing.T) {
			user, _ := onboardedBusinessUser(t, fixtures)

			first, err := dealFlow.CreateDeal(context.Background(), user.ID,
				commissionDealRequest("Recycled Rate", 10), testMetadata())
			require.NoError(t, err)

			err = dealFlow.DeleteDeal(context.Background(), user.ID, first.ID, testMetadata())
			require.NoError(t, err)

			second, err := dealFlow.CreateDeal(context.Background(), user.ID,
				commissionDealRequest("Recycled Rate", 10), testMetadata())
			require.NoError(t, err)
			assert.NotEqual(t, first.ID, second.ID)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestListDeals(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		dealFlow := newDealFlowForTest(testDB)

		user, business := onboardedBusinessUser(t, fixtures)

		_, err := dealFlow.CreateDeal(context.Background(), user.ID,
			commissionDealRequest("Listed Commission Deal", 10), testMetadata())
		require.NoError(t, err)

		_, err = dealFlow.CreateDeal(context.Background(), user.ID, &dto.CreateDealRequest{
			DealName:        "Listed Plain Deal",
			DealDescription: "No reward here",
			RewardType:      models.RewardTypeNoReward,
		}, testMetadata())
		require.NoError(t, err)

		t.Run("ListsActiveDeals", func(t *testing.T) {
			result, err := dealFlow.ListDeals(context.Background(), &dto.ListDealsRequest{})
			require.NoError(t, err)
			assert.Len(t, result.Deals, 2)
			assert.Equal(t, int64(2), result.Pagination.Total)
		})

		t.Run("FiltersByRewardType", func(t *testing.T) {
			result, err := dealFlow.ListDeals(context.Background(), &dto.ListDealsRequest{
				RewardType: models.RewardTypeCommission,
			})
			require.NoError(t, err)
			require.Len(t, result.Deals, 1)
			assert.Equal(t, "Listed Commission Deal", result.Deals[0].DealName)
		})

		t.Run("SearchMatchesName", func(t *testing.T) {
			result, err := dealFlow.ListDeals(context.Background(), &dto.ListDealsRequest{
				Search: "Plain",
			})
			require.NoError(t, err)
			require.Len(t, result.Deals, 1)
			assert.Equal(t, "Listed Plain Deal", result.Deals[0].DealName)
		})

		t.Run("DeactivatedDealsDisappear", func(t *testing.T) {
			deal, err := dealFlow.CreateDeal(context.Background(), user.ID,
				commissionDealRequest("Ephemeral Deal", 12), testMetadata())
			require.NoError(t, err)

			err = dealFlow.DeleteDeal(context.Background(), user.ID, deal.ID, testMetadata())
			require.NoError(t, err)

			result, err := dealFlow.ListDeals(context.Background(), &dto.ListDealsRequest{
				Search: "Ephemeral",
			})
			require.NoError(t, err)
			assert.Empty(t, result.Deals)

			// The public single-deal endpoint hides it too
			single, err := dealFlow.GetDeal(context.Background(), deal.ID)
			assert.Error(t, err)
			assert.Nil(t, single)
			assert.True(t, IsDealNotFound(err))
		})

		t.Run("MyDealsIncludesInactive", func(t *testing.T) {
			result, err := dealFlow.MyDeals(context.Background(), user.ID)
			require.NoError(t, err)
			// Two active plus the deactivated one from the previous subtest
			assert.GreaterOrEqual(t, len(result.Deals), 3)
			for _, d := range result.Deals {
				assert.Equal(t, business.ID, d.BusinessID)
			}
		})

		t.Run("InvalidPagination", func(t *testing.T) {
			_, err := dealFlow.ListDeals(context.Background(), &dto.ListDealsRequest{Page: -1})
			assert.Error(t, err)
			assert.True(t, IsInvalidPage(err))

			_, err = dealFlow.ListDeals(context.Background(), &dto.ListDealsRequest{PageSize: 500})
			assert.Error(t, err)
			assert.True(t, IsInvalidPageSize(err))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestDeleteDeal(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		dealFlow := newDealFlowForTest(testDB)

		t.Run("CannotDeleteForeignDeal", func(t *testing.T) {
			owner, _ := onboardedBusinessUser(t, fixtures)
			intruder, _ := onboardedBusinessUser(t, fixtures)

			deal, err := dealFlow.CreateDeal(context.Background(), owner.ID,
				commissionDealRequest("Protected Deal", 10), testMetadata())
			require.NoError(t, err)

			err = dealFlow.DeleteDeal(context.Background(), intruder.ID, deal.ID, testMetadata())
			assert.Error(t, err)
			assert.True(t, IsDealAccessDenied(err))
		})

		t.Run("DeleteUnknownDeal", func(t *testing.T) {
			user, _ := onboardedBusinessUser(t, fixtures)

			err := dealFlow.DeleteDeal(context.Background(), user.ID, 999999, testMetadata())
			assert.Error(t, err)
			assert.True(t, IsDealNotFound(err))
		})

		t.Run("DoubleDeleteIsNotFound", func(t *testing.T) {
			user, _ := onboardedBusinessUser(t, fixtures)

			deal, err := dealFlow.CreateDeal(context.Background(), user.ID,
				commissionDealRequest("Short Lived", 10), testMetadata())
			require.NoError(t, err)

			require.NoError(t, dealFlow.DeleteDeal(context.Background(), user.ID, deal.ID, testMetadata()))

			err = dealFlow.DeleteDeal(context.Background(), user.ID, deal.ID, testMetadata())
			assert.Error(t, err)
			assert.True(t, IsDealNotFound(err))
		})

		return nil
	})
	require.NoError(t, err)
}

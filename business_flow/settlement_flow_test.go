// Package businessflow contains the core business logic and use cases for the referral marketplace workflows
package businessflow

import (
	"context"
	"fmt"
	"testing"

	"github.com/Hassan-Shakoor/DealShark-BE/app/dto"
	"github.com/Hassan-Shakoor/DealShark-BE/app/services"
	"github.com/Hassan-Shakoor/DealShark-BE/models"
	"github.com/Hassan-Shakoor/DealShark-BE/repository"
	testingutil "github.com/Hassan-Shakoor/DealShark-BE/testing"
	"github.com/Hassan-Shakoor/DealShark-BE/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSettlementFlowForTest(testDB *testingutil.TestDB, gateway services.PaymentGateway) SettlementFlow {
	return NewSettlementFlow(
		repository.NewBusinessRepository(testDB.DB),
		repository.NewSubscriptionRepository(testDB.DB),
		repository.NewSettlementRepository(testDB.DB),
		repository.NewWebhookEventRepository(testDB.DB),
		repository.NewAuditLogRepository(testDB.DB),
		gateway,
		nil,
		CheckoutURLs{
			SuccessURL: "https://dealshark.test/checkout/success",
			CancelURL:  "https://dealshark.test/checkout/cancel",
		},
		testDB.DB,
	)
}

func checkoutCompletedPayload(eventID, referralCode string, amountCents int64) []byte {
	return []byte(fmt.Sprintf(`{
		"id": %q,
		"type": "checkout.session.completed",
		"data": {
			"object": {
				"id": "cs_test_1",
				"amount_total": %d,
				"currency": "usd",
				"metadata": {"referral_code": %q}
			}
		}
	}`, eventID, amountCents, referralCode))
}

func accountUpdatedPayload(eventID, accountID string, submitted, charges, payouts bool) []byte {
	return []byte(fmt.Sprintf(`{
		"id": %q,
		"type": "account.updated",
		"data": {
			"object": {
				"id": %q,
				"details_submitted": %t,
				"charges_enabled": %t,
				"payouts_enabled": %t
			}
		}
	}`, eventID, accountID, submitted, charges, payouts))
}

// referredSale sets up an onboarded business, an active commission deal, and
// a subscribed referrer, returning the subscription carrying the code.
func referredSale(t *testing.T, testDB *testingutil.TestDB, pct float64) *models.Subscription {
	t.Helper()

	fixtures := testingutil.NewTestFixtures(testDB)

	owner, err := fixtures.CreateTestUser(models.UserRoleBusiness)
	require.NoError(t, err)
	business, err := fixtures.CreateTestBusiness(owner.ID, true)
	require.NoError(t, err)
	deal, err := fixtures.CreateTestDeal(business.ID, models.RewardTypeCommission, utils.ToPtr(pct))
	require.NoError(t, err)

	referrer, err := fixtures.CreateTestUser(models.UserRoleCustomer)
	require.NoError(t, err)
	sub, err := fixtures.CreateTestSubscription(deal.ID, referrer.ID)
	require.NoError(t, err)

	return sub
}

func TestHandleWebhookCheckoutCompleted(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		settlementRepo := repository.NewSettlementRepository(testDB.DB)

		t.Run("SettlesReferredPayment", func(t *testing.T) {
			gateway := services.NewMockPaymentGateway()
			settlementFlow := newSettlementFlowForTest(testDB, gateway)
			sub := referredSale(t, testDB, 10)

			ack, err := settlementFlow.HandleWebhook(context.Background(),
				checkoutCompletedPayload("evt_settle_1", sub.ReferralCode, 10000), "sig")
			require.NoError(t, err)
			assert.True(t, ack.Received)
			assert.Equal(t, "processed", ack.Status)

			settlements, err := settlementRepo.ListByUser(context.Background(), sub.ReferrerUserID, 10, 0)
			require.NoError(t, err)
			require.Len(t, settlements, 1)

			settlement := settlements[0]
			assert.Equal(t, int64(10000), settlement.GrossAmount)
			assert.Equal(t, int64(1000), settlement.ReferrerCut)
			assert.Equal(t, int64(9000), settlement.BusinessCut)
			assert.Equal(t, sub.ReferralCode, settlement.ReferralCode)

			// The business leg transfers immediately; the referrer has no
			// connected account yet so that leg stays pending.
			assert.Equal(t, models.TransferStatusCompleted, settlement.BusinessTransferStatus)
			assert.Equal(t, models.TransferStatusPending, settlement.ReferrerTransferStatus)

			require.Len(t, gateway.Transfers, 1)
			assert.Equal(t, int64(9000), gateway.Transfers[0].AmountCents)
			assert.Equal(t, sub.ReferralCode, gateway.Transfers[0].TransferGroup)
		})

		t.Run("PaysReferrerWithConnectedAccount", func(t *testing.T) {
			gateway := services.NewMockPaymentGateway()
			settlementFlow := newSettlementFlowForTest(testDB, gateway)
			fixtures := testingutil.NewTestFixtures(testDB)
			sub := referredSale(t, testDB, 20)

			// The referrer runs a business with a connected account of its own
			_, err := fixtures.CreateTestBusiness(sub.ReferrerUserID, true)
			require.NoError(t, err)

			ack, err := settlementFlow.HandleWebhook(context.Background(),
				checkoutCompletedPayload("evt_settle_2", sub.ReferralCode, 5000), "sig")
			require.NoError(t, err)
			assert.Equal(t, "processed", ack.Status)

			settlements, err := settlementRepo.ListByUser(context.Background(), sub.ReferrerUserID, 10, 0)
			require.NoError(t, err)
			require.Len(t, settlements, 1)
			assert.Equal(t, models.TransferStatusCompleted, settlements[0].BusinessTransferStatus)
			assert.Equal(t, models.TransferStatusCompleted, settlements[0].ReferrerTransferStatus)

			// Both legs share the referral code as their transfer group
			require.Len(t, gateway.Transfers, 2)
			assert.Equal(t, sub.ReferralCode, gateway.Transfers[0].TransferGroup)
			assert.Equal(t, sub.ReferralCode, gateway.Transfers[1].TransferGroup)
			assert.Equal(t, int64(5000), gateway.Transfers[0].AmountCents+gateway.Transfers[1].AmountCents)
		})

		t.Run("FailedTransferLegDoesNotBlockTheOther", func(t *testing.T) {
			gateway := services.NewMockPaymentGateway()
			gateway.FailTransfers = true
			settlementFlow := newSettlementFlowForTest(testDB, gateway)
			sub := referredSale(t, testDB, 10)

			ack, err := settlementFlow.HandleWebhook(context.Background(),
				checkoutCompletedPayload("evt_settle_3", sub.ReferralCode, 10000), "sig")
			require.NoError(t, err)
			assert.Equal(t, "processed", ack.Status)

			settlements, err := settlementRepo.ListByUser(context.Background(), sub.ReferrerUserID, 10, 0)
			require.NoError(t, err)
			require.Len(t, settlements, 1)
			assert.Equal(t, models.TransferStatusFailed, settlements[0].BusinessTransferStatus)
			require.NotNil(t, settlements[0].BusinessTransferError)
		})

		t.Run("UnknownReferralCodeIsDropped", func(t *testing.T) {
			gateway := services.NewMockPaymentGateway()
			settlementFlow := newSettlementFlowForTest(testDB, gateway)
			webhookEventRepo := repository.NewWebhookEventRepository(testDB.DB)

			ack, err := settlementFlow.HandleWebhook(context.Background(),
				checkoutCompletedPayload("evt_unknown_code", "ZZZZZZZZ", 10000), "sig")
			require.NoError(t, err)
			assert.True(t, ack.Received)
			assert.Equal(t, "dropped", ack.Status)
			assert.Empty(t, gateway.Transfers)

			ledger, err := webhookEventRepo.ByEventID(context.Background(), "evt_unknown_code")
			require.NoError(t, err)
			require.NotNil(t, ledger)
			assert.Equal(t, models.WebhookStatusDropped, ledger.Status)
			require.NotNil(t, ledger.Detail)
			assert.Contains(t, *ledger.Detail, "ZZZZZZZZ")
		})

		t.Run("NoRewardDealIsDropped", func(t *testing.T) {
			gateway := services.NewMockPaymentGateway()
			settlementFlow := newSettlementFlowForTest(testDB, gateway)
			fixtures := testingutil.NewTestFixtures(testDB)

			owner, err := fixtures.CreateTestUser(models.UserRoleBusiness)
			require.NoError(t, err)
			business, err := fixtures.CreateTestBusiness(owner.ID, true)
			require.NoError(t, err)
			deal, err := fixtures.CreateTestDeal(business.ID, models.RewardTypeNoReward, nil)
			require.NoError(t, err)
			referrer, err := fixtures.CreateTestUser(models.UserRoleCustomer)
			require.NoError(t, err)
			sub, err := fixtures.CreateTestSubscription(deal.ID, referrer.ID)
			require.NoError(t, err)

			ack, err := settlementFlow.HandleWebhook(context.Background(),
				checkoutCompletedPayload("evt_no_reward", sub.ReferralCode, 10000), "sig")
			require.NoError(t, err)
			assert.Equal(t, "dropped", ack.Status)
			assert.Empty(t, gateway.Transfers)
		})

		t.Run("ReplayedEventHasNoEffect", func(t *testing.T) {
			gateway := services.NewMockPaymentGateway()
			settlementFlow := newSettlementFlowForTest(testDB, gateway)
			sub := referredSale(t, testDB, 10)

			payload := checkoutCompletedPayload("evt_replayed", sub.ReferralCode, 10000)

			first, err := settlementFlow.HandleWebhook(context.Background(), payload, "sig")
			require.NoError(t, err)
			assert.Equal(t, "processed", first.Status)

			second, err := settlementFlow.HandleWebhook(context.Background(), payload, "sig")
			require.NoError(t, err)
			assert.True(t, second.Received)
			assert.Equal(t, "duplicate", second.Status)

			// Exactly one settlement and one transfer came out of two deliveries
			settlements, err := settlementRepo.ListByUser(context.Background(), sub.ReferrerUserID, 10, 0)
			require.NoError(t, err)
			assert.Len(t, settlements, 1)
			assert.Len(t, gateway.Transfers, 1)
		})

		t.Run("MissingSignatureRejected", func(t *testing.T) {
			gateway := services.NewMockPaymentGateway()
			settlementFlow := newSettlementFlowForTest(testDB, gateway)
			sub := referredSale(t, testDB, 10)

			ack, err := settlementFlow.HandleWebhook(context.Background(),
				checkoutCompletedPayload("evt_unsigned", sub.ReferralCode, 10000), "")
			assert.Error(t, err)
			assert.Nil(t, ack)
			assert.True(t, IsWebhookSignatureInvalid(err))

			settlements, err := settlementRepo.ListByUser(context.Background(), sub.ReferrerUserID, 10, 0)
			require.NoError(t, err)
			assert.Empty(t, settlements)
		})

		t.Run("UnknownEventTypeIgnored", func(t *testing.T) {
			gateway := services.NewMockPaymentGateway()
			settlementFlow := newSettlementFlowForTest(testDB, gateway)

			ack, err := settlementFlow.HandleWebhook(context.Background(),
				[]byte(`{"id": "evt_other", "type": "invoice.paid", "data": {"object": {}}}`), "sig")
			require.NoError(t, err)
			assert.True(t, ack.Received)
			assert.Equal(t, "ignored", ack.Status)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestHandleWebhookAccountUpdated(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		businessRepo := repository.NewBusinessRepository(testDB.DB)
		gateway := services.NewMockPaymentGateway()
		settlementFlow := newSettlementFlowForTest(testDB, gateway)

		t.Run("AllGatesOpenCompletesOnboarding", func(t *testing.T) {
			user, err := fixtures.CreateTestUser(models.UserRoleBusiness)
			require.NoError(t, err)
			business, err := fixtures.CreateTestBusiness(user.ID, false)
			require.NoError(t, err)

			accountID := fmt.Sprintf("acct_hook_%d", business.ID)
			err = testDB.DB.Model(&models.Business{}).Where("id = ?", business.ID).
				Update("stripe_account_id", accountID).Error
			require.NoError(t, err)

			ack, err := settlementFlow.HandleWebhook(context.Background(),
				accountUpdatedPayload("evt_acct_complete_"+accountID, accountID, true, true, true), "sig")
			require.NoError(t, err)
			assert.Equal(t, "processed", ack.Status)

			updated, err := businessRepo.ByID(context.Background(), business.ID)
			require.NoError(t, err)
			assert.True(t, updated.IsOnboarded())
		})

		t.Run("AnyGateClosedKeepsOnboardingIncomplete", func(t *testing.T) {
			cases := []struct {
				name                        string
				submitted, charges, payouts bool
			}{
				{"DetailsMissing", false, true, true},
				{"ChargesDisabled", true, false, true},
				{"PayoutsDisabled", true, true, false},
			}

			for _, tc := range cases {
				t.Run(tc.name, func(t *testing.T) {
					user, err := fixtures.CreateTestUser(models.UserRoleBusiness)
					require.NoError(t, err)
					business, err := fixtures.CreateTestBusiness(user.ID, false)
					require.NoError(t, err)

					accountID := fmt.Sprintf("acct_gate_%d", business.ID)
					err = testDB.DB.Model(&models.Business{}).Where("id = ?", business.ID).
						Update("stripe_account_id", accountID).Error
					require.NoError(t, err)

					_, err = settlementFlow.HandleWebhook(context.Background(),
						accountUpdatedPayload("evt_acct_gate_"+accountID, accountID,
							tc.submitted, tc.charges, tc.payouts), "sig")
					require.NoError(t, err)

					updated, err := businessRepo.ByID(context.Background(), business.ID)
					require.NoError(t, err)
					assert.False(t, updated.IsOnboarded())
				})
			}
		})

		t.Run("GateClosingRevokesOnboarding", func(t *testing.T) {
			user, err := fixtures.CreateTestUser(models.UserRoleBusiness)
			require.NoError(t, err)
			business, err := fixtures.CreateTestBusiness(user.ID, true)
			require.NoError(t, err)
			require.NotNil(t, business.StripeAccountID)

			_, err = settlementFlow.HandleWebhook(context.Background(),
				accountUpdatedPayload("evt_acct_revoke_"+*business.StripeAccountID,
					*business.StripeAccountID, true, false, true), "sig")
			require.NoError(t, err)

			updated, err := businessRepo.ByID(context.Background(), business.ID)
			require.NoError(t, err)
			assert.False(t, updated.IsOnboarded())
		})

		t.Run("UnknownAccountAcknowledged", func(t *testing.T) {
			ack, err := settlementFlow.HandleWebhook(context.Background(),
				accountUpdatedPayload("evt_acct_unknown", "acct_not_ours", true, true, true), "sig")
			require.NoError(t, err)
			assert.True(t, ack.Received)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestCreateCheckout(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		gateway := services.NewMockPaymentGateway()
		settlementFlow := newSettlementFlowForTest(testDB, gateway)

		t.Run("SuccessfulCheckout", func(t *testing.T) {
			sub := referredSale(t, testDB, 10)

			result, err := settlementFlow.CreateCheckout(context.Background(), &dto.CreateCheckoutRequest{
				ReferralCode: sub.ReferralCode,
				AmountCents:  2500,
			}, testMetadata())
			require.NoError(t, err)
			assert.NotEmpty(t, result.SessionID)
			assert.NotEmpty(t, result.CheckoutURL)
		})

		t.Run("UnknownCode", func(t *testing.T) {
			result, err := settlementFlow.CreateCheckout(context.Background(), &dto.CreateCheckoutRequest{
				ReferralCode: "ZZZZZZZZ",
				AmountCents:  2500,
			}, testMetadata())
			assert.Error(t, err)
			assert.Nil(t, result)
			assert.True(t, IsReferralCodeNotFound(err))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestMySettlements(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		gateway := services.NewMockPaymentGateway()
		settlementFlow := newSettlementFlowForTest(testDB, gateway)

		sub := referredSale(t, testDB, 10)
		_, err := fixtures.CreateTestSettlement(sub, 10000, 10)
		require.NoError(t, err)

		t.Run("ReferrerSeesSettlement", func(t *testing.T) {
			result, err := settlementFlow.MySettlements(context.Background(), sub.ReferrerUserID, 20, 0)
			require.NoError(t, err)
			require.Len(t, result.Settlements, 1)
			assert.Equal(t, int64(1000), result.Settlements[0].ReferrerCut)
			assert.Equal(t, int64(9000), result.Settlements[0].BusinessCut)
		})

		t.Run("StrangerSeesNothing", func(t *testing.T) {
			stranger, err := fixtures.CreateTestUser(models.UserRoleCustomer)
			require.NoError(t, err)

			result, err := settlementFlow.MySettlements(context.Background(), stranger.ID, 20, 0)
			require.NoError(t, err)
			assert.Empty(t, result.Settlements)
		})

		t.Run("OutOfRangePaginationIsClamped", func(t *testing.T) {
			result, err := settlementFlow.MySettlements(context.Background(), sub.ReferrerUserID, -5, -5)
			require.NoError(t, err)
			assert.Len(t, result.Settlements, 1)
		})

		return nil
	})
	require.NoError(t, err)
}

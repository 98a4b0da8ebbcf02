// Package services provides external service integrations and technical concerns like notifications and tokens
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/account"
	"github.com/stripe/stripe-go/v72/accountlink"
	"github.com/stripe/stripe-go/v72/checkout/session"
	"github.com/stripe/stripe-go/v72/transfer"
	"github.com/stripe/stripe-go/v72/webhook"
)

// PaymentGateway is the narrow surface the business flows use to talk to the
// payment provider. Flows never see provider types; events carry the raw
// object payload for the caller to decode.
type PaymentGateway interface {
	CreateExpressAccount(ctx context.Context, email string) (accountID string, err error)
	CreateAccountLink(ctx context.Context, accountID, refreshURL, returnURL string) (url string, err error)
	GetAccountStatus(ctx context.Context, accountID string) (*AccountStatus, error)
	CreateTransfer(ctx context.Context, req TransferRequest) (transferID string, err error)
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (sessionID, url string, err error)
	VerifyWebhook(payload []byte, signature string) (*GatewayEvent, error)
}

// AccountStatus reflects the onboarding state of a connected account
type AccountStatus struct {
	AccountID        string
	DetailsSubmitted bool
	ChargesEnabled   bool
	PayoutsEnabled   bool
}

// Completed reports whether every onboarding gate is open
func (s *AccountStatus) Completed() bool {
	return s.DetailsSubmitted && s.ChargesEnabled && s.PayoutsEnabled
}

// TransferRequest describes one settlement transfer leg
type TransferRequest struct {
	AmountCents   int64
	Currency      string
	DestinationID string
	TransferGroup string
	Description   string
}

// CheckoutRequest describes a hosted checkout session for a deal
type CheckoutRequest struct {
	DealName     string
	AmountCents  int64
	Currency     string
	ReferralCode string
	SuccessURL   string
	CancelURL    string
}

// GatewayEvent is a verified webhook event. Data holds the raw provider
// object for the flow layer to decode into its own structures.
type GatewayEvent struct {
	ID   string
	Type string
	Data json.RawMessage
}

// MockPaymentGateway implements PaymentGateway for development and testing.
// Transfers are recorded in memory; webhook payloads are parsed directly and
// any non-empty signature is accepted.
type MockPaymentGateway struct {
	mu                sync.Mutex
	seq               int
	Transfers         []TransferRequest
	FailTransfers     bool
	FailAccountStatus bool
	AccountStatuses   map[string]*AccountStatus
}

func NewMockPaymentGateway() *MockPaymentGateway {
	return &MockPaymentGateway{}
}

func (g *MockPaymentGateway) CreateExpressAccount(ctx context.Context, email string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.seq++
	return fmt.Sprintf("acct_mock%d", g.seq), nil
}

func (g *MockPaymentGateway) CreateAccountLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error) {
	return "https://connect.example.com/onboarding/" + accountID, nil
}

// GetAccountStatus returns a scripted status when one is registered,
// otherwise an account with every onboarding gate still closed.
func (g *MockPaymentGateway) GetAccountStatus(ctx context.Context, accountID string) (*AccountStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.FailAccountStatus {
		return nil, fmt.Errorf("mock account status failure")
	}

	if status, ok := g.AccountStatuses[accountID]; ok {
		return status, nil
	}
	return &AccountStatus{AccountID: accountID}, nil
}

func (g *MockPaymentGateway) CreateTransfer(ctx context.Context, req TransferRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.FailTransfers {
		return "", fmt.Errorf("mock transfer failure")
	}

	g.Transfers = append(g.Transfers, req)
	g.seq++
	return fmt.Sprintf("tr_mock%d", g.seq), nil
}

func (g *MockPaymentGateway) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (string, string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.seq++
	sessionID := fmt.Sprintf("cs_mock%d", g.seq)
	return sessionID, "https://checkout.example.com/pay/" + sessionID, nil
}

// VerifyWebhook accepts any non-empty signature and decodes the payload as a
// bare event envelope, mirroring the provider's JSON shape.
func (g *MockPaymentGateway) VerifyWebhook(payload []byte, signature string) (*GatewayEvent, error) {
	if signature == "" {
		return nil, fmt.Errorf("webhook signature verification failed: missing signature")
	}

	var envelope struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Data struct {
			Object json.RawMessage `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("webhook signature verification failed: %w", err)
	}

	return &GatewayEvent{
		ID:   envelope.ID,
		Type: envelope.Type,
		Data: envelope.Data.Object,
	}, nil
}

// StripeGateway implements PaymentGateway on the Stripe API
type StripeGateway struct {
	webhookSecret string
}

// NewStripeGateway creates a gateway and sets the API key for the stripe client
func NewStripeGateway(secretKey, webhookSecret string) (PaymentGateway, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("stripe secret key is required")
	}
	stripe.Key = secretKey

	return &StripeGateway{
		webhookSecret: webhookSecret,
	}, nil
}

// CreateExpressAccount creates an Express connected account for payouts
func (g *StripeGateway) CreateExpressAccount(ctx context.Context, email string) (string, error) {
	params := &stripe.AccountParams{
		Params: stripe.Params{Context: ctx},
		Type:   stripe.String(string(stripe.AccountTypeExpress)),
		Email:  stripe.String(email),
		Capabilities: &stripe.AccountCapabilitiesParams{
			Transfers: &stripe.AccountCapabilitiesTransfersParams{
				Requested: stripe.Bool(true),
			},
		},
	}

	acct, err := account.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create express account: %w", err)
	}

	return acct.ID, nil
}

// CreateAccountLink creates a hosted onboarding link for a connected account
func (g *StripeGateway) CreateAccountLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error) {
	params := &stripe.AccountLinkParams{
		Params:     stripe.Params{Context: ctx},
		Account:    stripe.String(accountID),
		RefreshURL: stripe.String(refreshURL),
		ReturnURL:  stripe.String(returnURL),
		Type:       stripe.String("account_onboarding"),
	}

	link, err := accountlink.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create account link: %w", err)
	}

	return link.URL, nil
}

// GetAccountStatus retrieves the onboarding state of a connected account
func (g *StripeGateway) GetAccountStatus(ctx context.Context, accountID string) (*AccountStatus, error) {
	params := &stripe.AccountParams{
		Params: stripe.Params{Context: ctx},
	}

	acct, err := account.GetByID(accountID, params)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve account: %w", err)
	}

	return &AccountStatus{
		AccountID:        acct.ID,
		DetailsSubmitted: acct.DetailsSubmitted,
		ChargesEnabled:   acct.ChargesEnabled,
		PayoutsEnabled:   acct.PayoutsEnabled,
	}, nil
}

// CreateTransfer moves funds to a connected account, tagged with the transfer group
func (g *StripeGateway) CreateTransfer(ctx context.Context, req TransferRequest) (string, error) {
	params := &stripe.TransferParams{
		Params:        stripe.Params{Context: ctx},
		Amount:        stripe.Int64(req.AmountCents),
		Currency:      stripe.String(req.Currency),
		Destination:   stripe.String(req.DestinationID),
		TransferGroup: stripe.String(req.TransferGroup),
		Description:   stripe.String(req.Description),
	}

	t, err := transfer.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create transfer: %w", err)
	}

	return t.ID, nil
}

// CreateCheckoutSession creates a hosted checkout session carrying the
// referral code in metadata so the webhook can attribute the payment
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (string, string, error) {
	params := &stripe.CheckoutSessionParams{
		Params: stripe.Params{Context: ctx},
		Mode:   stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{
			"card",
		}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(req.Currency),
					UnitAmount: stripe.Int64(req.AmountCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.DealName),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	params.AddMetadata("referral_code", req.ReferralCode)

	sess, err := session.New(params)
	if err != nil {
		return "", "", fmt.Errorf("failed to create checkout session: %w", err)
	}

	return sess.ID, sess.URL, nil
}

// VerifyWebhook checks the event signature against the endpoint secret and
// returns the verified event. Verification is mandatory; there is no
// unverified path.
func (g *StripeGateway) VerifyWebhook(payload []byte, signature string) (*GatewayEvent, error) {
	event, err := webhook.ConstructEvent(payload, signature, g.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("webhook signature verification failed: %w", err)
	}

	return &GatewayEvent{
		ID:   event.ID,
		Type: string(event.Type),
		Data: event.Data.Raw,
	}, nil
}

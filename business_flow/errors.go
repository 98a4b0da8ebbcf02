// Package businessflow contains the core business logic and use cases for the referral marketplace workflows
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// User-related errors
	ErrUserNotFound       = errors.New("user not found")
	ErrAccountInactive    = errors.New("account is inactive")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrEmailNotVerified   = errors.New("email is not verified")
	ErrAlreadyVerified    = errors.New("already verified")
	ErrInvalidRole        = errors.New("invalid user role")

	// OTP-related errors
	ErrNoValidOTPFound = errors.New("no valid OTP found")
	ErrInvalidOTPCode  = errors.New("invalid OTP code")
	ErrOTPExpired      = errors.New("OTP has expired")
	ErrOTPMaxAttempts  = errors.New("maximum OTP attempts exceeded")

	// Session errors
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session has expired")

	// Business-related errors
	ErrBusinessNotFound       = errors.New("business not found")
	ErrBusinessFieldsRequired = errors.New("business fields are required for business accounts")
	ErrNotBusinessAccount     = errors.New("user is not a business account")
	ErrNoStripeAccount        = errors.New("business has no connected payment account")
	ErrOnboardingIncomplete   = errors.New("business has not completed payment onboarding")

	// Deal-related errors
	ErrDealNotFound            = errors.New("deal not found")
	ErrDealAccessDenied        = errors.New("deal access denied")
	ErrDuplicateCommissionPct  = errors.New("an active deal with this commission amount already exists")
	ErrInvalidRewardType       = errors.New("invalid reward type")
	ErrCommissionPctRequired   = errors.New("commission percentage is required for commission deals")
	ErrCommissionPctOutOfRange = errors.New("commission percentage must be greater than 0 and at most 100")
	ErrCommissionPctForbidden  = errors.New("commission percentage is not allowed for no-reward deals")

	// Subscription-related errors
	ErrSubscriptionNotFound    = errors.New("subscription not found")
	ErrReferralCodeNotFound    = errors.New("referral code not found")
	ErrReferralCodeExhausted   = errors.New("could not generate a unique referral code")
	ErrReferrerNoPayoutAccount = errors.New("referrer has no connected payout account")
	ErrReferrerNotOnboarded    = errors.New("referrer has not completed payout onboarding")

	// Settlement errors
	ErrWebhookSignatureInvalid = errors.New("webhook signature verification failed")
	ErrUpstreamGateway         = errors.New("payment gateway request failed")

	// Cache errors
	ErrCacheNotAvailable = errors.New("cache not available")

	// Filter errors
	ErrInvalidPage     = errors.New("page must be at least 1")
	ErrInvalidPageSize = errors.New("page size must be between 1 and 100")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsUserNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound)
}

func IsAccountInactive(err error) bool {
	return errors.Is(err, ErrAccountInactive)
}

func IsInvalidCredentials(err error) bool {
	return errors.Is(err, ErrInvalidCredentials)
}

func IsEmailAlreadyExists(err error) bool {
	return errors.Is(err, ErrEmailAlreadyExists)
}

func IsEmailNotVerified(err error) bool {
	return errors.Is(err, ErrEmailNotVerified)
}

func IsAlreadyVerified(err error) bool {
	return errors.Is(err, ErrAlreadyVerified)
}

func IsInvalidRole(err error) bool {
	return errors.Is(err, ErrInvalidRole)
}

func IsNoValidOTPFound(err error) bool {
	return errors.Is(err, ErrNoValidOTPFound)
}

func IsInvalidOTPCode(err error) bool {
	return errors.Is(err, ErrInvalidOTPCode)
}

func IsOTPExpired(err error) bool {
	return errors.Is(err, ErrOTPExpired)
}

func IsOTPMaxAttempts(err error) bool {
	return errors.Is(err, ErrOTPMaxAttempts)
}

func IsSessionNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound)
}

func IsSessionExpired(err error) bool {
	return errors.Is(err, ErrSessionExpired)
}

func IsBusinessNotFound(err error) bool {
	return errors.Is(err, ErrBusinessNotFound)
}

func IsBusinessFieldsRequired(err error) bool {
	return errors.Is(err, ErrBusinessFieldsRequired)
}

func IsNotBusinessAccount(err error) bool {
	return errors.Is(err, ErrNotBusinessAccount)
}

func IsNoStripeAccount(err error) bool {
	return errors.Is(err, ErrNoStripeAccount)
}

func IsOnboardingIncomplete(err error) bool {
	return errors.Is(err, ErrOnboardingIncomplete)
}

func IsDealNotFound(err error) bool {
	return errors.Is(err, ErrDealNotFound)
}

func IsDealAccessDenied(err error) bool {
	return errors.Is(err, ErrDealAccessDenied)
}

func IsDuplicateCommissionPct(err error) bool {
	return errors.Is(err, ErrDuplicateCommissionPct)
}

func IsInvalidRewardType(err error) bool {
	return errors.Is(err, ErrInvalidRewardType)
}

func IsCommissionPctRequired(err error) bool {
	return errors.Is(err, ErrCommissionPctRequired)
}

func IsCommissionPctOutOfRange(err error) bool {
	return errors.Is(err, ErrCommissionPctOutOfRange)
}

func IsCommissionPctForbidden(err error) bool {
	return errors.Is(err, ErrCommissionPctForbidden)
}

func IsSubscriptionNotFound(err error) bool {
	return errors.Is(err, ErrSubscriptionNotFound)
}

func IsReferralCodeNotFound(err error) bool {
	return errors.Is(err, ErrReferralCodeNotFound)
}

func IsReferralCodeExhausted(err error) bool {
	return errors.Is(err, ErrReferralCodeExhausted)
}

func IsReferrerNoPayoutAccount(err error) bool {
	return errors.Is(err, ErrReferrerNoPayoutAccount)
}

func IsReferrerNotOnboarded(err error) bool {
	return errors.Is(err, ErrReferrerNotOnboarded)
}

func IsWebhookSignatureInvalid(err error) bool {
	return errors.Is(err, ErrWebhookSignatureInvalid)
}

func IsUpstreamGateway(err error) bool {
	return errors.Is(err, ErrUpstreamGateway)
}

func IsCacheNotAvailable(err error) bool {
	return errors.Is(err, ErrCacheNotAvailable)
}

func IsInvalidPage(err error) bool {
	return errors.Is(err, ErrInvalidPage)
}

func IsInvalidPageSize(err error) bool {
	return errors.Is(err, ErrInvalidPageSize)
}

package utils

import (
	"time"
)

// Token and session time constants
const (
	// AccessTokenTTL is the time-to-live for access tokens (24 hours)
	AccessTokenTTL = 24 * time.Hour

	// AccessTokenTTLSeconds is the time-to-live for access tokens in seconds
	AccessTokenTTLSeconds = 86400

	// RefreshTokenTTL is the time-to-live for refresh tokens (7 days)
	RefreshTokenTTL = 7 * 24 * time.Hour

	// SessionTimeout is the default session timeout (24 hours)
	SessionTimeout = 24 * time.Hour

	// OTPExpiry is the time-to-live for OTP codes (10 minutes)
	OTPExpiry = 10 * time.Minute

	// OTPLength is the number of digits in an OTP code
	OTPLength = 6

	// OTPMaxAttempts bounds verification attempts per issued OTP
	OTPMaxAttempts = 3
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

// Referral and settlement constants
const (
	// ReferralCodeMaxAttempts bounds the unique-code generation retry loop
	ReferralCodeMaxAttempts = 10

	// ResolveCacheTTL is how long referral code resolutions stay cached
	ResolveCacheTTL = 5 * time.Minute

	// WebhookDedupTTL is how long processed webhook event IDs stay in the
	// cache fast path; the database ledger is authoritative beyond it
	WebhookDedupTTL = 72 * time.Hour

	// DefaultCurrency is the settlement currency
	DefaultCurrency = "usd"
)

// Pagination constants
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

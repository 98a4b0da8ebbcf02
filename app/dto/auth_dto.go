// Package dto contains Data Transfer Objects for API request and response structures
package dto

// SignupRequest represents the signup form data
type SignupRequest struct {
	// Role selection
	Role string `json:"role" validate:"required,oneof=business customer"`

	// Personal fields (required for all roles)
	FirstName string  `json:"first_name" validate:"required,max=255,alpha_space"`
	LastName  string  `json:"last_name" validate:"required,max=255,alpha_space"`
	Phone     *string `json:"phone,omitempty" validate:"omitempty,min=7,max=20"`

	// Common fields (required for all roles)
	Email           string `json:"email" validate:"required,email,max=255"`
	Password        string `json:"password" validate:"required,min=8,password_strength"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`

	// Business fields (required for the business role)
	BusinessName *string `json:"business_name,omitempty" validate:"omitempty,max=255"`
	Industry     *string `json:"industry,omitempty" validate:"omitempty,max=100"`
	Description  *string `json:"description,omitempty" validate:"omitempty,max=2000"`
	Website      *string `json:"website,omitempty" validate:"omitempty,url,max=255"`
	Address      *string `json:"address,omitempty" validate:"omitempty,max=255"`
}

// SignupResponse represents the response after successful signup initiation
type SignupResponse struct {
	Message   string `json:"message"`
	UserID    uint   `json:"user_id"`
	OTPSent   bool   `json:"otp_sent"`
	OTPTarget string `json:"otp_target"` // Email address (masked for security)
}

// OTPVerificationRequest represents the OTP verification request
type OTPVerificationRequest struct {
	Email   string `json:"email" validate:"required,email"`
	OTPCode string `json:"otp_code" validate:"required,len=6,numeric"`
}

// OTPVerificationResponse represents the response after successful OTP verification
type OTPVerificationResponse struct {
	Message      string  `json:"message"`
	Token        string  `json:"token"`
	RefreshToken string  `json:"refresh_token"`
	User         UserDTO `json:"user"`
}

// OTPResendRequest represents the OTP resend request
type OTPResendRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// OTPResendResponse represents the response after resending an OTP
type OTPResendResponse struct {
	Message         string `json:"message"`
	OTPSent         bool   `json:"otp_sent"`
	MaskedOTPTarget string `json:"masked_otp_target"`
}

// LoginRequest represents the login form data
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse represents the response after successful login
type LoginResponse struct {
	User    UserDTO    `json:"user"`
	Session SessionDTO `json:"session"`
}

// RefreshTokenRequest represents the token refresh request
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// RefreshTokenResponse represents the response after a token refresh
type RefreshTokenResponse struct {
	Session SessionDTO `json:"session"`
}

// UserDTO represents user data for API responses
type UserDTO struct {
	ID              uint         `json:"id"`
	UUID            string       `json:"uuid"`
	FirstName       string       `json:"first_name"`
	LastName        string       `json:"last_name"`
	Email           string       `json:"email"`
	Phone           *string      `json:"phone,omitempty"`
	Role            string       `json:"role"`
	IsEmailVerified *bool        `json:"is_email_verified"`
	IsActive        *bool        `json:"is_active"`
	CreatedAt       string       `json:"created_at"`
	Business        *BusinessDTO `json:"business,omitempty"`
}

// SessionDTO represents session data for API responses
type SessionDTO struct {
	SessionToken string  `json:"session_token"`
	RefreshToken *string `json:"refresh_token,omitempty"`
	ExpiresIn    int     `json:"expires_in"`
	TokenType    string  `json:"token_type"`
	CreatedAt    string  `json:"created_at"`
}

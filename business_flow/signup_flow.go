// Package businessflow contains the core business logic and use cases for authentication workflows
package businessflow

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"

	"github.com/Hassan-Shakoor/DealShark-BE/app/dto"
	"github.com/Hassan-Shakoor/DealShark-BE/app/services"
	"github.com/Hassan-Shakoor/DealShark-BE/models"
	"github.com/Hassan-Shakoor/DealShark-BE/repository"
	"github.com/Hassan-Shakoor/DealShark-BE/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SignupFlow handles the complete signup business logic
type SignupFlow interface {
	Signup(ctx context.Context, req *dto.SignupRequest, metadata *ClientMetadata) (*dto.SignupResponse, error)
	VerifyOTP(ctx context.Context, req *dto.OTPVerificationRequest, metadata *ClientMetadata) (*dto.OTPVerificationResponse, error)
	ResendOTP(ctx context.Context, req *dto.OTPResendRequest, metadata *ClientMetadata) (*dto.OTPResendResponse, error)
}

// SignupFlowImpl implements the signup business flow
type SignupFlowImpl struct {
	userRepo        repository.UserRepository
	businessRepo    repository.BusinessRepository
	otpRepo         repository.OTPVerificationRepository
	sessionRepo     repository.UserSessionRepository
	auditRepo       repository.AuditLogRepository
	tokenService    services.TokenService
	notificationSvc services.NotificationService
	paymentGateway  services.PaymentGateway
	db              *gorm.DB
}

// NewSignupFlow creates a new signup flow instance
func NewSignupFlow(
	userRepo repository.UserRepository,
	businessRepo repository.BusinessRepository,
	otpRepo repository.OTPVerificationRepository,
	sessionRepo repository.UserSessionRepository,
	auditRepo repository.AuditLogRepository,
	tokenService services.TokenService,
	notificationSvc services.NotificationService,
	paymentGateway services.PaymentGateway,
	db *gorm.DB,
) SignupFlow {
	return &SignupFlowImpl{
		userRepo:        userRepo,
		businessRepo:    businessRepo,
		otpRepo:         otpRepo,
		sessionRepo:     sessionRepo,
		auditRepo:       auditRepo,
		tokenService:    tokenService,
		notificationSvc: notificationSvc,
		paymentGateway:  paymentGateway,
		db:              db,
	}
}

// Signup handles the complete signup process
func (s *SignupFlowImpl) Signup(ctx context.Context, req *dto.SignupRequest, metadata *ClientMetadata) (*dto.SignupResponse, error) {
	// Validate business rules
	existing, err := s.validateSignupRequest(ctx, req)
	if err != nil {
		return nil, NewBusinessError("SIGNUP_VALIDATION_FAILED", "Signup validation failed", err)
	}

	// A prior signup that never finished verification is treated as a
	// resend rather than a conflict.
	if existing != nil {
		return s.restartPendingSignup(ctx, existing, metadata)
	}

	// Use transaction for atomicity
	var user *models.User
	var otpCode string

	err = repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		// Create user
		var err error
		user, err = s.createUser(txCtx, req)
		if err != nil {
			return err
		}

		// Business accounts get a connected payment account up front so
		// onboarding can start right after verification.
		if user.IsBusiness() {
			if err := s.createBusiness(txCtx, user, req); err != nil {
				return err
			}
		}

		// Generate and save OTP
		otpCode, err = s.generateAndSaveOTP(txCtx, user.ID, user.Email, models.OTPTypeEmail, metadata)
		if err != nil {
			return err
		}

		return nil
	})

	if err != nil {
		errMsg := fmt.Sprintf("Signup initiation failed: %s", err.Error())
		_ = s.createAuditLog(ctx, user, models.AuditActionSignupInitiated, errMsg, false, &errMsg, metadata)

		return nil, NewBusinessError("SIGNUP_FAILED", "Signup failed", err)
	} else {
		msg := fmt.Sprintf("Signup initiated successfully: %d", user.ID)
		_ = s.createAuditLog(ctx, user, models.AuditActionSignupInitiated, msg, true, nil, metadata)
	}

	// Send OTP via email (outside transaction to avoid rollback on delivery failure)
	go func() {
		err := s.notificationSvc.SendOTPEmail(user.Email, otpCode)
		if err != nil {
			errMsg := fmt.Sprintf("Failed to send OTP email: %v", err)
			_ = s.createAuditLog(context.Background(), user, models.AuditActionOTPFailed, errMsg, false, &errMsg, metadata)
		}
	}()

	return &dto.SignupResponse{
		Message:   "Signup initiated successfully. Verification code sent to your email.",
		UserID:    user.ID,
		OTPSent:   true,
		OTPTarget: MaskEmail(user.Email),
	}, nil
}

// VerifyOTP handles OTP verification and completes signup
func (s *SignupFlowImpl) VerifyOTP(ctx context.Context, req *dto.OTPVerificationRequest, metadata *ClientMetadata) (*dto.OTPVerificationResponse, error) {
	var user *models.User
	var tokens struct {
		access  string
		refresh string
	}

	err := repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		// Find user
		var err error
		user, err = s.userRepo.ByEmail(txCtx, req.Email)
		if err != nil {
			return err
		}
		if user == nil {
			return ErrUserNotFound
		}
		if utils.IsTrue(user.IsEmailVerified) {
			return ErrAlreadyVerified
		}

		// Verify OTP
		if err := s.verifyOTPCode(txCtx, user.ID, req.OTPCode); err != nil {
			return err
		}

		// Mark user as verified and complete signup
		if err := s.userRepo.MarkEmailVerified(txCtx, user.ID); err != nil {
			return err
		}

		// Generate tokens
		tokens.access, tokens.refresh, err = s.tokenService.GenerateTokens(user.ID)
		if err != nil {
			return err
		}

		// Create session
		if err := s.createSession(txCtx, user.ID, tokens.access, tokens.refresh, metadata); err != nil {
			return err
		}

		// Get user again to get the updated record
		user, err = s.userRepo.ByID(txCtx, user.ID)
		if err != nil {
			return err
		}

		return nil
	})

	if err != nil {
		errMsg := fmt.Sprintf("OTP verification failed: %s", err.Error())
		_ = s.createAuditLog(ctx, user, models.AuditActionOTPFailed, errMsg, false, &errMsg, metadata)

		return nil, NewBusinessError("OTP_VERIFICATION_FAILED", "OTP verification failed", err)
	} else {
		msg := fmt.Sprintf("Signup completed successfully: %d", user.ID)
		_ = s.createAuditLog(ctx, user, models.AuditActionEmailVerified, msg, true, nil, metadata)
	}

	return &dto.OTPVerificationResponse{
		Message:      "Signup completed successfully!",
		Token:        tokens.access,
		RefreshToken: tokens.refresh,
		User:         ToUserDTO(*user),
	}, nil
}

// ResendOTP generates and sends a new OTP
func (s *SignupFlowImpl) ResendOTP(ctx context.Context, req *dto.OTPResendRequest, metadata *ClientMetadata) (*dto.OTPResendResponse, error) {
	var user *models.User
	var otpCode string

	err := repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		// Find user
		var err error
		user, err = s.userRepo.ByEmail(txCtx, req.Email)
		if err != nil {
			return err
		}
		if user == nil {
			return ErrUserNotFound
		}
		if utils.IsTrue(user.IsEmailVerified) {
			return ErrAlreadyVerified
		}

		// Expire old OTPs
		if err := s.otpRepo.ExpireOldOTPs(txCtx, user.ID, models.OTPTypeEmail); err != nil {
			return err
		}

		// Generate new OTP
		otpCode, err = s.generateAndSaveOTP(txCtx, user.ID, user.Email, models.OTPTypeEmail, metadata)
		return err
	})

	if err != nil {
		errMsg := fmt.Sprintf("Resend OTP failed: %s", err.Error())
		_ = s.createAuditLog(ctx, user, models.AuditActionOTPFailed, errMsg, false, &errMsg, metadata)

		return nil, NewBusinessError("RESEND_OTP_FAILED", "Resend OTP failed", err)
	} else {
		msg := fmt.Sprintf("OTP resent successfully: %d", user.ID)
		_ = s.createAuditLog(ctx, user, models.AuditActionOTPGenerated, msg, true, nil, metadata)
	}

	// Send OTP via email (outside transaction to avoid rollback on delivery failure)
	go func() {
		err := s.notificationSvc.SendOTPEmail(user.Email, otpCode)
		if err != nil {
			errMsg := fmt.Sprintf("Failed to send OTP email: %v", err)
			_ = s.createAuditLog(context.Background(), user, models.AuditActionOTPFailed, errMsg, false, &errMsg, metadata)
		}
	}()

	return &dto.OTPResendResponse{
		Message:         "OTP resent successfully",
		OTPSent:         true,
		MaskedOTPTarget: MaskEmail(user.Email),
	}, nil
}

// Private helper methods

// validateSignupRequest checks signup business rules. It returns the
// existing unverified user when the email was registered but never
// verified, so the caller can restart that signup.
func (s *SignupFlowImpl) validateSignupRequest(ctx context.Context, req *dto.SignupRequest) (*models.User, error) {
	if req.Role != models.UserRoleBusiness && req.Role != models.UserRoleCustomer {
		return nil, ErrInvalidRole
	}

	// Validate business fields for business accounts
	if req.Role == models.UserRoleBusiness {
		if req.BusinessName == nil || *req.BusinessName == "" || req.Industry == nil || *req.Industry == "" {
			return nil, ErrBusinessFieldsRequired
		}
	}

	// Check if email already exists
	existingUser, err := s.userRepo.ByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if existingUser != nil {
		if utils.IsTrue(existingUser.IsEmailVerified) {
			return nil, ErrEmailAlreadyExists
		}
		return existingUser, nil
	}

	return nil, nil
}

// restartPendingSignup reissues the OTP for an account that signed up but
// never verified. Previously submitted fields are kept.
func (s *SignupFlowImpl) restartPendingSignup(ctx context.Context, user *models.User, metadata *ClientMetadata) (*dto.SignupResponse, error) {
	var otpCode string

	err := repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		if err := s.otpRepo.ExpireOldOTPs(txCtx, user.ID, models.OTPTypeEmail); err != nil {
			return err
		}

		var err error
		otpCode, err = s.generateAndSaveOTP(txCtx, user.ID, user.Email, models.OTPTypeEmail, metadata)
		return err
	})

	if err != nil {
		errMsg := fmt.Sprintf("Signup restart failed: %s", err.Error())
		_ = s.createAuditLog(ctx, user, models.AuditActionOTPFailed, errMsg, false, &errMsg, metadata)

		return nil, NewBusinessError("SIGNUP_FAILED", "Signup failed", err)
	}

	msg := fmt.Sprintf("Pending signup restarted: %d", user.ID)
	_ = s.createAuditLog(ctx, user, models.AuditActionOTPGenerated, msg, true, nil, metadata)

	go func() {
		err := s.notificationSvc.SendOTPEmail(user.Email, otpCode)
		if err != nil {
			errMsg := fmt.Sprintf("Failed to send OTP email: %v", err)
			_ = s.createAuditLog(context.Background(), user, models.AuditActionOTPFailed, errMsg, false, &errMsg, metadata)
		}
	}()

	return &dto.SignupResponse{
		Message:   "Signup initiated successfully. Verification code sent to your email.",
		UserID:    user.ID,
		OTPSent:   true,
		OTPTarget: MaskEmail(user.Email),
	}, nil
}

func (s *SignupFlowImpl) createUser(ctx context.Context, req *dto.SignupRequest) (*models.User, error) {
	// Hash password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		UUID:            uuid.New(),
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Email:           req.Email,
		PasswordHash:    string(hashedPassword),
		Phone:           req.Phone,
		Role:            req.Role,
		IsEmailVerified: utils.ToPtr(false),
		IsActive:        utils.ToPtr(true),
	}

	err = s.userRepo.Save(ctx, user)
	if err != nil {
		return nil, err
	}

	return user, nil
}

func (s *SignupFlowImpl) createBusiness(ctx context.Context, user *models.User, req *dto.SignupRequest) error {
	// Create the connected payment account first so its ID lands in the
	// same transaction as the business row.
	accountID, err := s.paymentGateway.CreateExpressAccount(ctx, user.Email)
	if err != nil {
		return NewBusinessError("PAYMENT_ACCOUNT_FAILED", "Failed to create payment account", ErrUpstreamGateway)
	}

	business := &models.Business{
		UUID:                  uuid.New(),
		UserID:                user.ID,
		BusinessName:          *req.BusinessName,
		Industry:              *req.Industry,
		Description:           req.Description,
		Website:               req.Website,
		Address:               req.Address,
		Phone:                 req.Phone,
		StripeAccountID:       &accountID,
		IsOnboardingCompleted: utils.ToPtr(false),
	}

	return s.businessRepo.Save(ctx, business)
}

func (s *SignupFlowImpl) generateAndSaveOTP(ctx context.Context, userID uint, target, otpType string, metadata *ClientMetadata) (string, error) {
	// Generate 6-digit OTP
	otpCode, err := GenerateOTP()
	if err != nil {
		return "", err
	}

	ipAddress := "127.0.0.1"
	userAgent := ""
	if metadata != nil {
		ipAddress = metadata.IPAddress
		userAgent = metadata.UserAgent
	}

	// Create OTP record
	otp := &models.OTPVerification{
		CorrelationID: uuid.New(),
		UserID:        userID,
		OTPCode:       otpCode,
		OTPType:       otpType,
		TargetValue:   target,
		Status:        models.OTPStatusPending,
		AttemptsCount: 0,
		MaxAttempts:   utils.OTPMaxAttempts,
		ExpiresAt:     utils.UTCNowAdd(utils.OTPExpiry),
		IPAddress:     &ipAddress,
		UserAgent:     &userAgent,
	}

	err = s.otpRepo.Save(ctx, otp)
	if err != nil {
		return "", err
	}

	return otpCode, nil
}

func (s *SignupFlowImpl) verifyOTPCode(ctx context.Context, userID uint, code string) error {
	// Find the active OTP
	validOTP, err := s.otpRepo.LatestActiveByUser(ctx, userID, models.OTPTypeEmail)
	if err != nil {
		return err
	}
	if validOTP == nil {
		return ErrNoValidOTPFound
	}

	// Attempt counts live on the failed event rows, keyed by correlation ID;
	// the pending row itself is never mutated.
	latest, err := s.otpRepo.GetLatestByCorrelationID(ctx, validOTP.CorrelationID)
	if err != nil {
		return err
	}
	if latest != nil {
		validOTP.AttemptsCount = latest.AttemptsCount
	}
	if validOTP.AttemptsCount >= validOTP.MaxAttempts {
		return ErrOTPMaxAttempts
	}
	if !validOTP.CanAttempt() {
		return ErrNoValidOTPFound
	}

	if validOTP.OTPCode != code {
		// Create failed attempt record with correlation ID
		failedOTP := *validOTP
		failedOTP.ID = 0
		failedOTP.CorrelationID = validOTP.CorrelationID // Use same correlation ID
		failedOTP.AttemptsCount++
		failedOTP.Status = models.OTPStatusFailed
		_ = s.otpRepo.Save(ctx, &failedOTP)

		return ErrInvalidOTPCode
	}

	// Create used OTP record with correlation ID. The code is single-use:
	// once a used row exists, no pending row remains attemptable.
	usedOTP := *validOTP
	usedOTP.ID = 0
	usedOTP.CorrelationID = validOTP.CorrelationID // Use same correlation ID
	usedOTP.Status = models.OTPStatusUsed
	usedOTP.VerifiedAt = utils.UTCNowPtr()

	return s.otpRepo.Save(ctx, &usedOTP)
}

func (s *SignupFlowImpl) createSession(ctx context.Context, userID uint, accessToken, refreshToken string, metadata *ClientMetadata) error {
	ipAddress := "127.0.0.1"
	userAgent := ""
	if metadata != nil {
		ipAddress = metadata.IPAddress
		userAgent = metadata.UserAgent
	}

	session := &models.UserSession{
		CorrelationID: uuid.New(),
		UserID:        userID,
		SessionToken:  accessToken,
		RefreshToken:  &refreshToken,
		IPAddress:     &ipAddress,
		UserAgent:     &userAgent,
		IsActive:      utils.ToPtr(true),
		ExpiresAt:     utils.UTCNowAdd(utils.SessionTimeout),
	}

	return s.sessionRepo.Save(ctx, session)
}

func (s *SignupFlowImpl) createAuditLog(ctx context.Context, user *models.User, action, description string, success bool, errorMsg *string, metadata *ClientMetadata) error {
	var userID *uint
	if user != nil {
		userID = &user.ID
	}

	ipAddress := "127.0.0.1"
	userAgent := ""
	if metadata != nil {
		ipAddress = metadata.IPAddress
		userAgent = metadata.UserAgent
	}

	audit := &models.AuditLog{
		UserID:       userID,
		Action:       action,
		Description:  &description,
		Success:      utils.ToPtr(success),
		IPAddress:    &ipAddress,
		UserAgent:    &userAgent,
		ErrorMessage: errorMsg,
	}

	// Extract request ID from context if available
	requestID := ctx.Value(RequestIDKey)
	if requestID != nil {
		requestIDStr, ok := requestID.(string)
		if ok {
			audit.RequestID = &requestIDStr
		}
	}

	return s.auditRepo.Save(ctx, audit)
}

// GenerateOTP generates a secure 6-digit code using crypto/rand. The range
// spans the full 900000 codes from 100000 through 999999 inclusive.
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// Package businessflow contains the core business logic and use cases for authentication workflows
package businessflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/Hassan-Shakoor/DealShark-BE/app/dto"
	"github.com/Hassan-Shakoor/DealShark-BE/app/services"
	"github.com/Hassan-Shakoor/DealShark-BE/models"
	"github.com/Hassan-Shakoor/DealShark-BE/repository"
	"github.com/Hassan-Shakoor/DealShark-BE/utils"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// LoginFlow handles user authentication and session operations
type LoginFlow interface {
	Login(ctx context.Context, request *dto.LoginRequest, metadata *ClientMetadata) (*dto.LoginResponse, error)
	RefreshToken(ctx context.Context, request *dto.RefreshTokenRequest, metadata *ClientMetadata) (*dto.RefreshTokenResponse, error)
	Logout(ctx context.Context, userID uint, sessionToken string, metadata *ClientMetadata) error
	Me(ctx context.Context, userID uint) (*dto.UserDTO, error)
}

// LoginFlowImpl implements the login business flow
type LoginFlowImpl struct {
	userRepo     repository.UserRepository
	businessRepo repository.BusinessRepository
	sessionRepo  repository.UserSessionRepository
	auditRepo    repository.AuditLogRepository
	tokenService services.TokenService
	db           *gorm.DB
}

// NewLoginFlow creates a new login flow instance
func NewLoginFlow(
	userRepo repository.UserRepository,
	businessRepo repository.BusinessRepository,
	sessionRepo repository.UserSessionRepository,
	auditRepo repository.AuditLogRepository,
	tokenService services.TokenService,
	db *gorm.DB,
) LoginFlow {
	return &LoginFlowImpl{
		userRepo:     userRepo,
		businessRepo: businessRepo,
		sessionRepo:  sessionRepo,
		auditRepo:    auditRepo,
		tokenService: tokenService,
		db:           db,
	}
}

// Login authenticates a user with email and password. Unknown email and
// wrong password are indistinguishable to the caller.
func (lf *LoginFlowImpl) Login(ctx context.Context, request *dto.LoginRequest, metadata *ClientMetadata) (*dto.LoginResponse, error) {
	var user *models.User
	var resp *dto.LoginResponse

	err := repository.WithTransaction(ctx, lf.db, func(txCtx context.Context) error {
		// Find user by email
		var err error
		user, err = lf.userRepo.ByEmail(txCtx, strings.TrimSpace(request.Email))
		if err != nil {
			return err
		}
		if user == nil {
			return ErrInvalidCredentials
		}

		// Verify password before any account state checks so the error
		// surface stays uniform.
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(request.Password)); err != nil {
			return ErrInvalidCredentials
		}

		// Check account state
		if !utils.IsTrue(user.IsActive) {
			return ErrAccountInactive
		}
		if !utils.IsTrue(user.IsEmailVerified) {
			return ErrEmailNotVerified
		}

		// Create new session
		session, err := lf.CreateSession(txCtx, user.ID, metadata)
		if err != nil {
			return err
		}

		// Record login time
		if err := lf.userRepo.UpdateLastLogin(txCtx, user.ID); err != nil {
			return err
		}

		// Attach the business profile for business accounts
		if user.IsBusiness() {
			business, err := lf.businessRepo.ByUserID(txCtx, user.ID)
			if err != nil {
				return err
			}
			user.Business = business
		}

		resp = &dto.LoginResponse{
			User:    ToUserDTO(*user),
			Session: ToSessionDTO(*session),
		}

		return nil
	})

	if err != nil {
		errMsg := fmt.Sprintf("Login failed: %s", err.Error())
		_ = lf.createAuditLog(ctx, user, models.AuditActionLoginFailed, errMsg, false, &errMsg, metadata)

		return nil, NewBusinessError("LOGIN_FAILED", "Login failed", err)
	} else {
		msg := fmt.Sprintf("User logged in successfully: %d", user.ID)
		_ = lf.createAuditLog(ctx, user, models.AuditActionLoginSuccessful, msg, true, nil, metadata)
	}

	return resp, nil
}

// RefreshToken rotates the session tokens using a valid refresh token
func (lf *LoginFlowImpl) RefreshToken(ctx context.Context, request *dto.RefreshTokenRequest, metadata *ClientMetadata) (*dto.RefreshTokenResponse, error) {
	var user *models.User
	var resp *dto.RefreshTokenResponse

	err := repository.WithTransaction(ctx, lf.db, func(txCtx context.Context) error {
		// Find the session carrying this refresh token
		session, err := lf.sessionRepo.ByRefreshToken(txCtx, request.RefreshToken)
		if err != nil {
			return err
		}
		if session == nil {
			return ErrSessionNotFound
		}
		if !session.IsValid() {
			return ErrSessionExpired
		}

		user, err = lf.userRepo.ByID(txCtx, session.UserID)
		if err != nil {
			return err
		}
		if user == nil {
			return ErrUserNotFound
		}
		if !utils.IsTrue(user.IsActive) {
			return ErrAccountInactive
		}

		// Validate the refresh token itself
		claims, err := lf.tokenService.ValidateToken(request.RefreshToken)
		if err != nil || claims.TokenType != "refresh" {
			return ErrSessionExpired
		}

		// Expire the old session and mint a new one
		if err := lf.sessionRepo.ExpireSession(txCtx, session.ID); err != nil {
			return err
		}

		newSession, err := lf.CreateSession(txCtx, user.ID, metadata)
		if err != nil {
			return err
		}

		resp = &dto.RefreshTokenResponse{
			Session: ToSessionDTO(*newSession),
		}

		return nil
	})

	if err != nil {
		errMsg := fmt.Sprintf("Token refresh failed: %s", err.Error())
		_ = lf.createAuditLog(ctx, user, models.AuditActionTokenRefreshed, errMsg, false, &errMsg, metadata)

		return nil, NewBusinessError("TOKEN_REFRESH_FAILED", "Token refresh failed", err)
	} else {
		msg := fmt.Sprintf("Token refreshed successfully: %d", user.ID)
		_ = lf.createAuditLog(ctx, user, models.AuditActionTokenRefreshed, msg, true, nil, metadata)
	}

	return resp, nil
}

// Logout expires the current session and revokes its access token
func (lf *LoginFlowImpl) Logout(ctx context.Context, userID uint, sessionToken string, metadata *ClientMetadata) error {
	var user *models.User

	err := repository.WithTransaction(ctx, lf.db, func(txCtx context.Context) error {
		var err error
		user, err = lf.userRepo.ByID(txCtx, userID)
		if err != nil {
			return err
		}
		if user == nil {
			return ErrUserNotFound
		}

		session, err := lf.sessionRepo.BySessionToken(txCtx, sessionToken)
		if err != nil {
			return err
		}
		if session == nil || session.UserID != userID {
			return ErrSessionNotFound
		}

		if err := lf.sessionRepo.ExpireSession(txCtx, session.ID); err != nil {
			return err
		}

		return lf.tokenService.RevokeToken(sessionToken)
	})

	if err != nil {
		errMsg := fmt.Sprintf("Logout failed: %s", err.Error())
		_ = lf.createAuditLog(ctx, user, models.AuditActionLogout, errMsg, false, &errMsg, metadata)

		return NewBusinessError("LOGOUT_FAILED", "Logout failed", err)
	}

	msg := fmt.Sprintf("User logged out: %d", userID)
	_ = lf.createAuditLog(ctx, user, models.AuditActionLogout, msg, true, nil, metadata)

	return nil
}

// Me returns the authenticated user's profile
func (lf *LoginFlowImpl) Me(ctx context.Context, userID uint) (*dto.UserDTO, error) {
	user, err := lf.userRepo.ByID(ctx, userID)
	if err != nil {
		return nil, NewBusinessError("GET_PROFILE_FAILED", "Failed to load profile", err)
	}
	if user == nil {
		return nil, NewBusinessError("GET_PROFILE_FAILED", "Failed to load profile", ErrUserNotFound)
	}

	if user.IsBusiness() {
		business, err := lf.businessRepo.ByUserID(ctx, user.ID)
		if err != nil {
			return nil, NewBusinessError("GET_PROFILE_FAILED", "Failed to load profile", err)
		}
		user.Business = business
	}

	d := ToUserDTO(*user)
	return &d, nil
}

// Private helper methods

func (lf *LoginFlowImpl) CreateSession(ctx context.Context, userID uint, metadata *ClientMetadata) (*models.UserSession, error) {
	// Generate tokens
	accessToken, refreshToken, err := lf.tokenService.GenerateTokens(userID)
	if err != nil {
		return nil, err
	}

	ipAddress := "127.0.0.1"
	userAgent := ""
	if metadata != nil {
		ipAddress = metadata.IPAddress
		userAgent = metadata.UserAgent
	}

	// Create session record
	session := &models.UserSession{
		UserID:        userID,
		CorrelationID: uuid.New(),
		SessionToken:  accessToken,
		RefreshToken:  &refreshToken,
		ExpiresAt:     utils.UTCNowAdd(utils.SessionTimeout),
		IsActive:      utils.ToPtr(true),
		IPAddress:     &ipAddress,
		UserAgent:     &userAgent,
	}

	err = lf.sessionRepo.Save(ctx, session)
	if err != nil {
		return nil, err
	}

	return session, nil
}

func (lf *LoginFlowImpl) createAuditLog(ctx context.Context, user *models.User, action, description string, success bool, errorMsg *string, metadata *ClientMetadata) error {
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

	requestID := ctx.Value(RequestIDKey)
	if requestID != nil {
		requestIDStr, ok := requestID.(string)
		if ok {
			audit.RequestID = &requestIDStr
		}
	}

	return lf.auditRepo.Save(ctx, audit)
}

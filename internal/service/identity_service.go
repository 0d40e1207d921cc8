package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"identity-service/internal/events"
	"identity-service/internal/hashing"
	"identity-service/internal/models"
	"identity-service/internal/notify"
	"identity-service/internal/otp"
	"identity-service/internal/repository/postgres"
	"identity-service/internal/token"
	"identity-service/internal/util"

	"go.uber.org/zap"
)

// Domain validation failures. All recoverable, all safe to show to the
// end user. Anything not matched by one of these is an infrastructure
// failure and must stay opaque to callers.
var (
	ErrAccountExists       = errors.New("account already exists")
	ErrAccountNotFound     = errors.New("account not found")
	ErrInvalidRole         = errors.New("invalid role")
	ErrInvalidEmailDomain  = errors.New("email domain is not accepted")
	ErrRegionNotFound      = errors.New("region not found")
	ErrOTPInvalidOrExpired = errors.New("OTP is invalid or expired")
	ErrAccountNotVerified  = errors.New("account is not verified yet")
	ErrWrongPassword       = errors.New("wrong password")
	ErrPermissionDenied    = errors.New("permission denied")
)

// IsDomainError reports whether err is a recoverable domain validation
// failure rather than an infrastructure one.
func IsDomainError(err error) bool {
	for _, sentinel := range []error{
		ErrAccountExists, ErrAccountNotFound, ErrInvalidRole,
		ErrInvalidEmailDomain, ErrRegionNotFound, ErrOTPInvalidOrExpired,
		ErrAccountNotVerified, ErrWrongPassword, ErrPermissionDenied,
		token.ErrInvalidToken, token.ErrMalformedToken,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// RegisterDraft carries the fields of a registration request.
type RegisterDraft struct {
	FirstName string      `json:"first_name" validate:"required"`
	LastName  string      `json:"last_name" validate:"required"`
	Email     string      `json:"email" validate:"required,email"`
	Password  string      `json:"password" validate:"required,min=8"`
	Role      models.Role `json:"role" validate:"required"`
	Picture   string      `json:"picture,omitempty"`
	Year      int         `json:"year,omitempty"`
	RegionID  int64       `json:"region_id" validate:"required"`
}

// RegisterResult is the outcome of a registration attempt. A missing
// region is a negative outcome, not an error: RegionFound is false and
// Message explains, mirroring the soft handling of the regular flow.
type RegisterResult struct {
	Message     string `json:"message"`
	RegionFound bool   `json:"region_found"`
}

// VerifyResult reports the account status after OTP verification.
type VerifyResult struct {
	Status models.Status `json:"status"`
}

// TokenPair is an access/refresh token pair. Neither token is stored
// server-side; possession is authority.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// IdentityService orchestrates registration, OTP verification, login
// and session issuance.
type IdentityService struct {
	accounts postgres.AccountRepository
	hasher   *hashing.Hasher
	otpStore otp.Store
	notifier notify.Notifier
	issuer   *token.Issuer
	events   *events.Publisher
	logger   *zap.Logger

	acceptedDomains []string
	otpTTL          time.Duration
}

// NewIdentityService creates the identity service. The events publisher
// may be nil; auditing is optional.
func NewIdentityService(
	accounts postgres.AccountRepository,
	hasher *hashing.Hasher,
	otpStore otp.Store,
	notifier notify.Notifier,
	issuer *token.Issuer,
	publisher *events.Publisher,
	acceptedDomains []string,
	otpTTL time.Duration,
	logger *zap.Logger,
) *IdentityService {
	return &IdentityService{
		accounts:        accounts,
		hasher:          hasher,
		otpStore:        otpStore,
		notifier:        notifier,
		issuer:          issuer,
		events:          publisher,
		logger:          logger,
		acceptedDomains: acceptedDomains,
		otpTTL:          otpTTL,
	}
}

// Register creates an account in offline status, issues an OTP
// challenge and dispatches it via the notifier. The confirmation
// references the first name and never echoes the code or the hash.
func (s *IdentityService) Register(ctx context.Context, draft *RegisterDraft) (*RegisterResult, error) {
	return s.register(ctx, draft, false)
}

// RegisterAdmin is Register with two differences: a missing region is a
// hard failure, and the stored role is forced to admin regardless of
// the draft's requested role.
func (s *IdentityService) RegisterAdmin(ctx context.Context, draft *RegisterDraft) (*RegisterResult, error) {
	return s.register(ctx, draft, true)
}

func (s *IdentityService) register(ctx context.Context, draft *RegisterDraft, admin bool) (*RegisterResult, error) {
	startTime := time.Now()
	email := util.NormalizeEmail(draft.Email)

	if _, err := s.accounts.FindByEmail(ctx, email); err == nil {
		return nil, ErrAccountExists
	} else if !errors.Is(err, postgres.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}

	if !draft.Role.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, draft.Role)
	}

	if _, err := s.accounts.FindRegion(ctx, draft.RegionID); err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			if admin {
				return nil, fmt.Errorf("%w: id %d", ErrRegionNotFound, draft.RegionID)
			}
			// The regular flow treats a missing region as a soft,
			// user-facing outcome rather than a failure.
			return &RegisterResult{
				Message:     fmt.Sprintf("Region with id %d not found. Please ensure the region is correct.", draft.RegionID),
				RegionFound: false,
			}, nil
		}
		return nil, fmt.Errorf("failed to resolve region: %w", err)
	}

	if !s.domainAccepted(email) {
		return nil, ErrInvalidEmailDomain
	}

	passwordHash, err := s.hasher.Hash(draft.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	role := draft.Role
	if admin {
		role = models.RoleAdmin
	}

	account, err := s.accounts.Create(ctx, &models.Account{
		FirstName:    util.SanitizeInput(draft.FirstName),
		LastName:     util.SanitizeInput(draft.LastName),
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		Picture:      util.SanitizeInput(draft.Picture),
		Year:         draft.Year,
		RegionID:     draft.RegionID,
		Status:       models.StatusOffline,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	if err := s.issueAndDeliver(ctx, account.Email); err != nil {
		// The account exists but the code never left the building; the
		// resend flow recovers from exactly this state.
		return nil, err
	}

	s.events.Emit(ctx, events.TypeAccountRegistered, account.Email, string(role))

	s.logger.Info("Account registered",
		util.String("email", account.Email),
		util.String("role", string(role)),
		util.Duration("duration", time.Since(startTime)),
	)

	return &RegisterResult{
		Message:     fmt.Sprintf("One-time passcode sent to your email, %s", account.FirstName),
		RegionFound: true,
	}, nil
}

// ResendOTP reissues a challenge for an existing account, overwriting
// any prior one, and dispatches it again. This is the recovery path for
// registrations abandoned between account creation and OTP delivery.
func (s *IdentityService) ResendOTP(ctx context.Context, email string) (*RegisterResult, error) {
	email = util.NormalizeEmail(email)

	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}

	if err := s.issueAndDeliver(ctx, account.Email); err != nil {
		return nil, err
	}

	s.events.Emit(ctx, events.TypeOTPReissued, account.Email, "")

	return &RegisterResult{
		Message:     "One-time passcode sent to your email",
		RegionFound: true,
	}, nil
}

func (s *IdentityService) issueAndDeliver(ctx context.Context, email string) error {
	code, expiresAt, err := s.otpStore.Issue(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to issue OTP: %w", err)
	}

	body := fmt.Sprintf("Your one-time passcode is %s. It expires in %s.",
		code, s.otpTTL.Round(time.Minute))
	if err := s.notifier.Send(ctx, email, "Your one-time passcode", body); err != nil {
		return fmt.Errorf("failed to deliver OTP: %w", err)
	}

	s.logger.Debug("OTP challenge issued",
		util.String("email", email),
		zap.Time("expires_at", expiresAt),
	)
	return nil
}

// Verify consumes a matching, unexpired challenge and transitions the
// account from offline to active. A consumed code is never accepted a
// second time.
func (s *IdentityService) Verify(ctx context.Context, email, presentedCode string) (*VerifyResult, error) {
	email = util.NormalizeEmail(email)

	if _, err := s.accounts.FindByEmail(ctx, email); err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}

	ok, err := s.otpStore.Check(ctx, email, presentedCode)
	if err != nil {
		return nil, fmt.Errorf("failed to check OTP: %w", err)
	}
	if !ok {
		return nil, ErrOTPInvalidOrExpired
	}

	updated, err := s.accounts.UpdateStatus(ctx, email, models.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to activate account: %w", err)
	}

	s.events.Emit(ctx, events.TypeAccountVerified, email, "")

	s.logger.Info("Account verified", util.String("email", email))

	return &VerifyResult{Status: updated.Status}, nil
}

// Login authenticates a verified account and returns a fresh token
// pair. The session is stateless: nothing is recorded server-side.
func (s *IdentityService) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	email = util.NormalizeEmail(email)

	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}

	if account.Status == models.StatusOffline {
		return nil, ErrAccountNotVerified
	}

	if !s.hasher.Verify(password, account.PasswordHash) {
		s.events.Emit(ctx, events.TypeLoginFailed, email, "wrong password")
		return nil, ErrWrongPassword
	}

	claims := token.SnapshotClaims(account)
	accessToken, err := s.issuer.MintAccess(claims)
	if err != nil {
		return nil, fmt.Errorf("failed to mint access token: %w", err)
	}
	refreshToken, err := s.issuer.MintRefresh(claims)
	if err != nil {
		return nil, fmt.Errorf("failed to mint refresh token: %w", err)
	}

	s.events.Emit(ctx, events.TypeLoginSucceeded, email, "")

	s.logger.Info("Login succeeded", util.String("email", email))

	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// Refresh verifies the refresh token and mints a new access token from
// its embedded claims. Account state is deliberately not re-read: a
// claim snapshot stays valid until the refresh token itself expires.
func (s *IdentityService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.issuer.Verify(refreshToken)
	if err != nil {
		return "", err
	}

	accessToken, err := s.issuer.MintAccess(*claims)
	if err != nil {
		return "", fmt.Errorf("failed to mint access token: %w", err)
	}
	return accessToken, nil
}

// Me echoes the authenticated identity snapshot carried by the token.
func (s *IdentityService) Me(claims *token.Claims) *token.Claims {
	return claims
}

// PromoteToAdmin escalates an existing account to the admin role. Only
// admins and super-admins may do this.
func (s *IdentityService) PromoteToAdmin(ctx context.Context, actor *token.Claims, accountID int64) (*models.Account, error) {
	if actor.Role != models.RoleAdmin && actor.Role != models.RoleSuperAdmin {
		return nil, ErrPermissionDenied
	}

	updated, err := s.accounts.UpdateRole(ctx, accountID, models.RoleAdmin)
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to update role: %w", err)
	}

	s.events.Emit(ctx, events.TypeRolePromoted, updated.Email, string(actor.Role))

	s.logger.Info("Account promoted to admin",
		util.Int64("account_id", accountID),
		util.String("promoted_by", actor.Email),
	)

	return updated, nil
}

// AccountsByRegion lists the accounts registered under a region.
func (s *IdentityService) AccountsByRegion(ctx context.Context, regionID int64) ([]*models.Account, error) {
	accounts, err := s.accounts.ListByRegion(ctx, regionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts by region: %w", err)
	}
	if len(accounts) == 0 {
		return nil, ErrAccountNotFound
	}
	return accounts, nil
}

// ListAccounts lists every account. Admin surface.
func (s *IdentityService) ListAccounts(ctx context.Context) ([]*models.Account, error) {
	accounts, err := s.accounts.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}

// HealthCheck performs service health check
func (s *IdentityService) HealthCheck(ctx context.Context) error {
	if err := s.accounts.HealthCheck(ctx); err != nil {
		return fmt.Errorf("account repository health check failed: %w", err)
	}
	return nil
}

func (s *IdentityService) domainAccepted(email string) bool {
	if len(s.acceptedDomains) == 0 {
		return true
	}
	domain := util.EmailDomain(email)
	if domain == "" {
		return false
	}
	for _, accepted := range s.acceptedDomains {
		if domain == accepted {
			return true
		}
	}
	return false
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/024globalconnect/portal/internal/core/domain"
	"github.com/024globalconnect/portal/internal/core/ports"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"

	msgFieldRequired    = "This field is required."
	msgPasswordMismatch = "Passwords do not match."
	msgUsernameTaken    = "A user with that username already exists."
	msgEmailTaken       = "user with this email already exists."
)

// registrableRoles are the roles open to self-registration.
var registrableRoles = map[domain.Role]struct{}{
	domain.RoleAffiliate:       {},
	domain.RoleVendor:          {},
	domain.RoleServiceProvider: {},
}

// AccountServiceOptions configures token issuance.
type AccountServiceOptions struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// AccountService implements the dev auth backend: registration with
// activation, login, refresh rotation and refresh blacklisting.
type AccountService struct {
	repo       ports.AccountRepository
	blacklist  ports.TokenBlacklist
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

var _ ports.AccountService = (*AccountService)(nil)

func NewAccountService(repo ports.AccountRepository, blacklist ports.TokenBlacklist, opts AccountServiceOptions) *AccountService {
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = 5 * time.Minute
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = 24 * time.Hour
	}
	return &AccountService{
		repo:       repo,
		blacklist:  blacklist,
		secret:     []byte(opts.Secret),
		accessTTL:  opts.AccessTTL,
		refreshTTL: opts.RefreshTTL,
	}
}

// Register creates an inactive account. Validation failures are returned as
// domain.FieldErrors.
func (s *AccountService) Register(ctx context.Context, req domain.RegistrationRequest) (*domain.Account, error) {
	req = req.Normalize()

	fe := domain.FieldErrors{}
	if strings.TrimSpace(req.Username) == "" {
		fe.Add("username", msgFieldRequired)
	}
	if strings.TrimSpace(req.Email) == "" {
		fe.Add("email", msgFieldRequired)
	}
	if req.Password == "" {
		fe.Add("password", msgFieldRequired)
	}
	if req.ConfirmPassword == "" {
		fe.Add("confirm_password", msgFieldRequired)
	}
	if _, ok := registrableRoles[req.Role]; !ok {
		fe.Add("role", fmt.Sprintf("%q is not a valid choice.", req.Role))
	}
	if req.Password != "" && req.ConfirmPassword != "" && req.Password != req.ConfirmPassword {
		fe.Add("password", msgPasswordMismatch)
	}
	if err := s.checkUnique(ctx, req.Username, req.Email, fe); err != nil {
		return nil, err
	}
	if len(fe) > 0 {
		return nil, fe
	}

	return s.create(ctx, req, false)
}

// Seed creates an already active account with any role. It bypasses the
// registration rules and is meant for provisioning local admin users.
func (s *AccountService) Seed(ctx context.Context, req domain.RegistrationRequest) (*domain.Account, error) {
	if req.Username == "" || req.Password == "" {
		return nil, domain.ErrInvalidCredentials
	}
	if existing, err := s.repo.FindByUsername(ctx, req.Username); err == nil {
		return existing, nil
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}
	return s.create(ctx, req.Normalize(), true)
}

func (s *AccountService) create(ctx context.Context, req domain.RegistrationRequest, active bool) (*domain.Account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	account := &domain.Account{
		Username:         strings.TrimSpace(req.Username),
		Email:            strings.TrimSpace(req.Email),
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		Role:             req.Role,
		Country:          req.Country,
		City:             req.City,
		PromotionMethods: req.PromotionMethods,
		PasswordHash:     string(hash),
		IsActive:         active,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if !active {
		account.ActivationToken = uuid.NewString()
	}

	created, err := s.repo.Create(ctx, account)
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *AccountService) checkUnique(ctx context.Context, username, email string, fe domain.FieldErrors) error {
	if username != "" {
		_, err := s.repo.FindByUsername(ctx, username)
		switch {
		case err == nil:
			fe.Add("username", msgUsernameTaken)
		case !errors.Is(err, domain.ErrUserNotFound):
			return err
		}
	}
	if email != "" {
		_, err := s.repo.FindByEmail(ctx, email)
		switch {
		case err == nil:
			fe.Add("email", msgEmailTaken)
		case !errors.Is(err, domain.ErrUserNotFound):
			return err
		}
	}
	return nil
}

// Activate marks the account active if token matches its activation token.
func (s *AccountService) Activate(ctx context.Context, id, token string) error {
	account, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if account.IsActive {
		return nil
	}
	if token == "" || account.ActivationToken != token {
		return domain.ErrInvalidToken
	}

	account.IsActive = true
	account.ActivationToken = ""
	account.UpdatedAt = time.Now().UTC()
	return s.repo.Update(ctx, account)
}

// ResendActivation rotates the activation token of an inactive account.
func (s *AccountService) ResendActivation(ctx context.Context, email string) (*domain.Account, error) {
	if email == "" {
		return nil, domain.ErrInvalidCredentials
	}
	account, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if account.IsActive {
		return nil, domain.ErrAlreadyActive
	}

	account.ActivationToken = uuid.NewString()
	account.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// Login accepts a username or an email as login.
func (s *AccountService) Login(ctx context.Context, login, password string) (domain.TokenPair, *domain.Account, error) {
	if login == "" || password == "" {
		return domain.TokenPair{}, nil, domain.ErrInvalidCredentials
	}

	account, err := s.repo.FindByUsername(ctx, login)
	if errors.Is(err, domain.ErrUserNotFound) {
		account, err = s.repo.FindByEmail(ctx, login)
	}
	if errors.Is(err, domain.ErrUserNotFound) {
		return domain.TokenPair{}, nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return domain.TokenPair{}, nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		return domain.TokenPair{}, nil, domain.ErrInvalidCredentials
	}
	if !account.IsActive {
		return domain.TokenPair{}, nil, domain.ErrInactiveAccount
	}

	pair, err := s.issuePair(account)
	if err != nil {
		return domain.TokenPair{}, nil, err
	}
	return pair, account, nil
}

// Refresh exchanges a refresh token for a new pair. The presented refresh
// token is blacklisted, so each one can be used once.
func (s *AccountService) Refresh(ctx context.Context, refresh string) (domain.TokenPair, error) {
	claims, err := s.parse(ctx, refresh, tokenTypeRefresh)
	if err != nil {
		return domain.TokenPair{}, err
	}

	account, err := s.repo.FindByID(ctx, claims.userID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return domain.TokenPair{}, domain.ErrInvalidToken
	}
	if err != nil {
		return domain.TokenPair{}, err
	}
	if !account.IsActive {
		return domain.TokenPair{}, domain.ErrInactiveAccount
	}

	if err := s.blacklist.Revoke(ctx, claims.jti, claims.expires); err != nil {
		return domain.TokenPair{}, fmt.Errorf("revoke refresh token: %w", err)
	}
	return s.issuePair(account)
}

// Logout blacklists the refresh token.
func (s *AccountService) Logout(ctx context.Context, refresh string) error {
	claims, err := s.parse(ctx, refresh, tokenTypeRefresh)
	if err != nil {
		return err
	}
	if err := s.blacklist.Revoke(ctx, claims.jti, claims.expires); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// Authenticate resolves the account behind an access token.
func (s *AccountService) Authenticate(ctx context.Context, access string) (*domain.Account, error) {
	claims, err := s.parse(ctx, access, tokenTypeAccess)
	if err != nil {
		return nil, err
	}
	account, err := s.repo.FindByID(ctx, claims.userID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	if !account.IsActive {
		return nil, domain.ErrInactiveAccount
	}
	return account, nil
}

// UpdateProfile applies update to the account and returns the result.
func (s *AccountService) UpdateProfile(ctx context.Context, id string, update domain.ProfileUpdate) (*domain.Account, error) {
	account, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if update.Email != nil && *update.Email != account.Email {
		if _, err := s.repo.FindByEmail(ctx, *update.Email); err == nil {
			return nil, domain.FieldErrors{"email": {msgEmailTaken}}
		} else if !errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}
	}

	update.Apply(account)
	account.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

func (s *AccountService) issuePair(account *domain.Account) (domain.TokenPair, error) {
	access, err := s.generateToken(account, tokenTypeAccess, s.accessTTL)
	if err != nil {
		return domain.TokenPair{}, err
	}
	refresh, err := s.generateToken(account, tokenTypeRefresh, s.refreshTTL)
	if err != nil {
		return domain.TokenPair{}, err
	}
	return domain.TokenPair{Access: access, Refresh: refresh}, nil
}

func (s *AccountService) generateToken(account *domain.Account, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"token_type": tokenType,
		"user_id":    account.ID,
		"username":   account.Username,
		"role":       string(account.Role),
		"jti":        uuid.NewString(),
		"iat":        now.Unix(),
		"exp":        now.Add(ttl).Unix(),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.secret)
}

type tokenClaims struct {
	userID  string
	jti     string
	expires time.Time
}

func (s *AccountService) parse(ctx context.Context, raw, tokenType string) (tokenClaims, error) {
	if raw == "" {
		return tokenClaims{}, domain.ErrInvalidToken
	}

	claims := jwt.MapClaims{}
	tkn, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !tkn.Valid {
		return tokenClaims{}, domain.ErrInvalidToken
	}

	if tt, _ := claims["token_type"].(string); tt != tokenType {
		return tokenClaims{}, domain.ErrInvalidToken
	}
	userID, _ := claims["user_id"].(string)
	jti, _ := claims["jti"].(string)
	exp, err := claims.GetExpirationTime()
	if userID == "" || jti == "" || err != nil || exp == nil {
		return tokenClaims{}, domain.ErrInvalidToken
	}

	if tokenType == tokenTypeRefresh {
		revoked, err := s.blacklist.Revoked(ctx, jti)
		if err != nil {
			return tokenClaims{}, fmt.Errorf("check blacklist: %w", err)
		}
		if revoked {
			return tokenClaims{}, domain.ErrInvalidToken
		}
	}
	return tokenClaims{userID: userID, jti: jti, expires: exp.Time}, nil
}

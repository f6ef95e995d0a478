package service

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/024globalconnect/portal/internal/core/domain"
)

type stubAccountRepo struct {
	accounts map[string]*domain.Account
	seq      int
}

func newStubAccountRepo() *stubAccountRepo {
	return &stubAccountRepo{accounts: make(map[string]*domain.Account)}
}

func cloneAccount(a *domain.Account) *domain.Account {
	if a == nil {
		return nil
	}
	clone := *a
	clone.PromotionMethods = append([]string(nil), a.PromotionMethods...)
	return &clone
}

func (r *stubAccountRepo) Create(_ context.Context, account *domain.Account) (*domain.Account, error) {
	for _, a := range r.accounts {
		if a.Username == account.Username || a.Email == account.Email {
			return nil, domain.ErrUserExists
		}
	}
	r.seq++
	copy := cloneAccount(account)
	copy.ID = strconv.Itoa(r.seq)
	r.accounts[copy.ID] = cloneAccount(copy)
	return copy, nil
}

func (r *stubAccountRepo) FindByID(_ context.Context, id string) (*domain.Account, error) {
	if a, ok := r.accounts[id]; ok {
		return cloneAccount(a), nil
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubAccountRepo) FindByUsername(_ context.Context, username string) (*domain.Account, error) {
	for _, a := range r.accounts {
		if a.Username == username {
			return cloneAccount(a), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubAccountRepo) FindByEmail(_ context.Context, email string) (*domain.Account, error) {
	for _, a := range r.accounts {
		if a.Email == email {
			return cloneAccount(a), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubAccountRepo) Update(_ context.Context, account *domain.Account) error {
	if _, ok := r.accounts[account.ID]; !ok {
		return domain.ErrUserNotFound
	}
	r.accounts[account.ID] = cloneAccount(account)
	return nil
}

type stubBlacklist struct {
	revoked map[string]time.Time
}

func (b *stubBlacklist) Revoke(_ context.Context, jti string, until time.Time) error {
	if b.revoked == nil {
		b.revoked = make(map[string]time.Time)
	}
	b.revoked[jti] = until
	return nil
}

func (b *stubBlacklist) Revoked(_ context.Context, jti string) (bool, error) {
	_, ok := b.revoked[jti]
	return ok, nil
}

func newTestAccountService() (*AccountService, *stubAccountRepo) {
	repo := newStubAccountRepo()
	svc := NewAccountService(repo, &stubBlacklist{}, AccountServiceOptions{
		Secret:     "secret",
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
	})
	return svc, repo
}

func validRegistration() domain.RegistrationRequest {
	return domain.RegistrationRequest{
		FirstName:       "Achieng",
		LastName:        "Odhiambo",
		Username:        "achieng",
		Email:           "achieng@example.com",
		Password:        "s3cret",
		ConfirmPassword: "s3cret",
		Country:         "Kenya",
		City:            "Kisumu",
	}
}

func registerActive(t *testing.T, svc *AccountService, req domain.RegistrationRequest) *domain.Account {
	t.Helper()
	account, err := svc.Register(context.Background(), req)
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if err := svc.Activate(context.Background(), account.ID, account.ActivationToken); err != nil {
		t.Fatalf("activate failed: %v", err)
	}
	return account
}

func TestAccountService_Register_Success(t *testing.T) {
	svc, _ := newTestAccountService()

	account, err := svc.Register(context.Background(), validRegistration())
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if account.PasswordHash == "s3cret" {
		t.Fatalf("expected password to be hashed")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte("s3cret")); err != nil {
		t.Fatalf("stored hash does not match password: %v", err)
	}
	if account.IsActive || account.ActivationToken == "" {
		t.Fatalf("expected an inactive account with an activation token")
	}
	if account.Role != domain.RoleAffiliate {
		t.Fatalf("expected default role, got %s", account.Role)
	}
}

func TestAccountService_Register_Validation(t *testing.T) {
	svc, _ := newTestAccountService()

	cases := []struct {
		name  string
		edit  func(*domain.RegistrationRequest)
		field string
	}{
		{"missing username", func(r *domain.RegistrationRequest) { r.Username = "" }, "username"},
		{"missing email", func(r *domain.RegistrationRequest) { r.Email = "" }, "email"},
		{"missing password", func(r *domain.RegistrationRequest) { r.Password = "" }, "password"},
		{"mismatch", func(r *domain.RegistrationRequest) { r.ConfirmPassword = "other" }, "password"},
		{"admin role", func(r *domain.RegistrationRequest) { r.Role = domain.RoleAdmin }, "role"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validRegistration()
			tc.edit(&req)

			_, err := svc.Register(context.Background(), req)

			var fe domain.FieldErrors
			if !errors.As(err, &fe) {
				t.Fatalf("expected FieldErrors, got %v", err)
			}
			if len(fe[tc.field]) == 0 {
				t.Fatalf("expected error on %q, got %v", tc.field, fe)
			}
		})
	}
}

func TestAccountService_Register_Duplicate(t *testing.T) {
	svc, _ := newTestAccountService()
	_, _ = svc.Register(context.Background(), validRegistration())

	_, err := svc.Register(context.Background(), validRegistration())

	var fe domain.FieldErrors
	if !errors.As(err, &fe) {
		t.Fatalf("expected FieldErrors, got %v", err)
	}
	if fe["username"][0] != msgUsernameTaken || fe["email"][0] != msgEmailTaken {
		t.Fatalf("unexpected field errors: %v", fe)
	}
}

func TestAccountService_Login_RequiresActivation(t *testing.T) {
	svc, _ := newTestAccountService()
	account, _ := svc.Register(context.Background(), validRegistration())

	if _, _, err := svc.Login(context.Background(), "achieng", "s3cret"); !errors.Is(err, domain.ErrInactiveAccount) {
		t.Fatalf("expected ErrInactiveAccount, got %v", err)
	}

	if err := svc.Activate(context.Background(), account.ID, "wrong"); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if err := svc.Activate(context.Background(), account.ID, account.ActivationToken); err != nil {
		t.Fatalf("activate failed: %v", err)
	}
	if _, _, err := svc.Login(context.Background(), "achieng", "s3cret"); err != nil {
		t.Fatalf("login after activation failed: %v", err)
	}
}

func TestAccountService_Login_ByUsernameOrEmail(t *testing.T) {
	svc, _ := newTestAccountService()
	registerActive(t, svc, validRegistration())

	for _, login := range []string{"achieng", "achieng@example.com"} {
		pair, account, err := svc.Login(context.Background(), login, "s3cret")
		if err != nil {
			t.Fatalf("login %q failed: %v", login, err)
		}
		if pair.Access == "" || pair.Refresh == "" {
			t.Fatalf("expected a token pair")
		}
		if account.Username != "achieng" {
			t.Fatalf("unexpected account: %+v", account)
		}

		claims := jwt.MapClaims{}
		parsed, err := jwt.ParseWithClaims(pair.Access, claims, func(*jwt.Token) (any, error) {
			return []byte("secret"), nil
		})
		if err != nil || !parsed.Valid {
			t.Fatalf("token invalid: %v", err)
		}
		if claims["role"] != string(domain.RoleAffiliate) || claims["token_type"] != tokenTypeAccess {
			t.Fatalf("unexpected claims: %v", claims)
		}
	}
}

func TestAccountService_Login_InvalidCredentials(t *testing.T) {
	svc, _ := newTestAccountService()
	registerActive(t, svc, validRegistration())

	if _, _, err := svc.Login(context.Background(), "achieng", "bad"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := svc.Login(context.Background(), "ghost", "s3cret"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}

func TestAccountService_Refresh_RotatesAndBlacklists(t *testing.T) {
	svc, _ := newTestAccountService()
	registerActive(t, svc, validRegistration())
	pair, _, _ := svc.Login(context.Background(), "achieng", "s3cret")

	next, err := svc.Refresh(context.Background(), pair.Refresh)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if next.Refresh == pair.Refresh || next.Access == "" {
		t.Fatalf("expected a rotated pair")
	}

	if _, err := svc.Refresh(context.Background(), pair.Refresh); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected reused refresh token to be rejected, got %v", err)
	}
	if _, err := svc.Refresh(context.Background(), pair.Access); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected access token to be rejected as refresh, got %v", err)
	}
}

func TestAccountService_Logout(t *testing.T) {
	svc, _ := newTestAccountService()
	registerActive(t, svc, validRegistration())
	pair, _, _ := svc.Login(context.Background(), "achieng", "s3cret")

	if err := svc.Logout(context.Background(), pair.Refresh); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if _, err := svc.Refresh(context.Background(), pair.Refresh); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected blacklisted token, got %v", err)
	}
	if err := svc.Logout(context.Background(), "garbage"); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestAccountService_Authenticate(t *testing.T) {
	svc, _ := newTestAccountService()
	registerActive(t, svc, validRegistration())
	pair, _, _ := svc.Login(context.Background(), "achieng", "s3cret")

	account, err := svc.Authenticate(context.Background(), pair.Access)
	if err != nil || account.Username != "achieng" {
		t.Fatalf("authenticate failed: %v %+v", err, account)
	}
	if _, err := svc.Authenticate(context.Background(), pair.Refresh); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected refresh token to be rejected as access, got %v", err)
	}

	other := NewAccountService(newStubAccountRepo(), &stubBlacklist{}, AccountServiceOptions{Secret: "other"})
	if _, err := other.Authenticate(context.Background(), pair.Access); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected foreign signature to be rejected, got %v", err)
	}
}

func TestAccountService_UpdateProfile(t *testing.T) {
	svc, repo := newTestAccountService()
	account := registerActive(t, svc, validRegistration())

	city := "Mombasa"
	methods := []string{"social_media", "blog"}
	updated, err := svc.UpdateProfile(context.Background(), account.ID, domain.ProfileUpdate{
		City:             &city,
		PromotionMethods: &methods,
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.City != "Mombasa" || updated.Country != "Kenya" || len(updated.PromotionMethods) != 2 {
		t.Fatalf("unexpected update: %+v", updated)
	}
	if stored, _ := repo.FindByID(context.Background(), account.ID); stored.City != "Mombasa" {
		t.Fatalf("update not stored")
	}
}

func TestAccountService_ResendActivation(t *testing.T) {
	svc, _ := newTestAccountService()
	account, _ := svc.Register(context.Background(), validRegistration())

	resent, err := svc.ResendActivation(context.Background(), "achieng@example.com")
	if err != nil {
		t.Fatalf("resend failed: %v", err)
	}
	if resent.ActivationToken == account.ActivationToken {
		t.Fatalf("expected a new activation token")
	}
	if err := svc.Activate(context.Background(), account.ID, account.ActivationToken); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected the old token to be stale, got %v", err)
	}
	if err := svc.Activate(context.Background(), resent.ID, resent.ActivationToken); err != nil {
		t.Fatalf("activate failed: %v", err)
	}
	if _, err := svc.ResendActivation(context.Background(), "achieng@example.com"); !errors.Is(err, domain.ErrAlreadyActive) {
		t.Fatalf("expected ErrAlreadyActive, got %v", err)
	}
}

func TestAccountService_Seed(t *testing.T) {
	svc, _ := newTestAccountService()

	admin, err := svc.Seed(context.Background(), domain.RegistrationRequest{
		Username: "root",
		Email:    "root@example.com",
		Password: "toor",
		Role:     domain.RoleAdmin,
	})
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if !admin.IsActive || admin.Role != domain.RoleAdmin {
		t.Fatalf("unexpected seeded account: %+v", admin)
	}

	again, err := svc.Seed(context.Background(), domain.RegistrationRequest{Username: "root", Password: "x"})
	if err != nil || again.ID != admin.ID {
		t.Fatalf("expected seeding to be idempotent, got %v %+v", err, again)
	}
}

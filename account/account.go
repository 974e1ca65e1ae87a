/*
Package account manages tenants and their users.

PURPOSE:
  Signup creates a tenant together with its first admin user. Admins can
  then add users and change tenant settings (business name, lot number
  prefix). Passwords are stored as bcrypt hashes only.

  Issuing tokens is not part of this package: Authenticate only checks a
  password, and cmd/devtoken turns the result into a signed principal.

ERRORS:
  Same taxonomy as the ledger: ValidationError for bad input and email
  collisions, ErrForbidden for non-admins, ErrNotFound for unknown
  tenants, opaque ServerError for storage failures.
*/
package account

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/warp/lot-ledger/inventory"
)

// ErrInvalidCredentials is returned by Authenticate for an unknown email
// or a wrong password. The two cases are not distinguished.
var ErrInvalidCredentials = errors.New("invalid credentials")

type Service struct {
	store  inventory.TxStore
	logger *zap.Logger
	now    func() time.Time
	cost   int
}

type Option func(*Service)

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithBcryptCost overrides bcrypt.DefaultCost. Tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

func New(store inventory.TxStore, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: zap.NewNop(),
		now:    func() time.Time { return time.Now().UTC() },
		cost:   bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SignupResult is the new tenant and its first admin.
type SignupResult struct {
	Tenant *inventory.Tenant
	Admin  *inventory.User
}

// Signup registers a business. The tenant email must be unused across all
// tenants; an empty LotPrefix becomes inventory.DefaultLotPrefix.
func (s *Service) Signup(ctx context.Context, in inventory.SignupInput) (*SignupResult, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	hash, err := s.hash(in.Password)
	if err != nil {
		return nil, s.fail(s.logger, "signup", err)
	}

	now := s.now()
	prefix := in.LotPrefix
	if prefix == "" {
		prefix = inventory.DefaultLotPrefix
	}
	tenant := &inventory.Tenant{
		ID:           inventory.NewTenantID(),
		BusinessName: in.BusinessName,
		Email:        in.Email,
		LotPrefix:    prefix,
		CreatedAt:    now,
	}
	admin := &inventory.User{
		ID:           inventory.NewUserID(),
		TenantID:     tenant.ID,
		Name:         in.AdminName,
		Email:        in.AdminEmail,
		PasswordHash: hash,
		Role:         inventory.RoleAdmin,
		CreatedAt:    now,
	}

	err = s.store.WithTx(ctx, func(tx inventory.Store) error {
		if err := tx.InsertTenant(ctx, tenant); err != nil {
			return err
		}
		return tx.InsertUser(ctx, admin)
	})
	if errors.Is(err, inventory.ErrDuplicateEmail) {
		return nil, inventory.NewFieldError("email", "an account with this email already exists")
	}
	if err != nil {
		return nil, s.fail(s.logger, "signup", err)
	}

	s.logger.Info("tenant signed up",
		zap.String("tenant_id", string(tenant.ID)),
		zap.String("user_id", string(admin.ID)),
	)
	return &SignupResult{Tenant: tenant, Admin: admin}, nil
}

// AddUser creates a user in p's tenant. Admin only.
func (s *Service) AddUser(ctx context.Context, p inventory.Principal, in inventory.UserInput) (*inventory.User, error) {
	if !p.IsAdmin() {
		return nil, inventory.ErrForbidden
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	log := s.logger.With(zap.String("tenant_id", string(p.TenantID)), zap.String("user_id", string(p.UserID)))

	hash, err := s.hash(in.Password)
	if err != nil {
		return nil, s.fail(log, "add user", err)
	}
	u := &inventory.User{
		ID:           inventory.NewUserID(),
		TenantID:     p.TenantID,
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
		CreatedAt:    s.now(),
	}
	err = s.store.InsertUser(ctx, u)
	if errors.Is(err, inventory.ErrDuplicateEmail) {
		return nil, inventory.NewFieldError("email", "a user with this email already exists")
	}
	if err != nil {
		return nil, s.fail(log, "add user", err)
	}
	return u, nil
}

// GetTenant returns the tenant record, for the settings screen.
func (s *Service) GetTenant(ctx context.Context, tenantID inventory.TenantID) (*inventory.Tenant, error) {
	t, err := s.store.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, s.fail(s.logger.With(zap.String("tenant_id", string(tenantID))), "get tenant", err)
	}
	return t, nil
}

// UpdateSettings changes the business name and lot prefix. Admin only.
// An empty prefix resets it to the default.
func (s *Service) UpdateSettings(ctx context.Context, p inventory.Principal, in inventory.SettingsInput) (*inventory.Tenant, error) {
	if !p.IsAdmin() {
		return nil, inventory.ErrForbidden
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	log := s.logger.With(zap.String("tenant_id", string(p.TenantID)))

	var updated *inventory.Tenant
	err := s.store.WithTx(ctx, func(tx inventory.Store) error {
		t, err := tx.GetTenant(ctx, p.TenantID)
		if err != nil {
			return err
		}
		t.BusinessName = in.BusinessName
		t.LotPrefix = in.LotPrefix
		if t.LotPrefix == "" {
			t.LotPrefix = inventory.DefaultLotPrefix
		}
		if err := tx.UpdateTenant(ctx, t); err != nil {
			return err
		}
		updated = t
		return nil
	})
	if err != nil {
		return nil, s.fail(log, "update settings", err)
	}
	return updated, nil
}

// Authenticate checks email and password within a tenant.
func (s *Service) Authenticate(ctx context.Context, tenantID inventory.TenantID, email, password string) (*inventory.User, error) {
	u, err := s.store.FindUserByEmail(ctx, tenantID, email)
	if errors.Is(err, inventory.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, s.fail(s.logger.With(zap.String("tenant_id", string(tenantID))), "authenticate", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

func (s *Service) hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (s *Service) fail(log *zap.Logger, op string, err error) error {
	switch inventory.KindOf(err) {
	case inventory.KindValidation, inventory.KindForbidden:
		return err
	case inventory.KindNotFound:
		return inventory.ErrNotFound
	}
	log.Error(op+" failed", zap.Error(err))
	return inventory.NewServerError(op, err)
}

package account_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/warp/lot-ledger/account"
	"github.com/warp/lot-ledger/inventory"
	"github.com/warp/lot-ledger/inventory/store"
	"github.com/warp/lot-ledger/store/sqlite"
)

func backends(t *testing.T) map[string]inventory.TxStore {
	t.Helper()
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return map[string]inventory.TxStore{
		"memory": store.NewMemory(),
		"sqlite": db,
	}
}

func eachBackend(t *testing.T, fn func(t *testing.T, svc *account.Service, s inventory.TxStore)) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			fn(t, account.New(s, account.WithBcryptCost(bcrypt.MinCost)), s)
		})
	}
}

func signup(t *testing.T, svc *account.Service, email string) *account.SignupResult {
	t.Helper()
	res, err := svc.Signup(context.Background(), inventory.SignupInput{
		BusinessName: "Acme Textiles",
		Email:        email,
		AdminName:    "Alice",
		AdminEmail:   "alice@acme.com",
		Password:     "correct horse",
	})
	require.NoError(t, err)
	return res
}

func principal(u *inventory.User) inventory.Principal {
	return inventory.Principal{TenantID: u.TenantID, UserID: u.ID, Role: u.Role}
}

func TestSignup_CreatesTenantAndAdmin(t *testing.T) {
	eachBackend(t, func(t *testing.T, svc *account.Service, s inventory.TxStore) {
		res := signup(t, svc, "Owner@Acme.com")

		assert.Equal(t, "owner@acme.com", res.Tenant.Email)
		assert.Equal(t, inventory.DefaultLotPrefix, res.Tenant.LotPrefix)
		assert.Equal(t, inventory.RoleAdmin, res.Admin.Role)
		assert.Equal(t, res.Tenant.ID, res.Admin.TenantID)
		assert.NotEqual(t, "correct horse", res.Admin.PasswordHash)

		stored, err := s.FindUserByEmail(context.Background(), res.Tenant.ID, "alice@acme.com")
		require.NoError(t, err)
		assert.Equal(t, res.Admin.ID, stored.ID)
	})
}

func TestSignup_DuplicateEmail(t *testing.T) {
	eachBackend(t, func(t *testing.T, svc *account.Service, s inventory.TxStore) {
		// GIVEN: A tenant registered as owner@acme.com
		// WHEN: Another signup uses the same email in different case
		// THEN: ValidationError on email, and no second tenant is left behind
		first := signup(t, svc, "owner@acme.com")

		_, err := svc.Signup(context.Background(), inventory.SignupInput{
			BusinessName: "Copycat", Email: "OWNER@acme.com",
			AdminName: "Bob", AdminEmail: "bob@copycat.com", Password: "password1",
		})
		var vErr *inventory.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Contains(t, vErr.Fields, "email")

		_, err = s.GetTenant(context.Background(), first.Tenant.ID)
		assert.NoError(t, err)
	})
}

func TestSignup_InvalidInput(t *testing.T) {
	svc := account.New(store.NewMemory(), account.WithBcryptCost(bcrypt.MinCost))
	_, err := svc.Signup(context.Background(), inventory.SignupInput{Email: "nope"})
	assert.ErrorIs(t, err, inventory.ErrValidation)
}

func TestAddUser(t *testing.T) {
	eachBackend(t, func(t *testing.T, svc *account.Service, s inventory.TxStore) {
		ctx := context.Background()
		res := signup(t, svc, "owner@acme.com")
		admin := principal(res.Admin)

		sam, err := svc.AddUser(ctx, admin, inventory.UserInput{
			Name: "Sam", Email: "Sam@Acme.com", Password: "password1", Role: inventory.RoleStaff,
		})
		require.NoError(t, err)
		assert.Equal(t, "sam@acme.com", sam.Email)
		assert.Equal(t, res.Tenant.ID, sam.TenantID)

		// Staff may not add users.
		_, err = svc.AddUser(ctx, principal(sam), inventory.UserInput{
			Name: "Eve", Email: "eve@acme.com", Password: "password1", Role: inventory.RoleAdmin,
		})
		assert.ErrorIs(t, err, inventory.ErrForbidden)

		// Email is unique within the tenant.
		_, err = svc.AddUser(ctx, admin, inventory.UserInput{
			Name: "Sam 2", Email: "sam@acme.com", Password: "password1", Role: inventory.RoleStaff,
		})
		var vErr *inventory.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Contains(t, vErr.Fields, "email")
	})
}

func TestUpdateSettings(t *testing.T) {
	eachBackend(t, func(t *testing.T, svc *account.Service, s inventory.TxStore) {
		ctx := context.Background()
		res := signup(t, svc, "owner@acme.com")
		admin := principal(res.Admin)

		updated, err := svc.UpdateSettings(ctx, admin, inventory.SettingsInput{BusinessName: "Acme Ltd", LotPrefix: "AC-"})
		require.NoError(t, err)
		assert.Equal(t, "AC-", updated.LotPrefix)

		got, err := svc.GetTenant(ctx, res.Tenant.ID)
		require.NoError(t, err)
		assert.Equal(t, "Acme Ltd", got.BusinessName)
		assert.Equal(t, "AC-", got.LotPrefix)

		// Clearing the prefix restores the default.
		updated, err = svc.UpdateSettings(ctx, admin, inventory.SettingsInput{BusinessName: "Acme Ltd"})
		require.NoError(t, err)
		assert.Equal(t, inventory.DefaultLotPrefix, updated.LotPrefix)

		staff := inventory.Principal{TenantID: res.Tenant.ID, UserID: inventory.NewUserID(), Role: inventory.RoleStaff}
		_, err = svc.UpdateSettings(ctx, staff, inventory.SettingsInput{BusinessName: "Hijack"})
		assert.ErrorIs(t, err, inventory.ErrForbidden)
	})
}

func TestAuthenticate(t *testing.T) {
	eachBackend(t, func(t *testing.T, svc *account.Service, s inventory.TxStore) {
		ctx := context.Background()
		res := signup(t, svc, "owner@acme.com")

		u, err := svc.Authenticate(ctx, res.Tenant.ID, "ALICE@acme.com", "correct horse")
		require.NoError(t, err)
		assert.Equal(t, res.Admin.ID, u.ID)

		tests := []struct {
			name     string
			tenantID inventory.TenantID
			email    string
			password string
		}{
			{"wrong password", res.Tenant.ID, "alice@acme.com", "battery staple"},
			{"unknown email", res.Tenant.ID, "mallory@acme.com", "correct horse"},
			{"other tenant", inventory.NewTenantID(), "alice@acme.com", "correct horse"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := svc.Authenticate(ctx, tt.tenantID, tt.email, tt.password)
				assert.ErrorIs(t, err, account.ErrInvalidCredentials)
			})
		}
	})
}

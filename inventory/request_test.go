package inventory_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/lot-ledger/inventory"
)

func TestSaleRequest_Validate(t *testing.T) {
	tests := []struct {
		name      string
		req       inventory.SaleRequest
		wantField string
	}{
		{"valid", inventory.SaleRequest{Items: []inventory.SaleItem{{Color: "Red", Size: "M", Quantity: 1}}}, ""},
		{"no items", inventory.SaleRequest{}, "items"},
		{"zero quantity", inventory.SaleRequest{Items: []inventory.SaleItem{{Color: "Red", Size: "M"}}}, "items[0].quantity"},
		{"blank size", inventory.SaleRequest{Items: []inventory.SaleItem{{Color: "Red", Size: " ", Quantity: 1}}}, "items[0].size"},
		{"quantity too large", inventory.SaleRequest{Items: []inventory.SaleItem{
			{Color: "Red", Size: "M", Quantity: 5},
			{Color: "Red", Size: "M", Quantity: 1_000_001},
		}}, "items[1].quantity"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var vErr *inventory.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Contains(t, vErr.Fields, tt.wantField)
		})
	}
}

func TestSaleRequest_Validate_Trims(t *testing.T) {
	req := inventory.SaleRequest{
		Items:        []inventory.SaleItem{{Color: " Red ", Size: "M\t", Quantity: 2}},
		CustomerName: "  Bob ",
	}
	require.NoError(t, req.Validate())
	assert.Equal(t, "Red", req.Items[0].Color)
	assert.Equal(t, "M", req.Items[0].Size)
	assert.Equal(t, "Bob", req.CustomerName)
}

func TestLotInput_Validate_Structural(t *testing.T) {
	in := sampleInput()
	in.Items[0].Sizes[1].Size = "M" // duplicate size within Red
	in.Items[1].Color = "Red"       // duplicate color

	err := in.Validate()
	var vErr *inventory.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Fields, "items[0].sizes[1].size")
	assert.Contains(t, vErr.Fields, "items[1].color")
	assert.True(t, errors.Is(err, inventory.ErrValidation))
}

func TestLotInput_Validate_NegativePrice(t *testing.T) {
	in := sampleInput()
	in.Items[1].Sizes[0].SellCostPerPiece = money("-0.01")

	var vErr *inventory.ValidationError
	require.ErrorAs(t, in.Validate(), &vErr)
	assert.Contains(t, vErr.Fields, "items[1].sizes[0].sellCostPerPiece")
}

func TestLotInput_Validate_TagRules(t *testing.T) {
	in := sampleInput()
	in.Items[0].Sizes[0].Quantity = 0
	in.LotNumber = "   "

	err := in.Validate()
	var vErr *inventory.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Fields, "lotNumber")
	assert.Contains(t, vErr.Fields, "items[0].sizes[0].quantity")
}

func TestLotInput_Validate_QuantityBound(t *testing.T) {
	in := sampleInput()
	in.Items[0].Sizes[0].Quantity = 1_000_000
	require.NoError(t, in.Validate())

	in.Items[0].Sizes[0].Quantity = 1_000_001
	var vErr *inventory.ValidationError
	require.ErrorAs(t, in.Validate(), &vErr)
	assert.Equal(t, "must be at most 1000000", vErr.Fields["items[0].sizes[0].quantity"])
}

func TestSignupInput_Validate(t *testing.T) {
	in := inventory.SignupInput{
		BusinessName: " Acme ",
		Email:        "Owner@Acme.COM",
		AdminName:    "Alice",
		AdminEmail:   "ALICE@acme.com",
		Password:     "correct horse",
	}
	require.NoError(t, in.Validate())
	assert.Equal(t, "owner@acme.com", in.Email)
	assert.Equal(t, "alice@acme.com", in.AdminEmail)

	in.Password = "short"
	in.Email = "not-an-email"
	var vErr *inventory.ValidationError
	require.ErrorAs(t, in.Validate(), &vErr)
	assert.Contains(t, vErr.Fields, "password")
	assert.Contains(t, vErr.Fields, "email")
}

func TestUserInput_Validate_Role(t *testing.T) {
	in := inventory.UserInput{Name: "Sam", Email: "sam@acme.com", Password: "longenough", Role: "owner"}
	var vErr *inventory.ValidationError
	require.ErrorAs(t, in.Validate(), &vErr)
	assert.Contains(t, vErr.Fields, "role")

	in.Role = inventory.RoleStaff
	assert.NoError(t, in.Validate())
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want inventory.Kind
	}{
		{inventory.NewFieldError("x", "bad"), inventory.KindValidation},
		{&inventory.InsufficientStockError{Requested: 2, Available: 1}, inventory.KindInsufficientStock},
		{inventory.ErrNotFound, inventory.KindNotFound},
		{inventory.ErrForbidden, inventory.KindForbidden},
		{inventory.NewServerError("op", errors.New("boom")), inventory.KindServer},
		{errors.New("anything else"), inventory.KindServer},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, inventory.KindOf(tt.err), "%v", tt.err)
	}
}

func TestInsufficientStockError_IsValidation(t *testing.T) {
	err := error(&inventory.InsufficientStockError{Color: "Red", Size: "M", Requested: 8, Available: 7})
	assert.ErrorIs(t, err, inventory.ErrInsufficientStock)
	assert.ErrorIs(t, err, inventory.ErrValidation)
	assert.True(t, inventory.IsClientError(err))
	assert.Contains(t, err.Error(), "only 7 left")
}

func TestServerError_IsOpaque(t *testing.T) {
	cause := errors.New("connection refused to 10.0.0.5")
	err := inventory.NewServerError("record sale", cause)
	assert.ErrorIs(t, err, inventory.ErrServer)
	assert.ErrorIs(t, err, cause)
	assert.NotContains(t, err.Error(), "10.0.0.5")
}

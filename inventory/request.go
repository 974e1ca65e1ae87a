/*
request.go - Typed request schemas and their validation

PURPOSE:
  Inputs to the ledger are strongly typed and validated before the
  engine runs. Field constraints are declared with validator/v10 tags;
  rules that need the whole structure (duplicate colors, duplicate sizes,
  non-negative decimals) are checked by hand afterwards.

  Every failure is returned as a *ValidationError whose Fields map names
  the offending path, e.g. "items[0].sizes[1].quantity".
*/
package inventory

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// validateStruct runs the tag rules and converts failures into a ValidationError.
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ValidationError{Message: err.Error()}
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fieldPath(fe.Namespace())] = describe(fe)
	}
	return &ValidationError{Fields: fields}
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s entries", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "email":
		return "must be a valid email address"
	default:
		return fmt.Sprintf("failed %q", fe.Tag())
	}
}

// =============================================================================
// SALE REQUEST
// =============================================================================

type SaleItem struct {
	Color    string `json:"color" validate:"required,max=100"`
	Size     string `json:"size" validate:"required,max=50"`
	Quantity int    `json:"quantity" validate:"gte=1,lte=1000000"`
}

type SaleRequest struct {
	Items         []SaleItem `json:"items" validate:"required,min=1,dive"`
	CustomerName  string     `json:"customerName" validate:"max=200"`
	InvoiceNumber string     `json:"invoiceNumber" validate:"max=100"`
}

// Normalize trims free-text fields in place.
func (r *SaleRequest) Normalize() {
	r.CustomerName = strings.TrimSpace(r.CustomerName)
	r.InvoiceNumber = strings.TrimSpace(r.InvoiceNumber)
	for i := range r.Items {
		r.Items[i].Color = strings.TrimSpace(r.Items[i].Color)
		r.Items[i].Size = strings.TrimSpace(r.Items[i].Size)
	}
}

// Validate normalizes and checks the request shape. Stock and existence
// checks belong to the lot.
func (r *SaleRequest) Validate() error {
	r.Normalize()
	return validateStruct(r)
}

// =============================================================================
// LOT INPUT
// =============================================================================

type SizeInput struct {
	Size                 string          `json:"size" validate:"required,max=50"`
	Quantity             int             `json:"quantity" validate:"gte=1,lte=1000000"`
	PurchaseCostPerPiece decimal.Decimal `json:"purchaseCostPerPiece" validate:"gte=0"`
	SellCostPerPiece     decimal.Decimal `json:"sellCostPerPiece" validate:"gte=0"`
}

type ColorInput struct {
	Color string      `json:"color" validate:"required,max=100"`
	Sizes []SizeInput `json:"sizes" validate:"required,min=1,dive"`
}

type LotInput struct {
	LotNumber string       `json:"lotNumber" validate:"required,max=64"`
	Items     []ColorInput `json:"items" validate:"required,min=1,dive"`
}

func (in *LotInput) normalizedLotNumber() string {
	return strings.TrimSpace(in.LotNumber)
}

// Validate checks tag rules, then structural rules the tags cannot express.
func (in *LotInput) Validate() error {
	in.LotNumber = strings.TrimSpace(in.LotNumber)
	for i := range in.Items {
		in.Items[i].Color = strings.TrimSpace(in.Items[i].Color)
		for j := range in.Items[i].Sizes {
			in.Items[i].Sizes[j].Size = strings.TrimSpace(in.Items[i].Sizes[j].Size)
		}
	}
	if err := validateStruct(in); err != nil {
		return err
	}

	fields := map[string]string{}
	colors := make(map[string]bool, len(in.Items))
	for i, c := range in.Items {
		if colors[c.Color] {
			fields[fmt.Sprintf("items[%d].color", i)] = fmt.Sprintf("duplicate color %q", c.Color)
		}
		colors[c.Color] = true

		sizes := make(map[string]bool, len(c.Sizes))
		for j, s := range c.Sizes {
			path := fmt.Sprintf("items[%d].sizes[%d]", i, j)
			if sizes[s.Size] {
				fields[path+".size"] = fmt.Sprintf("duplicate size %q for color %q", s.Size, c.Color)
			}
			sizes[s.Size] = true
			if s.PurchaseCostPerPiece.IsNegative() {
				fields[path+".purchaseCostPerPiece"] = "must not be negative"
			}
			if s.SellCostPerPiece.IsNegative() {
				fields[path+".sellCostPerPiece"] = "must not be negative"
			}
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func (in *LotInput) toColors() []Color {
	colors := make([]Color, len(in.Items))
	for i, c := range in.Items {
		sizes := make([]Size, len(c.Sizes))
		for j, s := range c.Sizes {
			sizes[j] = Size{
				Size:                 s.Size,
				Quantity:             s.Quantity,
				RemainingQuantity:    s.Quantity,
				PurchaseCostPerPiece: s.PurchaseCostPerPiece,
				SellCostPerPiece:     s.SellCostPerPiece,
			}
		}
		colors[i] = Color{Color: c.Color, Sizes: sizes}
	}
	return colors
}

// =============================================================================
// ACCOUNT INPUTS
// =============================================================================

type SignupInput struct {
	BusinessName string `json:"businessName" validate:"required,max=200"`
	Email        string `json:"email" validate:"required,email"`
	LotPrefix    string `json:"lotPrefix" validate:"max=16"`
	AdminName    string `json:"adminName" validate:"required,max=200"`
	AdminEmail   string `json:"adminEmail" validate:"required,email"`
	Password     string `json:"password" validate:"required,min=8,max=72"`
}

func (in *SignupInput) Validate() error {
	in.BusinessName = strings.TrimSpace(in.BusinessName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.LotPrefix = strings.TrimSpace(in.LotPrefix)
	in.AdminName = strings.TrimSpace(in.AdminName)
	in.AdminEmail = strings.ToLower(strings.TrimSpace(in.AdminEmail))
	return validateStruct(in)
}

type UserInput struct {
	Name     string `json:"name" validate:"required,max=200"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Role     Role   `json:"role" validate:"required,oneof=admin staff"`
}

func (in *UserInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	return validateStruct(in)
}

type SettingsInput struct {
	BusinessName string `json:"businessName" validate:"required,max=200"`
	LotPrefix    string `json:"lotPrefix" validate:"max=16"`
}

func (in *SettingsInput) Validate() error {
	in.BusinessName = strings.TrimSpace(in.BusinessName)
	in.LotPrefix = strings.TrimSpace(in.LotPrefix)
	return validateStruct(in)
}

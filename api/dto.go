/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the domain model from the external contract: password hashes never
  leave the server and deleted lots render with a placeholder number.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients (the inventory input
    schemas are used directly where they already carry JSON tags)
  - *Response: Wrappers

MONEY:
  Decimal amounts are encoded as JSON strings ("12.50") so no client
  parses them into binary floating point. Inputs accept strings or numbers.

SEE ALSO:
  - handlers.go: Uses these types
  - inventory/request.go: SaleRequest, LotInput, SignupInput, UserInput
*/
package api

import (
	"time"

	"github.com/warp/lot-ledger/account"
	"github.com/warp/lot-ledger/inventory"
	"github.com/warp/lot-ledger/ledger"
)

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Code   string            `json:"code"`
	Fields map[string]string `json:"fields,omitempty"`
	Stock  *StockErrorDTO    `json:"stock,omitempty"`
}

// StockErrorDTO details an insufficient-stock rejection.
type StockErrorDTO struct {
	Color     string `json:"color"`
	Size      string `json:"size"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// =============================================================================
// LOTS
// =============================================================================

type LotDTO struct {
	ID                string            `json:"id"`
	LotNumber         string            `json:"lotNumber"`
	CreatedBy         string            `json:"createdBy"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
	Items             []inventory.Color `json:"items"`
	TotalInvestment   inventory.Money   `json:"totalInvestment"`
	TotalRevenue      inventory.Money   `json:"totalRevenue"`
	TotalProfit       inventory.Money   `json:"totalProfit"`
	TotalQuantity     int               `json:"totalQuantity"`
	RemainingQuantity int               `json:"remainingQuantity"`
	InStock           bool              `json:"inStock"`
}

func toLotDTO(l *inventory.Lot) LotDTO {
	quantity, remaining := l.Quantities()
	items := l.Items()
	if items == nil {
		items = []inventory.Color{}
	}
	return LotDTO{
		ID:                string(l.ID),
		LotNumber:         l.LotNumber,
		CreatedBy:         string(l.CreatedBy),
		CreatedAt:         l.CreatedAt,
		UpdatedAt:         l.UpdatedAt,
		Items:             items,
		TotalInvestment:   l.TotalInvestment,
		TotalRevenue:      l.TotalRevenue,
		TotalProfit:       l.TotalProfit,
		TotalQuantity:     quantity,
		RemainingQuantity: remaining,
		InStock:           remaining > 0,
	}
}

// NextLotNumberDTO is the advisory next lot number.
type NextLotNumberDTO struct {
	LotNumber string `json:"lotNumber"`
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

type TransactionDTO struct {
	ID            string               `json:"id"`
	LotID         string               `json:"lotId"`
	LotNumber     string               `json:"lotNumber"`
	LotDeleted    bool                 `json:"lotDeleted"`
	Items         []inventory.SoldItem `json:"items"`
	TotalAmount   inventory.Money      `json:"totalAmount"`
	TotalProfit   inventory.Money      `json:"totalProfit"`
	SoldBy        string               `json:"soldBy"`
	SellerName    string               `json:"sellerName,omitempty"`
	CustomerName  string               `json:"customerName"`
	InvoiceNumber string               `json:"invoiceNumber"`
	CreatedAt     time.Time            `json:"createdAt"`
}

func toTransactionDTO(v *inventory.TransactionView) TransactionDTO {
	items := v.Items
	if items == nil {
		items = []inventory.SoldItem{}
	}
	return TransactionDTO{
		ID:            string(v.ID),
		LotID:         string(v.LotID),
		LotNumber:     v.LotNumber,
		LotDeleted:    v.LotDeleted,
		Items:         items,
		TotalAmount:   v.TotalAmount,
		TotalProfit:   v.TotalProfit,
		SoldBy:        string(v.SoldBy),
		SellerName:    v.SellerName,
		CustomerName:  v.CustomerName,
		InvoiceNumber: v.InvoiceNumber,
		CreatedAt:     v.CreatedAt,
	}
}

// SaleResponse is returned by POST /api/lots/{id}/sales.
type SaleResponse struct {
	Transaction TransactionDTO `json:"transaction"`
	Lot         LotDTO         `json:"lot"`
}

func toSaleResponse(res *ledger.SaleResult) SaleResponse {
	view := &inventory.TransactionView{Transaction: *res.Transaction}
	view.ResolveLot(res.Lot)
	return SaleResponse{
		Transaction: toTransactionDTO(view),
		Lot:         toLotDTO(res.Lot),
	}
}

// =============================================================================
// PAGES
// =============================================================================

type PageDTO[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalItems int `json:"totalItems"`
	TotalPages int `json:"totalPages"`
}

func toPageDTO[S, T any](p ledger.Page[S], convert func(S) T) PageDTO[T] {
	items := make([]T, len(p.Items))
	for i, it := range p.Items {
		items[i] = convert(it)
	}
	return PageDTO[T]{
		Items:      items,
		Page:       p.Page,
		PageSize:   p.PageSize,
		TotalItems: p.TotalItems,
		TotalPages: p.TotalPages,
	}
}

// =============================================================================
// DASHBOARD
// =============================================================================

type DashboardDTO struct {
	TotalInvestment inventory.Money `json:"totalInvestment"`
	TotalRevenue    inventory.Money `json:"totalRevenue"`
	TotalProfit     inventory.Money `json:"totalProfit"`
	LotCount        int             `json:"lotCount"`
	LotsInStock     int             `json:"lotsInStock"`
	TotalPieces     int             `json:"totalPieces"`
	RemainingPieces int             `json:"remainingPieces"`
}

type DailyPointDTO struct {
	Date    string          `json:"date"`
	Revenue inventory.Money `json:"revenue"`
	Profit  inventory.Money `json:"profit"`
}

type LotRevenueDTO struct {
	LotID     string          `json:"lotId"`
	LotNumber string          `json:"lotNumber"`
	Revenue   inventory.Money `json:"revenue"`
	Profit    inventory.Money `json:"profit"`
}

type LotStockDTO struct {
	LotID     string `json:"lotId"`
	LotNumber string `json:"lotNumber"`
	Sold      int    `json:"sold"`
	Remaining int    `json:"remaining"`
}

type ChartsDTO struct {
	Daily   []DailyPointDTO `json:"daily"`
	TopLots []LotRevenueDTO `json:"topLots"`
	Stock   []LotStockDTO   `json:"stock"`
}

func toChartsDTO(c *ledger.Charts) ChartsDTO {
	out := ChartsDTO{
		Daily:   make([]DailyPointDTO, len(c.Daily)),
		TopLots: make([]LotRevenueDTO, len(c.TopLots)),
		Stock:   make([]LotStockDTO, len(c.Stock)),
	}
	for i, d := range c.Daily {
		out.Daily[i] = DailyPointDTO{Date: d.Date, Revenue: d.Revenue, Profit: d.Profit}
	}
	for i, l := range c.TopLots {
		out.TopLots[i] = LotRevenueDTO{LotID: string(l.LotID), LotNumber: l.LotNumber, Revenue: l.Revenue, Profit: l.Profit}
	}
	for i, s := range c.Stock {
		out.Stock[i] = LotStockDTO{LotID: string(s.LotID), LotNumber: s.LotNumber, Sold: s.Sold, Remaining: s.Remaining}
	}
	return out
}

// =============================================================================
// ACCOUNTS
// =============================================================================

type TenantDTO struct {
	ID           string    `json:"id"`
	BusinessName string    `json:"businessName"`
	Email        string    `json:"email"`
	LotPrefix    string    `json:"lotPrefix"`
	CreatedAt    time.Time `json:"createdAt"`
}

func toTenantDTO(t *inventory.Tenant) TenantDTO {
	return TenantDTO{
		ID:           string(t.ID),
		BusinessName: t.BusinessName,
		Email:        t.Email,
		LotPrefix:    t.LotPrefix,
		CreatedAt:    t.CreatedAt,
	}
}

// UserDTO never carries the password hash.
type UserDTO struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

func toUserDTO(u *inventory.User) UserDTO {
	return UserDTO{
		ID:        string(u.ID),
		Name:      u.Name,
		Email:     u.Email,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt,
	}
}

type SignupResponse struct {
	Tenant TenantDTO `json:"tenant"`
	Admin  UserDTO   `json:"admin"`
}

func toSignupResponse(res *account.SignupResult) SignupResponse {
	return SignupResponse{Tenant: toTenantDTO(res.Tenant), Admin: toUserDTO(res.Admin)}
}

/*
handlers.go - HTTP API handlers for the lot ledger

PURPOSE:
  Exposes the ledger engine and account service via REST. Handlers parse
  the request, take the principal from the context, delegate, and
  serialize. They hold no business rules of their own.

ENDPOINTS:
  Public:
    POST   /api/signup                  Register a business + admin user
    GET    /healthz                     Liveness and storage ping

  Lots:
    GET    /api/lots                    List lots (search, page, pageSize)
    POST   /api/lots                    Create lot
    GET    /api/lots/next-number        Suggested next lot number
    GET    /api/lots/{id}               Get lot
    PUT    /api/lots/{id}               Replace lot (resets remaining stock)
    DELETE /api/lots/{id}               Delete lot (admin or creator)
    POST   /api/lots/{id}/sales         Record a sale

  Transactions:
    GET    /api/transactions            List (lotId, search, page, pageSize)
    GET    /api/transactions/export     Same filter, as an xlsx workbook
    GET    /api/transactions/{id}       Get one

  Reporting:
    GET    /api/dashboard               Stored aggregates
    GET    /api/dashboard/charts        Daily series, top lots, stock (days, topN)

  Accounts:
    POST   /api/users                   Add user (admin)
    GET    /api/settings                Tenant settings
    PUT    /api/settings                Update settings (admin)

ERROR HANDLING:
  Errors are returned as ErrorResponse JSON:
  - 400: ValidationError (with per-field messages)
  - 401: Missing or invalid token
  - 403: Forbidden
  - 404: Not found (also for other tenants' resources)
  - 409: Insufficient stock (with requested/available)
  - 500: Anything else; opaque to the client, logged in full

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - auth.go: Principal resolution
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/warp/lot-ledger/account"
	"github.com/warp/lot-ledger/inventory"
	"github.com/warp/lot-ledger/ledger"
	"github.com/warp/lot-ledger/logging"
)

const maxBodyBytes = 1 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine   *ledger.Engine
	Accounts *account.Service
	Logger   *zap.Logger

	// Ping reports storage health for /healthz. Optional.
	Ping func(ctx context.Context) error
}

func NewHandler(engine *ledger.Engine, accounts *account.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Engine: engine, Accounts: accounts, Logger: logger}
}

// =============================================================================
// PUBLIC
// =============================================================================

// Health reports liveness.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.Ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.Ping(ctx); err != nil {
			h.log(r).Error("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Signup registers a new business.
// POST /api/signup
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var in inventory.SignupInput
	if !h.decode(w, r, &in) {
		return
	}
	res, err := h.Accounts.Signup(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSignupResponse(res))
}

// =============================================================================
// LOT HANDLERS
// =============================================================================

// ListLots returns one page of the tenant's lots, newest first.
// GET /api/lots?search=&page=&pageSize=
func (h *Handler) ListLots(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	page, pageSize, ok := h.pagination(w, r)
	if !ok {
		return
	}
	res, err := h.Engine.ListLots(r.Context(), p.TenantID, ledger.LotQuery{
		Search:   r.URL.Query().Get("search"),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPageDTO(res, toLotDTO))
}

// CreateLot creates a lot with every size fully in stock.
// POST /api/lots
func (h *Handler) CreateLot(w http.ResponseWriter, r *http.Request) {
	var in inventory.LotInput
	if !h.decode(w, r, &in) {
		return
	}
	lot, err := h.Engine.CreateLot(r.Context(), principal(r), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLotDTO(lot))
}

// NextLotNumber suggests the next lot number. Advisory only.
// GET /api/lots/next-number
func (h *Handler) NextLotNumber(w http.ResponseWriter, r *http.Request) {
	next, err := h.Engine.GenerateLotNumber(r.Context(), principal(r).TenantID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, NextLotNumberDTO{LotNumber: next})
}

// GetLot returns a single lot.
// GET /api/lots/{id}
func (h *Handler) GetLot(w http.ResponseWriter, r *http.Request) {
	lot, err := h.Engine.GetLot(r.Context(), principal(r).TenantID, lotID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLotDTO(lot))
}

// ReplaceLot overwrites a lot's number and items. Remaining stock is reset.
// PUT /api/lots/{id}
func (h *Handler) ReplaceLot(w http.ResponseWriter, r *http.Request) {
	var in inventory.LotInput
	if !h.decode(w, r, &in) {
		return
	}
	lot, err := h.Engine.ReplaceLot(r.Context(), principal(r).TenantID, lotID(r), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLotDTO(lot))
}

// DeleteLot permanently removes a lot. Its transactions remain.
// DELETE /api/lots/{id}
func (h *Handler) DeleteLot(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.DeleteLot(r.Context(), principal(r), lotID(r)); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RecordSale sells items from a lot.
// POST /api/lots/{id}/sales
func (h *Handler) RecordSale(w http.ResponseWriter, r *http.Request) {
	var req inventory.SaleRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.Engine.RecordSale(r.Context(), principal(r), lotID(r), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSaleResponse(res))
}

// =============================================================================
// TRANSACTION HANDLERS
// =============================================================================

// ListTransactions returns one page of sales, newest first.
// GET /api/transactions?lotId=&search=&page=&pageSize=
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	q, ok := h.transactionQuery(w, r)
	if !ok {
		return
	}
	res, err := h.Engine.ListTransactions(r.Context(), principal(r).TenantID, q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPageDTO(res, toTransactionDTO))
}

// ExportTransactions streams the filtered listing as an xlsx workbook.
// Pagination parameters are ignored: every match is exported.
// GET /api/transactions/export?lotId=&search=
func (h *Handler) ExportTransactions(w http.ResponseWriter, r *http.Request) {
	q := ledger.TransactionQuery{
		LotID:  inventory.LotID(r.URL.Query().Get("lotId")),
		Search: r.URL.Query().Get("search"),
	}
	var buf bytes.Buffer
	if err := h.Engine.ExportTransactions(r.Context(), principal(r).TenantID, q, &buf); err != nil {
		h.writeError(w, r, err)
		return
	}
	filename := fmt.Sprintf("transactions-%s.xlsx", time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", ledger.XLSXContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.log(r).Warn("write export", zap.Error(err))
	}
}

// GetTransaction returns one sale.
// GET /api/transactions/{id}
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id := inventory.TransactionID(chi.URLParam(r, "id"))
	v, err := h.Engine.GetTransaction(r.Context(), principal(r).TenantID, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(v))
}

// =============================================================================
// REPORTING HANDLERS
// =============================================================================

// Dashboard returns tenant-wide totals.
// GET /api/dashboard
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.Engine.Dashboard(r.Context(), principal(r).TenantID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DashboardDTO{
		TotalInvestment: d.TotalInvestment,
		TotalRevenue:    d.TotalRevenue,
		TotalProfit:     d.TotalProfit,
		LotCount:        d.LotCount,
		LotsInStock:     d.LotsInStock,
		TotalPieces:     d.TotalPieces,
		RemainingPieces: d.RemainingPieces,
	})
}

// Charts returns the dashboard series.
// GET /api/dashboard/charts?days=&topN=
func (h *Handler) Charts(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	topN, err := queryInt(r, "topN")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	c, err := h.Engine.Charts(r.Context(), principal(r).TenantID, ledger.ChartQuery{Days: days, TopN: topN})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toChartsDTO(c))
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

// AddUser adds a user to the caller's tenant.
// POST /api/users
func (h *Handler) AddUser(w http.ResponseWriter, r *http.Request) {
	var in inventory.UserInput
	if !h.decode(w, r, &in) {
		return
	}
	u, err := h.Accounts.AddUser(r.Context(), principal(r), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserDTO(u))
}

// GetSettings returns the caller's tenant.
// GET /api/settings
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	t, err := h.Accounts.GetTenant(r.Context(), principal(r).TenantID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTenantDTO(t))
}

// UpdateSettings changes business name and lot prefix.
// PUT /api/settings
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var in inventory.SettingsInput
	if !h.decode(w, r, &in) {
		return
	}
	t, err := h.Accounts.UpdateSettings(r.Context(), principal(r), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTenantDTO(t))
}

// =============================================================================
// HELPERS
// =============================================================================

func principal(r *http.Request) inventory.Principal {
	p, _ := PrincipalFrom(r.Context())
	return p
}

func lotID(r *http.Request) inventory.LotID {
	return inventory.LotID(chi.URLParam(r, "id"))
}

func (h *Handler) log(r *http.Request) *zap.Logger {
	return logging.FromContext(r.Context(), h.Logger)
}

// decode reads a JSON body into dst, writing a 400 on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "invalid JSON body: " + err.Error(),
			Code:  "invalid_body",
		})
		return false
	}
	return true
}

func (h *Handler) pagination(w http.ResponseWriter, r *http.Request) (page, pageSize int, ok bool) {
	page, err := queryInt(r, "page")
	if err != nil {
		h.writeError(w, r, err)
		return 0, 0, false
	}
	pageSize, err = queryInt(r, "pageSize")
	if err != nil {
		h.writeError(w, r, err)
		return 0, 0, false
	}
	return page, pageSize, true
}

func (h *Handler) transactionQuery(w http.ResponseWriter, r *http.Request) (ledger.TransactionQuery, bool) {
	page, pageSize, ok := h.pagination(w, r)
	if !ok {
		return ledger.TransactionQuery{}, false
	}
	return ledger.TransactionQuery{
		LotID:    inventory.LotID(r.URL.Query().Get("lotId")),
		Search:   r.URL.Query().Get("search"),
		Page:     page,
		PageSize: pageSize,
	}, true
}

// queryInt parses an optional integer query parameter; absent means 0.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, inventory.NewFieldError(name, "must be an integer")
	}
	return n, nil
}

// writeError maps the error taxonomy onto status codes. Server errors are
// logged with their cause and returned without detail.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch inventory.KindOf(err) {
	case inventory.KindInsufficientStock:
		resp := ErrorResponse{Error: err.Error(), Code: string(inventory.KindInsufficientStock)}
		var stock *inventory.InsufficientStockError
		if errors.As(err, &stock) {
			resp.Stock = &StockErrorDTO{
				Color:     stock.Color,
				Size:      stock.Size,
				Requested: stock.Requested,
				Available: stock.Available,
			}
		}
		writeJSON(w, http.StatusConflict, resp)
	case inventory.KindValidation:
		resp := ErrorResponse{Error: err.Error(), Code: string(inventory.KindValidation)}
		var vErr *inventory.ValidationError
		if errors.As(err, &vErr) {
			resp.Fields = vErr.Fields
		}
		writeJSON(w, http.StatusBadRequest, resp)
	case inventory.KindNotFound:
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "not found", Code: string(inventory.KindNotFound)})
	case inventory.KindForbidden:
		writeJSON(w, http.StatusForbidden, ErrorResponse{Error: "forbidden", Code: string(inventory.KindForbidden)})
	default:
		cause := err
		var sErr *inventory.ServerError
		if errors.As(err, &sErr) {
			cause = sErr.Err
		}
		h.log(r).Error("request failed", zap.Error(cause), zap.String("path", r.URL.Path))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Code: string(inventory.KindServer)})
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

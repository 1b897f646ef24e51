/*
handlers.go - HTTP API handlers for the cash-flow forecast service

PURPOSE:
  Exposes plan management and the forecast engine via REST API. Handles
  HTTP request/response and JSON serialization, and delegates to the
  store and the engine.

ENDPOINTS:
  Plans:
    GET    /api/plans                       List plans (?family_id=, ?include_archived=true)
    POST   /api/plans                       Create plan
    GET    /api/plans/{id}                  Get plan
    PUT    /api/plans/{id}                  Replace plan
    DELETE /api/plans/{id}                  Delete plan
    POST   /api/plans/{id}/archive          Archive plan

  Planned items:
    POST   /api/plans/{id}/items            Add item
    PUT    /api/plans/{id}/items/{itemID}   Replace item
    DELETE /api/plans/{id}/items/{itemID}   Remove item

  Forecast:
    GET    /api/plans/{id}/forecast         Calculate a stored plan
    POST   /api/forecast/preview            Calculate an unsaved plan document

  Accounts:
    GET    /api/accounts                    List accounts (?family_id=)
    POST   /api/accounts                    Create account
    GET    /api/accounts/{id}/transactions  Transaction history
    POST   /api/accounts/{id}/transactions  Record transactions

  Risk:
    GET    /api/risk                        Scan every active plan now

REQUEST FLOW:
  1. Parse HTTP request
  2. Convert documents with the plan factory
  3. Call the store / engine
  4. Serialize response
  5. Map errors to status codes

ERROR HANDLING:
  - 400: Invalid plan, invalid schedule, missing starting balance, bad JSON
  - 404: Plan or account not found
  - 409: Duplicate transaction
  - 500: Everything else

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/warp/cashflow-forecast/factory"
	"github.com/warp/cashflow-forecast/forecast"
	"github.com/warp/cashflow-forecast/forecast/provider"
	"github.com/warp/cashflow-forecast/store/sqlstore"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store       *sqlstore.Store
	Engine      *forecast.Engine
	PlanFactory *factory.PlanFactory
	Scanner     *RiskScanner
	Logger      logrus.FieldLogger

	// NewID mints identities for plans, items, accounts and transactions
	// created without one.
	NewID func() string

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a handler over store, with an engine reading its
// collaborators from the same store.
func NewHandler(store *sqlstore.Store, logger logrus.FieldLogger) *Handler {
	engine := forecast.NewEngine(store, store, store)
	engine.Logger = logger
	h := &Handler{
		Store:       store,
		Engine:      engine,
		PlanFactory: factory.NewPlanFactory(),
		Logger:      logger,
		NewID:       uuid.NewString,
	}
	h.Scanner = NewRiskScanner(store, engine, logger)
	return h
}

// =============================================================================
// PLAN HANDLERS
// =============================================================================

// ListPlans returns plans, optionally filtered by family.
func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	filter := sqlstore.PlanFilter{
		FamilyID:        forecast.FamilyID(r.URL.Query().Get("family_id")),
		IncludeArchived: r.URL.Query().Get("include_archived") == "true",
	}
	plans, err := h.Store.ListPlans(r.Context(), filter)
	if err != nil {
		writeServiceError(w, "Failed to list plans", err)
		return
	}

	dtos := make([]factory.PlanJSON, len(plans))
	for i, p := range plans {
		dtos[i] = h.PlanFactory.ToJSON(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetPlan returns a single plan with its items.
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := h.Store.GetPlan(r.Context(), forecast.PlanID(chi.URLParam(r, "id")))
	if err != nil {
		writeServiceError(w, "Failed to get plan", err)
		return
	}
	writeJSON(w, http.StatusOK, h.PlanFactory.ToJSON(*plan))
}

// CreatePlan stores a new plan. Missing strategies are filled in from
// history before the first save.
func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var req factory.PlanJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" {
		req.ID = h.NewID()
	}
	h.assignItemIDs(req.Items)

	plan, err := h.PlanFactory.FromJSON(req)
	if err != nil {
		writeServiceError(w, "Invalid plan", err)
		return
	}
	if err := forecast.Validate(*plan); err != nil {
		writeServiceError(w, "Invalid plan", err)
		return
	}
	if err := h.Engine.PrepareNewPlan(r.Context(), plan); err != nil {
		writeServiceError(w, "Failed to prepare plan", err)
		return
	}
	if err := h.Store.SavePlan(r.Context(), *plan); err != nil {
		writeServiceError(w, "Failed to create plan", err)
		return
	}

	writeJSON(w, http.StatusCreated, h.PlanFactory.ToJSON(*plan))
}

// UpdatePlan replaces a plan. Items are kept when the body omits them.
func (h *Handler) UpdatePlan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := forecast.PlanID(chi.URLParam(r, "id"))

	existing, err := h.Store.GetPlan(ctx, id)
	if err != nil {
		writeServiceError(w, "Failed to get plan", err)
		return
	}

	var req factory.PlanJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	req.ID = string(id)
	h.assignItemIDs(req.Items)

	plan, err := h.PlanFactory.FromJSON(req)
	if err != nil {
		writeServiceError(w, "Invalid plan", err)
		return
	}
	if req.Items == nil {
		plan.Items = existing.Items
	}
	plan.CreatedAt = existing.CreatedAt
	plan.UpdatedAt = h.now()

	h.savePlan(w, r, plan, http.StatusOK)
}

// DeletePlan removes a plan.
func (h *Handler) DeletePlan(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeletePlan(r.Context(), forecast.PlanID(chi.URLParam(r, "id"))); err != nil {
		writeServiceError(w, "Failed to delete plan", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ArchivePlan hides a plan from default listings and risk scans.
func (h *Handler) ArchivePlan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := forecast.PlanID(chi.URLParam(r, "id"))

	if err := h.Store.ArchivePlan(ctx, id); err != nil {
		writeServiceError(w, "Failed to archive plan", err)
		return
	}
	plan, err := h.Store.GetPlan(ctx, id)
	if err != nil {
		writeServiceError(w, "Failed to get plan", err)
		return
	}
	writeJSON(w, http.StatusOK, h.PlanFactory.ToJSON(*plan))
}

// =============================================================================
// PLANNED ITEM HANDLERS
// =============================================================================

// AddItem appends a planned item.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	plan, ij, ok := h.loadPlanAndItem(w, r)
	if !ok {
		return
	}
	if ij.ID == "" {
		ij.ID = h.NewID()
	}
	item, err := h.PlanFactory.ItemFromJSON(plan.ID, ij)
	if err != nil {
		writeServiceError(w, "Invalid item", err)
		return
	}
	if _, exists := plan.Item(item.ID); exists {
		writeError(w, http.StatusConflict, "Item already exists", nil)
		return
	}

	plan.Items = append(plan.Items, item)
	plan.UpdatedAt = h.now()
	if !h.persist(w, r, plan) {
		return
	}
	writeJSON(w, http.StatusCreated, h.PlanFactory.ItemJSON(item))
}

// UpdateItem replaces a planned item in place.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	plan, ij, ok := h.loadPlanAndItem(w, r)
	if !ok {
		return
	}
	itemID := forecast.ItemID(chi.URLParam(r, "itemID"))
	ij.ID = string(itemID)

	item, err := h.PlanFactory.ItemFromJSON(plan.ID, ij)
	if err != nil {
		writeServiceError(w, "Invalid item", err)
		return
	}

	found := false
	for i := range plan.Items {
		if plan.Items[i].ID == itemID {
			plan.Items[i] = item
			found = true
		}
	}
	if !found {
		writeError(w, http.StatusNotFound, "Item not found", nil)
		return
	}

	plan.UpdatedAt = h.now()
	if !h.persist(w, r, plan) {
		return
	}
	writeJSON(w, http.StatusOK, h.PlanFactory.ItemJSON(item))
}

// DeleteItem removes a planned item.
func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	plan, err := h.Store.GetPlan(ctx, forecast.PlanID(chi.URLParam(r, "id")))
	if err != nil {
		writeServiceError(w, "Failed to get plan", err)
		return
	}
	itemID := forecast.ItemID(chi.URLParam(r, "itemID"))

	kept := plan.Items[:0]
	for _, it := range plan.Items {
		if it.ID != itemID {
			kept = append(kept, it)
		}
	}
	if len(kept) == len(plan.Items) {
		writeError(w, http.StatusNotFound, "Item not found", nil)
		return
	}
	plan.Items = kept
	plan.UpdatedAt = h.now()

	if err := h.Store.SavePlan(ctx, *plan); err != nil {
		writeServiceError(w, "Failed to save plan", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// FORECAST HANDLERS
// =============================================================================

// GetForecast calculates a stored plan.
func (h *Handler) GetForecast(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	plan, err := h.Store.GetPlan(ctx, forecast.PlanID(chi.URLParam(r, "id")))
	if err != nil {
		writeServiceError(w, "Failed to get plan", err)
		return
	}

	result, err := h.Engine.Calculate(ctx, *plan)
	if err != nil {
		writeServiceError(w, "Failed to calculate forecast", err)
		return
	}
	writeJSON(w, http.StatusOK, NewForecastDTO(result))
}

// PreviewForecast calculates a plan document without storing it.
func (h *Handler) PreviewForecast(w http.ResponseWriter, r *http.Request) {
	var req factory.PlanJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	plan, err := h.PlanFactory.FromJSON(req)
	if err != nil {
		writeServiceError(w, "Invalid plan", err)
		return
	}

	result, err := h.Engine.Calculate(r.Context(), *plan)
	if err != nil {
		writeServiceError(w, "Failed to calculate forecast", err)
		return
	}
	writeJSON(w, http.StatusOK, NewForecastDTO(result))
}

// GetRisk scans every active plan and lists the ones that go negative.
func (h *Handler) GetRisk(w http.ResponseWriter, r *http.Request) {
	risks, err := h.Scanner.ScanOnce(r.Context())
	if err != nil {
		writeServiceError(w, "Failed to scan plans", err)
		return
	}
	writeJSON(w, http.StatusOK, risks)
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

// ListAccounts returns accounts with their current balances.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accounts, err := h.Store.ListAccounts(ctx, forecast.FamilyID(r.URL.Query().Get("family_id")))
	if err != nil {
		writeServiceError(w, "Failed to list accounts", err)
		return
	}

	dtos := make([]AccountDTO, len(accounts))
	for i, a := range accounts {
		dtos[i] = toAccountDTO(a)
		balance, err := h.Store.GetCurrentBalance(ctx, a.ID)
		if err != nil {
			writeServiceError(w, "Failed to get balance", err)
			return
		}
		dtos[i].CurrentBalance = &balance
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateAccount registers a bank account.
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.FamilyID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "family_id and name are required", nil)
		return
	}
	if req.ID == "" {
		req.ID = h.NewID()
	}
	if req.Currency == "" {
		req.Currency = "USD"
	}

	account := provider.Account{
		ID:             forecast.AccountID(req.ID),
		FamilyID:       forecast.FamilyID(req.FamilyID),
		Name:           req.Name,
		Currency:       req.Currency,
		OpeningBalance: req.OpeningBalance,
	}
	if err := h.Store.SaveAccount(r.Context(), account); err != nil {
		writeServiceError(w, "Failed to create account", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountDTO(account))
}

// GetTransactions returns an account's transactions in date order.
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.Store.Transactions(r.Context(), forecast.AccountID(chi.URLParam(r, "id")))
	if err != nil {
		writeServiceError(w, "Failed to get transactions", err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTOs(txs))
}

// RecordTransactions appends credits and debits to an account.
func (h *Handler) RecordTransactions(w http.ResponseWriter, r *http.Request) {
	accountID := forecast.AccountID(chi.URLParam(r, "id"))

	var req RecordTransactionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(req.Transactions) == 0 {
		writeError(w, http.StatusBadRequest, "At least one transaction is required", nil)
		return
	}

	txs := make([]provider.Transaction, len(req.Transactions))
	for i, t := range req.Transactions {
		if t.Date.IsZero() {
			writeError(w, http.StatusBadRequest, "Transaction date is required (use YYYY-MM-DD)", nil)
			return
		}
		if t.ID == "" {
			t.ID = h.NewID()
		}
		txs[i] = provider.Transaction{
			ID:             t.ID,
			AccountID:      accountID,
			Date:           t.Date,
			Type:           forecast.TransactionType(t.Type),
			Amount:         t.Amount.Abs(),
			Description:    t.Description,
			IdempotencyKey: t.IdempotencyKey,
		}
	}

	if err := h.Store.RecordTransactions(r.Context(), txs...); err != nil {
		writeServiceError(w, "Failed to record transactions", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTOs(txs))
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) assignItemIDs(items []factory.ItemJSON) {
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = h.NewID()
		}
	}
}

// loadPlanAndItem loads the plan named in the URL and decodes an item body.
func (h *Handler) loadPlanAndItem(w http.ResponseWriter, r *http.Request) (*forecast.ForecastPlan, factory.ItemJSON, bool) {
	plan, err := h.Store.GetPlan(r.Context(), forecast.PlanID(chi.URLParam(r, "id")))
	if err != nil {
		writeServiceError(w, "Failed to get plan", err)
		return nil, factory.ItemJSON{}, false
	}
	var ij factory.ItemJSON
	if err := json.NewDecoder(r.Body).Decode(&ij); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return nil, factory.ItemJSON{}, false
	}
	return plan, ij, true
}

// persist validates and saves a plan, writing the error response on failure.
func (h *Handler) persist(w http.ResponseWriter, r *http.Request, plan *forecast.ForecastPlan) bool {
	if err := forecast.Validate(*plan); err != nil {
		writeServiceError(w, "Invalid plan", err)
		return false
	}
	if err := h.Store.SavePlan(r.Context(), *plan); err != nil {
		writeServiceError(w, "Failed to save plan", err)
		return false
	}
	return true
}

func (h *Handler) savePlan(w http.ResponseWriter, r *http.Request, plan *forecast.ForecastPlan, status int) {
	if !h.persist(w, r, plan) {
		return
	}
	writeJSON(w, status, h.PlanFactory.ToJSON(*plan))
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeServiceError maps domain errors onto HTTP status codes.
func writeServiceError(w http.ResponseWriter, message string, err error) {
	switch {
	case forecast.IsClientError(err):
		resp := ErrorResponse{Error: message, Code: errorCode(err), Details: err.Error()}
		writeJSON(w, http.StatusBadRequest, resp)
	case forecast.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, provider.ErrDuplicateTransaction):
		writeError(w, http.StatusConflict, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, forecast.ErrInvalidSchedule):
		return "invalid_schedule"
	case errors.Is(err, forecast.ErrMissingStartingBalance):
		return "missing_starting_balance"
	default:
		return "invalid_plan"
	}
}

func (h *Handler) now() time.Time {
	if h.Engine != nil && h.Engine.Now != nil {
		return h.Engine.Now().UTC()
	}
	return time.Now().UTC()
}

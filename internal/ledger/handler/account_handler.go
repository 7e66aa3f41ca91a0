// Package handler exposes the ledger's admin HTTP surface: account
// management, entry history, reconciliation and the fault injector toggle.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/daxchui/orderflow/internal/domain/account"
	"github.com/daxchui/orderflow/internal/domain/ledger"
	"github.com/daxchui/orderflow/internal/ledger/service"
	"github.com/daxchui/orderflow/internal/platform/httpapi"
)

// LedgerAdmin is the slice of the banking service the HTTP surface uses
type LedgerAdmin interface {
	CreateAccount(ctx context.Context, ownerName string) (*account.Account, error)
	GetAccount(ctx context.Context, id uuid.UUID) (*account.Account, error)
	GetEntries(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*ledger.Entry, error)
	Reconcile(ctx context.Context, accountID uuid.UUID) (*service.ReconcileResult, error)
}

// AccountHandler handles HTTP requests for ledger account operations
type AccountHandler struct {
	service LedgerAdmin
	logger  *slog.Logger
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(logger *slog.Logger, svc LedgerAdmin) *AccountHandler {
	return &AccountHandler{
		service: svc,
		logger:  logger,
	}
}

// Create opens a new account with the fixed opening balance
func (h *AccountHandler) Create(c *gin.Context) {
	var req CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		httpapi.RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	acc, err := h.service.CreateAccount(c.Request.Context(), req.OwnerName)
	if err != nil {
		if errors.Is(err, account.ErrEmptyOwnerName) {
			httpapi.RespondBadRequest(c, "Owner name is required")
			return
		}
		h.logger.Error("Failed to create account", "error", err)
		httpapi.RespondInternalError(c)
		return
	}

	httpapi.RespondCreated(c, mapAccountToResponse(acc))
}

// GetByID retrieves an account by its ID, returning 404 if not found
func (h *AccountHandler) GetByID(c *gin.Context) {
	id, ok := parseAccountID(c, h.logger)
	if !ok {
		return
	}

	acc, err := h.service.GetAccount(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, account.ErrAccountNotFound{}) {
			httpapi.RespondNotFound(c, "Account not found")
			return
		}
		h.logger.Error("Failed to get account", "account_id", id.String(), "error", err)
		httpapi.RespondInternalError(c)
		return
	}

	httpapi.RespondOK(c, mapAccountToResponse(acc))
}

// GetEntries lists an account's ledger entries newest first
func (h *AccountHandler) GetEntries(c *gin.Context) {
	id, ok := parseAccountID(c, h.logger)
	if !ok {
		return
	}

	var params EntryListParams
	if err := c.ShouldBindQuery(&params); err != nil {
		httpapi.RespondBadRequest(c, "Invalid pagination parameters: "+err.Error())
		return
	}

	entries, err := h.service.GetEntries(c.Request.Context(), id, params.Limit, params.Offset)
	if err != nil {
		h.logger.Error("Failed to list entries", "account_id", id.String(), "error", err)
		httpapi.RespondInternalError(c)
		return
	}

	response := EntryListResponse{Entries: make([]EntryResponse, 0, len(entries))}
	for _, entry := range entries {
		response.Entries = append(response.Entries, mapEntryToResponse(entry))
	}

	httpapi.RespondOK(c, response)
}

// Reconcile checks an account's balance against its entry history
func (h *AccountHandler) Reconcile(c *gin.Context) {
	id, ok := parseAccountID(c, h.logger)
	if !ok {
		return
	}

	result, err := h.service.Reconcile(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, account.ErrAccountNotFound{}) {
			httpapi.RespondNotFound(c, "Account not found")
			return
		}
		h.logger.Error("Failed to reconcile account", "account_id", id.String(), "error", err)
		httpapi.RespondInternalError(c)
		return
	}

	httpapi.RespondOK(c, result)
}

func parseAccountID(c *gin.Context, logger *slog.Logger) (uuid.UUID, bool) {
	idParam := c.Param("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		logger.Error("Invalid account ID", "id", idParam, "error", err)
		httpapi.RespondBadRequest(c, "Invalid account ID")
		return uuid.Nil, false
	}
	return id, true
}

// mapAccountToResponse maps an account entity to an account response DTO
func mapAccountToResponse(acc *account.Account) AccountResponse {
	return AccountResponse{
		ID:        acc.ID.String(),
		OwnerName: acc.OwnerName,
		Balance:   acc.Balance,
		Currency:  acc.Currency,
		CreatedAt: acc.CreatedAt.Format(time.RFC3339),
		UpdatedAt: acc.UpdatedAt.Format(time.RFC3339),
	}
}

func mapEntryToResponse(entry *ledger.Entry) EntryResponse {
	return EntryResponse{
		ID:           entry.ID,
		TransferID:   entry.TransferID.String(),
		AccountID:    entry.AccountID.String(),
		Delta:        entry.Delta,
		BalanceAfter: entry.BalanceAfter,
		CreatedAt:    entry.CreatedAt.Format(time.RFC3339),
	}
}

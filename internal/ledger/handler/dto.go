package handler

// CreateAccountRequest represents a request to open a ledger account. Every
// account opens with the configured opening balance, so only the owner is
// taken from the caller.
type CreateAccountRequest struct {
	OwnerName string `json:"owner_name" binding:"required"`
}

// AccountResponse represents an account in API responses
type AccountResponse struct {
	ID        string `json:"id"`
	OwnerName string `json:"owner_name"`
	Balance   int64  `json:"balance"`
	Currency  string `json:"currency"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// EntryResponse represents one ledger entry in API responses
type EntryResponse struct {
	ID           int64  `json:"id"`
	TransferID   string `json:"transfer_id"`
	AccountID    string `json:"account_id"`
	Delta        int64  `json:"delta"`
	BalanceAfter int64  `json:"balance_after"`
	CreatedAt    string `json:"created_at"`
}

// EntryListResponse represents a list of ledger entries in API responses
type EntryListResponse struct {
	Entries []EntryResponse `json:"entries"`
}

// EntryListParams represents pagination parameters for the entry list endpoint
type EntryListParams struct {
	Limit  int `form:"limit,default=50" binding:"min=0,max=100"`
	Offset int `form:"offset,default=0" binding:"min=0"`
}

// FaultConfigRequest updates the fault injector
type FaultConfigRequest struct {
	Enabled     bool    `json:"enabled"`
	Probability float64 `json:"probability" binding:"min=0,lt=1"`
}

// FaultConfigResponse reports the injector's current settings
type FaultConfigResponse struct {
	Enabled     bool    `json:"enabled"`
	Probability float64 `json:"probability"`
}

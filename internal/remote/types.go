package remote

import (
	"encoding/json"
	"time"
)

// Envelope is the response wrapper used by every endpoint.
//
// Older endpoints report {"status": "success"}, newer ones
// {"success": true}; either may be absent.
type Envelope struct {
	Status  string          `json:"status,omitempty"`
	Success *bool           `json:"success,omitempty"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Meta    *Meta           `json:"meta,omitempty"`
}

// OK reports whether the body signals success.
func (e Envelope) OK() bool {
	if e.Success != nil && !*e.Success {
		return false
	}
	return e.Status == "" || e.Status == "success"
}

// Meta describes a page of a paginated list.
type Meta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// Product is the remote catalog entry. ID is server-issued.
type Product struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Price      int64   `json:"price"`
	CostPrice  int64   `json:"cost_price"`
	Stock      float64 `json:"stock"`
	MinStock   float64 `json:"min_stock"`
	Barcode    string  `json:"barcode,omitempty"`
	CategoryID string  `json:"category_id,omitempty"`
	Image      string  `json:"image,omitempty"`
	IsPLU      bool    `json:"is_plu"`
	Deleted    bool    `json:"deleted,omitempty"`
}

// Category is the remote category entry.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TransactionItem is one uploaded line.
type TransactionItem struct {
	ProductID           string  `json:"product_id,omitempty"`
	ProductNameSnapshot string  `json:"product_name_snapshot"`
	Quantity            float64 `json:"quantity"`
	Price               int64   `json:"price"`
	Subtotal            int64   `json:"subtotal"`
	CostPrice           int64   `json:"cost_price"`
	TotalProfit         int64   `json:"total_profit"`
}

// Transaction is the upload body of POST /transactions and the element of
// GET /transactions.
type Transaction struct {
	ID                string            `json:"id,omitempty"`
	TransactionNumber string            `json:"transaction_number"`
	Name              string            `json:"name,omitempty"`
	PaymentMethodID   int64             `json:"payment_method_id"`
	Total             int64             `json:"total"`
	CashReceived      int64             `json:"cash_received"`
	ChangeAmount      int64             `json:"change_amount"`
	Status            string            `json:"status"`
	CreatedAt         *time.Time        `json:"created_at,omitempty"`
	Items             []TransactionItem `json:"items"`
}

// CreateResult is the data of a successful POST /transactions.
// Updated is true when an existing transaction_number was updated in place.
type CreateResult struct {
	ID      string `json:"id"`
	Updated bool   `json:"updated"`
}

// StatusUpdate is the body of PATCH /transactions/:id/status.
type StatusUpdate struct {
	Status string `json:"status"`
}

// Payment is the body of PATCH /transactions/:id/pay.
type Payment struct {
	CashReceived int64 `json:"cash_received"`
	ChangeAmount int64 `json:"change_amount"`
}

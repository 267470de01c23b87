package proto

import "time"

// Account 帳戶資訊 (金額皆為兩位小數的字串)
type Account struct {
	AccountNumber string    `json:"account_number"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Balance       string    `json:"balance"`
	CreatedAt     time.Time `json:"created_at"`
}

// Transaction 交易紀錄
type Transaction struct {
	ID                        string    `json:"id"`
	Sequence                  uint64    `json:"sequence"`
	AccountNumber             string    `json:"account_number"`
	Type                      string    `json:"type"`
	Amount                    string    `json:"amount"`
	BalanceAfter              string    `json:"balance_after"`
	Description               string    `json:"description"`
	CounterpartyAccountNumber string    `json:"counterparty_account_number,omitempty"`
	CreatedAt                 time.Time `json:"created_at"`
}

type OpenAccountRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse OpenAccount / Login 的回應
type AuthResponse struct {
	Account      *Account `json:"account"`
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
}

type GetAccountRequest struct{}

type GetAccountResponse struct {
	Account *Account `json:"account"`
}

// BalanceRequest Deposit / Withdraw 的請求，帳號取自 token
type BalanceRequest struct {
	Amount         string `json:"amount"`
	Description    string `json:"description,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

type BalanceResponse struct {
	Balance     string       `json:"balance"`
	Transaction *Transaction `json:"transaction"`
	Replayed    bool         `json:"replayed"`
}

type TransferRequest struct {
	RecipientAccountNumber string `json:"recipient_account_number"`
	Amount                 string `json:"amount"`
	Description            string `json:"description,omitempty"`
	IdempotencyKey         string `json:"idempotency_key,omitempty"`
}

type TransferResponse struct {
	Balance       string       `json:"balance"`
	RecipientName string       `json:"recipient_name"`
	Amount        string       `json:"amount"`
	Transaction   *Transaction `json:"transaction"`
	Replayed      bool         `json:"replayed"`
}

type ListTransactionsRequest struct {
	Page  int32 `json:"page"`
	Limit int32 `json:"limit"`
}

type ListTransactionsResponse struct {
	Transactions []*Transaction `json:"transactions"`
	Total        int64          `json:"total"`
	Page         int32          `json:"page"`
	Limit        int32          `json:"limit"`
	TotalPages   int32          `json:"total_pages"`
}

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventTypeTransactionCommitted 交易紀錄已落地
const EventTypeTransactionCommitted = "transaction.committed"

// TransactionCommitted 交易 commit 後對外發佈的事件
type TransactionCommitted struct {
	EventType          string          `json:"event_type"`
	TransactionID      string          `json:"transaction_id"`
	AccountNumber      string          `json:"account_number"`
	Type               TransactionType `json:"type"`
	Amount             decimal.Decimal `json:"amount"`
	BalanceAfter       decimal.Decimal `json:"balance_after"`
	CounterpartyNumber string          `json:"counterparty_account_number,omitempty"`
	OccurredAt         time.Time       `json:"occurred_at"`
}

// NewTransactionCommitted 由已寫入的交易紀錄產生事件
func NewTransactionCommitted(tran *Transaction) TransactionCommitted {
	return TransactionCommitted{
		EventType:          EventTypeTransactionCommitted,
		TransactionID:      tran.ID.String(),
		AccountNumber:      tran.AccountNumber,
		Type:               tran.Type,
		Amount:             tran.Amount,
		BalanceAfter:       tran.BalanceAfter,
		CounterpartyNumber: tran.CounterpartyNumber,
		OccurredAt:         tran.CreatedAt,
	}
}

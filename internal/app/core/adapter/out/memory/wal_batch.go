package memory

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// walBatch 一個 unit of work 在 WAL 中的一行
type walBatch struct {
	ID          uuid.UUID    `json:"id"`
	CommittedAt time.Time    `json:"committed_at"`
	Accounts    []walAccount `json:"accounts,omitempty"`
	Balances    []walBalance `json:"balances,omitempty"`
	Records     []walRecord  `json:"records,omitempty"`
}

type walAccount struct {
	Number       string `json:"number"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	PasswordHash string `json:"password_hash"`
}

type walBalance struct {
	Number  string          `json:"number"`
	Balance decimal.Decimal `json:"balance"`
}

type walRecord struct {
	ID                 uuid.UUID              `json:"id"`
	Sequence           uint64                 `json:"seq"`
	AccountNumber      string                 `json:"account"`
	Type               domain.TransactionType `json:"type"`
	Amount             decimal.Decimal        `json:"amount"`
	BalanceAfter       decimal.Decimal        `json:"balance_after"`
	Description        string                 `json:"description"`
	CounterpartyNumber string                 `json:"counterparty,omitempty"`
	IdempotencyKey     string                 `json:"idempotency_key,omitempty"`
}

func toWALRecord(tran *domain.Transaction, seq uint64) walRecord {
	return walRecord{
		ID:                 tran.ID,
		Sequence:           seq,
		AccountNumber:      tran.AccountNumber,
		Type:               tran.Type,
		Amount:             tran.Amount,
		BalanceAfter:       tran.BalanceAfter,
		Description:        tran.Description,
		CounterpartyNumber: tran.CounterpartyNumber,
		IdempotencyKey:     tran.IdempotencyKey,
	}
}

func (r walRecord) toDomain(createdAt time.Time) *domain.Transaction {
	return &domain.Transaction{
		ID:                 r.ID,
		Sequence:           r.Sequence,
		AccountNumber:      r.AccountNumber,
		Type:               r.Type,
		Amount:             r.Amount,
		BalanceAfter:       r.BalanceAfter,
		Description:        r.Description,
		CounterpartyNumber: r.CounterpartyNumber,
		IdempotencyKey:     r.IdempotencyKey,
		CreatedAt:          createdAt,
	}
}

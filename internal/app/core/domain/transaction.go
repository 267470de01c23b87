package domain

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType 交易類型
// 為了節省空間，使用 uint8
type TransactionType uint8

const (
	// 入帳 (存款、轉入)
	TransactionTypeCredit TransactionType = 1
	// 扣款 (提款)
	TransactionTypeDebit TransactionType = 2
	// 轉出
	TransactionTypeTransfer TransactionType = 3
)

func (t TransactionType) String() string {
	switch t {
	case TransactionTypeCredit:
		return "credit"
	case TransactionTypeDebit:
		return "debit"
	case TransactionTypeTransfer:
		return "transfer"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// ParseTransactionType 由字串解析交易類型
func ParseTransactionType(s string) (TransactionType, error) {
	switch s {
	case "credit":
		return TransactionTypeCredit, nil
	case "debit":
		return TransactionTypeDebit, nil
	case "transfer":
		return TransactionTypeTransfer, nil
	default:
		return 0, fmt.Errorf("unknown transaction type %q", s)
	}
}

func (t TransactionType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TransactionType) UnmarshalText(text []byte) error {
	parsed, err := ParseTransactionType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Transaction 交易紀錄，建立後不可修改
type Transaction struct {
	// ID: 系統配發的唯一識別碼
	ID uuid.UUID
	// Sequence: 儲存層配發的寫入順序號，與 CreatedAt 一起決定排序
	Sequence uint64
	// AccountNumber: 紀錄所屬帳戶
	AccountNumber string
	Type          TransactionType
	Amount        decimal.Decimal
	// BalanceAfter: 該筆異動完成後所屬帳戶的餘額
	BalanceAfter decimal.Decimal
	Description  string
	// CounterpartyNumber: 只有轉帳類紀錄才會有值
	CounterpartyNumber string
	// IdempotencyKey: 呼叫端提供的去重鍵 (可為空)
	IdempotencyKey string
	// CreatedAt: 由儲存層在 commit 時寫入
	CreatedAt time.Time
}

// NewTransaction 建立一筆尚未寫入的交易紀錄
func NewTransaction(account string, typ TransactionType, amount, balanceAfter decimal.Decimal, description, counterparty, key string) *Transaction {
	return &Transaction{
		ID:                 uuid.New(),
		AccountNumber:      account,
		Type:               typ,
		Amount:             amount,
		BalanceAfter:       balanceAfter,
		Description:        description,
		CounterpartyNumber: counterparty,
		IdempotencyKey:     key,
	}
}

// LockOrder 回傳需要鎖定的帳號 (去重、遞增排序) 以避免死鎖
func LockOrder(numbers ...string) []string {
	ids := make([]string, 0, len(numbers))
	for _, n := range numbers {
		if !slices.Contains(ids, n) {
			ids = append(ids, n)
		}
	}
	slices.Sort(ids)
	return ids
}

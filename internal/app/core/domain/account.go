package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account 帳戶
//
// Number 為系統配發的 12 位帳號，建立後不可變更；Balance 只能經由
// Balance Mutator / Transfer Engine 修改。
type Account struct {
	Number       string
	Name         string
	Email        string
	PasswordHash string
	Balance      decimal.Decimal
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewAccount 建立一個餘額為 0 的新帳戶
func NewAccount(number, name, email, passwordHash string) *Account {
	return &Account{
		Number:       number,
		Name:         name,
		Email:        NormalizeEmail(email),
		PasswordHash: passwordHash,
		Balance:      decimal.Zero,
	}
}

// ApplyDelta 套用餘額增減
//
// 參數:
//
//	delta: 正數為入帳，負數為扣款
//
// 回傳:
//
//	error: 扣款超過餘額回傳 *InsufficientFundsError；
//	       入帳後超過 MaxAmount 回傳 ErrInvalidAmount；
//	       餘額原本即為負數或結果異常回傳 ErrInvariantViolation
func (a *Account) ApplyDelta(delta decimal.Decimal) error {
	if a.Balance.IsNegative() {
		return ErrInvariantViolation
	}
	next := a.Balance.Add(delta)
	if next.IsNegative() {
		if delta.IsNegative() {
			return &InsufficientFundsError{Available: a.Balance}
		}
		return ErrInvariantViolation
	}
	if next.GreaterThan(MaxAmount) {
		return ErrInvalidAmount
	}
	a.Balance = next
	return nil
}

// Clone 回傳值拷貝，避免呼叫端改寫儲存層內部狀態
func (a *Account) Clone() *Account {
	cp := *a
	return &cp
}

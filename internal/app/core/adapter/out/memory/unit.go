package memory

import (
	"context"
	"fmt"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// unit 是 MutexLedger 的 unit of work，所有寫入先暫存，commit 時才一次套用
type unit struct {
	ledger   *MutexLedger
	held     []string
	staged   map[string]*domain.Account
	dirty    map[string]bool
	created  []*domain.Account
	appended []*domain.Transaction
}

func newUnit(ledger *MutexLedger) *unit {
	return &unit{
		ledger: ledger,
		staged: make(map[string]*domain.Account),
		dirty:  make(map[string]bool),
	}
}

// LockAccounts 依帳號遞增順序取得帳戶鎖並載入已 commit 的帳戶
//
// 不存在的帳號不取鎖 (帳戶不會被刪除，之後才建立的帳戶視為在本次操作之後發生)。
// 同一個 unit 內後續的鎖定只能往更大的帳號前進，否則可能與其他 unit 互鎖。
func (u *unit) LockAccounts(ctx context.Context, numbers ...string) (map[string]*domain.Account, error) {
	out := make(map[string]*domain.Account, len(numbers))
	for _, number := range domain.LockOrder(numbers...) {
		if account, ok := u.staged[number]; ok {
			out[number] = account
			continue
		}
		if !u.ledger.exists(number) {
			continue
		}
		if n := len(u.held); n > 0 && number < u.held[n-1] {
			return nil, fmt.Errorf("lock %s after %s: %w", number, u.held[n-1], domain.ErrInvariantViolation)
		}
		if err := u.ledger.locks.acquire(ctx, number); err != nil {
			return nil, err
		}
		u.held = append(u.held, number)

		account, err := u.ledger.GetAccount(ctx, number)
		if err != nil {
			return nil, err
		}
		u.staged[number] = account
		out[number] = account
	}
	return out, nil
}

// SaveBalance 暫存已鎖定帳戶的新餘額
func (u *unit) SaveBalance(ctx context.Context, account *domain.Account) error {
	if _, ok := u.staged[account.Number]; !ok {
		return fmt.Errorf("save balance of unlocked account %s: %w", account.Number, domain.ErrInvariantViolation)
	}
	if account.Balance.IsNegative() {
		return fmt.Errorf("negative balance for %s: %w", account.Number, domain.ErrInvariantViolation)
	}
	u.staged[account.Number] = account.Clone()
	u.dirty[account.Number] = true
	return nil
}

// CreateAccount 暫存新帳戶；唯一性在 commit 時於寫鎖內再確認一次
func (u *unit) CreateAccount(ctx context.Context, account *domain.Account) error {
	if u.ledger.exists(account.Number) {
		return domain.ErrAccountAlreadyExists
	}
	if _, err := u.ledger.GetAccountByEmail(ctx, account.Email); err == nil {
		return domain.ErrEmailTaken
	}
	u.created = append(u.created, account)
	return nil
}

// AppendTransactions 暫存交易紀錄；紀錄所屬帳戶必須已在本 unit 內鎖定或建立
func (u *unit) AppendTransactions(ctx context.Context, trans ...*domain.Transaction) error {
	for _, tran := range trans {
		if !u.owns(tran.AccountNumber) {
			return fmt.Errorf("append record for unlocked account %s: %w", tran.AccountNumber, domain.ErrInvariantViolation)
		}
		if tran.IdempotencyKey != "" {
			prior, err := u.FindByIdempotencyKey(ctx, tran.AccountNumber, tran.IdempotencyKey)
			if err != nil {
				return err
			}
			if prior != nil {
				return domain.ErrIdempotencyKeyReused
			}
		}
	}
	u.appended = append(u.appended, trans...)
	return nil
}

// FindByIdempotencyKey 先查本 unit 的暫存，再查已 commit 的紀錄
func (u *unit) FindByIdempotencyKey(ctx context.Context, accountNumber, key string) (*domain.Transaction, error) {
	for _, tran := range u.appended {
		if tran.AccountNumber == accountNumber && tran.IdempotencyKey == key {
			return tran, nil
		}
	}
	u.ledger.mu.RLock()
	defer u.ledger.mu.RUnlock()
	if tran, ok := u.ledger.keys[idempotencyIndex(accountNumber, key)]; ok {
		cp := *tran
		return &cp, nil
	}
	return nil, nil
}

func (u *unit) owns(number string) bool {
	if _, ok := u.staged[number]; ok {
		return true
	}
	for _, account := range u.created {
		if account.Number == number {
			return true
		}
	}
	return false
}

// release 釋放所有帳戶鎖
func (u *unit) release() {
	for _, number := range u.held {
		u.ledger.locks.release(number)
	}
	u.held = nil
}

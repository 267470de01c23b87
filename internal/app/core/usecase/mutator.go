package usecase

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// lockAccount 在 unit of work 內鎖定單一帳戶
//
// 參數:
//
//	notFound: 帳戶不存在時包裝的 sentinel (ErrAccountNotFound / ErrSenderNotFound)
func lockAccount(ctx context.Context, uow UnitOfWork, number string, notFound error) (*domain.Account, error) {
	accounts, err := uow.LockAccounts(ctx, number)
	if err != nil {
		return nil, err
	}
	account, ok := accounts[number]
	if !ok {
		return nil, &domain.NotFoundError{Err: notFound, Number: number}
	}
	return account, nil
}

// applyDelta 對已鎖定的帳戶套用增減並寫回 (Balance Mutator)
//
// 讀取-檢查-寫入 都發生在帳戶鎖定期間，兩個並發呼叫不可能同時通過餘額檢查。
//
// 回傳:
//
//	decimal.Decimal: 新餘額
//	error: *InsufficientFundsError / ErrInvalidAmount (超過餘額上限) / ErrInvariantViolation / 儲存層錯誤
func applyDelta(ctx context.Context, uow UnitOfWork, account *domain.Account, delta decimal.Decimal) (decimal.Decimal, error) {
	if err := account.ApplyDelta(delta); err != nil {
		return decimal.Zero, err
	}
	if err := uow.SaveBalance(ctx, account); err != nil {
		return decimal.Zero, err
	}
	return account.Balance, nil
}

// findReplay 查詢 idempotency key 對應的既有紀錄，並確認請求內容一致
func findReplay(ctx context.Context, uow UnitOfWork, number, key string, typ domain.TransactionType, amount decimal.Decimal, counterparty string) (*domain.Transaction, error) {
	if key == "" {
		return nil, nil
	}
	prior, err := uow.FindByIdempotencyKey(ctx, number, key)
	if err != nil || prior == nil {
		return nil, err
	}
	if prior.Type != typ || !prior.Amount.Equal(amount) || prior.CounterpartyNumber != counterparty {
		return nil, domain.ErrIdempotencyKeyReused
	}
	return prior, nil
}

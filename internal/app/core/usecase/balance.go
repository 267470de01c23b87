package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// BalanceCmd 存款 / 提款請求
type BalanceCmd struct {
	AccountNumber  string
	Amount         decimal.Decimal
	Description    string
	IdempotencyKey string
}

// BalanceResult 存款 / 提款結果
type BalanceResult struct {
	Balance     decimal.Decimal
	Transaction *domain.Transaction
	// Replayed: 以相同 idempotency key 重送，回傳的是第一次的結果
	Replayed bool
}

// Deposit 存款：帳戶 +amount，並寫入一筆 credit 紀錄
func (c *CoreUseCase) Deposit(ctx context.Context, cmd BalanceCmd) (res *BalanceResult, err error) {
	defer func(start time.Time) { c.finish(ctx, "deposit", cmd.AccountNumber, start, err) }(time.Now())
	return c.mutate(ctx, cmd, domain.TransactionTypeCredit, cmd.Amount, "Deposit")
}

// Withdraw 提款：帳戶 -amount (餘額檢查在 Balance Mutator 內)，並寫入一筆 debit 紀錄
func (c *CoreUseCase) Withdraw(ctx context.Context, cmd BalanceCmd) (res *BalanceResult, err error) {
	defer func(start time.Time) { c.finish(ctx, "withdraw", cmd.AccountNumber, start, err) }(time.Now())
	return c.mutate(ctx, cmd, domain.TransactionTypeDebit, cmd.Amount.Neg(), "Withdrawal")
}

func (c *CoreUseCase) mutate(ctx context.Context, cmd BalanceCmd, typ domain.TransactionType, delta decimal.Decimal, defaultDesc string) (*BalanceResult, error) {
	if err := domain.ValidateAmount(cmd.Amount); err != nil {
		return nil, err
	}
	description := strings.TrimSpace(cmd.Description)
	if description == "" {
		description = defaultDesc
	}

	var res *BalanceResult
	err := c.runUnit(ctx, func(ctx context.Context, uow UnitOfWork) error {
		res = nil
		account, err := lockAccount(ctx, uow, cmd.AccountNumber, domain.ErrAccountNotFound)
		if err != nil {
			return err
		}

		prior, err := findReplay(ctx, uow, cmd.AccountNumber, cmd.IdempotencyKey, typ, cmd.Amount, "")
		if err != nil {
			return err
		}
		if prior != nil {
			res = &BalanceResult{Balance: prior.BalanceAfter, Transaction: prior, Replayed: true}
			return nil
		}

		balance, err := applyDelta(ctx, uow, account, delta)
		if err != nil {
			return err
		}
		tran := domain.NewTransaction(cmd.AccountNumber, typ, cmd.Amount, balance, description, "", cmd.IdempotencyKey)
		if err := uow.AppendTransactions(ctx, tran); err != nil {
			return err
		}
		res = &BalanceResult{Balance: balance, Transaction: tran}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !res.Replayed {
		c.publish(ctx, res.Transaction)
	}
	return res, nil
}

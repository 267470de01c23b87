package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// TransferCmd 轉帳請求
type TransferCmd struct {
	// SenderNumber: 由身分驗證層提供，核心完全信任
	SenderNumber    string
	RecipientNumber string
	Amount          decimal.Decimal
	Description     string
	IdempotencyKey  string
}

// TransferResult 轉帳結果；不包含收款方餘額
type TransferResult struct {
	SenderBalance decimal.Decimal
	RecipientName string
	Amount        decimal.Decimal
	// Transaction: 轉出方的紀錄
	Transaction *domain.Transaction
	Replayed    bool
}

// Transfer 轉帳 (Transfer Engine)
//
// 在同一個 unit of work 內：
//  1. 依帳號順序鎖定轉出、轉入帳戶
//  2. 檢查轉出帳戶存在、非自轉、轉入帳戶存在、餘額足夠
//  3. 扣款、入帳
//  4. 寫入兩筆紀錄 (轉出方 transfer、轉入方 credit)
//
// 任一步驟或 commit 失敗，整個 unit 回滾，不會留下單邊扣款或孤兒紀錄。
func (c *CoreUseCase) Transfer(ctx context.Context, cmd TransferCmd) (res *TransferResult, err error) {
	defer func(start time.Time) { c.finish(ctx, "transfer", cmd.SenderNumber, start, err) }(time.Now())

	if err := domain.ValidateAmount(cmd.Amount); err != nil {
		return nil, err
	}
	if err := domain.ValidateAccountNumber(cmd.RecipientNumber); err != nil {
		return nil, err
	}
	description := strings.TrimSpace(cmd.Description)
	if description == "" {
		description = "Transfer to " + cmd.RecipientNumber
	}

	var (
		out      *TransferResult
		sentTran *domain.Transaction
		recvTran *domain.Transaction
	)
	err = c.runUnit(ctx, func(ctx context.Context, uow UnitOfWork) error {
		out, sentTran, recvTran = nil, nil, nil

		accounts, err := uow.LockAccounts(ctx, cmd.SenderNumber, cmd.RecipientNumber)
		if err != nil {
			return err
		}
		sender, ok := accounts[cmd.SenderNumber]
		if !ok {
			return &domain.NotFoundError{Err: domain.ErrSenderNotFound, Number: cmd.SenderNumber}
		}
		if cmd.SenderNumber == cmd.RecipientNumber {
			return domain.ErrSelfTransfer
		}
		recipient, ok := accounts[cmd.RecipientNumber]
		if !ok {
			return &domain.NotFoundError{Err: domain.ErrRecipientNotFound, Number: cmd.RecipientNumber}
		}

		prior, err := findReplay(ctx, uow, sender.Number, cmd.IdempotencyKey, domain.TransactionTypeTransfer, cmd.Amount, recipient.Number)
		if err != nil {
			return err
		}
		if prior != nil {
			out = &TransferResult{
				SenderBalance: prior.BalanceAfter,
				RecipientName: recipient.Name,
				Amount:        prior.Amount,
				Transaction:   prior,
				Replayed:      true,
			}
			return nil
		}

		senderBalance, err := applyDelta(ctx, uow, sender, cmd.Amount.Neg())
		if err != nil {
			return err
		}
		recipientBalance, err := applyDelta(ctx, uow, recipient, cmd.Amount)
		if err != nil {
			return err
		}

		sentTran = domain.NewTransaction(sender.Number, domain.TransactionTypeTransfer, cmd.Amount, senderBalance,
			description, recipient.Number, cmd.IdempotencyKey)
		recvTran = domain.NewTransaction(recipient.Number, domain.TransactionTypeCredit, cmd.Amount, recipientBalance,
			"Transfer from "+sender.Number, sender.Number, "")
		if err := uow.AppendTransactions(ctx, sentTran, recvTran); err != nil {
			return err
		}

		out = &TransferResult{
			SenderBalance: senderBalance,
			RecipientName: recipient.Name,
			Amount:        cmd.Amount,
			Transaction:   sentTran,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !out.Replayed {
		c.publish(ctx, sentTran, recvTran)
	}
	return out, nil
}

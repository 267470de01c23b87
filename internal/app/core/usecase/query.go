package usecase

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// TransactionPage 交易紀錄分頁
type TransactionPage struct {
	Transactions []*domain.Transaction
	Total        int64
	Page         int
	PageSize     int
	TotalPages   int
}

// ListTransactions 依建立時間新到舊列出帳戶的交易紀錄 (Query Layer)
//
// 只讀、不取鎖，可能看到稍舊的快照。
func (c *CoreUseCase) ListTransactions(ctx context.Context, number string, page, pageSize int) (res *TransactionPage, err error) {
	defer func(start time.Time) { c.finish(ctx, "list_transactions", number, start, err) }(time.Now())

	if page < 1 || pageSize < 1 {
		return nil, domain.ErrInvalidPage
	}
	if _, err := c.Account(ctx, number); err != nil {
		return nil, err
	}

	// offset 溢位時必定超過最後一頁，只取總數
	limit, offset := pageSize, 0
	if page-1 > math.MaxInt/pageSize {
		limit = 0
	} else {
		offset = (page - 1) * pageSize
	}

	trans, total, err := c.ledger.ListTransactions(ctx, number, limit, offset)
	if err != nil {
		return nil, err
	}
	if trans == nil {
		trans = []*domain.Transaction{}
	}
	totalPages := 0
	if total > 0 {
		totalPages = int((total-1)/int64(pageSize)) + 1
	}
	return &TransactionPage{
		Transactions: trans,
		Total:        total,
		Page:         page,
		PageSize:     pageSize,
		TotalPages:   totalPages,
	}, nil
}

// Account 取得帳戶快照
func (c *CoreUseCase) Account(ctx context.Context, number string) (*domain.Account, error) {
	account, err := c.ledger.GetAccount(ctx, number)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return nil, &domain.NotFoundError{Err: domain.ErrAccountNotFound, Number: number}
	}
	return account, err
}

// AccountByEmail 以 Email 取得帳戶快照
func (c *CoreUseCase) AccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return c.ledger.GetAccountByEmail(ctx, domain.NormalizeEmail(email))
}

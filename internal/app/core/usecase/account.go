package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// 配號碰撞時的最大重試次數
const maxAllocateAttempts = 5

// OpenAccountCmd 開戶請求，密碼已由身分驗證層雜湊
type OpenAccountCmd struct {
	Name         string
	Email        string
	PasswordHash string
}

// OpenAccount 開戶：配發 12 位帳號並以餘額 0 建立帳戶
func (c *CoreUseCase) OpenAccount(ctx context.Context, cmd OpenAccountCmd) (acct *domain.Account, err error) {
	defer func(start time.Time) { c.finish(ctx, "open_account", "", start, err) }(time.Now())

	name := strings.TrimSpace(cmd.Name)
	email := domain.NormalizeEmail(cmd.Email)
	if name == "" || email == "" || cmd.PasswordHash == "" {
		return nil, fmt.Errorf("open account: name, email and password are required")
	}

	for attempt := 0; attempt < maxAllocateAttempts; attempt++ {
		number, err := c.allocator.Next(ctx)
		if err != nil {
			return nil, fmt.Errorf("allocate account number: %w", err)
		}
		if err := domain.ValidateAccountNumber(number); err != nil {
			return nil, fmt.Errorf("allocator returned %q: %w", number, domain.ErrInvariantViolation)
		}

		account := domain.NewAccount(number, name, email, cmd.PasswordHash)
		err = c.runUnit(ctx, func(ctx context.Context, uow UnitOfWork) error {
			return uow.CreateAccount(ctx, account)
		})
		if errors.Is(err, domain.ErrAccountAlreadyExists) {
			c.logger.WarnContext(ctx, "account number collision, retrying", "attempt", attempt+1)
			continue
		}
		if err != nil {
			return nil, err
		}
		return account, nil
	}
	return nil, fmt.Errorf("allocate account number after %d attempts: %w", maxAllocateAttempts, domain.ErrInvariantViolation)
}

package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidAmount 金額必須為正數、最多兩位小數且不超過 MaxAmount
	ErrInvalidAmount = errors.New("amount must be positive with at most two decimal places and within the ledger limit")

	// ErrInvalidAccountNumber 帳號必須為 12 位數字
	ErrInvalidAccountNumber = errors.New("account number must be 12 digits")

	// ErrInvalidPage 分頁參數錯誤
	ErrInvalidPage = errors.New("page and page size must be positive")

	// ErrAccountNotFound 找不到帳戶
	ErrAccountNotFound = errors.New("account not found")

	// ErrSenderNotFound 找不到轉出帳戶
	ErrSenderNotFound = errors.New("sender account not found")

	// ErrRecipientNotFound 找不到轉入帳戶
	ErrRecipientNotFound = errors.New("recipient account not found")

	// ErrSelfTransfer 不可轉帳給自己
	ErrSelfTransfer = errors.New("cannot transfer to your own account")

	// ErrInsufficientFunds 餘額不足
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrAccountAlreadyExists 帳號重複 (配號碰撞)
	ErrAccountAlreadyExists = errors.New("account already exists")

	// ErrEmailTaken Email 已被註冊
	ErrEmailTaken = errors.New("email is already registered")

	// ErrIdempotencyKeyReused 同一個 idempotency key 被用在不同的請求內容
	ErrIdempotencyKeyReused = errors.New("idempotency key reused with different request")

	// ErrConflict 並發衝突 (deadlock / serialization failure)，整個 unit of work 已回滾，可重試
	ErrConflict = errors.New("concurrent update conflict")

	// ErrUnavailable 儲存層暫時無法使用 (連線中斷、逾時、WAL 寫入失敗)
	ErrUnavailable = errors.New("storage unavailable")

	// ErrInvariantViolation 違反帳本不變量，屬於程式錯誤，必須上報
	ErrInvariantViolation = errors.New("ledger invariant violation")
)

// NotFoundError 帶出找不到的帳號，方便呼叫端自行更正
type NotFoundError struct {
	Err    error
	Number string
}

func (e *NotFoundError) Error() string {
	if e.Number == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Number)
}

func (e *NotFoundError) Unwrap() error {
	return e.Err
}

// InsufficientFundsError 帶出當下可用餘額
type InsufficientFundsError struct {
	Available decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: available balance: %s", e.Available.StringFixed(2))
}

func (e *InsufficientFundsError) Unwrap() error {
	return ErrInsufficientFunds
}

// IsTransient 判斷錯誤是否為暫時性錯誤 (整個操作可重新發起)
func IsTransient(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrUnavailable)
}

// IsBusiness 判斷錯誤是否為業務規則拒絕 (重試結果相同，直到狀態改變)
func IsBusiness(err error) bool {
	for _, target := range []error{
		ErrInvalidAmount,
		ErrInvalidAccountNumber,
		ErrInvalidPage,
		ErrAccountNotFound,
		ErrSenderNotFound,
		ErrRecipientNotFound,
		ErrSelfTransfer,
		ErrInsufficientFunds,
		ErrEmailTaken,
		ErrIdempotencyKeyReused,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

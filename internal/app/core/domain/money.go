package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// 金額以 decimal 儲存，最小單位 0.01
const (
	CurrencyScale int32 = 2

	// AccountNumberLength 帳號長度
	AccountNumberLength = 12
)

// MinAmount 最小交易金額
var MinAmount = decimal.New(1, -CurrencyScale)

// MaxAmount 單筆金額與餘額上限，對應資料表 decimal(20,2) 欄位
var MaxAmount = decimal.New(1, 18).Sub(MinAmount)

// ValidateAmount 檢查金額為正、不超過上限且不超過兩位小數
func ValidateAmount(amount decimal.Decimal) error {
	if amount.LessThan(MinAmount) || amount.GreaterThan(MaxAmount) {
		return ErrInvalidAmount
	}
	if !amount.Equal(amount.Truncate(CurrencyScale)) {
		return ErrInvalidAmount
	}
	return nil
}

// ValidateAccountNumber 檢查帳號為 12 位數字
func ValidateAccountNumber(number string) error {
	if len(number) != AccountNumberLength {
		return ErrInvalidAccountNumber
	}
	for _, r := range number {
		if r < '0' || r > '9' {
			return ErrInvalidAccountNumber
		}
	}
	return nil
}

// NormalizeEmail Email 一律以小寫、去空白儲存
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

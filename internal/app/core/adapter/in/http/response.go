package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/identity"
)

// envelope 所有 API 回應的共同格式
type envelope struct {
	Success bool                  `json:"success"`
	Message string                `json:"message,omitempty"`
	Data    any                   `json:"data,omitempty"`
	Errors  []identity.FieldError `json:"errors,omitempty"`
}

func ok(c *gin.Context, status int, message string, data any) {
	c.JSON(status, envelope{Success: true, Message: message, Data: data})
}

func fail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, envelope{Success: false, Message: message})
}

func failValidation(c *gin.Context, fields ...identity.FieldError) {
	c.AbortWithStatusJSON(http.StatusUnprocessableEntity, envelope{
		Success: false,
		Message: "Validation failed",
		Errors:  fields,
	})
}

// writeError 將 domain / identity 錯誤轉成 HTTP 狀態碼與訊息
func writeError(c *gin.Context, log *slog.Logger, err error) {
	var verr *identity.ValidationError
	if errors.As(err, &verr) {
		failValidation(c, verr.Fields...)
		return
	}

	var funds *domain.InsufficientFundsError
	if errors.As(err, &funds) {
		fail(c, http.StatusBadRequest, fmt.Sprintf("Insufficient funds. Available balance: $%s", funds.Available.StringFixed(domain.CurrencyScale)))
		return
	}

	var notFound *domain.NotFoundError
	if errors.As(err, &notFound) && errors.Is(err, domain.ErrRecipientNotFound) {
		fail(c, http.StatusNotFound, "No account found with number "+notFound.Number)
		return
	}

	switch {
	case errors.Is(err, domain.ErrInvalidAmount):
		failValidation(c, identity.FieldError{Field: "amount", Message: "Amount must be positive with at most two decimal places and within the ledger limit"})
	case errors.Is(err, domain.ErrInvalidAccountNumber):
		failValidation(c, identity.FieldError{Field: "recipientAccountNumber", Message: "Account number must be 12 digits"})
	case errors.Is(err, domain.ErrInvalidPage):
		fail(c, http.StatusBadRequest, "Page and limit must be positive")
	case errors.Is(err, domain.ErrSelfTransfer):
		fail(c, http.StatusBadRequest, "Cannot transfer to your own account")
	case errors.Is(err, domain.ErrSenderNotFound):
		fail(c, http.StatusNotFound, "Sender account not found")
	case errors.Is(err, domain.ErrRecipientNotFound):
		fail(c, http.StatusNotFound, "Recipient account not found")
	case errors.Is(err, domain.ErrAccountNotFound):
		fail(c, http.StatusNotFound, "User not found")
	case errors.Is(err, domain.ErrEmailTaken):
		fail(c, http.StatusConflict, "Email is already registered")
	case errors.Is(err, domain.ErrIdempotencyKeyReused):
		fail(c, http.StatusConflict, "Idempotency key was already used for a different request")
	case errors.Is(err, identity.ErrInvalidCredentials):
		fail(c, http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrUnavailable):
		c.Header("Retry-After", "1")
		fail(c, http.StatusServiceUnavailable, "Service temporarily unavailable, please retry")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		fail(c, http.StatusServiceUnavailable, "Request timed out")
	default:
		log.ErrorContext(c.Request.Context(), "unhandled error", "path", c.FullPath(), "error", err)
		fail(c, http.StatusInternalServerError, "Internal Server Error")
	}
}

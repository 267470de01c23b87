package grpc

import (
	"context"
	"errors"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/protoadapt"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/identity"
)

// ErrorDomain errdetails.ErrorInfo 的 Domain
const ErrorDomain = "ledger.v1"

// Reason 字串，client 以此判斷錯誤種類
const (
	ReasonInvalidArgument    = "INVALID_ARGUMENT"
	ReasonInsufficientFunds  = "INSUFFICIENT_FUNDS"
	ReasonAccountNotFound    = "ACCOUNT_NOT_FOUND"
	ReasonSenderNotFound     = "SENDER_NOT_FOUND"
	ReasonRecipientNotFound  = "RECIPIENT_NOT_FOUND"
	ReasonSelfTransfer       = "SELF_TRANSFER"
	ReasonEmailTaken         = "EMAIL_TAKEN"
	ReasonIdempotencyReused  = "IDEMPOTENCY_KEY_REUSED"
	ReasonInvalidCredentials = "INVALID_CREDENTIALS"
	ReasonTokenExpired       = "TOKEN_EXPIRED"
	ReasonTokenInvalid       = "TOKEN_INVALID"
	ReasonConflict           = "CONFLICT"
	ReasonUnavailable        = "UNAVAILABLE"
)

// toStatus 將 domain / identity 錯誤轉成帶 ErrorInfo 的 gRPC status
// 未知錯誤一律回 Internal，不把內部訊息外洩
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	var verr *identity.ValidationError
	if errors.As(err, &verr) {
		br := &errdetails.BadRequest{}
		for _, f := range verr.Fields {
			br.FieldViolations = append(br.FieldViolations, &errdetails.BadRequest_FieldViolation{
				Field:       f.Field,
				Description: f.Message,
			})
		}
		return withDetails(codes.InvalidArgument, "validation failed", br)
	}

	var funds *domain.InsufficientFundsError
	if errors.As(err, &funds) {
		return withInfo(codes.FailedPrecondition, err.Error(), ReasonInsufficientFunds,
			map[string]string{"available_balance": funds.Available.StringFixed(domain.CurrencyScale)})
	}

	var notFound *domain.NotFoundError
	if errors.As(err, &notFound) {
		return withInfo(codes.NotFound, err.Error(), notFoundReason(err),
			map[string]string{"account_number": notFound.Number})
	}

	switch {
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidAccountNumber),
		errors.Is(err, domain.ErrInvalidPage):
		return withInfo(codes.InvalidArgument, err.Error(), ReasonInvalidArgument, nil)
	case errors.Is(err, domain.ErrSelfTransfer):
		return withInfo(codes.InvalidArgument, err.Error(), ReasonSelfTransfer, nil)
	case errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrSenderNotFound),
		errors.Is(err, domain.ErrRecipientNotFound):
		return withInfo(codes.NotFound, err.Error(), notFoundReason(err), nil)
	case errors.Is(err, domain.ErrEmailTaken):
		return withInfo(codes.AlreadyExists, err.Error(), ReasonEmailTaken, nil)
	case errors.Is(err, domain.ErrIdempotencyKeyReused):
		return withInfo(codes.AlreadyExists, err.Error(), ReasonIdempotencyReused, nil)
	case errors.Is(err, identity.ErrInvalidCredentials):
		return withInfo(codes.Unauthenticated, err.Error(), ReasonInvalidCredentials, nil)
	case errors.Is(err, identity.ErrTokenExpired):
		return withInfo(codes.Unauthenticated, "access token expired", ReasonTokenExpired, nil)
	case errors.Is(err, identity.ErrTokenInvalid):
		return withInfo(codes.Unauthenticated, "invalid access token", ReasonTokenInvalid, nil)
	case errors.Is(err, domain.ErrConflict):
		return withInfo(codes.Aborted, err.Error(), ReasonConflict, nil)
	case errors.Is(err, domain.ErrUnavailable):
		return withInfo(codes.Unavailable, err.Error(), ReasonUnavailable, nil)
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

// notFoundReason 區分轉出方、轉入方與一般帳戶不存在
func notFoundReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrSenderNotFound):
		return ReasonSenderNotFound
	case errors.Is(err, domain.ErrRecipientNotFound):
		return ReasonRecipientNotFound
	default:
		return ReasonAccountNotFound
	}
}

func withInfo(code codes.Code, msg, reason string, metadata map[string]string) error {
	return withDetails(code, msg, &errdetails.ErrorInfo{
		Reason:   reason,
		Domain:   ErrorDomain,
		Metadata: metadata,
	})
}

func withDetails(code codes.Code, msg string, detail protoadapt.MessageV1) error {
	st, err := status.New(code, msg).WithDetails(detail)
	if err != nil {
		return status.Error(code, msg)
	}
	return st.Err()
}

// ErrorInfoFrom 取出 status 內的 ErrorInfo (client 端使用)
func ErrorInfoFrom(err error) *errdetails.ErrorInfo {
	st, ok := status.FromError(err)
	if !ok {
		return nil
	}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok {
			return info
		}
	}
	return nil
}

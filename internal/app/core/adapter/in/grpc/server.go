package grpc

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-bank-ledger/internal/app/identity"
	pb "github.com/JoeShih716/go-bank-ledger/proto"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Core gRPC 層需要的帳本操作 (由 usecase.CoreUseCase 實作)
type Core interface {
	Account(ctx context.Context, number string) (*domain.Account, error)
	Deposit(ctx context.Context, cmd usecase.BalanceCmd) (*usecase.BalanceResult, error)
	Withdraw(ctx context.Context, cmd usecase.BalanceCmd) (*usecase.BalanceResult, error)
	Transfer(ctx context.Context, cmd usecase.TransferCmd) (*usecase.TransferResult, error)
	ListTransactions(ctx context.Context, number string, page, pageSize int) (*usecase.TransactionPage, error)
}

// Sessions 註冊 / 登入
type Sessions interface {
	Register(ctx context.Context, in identity.RegisterInput) (*identity.Session, error)
	Login(ctx context.Context, in identity.LoginInput) (*identity.Session, error)
}

type GrpcServer struct {
	pb.UnimplementedLedgerServiceServer
	core     Core
	sessions Sessions
}

func NewGrpcServer(core Core, sessions Sessions) *GrpcServer {
	return &GrpcServer{
		core:     core,
		sessions: sessions,
	}
}

func (s *GrpcServer) OpenAccount(ctx context.Context, req *pb.OpenAccountRequest) (*pb.AuthResponse, error) {
	session, err := s.sessions.Register(ctx, identity.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return toAuthResponse(session), nil
}

func (s *GrpcServer) Login(ctx context.Context, req *pb.LoginRequest) (*pb.AuthResponse, error) {
	session, err := s.sessions.Login(ctx, identity.LoginInput{Email: req.Email, Password: req.Password})
	if err != nil {
		return nil, toStatus(err)
	}
	return toAuthResponse(session), nil
}

func (s *GrpcServer) GetAccount(ctx context.Context, _ *pb.GetAccountRequest) (*pb.GetAccountResponse, error) {
	number, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	account, err := s.core.Account(ctx, number)
	if err != nil {
		return nil, toStatus(err)
	}
	return &pb.GetAccountResponse{Account: toPBAccount(account)}, nil
}

func (s *GrpcServer) Deposit(ctx context.Context, req *pb.BalanceRequest) (*pb.BalanceResponse, error) {
	return s.mutate(ctx, req, s.core.Deposit)
}

func (s *GrpcServer) Withdraw(ctx context.Context, req *pb.BalanceRequest) (*pb.BalanceResponse, error) {
	return s.mutate(ctx, req, s.core.Withdraw)
}

func (s *GrpcServer) mutate(ctx context.Context, req *pb.BalanceRequest,
	op func(context.Context, usecase.BalanceCmd) (*usecase.BalanceResult, error)) (*pb.BalanceResponse, error) {
	number, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return nil, toStatus(err)
	}
	res, err := op(ctx, usecase.BalanceCmd{
		AccountNumber:  number,
		Amount:         amount,
		Description:    req.Description,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return &pb.BalanceResponse{
		Balance:     res.Balance.StringFixed(domain.CurrencyScale),
		Transaction: toPBTransaction(res.Transaction),
		Replayed:    res.Replayed,
	}, nil
}

func (s *GrpcServer) Transfer(ctx context.Context, req *pb.TransferRequest) (*pb.TransferResponse, error) {
	number, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return nil, toStatus(err)
	}
	res, err := s.core.Transfer(ctx, usecase.TransferCmd{
		SenderNumber:    number,
		RecipientNumber: strings.TrimSpace(req.RecipientAccountNumber),
		Amount:          amount,
		Description:     req.Description,
		IdempotencyKey:  req.IdempotencyKey,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return &pb.TransferResponse{
		Balance:       res.SenderBalance.StringFixed(domain.CurrencyScale),
		RecipientName: res.RecipientName,
		Amount:        res.Amount.StringFixed(domain.CurrencyScale),
		Transaction:   toPBTransaction(res.Transaction),
		Replayed:      res.Replayed,
	}, nil
}

func (s *GrpcServer) ListTransactions(ctx context.Context, req *pb.ListTransactionsRequest) (*pb.ListTransactionsResponse, error) {
	number, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	page, limit := int(req.Page), int(req.Limit)
	if page == 0 {
		page = 1
	}
	if limit == 0 {
		limit = defaultPageSize
	}
	limit = min(limit, maxPageSize)

	res, err := s.core.ListTransactions(ctx, number, page, limit)
	if err != nil {
		return nil, toStatus(err)
	}
	out := &pb.ListTransactionsResponse{
		Transactions: make([]*pb.Transaction, 0, len(res.Transactions)),
		Total:        res.Total,
		Page:         int32(res.Page),
		Limit:        int32(res.PageSize),
		TotalPages:   int32(res.TotalPages),
	}
	for _, tran := range res.Transactions {
		out.Transactions = append(out.Transactions, toPBTransaction(tran))
	}
	return out, nil
}

// caller 取出 AuthInterceptor 放入的帳號
func caller(ctx context.Context) (string, error) {
	number, ok := identity.AccountNumberFrom(ctx)
	if !ok {
		return "", status.Error(codes.Unauthenticated, "access token missing or malformed")
	}
	return number, nil
}

func parseAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, domain.ErrInvalidAmount
	}
	return amount, nil
}

func toAuthResponse(session *identity.Session) *pb.AuthResponse {
	return &pb.AuthResponse{
		Account:      toPBAccount(session.Account),
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
	}
}

func toPBAccount(account *domain.Account) *pb.Account {
	return &pb.Account{
		AccountNumber: account.Number,
		Name:          account.Name,
		Email:         account.Email,
		Balance:       account.Balance.StringFixed(domain.CurrencyScale),
		CreatedAt:     account.CreatedAt,
	}
}

func toPBTransaction(tran *domain.Transaction) *pb.Transaction {
	if tran == nil {
		return nil
	}
	return &pb.Transaction{
		ID:                        tran.ID.String(),
		Sequence:                  tran.Sequence,
		AccountNumber:             tran.AccountNumber,
		Type:                      tran.Type.String(),
		Amount:                    tran.Amount.StringFixed(domain.CurrencyScale),
		BalanceAfter:              tran.BalanceAfter.StringFixed(domain.CurrencyScale),
		Description:               tran.Description,
		CounterpartyAccountNumber: tran.CounterpartyNumber,
		CreatedAt:                 tran.CreatedAt,
	}
}

var _ pb.LedgerServiceServer = (*GrpcServer)(nil)

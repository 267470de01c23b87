package proto

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ServiceName = "ledger.v1.LedgerService"

// 完整方法名稱，interceptor 以此判斷是否需要驗證
const (
	LedgerService_OpenAccount_FullMethodName      = "/ledger.v1.LedgerService/OpenAccount"
	LedgerService_Login_FullMethodName            = "/ledger.v1.LedgerService/Login"
	LedgerService_GetAccount_FullMethodName       = "/ledger.v1.LedgerService/GetAccount"
	LedgerService_Deposit_FullMethodName          = "/ledger.v1.LedgerService/Deposit"
	LedgerService_Withdraw_FullMethodName         = "/ledger.v1.LedgerService/Withdraw"
	LedgerService_Transfer_FullMethodName         = "/ledger.v1.LedgerService/Transfer"
	LedgerService_ListTransactions_FullMethodName = "/ledger.v1.LedgerService/ListTransactions"
)

// LedgerServiceServer 伺服器端介面
type LedgerServiceServer interface {
	OpenAccount(context.Context, *OpenAccountRequest) (*AuthResponse, error)
	Login(context.Context, *LoginRequest) (*AuthResponse, error)
	GetAccount(context.Context, *GetAccountRequest) (*GetAccountResponse, error)
	Deposit(context.Context, *BalanceRequest) (*BalanceResponse, error)
	Withdraw(context.Context, *BalanceRequest) (*BalanceResponse, error)
	Transfer(context.Context, *TransferRequest) (*TransferResponse, error)
	ListTransactions(context.Context, *ListTransactionsRequest) (*ListTransactionsResponse, error)
}

// UnimplementedLedgerServiceServer 嵌入後未實作的方法回傳 Unimplemented
type UnimplementedLedgerServiceServer struct{}

func (UnimplementedLedgerServiceServer) OpenAccount(context.Context, *OpenAccountRequest) (*AuthResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method OpenAccount not implemented")
}
func (UnimplementedLedgerServiceServer) Login(context.Context, *LoginRequest) (*AuthResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Login not implemented")
}
func (UnimplementedLedgerServiceServer) GetAccount(context.Context, *GetAccountRequest) (*GetAccountResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetAccount not implemented")
}
func (UnimplementedLedgerServiceServer) Deposit(context.Context, *BalanceRequest) (*BalanceResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Deposit not implemented")
}
func (UnimplementedLedgerServiceServer) Withdraw(context.Context, *BalanceRequest) (*BalanceResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Withdraw not implemented")
}
func (UnimplementedLedgerServiceServer) Transfer(context.Context, *TransferRequest) (*TransferResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Transfer not implemented")
}
func (UnimplementedLedgerServiceServer) ListTransactions(context.Context, *ListTransactionsRequest) (*ListTransactionsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListTransactions not implemented")
}

func RegisterLedgerServiceServer(s grpc.ServiceRegistrar, srv LedgerServiceServer) {
	s.RegisterService(&LedgerService_ServiceDesc, srv)
}

// unaryHandler 產生單一 RPC 的 handler
func unaryHandler[Req any, Resp any](fullMethod string, call func(LedgerServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(LedgerServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(LedgerServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var LedgerService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LedgerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "OpenAccount",
			Handler:    unaryHandler(LedgerService_OpenAccount_FullMethodName, LedgerServiceServer.OpenAccount),
		},
		{
			MethodName: "Login",
			Handler:    unaryHandler(LedgerService_Login_FullMethodName, LedgerServiceServer.Login),
		},
		{
			MethodName: "GetAccount",
			Handler:    unaryHandler(LedgerService_GetAccount_FullMethodName, LedgerServiceServer.GetAccount),
		},
		{
			MethodName: "Deposit",
			Handler:    unaryHandler(LedgerService_Deposit_FullMethodName, LedgerServiceServer.Deposit),
		},
		{
			MethodName: "Withdraw",
			Handler:    unaryHandler(LedgerService_Withdraw_FullMethodName, LedgerServiceServer.Withdraw),
		},
		{
			MethodName: "Transfer",
			Handler:    unaryHandler(LedgerService_Transfer_FullMethodName, LedgerServiceServer.Transfer),
		},
		{
			MethodName: "ListTransactions",
			Handler:    unaryHandler(LedgerService_ListTransactions_FullMethodName, LedgerServiceServer.ListTransactions),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ledger/v1/ledger.proto",
}

// LedgerServiceClient 客戶端介面
type LedgerServiceClient interface {
	OpenAccount(ctx context.Context, in *OpenAccountRequest, opts ...grpc.CallOption) (*AuthResponse, error)
	Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*AuthResponse, error)
	GetAccount(ctx context.Context, in *GetAccountRequest, opts ...grpc.CallOption) (*GetAccountResponse, error)
	Deposit(ctx context.Context, in *BalanceRequest, opts ...grpc.CallOption) (*BalanceResponse, error)
	Withdraw(ctx context.Context, in *BalanceRequest, opts ...grpc.CallOption) (*BalanceResponse, error)
	Transfer(ctx context.Context, in *TransferRequest, opts ...grpc.CallOption) (*TransferResponse, error)
	ListTransactions(ctx context.Context, in *ListTransactionsRequest, opts ...grpc.CallOption) (*ListTransactionsResponse, error)
}

type ledgerServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewLedgerServiceClient(cc grpc.ClientConnInterface) LedgerServiceClient {
	return &ledgerServiceClient{cc}
}

// invoke 一律帶上 JSON content-subtype
func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ledgerServiceClient) OpenAccount(ctx context.Context, in *OpenAccountRequest, opts ...grpc.CallOption) (*AuthResponse, error) {
	return invoke[AuthResponse](ctx, c.cc, LedgerService_OpenAccount_FullMethodName, in, opts)
}

func (c *ledgerServiceClient) Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*AuthResponse, error) {
	return invoke[AuthResponse](ctx, c.cc, LedgerService_Login_FullMethodName, in, opts)
}

func (c *ledgerServiceClient) GetAccount(ctx context.Context, in *GetAccountRequest, opts ...grpc.CallOption) (*GetAccountResponse, error) {
	return invoke[GetAccountResponse](ctx, c.cc, LedgerService_GetAccount_FullMethodName, in, opts)
}

func (c *ledgerServiceClient) Deposit(ctx context.Context, in *BalanceRequest, opts ...grpc.CallOption) (*BalanceResponse, error) {
	return invoke[BalanceResponse](ctx, c.cc, LedgerService_Deposit_FullMethodName, in, opts)
}

func (c *ledgerServiceClient) Withdraw(ctx context.Context, in *BalanceRequest, opts ...grpc.CallOption) (*BalanceResponse, error) {
	return invoke[BalanceResponse](ctx, c.cc, LedgerService_Withdraw_FullMethodName, in, opts)
}

func (c *ledgerServiceClient) Transfer(ctx context.Context, in *TransferRequest, opts ...grpc.CallOption) (*TransferResponse, error) {
	return invoke[TransferResponse](ctx, c.cc, LedgerService_Transfer_FullMethodName, in, opts)
}

func (c *ledgerServiceClient) ListTransactions(ctx context.Context, in *ListTransactionsRequest, opts ...grpc.CallOption) (*ListTransactionsResponse, error) {
	return invoke[ListTransactionsResponse](ctx, c.cc, LedgerService_ListTransactions_FullMethodName, in, opts)
}

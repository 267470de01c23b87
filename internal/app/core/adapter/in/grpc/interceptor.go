package grpc

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/JoeShih716/go-bank-ledger/internal/app/identity"
	"github.com/JoeShih716/go-bank-ledger/pkg/logger"
	pb "github.com/JoeShih716/go-bank-ledger/proto"
)

const requestIDHeader = "x-request-id"

// Authenticator 驗證 access token
type Authenticator interface {
	Authenticate(token string) (*identity.Claims, error)
}

// Observer 記錄每個 RPC 的結果 (pkg/metrics 實作)
type Observer interface {
	ObserveGRPC(method, code string, elapsed time.Duration)
}

// publicMethods 不需要 token 的方法
var publicMethods = map[string]bool{
	pb.LedgerService_OpenAccount_FullMethodName: true,
	pb.LedgerService_Login_FullMethodName:       true,
}

// AuthInterceptor 從 authorization metadata 取出 Bearer token 驗證
// 驗證通過後把帳號放進 context，核心層只信任這個帳號
func AuthInterceptor(auth Authenticator) grpclib.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpclib.UnaryServerInfo, handler grpclib.UnaryHandler) (any, error) {
		if publicMethods[info.FullMethod] {
			return handler(ctx, req)
		}
		token, ok := bearerToken(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "access token missing or malformed")
		}
		claims, err := auth.Authenticate(token)
		if err != nil {
			if errors.Is(err, identity.ErrTokenExpired) {
				return nil, toStatus(identity.ErrTokenExpired)
			}
			return nil, toStatus(identity.ErrTokenInvalid)
		}
		return handler(identity.WithAccountNumber(ctx, claims.AccountNumber), req)
	}
}

func bearerToken(ctx context.Context) (string, bool) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", false
	}
	values := md.Get("authorization")
	if len(values) == 0 {
		return "", false
	}
	scheme, token, found := strings.Cut(values[0], " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

// ObserveInterceptor 配發 request id、記錄 log 與 metrics
// observer 可為 nil
func ObserveInterceptor(log *slog.Logger, observer Observer) grpclib.UnaryServerInterceptor {
	if log == nil {
		log = slog.Default()
	}
	return func(ctx context.Context, req any, info *grpclib.UnaryServerInfo, handler grpclib.UnaryHandler) (any, error) {
		start := time.Now()
		requestID := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if ids := md.Get(requestIDHeader); len(ids) > 0 {
				requestID = ids[0]
			}
		}
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx = logger.WithRequestID(ctx, requestID)
		_ = grpclib.SetHeader(ctx, metadata.Pairs(requestIDHeader, requestID))

		resp, err := handler(ctx, req)

		code := status.Code(err)
		elapsed := time.Since(start)
		if observer != nil {
			observer.ObserveGRPC(info.FullMethod, code.String(), elapsed)
		}
		level := slog.LevelDebug
		switch code {
		case codes.OK:
		case codes.Internal, codes.Unknown, codes.DataLoss:
			level = slog.LevelError
		default:
			level = slog.LevelInfo
		}
		log.Log(ctx, level, "grpc request", "method", info.FullMethod, "code", code.String(), "elapsed", elapsed)
		return resp, err
	}
}

// NewServer 建立已註冊 LedgerService 的 gRPC server
func NewServer(handler *GrpcServer, auth Authenticator, log *slog.Logger, observer Observer, opts ...grpclib.ServerOption) *grpclib.Server {
	opts = append(opts, grpclib.ChainUnaryInterceptor(
		ObserveInterceptor(log, observer),
		AuthInterceptor(auth),
	))
	server := grpclib.NewServer(opts...)
	pb.RegisterLedgerServiceServer(server, handler)
	return server
}

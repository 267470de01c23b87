package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	grpcpool "github.com/JoeShih716/go-bank-ledger/pkg/grpc"
	pb "github.com/JoeShih716/go-bank-ledger/proto"
)

// 壓測：開 N 個帳戶、各存入相同金額，隨機互轉後檢查總額守恆
func main() {
	addr := flag.String("addr", "localhost:50051", "ledger gRPC address")
	accounts := flag.Int("accounts", 20, "number of accounts")
	transfers := flag.Int("transfers", 100000, "number of transfers")
	concurrency := flag.Int("concurrency", 200, "concurrent requests")
	initial := flag.String("initial", "1000.00", "initial deposit per account")
	flag.Parse()

	initialAmount, err := decimal.NewFromString(*initial)
	if err != nil {
		log.Fatalf("invalid initial amount: %v", err)
	}

	pool := grpcpool.NewPool(
		grpcpool.WithInterceptor(grpcpool.RequestIDInterceptor()),
		grpcpool.WithDialOptions(pb.DialOptions()...),
	)
	defer pool.Close()
	conn, err := pool.GetConnection(*addr)
	if err != nil {
		log.Fatalf("did not connect: %v", err)
	}
	c := pb.NewLedgerServiceClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	// 1. 開戶並存入初始金額
	type session struct {
		number string
		ctx    context.Context
	}
	sessions := make([]session, 0, *accounts)
	for i := 0; i < *accounts; i++ {
		resp, err := c.OpenAccount(ctx, &pb.OpenAccountRequest{
			Name:     fmt.Sprintf("load test %d", i),
			Email:    fmt.Sprintf("load-%s@example.com", uuid.NewString()),
			Password: "password123",
		})
		if err != nil {
			log.Fatalf("open account %d: %v", i, err)
		}
		authCtx := metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+resp.AccessToken)
		if _, err := c.Deposit(authCtx, &pb.BalanceRequest{Amount: initialAmount.StringFixed(2), Description: "load test seed"}); err != nil {
			log.Fatalf("seed account %s: %v", resp.Account.AccountNumber, err)
		}
		sessions = append(sessions, session{number: resp.Account.AccountNumber, ctx: authCtx})
	}
	if len(sessions) < 2 {
		log.Fatalf("need at least 2 accounts")
	}

	// 2. 隨機互轉
	var ok, rejected, failed atomic.Int64
	var wg sync.WaitGroup
	sem := make(chan struct{}, *concurrency)
	startTime := time.Now()
	for i := 0; i < *transfers; i++ {
		sem <- struct{}{}
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			from := rand.IntN(len(sessions))
			to := rand.IntN(len(sessions) - 1)
			if to >= from {
				to++
			}
			amount := decimal.New(rand.Int64N(5000)+1, -2)
			_, err := c.Transfer(sessions[from].ctx, &pb.TransferRequest{
				RecipientAccountNumber: sessions[to].number,
				Amount:                 amount.StringFixed(2),
			})
			switch status.Code(err) {
			case codes.OK:
				ok.Add(1)
			case codes.FailedPrecondition:
				rejected.Add(1)
			default:
				failed.Add(1)
				if idx%10000 == 0 {
					log.Printf("Transfer %d failed: %v", idx, err)
				}
			}
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(startTime)

	fmt.Printf("Completed %d transfers in %v (ok=%d insufficient=%d failed=%d)\n",
		*transfers, elapsed, ok.Load(), rejected.Load(), failed.Load())
	fmt.Printf("TPS: %.2f\n", float64(*transfers)/elapsed.Seconds())

	// 3. 總額守恆檢查
	total := decimal.Zero
	for _, s := range sessions {
		resp, err := c.GetAccount(s.ctx, &pb.GetAccountRequest{})
		if err != nil {
			log.Fatalf("get account %s: %v", s.number, err)
		}
		balance, err := decimal.NewFromString(resp.Account.Balance)
		if err != nil {
			log.Fatalf("invalid balance %q: %v", resp.Account.Balance, err)
		}
		total = total.Add(balance)
	}
	expected := initialAmount.Mul(decimal.NewFromInt(int64(len(sessions))))
	if !total.Equal(expected) {
		log.Fatalf("conservation violated: total %s, expected %s", total.StringFixed(2), expected.StringFixed(2))
	}
	fmt.Printf("Conservation OK: total balance %s\n", total.StringFixed(2))
}

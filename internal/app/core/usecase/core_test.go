package usecase_test

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// seqAllocator 依序回傳預先設定的帳號
type seqAllocator struct {
	mu      sync.Mutex
	numbers []string
}

func (a *seqAllocator) Next(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.numbers) == 0 {
		return "", errors.New("allocator exhausted")
	}
	n := a.numbers[0]
	a.numbers = a.numbers[1:]
	return n, nil
}

// recordingPublisher 收集所有發佈的事件
type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.TransactionCommitted
}

func (p *recordingPublisher) Publish(ctx context.Context, events ...domain.TransactionCommitted) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) Events() []domain.TransactionCommitted {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.TransactionCommitted(nil), p.events...)
}

type fixture struct {
	core      *usecase.CoreUseCase
	ledger    *memory.MutexLedger
	publisher *recordingPublisher
}

func newFixture(t *testing.T, numbers ...string) *fixture {
	t.Helper()
	ledger, err := memory.NewMutexLedger()
	require.NoError(t, err)
	return newFixtureWithLedger(t, ledger, ledger, numbers...)
}

func newFixtureWithLedger(t *testing.T, store usecase.Ledger, ledger *memory.MutexLedger, numbers ...string) *fixture {
	t.Helper()
	publisher := &recordingPublisher{}
	core := usecase.NewCoreUseCase(store,
		usecase.WithAllocator(&seqAllocator{numbers: numbers}),
		usecase.WithPublisher(publisher),
		usecase.WithRetryPolicy(usecase.RetryPolicy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}),
	)
	return &fixture{core: core, ledger: ledger, publisher: publisher}
}

func (f *fixture) open(t *testing.T, name, email, balance string) *domain.Account {
	t.Helper()
	ctx := context.Background()
	account, err := f.core.OpenAccount(ctx, usecase.OpenAccountCmd{Name: name, Email: email, PasswordHash: "hash"})
	require.NoError(t, err)
	if balance != "" && !dec(balance).IsZero() {
		_, err = f.core.Deposit(ctx, usecase.BalanceCmd{AccountNumber: account.Number, Amount: dec(balance)})
		require.NoError(t, err)
	}
	return account
}

func (f *fixture) balance(t *testing.T, number string) string {
	t.Helper()
	account, err := f.core.Account(context.Background(), number)
	require.NoError(t, err)
	return account.Balance.StringFixed(2)
}

func (f *fixture) history(t *testing.T, number string) []*domain.Transaction {
	t.Helper()
	page, err := f.core.ListTransactions(context.Background(), number, 1, 100)
	require.NoError(t, err)
	return page.Transactions
}

func TestDepositScenario(t *testing.T) {
	f := newFixture(t, "111111111111")
	x := f.open(t, "Alice", "alice@example.com", "100.00")

	res, err := f.core.Deposit(context.Background(), usecase.BalanceCmd{AccountNumber: x.Number, Amount: dec("50.00")})
	require.NoError(t, err)
	assert.Equal(t, "150.00", res.Balance.StringFixed(2))
	assert.Equal(t, "150.00", f.balance(t, x.Number))

	trans := f.history(t, x.Number)
	require.Len(t, trans, 2)
	assert.Equal(t, domain.TransactionTypeCredit, trans[0].Type)
	assert.Equal(t, "50.00", trans[0].Amount.StringFixed(2))
	assert.Equal(t, "Deposit", trans[0].Description)
	assert.Equal(t, "150.00", trans[0].BalanceAfter.StringFixed(2))
	assert.Empty(t, trans[0].CounterpartyNumber)
}

func TestWithdrawInsufficientFunds(t *testing.T) {
	f := newFixture(t, "111111111111")
	x := f.open(t, "Alice", "alice@example.com", "150.00")
	ctx := context.Background()

	// 重複同一個失敗請求，結果都一樣
	for i := 0; i < 3; i++ {
		_, err := f.core.Withdraw(ctx, usecase.BalanceCmd{AccountNumber: x.Number, Amount: dec("200.00")})
		var insufficient *domain.InsufficientFundsError
		require.ErrorAs(t, err, &insufficient)
		assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
		assert.Contains(t, err.Error(), "available balance: 150.00")
		assert.Equal(t, "150.00", f.balance(t, x.Number))
	}
	assert.Len(t, f.history(t, x.Number), 1)

	res, err := f.core.Withdraw(ctx, usecase.BalanceCmd{AccountNumber: x.Number, Amount: dec("150.00")})
	require.NoError(t, err)
	assert.True(t, res.Balance.IsZero())
	assert.Equal(t, domain.TransactionTypeDebit, res.Transaction.Type)
	assert.Equal(t, "Withdrawal", res.Transaction.Description)
}

func TestTransferScenario(t *testing.T) {
	f := newFixture(t, "111111111111", "222222222222")
	x := f.open(t, "Alice", "alice@example.com", "150.00")
	y := f.open(t, "Bob", "bob@example.com", "")

	res, err := f.core.Transfer(context.Background(), usecase.TransferCmd{
		SenderNumber:    x.Number,
		RecipientNumber: y.Number,
		Amount:          dec("30.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, "120.00", res.SenderBalance.StringFixed(2))
	assert.Equal(t, "Bob", res.RecipientName)
	assert.Equal(t, "30.00", res.Amount.StringFixed(2))
	assert.False(t, res.Replayed)

	assert.Equal(t, "120.00", f.balance(t, x.Number))
	assert.Equal(t, "30.00", f.balance(t, y.Number))

	sent := f.history(t, x.Number)[0]
	assert.Equal(t, domain.TransactionTypeTransfer, sent.Type)
	assert.Equal(t, "30.00", sent.Amount.StringFixed(2))
	assert.Equal(t, "222222222222", sent.CounterpartyNumber)
	assert.Equal(t, "Transfer to 222222222222", sent.Description)

	recvs := f.history(t, y.Number)
	require.Len(t, recvs, 1)
	assert.Equal(t, domain.TransactionTypeCredit, recvs[0].Type)
	assert.Equal(t, "30.00", recvs[0].Amount.StringFixed(2))
	assert.Equal(t, "111111111111", recvs[0].CounterpartyNumber)
	assert.Equal(t, "Transfer from 111111111111", recvs[0].Description)
	assert.Equal(t, "30.00", recvs[0].BalanceAfter.StringFixed(2))

	// deposit + transfer 兩邊各一筆
	events := f.publisher.Events()
	require.Len(t, events, 3)
	assert.Equal(t, x.Number, events[1].AccountNumber)
	assert.Equal(t, y.Number, events[2].AccountNumber)
}

func TestTransferRejections(t *testing.T) {
	f := newFixture(t, "111111111111", "222222222222")
	x := f.open(t, "Alice", "alice@example.com", "150.00")
	y := f.open(t, "Bob", "bob@example.com", "")
	ctx := context.Background()

	tests := []struct {
		name string
		cmd  usecase.TransferCmd
		want error
	}{
		{
			name: "self transfer",
			cmd:  usecase.TransferCmd{SenderNumber: x.Number, RecipientNumber: x.Number, Amount: dec("10")},
			want: domain.ErrSelfTransfer,
		},
		{
			name: "unknown recipient",
			cmd:  usecase.TransferCmd{SenderNumber: x.Number, RecipientNumber: "999999999999", Amount: dec("10")},
			want: domain.ErrRecipientNotFound,
		},
		{
			name: "unknown sender",
			cmd:  usecase.TransferCmd{SenderNumber: "999999999999", RecipientNumber: y.Number, Amount: dec("10")},
			want: domain.ErrSenderNotFound,
		},
		{
			name: "malformed recipient",
			cmd:  usecase.TransferCmd{SenderNumber: x.Number, RecipientNumber: "12ab", Amount: dec("10")},
			want: domain.ErrInvalidAccountNumber,
		},
		{
			name: "zero amount",
			cmd:  usecase.TransferCmd{SenderNumber: x.Number, RecipientNumber: y.Number, Amount: decimal.Zero},
			want: domain.ErrInvalidAmount,
		},
		{
			name: "sub cent amount",
			cmd:  usecase.TransferCmd{SenderNumber: x.Number, RecipientNumber: y.Number, Amount: dec("0.001")},
			want: domain.ErrInvalidAmount,
		},
		{
			name: "insufficient funds",
			cmd:  usecase.TransferCmd{SenderNumber: x.Number, RecipientNumber: y.Number, Amount: dec("150.01")},
			want: domain.ErrInsufficientFunds,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.core.Transfer(ctx, tt.cmd)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, "150.00", f.balance(t, x.Number))
			assert.Equal(t, "0.00", f.balance(t, y.Number))
			assert.Len(t, f.history(t, x.Number), 1)
			assert.Empty(t, f.history(t, y.Number))
		})
	}

	var notFound *domain.NotFoundError
	_, err := f.core.Transfer(ctx, usecase.TransferCmd{SenderNumber: x.Number, RecipientNumber: "999999999999", Amount: dec("1")})
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "999999999999", notFound.Number)
}

func TestConcurrentTransfersFromSameAccount(t *testing.T) {
	f := newFixture(t, "111111111111", "222222222222", "333333333333")
	x := f.open(t, "Alice", "alice@example.com", "100.00")
	y := f.open(t, "Bob", "bob@example.com", "")
	z := f.open(t, "Carol", "carol@example.com", "")
	ctx := context.Background()

	var ok, rejected atomic.Int32
	var g errgroup.Group
	for _, to := range []string{y.Number, z.Number} {
		g.Go(func() error {
			_, err := f.core.Transfer(ctx, usecase.TransferCmd{SenderNumber: x.Number, RecipientNumber: to, Amount: dec("80.00")})
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, domain.ErrInsufficientFunds):
				rejected.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.EqualValues(t, 1, ok.Load())
	assert.EqualValues(t, 1, rejected.Load())
	assert.Equal(t, "20.00", f.balance(t, x.Number))
}

func TestConcurrentWithdrawalsNeverOverdraw(t *testing.T) {
	f := newFixture(t, "111111111111")
	x := f.open(t, "Alice", "alice@example.com", "100.00")
	ctx := context.Background()

	const workers = 50
	var ok atomic.Int32
	var g errgroup.Group
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			_, err := f.core.Withdraw(ctx, usecase.BalanceCmd{AccountNumber: x.Number, Amount: dec("7.00")})
			if err == nil {
				ok.Add(1)
				return nil
			}
			if errors.Is(err, domain.ErrInsufficientFunds) {
				return nil
			}
			return err
		})
	}
	require.NoError(t, g.Wait())

	// floor(100 / 7) = 14
	assert.EqualValues(t, 14, ok.Load())
	assert.Equal(t, "2.00", f.balance(t, x.Number))
}

func TestConservationUnderRandomOperations(t *testing.T) {
	numbers := []string{"111111111111", "222222222222", "333333333333", "444444444444"}
	f := newFixture(t, numbers...)
	for _, n := range numbers {
		f.open(t, "user "+n, n+"@example.com", "")
	}
	ctx := context.Background()

	var mu sync.Mutex
	net := decimal.Zero
	var g errgroup.Group
	for w := 0; w < 8; w++ {
		seed := uint64(w)
		g.Go(func() error {
			rng := rand.New(rand.NewPCG(seed, seed+1))
			for i := 0; i < 100; i++ {
				from := numbers[rng.IntN(len(numbers))]
				to := numbers[rng.IntN(len(numbers))]
				amount := decimal.New(int64(rng.IntN(5000)+1), -2)
				var err error
				switch rng.IntN(3) {
				case 0:
					_, err = f.core.Deposit(ctx, usecase.BalanceCmd{AccountNumber: from, Amount: amount})
					if err == nil {
						mu.Lock()
						net = net.Add(amount)
						mu.Unlock()
					}
				case 1:
					_, err = f.core.Withdraw(ctx, usecase.BalanceCmd{AccountNumber: from, Amount: amount})
					if err == nil {
						mu.Lock()
						net = net.Sub(amount)
						mu.Unlock()
					}
				default:
					_, err = f.core.Transfer(ctx, usecase.TransferCmd{SenderNumber: from, RecipientNumber: to, Amount: amount})
				}
				if err != nil && !domain.IsBusiness(err) {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	sum := decimal.Zero
	transfers := 0
	for _, n := range numbers {
		account, err := f.core.Account(ctx, n)
		require.NoError(t, err)
		assert.False(t, account.Balance.IsNegative())
		sum = sum.Add(account.Balance)

		// 每筆轉出都有對應的轉入紀錄
		for _, tran := range f.history(t, n) {
			if tran.Type != domain.TransactionTypeTransfer {
				continue
			}
			transfers++
			assert.True(t, hasReciprocal(t, f, tran), "missing credit for %s", tran.ID)
		}
	}
	assert.True(t, sum.Equal(net), "sum %s net %s", sum, net)
	t.Logf("transfers committed: %d", transfers)
}

func hasReciprocal(t *testing.T, f *fixture, sent *domain.Transaction) bool {
	t.Helper()
	for _, tran := range f.history(t, sent.CounterpartyNumber) {
		if tran.Type == domain.TransactionTypeCredit && tran.Sequence == sent.Sequence+1 &&
			tran.CounterpartyNumber == sent.AccountNumber && tran.Amount.Equal(sent.Amount) {
			return true
		}
	}
	return false
}

// failingLedger 讓 unit 內的 AppendTransactions 失敗
type failingLedger struct {
	usecase.Ledger
	fail bool
}

type failingUnit struct {
	usecase.UnitOfWork
}

func (u failingUnit) AppendTransactions(ctx context.Context, trans ...*domain.Transaction) error {
	return errors.New("disk full")
}

func (l *failingLedger) RunInTx(ctx context.Context, fn func(ctx context.Context, uow usecase.UnitOfWork) error) error {
	return l.Ledger.RunInTx(ctx, func(ctx context.Context, uow usecase.UnitOfWork) error {
		if l.fail {
			uow = failingUnit{uow}
		}
		return fn(ctx, uow)
	})
}

func TestTransferIsAtomicWhenAppendFails(t *testing.T) {
	ledger, err := memory.NewMutexLedger()
	require.NoError(t, err)
	store := &failingLedger{Ledger: ledger}
	f := newFixtureWithLedger(t, store, ledger, "111111111111", "222222222222")
	x := f.open(t, "Alice", "alice@example.com", "100.00")
	y := f.open(t, "Bob", "bob@example.com", "")

	store.fail = true
	_, err = f.core.Transfer(context.Background(), usecase.TransferCmd{SenderNumber: x.Number, RecipientNumber: y.Number, Amount: dec("40")})
	require.ErrorContains(t, err, "disk full")

	assert.Equal(t, "100.00", f.balance(t, x.Number))
	assert.Equal(t, "0.00", f.balance(t, y.Number))
	assert.Len(t, f.history(t, x.Number), 1)
	assert.Empty(t, f.history(t, y.Number))
	// 失敗的轉帳不發佈事件
	assert.Len(t, f.publisher.Events(), 1)
}

func TestIdempotentReplay(t *testing.T) {
	f := newFixture(t, "111111111111", "222222222222")
	x := f.open(t, "Alice", "alice@example.com", "100.00")
	y := f.open(t, "Bob", "bob@example.com", "")
	ctx := context.Background()

	cmd := usecase.TransferCmd{SenderNumber: x.Number, RecipientNumber: y.Number, Amount: dec("25.00"), IdempotencyKey: "req-1"}
	first, err := f.core.Transfer(ctx, cmd)
	require.NoError(t, err)

	again, err := f.core.Transfer(ctx, cmd)
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, first.Transaction.ID, again.Transaction.ID)
	assert.Equal(t, "75.00", again.SenderBalance.StringFixed(2))
	assert.Equal(t, "75.00", f.balance(t, x.Number))
	assert.Equal(t, "25.00", f.balance(t, y.Number))
	assert.Len(t, f.publisher.Events(), 3)

	cmd.Amount = dec("26.00")
	_, err = f.core.Transfer(ctx, cmd)
	assert.ErrorIs(t, err, domain.ErrIdempotencyKeyReused)

	// 相同 key 用在提款是不同的請求
	_, err = f.core.Withdraw(ctx, usecase.BalanceCmd{AccountNumber: x.Number, Amount: dec("25.00"), IdempotencyKey: "req-1"})
	assert.ErrorIs(t, err, domain.ErrIdempotencyKeyReused)

	dep := usecase.BalanceCmd{AccountNumber: y.Number, Amount: dec("1.00"), IdempotencyKey: "req-1"}
	res, err := f.core.Deposit(ctx, dep)
	require.NoError(t, err)
	assert.False(t, res.Replayed)
	res, err = f.core.Deposit(ctx, dep)
	require.NoError(t, err)
	assert.True(t, res.Replayed)
	assert.Equal(t, "26.00", f.balance(t, y.Number))
}

func TestListTransactionsPagination(t *testing.T) {
	f := newFixture(t, "111111111111")
	x := f.open(t, "Alice", "alice@example.com", "")
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		_, err := f.core.Deposit(ctx, usecase.BalanceCmd{AccountNumber: x.Number, Amount: decimal.NewFromInt(int64(i))})
		require.NoError(t, err)
	}

	page, err := f.core.ListTransactions(ctx, x.Number, 1, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 5, page.Total)
	assert.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Transactions, 2)
	assert.Equal(t, "5.00", page.Transactions[0].Amount.StringFixed(2))

	page, err = f.core.ListTransactions(ctx, x.Number, 3, 2)
	require.NoError(t, err)
	require.Len(t, page.Transactions, 1)
	assert.Equal(t, "1.00", page.Transactions[0].Amount.StringFixed(2))

	page, err = f.core.ListTransactions(ctx, x.Number, 4, 2)
	require.NoError(t, err)
	assert.Empty(t, page.Transactions)

	_, err = f.core.ListTransactions(ctx, x.Number, 0, 2)
	assert.ErrorIs(t, err, domain.ErrInvalidPage)
	_, err = f.core.ListTransactions(ctx, "999999999999", 1, 2)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestListTransactionsPageBeyondEnd(t *testing.T) {
	f := newFixture(t, "111111111111", "222222222222")
	ctx := context.Background()
	empty := f.open(t, "Alice", "alice@example.com", "")
	x := f.open(t, "Bob", "bob@example.com", "")
	for i := 1; i <= 3; i++ {
		_, err := f.core.Deposit(ctx, usecase.BalanceCmd{AccountNumber: x.Number, Amount: decimal.NewFromInt(int64(i))})
		require.NoError(t, err)
	}

	cases := []struct {
		name     string
		number   string
		page     int
		pageSize int
		total    int64
		pages    int
	}{
		{"just past the end", x.Number, 3, 2, 3, 2},
		{"no history", empty.Number, 1, 20, 0, 0},
		{"offset overflows", x.Number, 1<<62 + 1, 2, 3, 2},
		{"offset overflows on empty account", empty.Number, 1<<62 + 1, 2, 0, 0},
		{"huge page size", x.Number, 2, math.MaxInt, 3, 1},
		{"both huge", x.Number, math.MaxInt, math.MaxInt, 3, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			page, err := f.core.ListTransactions(ctx, tc.number, tc.page, tc.pageSize)
			require.NoError(t, err)
			assert.NotNil(t, page.Transactions)
			assert.Empty(t, page.Transactions)
			assert.Equal(t, tc.total, page.Total)
			assert.Equal(t, tc.pages, page.TotalPages)
			assert.Equal(t, tc.page, page.Page)
		})
	}

	// 單頁可容納全部紀錄
	page, err := f.core.ListTransactions(ctx, x.Number, 1, math.MaxInt)
	require.NoError(t, err)
	assert.Len(t, page.Transactions, 3)
	assert.Equal(t, 1, page.TotalPages)
}

func TestDepositBalanceCeiling(t *testing.T) {
	f := newFixture(t, "111111111111", "222222222222")
	ctx := context.Background()
	x := f.open(t, "Alice", "alice@example.com", "")
	y := f.open(t, "Bob", "bob@example.com", "5.00")

	_, err := f.core.Deposit(ctx, usecase.BalanceCmd{AccountNumber: x.Number, Amount: domain.MaxAmount.Add(dec("0.01"))})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = f.core.Deposit(ctx, usecase.BalanceCmd{AccountNumber: x.Number, Amount: domain.MaxAmount})
	require.NoError(t, err)

	_, err = f.core.Deposit(ctx, usecase.BalanceCmd{AccountNumber: x.Number, Amount: dec("0.01")})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	_, err = f.core.Transfer(ctx, usecase.TransferCmd{SenderNumber: y.Number, RecipientNumber: x.Number, Amount: dec("1.00")})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	assert.Equal(t, "999999999999999999.99", f.balance(t, x.Number))
	assert.Equal(t, "5.00", f.balance(t, y.Number))
	assert.Len(t, f.history(t, x.Number), 1)
}

func TestOpenAccountRetriesCollision(t *testing.T) {
	f := newFixture(t, "111111111111", "111111111111", "222222222222")
	a := f.open(t, "Alice", "Alice@Example.com", "")
	assert.Equal(t, "111111111111", a.Number)
	assert.Equal(t, "alice@example.com", a.Email)
	assert.True(t, a.Balance.IsZero())

	b := f.open(t, "Bob", "bob@example.com", "")
	assert.Equal(t, "222222222222", b.Number)

	found, err := f.core.AccountByEmail(context.Background(), "BOB@example.com")
	require.NoError(t, err)
	assert.Equal(t, b.Number, found.Number)
}

func TestOpenAccountRejects(t *testing.T) {
	f := newFixture(t, "111111111111", "222222222222", "0123")
	ctx := context.Background()
	f.open(t, "Alice", "alice@example.com", "")

	_, err := f.core.OpenAccount(ctx, usecase.OpenAccountCmd{Name: "Other", Email: "ALICE@example.com", PasswordHash: "hash"})
	assert.ErrorIs(t, err, domain.ErrEmailTaken)

	_, err = f.core.OpenAccount(ctx, usecase.OpenAccountCmd{Name: "Bad", Email: "bad@example.com", PasswordHash: "hash"})
	assert.ErrorIs(t, err, domain.ErrInvariantViolation)
}

func TestRandomAllocator(t *testing.T) {
	alloc := usecase.NewRandomAllocator()
	for i := 0; i < 1000; i++ {
		n, err := alloc.Next(context.Background())
		require.NoError(t, err)
		require.NoError(t, domain.ValidateAccountNumber(n))
		assert.NotEqual(t, byte('0'), n[0])
	}
}

// conflictLedger 前 n 次 RunInTx 回傳 ErrConflict
type conflictLedger struct {
	usecase.Ledger
	remaining atomic.Int32
	calls     atomic.Int32
}

func (l *conflictLedger) RunInTx(ctx context.Context, fn func(ctx context.Context, uow usecase.UnitOfWork) error) error {
	l.calls.Add(1)
	if l.remaining.Add(-1) >= 0 {
		return domain.ErrConflict
	}
	return l.Ledger.RunInTx(ctx, fn)
}

func TestConflictIsRetried(t *testing.T) {
	ledger, err := memory.NewMutexLedger()
	require.NoError(t, err)
	store := &conflictLedger{Ledger: ledger}
	f := newFixtureWithLedger(t, store, ledger, "111111111111")
	x := f.open(t, "Alice", "alice@example.com", "")
	ctx := context.Background()

	store.calls.Store(0)
	store.remaining.Store(2)
	res, err := f.core.Deposit(ctx, usecase.BalanceCmd{AccountNumber: x.Number, Amount: dec("10")})
	require.NoError(t, err)
	assert.Equal(t, "10.00", res.Balance.StringFixed(2))
	assert.EqualValues(t, 3, store.calls.Load())

	store.calls.Store(0)
	store.remaining.Store(5)
	_, err = f.core.Deposit(ctx, usecase.BalanceCmd{AccountNumber: x.Number, Amount: dec("10")})
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.EqualValues(t, 3, store.calls.Load())
	assert.Equal(t, "10.00", f.balance(t, x.Number))

	// 業務錯誤不重試
	store.calls.Store(0)
	store.remaining.Store(0)
	_, err = f.core.Withdraw(ctx, usecase.BalanceCmd{AccountNumber: x.Number, Amount: dec("11")})
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.EqualValues(t, 1, store.calls.Load())
}

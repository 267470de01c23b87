package usecase

import (
	"context"
	"time"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// AccountStore 帳戶餘額的寫入端，只能在 unit of work 內使用
type AccountStore interface {
	// CreateAccount 建立帳戶；帳號重複回傳 ErrAccountAlreadyExists，Email 重複回傳 ErrEmailTaken
	CreateAccount(ctx context.Context, account *domain.Account) error
	// LockAccounts 依帳號遞增順序鎖定並載入帳戶，直到 unit of work 結束；不存在的帳號不會出現在結果中
	LockAccounts(ctx context.Context, numbers ...string) (map[string]*domain.Account, error)
	// SaveBalance 寫回已鎖定帳戶的新餘額
	SaveBalance(ctx context.Context, account *domain.Account) error
}

// LedgerStore 交易紀錄的寫入端 (append-only)，只能在 unit of work 內使用
type LedgerStore interface {
	// AppendTransactions 追加交易紀錄，Sequence 與 CreatedAt 由儲存層填入
	AppendTransactions(ctx context.Context, trans ...*domain.Transaction) error
	// FindByIdempotencyKey 查詢帳戶底下指定 key 的紀錄，沒有時回傳 nil, nil
	FindByIdempotencyKey(ctx context.Context, accountNumber, key string) (*domain.Transaction, error)
}

// UnitOfWork 一次 commit 或全部回滾的讀寫集合
type UnitOfWork interface {
	AccountStore
	LedgerStore
}

// Ledger 是帳務儲存層的介面
type Ledger interface {
	// RunInTx 在單一 unit of work 內執行 fn；fn 回傳錯誤或 commit 失敗時不留下任何副作用
	RunInTx(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error
	// GetAccount 取得帳戶快照，不存在回傳 ErrAccountNotFound
	GetAccount(ctx context.Context, number string) (*domain.Account, error)
	// GetAccountByEmail 以 Email 取得帳戶快照，不存在回傳 ErrAccountNotFound
	GetAccountByEmail(ctx context.Context, email string) (*domain.Account, error)
	// ListTransactions 依建立時間新到舊列出紀錄，並回傳總筆數
	ListTransactions(ctx context.Context, number string, limit, offset int) ([]*domain.Transaction, int64, error)
}

// EventPublisher 交易 commit 後的事件出口 (best effort)
type EventPublisher interface {
	Publish(ctx context.Context, events ...domain.TransactionCommitted) error
}

// Observer 操作結果觀測 (metrics)
type Observer interface {
	ObserveOperation(op, outcome string, elapsed time.Duration)
}

// AccountNumberAllocator 帳號配發器
type AccountNumberAllocator interface {
	Next(ctx context.Context) (string, error)
}

package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-bank-ledger/pkg/wal"
)

// MutexLedger 是一個使用 Mutex 實現的帳本
//
// 結構:
//
//	mu: 保護已 commit 的狀態；commit 時取寫鎖，讀取端永遠看不到半套轉帳
//	locks: 每個帳戶一把鎖，unit of work 依帳號遞增順序取得，commit 後才釋放
//	wal: Write-Ahead Log 實例，每個 unit 以一行寫入並 fsync 後才套用
type MutexLedger struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account
	emails   map[string]string
	history  map[string][]*domain.Transaction
	keys     map[string]*domain.Transaction
	sequence uint64
	lastTime time.Time

	locks *accountLocks
	wal   *wal.WAL
	now   func() time.Time
}

// Option 定義了 MutexLedger 的配置選項函數
type Option func(*MutexLedger)

// WithWAL 啟用 WAL (nil 代表純記憶體)
func WithWAL(w *wal.WAL) Option {
	return func(m *MutexLedger) {
		m.wal = w
	}
}

// WithClock 設定時間來源
func WithClock(now func() time.Time) Option {
	return func(m *MutexLedger) {
		m.now = now
	}
}

// NewMutexLedger 建立一個新的 MutexLedger 實例
//
// 回傳:
//
//	*MutexLedger: MutexLedger 實例
//	error: 初始化錯誤 (如 WAL 恢復失敗)
func NewMutexLedger(opts ...Option) (*MutexLedger, error) {
	ledger := &MutexLedger{
		accounts: make(map[string]*domain.Account),
		emails:   make(map[string]string),
		history:  make(map[string][]*domain.Transaction),
		keys:     make(map[string]*domain.Transaction),
		locks:    newAccountLocks(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(ledger)
	}
	if ledger.wal != nil {
		if err := ledger.recoverFromWAL(); err != nil {
			return nil, fmt.Errorf("recover ledger from wal: %w", err)
		}
	}
	return ledger, nil
}

// recoverFromWAL 從 WAL 檔案恢復帳本狀態
// 只有 NewMutexLedger 呼叫，無需 Lock (單執行緒)
func (m *MutexLedger) recoverFromWAL() error {
	return m.wal.ReadAll(func(raw json.RawMessage) error {
		var batch walBatch
		if err := json.Unmarshal(raw, &batch); err != nil {
			return err
		}
		m.apply(&batch)
		return nil
	})
}

// RunInTx 在單一 unit of work 內執行 fn
//
// fn 成功才 commit；任何錯誤 (含 commit 失敗) 都直接丟棄暫存的變更。
// 帳戶鎖在 commit 完成後才釋放。
func (m *MutexLedger) RunInTx(ctx context.Context, fn func(ctx context.Context, uow usecase.UnitOfWork) error) error {
	u := newUnit(m)
	defer u.release()

	if err := fn(ctx, u); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.commit(u)
}

// GetAccount 取得指定帳戶的快照
func (m *MutexLedger) GetAccount(ctx context.Context, number string) (*domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	account, ok := m.accounts[number]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return account.Clone(), nil
}

// GetAccountByEmail 以 Email 取得帳戶快照
func (m *MutexLedger) GetAccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	number, ok := m.emails[domain.NormalizeEmail(email)]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return m.accounts[number].Clone(), nil
}

// ListTransactions 依寫入順序新到舊列出紀錄
func (m *MutexLedger) ListTransactions(ctx context.Context, number string, limit, offset int) ([]*domain.Transaction, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	history := m.history[number]
	total := len(history)
	if limit <= 0 || offset < 0 || offset >= total {
		return []*domain.Transaction{}, int64(total), nil
	}
	out := make([]*domain.Transaction, 0, min(limit, total-offset))
	for i := total - 1 - offset; i >= 0 && len(out) < limit; i-- {
		cp := *history[i]
		out = append(out, &cp)
	}
	return out, int64(total), nil
}

// exists 檢查帳戶是否已 commit
func (m *MutexLedger) exists(number string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.accounts[number]
	return ok
}

// commit 將 unit 的變更寫入 WAL 後套用
func (m *MutexLedger) commit(u *unit) error {
	if len(u.created) == 0 && len(u.dirty) == 0 && len(u.appended) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, account := range u.created {
		if _, ok := m.accounts[account.Number]; ok {
			return domain.ErrAccountAlreadyExists
		}
		if _, ok := m.emails[account.Email]; ok {
			return domain.ErrEmailTaken
		}
	}

	now := m.now().UTC()
	if now.Before(m.lastTime) {
		now = m.lastTime
	}
	batch := &walBatch{
		ID:          uuid.New(),
		CommittedAt: now,
	}
	for _, account := range u.created {
		batch.Accounts = append(batch.Accounts, walAccount{
			Number:       account.Number,
			Name:         account.Name,
			Email:        account.Email,
			PasswordHash: account.PasswordHash,
		})
	}
	for number := range u.dirty {
		batch.Balances = append(batch.Balances, walBalance{Number: number, Balance: u.staged[number].Balance})
	}
	seq := m.sequence
	for _, tran := range u.appended {
		seq++
		batch.Records = append(batch.Records, toWALRecord(tran, seq))
	}

	if m.wal != nil {
		if err := m.wal.Append(batch); err != nil {
			return fmt.Errorf("append wal: %v: %w", err, domain.ErrUnavailable)
		}
	}
	m.apply(batch)

	// 回填給呼叫端
	for i, tran := range u.appended {
		tran.Sequence = batch.Records[i].Sequence
		tran.CreatedAt = now
	}
	for _, account := range u.created {
		account.CreatedAt = now
		account.UpdatedAt = now
	}
	return nil
}

// apply 套用一個已落地的 batch，呼叫端需持有寫鎖 (或處於恢復階段)
func (m *MutexLedger) apply(batch *walBatch) {
	for _, a := range batch.Accounts {
		account := domain.NewAccount(a.Number, a.Name, a.Email, a.PasswordHash)
		account.CreatedAt = batch.CommittedAt
		account.UpdatedAt = batch.CommittedAt
		m.accounts[account.Number] = account
		m.emails[account.Email] = account.Number
	}
	for _, b := range batch.Balances {
		account := m.accounts[b.Number]
		account.Balance = b.Balance
		account.UpdatedAt = batch.CommittedAt
	}
	for _, r := range batch.Records {
		tran := r.toDomain(batch.CommittedAt)
		m.history[tran.AccountNumber] = append(m.history[tran.AccountNumber], tran)
		if tran.IdempotencyKey != "" {
			m.keys[idempotencyIndex(tran.AccountNumber, tran.IdempotencyKey)] = tran
		}
		m.sequence = max(m.sequence, tran.Sequence)
	}
	m.lastTime = batch.CommittedAt
}

func idempotencyIndex(number, key string) string {
	return number + "\x00" + key
}

var _ usecase.Ledger = (*MutexLedger)(nil)

package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-bank-ledger/pkg/database"
)

// sqlAccount 對應資料庫的 accounts 表
type sqlAccount struct {
	ID           int64           `gorm:"primaryKey;autoIncrement"`
	Number       string          `gorm:"type:char(12);uniqueIndex;not null"`
	Name         string          `gorm:"type:varchar(100);not null"`
	Email        string          `gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash string          `gorm:"type:varchar(255);not null"`
	Balance      decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (*sqlAccount) TableName() string {
	return "accounts"
}

func (a *sqlAccount) toDomain() *domain.Account {
	return &domain.Account{
		Number:       a.Number,
		Name:         a.Name,
		Email:        a.Email,
		PasswordHash: a.PasswordHash,
		Balance:      a.Balance.Round(domain.CurrencyScale),
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

// sqlTransaction 對應資料庫的 transactions 表
// ID 自增，即為 Sequence
type sqlTransaction struct {
	ID                 int64           `gorm:"primaryKey;autoIncrement"`
	RefID              string          `gorm:"column:ref_id;type:varchar(36);uniqueIndex;not null"` // 對應 domain.Transaction.ID
	AccountNumber      string          `gorm:"type:char(12);not null;index:idx_account_created,priority:1;uniqueIndex:idx_account_request,priority:1"`
	Type               uint8           `gorm:"not null"`
	Amount             decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	BalanceAfter       decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	Description        string          `gorm:"type:varchar(255)"`
	CounterpartyNumber *string         `gorm:"type:char(12)"`
	IdempotencyKey     *string         `gorm:"type:varchar(128);uniqueIndex:idx_account_request,priority:2"`
	CreatedAt          time.Time       `gorm:"index:idx_account_created,priority:2"`
}

func (*sqlTransaction) TableName() string {
	return "transactions"
}

func newSQLTransaction(tran *domain.Transaction, createdAt time.Time) *sqlTransaction {
	row := &sqlTransaction{
		RefID:         tran.ID.String(),
		AccountNumber: tran.AccountNumber,
		Type:          uint8(tran.Type),
		Amount:        tran.Amount,
		BalanceAfter:  tran.BalanceAfter,
		Description:   tran.Description,
		CreatedAt:     createdAt,
	}
	if tran.CounterpartyNumber != "" {
		row.CounterpartyNumber = &tran.CounterpartyNumber
	}
	if tran.IdempotencyKey != "" {
		row.IdempotencyKey = &tran.IdempotencyKey
	}
	return row
}

func (r *sqlTransaction) toDomain() (*domain.Transaction, error) {
	id, err := uuid.Parse(r.RefID)
	if err != nil {
		return nil, fmt.Errorf("transaction %d has invalid ref_id %q: %w", r.ID, r.RefID, domain.ErrInvariantViolation)
	}
	tran := &domain.Transaction{
		ID:            id,
		Sequence:      uint64(r.ID),
		AccountNumber: r.AccountNumber,
		Type:          domain.TransactionType(r.Type),
		Amount:        r.Amount.Round(domain.CurrencyScale),
		BalanceAfter:  r.BalanceAfter.Round(domain.CurrencyScale),
		Description:   r.Description,
		CreatedAt:     r.CreatedAt.UTC(),
	}
	if r.CounterpartyNumber != nil {
		tran.CounterpartyNumber = *r.CounterpartyNumber
	}
	if r.IdempotencyKey != nil {
		tran.IdempotencyKey = *r.IdempotencyKey
	}
	return tran, nil
}

// SQLLedger 以關聯式資料庫 (MySQL / Postgres) 實作的帳本
//
// 每個 unit of work 是一個資料庫 transaction，帳戶以 SELECT ... FOR UPDATE
// 依帳號遞增順序鎖定。
type SQLLedger struct {
	db  *gorm.DB
	now func() time.Time
}

func NewSQLLedger(client *database.Client) *SQLLedger {
	return &SQLLedger{
		db: client.DB(),
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Migrate 建立或更新資料表
func (ledger *SQLLedger) Migrate(ctx context.Context) error {
	return ledger.db.WithContext(ctx).AutoMigrate(&sqlAccount{}, &sqlTransaction{})
}

func (ledger *SQLLedger) RunInTx(ctx context.Context, fn func(ctx context.Context, uow usecase.UnitOfWork) error) error {
	err := ledger.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &sqlUnit{tx: tx, now: ledger.now})
	})
	return translateError(err)
}

// GetAccount 取得帳戶餘額等資訊
func (ledger *SQLLedger) GetAccount(ctx context.Context, number string) (*domain.Account, error) {
	var row sqlAccount
	err := ledger.db.WithContext(ctx).Where("number = ?", number).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, translateError(err)
	}
	return row.toDomain(), nil
}

func (ledger *SQLLedger) GetAccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	var row sqlAccount
	err := ledger.db.WithContext(ctx).Where("email = ?", domain.NormalizeEmail(email)).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, translateError(err)
	}
	return row.toDomain(), nil
}

func (ledger *SQLLedger) ListTransactions(ctx context.Context, number string, limit, offset int) ([]*domain.Transaction, int64, error) {
	scope := func() *gorm.DB {
		return ledger.db.WithContext(ctx).Model(&sqlTransaction{}).Where("account_number = ?", number)
	}

	var total int64
	if err := scope().Count(&total).Error; err != nil {
		return nil, 0, translateError(err)
	}
	if limit <= 0 || offset < 0 || int64(offset) >= total {
		return []*domain.Transaction{}, total, nil
	}

	var rows []sqlTransaction
	if err := scope().Order("created_at DESC").Order("id DESC").Offset(offset).Limit(limit).Find(&rows).Error; err != nil {
		return nil, 0, translateError(err)
	}
	out := make([]*domain.Transaction, 0, len(rows))
	for i := range rows {
		tran, err := rows[i].toDomain()
		if err != nil {
			return nil, 0, err
		}
		out = append(out, tran)
	}
	return out, total, nil
}

// sqlUnit 綁定單一資料庫 transaction 的 unit of work
type sqlUnit struct {
	tx  *gorm.DB
	now func() time.Time
}

func (u *sqlUnit) CreateAccount(ctx context.Context, account *domain.Account) error {
	var taken int64
	if err := u.tx.Model(&sqlAccount{}).Where("email = ?", account.Email).Count(&taken).Error; err != nil {
		return err
	}
	if taken > 0 {
		return domain.ErrEmailTaken
	}
	return u.insertAccount(account)
}

// insertAccount 寫入帳戶，唯一索引衝突時分辨是 Email 還是帳號重複
//
// 並發註冊同一個 Email 時兩邊都可能通過前面的 Count，輸的一方在這裡才撞到索引。
func (u *sqlUnit) insertAccount(account *domain.Account) error {
	now := u.now()
	row := &sqlAccount{
		Number:       account.Number,
		Name:         account.Name,
		Email:        account.Email,
		PasswordHash: account.PasswordHash,
		Balance:      account.Balance,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	// 巢狀 Transaction 以 savepoint 包住 INSERT，失敗後外層 tx 仍可繼續查詢
	err := u.tx.Transaction(func(tx *gorm.DB) error {
		return tx.Create(row).Error
	})
	if err != nil {
		if !isDuplicate(err) {
			return err
		}
		// locking read 讀到最新 commit 的資料，不受快照影響
		var owners []string
		if cerr := u.tx.Model(&sqlAccount{}).Clauses(clause.Locking{Strength: "SHARE"}).
			Where("email = ?", account.Email).Limit(1).Pluck("number", &owners).Error; cerr != nil {
			return cerr
		}
		if len(owners) > 0 {
			return domain.ErrEmailTaken
		}
		return domain.ErrAccountAlreadyExists
	}
	account.CreatedAt = now
	account.UpdatedAt = now
	return nil
}

// LockAccounts 取得鎖定帳號 悲觀鎖
// 依帳號排序取得，兩個方向相反的轉帳不會互相等待
func (u *sqlUnit) LockAccounts(ctx context.Context, numbers ...string) (map[string]*domain.Account, error) {
	var rows []sqlAccount
	if err := u.tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("number IN ?", domain.LockOrder(numbers...)).
		Order("number").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]*domain.Account, len(rows))
	for i := range rows {
		out[rows[i].Number] = rows[i].toDomain()
	}
	return out, nil
}

func (u *sqlUnit) SaveBalance(ctx context.Context, account *domain.Account) error {
	if account.Balance.IsNegative() {
		return fmt.Errorf("negative balance for %s: %w", account.Number, domain.ErrInvariantViolation)
	}
	now := u.now()
	res := u.tx.Model(&sqlAccount{}).
		Where("number = ?", account.Number).
		Updates(map[string]any{"balance": account.Balance, "updated_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return fmt.Errorf("update balance of %s affected %d rows: %w", account.Number, res.RowsAffected, domain.ErrInvariantViolation)
	}
	account.UpdatedAt = now
	return nil
}

// AppendTransactions 建立交易紀錄
// idempotency key 的唯一索引衝突代表另一個相同請求剛 commit，回報 ErrConflict 讓整個 unit 重跑
func (u *sqlUnit) AppendTransactions(ctx context.Context, trans ...*domain.Transaction) error {
	now := u.now()
	for _, tran := range trans {
		row := newSQLTransaction(tran, now)
		if err := u.tx.Create(row).Error; err != nil {
			if isDuplicate(err) {
				return fmt.Errorf("append transaction %s: %w", tran.ID, domain.ErrConflict)
			}
			return err
		}
		tran.Sequence = uint64(row.ID)
		tran.CreatedAt = now
	}
	return nil
}

func (u *sqlUnit) FindByIdempotencyKey(ctx context.Context, accountNumber, key string) (*domain.Transaction, error) {
	var row sqlTransaction
	err := u.tx.Where("account_number = ? AND idempotency_key = ?", accountNumber, key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain()
}

var (
	_ usecase.Ledger     = (*SQLLedger)(nil)
	_ usecase.UnitOfWork = (*sqlUnit)(nil)
)

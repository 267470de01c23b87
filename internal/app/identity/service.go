package identity

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

// AccountDirectory 身分驗證層需要的核心操作
type AccountDirectory interface {
	OpenAccount(ctx context.Context, cmd usecase.OpenAccountCmd) (*domain.Account, error)
	Account(ctx context.Context, number string) (*domain.Account, error)
	AccountByEmail(ctx context.Context, email string) (*domain.Account, error)
}

// RegisterInput 註冊請求
type RegisterInput struct {
	Name     string `json:"name" validate:"required,min=2"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// LoginInput 登入請求
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Session 註冊 / 登入成功後回傳的帳戶與 token
type Session struct {
	Account          *domain.Account
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// FieldError 單一欄位的驗證錯誤
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError 請求內容驗證失敗
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Service 註冊、登入與 token 管理
type Service struct {
	accounts   AccountDirectory
	tokens     *TokenIssuer
	validate   *validator.Validate
	bcryptCost int
}

func NewService(accounts AccountDirectory, tokens *TokenIssuer, bcryptCost int) *Service {
	return &Service{
		accounts:   accounts,
		tokens:     tokens,
		validate:   NewValidator(),
		bcryptCost: bcryptCost,
	}
}

// NewValidator 建立以 json tag 作為欄位名稱的 validator
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate 驗證請求結構，失敗時回傳 *ValidationError
func (s *Service) Validate(v any) error {
	return ValidateStruct(s.validate, v)
}

// ValidateStruct 驗證請求結構，把 validator 的錯誤轉成人看得懂的訊息
func ValidateStruct(validate *validator.Validate, v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	label := strings.ToUpper(fe.Field()[:1]) + fe.Field()[1:]
	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "email":
		return "Invalid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", label, fe.Param())
	case "len":
		return fmt.Sprintf("%s must be %s digits", label, fe.Param())
	case "numeric":
		return label + " must contain only digits"
	default:
		return fmt.Sprintf("%s is invalid (%s)", label, fe.Tag())
	}
}

// Register 註冊新帳戶並簽發 token
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = domain.NormalizeEmail(in.Email)
	if err := s.Validate(in); err != nil {
		return nil, err
	}

	if _, err := s.accounts.AccountByEmail(ctx, in.Email); err == nil {
		return nil, domain.ErrEmailTaken
	} else if !errors.Is(err, domain.ErrAccountNotFound) {
		return nil, err
	}

	hash, err := HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	account, err := s.accounts.OpenAccount(ctx, usecase.OpenAccountCmd{Name: in.Name, Email: in.Email, PasswordHash: hash})
	if err != nil {
		return nil, err
	}
	return s.newSession(account)
}

// Login 以 Email + 密碼登入
// 帳戶不存在與密碼錯誤回傳同一個錯誤
func (s *Service) Login(ctx context.Context, in LoginInput) (*Session, error) {
	in.Email = domain.NormalizeEmail(in.Email)
	if err := s.Validate(in); err != nil {
		return nil, err
	}

	account, err := s.accounts.AccountByEmail(ctx, in.Email)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	ok, err := CheckPassword(account.PasswordHash, in.Password)
	if err != nil {
		return nil, fmt.Errorf("check password: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return s.newSession(account)
}

// Refresh 以 refresh token 換發新的 access token
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, time.Time, error) {
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return "", time.Time{}, err
	}
	account, err := s.accounts.Account(ctx, claims.AccountNumber)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return "", time.Time{}, ErrTokenInvalid
	}
	if err != nil {
		return "", time.Time{}, err
	}
	return s.tokens.IssueAccess(account.Number, account.Email)
}

// Authenticate 驗證 access token 並回傳帳號
func (s *Service) Authenticate(token string) (*Claims, error) {
	return s.tokens.VerifyAccess(token)
}

func (s *Service) newSession(account *domain.Account) (*Session, error) {
	access, accessExp, err := s.tokens.IssueAccess(account.Number, account.Email)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := s.tokens.IssueRefresh(account.Number)
	if err != nil {
		return nil, err
	}
	return &Session{
		Account:          account,
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

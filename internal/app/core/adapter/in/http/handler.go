package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-bank-ledger/internal/app/identity"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Core HTTP 層需要的帳本操作
type Core interface {
	Account(ctx context.Context, number string) (*domain.Account, error)
	Deposit(ctx context.Context, cmd usecase.BalanceCmd) (*usecase.BalanceResult, error)
	Withdraw(ctx context.Context, cmd usecase.BalanceCmd) (*usecase.BalanceResult, error)
	Transfer(ctx context.Context, cmd usecase.TransferCmd) (*usecase.TransferResult, error)
	ListTransactions(ctx context.Context, number string, page, pageSize int) (*usecase.TransactionPage, error)
}

// Sessions 註冊、登入與 token 換發
type Sessions interface {
	Authenticator
	Register(ctx context.Context, in identity.RegisterInput) (*identity.Session, error)
	Login(ctx context.Context, in identity.LoginInput) (*identity.Session, error)
	Refresh(ctx context.Context, refreshToken string) (string, time.Time, error)
}

// Handler REST API 處理器
type Handler struct {
	core     Core
	sessions Sessions
	validate *validator.Validate
	log      *slog.Logger
}

func NewHandler(core Core, sessions Sessions, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		core:     core,
		sessions: sessions,
		validate: identity.NewValidator(),
		log:      log,
	}
}

// NewRouter 建立 gin engine，metricsHandler 為 nil 時不掛 /metrics
func NewRouter(h *Handler, observer Observer, metricsHandler http.Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestContext(h.log, observer))
	if metricsHandler != nil {
		router.GET("/metrics", gin.WrapH(metricsHandler))
	}
	h.RegisterRoutes(router)
	router.NoRoute(func(c *gin.Context) {
		fail(c, http.StatusNotFound, "Route not found")
	})
	return router
}

// RegisterRoutes 註冊路由
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.GET("/health", h.Health)

	auth := api.Group("/auth")
	{
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
		auth.POST("/refresh", h.Refresh)
		auth.POST("/logout", h.Logout)
	}

	user := api.Group("/user", requireAuth(h.sessions))
	user.GET("/me", h.Me)

	trans := api.Group("/transactions", requireAuth(h.sessions))
	{
		trans.GET("", h.ListTransactions)
		trans.POST("/deposit", h.Deposit)
		trans.POST("/withdraw", h.Withdraw)
		trans.POST("/transfer", h.Transfer)
	}
}

type userView struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	AccountNumber string     `json:"accountNumber"`
	Balance       string     `json:"balance"`
	CreatedAt     *time.Time `json:"createdAt,omitempty"`
}

func toUserView(account *domain.Account) userView {
	return userView{
		ID:            account.Number,
		Name:          account.Name,
		Email:         account.Email,
		AccountNumber: account.Number,
		Balance:       account.Balance.StringFixed(domain.CurrencyScale),
	}
}

type transactionView struct {
	ID                     string    `json:"id"`
	AccountNumber          string    `json:"accountNumber"`
	Type                   string    `json:"type"`
	Amount                 string    `json:"amount"`
	BalanceAfter           string    `json:"balanceAfter"`
	Description            string    `json:"description"`
	RecipientAccountNumber string    `json:"recipientAccountNumber,omitempty"`
	CreatedAt              time.Time `json:"createdAt"`
}

func toTransactionView(tran *domain.Transaction) transactionView {
	return transactionView{
		ID:                     tran.ID.String(),
		AccountNumber:          tran.AccountNumber,
		Type:                   tran.Type.String(),
		Amount:                 tran.Amount.StringFixed(domain.CurrencyScale),
		BalanceAfter:           tran.BalanceAfter.StringFixed(domain.CurrencyScale),
		Description:            tran.Description,
		RecipientAccountNumber: tran.CounterpartyNumber,
		CreatedAt:              tran.CreatedAt,
	}
}

func (h *Handler) Health(c *gin.Context) {
	ok(c, http.StatusOK, "Ledger API is running", nil)
}

func (h *Handler) Register(c *gin.Context) {
	var req identity.RegisterInput
	if !h.bind(c, &req) {
		return
	}
	session, err := h.sessions.Register(c.Request.Context(), req)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	ok(c, http.StatusCreated, "Account created successfully", sessionView(session))
}

func (h *Handler) Login(c *gin.Context) {
	var req identity.LoginInput
	if !h.bind(c, &req) {
		return
	}
	session, err := h.sessions.Login(c.Request.Context(), req)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	ok(c, http.StatusOK, "Login successful", sessionView(session))
}

func sessionView(session *identity.Session) gin.H {
	return gin.H{
		"user":         toUserView(session.Account),
		"accessToken":  session.AccessToken,
		"refreshToken": session.RefreshToken,
	}
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

func (h *Handler) Refresh(c *gin.Context) {
	var req refreshRequest
	if !h.bind(c, &req) || !h.check(c, req) {
		return
	}
	access, _, err := h.sessions.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, identity.ErrTokenExpired) || errors.Is(err, identity.ErrTokenInvalid) {
			fail(c, http.StatusUnauthorized, "Invalid or expired refresh token")
			return
		}
		writeError(c, h.log, err)
		return
	}
	ok(c, http.StatusOK, "Token refreshed", gin.H{"accessToken": access})
}

// Logout token 為無狀態，由 client 丟棄即可
func (h *Handler) Logout(c *gin.Context) {
	ok(c, http.StatusOK, "Logged out successfully", nil)
}

func (h *Handler) Me(c *gin.Context) {
	account, err := h.core.Account(c.Request.Context(), accountNumber(c))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	view := toUserView(account)
	view.CreatedAt = &account.CreatedAt
	ok(c, http.StatusOK, "", view)
}

func (h *Handler) ListTransactions(c *gin.Context) {
	page := queryInt(c, "page", 1)
	limit := min(queryInt(c, "limit", defaultPageSize), maxPageSize)

	res, err := h.core.ListTransactions(c.Request.Context(), accountNumber(c), page, limit)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	trans := make([]transactionView, 0, len(res.Transactions))
	for _, tran := range res.Transactions {
		trans = append(trans, toTransactionView(tran))
	}
	ok(c, http.StatusOK, "", gin.H{
		"transactions": trans,
		"pagination": gin.H{
			"total":      res.Total,
			"page":       res.Page,
			"limit":      res.PageSize,
			"totalPages": res.TotalPages,
		},
	})
}

// queryInt 解析正整數 query，無效或非正數時回傳預設值
func queryInt(c *gin.Context, key string, def int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil || n < 1 {
		return def
	}
	return n
}

type amountRequest struct {
	Amount      *decimal.Decimal `json:"amount" validate:"required"`
	Description string           `json:"description"`
}

func (h *Handler) Deposit(c *gin.Context) {
	h.mutate(c, h.core.Deposit, "Deposit successful")
}

func (h *Handler) Withdraw(c *gin.Context) {
	h.mutate(c, h.core.Withdraw, "Withdrawal successful")
}

func (h *Handler) mutate(c *gin.Context, op func(context.Context, usecase.BalanceCmd) (*usecase.BalanceResult, error), message string) {
	var req amountRequest
	if !h.bind(c, &req) || !h.check(c, req) {
		return
	}
	res, err := op(c.Request.Context(), usecase.BalanceCmd{
		AccountNumber:  accountNumber(c),
		Amount:         *req.Amount,
		Description:    req.Description,
		IdempotencyKey: strings.TrimSpace(c.GetHeader(headerIdempotencyKey)),
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	ok(c, http.StatusOK, message, gin.H{
		"transaction": toTransactionView(res.Transaction),
		"newBalance":  res.Balance.StringFixed(domain.CurrencyScale),
		"replayed":    res.Replayed,
	})
}

type transferRequest struct {
	Amount                 *decimal.Decimal `json:"amount" validate:"required"`
	RecipientAccountNumber string           `json:"recipientAccountNumber" validate:"required,len=12,numeric"`
	Description            string           `json:"description"`
}

func (h *Handler) Transfer(c *gin.Context) {
	var req transferRequest
	if !h.bind(c, &req) || !h.check(c, req) {
		return
	}
	res, err := h.core.Transfer(c.Request.Context(), usecase.TransferCmd{
		SenderNumber:    accountNumber(c),
		RecipientNumber: req.RecipientAccountNumber,
		Amount:          *req.Amount,
		Description:     req.Description,
		IdempotencyKey:  strings.TrimSpace(c.GetHeader(headerIdempotencyKey)),
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	amount := res.Amount.StringFixed(domain.CurrencyScale)
	ok(c, http.StatusOK, fmt.Sprintf("Transfer of $%s to %s successful", amount, req.RecipientAccountNumber), gin.H{
		"newBalance":    res.SenderBalance.StringFixed(domain.CurrencyScale),
		"recipientName": res.RecipientName,
		"amount":        amount,
		"transaction":   toTransactionView(res.Transaction),
		"replayed":      res.Replayed,
	})
}

// bind 解析 JSON body
func (h *Handler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// check 以 validate tag 驗證請求內容，失敗時回 422
func (h *Handler) check(c *gin.Context, req any) bool {
	if err := identity.ValidateStruct(h.validate, req); err != nil {
		writeError(c, h.log, err)
		return false
	}
	return true
}

package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("invalid token")
)

const issuer = "go-bank-ledger"

// Claims access token 的內容
type Claims struct {
	AccountNumber string `json:"accountNumber"`
	Email         string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// TokenConfig JWT 設定；access 與 refresh 使用不同的密鑰
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// TokenIssuer 簽發與驗證 HS256 JWT
type TokenIssuer struct {
	cfg TokenConfig
	now func() time.Time
}

func NewTokenIssuer(cfg TokenConfig) *TokenIssuer {
	if cfg.AccessTTL == 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL == 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	return &TokenIssuer{cfg: cfg, now: time.Now}
}

// IssueAccess 簽發 access token
//
// 回傳:
//
//	string: token
//	time.Time: 到期時間
//	error: 簽章錯誤
func (t *TokenIssuer) IssueAccess(accountNumber, email string) (string, time.Time, error) {
	return t.issue(t.cfg.AccessSecret, t.cfg.AccessTTL, accountNumber, email)
}

// IssueRefresh 簽發 refresh token，只帶帳號
func (t *TokenIssuer) IssueRefresh(accountNumber string) (string, time.Time, error) {
	return t.issue(t.cfg.RefreshSecret, t.cfg.RefreshTTL, accountNumber, "")
}

func (t *TokenIssuer) issue(secret string, ttl time.Duration, accountNumber, email string) (string, time.Time, error) {
	now := t.now()
	expiresAt := now.Add(ttl)
	claims := Claims{
		AccountNumber: accountNumber,
		Email:         email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   accountNumber,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// VerifyAccess 驗證 access token
func (t *TokenIssuer) VerifyAccess(token string) (*Claims, error) {
	return t.verify(t.cfg.AccessSecret, token)
}

// VerifyRefresh 驗證 refresh token
func (t *TokenIssuer) VerifyRefresh(token string) (*Claims, error) {
	return t.verify(t.cfg.RefreshSecret, token)
}

func (t *TokenIssuer) verify(secret, token string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	default:
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if claims.AccountNumber == "" {
		return nil, ErrTokenInvalid
	}
	return &claims, nil
}

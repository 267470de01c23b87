package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
)

func newIssuer() *TokenIssuer {
	return NewTokenIssuer(TokenConfig{AccessSecret: "access", RefreshSecret: "refresh"})
}

func newService(t *testing.T) *Service {
	t.Helper()
	ledger, err := memory.NewMutexLedger()
	require.NoError(t, err)
	return NewService(usecase.NewCoreUseCase(ledger), newIssuer(), bcrypt.MinCost)
}

func TestTokenRoundTrip(t *testing.T) {
	issuer := newIssuer()

	token, exp, err := issuer.IssueAccess("111111111111", "a@example.com")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), exp, 5*time.Second)

	claims, err := issuer.VerifyAccess(token)
	require.NoError(t, err)
	assert.Equal(t, "111111111111", claims.AccountNumber)
	assert.Equal(t, "a@example.com", claims.Email)

	// access token 不能當 refresh token 用
	_, err = issuer.VerifyRefresh(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = issuer.VerifyAccess("not-a-token")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenExpired(t *testing.T) {
	issuer := newIssuer()
	issuer.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, _, err := issuer.IssueAccess("111111111111", "")
	require.NoError(t, err)

	issuer.now = time.Now
	_, err = issuer.VerifyAccess(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("correct horse", bcrypt.MinCost)
	require.NoError(t, err)
	ok, err := CheckPassword(hash, "correct horse")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = CheckPassword(hash, "wrong")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRegisterLoginRefresh(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	session, err := svc.Register(ctx, RegisterInput{Name: " Alice ", Email: "Alice@Example.com", Password: "password1"})
	require.NoError(t, err)
	assert.Equal(t, "Alice", session.Account.Name)
	assert.Equal(t, "alice@example.com", session.Account.Email)
	assert.Len(t, session.Account.Number, 12)
	assert.NotEqual(t, "password1", session.Account.PasswordHash)

	claims, err := svc.Authenticate(session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, session.Account.Number, claims.AccountNumber)

	_, err = svc.Register(ctx, RegisterInput{Name: "Other", Email: "alice@example.com", Password: "password1"})
	assert.ErrorIs(t, err, domain.ErrEmailTaken)

	login, err := svc.Login(ctx, LoginInput{Email: "ALICE@example.com", Password: "password1"})
	require.NoError(t, err)
	assert.Equal(t, session.Account.Number, login.Account.Number)

	_, err = svc.Login(ctx, LoginInput{Email: "alice@example.com", Password: "nope"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, LoginInput{Email: "bob@example.com", Password: "password1"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	access, _, err := svc.Refresh(ctx, login.RefreshToken)
	require.NoError(t, err)
	claims, err = svc.Authenticate(access)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", claims.Email)

	_, _, err = svc.Refresh(ctx, login.AccessToken)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestRegisterValidation(t *testing.T) {
	svc := newService(t)
	_, err := svc.Register(context.Background(), RegisterInput{Name: "A", Email: "nope", Password: "short"})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.ElementsMatch(t, []FieldError{
		{Field: "name", Message: "Name must be at least 2 characters"},
		{Field: "email", Message: "Invalid email address"},
		{Field: "password", Message: "Password must be at least 8 characters"},
	}, verr.Fields)
}

func TestAccountNumberContext(t *testing.T) {
	_, ok := AccountNumberFrom(context.Background())
	assert.False(t, ok)

	number, ok := AccountNumberFrom(WithAccountNumber(context.Background(), "111111111111"))
	assert.True(t, ok)
	assert.Equal(t, "111111111111", number)
}

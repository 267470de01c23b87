package identity

import "context"

type accountKey struct{}

// WithAccountNumber 把已驗證的帳號放進 context
func WithAccountNumber(ctx context.Context, number string) context.Context {
	return context.WithValue(ctx, accountKey{}, number)
}

// AccountNumberFrom 取出已驗證的帳號
func AccountNumberFrom(ctx context.Context) (string, bool) {
	number, ok := ctx.Value(accountKey{}).(string)
	return number, ok && number != ""
}

package usecase

import (
	"context"
	"math/rand/v2"
	"strconv"
)

const (
	minAccountNumber = 100_000_000_000
	maxAccountNumber = 999_999_999_999
)

// RandomAllocator 隨機產生首位不為 0 的 12 位帳號，碰撞由 OpenAccount 重試
type RandomAllocator struct {
	intN func(n int64) int64
}

func NewRandomAllocator() *RandomAllocator {
	return &RandomAllocator{intN: rand.Int64N}
}

func (a *RandomAllocator) Next(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	n := minAccountNumber + a.intN(maxAccountNumber-minAccountNumber+1)
	return strconv.FormatInt(n, 10), nil
}

package memory

import (
	"context"
	"sync"
)

// accountLocks 每個帳戶一把可被 context 取消的鎖
type accountLocks struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func newAccountLocks() *accountLocks {
	return &accountLocks{locks: make(map[string]chan struct{})}
}

func (l *accountLocks) get(number string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.locks[number]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[number] = ch
	}
	return ch
}

// acquire 等待帳戶鎖，ctx 取消時放棄
func (l *accountLocks) acquire(ctx context.Context, number string) error {
	select {
	case l.get(number) <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *accountLocks) release(number string) {
	<-l.get(number)
}

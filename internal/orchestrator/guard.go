package orchestrator

import "sync"

// keyedGuard 保证同一项目同一时刻只有一个在途操作。不排队：
// 拿不到名额的调用方直接收到 busy 信号。
type keyedGuard struct {
	mu       sync.Mutex
	inflight map[string]struct{}
}

func newKeyedGuard() *keyedGuard {
	return &keyedGuard{inflight: make(map[string]struct{})}
}

// acquire 尝试占用指定键，返回是否成功。
func (g *keyedGuard) acquire(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.inflight[key]; busy {
		return false
	}
	g.inflight[key] = struct{}{}
	return true
}

// release 释放指定键。
func (g *keyedGuard) release(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inflight, key)
}

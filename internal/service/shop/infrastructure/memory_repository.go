package infrastructure

import (
	"context"
	"sync"
	"time"

	"storefront/internal/service/shop/domain"
)

// MemoryLedgerRepository 在未启用 MySQL 时使用，进程重启后数据丢失。
type MemoryLedgerRepository struct {
	mu          sync.Mutex
	orders      []domain.Order
	codes       []domain.DiscountCode
	interval    int
	hasInterval bool
}

func NewMemoryLedgerRepository() *MemoryLedgerRepository {
	return &MemoryLedgerRepository{}
}

func (r *MemoryLedgerRepository) LoadOrders(ctx context.Context) ([]domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Order, len(r.orders))
	copy(out, r.orders)
	return out, nil
}

func (r *MemoryLedgerRepository) SaveCheckout(ctx context.Context, order *domain.Order, issued *domain.DiscountCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o := *order
	o.Items = append([]domain.CartItem(nil), order.Items...)
	r.orders = append(r.orders, o)
	if issued != nil {
		r.upsertCode(*issued)
	}
	return nil
}

func (r *MemoryLedgerRepository) LoadDiscountCodes(ctx context.Context) ([]domain.DiscountCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.DiscountCode, len(r.codes))
	copy(out, r.codes)
	return out, nil
}

// SaveDiscountCode 按 code upsert，保持首次写入的顺序。
func (r *MemoryLedgerRepository) SaveDiscountCode(ctx context.Context, code *domain.DiscountCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upsertCode(*code)
	return nil
}

func (r *MemoryLedgerRepository) upsertCode(code domain.DiscountCode) {
	for i := range r.codes {
		if r.codes[i].Code == code.Code {
			r.codes[i] = code
			return
		}
	}
	r.codes = append(r.codes, code)
}

func (r *MemoryLedgerRepository) LoadDiscountInterval(ctx context.Context) (int, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.interval, r.hasInterval, nil
}

func (r *MemoryLedgerRepository) SaveDiscountInterval(ctx context.Context, interval int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.interval = interval
	r.hasInterval = true
	return nil
}

// MemorySessionRepository 未启用 Redis 时使用，与 Redis 实现一样每次写入刷新 TTL。
type MemorySessionRepository struct {
	mu       sync.Mutex
	sessions map[string]memorySession
	ttl      time.Duration
	now      func() time.Time
}

type memorySession struct {
	session   *domain.Session
	expiresAt time.Time
}

// NewMemorySessionRepository ttl 为 0 表示永不过期
func NewMemorySessionRepository(ttl time.Duration) *MemorySessionRepository {
	return &MemorySessionRepository{
		sessions: make(map[string]memorySession),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (r *MemorySessionRepository) Get(ctx context.Context, id string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if !entry.expiresAt.IsZero() && !r.now().Before(entry.expiresAt) {
		delete(r.sessions, id)
		return nil, domain.ErrSessionNotFound
	}
	return entry.session.Clone(), nil
}

func (r *MemorySessionRepository) Save(ctx context.Context, session *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry := memorySession{session: session.Clone()}
	if r.ttl > 0 {
		entry.expiresAt = r.now().Add(r.ttl)
	}
	r.sessions[session.ID] = entry
	return nil
}

func (r *MemorySessionRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

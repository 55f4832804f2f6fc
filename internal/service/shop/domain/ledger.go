// internal/service/shop/domain/ledger.go
package domain

import (
	"time"

	"github.com/google/uuid"
)

// DefaultDiscountInterval 每两笔订单奖励一次。
const DefaultDiscountInterval = 2

// Ledger 是商店的核心状态：目录、用户、会话购物车、折扣码注册表、订单日志。
// 所有操作同步且不做 I/O；Ledger 本身不加锁，由应用层串行化访问。
type Ledger struct {
	catalog  *Catalog
	users    *UserDirectory
	registry *DiscountRegistry
	orders   *OrderLog
	sessions map[string]*Session
	interval int
	rule     IssuanceRule

	newID func() string
	now   func() time.Time
}

type ledgerOptions struct {
	interval   int
	percentage int
	rule       IssuanceRule
	newID      func() string
	newCode    CodeGenerator
	now        func() time.Time
}

// LedgerOption 配置 Ledger。
type LedgerOption func(*ledgerOptions)

func WithDiscountInterval(n int) LedgerOption {
	return func(o *ledgerOptions) { o.interval = n }
}

func WithDiscountPercentage(p int) LedgerOption {
	return func(o *ledgerOptions) { o.percentage = p }
}

func WithIssuanceRule(rule IssuanceRule) LedgerOption {
	return func(o *ledgerOptions) { o.rule = rule }
}

func WithIDGenerator(fn func() string) LedgerOption {
	return func(o *ledgerOptions) { o.newID = fn }
}

func WithCodeGenerator(fn CodeGenerator) LedgerOption {
	return func(o *ledgerOptions) { o.newCode = fn }
}

func WithClock(fn func() time.Time) LedgerOption {
	return func(o *ledgerOptions) { o.now = fn }
}

func NewLedger(catalog *Catalog, users *UserDirectory, opts ...LedgerOption) *Ledger {
	o := ledgerOptions{
		interval:   DefaultDiscountInterval,
		percentage: DefaultDiscountPercentage,
		rule:       MilestoneRule{},
		newID:      func() string { return uuid.New().String() },
		newCode:    RandomCode,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.interval < 0 {
		o.interval = 0
	}
	// 越界值在配置校验阶段已被拒绝
	if o.percentage < 0 || o.percentage > 100 {
		o.percentage = DefaultDiscountPercentage
	}
	return &Ledger{
		catalog:  catalog,
		users:    users,
		registry: NewDiscountRegistry(o.percentage, o.newCode, o.now),
		orders:   NewOrderLog(),
		sessions: make(map[string]*Session),
		interval: o.interval,
		rule:     o.rule,
		newID:    o.newID,
		now:      o.now,
	}
}

// --- 会话与认证 ---

func (l *Ledger) session(id string) *Session {
	s, ok := l.sessions[id]
	if !ok {
		s = NewSession(id)
		l.sessions[id] = s
	}
	return s
}

func (l *Ledger) touch(s *Session) {
	s.UpdatedAt = l.now()
}

func (l *Ledger) HasSession(id string) bool {
	_, ok := l.sessions[id]
	return ok
}

// AttachSession 装载从仓储读回的会话，已存在则覆盖。
func (l *Ledger) AttachSession(s *Session) {
	restored := s.Clone()
	if restored.Cart == nil {
		restored.Cart = NewCart()
	}
	l.sessions[restored.ID] = restored
}

// SessionSnapshot 返回会话副本，供持久化使用。
func (l *Ledger) SessionSnapshot(id string) *Session {
	return l.session(id).Clone()
}

func (l *Ledger) DropSession(id string) {
	delete(l.sessions, id)
}

// Login 成功时把用户写入会话；失败时返回 ErrInvalidCredentials，会话不变。
func (l *Ledger) Login(sessionID, email, password string) (User, error) {
	u, ok := l.users.FindUser(email, password)
	if !ok {
		return User{}, ErrInvalidCredentials
	}
	s := l.session(sessionID)
	s.UserID = u.ID
	l.touch(s)
	return u, nil
}

func (l *Ledger) Logout(sessionID string) {
	s := l.session(sessionID)
	s.UserID = ""
	l.touch(s)
}

func (l *Ledger) CurrentUser(sessionID string) (User, bool) {
	s, ok := l.sessions[sessionID]
	if !ok || s.UserID == "" {
		return User{}, false
	}
	return l.users.FindByID(s.UserID)
}

// --- 商品 ---

func (l *Ledger) Products() []Product {
	return l.catalog.Products()
}

// --- 购物车 ---

// Cart 只读，不存在的会话返回空购物车且不会被创建。
func (l *Ledger) Cart(sessionID string) Cart {
	s, ok := l.sessions[sessionID]
	if !ok {
		return NewCart().Clone()
	}
	return s.Cart.Clone()
}

// AddItem 未知商品不修改购物车，返回 ErrProductNotFound 由调用方决定是否忽略。
func (l *Ledger) AddItem(sessionID, productID string, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	product, ok := l.catalog.Find(productID)
	if !ok {
		return ErrProductNotFound
	}
	s := l.session(sessionID)
	s.Cart.add(product, quantity, l.newID)
	l.touch(s)
	return nil
}

func (l *Ledger) RemoveItem(sessionID, itemID string) {
	s := l.session(sessionID)
	s.Cart.remove(itemID)
	l.touch(s)
}

func (l *Ledger) UpdateQuantity(sessionID, itemID string, quantity int) {
	s := l.session(sessionID)
	s.Cart.setQuantity(itemID, quantity)
	l.touch(s)
}

func (l *Ledger) ClearCart(sessionID string) {
	s := l.session(sessionID)
	s.Cart.clear()
	l.touch(s)
}

// UsableDiscount 检查折扣码能否用于该会话，不做任何修改。
func (l *Ledger) UsableDiscount(sessionID, code string) (DiscountCode, bool) {
	dc, ok := l.registry.Lookup(code)
	if !ok {
		return DiscountCode{}, false
	}
	userID := ""
	if s, ok := l.sessions[sessionID]; ok {
		userID = s.UserID
	}
	if !dc.UsableBy(userID) {
		return DiscountCode{}, false
	}
	return dc, true
}

// ApplyDiscount 折扣码全局只能成功使用一次。
// 失败时不做任何修改。
func (l *Ledger) ApplyDiscount(sessionID, code string) bool {
	dc, ok := l.UsableDiscount(sessionID, code)
	if !ok {
		return false
	}
	s := l.session(sessionID)
	s.Cart.applyDiscount(dc)
	l.registry.MarkUsed(code)
	l.touch(s)
	return true
}

// RevertDiscount 用快照覆盖注册表中的记录，只用于持久化失败后的回滚。
func (l *Ledger) RevertDiscount(dc DiscountCode) {
	l.registry.put(dc)
}

// --- 结账 ---

// PrepareCheckout 校验购物车，生成待提交的订单和奖励码，不修改任何状态。
// 用户订单数按追加新订单之后计算，因此第 N 笔订单本身触发奖励。
func (l *Ledger) PrepareCheckout(sessionID string) (CheckoutResult, error) {
	res := CheckoutResult{State: CheckoutValidating}
	s, ok := l.sessions[sessionID]
	if !ok || s.Cart.IsEmpty() {
		res.State = CheckoutRejected
		return res, ErrEmptyCart
	}

	res.State = CheckoutCommitting
	res.Order = newOrderFromCart(l.newID(), s.Cart, s.UserID, l.now())
	if s.UserID != "" {
		res.UserOrderCount = l.orders.CountForUser(s.UserID) + 1
		issue, err := l.rule.ShouldIssue(res.UserOrderCount, l.interval)
		if err != nil {
			res.IssuanceErr = err
		} else if issue {
			dc := l.registry.Draft(s.UserID)
			res.IssuedCode = &dc
		}
	}
	return res, nil
}

// CommitCheckout 把 PrepareCheckout 的结果写入订单日志和注册表，并清空购物车。
// 两步之间调用方必须持有同一把锁。
func (l *Ledger) CommitCheckout(sessionID string, res CheckoutResult) CheckoutResult {
	l.orders.Append(res.Order)
	if res.IssuedCode != nil {
		l.registry.put(*res.IssuedCode)
	}
	s := l.session(sessionID)
	s.Cart.clear()
	l.touch(s)
	res.State = CheckoutDone
	return res
}

// Checkout 驱动 Validating -> Committing -> Done 的状态流转。
func (l *Ledger) Checkout(sessionID string) (CheckoutResult, error) {
	res, err := l.PrepareCheckout(sessionID)
	if err != nil {
		return res, err
	}
	return l.CommitCheckout(sessionID, res), nil
}

// --- 折扣码 ---

func (l *Ledger) IssueDiscount(userID string) DiscountCode {
	return l.registry.Issue(userID)
}

func (l *Ledger) LookupDiscount(code string) (DiscountCode, bool) {
	return l.registry.Lookup(code)
}

func (l *Ledger) FindDiscount(code string) (DiscountCode, bool) {
	return l.registry.Find(code)
}

func (l *Ledger) ToggleDiscount(code string) (DiscountCode, error) {
	dc, ok := l.registry.ToggleDisabled(code)
	if !ok {
		return DiscountCode{}, ErrDiscountCodeNotFound
	}
	return dc, nil
}

func (l *Ledger) DiscountCodes() []DiscountCode {
	return l.registry.All()
}

func (l *Ledger) CodesForUser(userID string) []DiscountCode {
	return l.registry.CodesForUser(userID)
}

func (l *Ledger) SetDiscountInterval(n int) error {
	if n < 0 {
		return ErrInvalidInterval
	}
	l.interval = n
	return nil
}

func (l *Ledger) DiscountInterval() int {
	return l.interval
}

// --- 订单与统计 ---

func (l *Ledger) Orders() []Order {
	return l.orders.All()
}

func (l *Ledger) OrderCount() int {
	return l.orders.Len()
}

func (l *Ledger) UserOrderCount(userID string) int {
	return l.orders.CountForUser(userID)
}

func (l *Ledger) Stats() Stats {
	return l.orders.Stats()
}

// Restore 用持久化数据重建订单日志和折扣码注册表。
func (l *Ledger) Restore(orders []Order, codes []DiscountCode) {
	l.orders.restore(orders)
	l.registry.restore(codes)
}

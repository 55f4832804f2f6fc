package application

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"storefront/internal/pkg/logger"
	"storefront/internal/pkg/metrics"
	"storefront/internal/service/shop/domain"
	"storefront/internal/service/shop/domain/port"
)

// ShopService 定义了商店对外提供的所有业务用例。
// 一把互斥锁串行化对 Ledger 的全部读写；先持久化再修改内存，事件在锁外发布。
// 会话以仓储为准：每次调用读入，调用结束移出 Ledger。
type ShopService struct {
	mu        sync.Mutex
	ledger    *domain.Ledger
	repo      domain.LedgerRepository
	sessions  domain.SessionRepository
	publisher port.EventPublisher
	tracer    trace.Tracer
}

// NewShopService publisher 为 nil 时不发布事件
func NewShopService(
	ledger *domain.Ledger,
	repo domain.LedgerRepository,
	sessions domain.SessionRepository,
	publisher port.EventPublisher,
	tracer trace.Tracer,
) *ShopService {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &ShopService{
		ledger:    ledger,
		repo:      repo,
		sessions:  sessions,
		publisher: publisher,
		tracer:    tracer,
	}
}

// Restore 启动时从仓储重建订单日志、折扣码和发放间隔。
func (s *ShopService) Restore(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "app.Restore")
	defer span.End()

	orders, err := s.repo.LoadOrders(ctx)
	if err != nil {
		return s.fail(span, errors.Wrap(err, "load orders"))
	}
	codes, err := s.repo.LoadDiscountCodes(ctx)
	if err != nil {
		return s.fail(span, errors.Wrap(err, "load discount codes"))
	}
	interval, found, err := s.repo.LoadDiscountInterval(ctx)
	if err != nil {
		return s.fail(span, errors.Wrap(err, "load discount interval"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger.Restore(orders, codes)
	if found {
		if err := s.ledger.SetDiscountInterval(interval); err != nil {
			return s.fail(span, err)
		}
	}

	logger.Ctx(ctx).Info().
		Int("orders", len(orders)).
		Int("discount_codes", len(codes)).
		Int("discount_interval", s.ledger.DiscountInterval()).
		Msg("✅ Ledger restored from repository")
	return nil
}

// --- 会话与认证 ---

func (s *ShopService) Login(ctx context.Context, sessionID string, req *LoginRequest) (domain.User, error) {
	ctx, span := s.tracer.Start(ctx, "app.Login")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()
	release, err := s.acquireSession(ctx, sessionID)
	if err != nil {
		return domain.User{}, s.fail(span, err)
	}
	defer release()

	user, err := s.ledger.Login(sessionID, req.Email, req.Password)
	if err != nil {
		span.RecordError(err)
		logger.Ctx(ctx).Warn().Str("email", req.Email).Msg("login rejected")
		return domain.User{}, err
	}
	span.SetAttributes(attribute.String("user.id", user.ID))
	if err := s.saveSession(ctx, sessionID); err != nil {
		return domain.User{}, s.fail(span, err)
	}
	logger.Ctx(ctx).Info().Str("user.id", user.ID).Msg("user logged in")
	return user, nil
}

func (s *ShopService) Logout(ctx context.Context, sessionID string) error {
	ctx, span := s.tracer.Start(ctx, "app.Logout")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()
	release, err := s.acquireSession(ctx, sessionID)
	if err != nil {
		return s.fail(span, err)
	}
	defer release()
	s.ledger.Logout(sessionID)
	if err := s.saveSession(ctx, sessionID); err != nil {
		return s.fail(span, err)
	}
	return nil
}

// CurrentUser 未登录时返回 false。
func (s *ShopService) CurrentUser(ctx context.Context, sessionID string) (domain.User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	release, err := s.acquireSession(ctx, sessionID)
	if err != nil {
		return domain.User{}, false, err
	}
	defer release()
	u, ok := s.ledger.CurrentUser(sessionID)
	return u, ok, nil
}

// --- 商品与购物车 ---

func (s *ShopService) Products(ctx context.Context) []domain.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Products()
}

func (s *ShopService) Cart(ctx context.Context, sessionID string) (domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	release, err := s.acquireSession(ctx, sessionID)
	if err != nil {
		return domain.Cart{}, err
	}
	defer release()
	return s.ledger.Cart(sessionID), nil
}

func (s *ShopService) AddItem(ctx context.Context, sessionID string, req *AddItemRequest) (domain.Cart, error) {
	return s.mutateCart(ctx, "app.AddItem", sessionID, func(span trace.Span) error {
		span.SetAttributes(
			attribute.String("product.id", req.ProductID),
			attribute.Int("quantity", req.Quantity),
		)
		return s.ledger.AddItem(sessionID, req.ProductID, req.Quantity)
	})
}

func (s *ShopService) RemoveItem(ctx context.Context, sessionID, itemID string) (domain.Cart, error) {
	return s.mutateCart(ctx, "app.RemoveItem", sessionID, func(span trace.Span) error {
		span.SetAttributes(attribute.String("cart.item_id", itemID))
		s.ledger.RemoveItem(sessionID, itemID)
		return nil
	})
}

func (s *ShopService) UpdateQuantity(ctx context.Context, sessionID string, req *UpdateQuantityRequest) (domain.Cart, error) {
	return s.mutateCart(ctx, "app.UpdateQuantity", sessionID, func(span trace.Span) error {
		span.SetAttributes(
			attribute.String("cart.item_id", req.ItemID),
			attribute.Int("quantity", req.Quantity),
		)
		s.ledger.UpdateQuantity(sessionID, req.ItemID, req.Quantity)
		return nil
	})
}

func (s *ShopService) ClearCart(ctx context.Context, sessionID string) (domain.Cart, error) {
	return s.mutateCart(ctx, "app.ClearCart", sessionID, func(trace.Span) error {
		s.ledger.ClearCart(sessionID)
		return nil
	})
}

// ApplyDiscount 折扣码不可用时返回 ErrInvalidDiscountCode，购物车与注册表均不变。
// 已使用标记先落库再改内存；会话写入失败时回滚内存并尽力恢复仓储中的标记。
func (s *ShopService) ApplyDiscount(ctx context.Context, sessionID string, req *ApplyDiscountRequest) (domain.Cart, error) {
	ctx, span := s.tracer.Start(ctx, "app.ApplyDiscount")
	defer span.End()
	span.SetAttributes(
		attribute.String("session.id", sessionID),
		attribute.String("discount.code", req.Code),
	)

	s.mu.Lock()
	defer s.mu.Unlock()
	release, err := s.acquireSession(ctx, sessionID)
	if err != nil {
		return domain.Cart{}, s.fail(span, err)
	}
	defer release()

	dc, ok := s.ledger.UsableDiscount(sessionID, req.Code)
	if !ok {
		metrics.DiscountApplications.WithLabelValues("rejected").Inc()
		span.RecordError(domain.ErrInvalidDiscountCode)
		return domain.Cart{}, domain.ErrInvalidDiscountCode
	}
	used := dc
	used.IsUsed = true
	if err := s.saveDiscountCode(ctx, used); err != nil {
		return domain.Cart{}, s.fail(span, err)
	}

	prev := s.ledger.SessionSnapshot(sessionID)
	s.ledger.ApplyDiscount(sessionID, req.Code)
	if err := s.saveSession(ctx, sessionID); err != nil {
		s.ledger.AttachSession(prev)
		s.ledger.RevertDiscount(dc)
		if rbErr := s.saveDiscountCode(ctx, dc); rbErr != nil {
			logger.Ctx(ctx).Error().Err(rbErr).Str("discount.code", dc.Code).Msg("failed to release discount code after session write failure")
		}
		return domain.Cart{}, s.fail(span, err)
	}

	metrics.DiscountApplications.WithLabelValues("accepted").Inc()
	metrics.CartMutations.WithLabelValues("app.ApplyDiscount").Inc()
	return s.ledger.Cart(sessionID), nil
}

// mutateCart 加锁、读入会话、执行修改、写回会话。
// 购物车只存在于会话中，写回失败时丢弃内存中的修改即可。
func (s *ShopService) mutateCart(ctx context.Context, op, sessionID string, fn func(trace.Span) error) (domain.Cart, error) {
	ctx, span := s.tracer.Start(ctx, op)
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sessionID))

	s.mu.Lock()
	defer s.mu.Unlock()
	release, err := s.acquireSession(ctx, sessionID)
	if err != nil {
		return domain.Cart{}, s.fail(span, err)
	}
	defer release()
	if err := fn(span); err != nil {
		span.RecordError(err)
		return domain.Cart{}, err
	}
	if err := s.saveSession(ctx, sessionID); err != nil {
		return domain.Cart{}, s.fail(span, err)
	}
	metrics.CartMutations.WithLabelValues(op).Inc()
	return s.ledger.Cart(sessionID), nil
}

// --- 结账 ---

// Checkout 提交订单；仓储写入成功后才修改内存，在锁外发布领域事件。
func (s *ShopService) Checkout(ctx context.Context, sessionID string) (*CheckoutResponse, error) {
	ctx, span := s.tracer.Start(ctx, "app.Checkout")
	defer span.End()

	res, err := s.commitCheckout(ctx, sessionID)
	if err != nil {
		return nil, s.fail(span, err)
	}

	order := res.Order
	span.SetAttributes(
		attribute.String("order.id", order.ID),
		attribute.String("order.final_total", order.FinalTotal.String()),
		attribute.Int("user.order_count", res.UserOrderCount),
	)
	metrics.ObserveOrder(order.FinalTotal.InexactFloat64(), order.DiscountAmount.InexactFloat64())
	logger.Ctx(ctx).Info().
		Str("order.id", order.ID).
		Str("user.id", order.UserID).
		Str("final_total", order.FinalTotal.String()).
		Str("discount_code", order.DiscountCode).
		Msg("✅ Order placed")

	if err := s.publisher.PublishOrderPlaced(ctx, domain.NewOrderPlaced(order)); err != nil {
		span.RecordError(err)
		logger.Ctx(ctx).Error().Err(err).Str("order.id", order.ID).Msg("failed to publish OrderPlaced")
	}
	if res.IssuedCode != nil {
		span.AddEvent("milestone discount issued", trace.WithAttributes(attribute.String("discount.code", res.IssuedCode.Code)))
		s.afterIssue(ctx, *res.IssuedCode, domain.IssueReasonMilestone)
	}

	return &CheckoutResponse{
		Order:          order,
		IssuedCode:     res.IssuedCode,
		UserOrderCount: res.UserOrderCount,
	}, nil
}

// commitCheckout 的写入顺序：清空后的会话 -> 订单与奖励码（同一事务）-> 内存。
// 订单写入失败时恢复会话，内存从未被修改，客户端可以直接重试。
func (s *ShopService) commitCheckout(ctx context.Context, sessionID string) (domain.CheckoutResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	release, err := s.acquireSession(ctx, sessionID)
	if err != nil {
		return domain.CheckoutResult{}, err
	}
	defer release()

	res, err := s.ledger.PrepareCheckout(sessionID)
	if err != nil {
		metrics.CheckoutRejected.WithLabelValues("empty_cart").Inc()
		return res, err
	}
	if res.IssuanceErr != nil {
		logger.Ctx(ctx).Error().Err(res.IssuanceErr).Str("order.id", res.Order.ID).Msg("issuance rule evaluation failed, no reward issued")
	}

	prev := s.ledger.SessionSnapshot(sessionID)
	cleared := prev.Clone()
	cleared.Cart = domain.NewCart()
	cleared.UpdatedAt = res.Order.CreatedAt
	if err := s.writeSession(ctx, cleared); err != nil {
		return res, err
	}

	if err := s.repo.SaveCheckout(ctx, &res.Order, res.IssuedCode); err != nil {
		metrics.PersistenceErrors.WithLabelValues("ledger").Inc()
		if rbErr := s.writeSession(ctx, prev); rbErr != nil {
			logger.Ctx(ctx).Error().Err(rbErr).Str("session.id", sessionID).Msg("failed to restore cart after order write failure")
		}
		return res, errors.Wrapf(err, "persist order %s", res.Order.ID)
	}

	return s.ledger.CommitCheckout(sessionID, res), nil
}

// --- 折扣码管理 ---

func (s *ShopService) CodesForUser(ctx context.Context, userID string) []domain.DiscountCode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.CodesForUser(userID)
}

// IssueDiscount 管理员手动发放，userID 为空时发放通用码。
func (s *ShopService) IssueDiscount(ctx context.Context, req *IssueDiscountRequest) (domain.DiscountCode, error) {
	ctx, span := s.tracer.Start(ctx, "app.IssueDiscount")
	defer span.End()

	dc, err := func() (domain.DiscountCode, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		dc := s.ledger.IssueDiscount(req.UserID)
		return dc, s.saveDiscountCode(ctx, dc)
	}()
	if err != nil {
		return domain.DiscountCode{}, s.fail(span, err)
	}

	span.SetAttributes(attribute.String("discount.code", dc.Code))
	s.afterIssue(ctx, dc, domain.IssueReasonAdmin)
	return dc, nil
}

func (s *ShopService) DiscountCodes(ctx context.Context) []domain.DiscountCode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.DiscountCodes()
}

func (s *ShopService) ToggleDiscount(ctx context.Context, req *ToggleDiscountRequest) (domain.DiscountCode, error) {
	ctx, span := s.tracer.Start(ctx, "app.ToggleDiscount")
	defer span.End()
	span.SetAttributes(attribute.String("discount.code", req.Code))

	s.mu.Lock()
	defer s.mu.Unlock()
	dc, err := s.ledger.ToggleDiscount(req.Code)
	if err != nil {
		span.RecordError(err)
		return domain.DiscountCode{}, err
	}
	if err := s.saveDiscountCode(ctx, dc); err != nil {
		return domain.DiscountCode{}, s.fail(span, err)
	}
	logger.Ctx(ctx).Info().Str("discount.code", dc.Code).Bool("disabled", dc.IsDisabled).Msg("discount code toggled")
	return dc, nil
}

func (s *ShopService) SetDiscountInterval(ctx context.Context, interval int) error {
	ctx, span := s.tracer.Start(ctx, "app.SetDiscountInterval")
	defer span.End()
	span.SetAttributes(attribute.Int("discount.interval", interval))

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ledger.SetDiscountInterval(interval); err != nil {
		span.RecordError(err)
		return err
	}
	if err := s.repo.SaveDiscountInterval(ctx, interval); err != nil {
		metrics.PersistenceErrors.WithLabelValues("ledger").Inc()
		return s.fail(span, errors.Wrap(err, "persist discount interval"))
	}
	logger.Ctx(ctx).Info().Int("interval", interval).Msg("discount interval updated")
	return nil
}

func (s *ShopService) DiscountInterval(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.DiscountInterval()
}

// --- 统计 ---

func (s *ShopService) Stats(ctx context.Context) *AdminStatsResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &AdminStatsResponse{
		Stats:            s.ledger.Stats(),
		DiscountInterval: s.ledger.DiscountInterval(),
		DiscountCodes:    s.ledger.DiscountCodes(),
	}
}

func (s *ShopService) OrderCount(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.OrderCount()
}

func (s *ShopService) UserOrderCount(ctx context.Context, userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.UserOrderCount(userID)
}

// --- 内部辅助 ---

// acquireSession 每次都从仓储读入会话，过期或不存在的会话在 Ledger 中也被清除。
// 返回的 release 把会话移出 Ledger。调用方必须持有锁。
func (s *ShopService) acquireSession(ctx context.Context, sessionID string) (func(), error) {
	release := func() { s.ledger.DropSession(sessionID) }
	sess, err := s.sessions.Get(ctx, sessionID)
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		release()
	case err != nil:
		release()
		return nil, errors.Wrapf(err, "load session %s", sessionID)
	default:
		s.ledger.AttachSession(sess)
	}
	return release, nil
}

func (s *ShopService) saveSession(ctx context.Context, sessionID string) error {
	return s.writeSession(ctx, s.ledger.SessionSnapshot(sessionID))
}

func (s *ShopService) writeSession(ctx context.Context, sess *domain.Session) error {
	if err := s.sessions.Save(ctx, sess); err != nil {
		metrics.PersistenceErrors.WithLabelValues("session").Inc()
		return errors.Wrapf(err, "save session %s", sess.ID)
	}
	return nil
}

func (s *ShopService) saveDiscountCode(ctx context.Context, dc domain.DiscountCode) error {
	if err := s.repo.SaveDiscountCode(ctx, &dc); err != nil {
		metrics.PersistenceErrors.WithLabelValues("ledger").Inc()
		return errors.Wrapf(err, "persist discount code %s", dc.Code)
	}
	return nil
}

func (s *ShopService) afterIssue(ctx context.Context, dc domain.DiscountCode, reason string) {
	metrics.DiscountsIssued.WithLabelValues(reason).Inc()
	logger.Ctx(ctx).Info().
		Str("discount.code", dc.Code).
		Str("user.id", dc.UserID).
		Str("reason", reason).
		Msg("🎁 Discount code issued")
	if err := s.publisher.PublishDiscountIssued(ctx, domain.NewDiscountIssued(dc, reason)); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("discount.code", dc.Code).Msg("failed to publish DiscountIssued")
	}
}

func (s *ShopService) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

type noopPublisher struct{}

func (noopPublisher) PublishOrderPlaced(context.Context, domain.OrderPlaced) error       { return nil }
func (noopPublisher) PublishDiscountIssued(context.Context, domain.DiscountIssued) error { return nil }

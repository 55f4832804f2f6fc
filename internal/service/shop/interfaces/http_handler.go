package interfaces

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"storefront/internal/pkg/logger"
	"storefront/internal/pkg/tracing"
	"storefront/internal/service/shop/application"
	"storefront/internal/service/shop/domain"
)

// SessionHeader 携带会话 ID；WebSocket 握手无法设置请求头时使用 sessionId 查询参数。
const SessionHeader = "X-Session-ID"

// APIResponse 是所有接口统一的响应信封
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ShopHandler 封装了商店的 HTTP 处理器
type ShopHandler struct {
	service *application.ShopService
	hub     *StatsHub
}

// NewShopHandler hub 为 nil 时不推送实时统计
func NewShopHandler(service *application.ShopService, hub *StatsHub) *ShopHandler {
	return &ShopHandler{service: service, hub: hub}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *ShopHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/products", h.handleProducts)

	mux.HandleFunc("GET /api/cart", h.handleGetCart)
	mux.HandleFunc("POST /api/cart", h.requireUser(h.handleAddItem))
	mux.HandleFunc("DELETE /api/cart", h.requireUser(h.handleRemoveItem))
	mux.HandleFunc("PATCH /api/cart", h.requireUser(h.handleUpdateQuantity))
	mux.HandleFunc("POST /api/cart/clear", h.requireUser(h.handleClearCart))
	mux.HandleFunc("POST /api/cart/discount", h.requireUser(h.handleApplyDiscount))
	mux.HandleFunc("POST /api/checkout", h.requireUser(h.handleCheckout))

	mux.HandleFunc("POST /api/login", h.handleLogin)
	mux.HandleFunc("POST /api/logout", h.handleLogout)
	mux.HandleFunc("GET /api/me", h.handleMe)
	mux.HandleFunc("GET /api/my-coupons", h.requireUser(h.handleMyCoupons))

	mux.HandleFunc("GET /api/admin/stats", h.requireAdmin(h.handleAdminStats))
	mux.HandleFunc("GET /api/admin/stats/ws", h.requireAdmin(h.handleAdminStatsWS))
	mux.HandleFunc("GET /api/admin/discount", h.requireAdmin(h.handleListDiscounts))
	mux.HandleFunc("POST /api/admin/discount", h.requireAdmin(h.handleIssueDiscount))
	mux.HandleFunc("POST /api/admin/discount/toggle", h.requireAdmin(h.handleToggleDiscount))
	mux.HandleFunc("GET /api/admin/discount-interval", h.requireAdmin(h.handleGetInterval))
	mux.HandleFunc("PUT /api/admin/discount-interval", h.requireAdmin(h.handleSetInterval))
}

type userKey struct{}

// requireUser 未登录返回 401，登录用户放入 context
func (h *ShopHandler) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := extract(r)
		user, ok, err := h.service.CurrentUser(ctx, sessionID(r))
		if err != nil {
			h.respond(w, r, nil, err)
			return
		}
		if !ok {
			writeError(w, http.StatusUnauthorized, errors.New("login required"))
			return
		}
		next(w, r.WithContext(context.WithValue(ctx, userKey{}, user)))
	}
}

// requireAdmin 未登录返回 401，非管理员返回 403
func (h *ShopHandler) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return h.requireUser(func(w http.ResponseWriter, r *http.Request) {
		if !currentUser(r).IsAdmin() {
			writeError(w, http.StatusForbidden, errors.New("admin access required"))
			return
		}
		next(w, r)
	})
}

func currentUser(r *http.Request) domain.User {
	u, _ := r.Context().Value(userKey{}).(domain.User)
	return u
}

// --- 商品与购物车 ---

func (h *ShopHandler) handleProducts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Products(extract(r)))
}

// handleGetCart 没有会话时返回空购物车，不分配新会话
func (h *ShopHandler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.service.Cart(extract(r), sessionID(r))
	h.respond(w, r, cart, err)
}

func (h *ShopHandler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req application.AddItemRequest
	if !decode(w, r, &req) {
		return
	}
	cart, err := h.service.AddItem(r.Context(), sessionID(r), &req)
	h.respond(w, r, cart, err)
}

// handleRemoveItem 兼容 ?itemId= 和请求体两种写法
func (h *ShopHandler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	req := application.RemoveItemRequest{ItemID: r.URL.Query().Get("itemId")}
	if req.ItemID == "" && !decode(w, r, &req) {
		return
	}
	cart, err := h.service.RemoveItem(r.Context(), sessionID(r), req.ItemID)
	h.respond(w, r, cart, err)
}

func (h *ShopHandler) handleUpdateQuantity(w http.ResponseWriter, r *http.Request) {
	var req application.UpdateQuantityRequest
	if !decode(w, r, &req) {
		return
	}
	cart, err := h.service.UpdateQuantity(r.Context(), sessionID(r), &req)
	h.respond(w, r, cart, err)
}

func (h *ShopHandler) handleClearCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.service.ClearCart(r.Context(), sessionID(r))
	h.respond(w, r, cart, err)
}

func (h *ShopHandler) handleApplyDiscount(w http.ResponseWriter, r *http.Request) {
	var req application.ApplyDiscountRequest
	if !decode(w, r, &req) {
		return
	}
	ctx := r.Context()
	cart, err := h.service.ApplyDiscount(ctx, sessionID(r), &req)
	if err == nil {
		h.broadcastStats(ctx)
	}
	h.respond(w, r, cart, err)
}

func (h *ShopHandler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp, err := h.service.Checkout(ctx, sessionID(r))
	if err == nil {
		h.broadcastStats(ctx)
	}
	h.respond(w, r, resp, err)
}

// --- 认证 ---

// handleLogin 请求未携带会话时分配新的会话 ID，并通过响应头和响应体返回
func (h *ShopHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req application.LoginRequest
	if !decode(w, r, &req) {
		return
	}
	sid := ensureSession(w, r)
	user, err := h.service.Login(extract(r), sid, &req)
	h.respond(w, r, application.LoginResponse{SessionID: sid, User: user}, err)
}

func (h *ShopHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sid := sessionID(r)
	if sid == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	h.respond(w, r, nil, h.service.Logout(extract(r), sid))
}

// handleMe 未登录时 data 为 null
func (h *ShopHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	user, ok, err := h.service.CurrentUser(extract(r), sessionID(r))
	if err != nil || !ok {
		h.respond(w, r, nil, err)
		return
	}
	h.respond(w, r, user, nil)
}

func (h *ShopHandler) handleMyCoupons(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.CodesForUser(r.Context(), currentUser(r).ID))
}

// --- 管理后台 ---

func (h *ShopHandler) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Stats(r.Context()))
}

func (h *ShopHandler) handleAdminStatsWS(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		writeError(w, http.StatusNotFound, errors.New("live stats disabled"))
		return
	}
	h.hub.ServeWS(w, r, h.service.Stats(r.Context()))
}

func (h *ShopHandler) handleListDiscounts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.DiscountCodes(r.Context()))
}

// handleIssueDiscount 请求体可以为空，此时发放通用码
func (h *ShopHandler) handleIssueDiscount(w http.ResponseWriter, r *http.Request) {
	var req application.IssueDiscountRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	ctx := r.Context()
	dc, err := h.service.IssueDiscount(ctx, &req)
	if err == nil {
		h.broadcastStats(ctx)
		writeJSON(w, http.StatusCreated, dc)
		return
	}
	h.respond(w, r, nil, err)
}

func (h *ShopHandler) handleToggleDiscount(w http.ResponseWriter, r *http.Request) {
	var req application.ToggleDiscountRequest
	if !decode(w, r, &req) {
		return
	}
	ctx := r.Context()
	dc, err := h.service.ToggleDiscount(ctx, &req)
	if err == nil {
		h.broadcastStats(ctx)
	}
	h.respond(w, r, dc, err)
}

func (h *ShopHandler) handleGetInterval(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, application.DiscountIntervalRequest{Interval: h.service.DiscountInterval(r.Context())})
}

func (h *ShopHandler) handleSetInterval(w http.ResponseWriter, r *http.Request) {
	var req application.DiscountIntervalRequest
	if !decode(w, r, &req) {
		return
	}
	ctx := r.Context()
	err := h.service.SetDiscountInterval(ctx, req.Interval)
	if err == nil {
		h.broadcastStats(ctx)
	}
	h.respond(w, r, req, err)
}

func (h *ShopHandler) broadcastStats(ctx context.Context) {
	if h.hub != nil {
		h.hub.Publish(h.service.Stats(ctx))
	}
}

// --- 通用辅助 ---

func extract(r *http.Request) context.Context {
	return otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
}

func sessionID(r *http.Request) string {
	if sid := r.Header.Get(SessionHeader); sid != "" {
		return sid
	}
	return r.URL.Query().Get("sessionId")
}

// ensureSession 没有会话时生成新 ID，并在响应头中回传
func ensureSession(w http.ResponseWriter, r *http.Request) string {
	sid := sessionID(r)
	if sid == "" {
		sid = uuid.NewString()
	}
	w.Header().Set(SessionHeader, sid)
	return sid
}

var (
	errInvalidBody = errors.New("invalid request body")
	errInternal    = errors.New("internal server error")
)

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidBody)
		return false
	}
	return true
}

// decodeOptional 请求体为空（包括长度未知的空 chunked 请求体）时保留零值
func decodeOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeError(w, http.StatusBadRequest, errInvalidBody)
	return false
}

// respond 根据错误类型返回不同的 HTTP 状态码
func (h *ShopHandler) respond(w http.ResponseWriter, r *http.Request, data any, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, data)
		return
	}
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		ctx := extract(r)
		if traceID := tracing.GetTraceIDFromContext(ctx); traceID != "" {
			w.Header().Set("X-Trace-ID", traceID)
		}
		logger.Ctx(ctx).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		// 内部错误的细节只进日志
		err = errInternal
	}
	writeError(w, status, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrDiscountCodeNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInvalidDiscountCode),
		errors.Is(err, domain.ErrEmptyCart),
		errors.Is(err, domain.ErrInvalidInterval):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIResponse{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIResponse{Success: false, Error: err.Error()})
}

// internal/service/shop/domain/session.go
package domain

import "time"

// Session 保存一个会话的登录用户和购物车，每个会话恰好一个购物车。
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId,omitempty"`
	Cart      *Cart     `json:"cart"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func NewSession(id string) *Session {
	return &Session{ID: id, Cart: NewCart()}
}

// Clone 返回可以安全交给仓储的副本。
func (s *Session) Clone() *Session {
	cart := s.Cart.Clone()
	return &Session{ID: s.ID, UserID: s.UserID, Cart: &cart, UpdatedAt: s.UpdatedAt}
}

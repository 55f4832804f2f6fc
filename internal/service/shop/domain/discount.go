// internal/service/shop/domain/discount.go
package domain

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const (
	DefaultDiscountPercentage = 10

	codeLength   = 8
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// DiscountCode 是一张已发放的折扣码。
// IsUsed 是单向闩锁；IsDisabled 由管理员随时切换，只影响 Lookup 的可见性。
type DiscountCode struct {
	Code       string    `json:"code"`
	Percentage int       `json:"percentage"`
	IsUsed     bool      `json:"isUsed"`
	IsDisabled bool      `json:"isDisabled"`
	UserID     string    `json:"userId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// UsableBy 检查折扣码对给定用户是否可用（未使用、未禁用、归属匹配）。
func (d DiscountCode) UsableBy(userID string) bool {
	if d.IsUsed || d.IsDisabled {
		return false
	}
	return d.UserID == "" || d.UserID == userID
}

// CodeGenerator 生成候选折扣码字符串。
type CodeGenerator func() string

// RandomCode 从固定字母表中取 8 个加密随机字符。
// 随机源耗尽被视为不可恢复的错误。
func RandomCode() string {
	buf := make([]byte, codeLength)
	size := big.NewInt(int64(len(codeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, size)
		if err != nil {
			panic(fmt.Sprintf("discount code randomness unavailable: %v", err))
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf)
}

// DiscountRegistry 保存所有发放过的折扣码，只追加、只打标记，从不删除。
type DiscountRegistry struct {
	codes      []*DiscountCode
	index      map[string]*DiscountCode
	percentage int
	generate   CodeGenerator
	now        func() time.Time
}

func NewDiscountRegistry(percentage int, generate CodeGenerator, now func() time.Time) *DiscountRegistry {
	if generate == nil {
		generate = RandomCode
	}
	if now == nil {
		now = time.Now
	}
	return &DiscountRegistry{
		index:      make(map[string]*DiscountCode),
		percentage: percentage,
		generate:   generate,
		now:        now,
	}
}

// Issue 生成一个新的折扣码；userID 为空表示通用码。
func (r *DiscountRegistry) Issue(userID string) DiscountCode {
	dc := r.Draft(userID)
	r.put(dc)
	return dc
}

// Draft 生成一个不与现有记录冲突的折扣码，但不加入注册表。
func (r *DiscountRegistry) Draft(userID string) DiscountCode {
	code := r.generate()
	for {
		if _, taken := r.index[code]; !taken {
			break
		}
		code = r.generate()
	}
	return DiscountCode{
		Code:       code,
		Percentage: r.percentage,
		UserID:     userID,
		CreatedAt:  r.now(),
	}
}

// put 追加新记录，已存在的 code 原位覆盖。
func (r *DiscountRegistry) put(dc DiscountCode) {
	if existing, ok := r.index[dc.Code]; ok {
		*existing = dc
		return
	}
	rec := dc
	r.codes = append(r.codes, &rec)
	r.index[rec.Code] = &rec
}

// Lookup 对已禁用的折扣码不可见。
func (r *DiscountRegistry) Lookup(code string) (DiscountCode, bool) {
	dc, ok := r.index[code]
	if !ok || dc.IsDisabled {
		return DiscountCode{}, false
	}
	return *dc, true
}

// Find 不区分禁用状态，用于审计和持久化。
func (r *DiscountRegistry) Find(code string) (DiscountCode, bool) {
	dc, ok := r.index[code]
	if !ok {
		return DiscountCode{}, false
	}
	return *dc, true
}

func (r *DiscountRegistry) MarkUsed(code string) {
	if dc, ok := r.index[code]; ok {
		dc.IsUsed = true
	}
}

func (r *DiscountRegistry) ToggleDisabled(code string) (DiscountCode, bool) {
	dc, ok := r.index[code]
	if !ok {
		return DiscountCode{}, false
	}
	dc.IsDisabled = !dc.IsDisabled
	return *dc, true
}

func (r *DiscountRegistry) CodesForUser(userID string) []DiscountCode {
	out := []DiscountCode{}
	for _, dc := range r.codes {
		if dc.UserID == userID {
			out = append(out, *dc)
		}
	}
	return out
}

func (r *DiscountRegistry) All() []DiscountCode {
	out := make([]DiscountCode, 0, len(r.codes))
	for _, dc := range r.codes {
		out = append(out, *dc)
	}
	return out
}

func (r *DiscountRegistry) Len() int {
	return len(r.codes)
}

// restore 用持久化的记录重建注册表，重复的 code 以后者为准。
func (r *DiscountRegistry) restore(codes []DiscountCode) {
	r.codes = r.codes[:0]
	r.index = make(map[string]*DiscountCode, len(codes))
	for _, c := range codes {
		r.put(c)
	}
}

package infrastructure

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderModel 对应数据库中的 shop_order 表
type OrderModel struct {
	gorm.Model
	OrderID        string          `gorm:"type:varchar(64);uniqueIndex"`
	UserID         string          `gorm:"type:varchar(64);index"`
	Total          decimal.Decimal `gorm:"type:decimal(20,4)"`
	DiscountCode   string          `gorm:"type:varchar(16)"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(20,4)"`
	FinalTotal     decimal.Decimal `gorm:"type:decimal(20,4)"`
	PlacedAt       time.Time
	// 关联关系
	Items []OrderItemModel `gorm:"foreignKey:OrderRefID"`
}

func (OrderModel) TableName() string {
	return "shop_order"
}

// OrderItemModel 订单行，保存下单时的商品快照
type OrderItemModel struct {
	gorm.Model
	OrderRefID         uint `gorm:"index"`
	Position           int
	ItemID             string          `gorm:"type:varchar(64)"`
	ProductID          string          `gorm:"type:varchar(64)"`
	ProductName        string          `gorm:"type:varchar(255)"`
	ProductPrice       decimal.Decimal `gorm:"type:decimal(20,4)"`
	ProductDescription string          `gorm:"type:text"`
	ProductImage       string          `gorm:"type:varchar(512)"`
	Quantity           int
}

func (OrderItemModel) TableName() string {
	return "shop_order_item"
}

// DiscountCodeModel 对应 discount_code 表，自增 ID 保留发放顺序
type DiscountCodeModel struct {
	gorm.Model
	Code       string `gorm:"type:varchar(16);uniqueIndex"`
	Percentage int
	IsUsed     bool
	IsDisabled bool
	UserID     string `gorm:"type:varchar(64);index"`
	IssuedAt   time.Time
}

func (DiscountCodeModel) TableName() string {
	return "discount_code"
}

// SettingModel 是简单的键值配置表
type SettingModel struct {
	Key       string `gorm:"column:setting_key;type:varchar(64);primaryKey"`
	Value     string `gorm:"type:varchar(255)"`
	UpdatedAt time.Time
}

func (SettingModel) TableName() string {
	return "shop_setting"
}

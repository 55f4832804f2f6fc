package infrastructure

import (
	"context"
	"strconv"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storefront/internal/service/shop/domain"
)

const settingDiscountInterval = "discount_interval"

// GormLedgerRepository 是 LedgerRepository 的 GORM 实现
type GormLedgerRepository struct {
	db *gorm.DB
}

func NewGormLedgerRepository(db *gorm.DB) *GormLedgerRepository {
	return &GormLedgerRepository{db: db}
}

// Migrate 创建或更新表结构
func (r *GormLedgerRepository) Migrate(ctx context.Context) error {
	err := r.db.WithContext(ctx).AutoMigrate(
		&OrderModel{},
		&OrderItemModel{},
		&DiscountCodeModel{},
		&SettingModel{},
	)
	return errors.Wrap(err, "auto migrate")
}

// LoadOrders 按提交顺序返回全部订单，行项目按原顺序预加载
func (r *GormLedgerRepository) LoadOrders(ctx context.Context) ([]domain.Order, error) {
	var models []OrderModel
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Order("id").
		Find(&models).Error
	if err != nil {
		return nil, errors.Wrap(err, "query orders")
	}
	out := make([]domain.Order, 0, len(models))
	for i := range models {
		out = append(out, ToDomainOrder(&models[i]))
	}
	return out, nil
}

// SaveCheckout 订单、行项目和奖励码在同一事务中写入
func (r *GormLedgerRepository) SaveCheckout(ctx context.Context, order *domain.Order, issued *domain.DiscountCode) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(FromDomainOrder(order)).Error; err != nil {
			return errors.Wrapf(err, "insert order %s", order.ID)
		}
		if issued == nil {
			return nil
		}
		return errors.Wrapf(r.upsertCode(tx, issued).Error, "upsert discount code %s", issued.Code)
	})
	return err
}

func (r *GormLedgerRepository) LoadDiscountCodes(ctx context.Context) ([]domain.DiscountCode, error) {
	var models []DiscountCodeModel
	if err := r.db.WithContext(ctx).Order("id").Find(&models).Error; err != nil {
		return nil, errors.Wrap(err, "query discount codes")
	}
	out := make([]domain.DiscountCode, 0, len(models))
	for i := range models {
		out = append(out, ToDomainDiscountCode(&models[i]))
	}
	return out, nil
}

// SaveDiscountCode 以 code 为键 upsert，只有状态位会被更新
func (r *GormLedgerRepository) SaveDiscountCode(ctx context.Context, code *domain.DiscountCode) error {
	err := r.upsertCode(r.db.WithContext(ctx), code).Error
	return errors.Wrapf(err, "upsert discount code %s", code.Code)
}

func (r *GormLedgerRepository) upsertCode(db *gorm.DB, code *domain.DiscountCode) *gorm.DB {
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{"is_used", "is_disabled", "updated_at"}),
	}).Create(FromDomainDiscountCode(code))
}

func (r *GormLedgerRepository) LoadDiscountInterval(ctx context.Context) (int, bool, error) {
	var setting SettingModel
	err := r.db.WithContext(ctx).Where("setting_key = ?", settingDiscountInterval).First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errors.Wrap(err, "query discount interval")
	}
	n, err := strconv.Atoi(setting.Value)
	if err != nil {
		return 0, false, errors.Wrapf(err, "corrupt discount interval %q", setting.Value)
	}
	return n, true, nil
}

func (r *GormLedgerRepository) SaveDiscountInterval(ctx context.Context, interval int) error {
	err := r.upsertSetting(r.db.WithContext(ctx), settingDiscountInterval, strconv.Itoa(interval)).Error
	return errors.Wrap(err, "save discount interval")
}

func (r *GormLedgerRepository) upsertSetting(db *gorm.DB, key, value string) *gorm.DB {
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "setting_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&SettingModel{Key: key, Value: value})
}

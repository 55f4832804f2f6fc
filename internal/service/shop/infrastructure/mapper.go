package infrastructure

import (
	"storefront/internal/service/shop/domain"
)

// ToDomainOrder 将数据库模型转换为领域模型
func ToDomainOrder(model *OrderModel) domain.Order {
	items := make([]domain.CartItem, 0, len(model.Items))
	for _, it := range model.Items {
		items = append(items, domain.CartItem{
			ID: it.ItemID,
			Product: domain.Product{
				ID:          it.ProductID,
				Name:        it.ProductName,
				Price:       it.ProductPrice,
				Description: it.ProductDescription,
				Image:       it.ProductImage,
			},
			Quantity: it.Quantity,
		})
	}
	return domain.Order{
		ID:             model.OrderID,
		Items:          items,
		Total:          model.Total,
		DiscountCode:   model.DiscountCode,
		DiscountAmount: model.DiscountAmount,
		FinalTotal:     model.FinalTotal,
		CreatedAt:      model.PlacedAt,
		UserID:         model.UserID,
	}
}

// FromDomainOrder 生成用于插入的完整模型，行项目按原顺序编号
func FromDomainOrder(o *domain.Order) *OrderModel {
	items := make([]OrderItemModel, 0, len(o.Items))
	for i, it := range o.Items {
		items = append(items, OrderItemModel{
			Position:           i,
			ItemID:             it.ID,
			ProductID:          it.Product.ID,
			ProductName:        it.Product.Name,
			ProductPrice:       it.Product.Price,
			ProductDescription: it.Product.Description,
			ProductImage:       it.Product.Image,
			Quantity:           it.Quantity,
		})
	}
	return &OrderModel{
		OrderID:        o.ID,
		UserID:         o.UserID,
		Total:          o.Total,
		DiscountCode:   o.DiscountCode,
		DiscountAmount: o.DiscountAmount,
		FinalTotal:     o.FinalTotal,
		PlacedAt:       o.CreatedAt,
		Items:          items,
	}
}

func ToDomainDiscountCode(model *DiscountCodeModel) domain.DiscountCode {
	return domain.DiscountCode{
		Code:       model.Code,
		Percentage: model.Percentage,
		IsUsed:     model.IsUsed,
		IsDisabled: model.IsDisabled,
		UserID:     model.UserID,
		CreatedAt:  model.IssuedAt,
	}
}

func FromDomainDiscountCode(dc *domain.DiscountCode) *DiscountCodeModel {
	return &DiscountCodeModel{
		Code:       dc.Code,
		Percentage: dc.Percentage,
		IsUsed:     dc.IsUsed,
		IsDisabled: dc.IsDisabled,
		UserID:     dc.UserID,
		IssuedAt:   dc.CreatedAt,
	}
}

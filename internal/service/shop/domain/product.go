// internal/service/shop/domain/product.go
package domain

import "github.com/shopspring/decimal"

// Product 是商品目录中的不可变条目。
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
	Image       string          `json:"image"`
}

// Catalog 是进程启动时加载的只读商品目录。
type Catalog struct {
	products []Product
	byID     map[string]Product
}

func NewCatalog(products []Product) *Catalog {
	c := &Catalog{
		products: make([]Product, 0, len(products)),
		byID:     make(map[string]Product, len(products)),
	}
	for _, p := range products {
		if _, dup := c.byID[p.ID]; dup {
			continue
		}
		c.products = append(c.products, p)
		c.byID[p.ID] = p
	}
	return c
}

// Products 返回目录的副本，保持声明顺序。
func (c *Catalog) Products() []Product {
	out := make([]Product, len(c.products))
	copy(out, c.products)
	return out
}

func (c *Catalog) Find(id string) (Product, bool) {
	p, ok := c.byID[id]
	return p, ok
}

// DefaultProducts 是演示商店自带的商品。
func DefaultProducts() []Product {
	return []Product{
		{
			ID:          "1",
			Name:        "Smartphone",
			Price:       decimal.RequireFromString("699.99"),
			Description: "Latest model smartphone with high-resolution camera",
			Image:       "https://cdn.pixabay.com/photo/2017/01/22/12/07/imac-1999636_1280.png",
		},
		{
			ID:          "2",
			Name:        "Laptop",
			Price:       decimal.RequireFromString("1299.99"),
			Description: "Powerful laptop for work and gaming",
			Image:       "https://cdn.pixabay.com/photo/2014/05/02/21/50/home-office-336378_1280.jpg",
		},
		{
			ID:          "3",
			Name:        "Headphones",
			Price:       decimal.RequireFromString("199.99"),
			Description: "Noise-cancelling wireless headphones",
			Image:       "https://cdn.pixabay.com/photo/2016/12/19/08/39/mobile-phone-1917737_1280.jpg",
		},
		{
			ID:          "4",
			Name:        "Smartwatch",
			Price:       decimal.RequireFromString("249.99"),
			Description: "Fitness tracking smartwatch with heart rate monitor",
			Image:       "https://cdn.pixabay.com/photo/2017/01/22/12/07/imac-1999636_1280.png",
		},
		{
			ID:          "5",
			Name:        "Tablet",
			Price:       decimal.RequireFromString("499.99"),
			Description: "10-inch tablet with high-resolution display",
			Image:       "https://cdn.pixabay.com/photo/2014/05/02/21/50/home-office-336378_1280.jpg",
		},
	}
}

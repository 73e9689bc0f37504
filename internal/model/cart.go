package model

// CartItem 服务端购物车行，(user_id, product_id) 唯一
type CartItem struct {
	ID        int64 `gorm:"primaryKey"`
	UserID    int64 `gorm:"not null;index:idx_cart_pair,unique"`
	ProductID int64 `gorm:"not null;index:idx_cart_pair,unique"`
	Quantity  int   `gorm:"not null"`
}

func (CartItem) TableName() string { return "cart_items" }

// CartLine is one product in the session cart; ItemTotal = Quantity × Product.Price.
type CartLine struct {
	Product   Product `json:"product"`
	Quantity  int     `json:"quantity"`
	ItemTotal Money   `json:"item_total"`
}

func NewCartLine(p Product, quantity int) CartLine {
	return CartLine{Product: p, Quantity: quantity, ItemTotal: p.Price.Times(quantity)}
}

// Cart 购物车快照
type Cart struct {
	Items       []CartLine `json:"cart_items"`
	TotalAmount Money      `json:"total_amount"`
}

func NewCart(lines []CartLine) Cart {
	return Cart{Items: lines, TotalAmount: TotalOf(lines)}
}

func TotalOf(lines []CartLine) Money {
	var total Money
	for _, l := range lines {
		total += l.ItemTotal
	}
	return total
}

// QuantityOf sums the quantities of all lines.
func QuantityOf(lines []CartLine) int {
	n := 0
	for _, l := range lines {
		n += l.Quantity
	}
	return n
}

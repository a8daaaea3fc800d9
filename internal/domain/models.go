package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"

	OperationIn  = "in"
	OperationOut = "out"
)

type Staff struct {
	StaffID  string `json:"staff_id" db:"staff_id"`
	Name     string `json:"name" db:"name"`
	Position string `json:"position" db:"position"`
}

type User struct {
	Username string  `json:"username" db:"username"`
	Password string  `json:"-" db:"password"`
	StaffID  *string `json:"staff_id,omitempty" db:"staff_id"`
	Role     string  `json:"role" db:"role"`
}

// UserProfile is a user joined with the staff row it belongs to. Staff fields
// are nil when the user has no staff link or the staff row is gone.
type UserProfile struct {
	User
	StaffName     *string `json:"staff_name,omitempty" db:"staff_name"`
	StaffPosition *string `json:"staff_position,omitempty" db:"staff_position"`
}

type Product struct {
	ProductID string          `json:"product_id" db:"product_id"`
	Name      string          `json:"name" db:"name"`
	Price     decimal.Decimal `json:"price" db:"price"`
	Quantity  int             `json:"quantity" db:"quantity"`
	Category  string          `json:"category" db:"category"`
	StaffID   string          `json:"staff_id" db:"staff_id"`
	PhotoPath string          `json:"photo_path,omitempty" db:"photo_path"`
}

type ProductView struct {
	Product
	StaffName *string `json:"staff_name" db:"staff_name"`
}

type Sale struct {
	SaleID      int64           `json:"sale_id" db:"sale_id"`
	ProductID   string          `json:"product_id" db:"product_id"`
	ProductName string          `json:"product_name" db:"product_name"`
	Quantity    int             `json:"quantity" db:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price" db:"unit_price"`
	TotalPrice  decimal.Decimal `json:"total_price" db:"total_price"`
	SaleDate    time.Time       `json:"sale_date" db:"sale_date"`
}

type InventoryOperation struct {
	OperationID   int64     `json:"operation_id" db:"operation_id"`
	ProductID     string    `json:"product_id" db:"product_id"`
	OperationType string    `json:"operation_type" db:"operation_type"`
	Quantity      int       `json:"quantity" db:"quantity"`
	OperationDate time.Time `json:"operation_date" db:"operation_date"`
	StaffID       string    `json:"staff_id" db:"staff_id"`
	Notes         string    `json:"notes" db:"notes"`
}

// Signed returns the quantity with the direction of the operation applied.
func (op InventoryOperation) Signed() int {
	if op.OperationType == OperationIn {
		return op.Quantity
	}
	return -op.Quantity
}

// OperationRecord is an operation joined with the current product and staff
// names. Names are nil once the referenced row no longer exists.
type OperationRecord struct {
	InventoryOperation
	ProductName *string `json:"product_name" db:"product_name"`
	StaffName   *string `json:"staff_name" db:"staff_name"`
}

type OperationEntry struct {
	OperationRecord
	StockAfter int `json:"stock_after_operation"`
}

type ProductCreateRequest struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Category  string          `json:"category"`
	StaffID   string          `json:"staff_id"`
}

type ProductUpdateRequest struct {
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
	Category string          `json:"category"`
	StaffID  string          `json:"staff_id"`
}

type QuantityAdjustRequest struct {
	Delta int `json:"delta"`
}

type SaleRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type OperationRequest struct {
	ProductID     string `json:"product_id"`
	OperationType string `json:"operation_type"`
	Quantity      int    `json:"quantity"`
	StaffID       string `json:"staff_id"`
	Notes         string `json:"notes"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Username    string `json:"username"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	StaffID  string `json:"staff_id"`
}

type Actor struct {
	Username  string
	Role      string
	StaffID   string
	SessionID string
}

type DailyRevenue struct {
	Date    string          `json:"date"`
	Revenue decimal.Decimal `json:"revenue"`
}

type ProductUnits struct {
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
}

type ProductRevenue struct {
	ProductName  string          `json:"product_name"`
	Revenue      decimal.Decimal `json:"revenue"`
	SharePercent float64         `json:"share_percent"`
}

type HourlyRevenue struct {
	Hour    int             `json:"hour"`
	Revenue decimal.Decimal `json:"revenue"`
}

type SalesReport struct {
	GeneratedAt   string           `json:"generated_at"`
	TotalRevenue  decimal.Decimal  `json:"total_revenue"`
	SaleCount     int              `json:"sale_count"`
	DailyRevenue  []DailyRevenue   `json:"daily_revenue"`
	TopByQuantity []ProductUnits   `json:"top_by_quantity"`
	TopByRevenue  []ProductRevenue `json:"top_by_revenue"`
	RevenueByHour []HourlyRevenue  `json:"revenue_by_hour"`
}

type CategoryStock struct {
	Category     string  `json:"category"`
	Quantity     int     `json:"quantity"`
	SharePercent float64 `json:"share_percent"`
}

type ProductStockValue struct {
	ProductID  string          `json:"product_id"`
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	StockValue decimal.Decimal `json:"stock_value"`
}

type PriceBucket struct {
	From  decimal.Decimal `json:"from"`
	To    decimal.Decimal `json:"to"`
	Count int             `json:"count"`
}

type InventoryReport struct {
	GeneratedAt     string              `json:"generated_at"`
	ProductCount    int                 `json:"product_count"`
	TotalUnits      int                 `json:"total_units"`
	TotalStockValue decimal.Decimal     `json:"total_stock_value"`
	ByCategory      []CategoryStock     `json:"by_category"`
	TopByValue      []ProductStockValue `json:"top_by_value"`
	TopByQuantity   []ProductStockValue `json:"top_by_quantity"`
	PriceHistogram  []PriceBucket       `json:"price_histogram"`
}

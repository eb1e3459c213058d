package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// OrderStatuses lists every status in lifecycle order.
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

var nextStatus = map[OrderStatus]OrderStatus{
	OrderStatusPending:    OrderStatusConfirmed,
	OrderStatusConfirmed:  OrderStatusProcessing,
	OrderStatusProcessing: OrderStatusShipped,
	OrderStatusShipped:    OrderStatusDelivered,
}

func (s OrderStatus) Valid() bool {
	for _, v := range OrderStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Cancellable reports whether stock may still be handed back.
func (s OrderStatus) Cancellable() bool {
	return s == OrderStatusPending || s == OrderStatusConfirmed
}

// CanTransition is the fulfilment state machine: one step forward along
// pending, confirmed, processing, shipped, delivered, or to cancelled while
// the order has not entered processing.
func (s OrderStatus) CanTransition(to OrderStatus) bool {
	if to == OrderStatusCancelled {
		return s.Cancellable()
	}
	next, ok := nextStatus[s]
	return ok && next == to
}

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending: {PaymentStatusPaid, PaymentStatusFailed},
	PaymentStatusPaid:    {PaymentStatusFailed, PaymentStatusRefunded},
}

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

func (s PaymentStatus) CanTransition(to PaymentStatus) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

type PaymentMethod string

const (
	PaymentMethodCOD    PaymentMethod = "cod"
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodUPI    PaymentMethod = "upi"
	PaymentMethodWallet PaymentMethod = "wallet"
)

// ParsePaymentMethod maps an empty value to cash on delivery.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	m := PaymentMethod(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case "":
		return PaymentMethodCOD, nil
	case PaymentMethodCOD, PaymentMethodCard, PaymentMethodUPI, PaymentMethodWallet:
		return m, nil
	}
	return "", ErrInvalidPaymentMethod
}

type OrderLine struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	ItemTotal   decimal.Decimal `json:"item_total"`
}

// NewOrderLine snapshots a reservation into an order line.
func NewOrderLine(r Reservation) OrderLine {
	return OrderLine{
		ProductID:   r.ProductID,
		ProductName: r.ProductName,
		Price:       r.UnitPrice,
		Quantity:    r.Quantity,
		ItemTotal:   r.UnitPrice.Mul(decimal.NewFromInt(int64(r.Quantity))),
	}
}

type Order struct {
	OrderID         string          `json:"order_id"`
	UserID          string          `json:"user_id"`
	Items           []OrderLine     `json:"items"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	Status          OrderStatus     `json:"status"`
	PaymentStatus   PaymentStatus   `json:"payment_status"`
	PaymentMethod   PaymentMethod   `json:"payment_method"`
	TrackingNumber  string          `json:"tracking_number,omitempty"`
	DeliveryDate    *time.Time      `json:"delivery_date,omitempty"`
	CancelReason    string          `json:"cancel_reason,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// SumLines is the order total implied by its lines.
func SumLines(lines []OrderLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.ItemTotal)
	}
	return total
}

// StatusChange carries the optional shipping details an administrator may
// attach when moving an order forward.
type StatusChange struct {
	Status         OrderStatus
	TrackingNumber string
	DeliveryDate   *time.Time
}

type OrderFilter struct {
	Status OrderStatus
	Search string
	Page   int
	Limit  int
}

// Matches applies the status and free-text parts of the filter. Search is a
// case-insensitive substring match over the order code and recipient name.
func (f OrderFilter) Matches(o *Order) bool {
	if f.Status != "" && o.Status != f.Status {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		return strings.Contains(strings.ToLower(o.OrderID), q) ||
			strings.Contains(strings.ToLower(o.ShippingAddress.FullName), q)
	}
	return true
}

type Pagination struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Pages int `json:"pages"`
}

type OrderPage struct {
	Orders     []Order    `json:"orders"`
	Pagination Pagination `json:"pagination"`
}

// Paginate slices orders (already filtered and sorted) into the requested
// page.
func Paginate(orders []Order, page, limit int) OrderPage {
	total := len(orders)
	pages := 0
	if limit > 0 {
		pages = total / limit
		if total%limit != 0 {
			pages++
		}
	}
	start, end := total, total
	if page >= 1 && limit > 0 && page-1 <= total/limit {
		start = (page - 1) * limit
		if start > total {
			start = total
		}
		if end = start + limit; end > total {
			end = total
		}
	}
	out := make([]Order, end-start)
	copy(out, orders[start:end])
	return OrderPage{
		Orders:     out,
		Pagination: Pagination{Total: total, Page: page, Pages: pages},
	}
}

type StatusStat struct {
	Status  OrderStatus     `json:"status"`
	Count   int             `json:"count"`
	Revenue decimal.Decimal `json:"revenue"`
}

type OrderStats struct {
	TotalOrders     int             `json:"total_orders"`
	TotalRevenue    decimal.Decimal `json:"total_revenue"`
	StatusBreakdown []StatusStat    `json:"status_breakdown"`
	RecentOrders    []Order         `json:"recent_orders"`
}

// ComputeStats aggregates orders sorted newest first.
func ComputeStats(orders []Order, recent int) OrderStats {
	byStatus := make(map[OrderStatus]*StatusStat)
	stats := OrderStats{TotalOrders: len(orders), TotalRevenue: decimal.Zero}
	for i := range orders {
		o := &orders[i]
		st, ok := byStatus[o.Status]
		if !ok {
			st = &StatusStat{Status: o.Status, Revenue: decimal.Zero}
			byStatus[o.Status] = st
		}
		st.Count++
		st.Revenue = st.Revenue.Add(o.TotalAmount)
		if o.Status != OrderStatusCancelled {
			stats.TotalRevenue = stats.TotalRevenue.Add(o.TotalAmount)
		}
	}
	stats.StatusBreakdown = make([]StatusStat, 0, len(byStatus))
	for _, s := range OrderStatuses {
		if st, ok := byStatus[s]; ok {
			stats.StatusBreakdown = append(stats.StatusBreakdown, *st)
		}
	}
	if recent > len(orders) {
		recent = len(orders)
	}
	if recent < 0 {
		recent = 0
	}
	stats.RecentOrders = append([]Order(nil), orders[:recent]...)
	return stats
}

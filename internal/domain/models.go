package domain

import "time"

// Device types are open strings: venues add their own categories (pc, xbox,
// playstation, vr, ...). A tariff is matched to a station by this value when
// the station has no explicit tariff binding.
type TariffRange struct {
	ID         string  `json:"id"`
	MinMinutes int     `json:"min_minutes"`
	MaxMinutes int     `json:"max_minutes"`
	Price      float64 `json:"price"`
}

type Tariff struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	DeviceType string        `json:"device_type"`
	Ranges     []TariffRange `json:"ranges"`
}

type TariffRangeInput struct {
	MinMinutes int     `json:"min_minutes"`
	MaxMinutes int     `json:"max_minutes"`
	Price      float64 `json:"price"`
}

type TariffCreateRequest struct {
	Name       string             `json:"name"`
	DeviceType string             `json:"device_type"`
	Ranges     []TariffRangeInput `json:"ranges"`
}

type TariffUpdateRequest struct {
	Name       *string             `json:"name,omitempty"`
	DeviceType *string             `json:"device_type,omitempty"`
	Ranges     *[]TariffRangeInput `json:"ranges,omitempty"`
}

type Station struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	DeviceType string   `json:"device_type"`
	Status     string   `json:"status"`
	TariffID   string   `json:"tariff_id,omitempty"`
	Session    *Session `json:"session,omitempty"`
}

type StationCreateRequest struct {
	Name       string `json:"name"`
	DeviceType string `json:"device_type"`
	TariffID   string `json:"tariff_id,omitempty"`
}

// Session is the aggregate carried by an occupied station. Orders is
// append-only until finalize; nothing else mutates a running session.
type Session struct {
	ID             string        `json:"id"`
	StationID      string        `json:"station_id"`
	Type           string        `json:"type"`
	CustomerID     string        `json:"customer_id"`
	CustomerName   string        `json:"customer_name,omitempty"`
	StartTime      time.Time     `json:"start_time"`
	PrepaidMinutes int           `json:"prepaid_minutes,omitempty"`
	TotalAmount    float64       `json:"total_amount,omitempty"`
	TariffID       string        `json:"tariff_id,omitempty"`
	Orders         []SessionItem `json:"orders"`
}

// SessionItem is a line on the running tab. Kind distinguishes catalog items
// (price snapshot from the product record, stock tracked) from freeform
// custom charges that have no product behind them.
type SessionItem struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	ProductID string    `json:"product_id,omitempty"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	Qty       int       `json:"qty"`
	AddedAt   time.Time `json:"added_at"`
}

type StartSessionRequest struct {
	Type           string `json:"type"`
	CustomerID     string `json:"customer_id"`
	PrepaidMinutes int    `json:"prepaid_minutes,omitempty"`
	FreeHours      int    `json:"free_hours,omitempty"`
}

type StartSessionResponse struct {
	Session       Session `json:"session"`
	TariffWarning bool    `json:"tariff_warning"`
}

type SessionOrderRequest struct {
	ProductID string  `json:"product_id,omitempty"`
	Name      string  `json:"name,omitempty"`
	Price     float64 `json:"price,omitempty"`
	Qty       int     `json:"qty"`
}

// StationStatusResponse is the advisory live view recomputed on demand; it
// never mutates session state.
type StationStatusResponse struct {
	StationID        string  `json:"station_id"`
	Status           string  `json:"status"`
	SessionType      string  `json:"session_type,omitempty"`
	ElapsedMinutes   int     `json:"elapsed_minutes"`
	RemainingSeconds int64   `json:"remaining_seconds"`
	RentalCost       float64 `json:"rental_cost"`
	OrdersTotal      float64 `json:"orders_total"`
	TariffWarning    bool    `json:"tariff_warning"`
}

type CheckoutOverlay struct {
	WithVAT              bool `json:"with_vat"`
	CommissionTermMonths *int `json:"commission_term_months,omitempty"`
	CommissionClientPays bool `json:"commission_client_pays"`
}

type FinalizeSessionRequest struct {
	PaymentMethod string          `json:"payment_method"`
	CustomerID    string          `json:"customer_id,omitempty"`
	Overlay       CheckoutOverlay `json:"overlay"`
}

type FinalizeSessionResponse struct {
	SaleID        string  `json:"sale_id"`
	RentalCost    float64 `json:"rental_cost"`
	OrdersTotal   float64 `json:"orders_total"`
	VATAmount     float64 `json:"vat_amount"`
	Commission    float64 `json:"commission"`
	Total         float64 `json:"total"`
	PointsAccrued int     `json:"points_accrued"`
	CustomerID    string  `json:"customer_id"`
}

type Sale struct {
	ID            string     `json:"id"`
	Timestamp     time.Time  `json:"timestamp"`
	Type          string     `json:"type"`
	PaymentMethod string     `json:"payment_method"`
	CustomerID    string     `json:"customer_id,omitempty"`
	Items         []SaleItem `json:"items"`
	Total         float64    `json:"total"`
}

// CostAtSale snapshots the product cost basis when the sale is recorded.
// Profit reporting reads this field only; it is never recomputed from the
// current product record.
type SaleItem struct {
	ProductID   string  `json:"product_id,omitempty"`
	ProductName string  `json:"product_name"`
	Qty         int     `json:"qty"`
	PriceAtSale float64 `json:"price_at_sale"`
	CostAtSale  float64 `json:"cost_at_sale"`
}

type CartItem struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type CheckoutRequest struct {
	Items         []CartItem      `json:"items"`
	PaymentMethod string          `json:"payment_method"`
	CustomerID    string          `json:"customer_id,omitempty"`
	CashReceived  float64         `json:"cash_received,omitempty"`
	Overlay       CheckoutOverlay `json:"overlay"`
}

type CheckoutResponse struct {
	SaleID     string  `json:"sale_id"`
	Subtotal   float64 `json:"subtotal"`
	VATAmount  float64 `json:"vat_amount"`
	Commission float64 `json:"commission"`
	Total      float64 `json:"total"`
	Change     float64 `json:"change"`
}

type ManualSaleRequest struct {
	Description   string  `json:"description"`
	Amount        float64 `json:"amount"`
	PaymentMethod string  `json:"payment_method"`
	CustomerID    string  `json:"customer_id,omitempty"`
}

type StreamingSaleRequest struct {
	AccountName   string  `json:"account_name"`
	Price         float64 `json:"price"`
	Cost          float64 `json:"cost"`
	PaymentMethod string  `json:"payment_method"`
	CustomerID    string  `json:"customer_id,omitempty"`
}

type Customer struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Phone  string `json:"phone,omitempty"`
	Email  string `json:"email,omitempty"`
	Points int    `json:"points"`
}

type CustomerCreateRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

type CustomerUpdateRequest struct {
	Name  *string `json:"name,omitempty"`
	Phone *string `json:"phone,omitempty"`
	Email *string `json:"email,omitempty"`
}

type PointsAdjustRequest struct {
	Delta  int    `json:"delta"`
	Reason string `json:"reason,omitempty"`
}

type Product struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Category   string  `json:"category"`
	Price      float64 `json:"price"`
	Cost       float64 `json:"cost"`
	Stock      int     `json:"stock"`
	TrackStock bool    `json:"track_stock"`
	Active     bool    `json:"active"`
}

type ProductCreateRequest struct {
	Name       string  `json:"name"`
	Category   string  `json:"category"`
	Price      float64 `json:"price"`
	Cost       float64 `json:"cost"`
	Stock      int     `json:"stock"`
	TrackStock bool    `json:"track_stock"`
}

type ProductUpdateRequest struct {
	Name       *string  `json:"name,omitempty"`
	Category   *string  `json:"category,omitempty"`
	Price      *float64 `json:"price,omitempty"`
	Cost       *float64 `json:"cost,omitempty"`
	Stock      *int     `json:"stock,omitempty"`
	TrackStock *bool    `json:"track_stock,omitempty"`
	Active     *bool    `json:"active,omitempty"`
}

type ServiceOrder struct {
	ID           string    `json:"id"`
	CustomerID   string    `json:"customer_id,omitempty"`
	CustomerName string    `json:"customer_name"`
	Device       string    `json:"device"`
	Issue        string    `json:"issue"`
	Status       string    `json:"status"`
	LaborPrice   float64   `json:"labor_price"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type ServiceOrderCreateRequest struct {
	CustomerID   string  `json:"customer_id,omitempty"`
	CustomerName string  `json:"customer_name"`
	Device       string  `json:"device"`
	Issue        string  `json:"issue"`
	LaborPrice   float64 `json:"labor_price"`
}

type ServiceOrderStatusRequest struct {
	Status        string `json:"status"`
	PaymentMethod string `json:"payment_method,omitempty"`
}

type DailyReportBucket struct {
	Key   string  `json:"key"`
	Sales int64   `json:"sales"`
	Total float64 `json:"total"`
}

type DailyReport struct {
	Date       string              `json:"date"`
	Sales      int64               `json:"sales"`
	GrossTotal float64             `json:"gross_total"`
	Profit     float64             `json:"profit"`
	ByType     []DailyReportBucket `json:"by_type"`
	ByPayment  []DailyReportBucket `json:"by_payment"`
}

type LoginRequest struct {
	Name string `json:"name"`
	PIN  string `json:"pin"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Name string
	Role string
}

type OperatorCreateRequest struct {
	Name string `json:"name"`
	PIN  string `json:"pin"`
}

type OperatorUser struct {
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// OperatorAccount is an internal persistence model for PIN credentials.
type OperatorAccount struct {
	Name      string
	PIN       string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type AuditLog struct {
	ID         string    `json:"id"`
	VenueID    string    `json:"venue_id"`
	ActorName  string    `json:"actor_name"`
	ActorRole  string    `json:"actor_role"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Detail     string    `json:"detail"`
	CreatedAt  time.Time `json:"created_at"`
}

const (
	StationAvailable   = "available"
	StationOccupied    = "occupied"
	StationMaintenance = "maintenance"
)

const (
	SessionOpen  = "open"
	SessionFixed = "fixed"
	SessionFree  = "free"
)

const (
	ItemKindCatalog = "catalog"
	ItemKindCustom  = "custom"
)

const (
	SaleTypePOS       = "pos"
	SaleTypeRental    = "rental"
	SaleTypeStreaming = "streaming"
	SaleTypeManual    = "manual"
	SaleTypeService   = "service"
)

const (
	ServiceOrderReceived  = "received"
	ServiceOrderInRepair  = "in_repair"
	ServiceOrderReady     = "ready"
	ServiceOrderDelivered = "delivered"
)

// PublicCustomerID is the walk-in sentinel: it never accrues or redeems
// loyalty points and cannot be deleted.
const PublicCustomerID = "public"

// Synthetic line-item product ids. Neither touches inventory stock.
const (
	RentalProductID     = "RENTAL"
	CommissionProductID = "COMMISSION_CLIP"
	VATProductID        = "IVA"
)

// Loyalty exchange rates: one point per whole hour consumed, ten points per
// free hour granted.
const (
	PointsPerHour     = 1
	PointsPerFreeHour = 10
)

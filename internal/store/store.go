package store

import (
	"context"
	"errors"
	"time"

	"github.com/Alexcarrizal/cybermanager-pro-sub000/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrStationBusy       = errors.New("station has an active session")
	ErrStationFree       = errors.New("station has no active session")
)

// Repository is the persistence boundary: every collection is loaded at init
// and saved on each mutation. The core never assumes atomicity across two
// writes (a Sale append and the originating Station clear are independent).
type Repository interface {
	ListTariffs(ctx context.Context) ([]domain.Tariff, error)
	GetTariff(ctx context.Context, id string) (*domain.Tariff, error)
	CreateTariff(ctx context.Context, tariff domain.Tariff) (*domain.Tariff, error)
	UpdateTariff(ctx context.Context, tariff domain.Tariff) (*domain.Tariff, error)

	ListStations(ctx context.Context) ([]domain.Station, error)
	GetStation(ctx context.Context, id string) (*domain.Station, error)
	CreateStation(ctx context.Context, station domain.Station) (*domain.Station, error)
	UpdateStation(ctx context.Context, station domain.Station) (*domain.Station, error)

	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	AdjustStock(ctx context.Context, productID string, delta int) (*domain.Product, error)

	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	AdjustPoints(ctx context.Context, customerID string, delta int) (*domain.Customer, error)

	AppendSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	GetSale(ctx context.Context, id string) (*domain.Sale, error)
	ListSales(ctx context.Context, from time.Time, to time.Time, saleType string, limit int) ([]domain.Sale, error)
	DeleteSale(ctx context.Context, id string) error

	CreateServiceOrder(ctx context.Context, order domain.ServiceOrder) (*domain.ServiceOrder, error)
	GetServiceOrder(ctx context.Context, id string) (*domain.ServiceOrder, error)
	ListServiceOrders(ctx context.Context, status string, limit int) ([]domain.ServiceOrder, error)
	UpdateServiceOrder(ctx context.Context, order domain.ServiceOrder) (*domain.ServiceOrder, error)

	GetDailyReport(ctx context.Context, from time.Time, to time.Time) (domain.DailyReport, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	CreateOperator(ctx context.Context, operator domain.OperatorAccount) error
	ListOperators(ctx context.Context) ([]domain.OperatorAccount, error)
	UpdateOperatorPIN(ctx context.Context, name string, pin string) error
}

package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/Alexcarrizal/cybermanager-pro-sub000/internal/domain"
	"github.com/Alexcarrizal/cybermanager-pro-sub000/internal/store"
	"github.com/Alexcarrizal/cybermanager-pro-sub000/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	tariffs         []domain.Tariff
	stationsByID    map[string]domain.Station
	stationOrder    []string
	productsByID    map[string]domain.Product
	customersByID   map[string]domain.Customer
	salesByID       map[string]domain.Sale
	saleOrder       []string
	serviceOrders   map[string]domain.ServiceOrder
	auditLogs       []domain.AuditLog
	operatorsByName map[string]domain.OperatorAccount
}

// seedOperators builds the initial operator accounts for dev/demo mode. PINs
// come from SEED_ADMIN_PIN and SEED_OPERATOR_PIN; hardcoded dev defaults are
// used with a warning when unset. Production deployments use PostgreSQL via
// DATABASE_URL and never touch these.
func seedOperators() map[string]domain.OperatorAccount {
	adminPIN := envOr("SEED_ADMIN_PIN", "975310")
	operatorPIN := envOr("SEED_OPERATOR_PIN", "135798")
	if os.Getenv("SEED_ADMIN_PIN") == "" || os.Getenv("SEED_OPERATOR_PIN") == "" {
		log.Println("[memory-store] WARNING: using default dev PINs. Set SEED_ADMIN_PIN and SEED_OPERATOR_PIN to override.")
	}

	now := time.Now().UTC()
	operators := map[string]domain.OperatorAccount{}
	for _, o := range []struct {
		name string
		pin  string
		role string
	}{
		{"admin", adminPIN, "admin"},
		{"operador", operatorPIN, "operator"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(o.pin), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed PIN for %s: %v", o.name, err)
		}
		operators[o.name] = domain.OperatorAccount{
			Name:      o.name,
			PIN:       string(hash),
			Role:      o.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return operators
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	tariffs := []domain.Tariff{
		{
			ID: "tariff-pc", Name: "PC Gamer", DeviceType: "pc",
			Ranges: []domain.TariffRange{
				{ID: "r-pc-1", MinMinutes: 1, MaxMinutes: 15, Price: 5},
				{ID: "r-pc-2", MinMinutes: 16, MaxMinutes: 30, Price: 10},
				{ID: "r-pc-3", MinMinutes: 31, MaxMinutes: 60, Price: 20},
			},
		},
		{
			ID: "tariff-console", Name: "Consola", DeviceType: "console",
			Ranges: []domain.TariffRange{
				{ID: "r-cs-1", MinMinutes: 1, MaxMinutes: 30, Price: 15},
				{ID: "r-cs-2", MinMinutes: 31, MaxMinutes: 60, Price: 25},
			},
		},
	}

	stations := []domain.Station{
		{ID: "st-pc-01", Name: "PC 01", DeviceType: "pc", Status: domain.StationAvailable},
		{ID: "st-pc-02", Name: "PC 02", DeviceType: "pc", Status: domain.StationAvailable},
		{ID: "st-pc-03", Name: "PC 03", DeviceType: "pc", Status: domain.StationAvailable},
		{ID: "st-xbox-01", Name: "Xbox 01", DeviceType: "console", Status: domain.StationAvailable},
		{ID: "st-ps-01", Name: "PS5 01", DeviceType: "console", Status: domain.StationAvailable},
	}

	products := []domain.Product{
		{ID: "prod-coca", Name: "Coca-Cola 600ml", Category: "bebidas", Price: 20, Cost: 13.5, Stock: 48, TrackStock: true, Active: true},
		{ID: "prod-sabritas", Name: "Sabritas Original", Category: "botanas", Price: 18, Cost: 12, Stock: 30, TrackStock: true, Active: true},
		{ID: "prod-gansito", Name: "Gansito", Category: "botanas", Price: 17, Cost: 11.8, Stock: 24, TrackStock: true, Active: true},
		{ID: "prod-agua", Name: "Agua 600ml", Category: "bebidas", Price: 12, Cost: 7, Stock: 60, TrackStock: true, Active: true},
		{ID: "prod-audifonos", Name: "Renta Audifonos", Category: "servicios", Price: 10, Cost: 0, Stock: 0, TrackStock: false, Active: true},
	}

	customers := []domain.Customer{
		{ID: domain.PublicCustomerID, Name: "Publico General", Points: 0},
		{ID: "cust-luis", Name: "Luis Hernandez", Phone: "5512345678", Points: 12},
		{ID: "cust-maria", Name: "Maria Torres", Phone: "5587654321", Points: 25},
	}

	stationMap := make(map[string]domain.Station, len(stations))
	stationOrder := make([]string, 0, len(stations))
	for _, st := range stations {
		stationMap[st.ID] = st
		stationOrder = append(stationOrder, st.ID)
	}

	productMap := make(map[string]domain.Product, len(products))
	for _, p := range products {
		productMap[p.ID] = p
	}

	customerMap := make(map[string]domain.Customer, len(customers))
	for _, c := range customers {
		customerMap[c.ID] = c
	}

	return &Store{
		tariffs:         tariffs,
		stationsByID:    stationMap,
		stationOrder:    stationOrder,
		productsByID:    productMap,
		customersByID:   customerMap,
		salesByID:       make(map[string]domain.Sale),
		saleOrder:       make([]string, 0, 128),
		serviceOrders:   make(map[string]domain.ServiceOrder),
		auditLogs:       make([]domain.AuditLog, 0, 128),
		operatorsByName: seedOperators(),
	}
}

func (s *Store) ListTariffs(_ context.Context) ([]domain.Tariff, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tariffs := make([]domain.Tariff, 0, len(s.tariffs))
	for _, t := range s.tariffs {
		tariffs = append(tariffs, cloneTariff(t))
	}
	return tariffs, nil
}

func (s *Store) GetTariff(_ context.Context, id string) (*domain.Tariff, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.tariffs {
		if t.ID == id {
			copied := cloneTariff(t)
			return &copied, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateTariff(_ context.Context, tariff domain.Tariff) (*domain.Tariff, error) {
	if tariff.ID == "" || tariff.Name == "" {
		return nil, store.ErrInvalidRequest
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.tariffs {
		if t.ID == tariff.ID {
			return nil, store.ErrInvalidRequest
		}
	}
	s.tariffs = append(s.tariffs, cloneTariff(tariff))
	created := cloneTariff(tariff)
	return &created, nil
}

func (s *Store) UpdateTariff(_ context.Context, tariff domain.Tariff) (*domain.Tariff, error) {
	if tariff.ID == "" || tariff.Name == "" {
		return nil, store.ErrInvalidRequest
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, t := range s.tariffs {
		if t.ID == tariff.ID {
			s.tariffs[i] = cloneTariff(tariff)
			updated := cloneTariff(tariff)
			return &updated, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListStations(_ context.Context) ([]domain.Station, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stations := make([]domain.Station, 0, len(s.stationOrder))
	for _, id := range s.stationOrder {
		if st, ok := s.stationsByID[id]; ok {
			stations = append(stations, cloneStation(st))
		}
	}
	return stations, nil
}

func (s *Store) GetStation(_ context.Context, id string) (*domain.Station, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.stationsByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := cloneStation(st)
	return &copied, nil
}

func (s *Store) CreateStation(_ context.Context, station domain.Station) (*domain.Station, error) {
	if station.ID == "" || station.Name == "" || station.DeviceType == "" {
		return nil, store.ErrInvalidRequest
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.stationsByID[station.ID]; exists {
		return nil, store.ErrInvalidRequest
	}
	s.stationsByID[station.ID] = cloneStation(station)
	s.stationOrder = append(s.stationOrder, station.ID)
	created := cloneStation(station)
	return &created, nil
}

func (s *Store) UpdateStation(_ context.Context, station domain.Station) (*domain.Station, error) {
	if station.ID == "" {
		return nil, store.ErrInvalidRequest
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.stationsByID[station.ID]; !exists {
		return nil, store.ErrNotFound
	}
	s.stationsByID[station.ID] = cloneStation(station)
	updated := cloneStation(station)
	return &updated, nil
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.productsByID))
	for _, p := range s.productsByID {
		if !p.Active {
			continue
		}
		products = append(products, p)
	}

	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Category == b.Category {
			return strings.Compare(a.Name, b.Name)
		}
		return strings.Compare(a.Category, b.Category)
	})
	return products, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.productsByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := p
	return &copied, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" || product.Name == "" || product.Price < 0 || product.Cost < 0 {
		return nil, store.ErrInvalidRequest
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.productsByID[product.ID]; exists {
		return nil, store.ErrInvalidRequest
	}
	product.Active = true
	s.productsByID[product.ID] = product
	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" || product.Name == "" || product.Price < 0 || product.Cost < 0 {
		return nil, store.ErrInvalidRequest
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.productsByID[product.ID]; !exists {
		return nil, store.ErrNotFound
	}
	s.productsByID[product.ID] = product
	updated := product
	return &updated, nil
}

func (s *Store) AdjustStock(_ context.Context, productID string, delta int) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.productsByID[productID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if !p.TrackStock {
		copied := p
		return &copied, nil
	}
	if p.Stock+delta < 0 {
		return nil, store.ErrInsufficientStock
	}
	p.Stock += delta
	s.productsByID[productID] = p
	copied := p
	return &copied, nil
}

func (s *Store) ListCustomers(_ context.Context) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := make([]domain.Customer, 0, len(s.customersByID))
	for _, c := range s.customersByID {
		customers = append(customers, c)
	}
	slices.SortFunc(customers, func(a, b domain.Customer) int {
		return strings.Compare(a.Name, b.Name)
	})
	return customers, nil
}

func (s *Store) GetCustomer(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customersByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := c
	return &copied, nil
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.ID == "" || customer.Name == "" {
		return nil, store.ErrInvalidRequest
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.customersByID[customer.ID]; exists {
		return nil, store.ErrInvalidRequest
	}
	s.customersByID[customer.ID] = customer
	created := customer
	return &created, nil
}

func (s *Store) UpdateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.ID == "" || customer.Name == "" {
		return nil, store.ErrInvalidRequest
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.customersByID[customer.ID]; !exists {
		return nil, store.ErrNotFound
	}
	s.customersByID[customer.ID] = customer
	updated := customer
	return &updated, nil
}

// AdjustPoints applies a signed delta with no balance floor: admin-forced
// multi-redemption may legitimately drive a balance negative.
func (s *Store) AdjustPoints(_ context.Context, customerID string, delta int) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.customersByID[customerID]
	if !ok {
		return nil, store.ErrNotFound
	}
	c.Points += delta
	s.customersByID[customerID] = c
	copied := c
	return &copied, nil
}

func (s *Store) AppendSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	if sale.ID == "" || len(sale.Items) == 0 {
		return nil, store.ErrInvalidRequest
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.salesByID[sale.ID]; exists {
		return nil, store.ErrInvalidRequest
	}
	s.salesByID[sale.ID] = cloneSale(sale)
	s.saleOrder = append(s.saleOrder, sale.ID)
	created := cloneSale(sale)
	return &created, nil
}

func (s *Store) GetSale(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.salesByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := cloneSale(sale)
	return &copied, nil
}

func (s *Store) ListSales(_ context.Context, from time.Time, to time.Time, saleType string, limit int) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 200
	}

	sales := make([]domain.Sale, 0, limit)
	for i := len(s.saleOrder) - 1; i >= 0; i-- {
		sale, ok := s.salesByID[s.saleOrder[i]]
		if !ok {
			continue
		}
		if !from.IsZero() && sale.Timestamp.Before(from) {
			continue
		}
		if !to.IsZero() && !sale.Timestamp.Before(to) {
			continue
		}
		if saleType != "" && sale.Type != saleType {
			continue
		}
		sales = append(sales, cloneSale(sale))
		if len(sales) >= limit {
			break
		}
	}
	return sales, nil
}

func (s *Store) DeleteSale(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.salesByID[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.salesByID, id)
	return nil
}

func (s *Store) CreateServiceOrder(_ context.Context, order domain.ServiceOrder) (*domain.ServiceOrder, error) {
	if order.ID == "" || order.CustomerName == "" || order.Device == "" {
		return nil, store.ErrInvalidRequest
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.serviceOrders[order.ID]; exists {
		return nil, store.ErrInvalidRequest
	}
	s.serviceOrders[order.ID] = order
	created := order
	return &created, nil
}

func (s *Store) GetServiceOrder(_ context.Context, id string) (*domain.ServiceOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.serviceOrders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := order
	return &copied, nil
}

func (s *Store) ListServiceOrders(_ context.Context, status string, limit int) ([]domain.ServiceOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 200
	}

	orders := make([]domain.ServiceOrder, 0, len(s.serviceOrders))
	for _, order := range s.serviceOrders {
		if status != "" && order.Status != status {
			continue
		}
		orders = append(orders, order)
	}
	slices.SortFunc(orders, func(a, b domain.ServiceOrder) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return strings.Compare(a.ID, b.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

func (s *Store) UpdateServiceOrder(_ context.Context, order domain.ServiceOrder) (*domain.ServiceOrder, error) {
	if order.ID == "" {
		return nil, store.ErrInvalidRequest
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.serviceOrders[order.ID]; !exists {
		return nil, store.ErrNotFound
	}
	s.serviceOrders[order.ID] = order
	updated := order
	return &updated, nil
}

func (s *Store) GetDailyReport(_ context.Context, from time.Time, to time.Time) (domain.DailyReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report := domain.DailyReport{}
	byType := map[string]*domain.DailyReportBucket{}
	byPayment := map[string]*domain.DailyReportBucket{}

	for _, id := range s.saleOrder {
		sale, ok := s.salesByID[id]
		if !ok {
			continue
		}
		if sale.Timestamp.Before(from) || !sale.Timestamp.Before(to) {
			continue
		}

		report.Sales++
		report.GrossTotal += sale.Total
		for _, item := range sale.Items {
			report.Profit += (item.PriceAtSale - item.CostAtSale) * float64(item.Qty)
		}

		typeBucket, ok := byType[sale.Type]
		if !ok {
			typeBucket = &domain.DailyReportBucket{Key: sale.Type}
			byType[sale.Type] = typeBucket
		}
		typeBucket.Sales++
		typeBucket.Total += sale.Total

		paymentBucket, ok := byPayment[sale.PaymentMethod]
		if !ok {
			paymentBucket = &domain.DailyReportBucket{Key: sale.PaymentMethod}
			byPayment[sale.PaymentMethod] = paymentBucket
		}
		paymentBucket.Sales++
		paymentBucket.Total += sale.Total
	}

	report.ByType = sortBuckets(byType)
	report.ByPayment = sortBuckets(byPayment)
	return report, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 100
	}

	logs := make([]domain.AuditLog, 0, limit)
	for i := len(s.auditLogs) - 1; i >= 0; i-- {
		entry := s.auditLogs[i]
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		logs = append(logs, entry)
		if len(logs) >= limit {
			break
		}
	}
	return logs, nil
}

func (s *Store) CreateOperator(_ context.Context, operator domain.OperatorAccount) error {
	if operator.Name == "" || operator.PIN == "" {
		return store.ErrInvalidRequest
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.operatorsByName[operator.Name]; exists {
		return store.ErrInvalidRequest
	}
	s.operatorsByName[operator.Name] = operator
	return nil
}

func (s *Store) ListOperators(_ context.Context) ([]domain.OperatorAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	operators := make([]domain.OperatorAccount, 0, len(s.operatorsByName))
	for _, o := range s.operatorsByName {
		operators = append(operators, o)
	}
	slices.SortFunc(operators, func(a, b domain.OperatorAccount) int {
		return strings.Compare(a.Name, b.Name)
	})
	return operators, nil
}

func (s *Store) UpdateOperatorPIN(_ context.Context, name string, pin string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.operatorsByName[name]
	if !ok {
		return store.ErrNotFound
	}
	o.PIN = pin
	s.operatorsByName[name] = o
	return nil
}

func cloneTariff(t domain.Tariff) domain.Tariff {
	copied := t
	copied.Ranges = make([]domain.TariffRange, len(t.Ranges))
	copy(copied.Ranges, t.Ranges)
	return copied
}

func cloneStation(st domain.Station) domain.Station {
	copied := st
	if st.Session != nil {
		session := *st.Session
		session.Orders = make([]domain.SessionItem, len(st.Session.Orders))
		copy(session.Orders, st.Session.Orders)
		copied.Session = &session
	}
	return copied
}

func cloneSale(sale domain.Sale) domain.Sale {
	copied := sale
	copied.Items = make([]domain.SaleItem, len(sale.Items))
	copy(copied.Items, sale.Items)
	return copied
}

func sortBuckets(buckets map[string]*domain.DailyReportBucket) []domain.DailyReportBucket {
	result := make([]domain.DailyReportBucket, 0, len(buckets))
	for _, b := range buckets {
		result = append(result, *b)
	}
	slices.SortFunc(result, func(a, b domain.DailyReportBucket) int {
		return strings.Compare(a.Key, b.Key)
	})
	return result
}

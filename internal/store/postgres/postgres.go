package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/Alexcarrizal/cybermanager-pro-sub000/internal/domain"
	"github.com/Alexcarrizal/cybermanager-pro-sub000/internal/store"
	"github.com/Alexcarrizal/cybermanager-pro-sub000/internal/xid"
)

// Store persists aggregates as rows with JSONB for the nested parts: tariff
// ranges, a station's live session, and sale line items travel as documents.
// They are only ever read and written whole, never queried field by field.
type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListTariffs(ctx context.Context) ([]domain.Tariff, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, device_type, ranges
		FROM tariffs
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tariffs := make([]domain.Tariff, 0, 16)
	for rows.Next() {
		tariff, err := scanTariff(rows)
		if err != nil {
			return nil, err
		}
		tariffs = append(tariffs, tariff)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tariffs, nil
}

func (s *Store) GetTariff(ctx context.Context, id string) (*domain.Tariff, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, device_type, ranges
		FROM tariffs
		WHERE id = $1
	`, id)
	tariff, err := scanTariff(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &tariff, nil
}

func (s *Store) CreateTariff(ctx context.Context, tariff domain.Tariff) (*domain.Tariff, error) {
	if tariff.ID == "" || tariff.Name == "" {
		return nil, store.ErrInvalidRequest
	}

	ranges, err := json.Marshal(tariff.Ranges)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tariffs (id, name, device_type, ranges, created_at, updated_at)
		VALUES ($1,$2,$3,$4,now(),now())
	`, tariff.ID, tariff.Name, tariff.DeviceType, ranges)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidRequest
		}
		return nil, err
	}

	created := tariff
	return &created, nil
}

func (s *Store) UpdateTariff(ctx context.Context, tariff domain.Tariff) (*domain.Tariff, error) {
	if tariff.ID == "" || tariff.Name == "" {
		return nil, store.ErrInvalidRequest
	}

	ranges, err := json.Marshal(tariff.Ranges)
	if err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE tariffs
		SET name = $2, device_type = $3, ranges = $4, updated_at = now()
		WHERE id = $1
	`, tariff.ID, tariff.Name, tariff.DeviceType, ranges)
	if err != nil {
		return nil, err
	}
	if err := requireAffected(res); err != nil {
		return nil, err
	}

	updated := tariff
	return &updated, nil
}

func (s *Store) ListStations(ctx context.Context) ([]domain.Station, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, device_type, status, COALESCE(tariff_id, ''), session
		FROM stations
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stations := make([]domain.Station, 0, 32)
	for rows.Next() {
		station, err := scanStation(rows)
		if err != nil {
			return nil, err
		}
		stations = append(stations, station)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return stations, nil
}

func (s *Store) GetStation(ctx context.Context, id string) (*domain.Station, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, device_type, status, COALESCE(tariff_id, ''), session
		FROM stations
		WHERE id = $1
	`, id)
	station, err := scanStation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &station, nil
}

func (s *Store) CreateStation(ctx context.Context, station domain.Station) (*domain.Station, error) {
	if station.ID == "" || station.Name == "" || station.DeviceType == "" {
		return nil, store.ErrInvalidRequest
	}

	session, err := marshalSession(station.Session)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO stations (id, name, device_type, status, tariff_id, session, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,now(),now())
	`, station.ID, station.Name, station.DeviceType, station.Status, nullIfEmpty(station.TariffID), session)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidRequest
		}
		return nil, err
	}

	created := station
	return &created, nil
}

func (s *Store) UpdateStation(ctx context.Context, station domain.Station) (*domain.Station, error) {
	if station.ID == "" {
		return nil, store.ErrInvalidRequest
	}

	session, err := marshalSession(station.Session)
	if err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE stations
		SET name = $2, device_type = $3, status = $4, tariff_id = $5, session = $6, updated_at = now()
		WHERE id = $1
	`, station.ID, station.Name, station.DeviceType, station.Status, nullIfEmpty(station.TariffID), session)
	if err != nil {
		return nil, err
	}
	if err := requireAffected(res); err != nil {
		return nil, err
	}

	updated := station
	return &updated, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, category, price, cost, stock, track_stock, active
		FROM products
		WHERE active = true
		ORDER BY category, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.Price, &p.Cost, &p.Stock, &p.TrackStock, &p.Active); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, category, price, cost, stock, track_stock, active
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Category, &p.Price, &p.Cost, &p.Stock, &p.TrackStock, &p.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" || product.Name == "" || product.Price < 0 || product.Cost < 0 {
		return nil, store.ErrInvalidRequest
	}

	product.Active = true
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, category, price, cost, stock, track_stock, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,now(),now())
	`, product.ID, product.Name, product.Category, product.Price, product.Cost, product.Stock, product.TrackStock, product.Active)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidRequest
		}
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" || product.Name == "" || product.Price < 0 || product.Cost < 0 {
		return nil, store.ErrInvalidRequest
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2, category = $3, price = $4, cost = $5, stock = $6, track_stock = $7, active = $8, updated_at = now()
		WHERE id = $1
	`, product.ID, product.Name, product.Category, product.Price, product.Cost, product.Stock, product.TrackStock, product.Active)
	if err != nil {
		return nil, err
	}
	if err := requireAffected(res); err != nil {
		return nil, err
	}

	updated := product
	return &updated, nil
}

func (s *Store) AdjustStock(ctx context.Context, productID string, delta int) (*domain.Product, error) {
	var p domain.Product
	err := s.db.QueryRowContext(ctx, `
		UPDATE products
		SET stock = CASE WHEN track_stock THEN stock + $2 ELSE stock END, updated_at = now()
		WHERE id = $1 AND (NOT track_stock OR stock + $2 >= 0)
		RETURNING id, name, category, price, cost, stock, track_stock, active
	`, productID, delta).Scan(&p.ID, &p.Name, &p.Category, &p.Price, &p.Cost, &p.Stock, &p.TrackStock, &p.Active)
	if err == nil {
		return &p, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	// No row matched: either the product is missing or the guard blocked a
	// negative stock.
	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT true FROM products WHERE id = $1`, productID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return nil, store.ErrInsufficientStock
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(phone, ''), COALESCE(email, ''), points
		FROM customers
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 128)
	for rows.Next() {
		var c domain.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.Points); err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return customers, nil
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	var c domain.Customer
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(phone, ''), COALESCE(email, ''), points
		FROM customers
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.Points)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.ID == "" || customer.Name == "" {
		return nil, store.ErrInvalidRequest
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, phone, email, points, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,now(),now())
	`, customer.ID, customer.Name, nullIfEmpty(customer.Phone), nullIfEmpty(customer.Email), customer.Points)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidRequest
		}
		return nil, err
	}

	created := customer
	return &created, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.ID == "" || customer.Name == "" {
		return nil, store.ErrInvalidRequest
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE customers
		SET name = $2, phone = $3, email = $4, points = $5, updated_at = now()
		WHERE id = $1
	`, customer.ID, customer.Name, nullIfEmpty(customer.Phone), nullIfEmpty(customer.Email), customer.Points)
	if err != nil {
		return nil, err
	}
	if err := requireAffected(res); err != nil {
		return nil, err
	}

	updated := customer
	return &updated, nil
}

func (s *Store) AdjustPoints(ctx context.Context, customerID string, delta int) (*domain.Customer, error) {
	var c domain.Customer
	err := s.db.QueryRowContext(ctx, `
		UPDATE customers
		SET points = points + $2, updated_at = now()
		WHERE id = $1
		RETURNING id, name, COALESCE(phone, ''), COALESCE(email, ''), points
	`, customerID, delta).Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.Points)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *Store) AppendSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if sale.ID == "" || len(sale.Items) == 0 {
		return nil, store.ErrInvalidRequest
	}

	items, err := json.Marshal(sale.Items)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sales (id, ts, type, payment_method, customer_id, items, total)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, sale.ID, sale.Timestamp, sale.Type, sale.PaymentMethod, nullIfEmpty(sale.CustomerID), items, sale.Total)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidRequest
		}
		return nil, err
	}

	created := sale
	return &created, nil
}

func (s *Store) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, ts, type, payment_method, COALESCE(customer_id, ''), items, total
		FROM sales
		WHERE id = $1
	`, id)
	sale, err := scanSale(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &sale, nil
}

func (s *Store) ListSales(ctx context.Context, from time.Time, to time.Time, saleType string, limit int) ([]domain.Sale, error) {
	if limit < 1 {
		limit = 200
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ts, type, payment_method, COALESCE(customer_id, ''), items, total
		FROM sales
		WHERE ts >= $1 AND ts < $2
			AND ($3 = '' OR type = $3)
		ORDER BY ts DESC
		LIMIT $4
	`, from, to, saleType, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, limit)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sales, nil
}

func (s *Store) DeleteSale(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) CreateServiceOrder(ctx context.Context, order domain.ServiceOrder) (*domain.ServiceOrder, error) {
	if order.ID == "" || order.CustomerName == "" || order.Device == "" {
		return nil, store.ErrInvalidRequest
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO service_orders (id, customer_id, customer_name, device, issue, status, labor_price, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, order.ID, nullIfEmpty(order.CustomerID), order.CustomerName, order.Device, order.Issue, order.Status, order.LaborPrice, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidRequest
		}
		return nil, err
	}

	created := order
	return &created, nil
}

func (s *Store) GetServiceOrder(ctx context.Context, id string) (*domain.ServiceOrder, error) {
	var order domain.ServiceOrder
	err := s.db.QueryRowContext(ctx, `
		SELECT id, COALESCE(customer_id, ''), customer_name, device, issue, status, labor_price, created_at, updated_at
		FROM service_orders
		WHERE id = $1
	`, id).Scan(&order.ID, &order.CustomerID, &order.CustomerName, &order.Device, &order.Issue, &order.Status, &order.LaborPrice, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	order.CreatedAt = order.CreatedAt.UTC()
	order.UpdatedAt = order.UpdatedAt.UTC()
	return &order, nil
}

func (s *Store) ListServiceOrders(ctx context.Context, status string, limit int) ([]domain.ServiceOrder, error) {
	if limit < 1 {
		limit = 200
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, COALESCE(customer_id, ''), customer_name, device, issue, status, labor_price, created_at, updated_at
		FROM service_orders
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]domain.ServiceOrder, 0, limit)
	for rows.Next() {
		var order domain.ServiceOrder
		if err := rows.Scan(&order.ID, &order.CustomerID, &order.CustomerName, &order.Device, &order.Issue, &order.Status, &order.LaborPrice, &order.CreatedAt, &order.UpdatedAt); err != nil {
			return nil, err
		}
		order.CreatedAt = order.CreatedAt.UTC()
		order.UpdatedAt = order.UpdatedAt.UTC()
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *Store) UpdateServiceOrder(ctx context.Context, order domain.ServiceOrder) (*domain.ServiceOrder, error) {
	if order.ID == "" {
		return nil, store.ErrInvalidRequest
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE service_orders
		SET customer_id = $2, customer_name = $3, device = $4, issue = $5, status = $6, labor_price = $7, updated_at = $8
		WHERE id = $1
	`, order.ID, nullIfEmpty(order.CustomerID), order.CustomerName, order.Device, order.Issue, order.Status, order.LaborPrice, order.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := requireAffected(res); err != nil {
		return nil, err
	}

	updated := order
	return &updated, nil
}

func (s *Store) GetDailyReport(ctx context.Context, from time.Time, to time.Time) (domain.DailyReport, error) {
	report := domain.DailyReport{
		ByType:    make([]domain.DailyReportBucket, 0, 5),
		ByPayment: make([]domain.DailyReportBucket, 0, 4),
	}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)::bigint, COALESCE(SUM(total), 0)
		FROM sales
		WHERE ts >= $1 AND ts < $2
	`, from, to).Scan(&report.Sales, &report.GrossTotal)
	if err != nil {
		return report, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM((i.price_at_sale - i.cost_at_sale) * i.qty), 0)
		FROM sales s,
			LATERAL jsonb_to_recordset(s.items) AS i(price_at_sale numeric, cost_at_sale numeric, qty int)
		WHERE s.ts >= $1 AND s.ts < $2
	`, from, to).Scan(&report.Profit)
	if err != nil {
		return report, err
	}

	typeRows, err := s.db.QueryContext(ctx, `
		SELECT type, COUNT(*)::bigint, COALESCE(SUM(total), 0)
		FROM sales
		WHERE ts >= $1 AND ts < $2
		GROUP BY type
		ORDER BY type
	`, from, to)
	if err != nil {
		return report, err
	}
	for typeRows.Next() {
		var row domain.DailyReportBucket
		if err := typeRows.Scan(&row.Key, &row.Sales, &row.Total); err != nil {
			_ = typeRows.Close()
			return report, err
		}
		report.ByType = append(report.ByType, row)
	}
	if err := typeRows.Err(); err != nil {
		_ = typeRows.Close()
		return report, err
	}
	_ = typeRows.Close()

	paymentRows, err := s.db.QueryContext(ctx, `
		SELECT payment_method, COUNT(*)::bigint, COALESCE(SUM(total), 0)
		FROM sales
		WHERE ts >= $1 AND ts < $2
		GROUP BY payment_method
		ORDER BY payment_method
	`, from, to)
	if err != nil {
		return report, err
	}
	for paymentRows.Next() {
		var row domain.DailyReportBucket
		if err := paymentRows.Scan(&row.Key, &row.Sales, &row.Total); err != nil {
			_ = paymentRows.Close()
			return report, err
		}
		report.ByPayment = append(report.ByPayment, row)
	}
	if err := paymentRows.Err(); err != nil {
		_ = paymentRows.Close()
		return report, err
	}
	_ = paymentRows.Close()

	return report, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, venue_id, actor_name, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, entry.ID, entry.VenueID, entry.ActorName, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, venue_id, actor_name, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at DESC
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.VenueID, &entry.ActorName, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) CreateOperator(ctx context.Context, operator domain.OperatorAccount) error {
	if operator.Name == "" || operator.PIN == "" {
		return store.ErrInvalidRequest
	}
	if operator.CreatedAt.IsZero() {
		operator.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO operators (name, pin_hash, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, operator.Name, operator.PIN, operator.Role, operator.Active, operator.CreatedAt)
	if err != nil && isUniqueViolation(err) {
		return store.ErrInvalidRequest
	}
	return err
}

func (s *Store) ListOperators(ctx context.Context) ([]domain.OperatorAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, pin_hash, role, active, created_at
		FROM operators
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	operators := make([]domain.OperatorAccount, 0, 16)
	for rows.Next() {
		var o domain.OperatorAccount
		if err := rows.Scan(&o.Name, &o.PIN, &o.Role, &o.Active, &o.CreatedAt); err != nil {
			return nil, err
		}
		o.CreatedAt = o.CreatedAt.UTC()
		operators = append(operators, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return operators, nil
}

func (s *Store) UpdateOperatorPIN(ctx context.Context, name string, pin string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE operators
		SET pin_hash = $2
		WHERE name = $1
	`, name, pin)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTariff(row rowScanner) (domain.Tariff, error) {
	var tariff domain.Tariff
	var ranges []byte
	if err := row.Scan(&tariff.ID, &tariff.Name, &tariff.DeviceType, &ranges); err != nil {
		return domain.Tariff{}, err
	}
	if err := json.Unmarshal(ranges, &tariff.Ranges); err != nil {
		return domain.Tariff{}, err
	}
	return tariff, nil
}

func scanStation(row rowScanner) (domain.Station, error) {
	var station domain.Station
	var session []byte
	if err := row.Scan(&station.ID, &station.Name, &station.DeviceType, &station.Status, &station.TariffID, &session); err != nil {
		return domain.Station{}, err
	}
	if len(session) > 0 {
		var s domain.Session
		if err := json.Unmarshal(session, &s); err != nil {
			return domain.Station{}, err
		}
		station.Session = &s
	}
	return station, nil
}

func scanSale(row rowScanner) (domain.Sale, error) {
	var sale domain.Sale
	var items []byte
	if err := row.Scan(&sale.ID, &sale.Timestamp, &sale.Type, &sale.PaymentMethod, &sale.CustomerID, &items, &sale.Total); err != nil {
		return domain.Sale{}, err
	}
	if err := json.Unmarshal(items, &sale.Items); err != nil {
		return domain.Sale{}, err
	}
	sale.Timestamp = sale.Timestamp.UTC()
	return sale, nil
}

func marshalSession(session *domain.Session) (any, error) {
	if session == nil {
		return nil, nil
	}
	return json.Marshal(session)
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

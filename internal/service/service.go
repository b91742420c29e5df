package service

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/Alexcarrizal/cybermanager-pro-sub000/internal/cache"
	"github.com/Alexcarrizal/cybermanager-pro-sub000/internal/domain"
	"github.com/Alexcarrizal/cybermanager-pro-sub000/internal/pricing"
	"github.com/Alexcarrizal/cybermanager-pro-sub000/internal/store"
	"github.com/Alexcarrizal/cybermanager-pro-sub000/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

const tariffCacheKey = "tariffs:all"

type Service struct {
	repo        store.Repository
	tariffCache cache.TariffCache
	cacheTTL    time.Duration
	venueID     string
	now         func() time.Time
}

func New(repo store.Repository, tariffCache cache.TariffCache, venueID string, cacheTTL time.Duration) *Service {
	if tariffCache == nil {
		tariffCache = cache.NoopTariffCache{}
	}
	if venueID == "" {
		venueID = "main-venue"
	}
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}

	return &Service{
		repo:        repo,
		tariffCache: tariffCache,
		cacheTTL:    cacheTTL,
		venueID:     venueID,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// loadTariffs serves the station status hot path from cache; a cache failure
// degrades to the repository, never to an error.
func (s *Service) loadTariffs(ctx context.Context) ([]domain.Tariff, error) {
	if cached, ok, err := s.tariffCache.Get(ctx, tariffCacheKey); err == nil && ok {
		return cached, nil
	} else if err != nil {
		log.Printf("[service] WARN: tariff cache read failed: %v", err)
	}

	tariffs, err := s.repo.ListTariffs(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.tariffCache.Set(ctx, tariffCacheKey, tariffs, s.cacheTTL); err != nil {
		log.Printf("[service] WARN: tariff cache write failed: %v", err)
	}
	return tariffs, nil
}

func (s *Service) invalidateTariffs(ctx context.Context) {
	if err := s.tariffCache.Invalidate(ctx, tariffCacheKey); err != nil {
		log.Printf("[service] WARN: tariff cache invalidation failed: %v", err)
	}
}

func (s *Service) ListTariffs(ctx context.Context) ([]domain.Tariff, error) {
	return s.loadTariffs(ctx)
}

func (s *Service) GetTariff(ctx context.Context, id string) (domain.Tariff, error) {
	tariff, err := s.repo.GetTariff(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Tariff{}, err
	}
	return *tariff, nil
}

func (s *Service) CreateTariff(ctx context.Context, req domain.TariffCreateRequest) (domain.Tariff, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Tariff{}, fmt.Errorf("admin role required")
	}

	req.Name = strings.TrimSpace(req.Name)
	req.DeviceType = strings.ToLower(strings.TrimSpace(req.DeviceType))
	if req.Name == "" || req.DeviceType == "" || len(req.Ranges) == 0 {
		return domain.Tariff{}, store.ErrInvalidRequest
	}

	ranges, err := buildRanges(req.Ranges)
	if err != nil {
		return domain.Tariff{}, err
	}

	tariff := domain.Tariff{
		ID:         xid.New("tariff"),
		Name:       req.Name,
		DeviceType: req.DeviceType,
		Ranges:     ranges,
	}
	saved, err := s.repo.CreateTariff(ctx, tariff)
	if err != nil {
		return domain.Tariff{}, err
	}

	s.invalidateTariffs(ctx)
	s.logAudit(ctx, "tariff_create", "tariff", saved.ID, fmt.Sprintf("name=%s,device=%s,ranges=%d", saved.Name, saved.DeviceType, len(saved.Ranges)))
	return *saved, nil
}

func (s *Service) UpdateTariff(ctx context.Context, id string, req domain.TariffUpdateRequest) (domain.Tariff, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Tariff{}, fmt.Errorf("admin role required")
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Tariff{}, store.ErrInvalidRequest
	}

	existing, err := s.repo.GetTariff(ctx, id)
	if err != nil {
		return domain.Tariff{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Tariff{}, store.ErrInvalidRequest
		}
		updated.Name = name
	}
	if req.DeviceType != nil {
		deviceType := strings.ToLower(strings.TrimSpace(*req.DeviceType))
		if deviceType == "" {
			return domain.Tariff{}, store.ErrInvalidRequest
		}
		updated.DeviceType = deviceType
	}
	if req.Ranges != nil {
		if len(*req.Ranges) == 0 {
			return domain.Tariff{}, store.ErrInvalidRequest
		}
		ranges, err := buildRanges(*req.Ranges)
		if err != nil {
			return domain.Tariff{}, err
		}
		updated.Ranges = ranges
	}

	saved, err := s.repo.UpdateTariff(ctx, updated)
	if err != nil {
		return domain.Tariff{}, err
	}

	s.invalidateTariffs(ctx)
	s.logAudit(ctx, "tariff_update", "tariff", saved.ID, fmt.Sprintf("name=%s,ranges=%d", saved.Name, len(saved.Ranges)))
	return *saved, nil
}

// buildRanges validates range rows individually. Gaps and overlaps between
// rows are allowed on purpose: the pricing fallback chain absorbs them.
func buildRanges(inputs []domain.TariffRangeInput) ([]domain.TariffRange, error) {
	ranges := make([]domain.TariffRange, 0, len(inputs))
	for _, in := range inputs {
		if in.MinMinutes < 0 || in.MaxMinutes < in.MinMinutes {
			return nil, store.ErrInvalidRequest
		}
		if in.Price < 0 || math.IsNaN(in.Price) || math.IsInf(in.Price, 0) {
			return nil, store.ErrInvalidRequest
		}
		ranges = append(ranges, domain.TariffRange{
			ID:         xid.New("range"),
			MinMinutes: in.MinMinutes,
			MaxMinutes: in.MaxMinutes,
			Price:      in.Price,
		})
	}
	return ranges, nil
}

func (s *Service) ListStations(ctx context.Context) ([]domain.Station, error) {
	return s.repo.ListStations(ctx)
}

func (s *Service) CreateStation(ctx context.Context, req domain.StationCreateRequest) (domain.Station, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Station{}, fmt.Errorf("admin role required")
	}

	req.Name = strings.TrimSpace(req.Name)
	req.DeviceType = strings.ToLower(strings.TrimSpace(req.DeviceType))
	if req.Name == "" || req.DeviceType == "" {
		return domain.Station{}, store.ErrInvalidRequest
	}
	if req.TariffID != "" {
		if _, err := s.repo.GetTariff(ctx, req.TariffID); err != nil {
			return domain.Station{}, err
		}
	}

	station := domain.Station{
		ID:         xid.New("st"),
		Name:       req.Name,
		DeviceType: req.DeviceType,
		Status:     domain.StationAvailable,
		TariffID:   req.TariffID,
	}
	saved, err := s.repo.CreateStation(ctx, station)
	if err != nil {
		return domain.Station{}, err
	}

	s.logAudit(ctx, "station_create", "station", saved.ID, fmt.Sprintf("name=%s,device=%s", saved.Name, saved.DeviceType))
	return *saved, nil
}

// SetStationMaintenance toggles a station in or out of maintenance. A station
// with a running session cannot enter maintenance; finalize it first.
func (s *Service) SetStationMaintenance(ctx context.Context, stationID string, on bool) (domain.Station, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Station{}, fmt.Errorf("admin role required")
	}

	station, err := s.repo.GetStation(ctx, strings.TrimSpace(stationID))
	if err != nil {
		return domain.Station{}, err
	}

	if on {
		if station.Status == domain.StationOccupied {
			return domain.Station{}, store.ErrStationBusy
		}
		station.Status = domain.StationMaintenance
	} else {
		if station.Status != domain.StationMaintenance {
			return domain.Station{}, store.ErrInvalidRequest
		}
		station.Status = domain.StationAvailable
	}

	saved, err := s.repo.UpdateStation(ctx, *station)
	if err != nil {
		return domain.Station{}, err
	}

	s.logAudit(ctx, "station_maintenance", "station", saved.ID, fmt.Sprintf("maintenance=%t", on))
	return *saved, nil
}

func (s *Service) StartSession(ctx context.Context, stationID string, req domain.StartSessionRequest) (domain.StartSessionResponse, error) {
	station, err := s.repo.GetStation(ctx, strings.TrimSpace(stationID))
	if err != nil {
		return domain.StartSessionResponse{}, err
	}
	switch station.Status {
	case domain.StationOccupied:
		return domain.StartSessionResponse{}, store.ErrStationBusy
	case domain.StationMaintenance:
		return domain.StartSessionResponse{}, store.ErrInvalidRequest
	}

	req.Type = strings.ToLower(strings.TrimSpace(req.Type))
	customerID := strings.TrimSpace(req.CustomerID)
	if customerID == "" {
		customerID = domain.PublicCustomerID
	}
	customer, err := s.repo.GetCustomer(ctx, customerID)
	if err != nil {
		return domain.StartSessionResponse{}, err
	}

	tariffs, err := s.loadTariffs(ctx)
	if err != nil {
		return domain.StartSessionResponse{}, err
	}
	tariff, found := pricing.Resolve(*station, tariffs)
	warning := !found

	session := domain.Session{
		ID:           xid.New("ses"),
		StationID:    station.ID,
		Type:         req.Type,
		CustomerID:   customer.ID,
		CustomerName: customer.Name,
		StartTime:    s.now(),
		Orders:       []domain.SessionItem{},
	}
	if found {
		session.TariffID = tariff.ID
	}

	switch req.Type {
	case domain.SessionOpen:
		// Billing resolves at finalize.
	case domain.SessionFixed:
		if !isFixedMenuChoice(req.PrepaidMinutes) {
			return domain.StartSessionResponse{}, store.ErrInvalidRequest
		}
		session.PrepaidMinutes = req.PrepaidMinutes
		session.TotalAmount = pricing.Round2(pricing.FixedPrice(req.PrepaidMinutes, tariff))
		if session.TotalAmount == 0 {
			warning = true
		}
	case domain.SessionFree:
		if req.FreeHours < 1 {
			return domain.StartSessionResponse{}, store.ErrInvalidRequest
		}
		if customer.ID == domain.PublicCustomerID {
			return domain.StartSessionResponse{}, store.ErrInvalidRequest
		}
		// Points are burned up front; abandoning the session early does not
		// refund them.
		if _, err := s.repo.AdjustPoints(ctx, customer.ID, -req.FreeHours*domain.PointsPerFreeHour); err != nil {
			return domain.StartSessionResponse{}, err
		}
		session.PrepaidMinutes = req.FreeHours * 60
	default:
		return domain.StartSessionResponse{}, store.ErrInvalidRequest
	}

	station.Status = domain.StationOccupied
	station.Session = &session
	if _, err := s.repo.UpdateStation(ctx, *station); err != nil {
		return domain.StartSessionResponse{}, err
	}

	s.logAudit(ctx, "session_start", "session", session.ID, fmt.Sprintf("station=%s,type=%s,customer=%s", station.ID, session.Type, session.CustomerID))
	return domain.StartSessionResponse{Session: session, TariffWarning: warning}, nil
}

// Prepaid blocks are sold from a fixed menu, not arbitrary durations.
func isFixedMenuChoice(minutes int) bool {
	switch minutes {
	case 30, 60, 120, 180, 300:
		return true
	}
	return false
}

func (s *Service) AddSessionOrder(ctx context.Context, stationID string, req domain.SessionOrderRequest) (domain.Session, error) {
	station, err := s.repo.GetStation(ctx, strings.TrimSpace(stationID))
	if err != nil {
		return domain.Session{}, err
	}
	if station.Status != domain.StationOccupied || station.Session == nil {
		return domain.Session{}, store.ErrStationFree
	}
	if req.Qty < 1 {
		return domain.Session{}, store.ErrInvalidRequest
	}

	item := domain.SessionItem{
		ID:      xid.New("item"),
		Qty:     req.Qty,
		AddedAt: s.now(),
	}

	if productID := strings.TrimSpace(req.ProductID); productID != "" {
		product, err := s.repo.GetProduct(ctx, productID)
		if err != nil {
			return domain.Session{}, err
		}
		if !product.Active {
			return domain.Session{}, store.ErrInvalidRequest
		}
		if _, err := s.repo.AdjustStock(ctx, product.ID, -req.Qty); err != nil {
			return domain.Session{}, err
		}
		item.Kind = domain.ItemKindCatalog
		item.ProductID = product.ID
		item.Name = product.Name
		item.Price = product.Price
	} else {
		name := strings.TrimSpace(req.Name)
		if name == "" || req.Price < 0 || math.IsNaN(req.Price) {
			return domain.Session{}, store.ErrInvalidRequest
		}
		item.Kind = domain.ItemKindCustom
		item.Name = name
		item.Price = req.Price
	}

	station.Session.Orders = append(station.Session.Orders, item)
	saved, err := s.repo.UpdateStation(ctx, *station)
	if err != nil {
		return domain.Session{}, err
	}

	s.logAudit(ctx, "session_order_add", "session", saved.Session.ID, fmt.Sprintf("station=%s,item=%s,qty=%d", station.ID, item.Name, item.Qty))
	return *saved.Session, nil
}

// StationStatus is the live advisory view the floor screen polls. It never
// writes: the figures shown here are recomputed from scratch at finalize.
func (s *Service) StationStatus(ctx context.Context, stationID string) (domain.StationStatusResponse, error) {
	station, err := s.repo.GetStation(ctx, strings.TrimSpace(stationID))
	if err != nil {
		return domain.StationStatusResponse{}, err
	}

	resp := domain.StationStatusResponse{
		StationID: station.ID,
		Status:    station.Status,
	}
	if station.Status != domain.StationOccupied || station.Session == nil {
		return resp, nil
	}

	session := station.Session
	resp.SessionType = session.Type
	elapsed := s.now().Sub(session.StartTime)
	resp.ElapsedMinutes = pricing.Minutes(elapsed)
	resp.OrdersTotal = pricing.Round2(ordersTotal(session.Orders))

	switch session.Type {
	case domain.SessionOpen:
		tariffs, err := s.loadTariffs(ctx)
		if err != nil {
			return domain.StationStatusResponse{}, err
		}
		tariff, found := pricing.Resolve(*station, tariffs)
		resp.TariffWarning = !found
		resp.RentalCost = pricing.Round2(pricing.Cost(resp.ElapsedMinutes, tariff))
	case domain.SessionFixed:
		resp.RentalCost = session.TotalAmount
		resp.RemainingSeconds = remainingSeconds(session.PrepaidMinutes, elapsed)
	case domain.SessionFree:
		resp.RemainingSeconds = remainingSeconds(session.PrepaidMinutes, elapsed)
	}

	return resp, nil
}

// The countdown never shows a negative number; an overrun block reads 0.
func remainingSeconds(prepaidMinutes int, elapsed time.Duration) int64 {
	remaining := int64(prepaidMinutes)*60 - int64(elapsed.Seconds())
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (s *Service) FinalizeSession(ctx context.Context, stationID string, req domain.FinalizeSessionRequest) (domain.FinalizeSessionResponse, error) {
	station, err := s.repo.GetStation(ctx, strings.TrimSpace(stationID))
	if err != nil {
		return domain.FinalizeSessionResponse{}, err
	}
	if station.Status != domain.StationOccupied || station.Session == nil {
		return domain.FinalizeSessionResponse{}, store.ErrStationFree
	}

	session := station.Session
	paymentMethod := strings.ToLower(strings.TrimSpace(req.PaymentMethod))
	if paymentMethod == "" {
		paymentMethod = "cash"
	}
	customerID := strings.TrimSpace(req.CustomerID)
	if customerID == "" {
		customerID = session.CustomerID
	}
	if customerID == "" {
		customerID = domain.PublicCustomerID
	}
	if _, err := s.repo.GetCustomer(ctx, customerID); err != nil {
		return domain.FinalizeSessionResponse{}, err
	}

	// Loyalty accrues on wall-clock time for every paid session type, so a
	// fixed block left early earns less than its prepaid minutes and an
	// overstayed one earns more. Only the price is frozen.
	elapsedMinutes := pricing.Minutes(s.now().Sub(session.StartTime))

	rentalCost := 0.0
	switch session.Type {
	case domain.SessionOpen:
		tariffs, err := s.loadTariffs(ctx)
		if err != nil {
			return domain.FinalizeSessionResponse{}, err
		}
		tariff, _ := pricing.Resolve(*station, tariffs)
		rentalCost = pricing.Round2(pricing.Cost(elapsedMinutes, tariff))
	case domain.SessionFixed:
		rentalCost = session.TotalAmount
	case domain.SessionFree:
		// Rental already paid in points at start; only the tab is charged.
	}

	items := make([]domain.SaleItem, 0, len(session.Orders)+3)
	// A free session keeps its zero-priced rental line as the ledger record of
	// the loyalty redemption.
	if rentalCost > 0 || session.Type == domain.SessionFree {
		items = append(items, domain.SaleItem{
			ProductID:   domain.RentalProductID,
			ProductName: fmt.Sprintf("Renta %s", station.Name),
			Qty:         1,
			PriceAtSale: rentalCost,
		})
	}

	total := rentalCost
	ordersSum := 0.0
	for _, order := range session.Orders {
		line := domain.SaleItem{
			ProductID:   order.ProductID,
			ProductName: order.Name,
			Qty:         order.Qty,
			PriceAtSale: order.Price,
		}
		if order.Kind == domain.ItemKindCatalog {
			// Cost basis is read at sale time, not at order time: a price
			// list update mid-session lands on the ledger.
			if product, err := s.repo.GetProduct(ctx, order.ProductID); err == nil {
				line.CostAtSale = product.Cost
			}
		}
		items = append(items, line)
		ordersSum += order.Price * float64(order.Qty)
	}
	ordersSum = pricing.Round2(ordersSum)
	total += ordersSum

	breakdown := pricing.ApplyOverlay(total, req.Overlay)
	if breakdown.VAT > 0 {
		items = append(items, domain.SaleItem{
			ProductID:   domain.VATProductID,
			ProductName: "IVA 16%",
			Qty:         1,
			PriceAtSale: breakdown.VAT,
		})
	}
	if breakdown.CommissionLine && breakdown.Commission > 0 {
		items = append(items, domain.SaleItem{
			ProductID:   domain.CommissionProductID,
			ProductName: "Comision terminal",
			Qty:         1,
			PriceAtSale: breakdown.Commission,
		})
	}
	if len(items) == 0 {
		// An open or fixed session that never accrued a charge (no resolvable
		// tariff, empty tab) produces no sale at all.
		station.Status = domain.StationAvailable
		station.Session = nil
		if _, err := s.repo.UpdateStation(ctx, *station); err != nil {
			return domain.FinalizeSessionResponse{}, err
		}
		s.logAudit(ctx, "session_finalize", "session", session.ID, fmt.Sprintf("station=%s,total=0", station.ID))
		return domain.FinalizeSessionResponse{CustomerID: customerID}, nil
	}

	sale := domain.Sale{
		ID:            xid.New("sale"),
		Timestamp:     s.now(),
		Type:          domain.SaleTypeRental,
		PaymentMethod: paymentMethod,
		CustomerID:    customerID,
		Items:         items,
		Total:         breakdown.Total,
	}
	saved, err := s.repo.AppendSale(ctx, sale)
	if err != nil {
		return domain.FinalizeSessionResponse{}, err
	}

	station.Status = domain.StationAvailable
	station.Session = nil
	if _, err := s.repo.UpdateStation(ctx, *station); err != nil {
		return domain.FinalizeSessionResponse{}, err
	}

	points := 0
	if customerID != domain.PublicCustomerID && session.Type != domain.SessionFree {
		points = (elapsedMinutes / 60) * domain.PointsPerHour
		if points > 0 {
			if _, err := s.repo.AdjustPoints(ctx, customerID, points); err != nil {
				log.Printf("[service] WARN: failed to accrue points customer=%s: %v", customerID, err)
				points = 0
			}
		}
	}

	s.logAudit(ctx, "session_finalize", "session", session.ID, fmt.Sprintf("station=%s,sale=%s,total=%.3f,points=%d", station.ID, saved.ID, saved.Total, points))
	return domain.FinalizeSessionResponse{
		SaleID:        saved.ID,
		RentalCost:    rentalCost,
		OrdersTotal:   ordersSum,
		VATAmount:     breakdown.VAT,
		Commission:    breakdown.Commission,
		Total:         breakdown.Total,
		PointsAccrued: points,
		CustomerID:    customerID,
	}, nil
}

func (s *Service) Checkout(ctx context.Context, req domain.CheckoutRequest) (domain.CheckoutResponse, error) {
	if len(req.Items) == 0 {
		return domain.CheckoutResponse{}, store.ErrInvalidRequest
	}
	paymentMethod := strings.ToLower(strings.TrimSpace(req.PaymentMethod))
	if paymentMethod == "" {
		paymentMethod = "cash"
	}
	customerID := strings.TrimSpace(req.CustomerID)
	if customerID == "" {
		customerID = domain.PublicCustomerID
	}
	if _, err := s.repo.GetCustomer(ctx, customerID); err != nil {
		return domain.CheckoutResponse{}, err
	}

	// Validate the whole cart before touching stock so a failure partway
	// through cannot leave half the cart decremented.
	type pricedLine struct {
		product domain.Product
		qty     int
	}
	lines := make([]pricedLine, 0, len(req.Items))
	for _, item := range req.Items {
		if strings.TrimSpace(item.ProductID) == "" || item.Qty < 1 {
			return domain.CheckoutResponse{}, store.ErrInvalidRequest
		}
		product, err := s.repo.GetProduct(ctx, item.ProductID)
		if err != nil {
			return domain.CheckoutResponse{}, err
		}
		if !product.Active {
			return domain.CheckoutResponse{}, store.ErrInvalidRequest
		}
		if product.TrackStock && product.Stock < item.Qty {
			return domain.CheckoutResponse{}, store.ErrInsufficientStock
		}
		lines = append(lines, pricedLine{product: *product, qty: item.Qty})
	}

	subtotal := 0.0
	items := make([]domain.SaleItem, 0, len(lines)+2)
	for _, line := range lines {
		if _, err := s.repo.AdjustStock(ctx, line.product.ID, -line.qty); err != nil {
			return domain.CheckoutResponse{}, err
		}
		items = append(items, domain.SaleItem{
			ProductID:   line.product.ID,
			ProductName: line.product.Name,
			Qty:         line.qty,
			PriceAtSale: line.product.Price,
			CostAtSale:  line.product.Cost,
		})
		subtotal += line.product.Price * float64(line.qty)
	}
	subtotal = pricing.Round2(subtotal)

	breakdown := pricing.ApplyOverlay(subtotal, req.Overlay)
	if breakdown.VAT > 0 {
		items = append(items, domain.SaleItem{
			ProductID:   domain.VATProductID,
			ProductName: "IVA 16%",
			Qty:         1,
			PriceAtSale: breakdown.VAT,
		})
	}
	if breakdown.CommissionLine && breakdown.Commission > 0 {
		items = append(items, domain.SaleItem{
			ProductID:   domain.CommissionProductID,
			ProductName: "Comision terminal",
			Qty:         1,
			PriceAtSale: breakdown.Commission,
		})
	}

	// Tendered-cash sufficiency is a front-desk concern; the sale itself has
	// no concept of it. Change is advisory and never negative.
	change := 0.0
	if paymentMethod == "cash" && req.CashReceived > breakdown.Total {
		change = pricing.Round2(req.CashReceived - breakdown.Total)
	}

	sale := domain.Sale{
		ID:            xid.New("sale"),
		Timestamp:     s.now(),
		Type:          domain.SaleTypePOS,
		PaymentMethod: paymentMethod,
		CustomerID:    customerID,
		Items:         items,
		Total:         breakdown.Total,
	}
	saved, err := s.repo.AppendSale(ctx, sale)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}

	s.logAudit(ctx, "checkout", "sale", saved.ID, fmt.Sprintf("total=%.3f,payment=%s,items=%d", saved.Total, paymentMethod, len(lines)))
	return domain.CheckoutResponse{
		SaleID:     saved.ID,
		Subtotal:   subtotal,
		VATAmount:  breakdown.VAT,
		Commission: breakdown.Commission,
		Total:      breakdown.Total,
		Change:     change,
	}, nil
}

func (s *Service) ManualSale(ctx context.Context, req domain.ManualSaleRequest) (domain.Sale, error) {
	req.Description = strings.TrimSpace(req.Description)
	if req.Description == "" || req.Amount <= 0 || math.IsNaN(req.Amount) {
		return domain.Sale{}, store.ErrInvalidRequest
	}
	paymentMethod := strings.ToLower(strings.TrimSpace(req.PaymentMethod))
	if paymentMethod == "" {
		paymentMethod = "cash"
	}
	customerID := strings.TrimSpace(req.CustomerID)
	if customerID == "" {
		customerID = domain.PublicCustomerID
	}

	amount := pricing.Round2(req.Amount)
	sale := domain.Sale{
		ID:            xid.New("sale"),
		Timestamp:     s.now(),
		Type:          domain.SaleTypeManual,
		PaymentMethod: paymentMethod,
		CustomerID:    customerID,
		Items: []domain.SaleItem{{
			ProductName: req.Description,
			Qty:         1,
			PriceAtSale: amount,
		}},
		Total: amount,
	}
	saved, err := s.repo.AppendSale(ctx, sale)
	if err != nil {
		return domain.Sale{}, err
	}

	s.logAudit(ctx, "manual_sale", "sale", saved.ID, fmt.Sprintf("amount=%.2f,desc=%s", amount, req.Description))
	return *saved, nil
}

func (s *Service) StreamingSale(ctx context.Context, req domain.StreamingSaleRequest) (domain.Sale, error) {
	req.AccountName = strings.TrimSpace(req.AccountName)
	if req.AccountName == "" || req.Price <= 0 || req.Cost < 0 {
		return domain.Sale{}, store.ErrInvalidRequest
	}
	paymentMethod := strings.ToLower(strings.TrimSpace(req.PaymentMethod))
	if paymentMethod == "" {
		paymentMethod = "cash"
	}
	customerID := strings.TrimSpace(req.CustomerID)
	if customerID == "" {
		customerID = domain.PublicCustomerID
	}

	price := pricing.Round2(req.Price)
	sale := domain.Sale{
		ID:            xid.New("sale"),
		Timestamp:     s.now(),
		Type:          domain.SaleTypeStreaming,
		PaymentMethod: paymentMethod,
		CustomerID:    customerID,
		Items: []domain.SaleItem{{
			ProductName: "Cuenta streaming: " + req.AccountName,
			Qty:         1,
			PriceAtSale: price,
			CostAtSale:  pricing.Round2(req.Cost),
		}},
		Total: price,
	}
	saved, err := s.repo.AppendSale(ctx, sale)
	if err != nil {
		return domain.Sale{}, err
	}

	s.logAudit(ctx, "streaming_sale", "sale", saved.ID, fmt.Sprintf("account=%s,price=%.2f", req.AccountName, price))
	return *saved, nil
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.ToLower(strings.TrimSpace(req.Category))
	if req.Name == "" || req.Price < 0 || req.Cost < 0 || req.Stock < 0 {
		return domain.Product{}, store.ErrInvalidRequest
	}

	product := domain.Product{
		ID:         xid.New("prod"),
		Name:       req.Name,
		Category:   req.Category,
		Price:      pricing.Round2(req.Price),
		Cost:       pricing.Round2(req.Cost),
		Stock:      req.Stock,
		TrackStock: req.TrackStock,
		Active:     true,
	}
	saved, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_create", "product", saved.ID, fmt.Sprintf("name=%s,price=%.2f,stock=%d", saved.Name, saved.Price, saved.Stock))
	return *saved, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	existing, err := s.repo.GetProduct(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, store.ErrInvalidRequest
		}
		updated.Name = name
	}
	if req.Category != nil {
		updated.Category = strings.ToLower(strings.TrimSpace(*req.Category))
	}
	if req.Price != nil {
		if *req.Price < 0 {
			return domain.Product{}, store.ErrInvalidRequest
		}
		updated.Price = pricing.Round2(*req.Price)
	}
	if req.Cost != nil {
		if *req.Cost < 0 {
			return domain.Product{}, store.ErrInvalidRequest
		}
		updated.Cost = pricing.Round2(*req.Cost)
	}
	if req.Stock != nil {
		if *req.Stock < 0 {
			return domain.Product{}, store.ErrInvalidRequest
		}
		updated.Stock = *req.Stock
	}
	if req.TrackStock != nil {
		updated.TrackStock = *req.TrackStock
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_update", "product", saved.ID, fmt.Sprintf("active=%t,price=%.2f,stock=%d", saved.Active, saved.Price, saved.Stock))
	return *saved, nil
}

func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx)
}

func (s *Service) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	customer, err := s.repo.GetCustomer(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Customer{}, err
	}
	return *customer, nil
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (domain.Customer, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Customer{}, store.ErrInvalidRequest
	}

	customer := domain.Customer{
		ID:    xid.New("cust"),
		Name:  req.Name,
		Phone: strings.TrimSpace(req.Phone),
		Email: strings.TrimSpace(req.Email),
	}
	saved, err := s.repo.CreateCustomer(ctx, customer)
	if err != nil {
		return domain.Customer{}, err
	}

	s.logAudit(ctx, "customer_create", "customer", saved.ID, fmt.Sprintf("name=%s", saved.Name))
	return *saved, nil
}

func (s *Service) UpdateCustomer(ctx context.Context, id string, req domain.CustomerUpdateRequest) (domain.Customer, error) {
	id = strings.TrimSpace(id)
	if id == domain.PublicCustomerID {
		return domain.Customer{}, store.ErrInvalidRequest
	}

	existing, err := s.repo.GetCustomer(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Customer{}, store.ErrInvalidRequest
		}
		updated.Name = name
	}
	if req.Phone != nil {
		updated.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Email != nil {
		updated.Email = strings.TrimSpace(*req.Email)
	}

	saved, err := s.repo.UpdateCustomer(ctx, updated)
	if err != nil {
		return domain.Customer{}, err
	}

	s.logAudit(ctx, "customer_update", "customer", saved.ID, fmt.Sprintf("name=%s", saved.Name))
	return *saved, nil
}

// AdjustCustomerPoints is the manual admin override for the loyalty balance.
// The public walk-in record never carries points.
func (s *Service) AdjustCustomerPoints(ctx context.Context, id string, req domain.PointsAdjustRequest) (domain.Customer, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Customer{}, fmt.Errorf("admin role required")
	}

	id = strings.TrimSpace(id)
	if id == domain.PublicCustomerID || req.Delta == 0 {
		return domain.Customer{}, store.ErrInvalidRequest
	}

	saved, err := s.repo.AdjustPoints(ctx, id, req.Delta)
	if err != nil {
		return domain.Customer{}, err
	}

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "unspecified"
	}
	s.logAudit(ctx, "points_adjust", "customer", saved.ID, fmt.Sprintf("delta=%d,balance=%d,reason=%s", req.Delta, saved.Points, reason))
	return *saved, nil
}

func (s *Service) CreateServiceOrder(ctx context.Context, req domain.ServiceOrderCreateRequest) (domain.ServiceOrder, error) {
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.Device = strings.TrimSpace(req.Device)
	req.Issue = strings.TrimSpace(req.Issue)
	if req.CustomerName == "" || req.Device == "" || req.LaborPrice < 0 {
		return domain.ServiceOrder{}, store.ErrInvalidRequest
	}
	if customerID := strings.TrimSpace(req.CustomerID); customerID != "" {
		if _, err := s.repo.GetCustomer(ctx, customerID); err != nil {
			return domain.ServiceOrder{}, err
		}
		req.CustomerID = customerID
	}

	now := s.now()
	order := domain.ServiceOrder{
		ID:           xid.New("svc"),
		CustomerID:   req.CustomerID,
		CustomerName: req.CustomerName,
		Device:       req.Device,
		Issue:        req.Issue,
		Status:       domain.ServiceOrderReceived,
		LaborPrice:   pricing.Round2(req.LaborPrice),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	saved, err := s.repo.CreateServiceOrder(ctx, order)
	if err != nil {
		return domain.ServiceOrder{}, err
	}

	s.logAudit(ctx, "service_order_create", "service_order", saved.ID, fmt.Sprintf("device=%s,labor=%.2f", saved.Device, saved.LaborPrice))
	return *saved, nil
}

func (s *Service) ListServiceOrders(ctx context.Context, status string, limit int) ([]domain.ServiceOrder, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if status != "" && serviceStatusRank(status) < 0 {
		return nil, store.ErrInvalidRequest
	}
	return s.repo.ListServiceOrders(ctx, status, limit)
}

// UpdateServiceOrderStatus advances a repair through its workflow. Delivery is
// terminal and records the labor charge on the sales ledger.
func (s *Service) UpdateServiceOrderStatus(ctx context.Context, id string, req domain.ServiceOrderStatusRequest) (domain.ServiceOrder, error) {
	next := strings.ToLower(strings.TrimSpace(req.Status))
	if serviceStatusRank(next) < 0 {
		return domain.ServiceOrder{}, store.ErrInvalidRequest
	}

	order, err := s.repo.GetServiceOrder(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.ServiceOrder{}, err
	}
	if serviceStatusRank(next) <= serviceStatusRank(order.Status) {
		return domain.ServiceOrder{}, store.ErrInvalidRequest
	}

	order.Status = next
	order.UpdatedAt = s.now()
	saved, err := s.repo.UpdateServiceOrder(ctx, *order)
	if err != nil {
		return domain.ServiceOrder{}, err
	}

	saleID := ""
	if next == domain.ServiceOrderDelivered && saved.LaborPrice > 0 {
		paymentMethod := strings.ToLower(strings.TrimSpace(req.PaymentMethod))
		if paymentMethod == "" {
			paymentMethod = "cash"
		}
		customerID := saved.CustomerID
		if customerID == "" {
			customerID = domain.PublicCustomerID
		}
		sale := domain.Sale{
			ID:            xid.New("sale"),
			Timestamp:     s.now(),
			Type:          domain.SaleTypeService,
			PaymentMethod: paymentMethod,
			CustomerID:    customerID,
			Items: []domain.SaleItem{{
				ProductName: fmt.Sprintf("Servicio tecnico: %s", saved.Device),
				Qty:         1,
				PriceAtSale: saved.LaborPrice,
			}},
			Total: saved.LaborPrice,
		}
		appended, err := s.repo.AppendSale(ctx, sale)
		if err != nil {
			return domain.ServiceOrder{}, err
		}
		saleID = appended.ID
	}

	s.logAudit(ctx, "service_order_status", "service_order", saved.ID, fmt.Sprintf("status=%s,sale=%s", next, saleID))
	return *saved, nil
}

func serviceStatusRank(status string) int {
	switch status {
	case domain.ServiceOrderReceived:
		return 0
	case domain.ServiceOrderInRepair:
		return 1
	case domain.ServiceOrderReady:
		return 2
	case domain.ServiceOrderDelivered:
		return 3
	default:
		return -1
	}
}

func (s *Service) ListSales(ctx context.Context, date string, saleType string, limit int) ([]domain.Sale, error) {
	from, to, err := dayBounds(date)
	if err != nil {
		return nil, err
	}
	return s.repo.ListSales(ctx, from, to, strings.ToLower(strings.TrimSpace(saleType)), limit)
}

func (s *Service) DeleteSale(ctx context.Context, id string) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return fmt.Errorf("admin role required")
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return store.ErrInvalidRequest
	}
	if err := s.repo.DeleteSale(ctx, id); err != nil {
		return err
	}

	s.logAudit(ctx, "sale_delete", "sale", id, "deleted from ledger")
	return nil
}

func (s *Service) DailyReport(ctx context.Context, date string) (domain.DailyReport, error) {
	from, to, err := dayBounds(date)
	if err != nil {
		return domain.DailyReport{}, err
	}

	report, err := s.repo.GetDailyReport(ctx, from, to)
	if err != nil {
		return domain.DailyReport{}, err
	}
	report.Date = from.Format("2006-01-02")
	report.GrossTotal = pricing.Round2(report.GrossTotal)
	report.Profit = pricing.Round2(report.Profit)
	return report, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, date string, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}
	from, to, err := dayBounds(date)
	if err != nil {
		return nil, err
	}
	return s.repo.ListAuditLogs(ctx, from, to, limit)
}

func dayBounds(date string) (time.Time, time.Time, error) {
	var from time.Time
	if strings.TrimSpace(date) == "" {
		now := time.Now().UTC()
		from = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	} else {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return time.Time{}, time.Time{}, store.ErrInvalidRequest
		}
		from = parsed.UTC()
	}
	return from, from.Add(24 * time.Hour), nil
}

func ordersTotal(orders []domain.SessionItem) float64 {
	total := 0.0
	for _, order := range orders {
		total += order.Price * float64(order.Qty)
	}
	return total
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, _ := ActorFromContext(ctx)
	err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:         xid.New("audit"),
		VenueID:    s.venueID,
		ActorName:  actor.Name,
		ActorRole:  actor.Role,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detail,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		log.Printf("[service] WARN: failed to write audit log action=%s: %v", action, err)
	}
}

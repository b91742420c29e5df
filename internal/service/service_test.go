package service

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/Alexcarrizal/cybermanager-pro-sub000/internal/cache"
	"github.com/Alexcarrizal/cybermanager-pro-sub000/internal/domain"
	"github.com/Alexcarrizal/cybermanager-pro-sub000/internal/store"
	"github.com/Alexcarrizal/cybermanager-pro-sub000/internal/store/memory"
)

func newTestService(t *testing.T) (*Service, *time.Time) {
	t.Helper()
	svc := New(memory.NewSeeded(), cache.NoopTariffCache{}, "test-venue", time.Minute)
	now := time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	return svc, &now
}

func adminCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Name: "admin", Role: "admin"})
}

func operatorCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Name: "operador", Role: "operator"})
}

func TestStartSessionOccupiesStation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := operatorCtx()

	resp, err := svc.StartSession(ctx, "st-pc-01", domain.StartSessionRequest{Type: domain.SessionOpen})
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	if resp.Session.CustomerID != domain.PublicCustomerID {
		t.Fatalf("expected default public customer, got %s", resp.Session.CustomerID)
	}
	if resp.TariffWarning {
		t.Fatalf("seeded pc station should resolve a tariff")
	}

	station, err := svc.repo.GetStation(ctx, "st-pc-01")
	if err != nil {
		t.Fatalf("get station: %v", err)
	}
	if station.Status != domain.StationOccupied || station.Session == nil {
		t.Fatalf("expected occupied station with session, got %s", station.Status)
	}

	if _, err := svc.StartSession(ctx, "st-pc-01", domain.StartSessionRequest{Type: domain.SessionOpen}); !errors.Is(err, store.ErrStationBusy) {
		t.Fatalf("expected ErrStationBusy on double start, got %v", err)
	}
}

func TestOpenSessionLiveBillingAndPoints(t *testing.T) {
	svc, now := newTestService(t)
	ctx := operatorCtx()

	before, err := svc.GetCustomer(ctx, "cust-maria")
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}
	if before.Points != 25 {
		t.Fatalf("expected seeded balance 25, got %d", before.Points)
	}

	if _, err := svc.StartSession(ctx, "st-pc-01", domain.StartSessionRequest{
		Type:       domain.SessionOpen,
		CustomerID: "cust-maria",
	}); err != nil {
		t.Fatalf("start session: %v", err)
	}

	// 130 minutes on the seeded tiered tariff: 2 hours at 20 plus a
	// 10-minute remainder in the first tier (5) = 45.
	*now = now.Add(130 * time.Minute)

	status, err := svc.StationStatus(ctx, "st-pc-01")
	if err != nil {
		t.Fatalf("station status: %v", err)
	}
	if status.ElapsedMinutes != 130 {
		t.Fatalf("expected 130 elapsed minutes, got %d", status.ElapsedMinutes)
	}
	if status.RentalCost != 45 {
		t.Fatalf("expected live rental cost 45, got %v", status.RentalCost)
	}

	final, err := svc.FinalizeSession(ctx, "st-pc-01", domain.FinalizeSessionRequest{PaymentMethod: "cash"})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if final.RentalCost != 45 || final.Total != 45 {
		t.Fatalf("expected rental 45 total 45, got %v / %v", final.RentalCost, final.Total)
	}
	if final.PointsAccrued != 2 {
		t.Fatalf("expected 2 points for 130 minutes, got %d", final.PointsAccrued)
	}

	after, err := svc.GetCustomer(ctx, "cust-maria")
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}
	if after.Points != 27 {
		t.Fatalf("expected balance 27 after accrual, got %d", after.Points)
	}

	station, err := svc.repo.GetStation(ctx, "st-pc-01")
	if err != nil {
		t.Fatalf("get station: %v", err)
	}
	if station.Status != domain.StationAvailable || station.Session != nil {
		t.Fatalf("expected station released after finalize, got %s", station.Status)
	}
}

func TestFixedSessionPriceIsFrozen(t *testing.T) {
	svc, now := newTestService(t)
	ctx := operatorCtx()

	if _, err := svc.StartSession(ctx, "st-pc-02", domain.StartSessionRequest{
		Type:           domain.SessionFixed,
		PrepaidMinutes: 75,
	}); !errors.Is(err, store.ErrInvalidRequest) {
		t.Fatalf("expected off-menu prepaid block rejection, got %v", err)
	}

	resp, err := svc.StartSession(ctx, "st-pc-02", domain.StartSessionRequest{
		Type:           domain.SessionFixed,
		PrepaidMinutes: 120,
	})
	if err != nil {
		t.Fatalf("start fixed session: %v", err)
	}
	// 2 hours at the hourly rate of 20.
	if resp.Session.TotalAmount != 40 {
		t.Fatalf("expected frozen price 40, got %v", resp.Session.TotalAmount)
	}

	status, err := svc.StationStatus(ctx, "st-pc-02")
	if err != nil {
		t.Fatalf("station status: %v", err)
	}
	if status.RemainingSeconds != 120*60 {
		t.Fatalf("expected full countdown at start, got %d", status.RemainingSeconds)
	}

	// Overstaying a fixed block never changes the agreed price, and the
	// countdown bottoms out at zero instead of going negative.
	*now = now.Add(5 * time.Hour)

	status, err = svc.StationStatus(ctx, "st-pc-02")
	if err != nil {
		t.Fatalf("station status: %v", err)
	}
	if status.RentalCost != 40 {
		t.Fatalf("expected frozen status cost 40, got %v", status.RentalCost)
	}
	if status.RemainingSeconds != 0 {
		t.Fatalf("expected countdown floored at zero on overrun, got %d", status.RemainingSeconds)
	}

	final, err := svc.FinalizeSession(ctx, "st-pc-02", domain.FinalizeSessionRequest{PaymentMethod: "cash"})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if final.RentalCost != 40 {
		t.Fatalf("expected finalized rental 40, got %v", final.RentalCost)
	}
}

func TestFixedSessionAccrualUsesElapsedTime(t *testing.T) {
	svc, now := newTestService(t)
	ctx := operatorCtx()

	// Prepaying two hours but leaving after ten minutes earns nothing.
	if _, err := svc.StartSession(ctx, "st-pc-01", domain.StartSessionRequest{
		Type:           domain.SessionFixed,
		CustomerID:     "cust-maria",
		PrepaidMinutes: 120,
	}); err != nil {
		t.Fatalf("start fixed session: %v", err)
	}
	*now = now.Add(10 * time.Minute)

	final, err := svc.FinalizeSession(ctx, "st-pc-01", domain.FinalizeSessionRequest{PaymentMethod: "cash"})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if final.RentalCost != 40 {
		t.Fatalf("expected frozen price 40 despite leaving early, got %v", final.RentalCost)
	}
	if final.PointsAccrued != 0 {
		t.Fatalf("expected 0 points for 10 elapsed minutes, got %d", final.PointsAccrued)
	}

	customer, err := svc.GetCustomer(ctx, "cust-maria")
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}
	if customer.Points != 25 {
		t.Fatalf("expected balance unchanged at 25, got %d", customer.Points)
	}

	// Overstaying a one-hour block for three hours earns all three.
	if _, err := svc.StartSession(ctx, "st-pc-01", domain.StartSessionRequest{
		Type:           domain.SessionFixed,
		CustomerID:     "cust-maria",
		PrepaidMinutes: 60,
	}); err != nil {
		t.Fatalf("start second fixed session: %v", err)
	}
	*now = now.Add(185 * time.Minute)

	final, err = svc.FinalizeSession(ctx, "st-pc-01", domain.FinalizeSessionRequest{PaymentMethod: "cash"})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if final.RentalCost != 20 {
		t.Fatalf("expected frozen price 20 despite overstay, got %v", final.RentalCost)
	}
	if final.PointsAccrued != 3 {
		t.Fatalf("expected 3 points for 185 elapsed minutes, got %d", final.PointsAccrued)
	}

	customer, err = svc.GetCustomer(ctx, "cust-maria")
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}
	if customer.Points != 28 {
		t.Fatalf("expected balance 25+3=28, got %d", customer.Points)
	}
}

func TestFreeSessionBurnsPointsUpFront(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := operatorCtx()

	if _, err := svc.StartSession(ctx, "st-pc-01", domain.StartSessionRequest{
		Type:      domain.SessionFree,
		FreeHours: 2,
	}); !errors.Is(err, store.ErrInvalidRequest) {
		t.Fatalf("expected public customer rejection for free session, got %v", err)
	}

	if _, err := svc.StartSession(ctx, "st-pc-01", domain.StartSessionRequest{
		Type:       domain.SessionFree,
		CustomerID: "cust-maria",
		FreeHours:  2,
	}); err != nil {
		t.Fatalf("start free session: %v", err)
	}

	customer, err := svc.GetCustomer(ctx, "cust-maria")
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}
	if customer.Points != 5 {
		t.Fatalf("expected 25-20=5 points immediately after start, got %d", customer.Points)
	}

	// Even with an empty tab the redemption leaves a zero-priced rental line
	// on the ledger, and never accrues points back.
	final, err := svc.FinalizeSession(ctx, "st-pc-01", domain.FinalizeSessionRequest{PaymentMethod: "cash"})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if final.SaleID == "" || final.Total != 0 || final.PointsAccrued != 0 {
		t.Fatalf("expected zero-total sale for free session, got %+v", final)
	}

	sale, err := svc.repo.GetSale(ctx, final.SaleID)
	if err != nil {
		t.Fatalf("get sale: %v", err)
	}
	if len(sale.Items) != 1 || sale.Items[0].ProductID != domain.RentalProductID || sale.Items[0].PriceAtSale != 0 {
		t.Fatalf("expected single zero-priced rental line, got %+v", sale.Items)
	}

	after, err := svc.GetCustomer(ctx, "cust-maria")
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}
	if after.Points != 5 {
		t.Fatalf("expected balance unchanged at finalize, got %d", after.Points)
	}
}

func TestSessionOrdersChargeAndDecrementStock(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := operatorCtx()

	if _, err := svc.StartSession(ctx, "st-xbox-01", domain.StartSessionRequest{Type: domain.SessionOpen}); err != nil {
		t.Fatalf("start session: %v", err)
	}

	if _, err := svc.AddSessionOrder(ctx, "st-xbox-01", domain.SessionOrderRequest{
		ProductID: "prod-coca",
		Qty:       2,
	}); err != nil {
		t.Fatalf("add catalog order: %v", err)
	}
	if _, err := svc.AddSessionOrder(ctx, "st-xbox-01", domain.SessionOrderRequest{
		Name:  "Propina",
		Price: 7.5,
		Qty:   1,
	}); err != nil {
		t.Fatalf("add custom order: %v", err)
	}

	product, err := svc.repo.GetProduct(ctx, "prod-coca")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.Stock != 46 {
		t.Fatalf("expected stock 48-2=46, got %d", product.Stock)
	}

	status, err := svc.StationStatus(ctx, "st-xbox-01")
	if err != nil {
		t.Fatalf("station status: %v", err)
	}
	if status.OrdersTotal != 47.5 {
		t.Fatalf("expected orders total 2*20+7.5=47.5, got %v", status.OrdersTotal)
	}
}

func TestFinalizeTotalMatchesLedgerLines(t *testing.T) {
	svc, now := newTestService(t)
	ctx := operatorCtx()

	if _, err := svc.StartSession(ctx, "st-pc-03", domain.StartSessionRequest{Type: domain.SessionOpen}); err != nil {
		t.Fatalf("start session: %v", err)
	}
	if _, err := svc.AddSessionOrder(ctx, "st-pc-03", domain.SessionOrderRequest{ProductID: "prod-sabritas", Qty: 1}); err != nil {
		t.Fatalf("add order: %v", err)
	}
	*now = now.Add(60 * time.Minute)

	final, err := svc.FinalizeSession(ctx, "st-pc-03", domain.FinalizeSessionRequest{
		PaymentMethod: "card",
		Overlay:       domain.CheckoutOverlay{WithVAT: true},
	})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}

	sale, err := svc.repo.GetSale(ctx, final.SaleID)
	if err != nil {
		t.Fatalf("get sale: %v", err)
	}

	lineSum := 0.0
	for _, item := range sale.Items {
		lineSum += item.PriceAtSale * float64(item.Qty)
	}
	if math.Abs(lineSum-sale.Total) > 1e-9 {
		t.Fatalf("ledger lines sum to %v but sale total is %v", lineSum, sale.Total)
	}
	// Rental 20 + snack 18 = 38, VAT 6.08, total 44.08.
	if math.Abs(sale.Total-44.08) > 1e-9 {
		t.Fatalf("expected total 44.08, got %v", sale.Total)
	}
	if sale.Type != domain.SaleTypeRental {
		t.Fatalf("expected rental sale, got %s", sale.Type)
	}
}

func TestCheckoutStockAndChange(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := operatorCtx()

	resp, err := svc.Checkout(ctx, domain.CheckoutRequest{
		Items:         []domain.CartItem{{ProductID: "prod-agua", Qty: 3}},
		PaymentMethod: "cash",
		CashReceived:  50,
	})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if resp.Subtotal != 36 || resp.Total != 36 {
		t.Fatalf("expected 3*12=36 total, got %v / %v", resp.Subtotal, resp.Total)
	}
	if resp.Change != 14 {
		t.Fatalf("expected change 14, got %v", resp.Change)
	}

	product, err := svc.repo.GetProduct(ctx, "prod-agua")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.Stock != 57 {
		t.Fatalf("expected stock 60-3=57, got %d", product.Stock)
	}

	if _, err := svc.Checkout(ctx, domain.CheckoutRequest{
		Items:         []domain.CartItem{{ProductID: "prod-agua", Qty: 100}},
		PaymentMethod: "cash",
		CashReceived:  5000,
	}); !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	// Short cash is the front desk's problem, not the ledger's; the sale
	// still goes through with no change due.
	short, err := svc.Checkout(ctx, domain.CheckoutRequest{
		Items:         []domain.CartItem{{ProductID: "prod-agua", Qty: 1}},
		PaymentMethod: "cash",
		CashReceived:  5,
	})
	if err != nil {
		t.Fatalf("checkout with short cash: %v", err)
	}
	if short.Change != 0 {
		t.Fatalf("expected zero change on short cash, got %v", short.Change)
	}
}

func TestCheckoutCommissionOverlay(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := operatorCtx()
	term := 0

	resp, err := svc.Checkout(ctx, domain.CheckoutRequest{
		Items:         []domain.CartItem{{ProductID: "prod-coca", Qty: 5}},
		PaymentMethod: "card",
		Overlay: domain.CheckoutOverlay{
			CommissionTermMonths: &term,
			CommissionClientPays: true,
		},
	})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	// 100 subtotal, 3.6% x 1.16 = 4.176 commission carried by the client.
	if math.Abs(resp.Commission-4.176) > 1e-9 {
		t.Fatalf("expected commission 4.176, got %v", resp.Commission)
	}
	if math.Abs(resp.Total-104.176) > 1e-9 {
		t.Fatalf("expected total 104.176, got %v", resp.Total)
	}

	sale, err := svc.repo.GetSale(ctx, resp.SaleID)
	if err != nil {
		t.Fatalf("get sale: %v", err)
	}
	found := false
	for _, item := range sale.Items {
		if item.ProductID == domain.CommissionProductID {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected commission line on the sale")
	}
}

func TestServiceOrderDeliveryAppendsSale(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := operatorCtx()

	order, err := svc.CreateServiceOrder(ctx, domain.ServiceOrderCreateRequest{
		CustomerName: "Luis Hernandez",
		CustomerID:   "cust-luis",
		Device:       "Laptop HP",
		Issue:        "no enciende",
		LaborPrice:   350,
	})
	if err != nil {
		t.Fatalf("create service order: %v", err)
	}
	if order.Status != domain.ServiceOrderReceived {
		t.Fatalf("expected received status, got %s", order.Status)
	}

	for _, next := range []string{domain.ServiceOrderInRepair, domain.ServiceOrderReady, domain.ServiceOrderDelivered} {
		if order, err = svc.UpdateServiceOrderStatus(ctx, order.ID, domain.ServiceOrderStatusRequest{Status: next}); err != nil {
			t.Fatalf("advance to %s: %v", next, err)
		}
	}

	if _, err := svc.UpdateServiceOrderStatus(ctx, order.ID, domain.ServiceOrderStatusRequest{Status: domain.ServiceOrderReady}); !errors.Is(err, store.ErrInvalidRequest) {
		t.Fatalf("expected backward transition rejection, got %v", err)
	}

	sales, err := svc.ListSales(ctx, "2025-06-10", domain.SaleTypeService, 10)
	if err != nil {
		t.Fatalf("list sales: %v", err)
	}
	if len(sales) != 1 {
		t.Fatalf("expected one service sale, got %d", len(sales))
	}
	if sales[0].Total != 350 || sales[0].CustomerID != "cust-luis" {
		t.Fatalf("unexpected service sale: %+v", sales[0])
	}
}

func TestAdjustPointsGuards(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.AdjustCustomerPoints(operatorCtx(), "cust-luis", domain.PointsAdjustRequest{Delta: 5}); err == nil {
		t.Fatalf("expected operator role rejection")
	}
	if _, err := svc.AdjustCustomerPoints(adminCtx(), domain.PublicCustomerID, domain.PointsAdjustRequest{Delta: 5}); !errors.Is(err, store.ErrInvalidRequest) {
		t.Fatalf("expected public customer rejection, got %v", err)
	}

	customer, err := svc.AdjustCustomerPoints(adminCtx(), "cust-luis", domain.PointsAdjustRequest{Delta: -4, Reason: "premio canjeado"})
	if err != nil {
		t.Fatalf("adjust points: %v", err)
	}
	if customer.Points != 8 {
		t.Fatalf("expected 12-4=8 points, got %d", customer.Points)
	}
}

func TestTariffCRUDRequiresAdmin(t *testing.T) {
	svc, _ := newTestService(t)

	req := domain.TariffCreateRequest{
		Name:       "VR",
		DeviceType: "vr",
		Ranges:     []domain.TariffRangeInput{{MinMinutes: 0, MaxMinutes: 60, Price: 50}},
	}
	if _, err := svc.CreateTariff(operatorCtx(), req); err == nil {
		t.Fatalf("expected operator role rejection")
	}

	created, err := svc.CreateTariff(adminCtx(), req)
	if err != nil {
		t.Fatalf("create tariff: %v", err)
	}
	if len(created.Ranges) != 1 || created.Ranges[0].ID == "" {
		t.Fatalf("expected range ids assigned, got %+v", created.Ranges)
	}

	badPrice := domain.TariffCreateRequest{
		Name:       "Broken",
		DeviceType: "pc",
		Ranges:     []domain.TariffRangeInput{{MinMinutes: 0, MaxMinutes: 60, Price: math.NaN()}},
	}
	if _, err := svc.CreateTariff(adminCtx(), badPrice); !errors.Is(err, store.ErrInvalidRequest) {
		t.Fatalf("expected NaN price rejection, got %v", err)
	}
}

func TestMaintenanceLifecycle(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.SetStationMaintenance(adminCtx(), "st-ps-01", true); err != nil {
		t.Fatalf("enter maintenance: %v", err)
	}
	if _, err := svc.StartSession(operatorCtx(), "st-ps-01", domain.StartSessionRequest{Type: domain.SessionOpen}); !errors.Is(err, store.ErrInvalidRequest) {
		t.Fatalf("expected session rejection on maintenance station, got %v", err)
	}
	if _, err := svc.SetStationMaintenance(adminCtx(), "st-ps-01", false); err != nil {
		t.Fatalf("exit maintenance: %v", err)
	}

	if _, err := svc.StartSession(operatorCtx(), "st-xbox-01", domain.StartSessionRequest{Type: domain.SessionOpen}); err != nil {
		t.Fatalf("start session: %v", err)
	}
	if _, err := svc.SetStationMaintenance(adminCtx(), "st-xbox-01", true); !errors.Is(err, store.ErrStationBusy) {
		t.Fatalf("expected busy station rejection, got %v", err)
	}
}

func TestDailyReportBuckets(t *testing.T) {
	svc, now := newTestService(t)
	ctx := operatorCtx()

	if _, err := svc.Checkout(ctx, domain.CheckoutRequest{
		Items:         []domain.CartItem{{ProductID: "prod-coca", Qty: 1}},
		PaymentMethod: "cash",
		CashReceived:  20,
	}); err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if _, err := svc.ManualSale(ctx, domain.ManualSaleRequest{
		Description:   "Impresiones",
		Amount:        15,
		PaymentMethod: "cash",
	}); err != nil {
		t.Fatalf("manual sale: %v", err)
	}
	if _, err := svc.StreamingSale(ctx, domain.StreamingSaleRequest{
		AccountName:   "Netflix mensual",
		Price:         60,
		Cost:          45,
		PaymentMethod: "card",
	}); err != nil {
		t.Fatalf("streaming sale: %v", err)
	}

	report, err := svc.DailyReport(ctx, now.Format("2006-01-02"))
	if err != nil {
		t.Fatalf("daily report: %v", err)
	}
	if report.Sales != 3 {
		t.Fatalf("expected 3 sales, got %d", report.Sales)
	}
	if report.GrossTotal != 95 {
		t.Fatalf("expected gross 20+15+60=95, got %v", report.GrossTotal)
	}
	// Coca margin 6.5 + manual 15 + streaming margin 15 = 36.5.
	if math.Abs(report.Profit-36.5) > 1e-9 {
		t.Fatalf("expected profit 36.5, got %v", report.Profit)
	}
	if len(report.ByType) != 3 || len(report.ByPayment) != 2 {
		t.Fatalf("unexpected buckets: %+v / %+v", report.ByType, report.ByPayment)
	}
}

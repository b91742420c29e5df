package pricing

import (
	"math"
	"testing"
	"time"

	"github.com/Alexcarrizal/cybermanager-pro-sub000/internal/domain"
)

func tieredTariff() *domain.Tariff {
	return &domain.Tariff{
		ID:         "tariff-pc",
		Name:       "PC",
		DeviceType: "pc",
		Ranges: []domain.TariffRange{
			{ID: "r1", MinMinutes: 1, MaxMinutes: 15, Price: 5},
			{ID: "r2", MinMinutes: 16, MaxMinutes: 30, Price: 10},
			{ID: "r3", MinMinutes: 31, MaxMinutes: 60, Price: 20},
		},
	}
}

func TestMinutesRoundsPartialMinutesUp(t *testing.T) {
	if got := Minutes(61 * time.Second); got != 2 {
		t.Fatalf("expected 61s to bill as 2 minutes, got %d", got)
	}
	if got := Minutes(60 * time.Second); got != 1 {
		t.Fatalf("expected 60s to bill as 1 minute, got %d", got)
	}
	if got := Minutes(0); got != 0 {
		t.Fatalf("expected 0 elapsed to bill 0 minutes, got %d", got)
	}
	if got := Minutes(-5 * time.Second); got != 0 {
		t.Fatalf("expected negative elapsed to bill 0 minutes, got %d", got)
	}
}

func TestCostSingleRangeHourlyRepeat(t *testing.T) {
	tariff := &domain.Tariff{
		ID:     "tariff-flat",
		Ranges: []domain.TariffRange{{MinMinutes: 0, MaxMinutes: 60, Price: 18}},
	}

	if got := Cost(60, tariff); got != 18 {
		t.Fatalf("expected 60 minutes to cost 18, got %v", got)
	}
	if got := Cost(120, tariff); got != 36 {
		t.Fatalf("expected 120 minutes to cost 36, got %v", got)
	}
}

func TestCostTieredScenario(t *testing.T) {
	tariff := tieredTariff()

	// 1 full hour at the hourly rule plus 15 remaining minutes at tier 1.
	if got := Cost(75, tariff); got != 25 {
		t.Fatalf("expected 75 minutes to cost 25, got %v", got)
	}
	if got := Cost(15, tariff); got != 5 {
		t.Fatalf("expected 15 minutes to cost 5, got %v", got)
	}
	if got := Cost(45, tariff); got != 20 {
		t.Fatalf("expected 45 minutes to cost 20, got %v", got)
	}
}

func TestCostEmptyTariffYieldsZero(t *testing.T) {
	if got := Cost(90, nil); got != 0 {
		t.Fatalf("expected nil tariff to cost 0, got %v", got)
	}
	if got := Cost(90, &domain.Tariff{}); got != 0 {
		t.Fatalf("expected empty ranges to cost 0, got %v", got)
	}
}

func TestCostNeverNegativeOrNaN(t *testing.T) {
	tariff := &domain.Tariff{
		Ranges: []domain.TariffRange{{MinMinutes: 0, MaxMinutes: 60, Price: math.NaN()}},
	}
	for _, minutes := range []int{0, 1, 37, 60, 61, 240, 10000} {
		got := Cost(minutes, tariff)
		if math.IsNaN(got) || got < 0 {
			t.Fatalf("expected non-negative non-NaN cost for %d minutes, got %v", minutes, got)
		}
	}
}

func TestCostRemainderFallbackToFirstCoveringRange(t *testing.T) {
	// Gap between 15 and 31 minutes: a 20-minute remainder has no exact
	// match and should land on the first range wide enough to cover it.
	tariff := &domain.Tariff{
		Ranges: []domain.TariffRange{
			{MinMinutes: 1, MaxMinutes: 15, Price: 5},
			{MinMinutes: 31, MaxMinutes: 60, Price: 20},
		},
	}
	if got := Cost(20, tariff); got != 20 {
		t.Fatalf("expected 20-minute gap remainder to fall to covering range (20), got %v", got)
	}
}

func TestCostRemainderLinearEstimateWhenNoRangeCovers(t *testing.T) {
	// No range reaches 50 minutes, so the remainder is pro-rated against
	// the hourly rule (here the last range, price 12).
	tariff := &domain.Tariff{
		Ranges: []domain.TariffRange{
			{MinMinutes: 1, MaxMinutes: 30, Price: 12},
		},
	}
	want := 12 * 50.0 / 60.0
	if got := Cost(50, tariff); math.Abs(got-want) > 1e-9 {
		t.Fatalf("expected linear estimate %v, got %v", want, got)
	}
}

func TestFixedPriceFrozenBlocks(t *testing.T) {
	tariff := tieredTariff()
	if got := FixedPrice(120, tariff); got != 40 {
		t.Fatalf("expected 120 prepaid minutes to cost 40, got %v", got)
	}
	if got := FixedPrice(30, tariff); got != 10 {
		t.Fatalf("expected 30 prepaid minutes to cost 10, got %v", got)
	}
}

func TestResolveOrderedFallback(t *testing.T) {
	tariffs := []domain.Tariff{
		{ID: "t-console", DeviceType: "console"},
		{ID: "t-pc", DeviceType: "pc"},
	}

	bound := domain.Station{ID: "st-1", DeviceType: "pc", TariffID: "t-console"}
	if resolved, ok := Resolve(bound, tariffs); !ok || resolved.ID != "t-console" {
		t.Fatalf("expected station binding to win, got %+v ok=%v", resolved, ok)
	}

	byType := domain.Station{ID: "st-2", DeviceType: "pc"}
	if resolved, ok := Resolve(byType, tariffs); !ok || resolved.ID != "t-pc" {
		t.Fatalf("expected device-type match, got %+v ok=%v", resolved, ok)
	}

	firstInList := domain.Station{ID: "st-3", DeviceType: "vr"}
	if resolved, ok := Resolve(firstInList, tariffs); !ok || resolved.ID != "t-console" {
		t.Fatalf("expected first-in-list fallback, got %+v ok=%v", resolved, ok)
	}

	if _, ok := Resolve(firstInList, nil); ok {
		t.Fatalf("expected no tariff when list is empty")
	}
}

func TestApplyOverlayVATOnly(t *testing.T) {
	b := ApplyOverlay(100, domain.CheckoutOverlay{WithVAT: true})
	if b.VAT != 16 {
		t.Fatalf("expected VAT 16, got %v", b.VAT)
	}
	if b.Total != 116 {
		t.Fatalf("expected total 116, got %v", b.Total)
	}
	if b.Commission != 0 || b.CommissionLine {
		t.Fatalf("expected no commission, got %v line=%v", b.Commission, b.CommissionLine)
	}
}

func TestApplyOverlayClientBorneCommission(t *testing.T) {
	term := 0
	b := ApplyOverlay(100, domain.CheckoutOverlay{
		CommissionTermMonths: &term,
		CommissionClientPays: true,
	})

	// Single payment: 3.6% plus VAT on the rate = 4.176%.
	if math.Abs(b.Commission-4.176) > 1e-9 {
		t.Fatalf("expected commission 4.176, got %v", b.Commission)
	}
	if !b.CommissionLine {
		t.Fatalf("expected commission to be a sale line")
	}
	if math.Abs(b.Total-104.176) > 1e-9 {
		t.Fatalf("expected total 104.176, got %v", b.Total)
	}
}

func TestApplyOverlaySellerBorneCommissionInformational(t *testing.T) {
	term := 12
	b := ApplyOverlay(100, domain.CheckoutOverlay{
		CommissionTermMonths: &term,
		CommissionClientPays: false,
	})

	if b.Commission <= 0 {
		t.Fatalf("expected informational commission > 0")
	}
	if b.CommissionLine {
		t.Fatalf("seller-borne commission must not become a sale line")
	}
	if b.Total != 100 {
		t.Fatalf("expected charged total to stay at 100, got %v", b.Total)
	}
}

func TestCommissionRateUnknownTermFallsBack(t *testing.T) {
	if got, want := CommissionRate(7), CommissionRate(0); got != want {
		t.Fatalf("expected unknown term to use single-payment rate %v, got %v", want, got)
	}
}

func TestRoundingPrecision(t *testing.T) {
	if got := Round2(1.236); got != 1.24 {
		t.Fatalf("expected Round2(1.236)=1.24, got %v", got)
	}
	if got := Round3(4.1764); got != 4.176 {
		t.Fatalf("expected Round3(4.1764)=4.176, got %v", got)
	}
}

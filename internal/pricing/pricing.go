package pricing

import (
	"math"
	"time"

	"github.com/Alexcarrizal/cybermanager-pro-sub000/internal/domain"
)

// Minutes converts a live elapsed duration into billable minutes. Partial
// minutes always round up: one second on the clock is one billed minute.
func Minutes(elapsed time.Duration) int {
	if elapsed <= 0 {
		return 0
	}
	return int(math.Ceil(elapsed.Minutes()))
}

// Cost prices totalMinutes against a tariff using tiered hourly billing: the
// first partial hour is priced by the range table, every whole hour repeats
// the hourly rule (the range with max_minutes == 60, or the last range when
// no such range exists). A nil or empty tariff yields 0; a misconfigured
// tariff must never block a rental, only surface a warning upstream.
func Cost(totalMinutes int, tariff *domain.Tariff) float64 {
	if tariff == nil || len(tariff.Ranges) == 0 || totalMinutes <= 0 {
		return 0
	}

	hourly := hourlyPrice(tariff)
	hours := totalMinutes / 60
	remainder := totalMinutes % 60

	total := float64(hours) * hourly
	if remainder > 0 {
		total += remainderPrice(remainder, tariff, hourly)
	}

	if math.IsNaN(total) || total < 0 {
		return 0
	}
	return total
}

// FixedPrice prices a prepaid block. The prepaid minutes come straight from
// the operator's menu choice, so no rounding is involved.
func FixedPrice(prepaidMinutes int, tariff *domain.Tariff) float64 {
	return Cost(prepaidMinutes, tariff)
}

func hourlyPrice(tariff *domain.Tariff) float64 {
	for _, r := range tariff.Ranges {
		if r.MaxMinutes == 60 {
			return r.Price
		}
	}
	return tariff.Ranges[len(tariff.Ranges)-1].Price
}

// remainderPrice resolves the first-partial-hour price with a three-level
// fallback, because tariff editors do not enforce full minute coverage:
// exact range match, then the first range wide enough to cover the
// remainder, then a linear pro-rata of the hourly rule.
func remainderPrice(remainder int, tariff *domain.Tariff, hourly float64) float64 {
	for _, r := range tariff.Ranges {
		if remainder >= r.MinMinutes && remainder <= r.MaxMinutes {
			return r.Price
		}
	}
	for _, r := range tariff.Ranges {
		if r.MaxMinutes >= remainder {
			return r.Price
		}
	}
	return hourly * float64(remainder) / 60
}

// Resolve picks the tariff for a station: its explicit binding first, then
// the first tariff matching the station's device type, then the first tariff
// overall. The no-tariff case is a first-class outcome, not an error.
func Resolve(station domain.Station, tariffs []domain.Tariff) (*domain.Tariff, bool) {
	if station.TariffID != "" {
		for i := range tariffs {
			if tariffs[i].ID == station.TariffID {
				return &tariffs[i], true
			}
		}
	}
	for i := range tariffs {
		if tariffs[i].DeviceType == station.DeviceType {
			return &tariffs[i], true
		}
	}
	if len(tariffs) > 0 {
		return &tariffs[0], true
	}
	return nil, false
}

// VATRate is the flat surcharge applied when a checkout opts into invoicing.
const VATRate = 0.16

// commissionRates maps a card-terminal financing term (months, 0 = single
// payment) to the processor's base percentage. The effective rate charged is
// the base rate plus VAT on the rate (x1.16).
var commissionRates = map[int]float64{
	0:  3.6,
	3:  4.9,
	6:  7.9,
	9:  9.9,
	12: 12.9,
	18: 14.4,
}

// CommissionRate returns the effective percentage for a financing term. An
// unknown term falls back to the single-payment rate.
func CommissionRate(termMonths int) float64 {
	base, ok := commissionRates[termMonths]
	if !ok {
		base = commissionRates[0]
	}
	return base * (1 + VATRate)
}

// Breakdown is the result of applying the checkout overlay to a subtotal.
type Breakdown struct {
	Subtotal       float64
	VAT            float64
	Commission     float64
	CommissionLine bool
	Total          float64
}

// ApplyOverlay layers the optional VAT surcharge and card-terminal
// commission on top of a subtotal. When the client bears the commission it
// becomes part of the charged total (and the caller appends it as a sale
// line); when the seller absorbs it the figure is informational only and the
// total stays at subtotal+VAT. Commission keeps 3-decimal precision, every
// other amount rounds to 2 decimals.
func ApplyOverlay(subtotal float64, overlay domain.CheckoutOverlay) Breakdown {
	b := Breakdown{Subtotal: Round2(subtotal)}

	if overlay.WithVAT {
		b.VAT = Round2(b.Subtotal * VATRate)
	}
	taxed := b.Subtotal + b.VAT

	if overlay.CommissionTermMonths != nil {
		rate := CommissionRate(*overlay.CommissionTermMonths)
		b.Commission = Round3(taxed * rate / 100)
		b.CommissionLine = overlay.CommissionClientPays
	}

	b.Total = taxed
	if b.CommissionLine {
		b.Total = taxed + b.Commission
	}
	return b
}

// Round2 rounds to whole cents; the display precision for every monetary
// amount except commission lines.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Round3 keeps sub-cent precision for commission amounts across rate tiers.
func Round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

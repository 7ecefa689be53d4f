// Package fees computes the fee breakdown for a transfer. The routing engine
// consumes it opaquely; only the breakdown shape is part of its contract.
package fees

import "math"

// Breakdown is the fee decomposition for one transfer
type Breakdown struct {
	GatewayFee     int64   `json:"gateway_fee"`
	AppFee         int64   `json:"app_fee"`
	TotalFee       int64   `json:"total_fee"`
	DisplayPercent float64 `json:"display_percent"`
	Capped         bool    `json:"capped"`
}

// Calculator produces fee breakdowns from an amount and a gateway fee percent
type Calculator interface {
	CalculateFees(amount int64, feePercent float64) Breakdown
}

// DefaultCalculator applies the gateway percentage plus a flat platform
// percentage, with an optional cap on the platform fee.
type DefaultCalculator struct {
	AppFeePercent float64
	AppFeeCap     int64 // 0 disables the cap
}

// NewCalculator creates the default fee calculator
func NewCalculator(appFeePercent float64, appFeeCap int64) *DefaultCalculator {
	return &DefaultCalculator{AppFeePercent: appFeePercent, AppFeeCap: appFeeCap}
}

// CalculateFees computes the breakdown for amount at the given gateway percent
func (c *DefaultCalculator) CalculateFees(amount int64, feePercent float64) Breakdown {
	gatewayFee := roundFee(amount, feePercent)
	appFee := roundFee(amount, c.AppFeePercent)

	capped := false
	if c.AppFeeCap > 0 && appFee > c.AppFeeCap {
		appFee = c.AppFeeCap
		capped = true
	}

	total := gatewayFee + appFee
	display := 0.0
	if amount > 0 {
		display = math.Round(float64(total)/float64(amount)*10000) / 100
	}

	return Breakdown{
		GatewayFee:     gatewayFee,
		AppFee:         appFee,
		TotalFee:       total,
		DisplayPercent: display,
		Capped:         capped,
	}
}

func roundFee(amount int64, percent float64) int64 {
	return int64(math.Round(float64(amount) * percent / 100))
}

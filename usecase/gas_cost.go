package usecase

import (
	"gmptracker/domain"
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

const (
	defaultDecimals = 18
	maxDecimals     = 77
)

// gasFee returns gasUsed * price in base units, nil when either is unknown.
func gasFee(gasUsed, price domain.BigValue) *big.Int {
	used := gasUsed.Int()
	p := price.Int()
	if used == nil || p == nil {
		return nil
	}
	return new(big.Int).Mul(used, p)
}

// stepGas picks the receipt gas figures of an event, using the transaction gas
// price when the receipt has no effective price.
func stepGas(e *domain.Event) (gasUsed, price domain.BigValue) {
	if e == nil || e.Receipt == nil {
		return
	}
	gasUsed = e.Receipt.GasUsed
	price = e.Receipt.EffectiveGasPrice
	if !price.Valid() && e.Transaction != nil {
		price = e.Transaction.GasPrice
	}
	return
}

// convertGas turns a destination chain fee into source token units at the
// given USD prices. The price ratio is rounded to the destination precision
// before it is applied, and the product is rounded to whole base units.
// Any missing or malformed input yields 0.
func convertGas(fee *big.Int, destinationUSD, sourceUSD domain.FlexFloat, decimals int) float64 {
	if fee == nil || fee.Sign() < 0 || !destinationUSD.Valid || !sourceUSD.Valid {
		return 0
	}
	if sourceUSD.V <= 0 || destinationUSD.V < 0 {
		return 0
	}
	ratio := destinationUSD.V / sourceUSD.V
	if math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		return 0
	}
	if decimals <= 0 || decimals > maxDecimals {
		decimals = defaultDecimals
	}
	places := int32(decimals)
	amount := decimal.NewFromBigInt(fee, 0).
		Mul(decimal.NewFromFloat(ratio).Round(places)).
		Round(0)
	return toFloat(amount.Shift(-places))
}

// formatUnits divides by 10^decimals.
func formatUnits(x *big.Int, decimals int) float64 {
	if x == nil {
		return 0
	}
	return toFloat(decimal.NewFromBigInt(x, -int32(decimals)))
}

func toFloat(d decimal.Decimal) float64 {
	v := d.InexactFloat64()
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func tokenUSD(t *domain.Token) domain.FlexFloat {
	if t == nil {
		return domain.FlexFloat{}
	}
	return t.TokenPrice.USD
}

func tokenDecimals(t *domain.Token) int {
	if t == nil || !t.Decimals.Valid || t.Decimals.V <= 0 {
		return 0
	}
	return int(t.Decimals.V)
}

func rateTokens(rate *domain.PriceRate) (source, destination *domain.Token) {
	if rate == nil {
		return nil, nil
	}
	return rate.SourceToken, rate.DestinationNativeToken
}

// destinationDecimals prefers the express execute rate, then the gas rate.
func destinationDecimals(c canonical) int {
	_, forecallDestination := rateTokens(c.ForecallGasPriceRate)
	_, destination := rateTokens(c.GasPriceRate)
	if d := tokenDecimals(forecallDestination); d > 0 {
		return d
	}
	if d := tokenDecimals(destination); d > 0 {
		return d
	}
	return defaultDecimals
}

func firstValid(values ...domain.FlexFloat) domain.FlexFloat {
	for _, v := range values {
		if v.Valid {
			return v
		}
	}
	return domain.FlexFloat{}
}

// relayerDidNotPay tells whether the terminal transaction was sent by someone
// other than the relayer, in which case its gas is not charged to the call.
func relayerDidNotPay(r *domain.GMPRecord) bool {
	switch {
	case r.Executed != nil && r.Executed.Receipt != nil:
		return domain.IsFalse(r.IsExecuteFromRelayer)
	case r.Error != nil && r.Error.Receipt != nil:
		return domain.IsFalse(r.IsErrorFromRelayer)
	}
	return false
}

// terminalEvent is the executed event, or the failed attempt when there is none.
func terminalEvent(r *domain.GMPRecord) *domain.Event {
	if r.Executed != nil && r.Executed.Receipt != nil {
		return r.Executed
	}
	if r.Error != nil && r.Error.Receipt != nil {
		return r.Error
	}
	if r.Executed != nil {
		return r.Executed
	}
	return r.Error
}

func (engine *Engine) gasCost(c canonical, links domain.Links) domain.GasCost {
	source, destination := rateTokens(c.GasPriceRate)
	decimals := destinationDecimals(c)

	var cost domain.GasCost

	gasUsed, price := stepGas(c.Approved)
	cost.Approved = convertGas(gasFee(gasUsed, price), tokenUSD(destination), tokenUSD(source), decimals)

	if !relayerDidNotPay(c.GMPRecord) {
		gasUsed, price = stepGas(terminalEvent(c.GMPRecord))
		cost.Executed = convertGas(gasFee(gasUsed, price), tokenUSD(destination), tokenUSD(source), decimals)
	}

	if c.Forecalled != nil {
		forecallSource, forecallDestination := rateTokens(c.ForecallGasPriceRate)
		gasUsed, price = stepGas(c.Forecalled)
		cost.Forecalled = convertGas(gasFee(gasUsed, price),
			firstValid(tokenUSD(forecallDestination), tokenUSD(destination)),
			firstValid(tokenUSD(forecallSource), tokenUSD(source)),
			decimals)
	}

	if links.Callback != nil {
		cost.Callback = callbackGasCost(c, links.Callback, source)
	}
	return cost
}

// callbackGasCost is the gas spent executing the return leg, already priced in
// the source token of this leg.
func callbackGasCost(c canonical, callback *domain.GMPRecord, source *domain.Token) float64 {
	if c.Gas != nil && c.Gas.GasCallbackAmount.Valid {
		return c.Gas.GasCallbackAmount.V
	}
	if relayerDidNotPay(callback) {
		return 0
	}
	fee := gasFee(stepGas(terminalEvent(callback)))
	if fee == nil {
		return 0
	}
	decimals := tokenDecimals(source)
	if decimals == 0 {
		decimals = defaultDecimals
	}
	return formatUnits(fee, decimals)
}

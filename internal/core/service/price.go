package service

import (
	"math"

	"github.com/berfenger/microgrid2mqtt/internal/config"
	"github.com/shopspring/decimal"
)

type PriceModel struct {
	cfg config.MarketConfig
}

func NewPriceModel(cfg config.MarketConfig) PriceModel {
	return PriceModel{cfg: cfg}
}

// Price clamps consumptionCoeff*consumption + windSpeedCoeff*ln(windSpeed)
// into [MinPrice, MaxPrice]. A calm wind yields MinPrice.
func (m PriceModel) Price(consumption, windSpeed float64) float64 {
	if windSpeed <= 0 {
		return m.cfg.MinPrice
	}
	raw := m.cfg.ConsumptionCoeff*consumption + m.cfg.WindSpeedCoeff*math.Log(windSpeed)
	if math.IsNaN(raw) {
		return m.cfg.MinPrice
	}
	price := math.Max(math.Min(raw, m.cfg.MaxPrice), m.cfg.MinPrice)
	return decimal.NewFromFloat(price).Round(m.cfg.PriceDecimals).InexactFloat64()
}

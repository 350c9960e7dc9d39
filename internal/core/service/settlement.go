package service

import (
	"math"
	"slices"
	"strings"
	"time"

	"github.com/berfenger/microgrid2mqtt/internal/config"
	"github.com/berfenger/microgrid2mqtt/internal/core/domain"
)

// SettlementEngine reconciles the energy balance of every actor for one tick.
// It performs no I/O: the caller persists the returned snapshot.
type SettlementEngine struct {
	allowNegativePlantBuffer bool
}

func NewSettlementEngine(cfg config.SettlementConfig) SettlementEngine {
	return SettlementEngine{allowNegativePlantBuffer: cfg.AllowNegativePlantBuffer}
}

// SettlementInput holds prosumers with their signals already computed and
// plants already advanced along their ramps.
type SettlementInput struct {
	Date           time.Time
	Prosumers      []domain.Prosumer
	PowerPlants    []domain.PowerPlant
	ComputedPrice  float64
	PreviousMarket *domain.MarketRecord
}

type Settlement struct {
	Prosumers     []domain.Prosumer
	Records       []domain.SimulatorRecord
	PowerPlants   []domain.PowerPlant
	Market        domain.MarketRecord
	MarketBalance float64
	BlackOuts     int
}

func (e SettlementEngine) Settle(in SettlementInput) Settlement {
	plants := slices.Clone(in.PowerPlants)
	prosumers := SettlementOrder(in.Prosumers)

	balance := SeedMarketBalance(plants)

	out := Settlement{
		Prosumers: make([]domain.Prosumer, 0, len(prosumers)),
		Records:   make([]domain.SimulatorRecord, 0, len(prosumers)),
	}
	for i := range prosumers {
		p := &prosumers[i]
		balance = SettleProsumer(p, balance)
		if p.BlackOut {
			out.BlackOuts++
		}
		out.Prosumers = append(out.Prosumers, *p)
		out.Records = append(out.Records, domain.SimulatorRecord{
			ActorId:     p.Id,
			WindSpeed:   p.WindSpeed,
			Consumption: p.Consumption,
			Production:  p.Production,
			Date:        in.Date,
		})
	}

	e.AbsorbShortfall(plants, balance)

	actualPrice := in.ComputedPrice
	if in.PreviousMarket != nil {
		actualPrice = in.PreviousMarket.ActualPrice
	}

	out.PowerPlants = plants
	out.MarketBalance = balance
	out.Market = domain.MarketRecord{
		Electricity:   balance,
		ComputedPrice: in.ComputedPrice,
		ActualPrice:   actualPrice,
		Date:          in.Date,
	}
	return out
}

// SettlementOrder returns a copy of the prosumers sorted by ascending id.
// Settlement is order dependent, later prosumers see the balance left by
// earlier ones.
func SettlementOrder(prosumers []domain.Prosumer) []domain.Prosumer {
	ordered := slices.Clone(prosumers)
	slices.SortStableFunc(ordered, func(a, b domain.Prosumer) int {
		return strings.Compare(a.Id, b.Id)
	})
	return ordered
}

// SeedMarketBalance sums the output of running plants and the buffers of idle ones.
func SeedMarketBalance(plants []domain.PowerPlant) float64 {
	var balance float64
	for _, plant := range plants {
		if plant.Status == domain.POWER_PLANT_RUNNING {
			balance += plant.CurrentProduction
		} else {
			balance += plant.BufferFilling
		}
	}
	return balance
}

// SettleProsumer resolves the surplus or deficit of one prosumer against its
// buffer and the market, and returns the updated market balance.
func SettleProsumer(p *domain.Prosumer, marketBalance float64) float64 {
	delta := p.Production - p.Consumption
	if delta > 0 {
		p.BufferFilling = math.Min(p.BufferSize, p.BufferFilling+delta*p.ProductionRatioBuffer)
		p.ElectricitySentToMarket = delta * p.ProductionRatioMarket
		p.BoughtElectricity = 0
		p.BlackOut = false
	} else {
		need := -delta
		if marketBalance > need*p.ConsumptionRatioMarket && p.BufferFilling > need*p.ConsumptionRatioBuffer {
			p.BoughtElectricity = need * p.ConsumptionRatioMarket
			p.BufferFilling += delta * p.ConsumptionRatioBuffer
			p.BlackOut = false
		} else {
			p.BoughtElectricity = 0
			p.BlackOut = true
		}
		p.ElectricitySentToMarket = 0
	}
	return marketBalance + p.ElectricitySentToMarket - p.BoughtElectricity
}

// AbsorbShortfall spreads a negative market balance evenly over the buffers
// of the plants that are not running. Buffers are floored at zero unless
// negative buffers are allowed.
func (e SettlementEngine) AbsorbShortfall(plants []domain.PowerPlant, marketBalance float64) {
	if marketBalance >= 0 {
		return
	}
	idle := 0
	for _, plant := range plants {
		if plant.Status != domain.POWER_PLANT_RUNNING {
			idle++
		}
	}
	if idle == 0 {
		return
	}
	share := marketBalance / float64(idle)
	for i := range plants {
		if plants[i].Status == domain.POWER_PLANT_RUNNING {
			continue
		}
		plants[i].BufferFilling += share
		if !e.allowNegativePlantBuffer && plants[i].BufferFilling < 0 {
			plants[i].BufferFilling = 0
		}
	}
}

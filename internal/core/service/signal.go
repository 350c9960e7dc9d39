package service

import (
	"math"
	"time"

	"github.com/berfenger/microgrid2mqtt/internal/config"
)

// SignalModels produces the deterministic wind, consumption and renewable
// production curves of the grid. All methods are pure.
type SignalModels struct {
	cfg config.SignalConfig
}

func NewSignalModels(cfg config.SignalConfig) SignalModels {
	return SignalModels{cfg: cfg}
}

func Gaussian(mean, stdDev, x float64) float64 {
	return 1.0 / (stdDev * math.Sqrt(2*math.Pi)) * math.Exp(-math.Pow(x-mean, 2)/(2*math.Pow(stdDev, 2)))
}

// WindSpeed sums WindSamples gaussian terms spaced by an eighth of the year,
// evaluated at the hours elapsed since the start of the date's year.
func (s SignalModels) WindSpeed(date time.Time) float64 {
	yearStart := time.Date(date.Year(), time.January, 1, 0, 0, 0, 0, date.Location())
	hoursInYear := yearStart.AddDate(1, 0, 0).Sub(yearStart).Hours()
	sinceYearStart := date.Sub(yearStart).Hours()

	step := hoursInYear / 8
	amplitude := s.cfg.MaxWindSpeed * (1 + math.Cos(sinceYearStart))
	var windSpeed float64
	for i := 0; i < s.cfg.WindSamples; i++ {
		point := float64(i) * step
		windSpeed += amplitude * Gaussian(0, s.cfg.WindStdDev, sinceYearStart-point*math.Cos(sinceYearStart))
	}
	return math.Floor(windSpeed)
}

// Consumption returns the demand of one prosumer. Both peak amplitudes are
// scaled by len(prosumerId)%, downwards for even lengths and upwards for odd ones.
func (s SignalModels) Consumption(date time.Time, prosumerId string) float64 {
	change := float64(len(prosumerId))
	if len(prosumerId)%2 == 0 {
		change = -change
	}
	return s.consumption(date, 1+change/100)
}

// BaseConsumption is the demand curve without any per-prosumer perturbation.
func (s SignalModels) BaseConsumption(date time.Time) float64 {
	return s.consumption(date, 1)
}

func (s SignalModels) consumption(date time.Time, factor float64) float64 {
	morning := s.cfg.MorningConsumption * factor
	afternoon := (s.cfg.DailyConsumption - s.cfg.MorningConsumption) * factor

	secondOfDay := float64(date.Hour()*3600 + date.Minute()*60 + date.Second())

	value := Gaussian(s.cfg.MorningPeakSeconds, s.cfg.MorningStdDevSeconds, secondOfDay)*morning +
		Gaussian(s.cfg.EveningPeakSeconds, s.cfg.EveningStdDevSeconds, secondOfDay)*afternoon
	return value * s.cfg.ConsumptionScale
}

func (s SignalModels) Production(date time.Time) float64 {
	return math.Floor(s.cfg.ProductionFactor * s.WindSpeed(date))
}

package service

import (
	"math"
	"time"

	"github.com/berfenger/microgrid2mqtt/internal/config"
	"github.com/berfenger/microgrid2mqtt/internal/core/domain"
)

type RampController struct {
	duration time.Duration
}

func NewRampController(cfg config.RampConfig) RampController {
	return RampController{duration: cfg.Duration()}
}

func (r RampController) Duration() time.Duration {
	return r.duration
}

// Output interpolates linearly from old to future over the ramp duration.
func (r RampController) Output(old, future float64, elapsed time.Duration) float64 {
	if r.duration <= 0 {
		return future
	}
	progress := math.Max(0, math.Min(1, elapsed.Seconds()/r.duration.Seconds()))
	if progress == 1 {
		return future
	}
	return old + (future-old)*progress
}

// Elapsed is zero when the target never changed.
func (r RampController) Elapsed(modificationTime *time.Time, now time.Time) time.Duration {
	if modificationTime == nil {
		return 0
	}
	elapsed := now.Sub(*modificationTime)
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// Advance moves the plant along its ramp, derives its status and accrues
// its buffer.
func (r RampController) Advance(plant *domain.PowerPlant, now time.Time) {
	elapsed := r.Elapsed(plant.ProductionModificationTime, now)
	plant.CurrentProduction = r.Output(plant.OldProduction, plant.FutureProduction, elapsed)

	if plant.CurrentProduction == plant.FutureProduction {
		// ramp locks in
		plant.OldProduction = plant.FutureProduction
		plant.ProductionModificationTime = nil
	}

	plant.Status = PowerPlantStatus(*plant)

	plant.BufferFilling = math.Min(plant.BufferSize, plant.BufferFilling+plant.CurrentProduction*plant.ProductionRatioBuffer)
}

// Retarget starts a new ramp from the output reached at now.
func (r RampController) Retarget(plant *domain.PowerPlant, target float64, now time.Time) {
	elapsed := r.Elapsed(plant.ProductionModificationTime, now)
	current := r.Output(plant.OldProduction, plant.FutureProduction, elapsed)
	plant.OldProduction = current
	plant.CurrentProduction = current
	plant.FutureProduction = target
	plant.ProductionModificationTime = &now
}

func PowerPlantStatus(plant domain.PowerPlant) domain.PowerPlantStatus {
	switch {
	case plant.FutureProduction == 0:
		return domain.POWER_PLANT_STOPPED
	case plant.OldProduction == 0 && plant.FutureProduction > 0:
		return domain.POWER_PLANT_STARTING
	default:
		return domain.POWER_PLANT_RUNNING
	}
}

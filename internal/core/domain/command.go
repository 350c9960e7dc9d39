package domain

import (
	"fmt"
	"time"
)

// SimulationControlRequest

type SimulationControlRequest interface {
	ActorRequest
	SimulationCommand() string
}

type SimulationControlRequestMixIn struct {
	ActorRequestMixIn
}

func (r SimulationControlRequestMixIn) SimulationCommand() string {
	return fmt.Sprintf("%T", r)
}

// Simulation commands

type SimulationRunRequest struct {
	SimulationControlRequestMixIn
	Enable bool
}

type SimulationRunResponse struct {
	ActorResponseMixIn
	Running bool
}

type SetPowerPlantTargetRequest struct {
	SimulationControlRequestMixIn
	PowerPlantId string
	Target       float64
}

type SetPowerPlantTargetResponse struct {
	ActorResponseMixIn
}

// RequestPowerPlantProductionRequest restarts a manager's ramp towards
// Target. A zero Now means the time the simulator handles the request.
type RequestPowerPlantProductionRequest struct {
	SimulationControlRequestMixIn
	Token  string
	Target float64
	Now    time.Time
}

type RequestPowerPlantProductionResponse struct {
	ActorResponseMixIn
	Reading PowerPlantProductionReading
}

// ensure interface compliance
var _ SimulationControlRequest = (*SimulationRunRequest)(nil)
var _ SimulationControlRequest = (*SetPowerPlantTargetRequest)(nil)
var _ SimulationControlRequest = (*RequestPowerPlantProductionRequest)(nil)

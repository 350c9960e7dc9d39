package actor

import (
	"context"
	"fmt"
	"time"

	"github.com/berfenger/microgrid2mqtt/internal/config"
	"github.com/berfenger/microgrid2mqtt/internal/core/domain"
	"github.com/berfenger/microgrid2mqtt/internal/core/events"
	"github.com/berfenger/microgrid2mqtt/internal/core/port"
	. "github.com/berfenger/microgrid2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

const (
	SIMULATOR_INIT_TIMEOUT    = 10 * time.Second
	SIMULATOR_CONTROL_TIMEOUT = 2 * time.Second
)

// SimulatorActor drives the tick loop. A tick in flight stacks the ticking
// state, which drops scheduler ticks until the tick completes.
type SimulatorActor struct {
	ActorWithStates
	config      *config.Config
	simulator   port.Simulator
	scheduler   *scheduler.TimerScheduler
	cancelTicks scheduler.CancelFunc
	stash       *Stash
	eventStream *eventstream.EventStream
	clock       func() time.Time
	running     bool
	ticks       uint64
	skipped     uint64

	logger *zap.Logger
}

type simulatorTick struct {
}

type simulatorInitialized struct {
	err error
}

type simulatorTickDone struct {
	date    time.Time
	result  *domain.TickResult
	err     error
	replyTo *actor.PID
}

func NewSimulatorActor(config *config.Config, simulator port.Simulator, eventStream *eventstream.EventStream, logger *zap.Logger) *SimulatorActor {
	act := &SimulatorActor{
		config:      config,
		simulator:   simulator,
		stash:       &Stash{},
		eventStream: eventStream,
		clock:       time.Now,
		logger:      ActorLogger(domain.ACTOR_ID_SIMULATOR, logger),
		ActorWithStates: ActorWithStates{
			Behavior: actor.NewBehavior(),
		},
	}
	act.Become(SimStartingState{
		actor: act,
	})
	return act
}

func (state *SimulatorActor) Receive(context actor.Context) {
	state.Behavior.Receive(context)
}

// Starting state

type SimStartingState struct {
	ActorState
	actor *SimulatorActor
}

func (state SimStartingState) Name() string {
	return "starting"
}

func (state SimStartingState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.actor.logger.Debug("simulator@starting started")

		state.actor.scheduler = scheduler.NewTimerScheduler(ctx)

		sim := state.actor.simulator
		NewBackgroundTaskNoError(ctx, func() *simulatorInitialized {
			initCtx, cancel := context.WithTimeout(context.Background(), SIMULATOR_INIT_TIMEOUT)
			defer cancel()
			return &simulatorInitialized{err: sim.Initialize(initCtx)}
		}).WithTimeout(SIMULATOR_INIT_TIMEOUT).Recover(func(err error) simulatorInitialized {
			return simulatorInitialized{err: err}
		}).PipeTo(ctx.Self())
	case simulatorInitialized:
		if msg.err != nil {
			state.actor.logger.Error("simulator@starting initialization failed", zap.Error(msg.err))
			panic(msg.err)
		}
		state.actor.logger.Info("simulator@starting initialized")
		state.actor.publishPowerPlantTargets()
		state.actor.Become(SimRunningState{
			actor: state.actor,
		}.OnEnter(ctx))
		state.actor.stash.UnstashAll(ctx)
	case *actor.Restarting:
	default:
		state.actor.logger.Debug("simulator@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.actor.stash.Stash(ctx, msg)
	}
}

// Running state

type SimRunningState struct {
	ActorState
	actor *SimulatorActor
}

func (state SimRunningState) Name() string {
	return "running"
}

func (state SimRunningState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case simulatorTick:
		state.actor.logger.Debug("simulator@running tick")
		state.actor.startTick(ctx, nil)
	case domain.SimulationRunRequest:
		if !msg.Enable {
			state.actor.logger.Info("simulator@running pause")
			state.actor.Become(SimPausedState{
				actor: state.actor,
			}.OnEnter(ctx))
		}
		ForRequest(msg).Respond(ctx, domain.SimulationRunResponse{Running: state.actor.running})
	case *actor.Stopping:
		state.actor.stopTicks()
	default:
		state.actor.commonReceive(ctx, state.Name())
	}
}

func (state SimRunningState) OnEnter(ctx actor.Context) SimRunningState {
	interval := state.actor.config.Simulator.TickInterval()
	state.actor.stopTicks()
	state.actor.cancelTicks = state.actor.scheduler.RequestRepeatedly(interval, interval, ctx.Self(), simulatorTick{})
	state.actor.running = true
	state.actor.eventStream.Publish(events.SimulationSwitchUpdateEvent(true))
	return state
}

// Paused state

type SimPausedState struct {
	ActorState
	actor *SimulatorActor
}

func (state SimPausedState) Name() string {
	return "paused"
}

func (state SimPausedState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case simulatorTick:
		// fired before the schedule was cancelled
	case domain.SimulationRunRequest:
		if msg.Enable {
			state.actor.logger.Info("simulator@paused resume")
			state.actor.Become(SimRunningState{
				actor: state.actor,
			}.OnEnter(ctx))
		}
		ForRequest(msg).Respond(ctx, domain.SimulationRunResponse{Running: state.actor.running})
	default:
		state.actor.commonReceive(ctx, state.Name())
	}
}

func (state SimPausedState) OnEnter(ctx actor.Context) SimPausedState {
	state.actor.stopTicks()
	state.actor.running = false
	state.actor.eventStream.Publish(events.SimulationSwitchUpdateEvent(false))
	return state
}

// Ticking state, stacked on top of running or paused

type SimTickingState struct {
	ActorState
	actor *SimulatorActor
}

func (state SimTickingState) Name() string {
	return "ticking"
}

func (state SimTickingState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case simulatorTick:
		state.actor.skipped++
		state.actor.logger.Debug("simulator@ticking tick skipped", zap.Uint64("skipped", state.actor.skipped))
	case domain.TickRequest:
		ForRequest(msg).Respond(ctx, domain.TickResponse{Skipped: true})
	case domain.ActorHealthRequest:
		ForRequest(msg).Respond(ctx, domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_SIMULATOR,
			Healthy: true,
			State:   state.Name(),
		})
	case simulatorTickDone:
		state.actor.onTickDone(ctx, msg)
		state.actor.UnbecomeStacked()
		state.actor.stash.UnstashAll(ctx)
	case *actor.Stopping:
		state.actor.stopTicks()
	default:
		state.actor.logger.Debug("simulator@ticking: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.actor.stash.Stash(ctx, msg)
	}
}

// commonReceive handles the messages answered the same way while running
// or paused.
func (state *SimulatorActor) commonReceive(ctx actor.Context, stateName string) {
	switch msg := ctx.Message().(type) {
	case domain.TickRequest:
		state.logger.Debug(fmt.Sprintf("simulator@%s TickRequest", stateName))
		state.startTick(ctx, ForRequest(msg).ReplyTo(ctx))
	case domain.SetPowerPlantTargetRequest:
		state.logger.Debug(fmt.Sprintf("simulator@%s SetPowerPlantTargetRequest", stateName), zap.String("plant", msg.PowerPlantId), zap.Float64("target", msg.Target))
		err := state.setPowerPlantTarget(msg.PowerPlantId, msg.Target)
		if err != nil {
			state.logger.Warn("simulator: could not set power plant target", zap.String("plant", msg.PowerPlantId), zap.Error(err))
		}
		ForRequest(msg).Respond(ctx, domain.SetPowerPlantTargetResponse{ActorResponseMixIn: domain.ErrorResponse(err)})
	case domain.RequestPowerPlantProductionRequest:
		state.logger.Debug(fmt.Sprintf("simulator@%s RequestPowerPlantProductionRequest", stateName), zap.Float64("target", msg.Target))
		reading, err := state.requestPowerPlantProduction(msg.Token, msg.Target, msg.Now)
		if err != nil {
			state.logger.Warn("simulator: could not change manager production", zap.Error(err))
		}
		ForRequest(msg).Respond(ctx, domain.RequestPowerPlantProductionResponse{
			ActorResponseMixIn: domain.ErrorResponse(err),
			Reading:            reading,
		})
	case domain.GetPowerPlantsRequest:
		plants, err := state.listPowerPlants()
		ForRequest(msg).Respond(ctx, domain.GetPowerPlantsResponse{
			ActorResponseMixIn: domain.ErrorResponse(err),
			PowerPlants:        plants,
		})
	case domain.ActorHealthRequest:
		state.logger.Debug(fmt.Sprintf("simulator@%s ActorHealthRequest", stateName))
		ForRequest(msg).Respond(ctx, domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_SIMULATOR,
			Healthy: true,
			State:   stateName,
		})
	case simulatorTickDone:
		// a tick that outlived its stacked state
		state.onTickDone(ctx, msg)
	default:
		state.logger.Debug(fmt.Sprintf("simulator@%s recv", stateName), zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *SimulatorActor) startTick(ctx actor.Context, replyTo *actor.PID) {
	now := state.clock()
	timeout := state.config.Simulator.TickTimeout()
	sim := state.simulator

	NewBackgroundTaskNoError(ctx, func() *simulatorTickDone {
		tickCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		result, err := sim.RunTick(tickCtx, now)
		return &simulatorTickDone{date: now, result: result, err: err, replyTo: replyTo}
	}).WithTimeout(timeout).Recover(func(err error) simulatorTickDone {
		return simulatorTickDone{date: now, err: err, replyTo: replyTo}
	}).PipeToAsync(ctx.Self())

	state.BecomeStacked(SimTickingState{
		actor: state,
	})
}

func (state *SimulatorActor) onTickDone(ctx actor.Context, msg simulatorTickDone) {
	if msg.err != nil {
		state.logger.Error("simulator: tick failed", zap.Time("date", msg.date), zap.Error(msg.err))
		state.reply(ctx, msg.replyTo, domain.TickResponse{ActorResponseMixIn: domain.ErrorResponse(msg.err)})
		return
	}

	state.ticks++
	res := msg.result
	if res.WriteErr != nil {
		state.logger.Warn("simulator: tick completed with failed writes", zap.Int("failed", res.FailedWrites), zap.Error(res.WriteErr))
	}
	state.logger.Debug("simulator: tick completed",
		zap.Uint64("tick", state.ticks),
		zap.Float64("marketBalance", res.MarketBalance),
		zap.Float64("price", res.ComputedPrice),
		zap.Int("blackOuts", res.BlackOuts))

	state.eventStream.Publish(domain.TickCompletedEvent{Result: *res})
	for _, ev := range events.TickResultToUpdateEvents(res) {
		state.eventStream.Publish(ev)
	}
	state.eventStream.Publish(events.SimulationSwitchUpdateEvent(state.running))

	state.reply(ctx, msg.replyTo, domain.TickResponse{Result: res})
}

func (state *SimulatorActor) reply(ctx actor.Context, replyTo *actor.PID, resp any) {
	if replyTo != nil {
		ctx.Send(replyTo, resp)
	}
}

func (state *SimulatorActor) setPowerPlantTarget(plantId string, target float64) error {
	ctx, cancel := context.WithTimeout(context.Background(), SIMULATOR_CONTROL_TIMEOUT)
	defer cancel()
	if err := state.simulator.SetPowerPlantTarget(ctx, plantId, target, state.clock()); err != nil {
		return err
	}
	for _, ev := range events.PowerPlantTargetUpdateEvents([]domain.PowerPlant{{Id: plantId, FutureProduction: target}}) {
		state.eventStream.Publish(ev)
	}
	return nil
}

// requestPowerPlantProduction runs between ticks, so the plants it retargets
// are never overwritten by the snapshot of a tick in flight.
func (state *SimulatorActor) requestPowerPlantProduction(token string, target float64, now time.Time) (domain.PowerPlantProductionReading, error) {
	if now.IsZero() {
		now = state.clock()
	}
	ctx, cancel := context.WithTimeout(context.Background(), SIMULATOR_CONTROL_TIMEOUT)
	defer cancel()
	reading, err := state.simulator.RequestPowerPlantProduction(ctx, token, target, now)
	if err != nil {
		return reading, err
	}
	state.publishPowerPlantTargets()
	return reading, nil
}

func (state *SimulatorActor) listPowerPlants() ([]domain.PowerPlant, error) {
	ctx, cancel := context.WithTimeout(context.Background(), SIMULATOR_CONTROL_TIMEOUT)
	defer cancel()
	return state.simulator.ListPowerPlants(ctx)
}

func (state *SimulatorActor) publishPowerPlantTargets() {
	plants, err := state.listPowerPlants()
	if err != nil {
		state.logger.Warn("simulator: could not list power plants", zap.Error(err))
		return
	}
	for _, ev := range events.PowerPlantTargetUpdateEvents(plants) {
		state.eventStream.Publish(ev)
	}
}

func (state *SimulatorActor) stopTicks() {
	if state.cancelTicks != nil {
		state.cancelTicks()
		state.cancelTicks = nil
	}
}

package actorutil

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/berfenger/microgrid2mqtt/internal/core/domain"
	"github.com/berfenger/microgrid2mqtt/internal/mqtt"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/lmittmann/tint"
	"go.uber.org/zap"
)

func PipeToSelfWithRecover(ctx actor.Context, future *actor.Future, mapFn func(error) any) {
	ctx.ReenterAfter(future, func(msg any, err error) {
		if err != nil {
			ctx.Send(ctx.Self(), mapFn(err))
			return
		}
		ctx.Send(ctx.Self(), msg)
	})
}

func NewActorSystemWithZapLogger(logger *zap.Logger) *actor.ActorSystem {
	stdOutLogger := zap.NewStdLog(logger)

	var slogLevel slog.Level = slog.LevelInfo

	switch logger.Level() {
	case zap.DebugLevel:
		slogLevel = slog.LevelDebug
	case zap.InfoLevel:
		slogLevel = slog.LevelInfo
	case zap.WarnLevel:
		slogLevel = slog.LevelWarn
	case zap.ErrorLevel, zap.PanicLevel:
		slogLevel = slog.LevelError
	}

	return actor.NewActorSystem(actor.WithLoggerFactory(func(system *actor.ActorSystem) *slog.Logger {
		return slog.New(tint.NewHandler(stdOutLogger.Writer(), &tint.Options{
			Level:      slogLevel,
			TimeFormat: time.DateTime,
		}))
	}))
}

func ActorLogger(actorName string, logger *zap.Logger) *zap.Logger {
	return logger.With(zap.String("actor", actorName))
}

// ParsedMQTTCommandToCommand maps an MQTT command to a simulation control
// request. Unknown devices yield (nil, nil).
func ParsedMQTTCommandToCommand(cmd mqtt.ParsedMQTTCommand) (domain.SimulationControlRequest, error) {
	switch {
	case cmd.Command == mqtt.COMMAND_SWITCH && cmd.DeviceId == domain.SWITCH_ID_SIMULATION:
		switch cmd.Payload {
		case mqtt.MQTT_PAYLOAD_ON:
			return domain.SimulationRunRequest{Enable: true}, nil
		case mqtt.MQTT_PAYLOAD_OFF:
			return domain.SimulationRunRequest{Enable: false}, nil
		}
		return nil, fmt.Errorf("invalid switch payload %q", cmd.Payload)
	case cmd.Command == mqtt.COMMAND_NUMBER && strings.HasPrefix(cmd.DeviceId, domain.INPUT_NUMBER_ID_PLANT_PREFIX):
		target, err := strconv.ParseFloat(cmd.Payload, 64)
		if err != nil {
			return nil, err
		}
		if target < 0 {
			return nil, errors.New("power plant target must not be negative")
		}
		return domain.SetPowerPlantTargetRequest{
			PowerPlantId: strings.TrimPrefix(cmd.DeviceId, domain.INPUT_NUMBER_ID_PLANT_PREFIX),
			Target:       target,
		}, nil
	}
	return nil, nil
}

package actorutil

import (
	"testing"
	"time"

	"github.com/berfenger/microgrid2mqtt/internal/core/domain"
	"github.com/berfenger/microgrid2mqtt/internal/mqtt"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParsedMQTTCommandToCommand(t *testing.T) {

	assert := assert.New(t)

	cmd, err := ParsedMQTTCommandToCommand(mqtt.ParsedMQTTCommand{DeviceId: domain.SWITCH_ID_SIMULATION, Command: mqtt.COMMAND_SWITCH, Payload: mqtt.MQTT_PAYLOAD_ON})
	assert.NoError(err)
	assert.Equal(domain.SimulationRunRequest{Enable: true}, cmd)

	cmd, err = ParsedMQTTCommandToCommand(mqtt.ParsedMQTTCommand{DeviceId: domain.SWITCH_ID_SIMULATION, Command: mqtt.COMMAND_SWITCH, Payload: mqtt.MQTT_PAYLOAD_OFF})
	assert.NoError(err)
	assert.Equal(domain.SimulationRunRequest{Enable: false}, cmd)

	_, err = ParsedMQTTCommandToCommand(mqtt.ParsedMQTTCommand{DeviceId: domain.SWITCH_ID_SIMULATION, Command: mqtt.COMMAND_SWITCH, Payload: "maybe"})
	assert.Error(err)

	cmd, err = ParsedMQTTCommandToCommand(mqtt.ParsedMQTTCommand{DeviceId: "plant_abc-123", Command: mqtt.COMMAND_NUMBER, Payload: "42.5"})
	assert.NoError(err)
	assert.Equal(domain.SetPowerPlantTargetRequest{PowerPlantId: "abc-123", Target: 42.5}, cmd)

	_, err = ParsedMQTTCommandToCommand(mqtt.ParsedMQTTCommand{DeviceId: "plant_abc", Command: mqtt.COMMAND_NUMBER, Payload: "-1"})
	assert.Error(err)

	_, err = ParsedMQTTCommandToCommand(mqtt.ParsedMQTTCommand{DeviceId: "plant_abc", Command: mqtt.COMMAND_NUMBER, Payload: "lots"})
	assert.Error(err)

	cmd, err = ParsedMQTTCommandToCommand(mqtt.ParsedMQTTCommand{DeviceId: "other", Command: mqtt.COMMAND_SWITCH, Payload: mqtt.MQTT_PAYLOAD_ON})
	assert.NoError(err)
	assert.Nil(cmd)
}

type release struct{}
type received struct{ values []string }
type getReceived struct{}

// stashingActor holds string messages until it is released.
type stashingActor struct {
	stash    Stash
	released bool
	values   []string
}

func (a *stashingActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case string:
		if !a.released {
			a.stash.Stash(ctx, msg)
			return
		}
		a.values = append(a.values, msg)
	case release:
		a.released = true
		stashed := a.stash.Len()
		a.stash.UnstashAll(ctx)
		ctx.Respond(stashed)
	case getReceived:
		ctx.Respond(received{values: a.values})
	}
}

func TestStashKeepsOrder(t *testing.T) {

	require := require.New(t)

	as := NewActorSystemWithZapLogger(zap.NewNop())
	defer as.Shutdown()

	pid := as.Root.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return &stashingActor{}
	}))

	as.Root.Send(pid, "a")
	as.Root.Send(pid, "b")
	as.Root.Send(pid, "c")

	res, err := as.Root.RequestFuture(pid, release{}, time.Second).Result()
	require.NoError(err)
	require.Equal(3, res)

	res, err = as.Root.RequestFuture(pid, getReceived{}, time.Second).Result()
	require.NoError(err)
	require.Equal([]string{"a", "b", "c"}, res.(received).values)
}

package actor

import (
	"testing"
	"time"

	adactor "github.com/berfenger/microgrid2mqtt/internal/adapter/actor"
	"github.com/berfenger/microgrid2mqtt/internal/adapter/store/memory"
	"github.com/berfenger/microgrid2mqtt/internal/config"
	"github.com/berfenger/microgrid2mqtt/internal/core/domain"
	"github.com/berfenger/microgrid2mqtt/internal/core/service"
	"github.com/berfenger/microgrid2mqtt/internal/mqtt"
	"github.com/berfenger/microgrid2mqtt/internal/util"
	"github.com/berfenger/microgrid2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func spawnMaster(t *testing.T, cfg config.Config, withMQTT bool) (*actor.ActorSystem, *actor.PID) {
	logCfg := zap.NewDevelopmentConfig()
	logCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	logger := zap.Must(logCfg.Build())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	t.Cleanup(as.Shutdown)

	sim := service.NewSimulator(cfg, memory.NewStore(), logger)

	var provider MQTTActorProvider
	if withMQTT {
		provider = func(es *eventstream.EventStream) *adactor.MQTTActor {
			return adactor.NewTestMQTTActor(&cfg, es, logger)
		}
	}

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewMasterOfPuppetsActor(cfg, sim, provider, logger)
	})
	pid, err := as.Root.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	require.NoError(t, err)
	return as, pid
}

func publishedMessages(t *testing.T, as *actor.ActorSystem) map[string]string {
	mqttPID := as.NewLocalPID(domain.ACTOR_ID_MASTER + "/" + domain.ACTOR_ID_MQTT)
	res, err := as.Root.RequestFuture(mqttPID, adactor.PublishedMessagesRequest{}, 2*time.Second).Result()
	require.NoError(t, err)
	return res.(adactor.PublishedMessagesResponse).Messages
}

func TestMasterActor(t *testing.T) {

	require := require.New(t)
	assert := assert.New(t)

	cfg := util.LoadTestConfig()
	cfg.MQTT.Enable = true
	cfg.MQTT.HADiscoveryEnable = true
	as, pid := spawnMaster(t, cfg, true)

	time.Sleep(1 * time.Second)

	res, err := as.Root.RequestFuture(pid, domain.ActorHealthRequest{}, 5*time.Second).Result()
	require.NoError(err)
	healthResp, ok := res.(domain.ActorHealthResponse)
	require.True(ok)
	assert.True(healthResp.Healthy, "healthy is true")

	published := publishedMessages(t, as)
	grid := domain.GridDevice(cfg.MQTT.BaseTopic)
	assert.Contains(published, "homeassistant/sensor/"+grid.Id+"/market_balance/config")
	assert.Contains(published, "homeassistant/switch/"+grid.Id+"/simulation/config")
	assert.Contains(published, "microgrid/sensor/market_balance/state")
	assert.Equal("on", published["microgrid/switch/simulation/state"])

	// manual tick through the master
	res, err = as.Root.RequestFuture(pid, domain.TickRequest{}, 5*time.Second).Result()
	require.NoError(err)
	tick := res.(domain.TickResponse)
	assert.False(tick.HasResponseError())
}

func TestMasterActorRoutesMQTTCommands(t *testing.T) {

	require := require.New(t)
	assert := assert.New(t)

	cfg := util.LoadTestConfig()
	cfg.MQTT.Enable = true
	as, _ := spawnMaster(t, cfg, true)

	time.Sleep(500 * time.Millisecond)

	mqttPID := as.NewLocalPID(domain.ACTOR_ID_MASTER + "/" + domain.ACTOR_ID_MQTT)
	as.Root.Send(mqttPID, adactor.ParsedCommand{Command: &mqtt.ParsedMQTTCommand{
		DeviceId: domain.SWITCH_ID_SIMULATION,
		Command:  mqtt.COMMAND_SWITCH,
		Payload:  mqtt.MQTT_PAYLOAD_OFF,
	}})

	time.Sleep(300 * time.Millisecond)

	simPID := as.NewLocalPID(domain.ACTOR_ID_MASTER + "/" + domain.ACTOR_ID_SIMULATOR)
	hcr, err := healthCheck(as.Root, simPID)
	require.NoError(err)
	assert.Equal("paused", hcr.State)
	assert.Equal("off", publishedMessages(t, as)["microgrid/switch/simulation/state"])
}

func TestMasterActorWithoutMQTT(t *testing.T) {

	cfg := util.LoadTestConfig()
	as, pid := spawnMaster(t, cfg, false)

	time.Sleep(300 * time.Millisecond)

	res, err := as.Root.RequestFuture(pid, domain.ActorHealthRequest{}, 5*time.Second).Result()
	require.NoError(t, err)
	assert.True(t, res.(domain.ActorHealthResponse).Healthy)

	res, err = as.Root.RequestFuture(pid, domain.GetPowerPlantsRequest{}, 5*time.Second).Result()
	require.NoError(t, err)
	assert.Len(t, res.(domain.GetPowerPlantsResponse).PowerPlants, 1)
}

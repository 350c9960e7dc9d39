package domain

const (
	ACTOR_ID_MASTER       = "master"
	ACTOR_ID_SIMULATOR    = "simulator"
	ACTOR_ID_MQTT         = "mqtt"
	ACTOR_ID_HA_DISCOVERY = "hadiscovery"
)

type TickRequest struct {
	ActorRequestMixIn
}

type TickResponse struct {
	ActorResponseMixIn
	Result  *TickResult
	Skipped bool
}

type PublishMessageRequest struct {
	ActorRequestMixIn
	Topic   string
	Payload string
	Retain  bool
}

type PublishMessageResponse struct {
	ActorResponseMixIn
}

type PublishSensorUpdateRequest struct {
	ActorRequestMixIn
	Retain bool
	Event  SensorUpdateEvent
}

type PublishSensorUpdateResponse struct {
	ActorResponseMixIn
}

type PublishDiscoveryRequest struct {
	ActorRequestMixIn
	Sensors      []GenericSensor
	Switches     []GenericSwitch
	InputNumbers []GenericInputNumber
}

type PublishDiscoveryResponse struct {
	ActorResponseMixIn
}

type GetPowerPlantsRequest struct {
	ActorRequestMixIn
}

type GetPowerPlantsResponse struct {
	ActorResponseMixIn
	PowerPlants []PowerPlant
}

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}

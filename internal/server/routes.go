package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/berfenger/microgrid2mqtt/internal/core/domain"

	"github.com/carlmjohnson/versioninfo"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const MANAGER_TOKEN_HEADER = "X-Manager-Token"

type errorResponse struct {
	Error string `json:"error"`
}

type productionRequest struct {
	NewProduction *float64 `json:"newProduction"`
}

type versionResponse struct {
	Version    string    `json:"version"`
	Revision   string    `json:"revision"`
	LastCommit time.Time `json:"lastCommit"`
}

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)
	e.GET("/version", s.VersionHandler)

	api := e.Group("/api")
	api.GET("/wind-speed", s.WindSpeedHandler)
	api.GET("/consumption", s.ConsumptionHandler)
	api.GET("/production", s.ProductionHandler)
	api.GET("/price", s.PriceHandler)
	api.GET("/power-plant/production", s.PowerPlantProductionHandler)
	api.PUT("/power-plant/production", s.RequestPowerPlantProductionHandler)
	api.GET("/market/latest", s.LatestMarketRecordHandler)
	api.POST("/tick", s.TickHandler)

	return e
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ActorHealthRequest{}, 10*time.Second).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
	}
	if response, ok := res.(domain.ActorHealthResponse); ok && response.Healthy {
		return c.String(http.StatusOK, "health_check: OK")
	}
	return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
}

func (s *Server) VersionHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, versionResponse{
		Version:    versioninfo.Short(),
		Revision:   versioninfo.Revision,
		LastCommit: versioninfo.LastCommit,
	})
}

func (s *Server) WindSpeedHandler(c echo.Context) error {
	date, err := s.parseDate(c)
	if err != nil {
		return badRequest(c, err)
	}
	return c.JSON(http.StatusOK, s.simulator.GetWindSpeed(c.Request().Context(), date))
}

func (s *Server) ConsumptionHandler(c echo.Context) error {
	date, err := s.parseDate(c)
	if err != nil {
		return badRequest(c, err)
	}
	prosumer := c.QueryParam("prosumer")
	if prosumer == "" {
		return badRequest(c, errors.New("missing prosumer"))
	}
	return c.JSON(http.StatusOK, s.simulator.GetElectricityConsumption(c.Request().Context(), date, prosumer))
}

func (s *Server) ProductionHandler(c echo.Context) error {
	date, err := s.parseDate(c)
	if err != nil {
		return badRequest(c, err)
	}
	return c.JSON(http.StatusOK, map[string]float64{
		"electricityProduction": s.simulator.GetElectricityProduction(c.Request().Context(), date),
	})
}

func (s *Server) PriceHandler(c echo.Context) error {
	date, err := s.parseDate(c)
	if err != nil {
		return badRequest(c, err)
	}
	return c.JSON(http.StatusOK, s.simulator.GetCurrentElectricityPrice(c.Request().Context(), date))
}

func (s *Server) PowerPlantProductionHandler(c echo.Context) error {
	token := c.Request().Header.Get(MANAGER_TOKEN_HEADER)
	if token == "" {
		return badRequest(c, errors.New("missing manager token"))
	}
	reading, err := s.simulator.GetPowerPlantElectricityProduction(c.Request().Context(), token, s.now())
	if err != nil {
		return errorResult(c, err)
	}
	return c.JSON(http.StatusOK, reading)
}

func (s *Server) RequestPowerPlantProductionHandler(c echo.Context) error {
	token := c.Request().Header.Get(MANAGER_TOKEN_HEADER)
	if token == "" {
		return badRequest(c, errors.New("missing manager token"))
	}
	var req productionRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, errors.New("invalid body"))
	}
	if req.NewProduction == nil {
		return badRequest(c, errors.New("missing newProduction"))
	}
	// through the simulator actor, so the change never races a tick
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.RequestPowerPlantProductionRequest{
		Token:  token,
		Target: *req.NewProduction,
		Now:    s.now(),
	}, 10*time.Second).Result()
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
	}
	response, ok := res.(domain.RequestPowerPlantProductionResponse)
	if !ok {
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "unexpected response"})
	}
	if response.HasResponseError() {
		return errorResult(c, response.GetResponseError())
	}
	return c.JSON(http.StatusOK, response.Reading)
}

func (s *Server) LatestMarketRecordHandler(c echo.Context) error {
	record, err := s.simulator.LatestMarketRecord(c.Request().Context())
	if err != nil {
		return errorResult(c, err)
	}
	return c.JSON(http.StatusOK, record)
}

// TickHandler runs a tick through the simulator actor, so it never overlaps a
// scheduled one. A tick already in flight answers 409.
func (s *Server) TickHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.TickRequest{}, 10*time.Second).Result()
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
	}
	response, ok := res.(domain.TickResponse)
	if !ok {
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "unexpected response"})
	}
	if response.HasResponseError() {
		return errorResult(c, response.GetResponseError())
	}
	if response.Skipped {
		return c.JSON(http.StatusConflict, errorResponse{Error: "tick already running"})
	}
	return c.JSON(http.StatusOK, response.Result)
}

// parseDate reads the RFC3339 date query parameter, defaulting to now.
func (s *Server) parseDate(c echo.Context) (time.Time, error) {
	raw := c.QueryParam("date")
	if raw == "" {
		return s.now(), nil
	}
	return time.Parse(time.RFC3339, raw)
}

func badRequest(c echo.Context, err error) error {
	return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
}

func errorResult(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrInvalidState):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}

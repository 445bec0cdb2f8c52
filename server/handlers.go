package server

// handlers.go implements the REST handlers of the analysis and
// simulation API.  Input validation happens here, at the boundary, so
// the model and engine can assume validated parameters

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/teleng/callsim"
)

// AnalysisRequest is the body of a run-analysis call
type AnalysisRequest struct {
	NetworkType         string  `json:"networktype"`
	Codec               string  `json:"codec,omitempty"`
	BlockingProbability float64 `json:"blockingprob"`
	Split               string  `json:"split,omitempty"`
}

// RunAnalysis validates the request, builds link metrics for the
// configured locations, and retains the result as a snapshot
func (s *Server) RunAnalysis(c echo.Context) error {
	var req AnalysisRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed request body"})
	}

	params := callsim.AnalysisParams{
		NetworkType:         callsim.NetworkType(req.NetworkType),
		Codec:               callsim.Codec(req.Codec),
		BlockingProbability: req.BlockingProbability,
	}
	if req.Split == "random" {
		params.Split = callsim.RandomizedSplit
	}

	if err := callsim.ValidateAnalysisParams(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	links, err := callsim.BuildLinkMetrics(s.exp.Locations, params, s.trafficRng)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	for _, lm := range links {
		if lm.Saturated {
			s.logger.Warn().Str("from", lm.From).Str("to", lm.To).
				Msg("circuit search hit its bound, requirement is a floor")
		}
	}

	snap, err := s.store.Add(params, links)
	if err != nil {
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	}

	s.logger.Info().Str("snapshot", snap.ID).Str("networktype", req.NetworkType).
		Int("links", len(links)).Msg("analysis run")
	return c.JSON(http.StatusCreated, snap)
}

// ListAnalyses returns the retained snapshots in creation order
func (s *Server) ListAnalyses(c echo.Context) error {
	return c.JSON(http.StatusOK, s.store.List())
}

// GetAnalysis returns one snapshot by id
func (s *Server) GetAnalysis(c echo.Context) error {
	snap, present := s.store.Get(c.Param("id"))
	if !present {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "no such snapshot"})
	}
	return c.JSON(http.StatusOK, snap)
}

// ClearAnalyses drops every retained snapshot
func (s *Server) ClearAnalyses(c echo.Context) error {
	s.store.Clear()
	return c.NoContent(http.StatusNoContent)
}

// DeleteAnalysis drops one snapshot
func (s *Server) DeleteAnalysis(c echo.Context) error {
	if !s.store.Remove(c.Param("id")) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "no such snapshot"})
	}
	return c.NoContent(http.StatusNoContent)
}

// StartSimulation launches the call simulation of a snapshot.  A second
// start while one is running is accepted and does nothing
func (s *Server) StartSimulation(c echo.Context) error {
	id := c.Param("id")
	if err := s.mgr.Start(id); err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusAccepted, map[string]string{"status": s.mgr.Status(id).String()})
}

// StopSimulation halts a running simulation, freezing its metrics
func (s *Server) StopSimulation(c echo.Context) error {
	id := c.Param("id")
	stopped := s.mgr.Stop(id)
	return c.JSON(http.StatusOK, map[string]any{
		"stopped": stopped,
		"status":  s.mgr.Status(id).String(),
	})
}

// SimulationMetrics returns the pollable metrics view of a simulation
func (s *Server) SimulationMetrics(c echo.Context) error {
	m, err := s.mgr.GetMetrics(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, m)
}

// SimulationLinks returns the per-link parameters of a simulation
func (s *Server) SimulationLinks(c echo.Context) error {
	cfgs, err := s.mgr.LinkConfigs(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, cfgs)
}

// TopologyView is the structured topology summary the presentation
// layer draws from
type TopologyView struct {
	Locations      []string           `json:"locations"`
	OriginLoads    map[string]float64 `json:"originloads"`
	FullyConnected bool               `json:"fullyconnected"`
}

// GetTopology builds the topology view of one snapshot
func (s *Server) GetTopology(c echo.Context) error {
	snap, present := s.store.Get(c.Param("id"))
	if !present {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "no such snapshot"})
	}
	topo := callsim.BuildTrafficTopo(snap.Links)
	view := TopologyView{
		Locations:      topo.Locations(),
		OriginLoads:    make(map[string]float64),
		FullyConnected: topo.FullyConnected(),
	}
	for _, name := range view.Locations {
		view.OriginLoads[name] = topo.OriginLoad(name)
	}
	return c.JSON(http.StatusOK, view)
}

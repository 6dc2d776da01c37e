package core

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// healthCheckTimeout bounds the whole health check.
const healthCheckTimeout = 2 * time.Second

// HealthProbe checks one dependency (climatology database, upstream API).
type HealthProbe interface {
	Name() string
	Check(ctx context.Context) error
}

// ProbeFunc adapts a function to HealthProbe.
type ProbeFunc struct {
	ProbeName string
	Fn        func(ctx context.Context) error
}

func (p ProbeFunc) Name() string                    { return p.ProbeName }
func (p ProbeFunc) Check(ctx context.Context) error { return p.Fn(ctx) }

type componentStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type healthResponse struct {
	Status     string                     `json:"status"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]componentStatus `json:"components,omitempty"`
}

// HandleHealth runs every probe concurrently under a 2 second deadline and
// returns 200 when all pass, 503 otherwise. Probes that have not answered by
// the deadline are reported as timed out.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := healthResponse{Status: "healthy"}
	if s.Config != nil {
		resp.Version = s.Config.Build.Version
	}

	probes := s.HealthProbes
	if len(probes) == 0 {
		JSON(w, r, http.StatusOK, resp)
		return
	}

	type probeResult struct {
		index int
		err   error
	}
	results := make(chan probeResult, len(probes))
	for i, p := range probes {
		go func() {
			results <- probeResult{index: i, err: runProbe(ctx, p)}
		}()
	}

	errs := make([]error, len(probes))
	done := make([]bool, len(probes))
collect:
	for range probes {
		select {
		case res := <-results:
			errs[res.index] = res.err
			done[res.index] = true
		case <-ctx.Done():
			break collect
		}
	}

	resp.Components = make(map[string]componentStatus, len(probes))
	for i, p := range probes {
		switch {
		case !done[i]:
			resp.Status = "unhealthy"
			resp.Components[p.Name()] = componentStatus{Status: "unhealthy", Message: "health check timed out"}
		case errs[i] != nil:
			resp.Status = "unhealthy"
			resp.Components[p.Name()] = componentStatus{Status: "unhealthy", Message: errs[i].Error()}
		default:
			resp.Components[p.Name()] = componentStatus{Status: "healthy"}
		}
	}

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	JSON(w, r, status, resp)
}

func runProbe(ctx context.Context, p HealthProbe) (err error) {
	defer func() {
		if rvr := recover(); rvr != nil {
			err = fmt.Errorf("probe panicked: %v", rvr)
		}
	}()
	return p.Check(ctx)
}

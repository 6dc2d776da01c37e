package dashboard

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"skyrisk/internal/location"
	"skyrisk/internal/risk"
	"skyrisk/internal/types"
)

// Lookup actions, used in logs and metrics.
const (
	ActionLocate = "locate"
	ActionSearch = "search"
	ActionAssess = "assess"
)

// Lookup results, used in logs and metrics.
const (
	ResultSuccess  = "success"
	ResultNotFound = "not_found"
	ResultError    = "error"
)

// DeviceResolver resolves a browser position report.
type DeviceResolver interface {
	Locate(ctx context.Context, report *location.PositionReport) (types.Location, error)
}

// CityResolver resolves a city name.
type CityResolver interface {
	Search(ctx context.Context, name string) (types.Location, error)
}

// LookupRecorder observes finished lookups.
type LookupRecorder interface {
	RecordLookup(ctx context.Context, action, result string, forecastAvailable bool)
}

type noopRecorder struct{}

func (noopRecorder) RecordLookup(context.Context, string, string, bool) {}

// Assessment is the outcome of a stateless risk query.
type Assessment struct {
	Location    types.Location          `json:"location"`
	Date        string                  `json:"date"`
	Climatology types.ClimatologyRecord `json:"climatology"`
	Forecast    *types.ForecastRecord   `json:"forecast"`
	Risk        types.RiskResult        `json:"risk"`
}

// Controller orchestrates location resolution, data retrieval and scoring
// for dashboard sessions.
type Controller struct {
	store       *Store
	device      DeviceResolver
	cities      CityResolver
	forecast    types.ForecastGateway
	climatology types.ClimatologySource
	evaluator   *risk.Evaluator
	clock       types.Clock
	recorder    LookupRecorder
	logger      *slog.Logger
}

// Deps groups the Controller's collaborators.
type Deps struct {
	Store       *Store
	Device      DeviceResolver
	Cities      CityResolver
	Forecast    types.ForecastGateway
	Climatology types.ClimatologySource
	Evaluator   *risk.Evaluator
	Clock       types.Clock
	Recorder    LookupRecorder
	Logger      *slog.Logger
}

// NewController creates a Controller. Store, Clock, Evaluator, Device,
// Recorder and Logger have defaults; the data sources are required.
func NewController(d Deps) *Controller {
	c := &Controller{
		store:       d.Store,
		device:      d.Device,
		cities:      d.Cities,
		forecast:    d.Forecast,
		climatology: d.Climatology,
		evaluator:   d.Evaluator,
		clock:       d.Clock,
		recorder:    d.Recorder,
		logger:      d.Logger,
	}
	if c.clock == nil {
		c.clock = types.RealClock{}
	}
	if c.store == nil {
		c.store = NewStore(DefaultSessionTTL, c.clock)
	}
	if c.device == nil {
		c.device = location.NewDeviceLocator()
	}
	if c.evaluator == nil {
		c.evaluator = risk.NewEvaluator()
	}
	if c.recorder == nil {
		c.recorder = noopRecorder{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Store exposes the session store, e.g. for the background sweeper.
func (c *Controller) Store() *Store {
	return c.store
}

// NewSession creates an idle session whose date defaults to today (UTC).
func (c *Controller) NewSession(ctx context.Context) ViewState {
	state := c.store.Create(c.clock.Now().Format(types.DateLayout))
	c.logger.InfoContext(ctx, "dashboard session created", "session_id", state.SessionID)
	return state
}

// Session returns the current state of a session.
func (c *Controller) Session(_ context.Context, id string) (ViewState, error) {
	return c.store.Get(id)
}

// SetDate updates the selected date. It does not start a lookup.
func (c *Controller) SetDate(_ context.Context, id, date string) (ViewState, error) {
	if _, err := types.ParseDate(date); err != nil {
		return ViewState{}, err
	}
	return c.store.Apply(id, DateChanged{Date: date})
}

// SetCity updates the city search field. It does not start a lookup.
func (c *Controller) SetCity(_ context.Context, id, query string) (ViewState, error) {
	return c.store.Apply(id, CityChanged{Query: query})
}

// Dismiss clears the notification left by a failed lookup.
func (c *Controller) Dismiss(_ context.Context, id string) (ViewState, error) {
	return c.store.Apply(id, NotificationDismissed{})
}

// UseMyLocation resolves the browser-reported position and runs a lookup.
// Lookup failures leave the session Idle with a notification and are not
// returned as errors; the error is non-nil only when the session does not exist.
func (c *Controller) UseMyLocation(ctx context.Context, id string, report *location.PositionReport) (ViewState, error) {
	token, state, err := c.store.Begin(id)
	if err != nil {
		return ViewState{}, err
	}
	ctx = types.WithSessionID(ctx, id)

	loc, err := c.device.Locate(ctx, report)
	if err != nil {
		return c.fail(ctx, id, token, ActionLocate, err, "")
	}
	return c.resolveAndFetch(ctx, id, token, ActionLocate, loc, state.SelectedDate)
}

// SearchCity geocodes the session's city query and runs a lookup. An empty
// query leaves the session untouched.
func (c *Controller) SearchCity(ctx context.Context, id string) (ViewState, error) {
	current, err := c.store.Get(id)
	if err != nil {
		return ViewState{}, err
	}
	query := strings.TrimSpace(current.CityQuery)
	if query == "" {
		return current, nil
	}
	if c.cities == nil {
		return ViewState{}, types.NewAppError(types.ErrCodeInternalUnexpected, "city search is not configured", nil)
	}

	token, state, err := c.store.Begin(id)
	if err != nil {
		return ViewState{}, err
	}
	ctx = types.WithSessionID(ctx, id)

	loc, err := c.cities.Search(ctx, query)
	if err != nil {
		msg := ""
		if types.CodeOf(err) != types.ErrCodeNotFoundLocation {
			msg = MsgCitySearchFailed
		}
		return c.fail(ctx, id, token, ActionSearch, err, msg)
	}
	return c.resolveAndFetch(ctx, id, token, ActionSearch, loc, state.SelectedDate)
}

// Assess runs the fetch and scoring flow for explicit coordinates without
// touching any session.
func (c *Controller) Assess(ctx context.Context, lat, lon float64, date string) (*Assessment, error) {
	if err := types.ValidateCoordinates(lat, lon); err != nil {
		return nil, err
	}
	loc := types.Location{Latitude: lat, Longitude: lon}

	a, err := c.fetchRisk(ctx, loc, date)
	if err != nil {
		c.recorder.RecordLookup(ctx, ActionAssess, ResultError, false)
		return nil, err
	}
	c.recorder.RecordLookup(ctx, ActionAssess, ResultSuccess, a.Forecast != nil)
	return a, nil
}

func (c *Controller) resolveAndFetch(ctx context.Context, id string, token uint64, action string, loc types.Location, date string) (ViewState, error) {
	if _, err := c.store.Apply(id, LocationResolved{Token: token, Location: loc}); err != nil {
		return ViewState{}, err
	}

	a, err := c.fetchRisk(ctx, loc, date)
	if err != nil {
		return c.fail(ctx, id, token, action, err, "")
	}

	state, err := c.store.Apply(id, LookupSucceeded{Token: token, Risk: a.Risk})
	if err != nil {
		return ViewState{}, err
	}
	if state.Token != token {
		c.logger.InfoContext(ctx, "discarded superseded lookup result",
			"action", action, "token", token, "current_token", state.Token)
	}
	c.recorder.RecordLookup(ctx, action, ResultSuccess, a.Forecast != nil)
	return state, nil
}

// fetchRisk loads the month's climatology and the forecast concurrently and
// scores them.
func (c *Controller) fetchRisk(ctx context.Context, loc types.Location, date string) (*Assessment, error) {
	month, err := types.MonthIndex(date)
	if err != nil {
		return nil, err
	}

	var (
		clim types.ClimatologyRecord
		fc   *types.ForecastRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		clim, err = c.climatology.ForMonth(gctx, month)
		return err
	})
	g.Go(func() error {
		var err error
		fc, err = c.forecast.FetchForecast(gctx, loc.Latitude, loc.Longitude, date)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Assessment{
		Location:    loc,
		Date:        date,
		Climatology: clim,
		Forecast:    fc,
		Risk:        c.evaluator.Evaluate(clim, fc),
	}, nil
}

func (c *Controller) fail(ctx context.Context, id string, token uint64, action string, err error, msg string) (ViewState, error) {
	result := ResultError
	level := slog.LevelError
	if types.HasCode(err, types.ErrCodeNotFoundLocation) {
		result = ResultNotFound
		level = slog.LevelInfo
	} else if strings.HasPrefix(string(types.CodeOf(err)), "geolocation_") {
		level = slog.LevelWarn
	}
	c.logger.Log(ctx, level, "dashboard lookup failed",
		"session_id", id,
		"action", action,
		"token", token,
		"code", types.CodeOf(err),
		"error", err,
	)
	c.recorder.RecordLookup(ctx, action, result, false)

	return c.store.Apply(id, LookupFailed{Token: token, Err: err, Notification: msg})
}

// Package dashboard holds the per-session view state of the risk dashboard
// and the controller that drives it.
//
// State changes go through Reduce, a pure function of (state, event). Every
// lookup is tagged with a monotonically increasing token; events carrying a
// token other than the state's current one belong to a superseded lookup and
// are dropped, so a slow response can never overwrite a newer one.
//
// A failed lookup returns the session to Idle straight away. The failure
// survives only as Notification and ErrorCode, which the next event clears.
package dashboard

import (
	"time"

	"skyrisk/internal/types"
)

// Phase is the lookup lifecycle of a session.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseReady   Phase = "ready"
)

// User-facing notification texts.
const (
	MsgFetchFailed         = "Failed to fetch weather data. Try again later."
	MsgCityNotFound        = "City not found"
	MsgCitySearchFailed    = "City search failed"
	MsgGeoUnsupported      = "Geolocation not supported"
	MsgGeoPermission       = "Location permission denied"
	MsgLocationUnavailable = "Location unavailable"
)

// ViewState is the complete dashboard state of one session.
// Invariant: Loading implies Risk == nil.
type ViewState struct {
	SessionID    string            `json:"session_id"`
	SelectedDate string            `json:"selected_date"`
	CityQuery    string            `json:"city_query"`
	Location     *types.Location   `json:"location,omitempty"`
	Phase        Phase             `json:"phase"`
	Loading      bool              `json:"loading"`
	Risk         *types.RiskResult `json:"risk,omitempty"`
	Notification string            `json:"notification,omitempty"`
	ErrorCode    types.ErrorCode   `json:"error_code,omitempty"`
	Token        uint64            `json:"token"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Event is an input to Reduce.
type Event interface {
	event()
}

// DateChanged edits the date field.
type DateChanged struct{ Date string }

// CityChanged edits the city search field.
type CityChanged struct{ Query string }

// LookupStarted begins a lookup identified by Token.
type LookupStarted struct{ Token uint64 }

// LocationResolved records the coordinates a lookup resolved to.
type LocationResolved struct {
	Token    uint64
	Location types.Location
}

// LookupSucceeded delivers a lookup's risk result.
type LookupSucceeded struct {
	Token uint64
	Risk  types.RiskResult
}

// LookupFailed ends a lookup with an error. Notification overrides the
// message derived from Err when set.
type LookupFailed struct {
	Token        uint64
	Err          error
	Notification string
}

// NotificationDismissed acknowledges a notification.
type NotificationDismissed struct{}

func (DateChanged) event()           {}
func (CityChanged) event()           {}
func (LookupStarted) event()         {}
func (LocationResolved) event()      {}
func (LookupSucceeded) event()       {}
func (LookupFailed) event()          {}
func (NotificationDismissed) event() {}

// NewViewState returns an idle state for a fresh session.
func NewViewState(sessionID, date string) ViewState {
	return ViewState{
		SessionID:    sessionID,
		SelectedDate: date,
		Phase:        PhaseIdle,
	}
}

// Reduce applies ev to s and returns the new state. It never mutates s and
// leaves UpdatedAt to the caller.
func Reduce(s ViewState, ev Event) ViewState {
	switch e := ev.(type) {
	case DateChanged:
		s.SelectedDate = e.Date
		s.clearNotification()

	case CityChanged:
		s.CityQuery = e.Query
		s.clearNotification()

	case LookupStarted:
		if e.Token <= s.Token {
			return s
		}
		s.Token = e.Token
		s.Phase = PhaseLoading
		s.Loading = true
		s.Risk = nil
		s.clearNotification()

	case LocationResolved:
		if !s.current(e.Token) {
			return s
		}
		loc := e.Location
		s.Location = &loc

	case LookupSucceeded:
		if !s.current(e.Token) {
			return s
		}
		r := e.Risk
		s.Phase = PhaseReady
		s.Loading = false
		s.Risk = &r

	case LookupFailed:
		if !s.current(e.Token) {
			return s
		}
		s.Phase = PhaseIdle
		s.Loading = false
		s.Risk = nil
		s.ErrorCode = types.CodeOf(e.Err)
		s.Notification = e.Notification
		if s.Notification == "" {
			s.Notification = NotificationFor(e.Err)
		}

	case NotificationDismissed:
		s.clearNotification()
	}
	return s
}

func (s *ViewState) clearNotification() {
	s.Notification = ""
	s.ErrorCode = ""
}

// current reports whether token belongs to the in-flight lookup.
func (s ViewState) current(token uint64) bool {
	return token == s.Token && s.Phase == PhaseLoading
}

// NotificationFor maps a lookup error to the message shown to the user.
func NotificationFor(err error) string {
	switch types.CodeOf(err) {
	case types.ErrCodeNotFoundLocation:
		return MsgCityNotFound
	case types.ErrCodeGeoUnsupported:
		return MsgGeoUnsupported
	case types.ErrCodeGeoPermissionDenied:
		return MsgGeoPermission
	case types.ErrCodeGeoPositionUnavailable:
		return MsgLocationUnavailable
	default:
		return MsgFetchFailed
	}
}

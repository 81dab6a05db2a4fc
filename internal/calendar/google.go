package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/hackgods/clinic-booking/internal/appointment"
	redisclient "github.com/hackgods/clinic-booking/internal/redis"
)

const (
	refreshLockName = "calendar:token"

	DefaultRefreshBuffer = 5 * time.Minute
)

// RefreshObserver is told about every token refresh attempt.
type RefreshObserver interface {
	ObserveCalendarRefresh(result string)
}

type GoogleConfig struct {
	ClientID      string
	ClientSecret  string
	RedirectURL   string
	CalendarID    string
	Location      *time.Location
	RefreshBuffer time.Duration

	// Overrides for tests and proxies.
	Endpoint    string
	TokenURL    string
	HTTPClient  *http.Client
	LockBackoff time.Duration
}

// GoogleAdapter mirrors appointments into one Google calendar using the
// practice's stored OAuth token.
type GoogleAdapter struct {
	oauth      *oauth2.Config
	store      TokenStore
	locker     redisclient.Locker
	calendarID string
	loc        *time.Location
	buffer     time.Duration
	endpoint   string
	httpClient *http.Client
	backoff    time.Duration
	observer   RefreshObserver
	logger     zerolog.Logger
	tracer     trace.Tracer
	now        func() time.Time

	mu sync.Mutex
}

// NewGoogleAdapter builds the adapter. locker and observer may be nil.
func NewGoogleAdapter(cfg GoogleConfig, store TokenStore, locker redisclient.Locker, observer RefreshObserver, logger zerolog.Logger) *GoogleAdapter {
	endpoint := google.Endpoint
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	if cfg.CalendarID == "" {
		cfg.CalendarID = "primary"
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.RefreshBuffer <= 0 {
		cfg.RefreshBuffer = DefaultRefreshBuffer
	}
	if cfg.LockBackoff <= 0 {
		cfg.LockBackoff = 500 * time.Millisecond
	}

	return &GoogleAdapter{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{gcal.CalendarEventsScope},
			Endpoint:     endpoint,
		},
		store:      store,
		locker:     locker,
		calendarID: cfg.CalendarID,
		loc:        cfg.Location,
		buffer:     cfg.RefreshBuffer,
		endpoint:   cfg.Endpoint,
		httpClient: cfg.HTTPClient,
		backoff:    cfg.LockBackoff,
		observer:   observer,
		logger:     logger.With().Str("component", "google_calendar").Logger(),
		tracer:     otel.Tracer("clinic-booking/calendar"),
		now:        time.Now,
	}
}

// AuthURL is where staff are sent to grant calendar access. Offline access
// and forced consent make Google return a refresh token every time.
func (a *GoogleAdapter) AuthURL(state string) string {
	return a.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// HandleAuthCallback exchanges the authorization code and stores the token.
func (a *GoogleAdapter) HandleAuthCallback(ctx context.Context, code string) error {
	if strings.TrimSpace(code) == "" {
		return errors.New("authorization code is required")
	}

	tok, err := a.oauth.Exchange(a.clientContext(ctx), code)
	if err != nil {
		return fmt.Errorf("exchange authorization code: %w", err)
	}
	if tok.RefreshToken == "" {
		// Keep a previously granted refresh token when Google omits it.
		if prev, err := a.store.Get(ctx); err == nil {
			tok.RefreshToken = prev.RefreshToken
		}
	}
	t := tokenFromOAuth(tok)
	t.CreatedAt = a.now().UTC()
	if err := a.store.Set(ctx, t); err != nil {
		return err
	}

	a.logger.Info().Time("expires_at", tok.Expiry).Msg("calendar authorized")
	return nil
}

// IsAuthenticated reports whether a usable token exists, refreshing it if needed.
func (a *GoogleAdapter) IsAuthenticated(ctx context.Context) bool {
	_, err := a.validToken(ctx)
	return err == nil
}

// CheckToken validates and, when close to expiry, refreshes the stored token.
func (a *GoogleAdapter) CheckToken(ctx context.Context) (*Token, error) {
	tok, err := a.validToken(ctx)
	if err != nil {
		return nil, err
	}
	t := tokenFromOAuth(tok)
	return &t, nil
}

// CreateOrUpdateEvent returns the id of the event now describing appt.
// An update of an event that no longer exists falls back to an insert.
func (a *GoogleAdapter) CreateOrUpdateEvent(ctx context.Context, appt *appointment.Appointment) (string, error) {
	ctx, span := a.tracer.Start(ctx, "calendar.CreateOrUpdateEvent",
		trace.WithAttributes(attribute.String("appointment.id", appt.ID.String())))
	defer span.End()

	svc, err := a.service(ctx)
	if err != nil {
		return "", a.fail(span, err)
	}

	event := a.buildEvent(appt)
	if appt.HasCalendarEvent() {
		updated, err := svc.Events.Update(a.calendarID, *appt.CalendarEventID, event).Context(ctx).Do()
		if err == nil {
			return updated.Id, nil
		}
		if !isGone(err) {
			return "", a.fail(span, a.classify(ctx, err))
		}
		a.logger.Warn().
			Str("appointment_id", appt.ID.String()).
			Str("event_id", *appt.CalendarEventID).
			Msg("calendar event missing, creating a new one")
	}

	created, err := svc.Events.Insert(a.calendarID, event).Context(ctx).Do()
	if err != nil {
		return "", a.fail(span, a.classify(ctx, err))
	}
	return created.Id, nil
}

// CancelEvent marks the event cancelled. An event that is already gone counts as cancelled.
func (a *GoogleAdapter) CancelEvent(ctx context.Context, appt *appointment.Appointment) error {
	if !appt.HasCalendarEvent() {
		return nil
	}
	ctx, span := a.tracer.Start(ctx, "calendar.CancelEvent",
		trace.WithAttributes(attribute.String("appointment.id", appt.ID.String())))
	defer span.End()

	svc, err := a.service(ctx)
	if err != nil {
		return a.fail(span, err)
	}

	_, err = svc.Events.Patch(a.calendarID, *appt.CalendarEventID, &gcal.Event{Status: "cancelled"}).Context(ctx).Do()
	if err != nil && !isGone(err) {
		return a.fail(span, a.classify(ctx, err))
	}
	return nil
}

func (a *GoogleAdapter) DeleteEvent(ctx context.Context, eventID string) error {
	if eventID == "" {
		return nil
	}
	ctx, span := a.tracer.Start(ctx, "calendar.DeleteEvent",
		trace.WithAttributes(attribute.String("calendar.event_id", eventID)))
	defer span.End()

	svc, err := a.service(ctx)
	if err != nil {
		return a.fail(span, err)
	}

	err = svc.Events.Delete(a.calendarID, eventID).Context(ctx).Do()
	if err != nil && !isGone(err) {
		return a.fail(span, a.classify(ctx, err))
	}
	return nil
}

func (a *GoogleAdapter) buildEvent(appt *appointment.Appointment) *gcal.Event {
	zone := a.loc.String()
	start := appt.ScheduledAt.In(a.loc)
	end := appt.End().In(a.loc)

	description := appt.Description
	contact := fmt.Sprintf("Phone: %s\nEmail: %s", appt.Phone, appt.Email)
	if description == "" {
		description = contact
	} else {
		description += "\n\n" + contact
	}

	return &gcal.Event{
		Summary:     fmt.Sprintf("Appointment: %s (%s)", appt.PatientName, appt.ConsultationName()),
		Description: description,
		Start:       &gcal.EventDateTime{DateTime: start.Format(time.RFC3339), TimeZone: zone},
		End:         &gcal.EventDateTime{DateTime: end.Format(time.RFC3339), TimeZone: zone},
		Reminders: &gcal.EventReminders{
			UseDefault: false,
			Overrides: []*gcal.EventReminder{
				{Method: "email", Minutes: 24 * 60},
				{Method: "popup", Minutes: 30},
			},
			ForceSendFields: []string{"UseDefault"},
		},
	}
}

func (a *GoogleAdapter) service(ctx context.Context) (*gcal.Service, error) {
	tok, err := a.validToken(ctx)
	if err != nil {
		return nil, err
	}

	client := oauth2.NewClient(a.clientContext(ctx), oauth2.StaticTokenSource(tok))
	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if a.endpoint != "" {
		opts = append(opts, option.WithEndpoint(a.endpoint))
	}

	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: create calendar client: %w", ErrUnavailable, err)
	}
	return svc, nil
}

// validToken returns a token that stays valid for at least the refresh buffer.
func (a *GoogleAdapter) validToken(ctx context.Context) (*oauth2.Token, error) {
	stored, err := a.load(ctx)
	if err != nil {
		return nil, err
	}
	if !stored.expiresWithin(a.now(), a.buffer) {
		return stored.oauth(), nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.locker == nil {
		return a.refresh(ctx)
	}

	var tok *oauth2.Token
	err = a.locker.WithLock(ctx, refreshLockName, func(ctx context.Context) error {
		var err error
		tok, err = a.refresh(ctx)
		return err
	})
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		// Another process is refreshing; give it a moment and use its result.
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(a.backoff):
		}
		stored, err := a.load(ctx)
		if err != nil {
			return nil, err
		}
		if stored.expiresWithin(a.now(), 0) {
			return nil, fmt.Errorf("%w: token refresh in progress elsewhere", ErrUnavailable)
		}
		return stored.oauth(), nil
	}
	if errors.Is(err, redisclient.ErrLockUnavailable) {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if err != nil {
		return nil, err
	}
	return tok, nil
}

// refresh must be called with mu held. It re-reads the store first because
// another goroutine or process may have refreshed already.
func (a *GoogleAdapter) refresh(ctx context.Context) (*oauth2.Token, error) {
	stored, err := a.load(ctx)
	if err != nil {
		return nil, err
	}
	if !stored.expiresWithin(a.now(), a.buffer) {
		return stored.oauth(), nil
	}
	if stored.RefreshToken == "" {
		a.observe("expired")
		return nil, a.expire(ctx, "no refresh token stored")
	}

	// An empty access token forces the token source to hit the token endpoint.
	src := a.oauth.TokenSource(a.clientContext(ctx), &oauth2.Token{RefreshToken: stored.RefreshToken})
	fresh, err := src.Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && (re.ErrorCode == "invalid_grant" || strings.Contains(string(re.Body), "invalid_grant")) {
			a.observe("expired")
			return nil, a.expire(ctx, "refresh token revoked")
		}
		a.observe("error")
		a.logger.Error().Err(err).Msg("calendar token refresh failed")
		return nil, fmt.Errorf("%w: refresh token: %w", ErrUnavailable, err)
	}

	next := tokenFromOAuth(fresh)
	next.CreatedAt = stored.CreatedAt
	if err := a.store.Set(ctx, next); err != nil {
		a.observe("error")
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	a.observe("ok")
	a.logger.Info().Time("expires_at", fresh.Expiry).Msg("calendar token refreshed")
	return fresh, nil
}

func (a *GoogleAdapter) load(ctx context.Context) (*Token, error) {
	stored, err := a.store.Get(ctx)
	if errors.Is(err, ErrTokenNotFound) {
		return nil, ErrNotAuthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return stored, nil
}

// expire drops the stored token so staff are asked to authorize again.
func (a *GoogleAdapter) expire(ctx context.Context, reason string) error {
	if err := a.store.Delete(ctx); err != nil {
		a.logger.Error().Err(err).Msg("failed to delete expired calendar token")
	}
	a.logger.Warn().Str("reason", reason).Msg("calendar authorization expired")
	return ErrAuthExpired
}

// classify maps an API error onto the adapter sentinels.
func (a *GoogleAdapter) classify(ctx context.Context, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusUnauthorized {
		return a.expire(ctx, "calendar API rejected the access token")
	}
	if errors.Is(err, ErrAuthExpired) || errors.Is(err, ErrNotAuthenticated) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

func (a *GoogleAdapter) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func (a *GoogleAdapter) observe(result string) {
	if a.observer != nil {
		a.observer.ObserveCalendarRefresh(result)
	}
}

func (a *GoogleAdapter) clientContext(ctx context.Context) context.Context {
	if a.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
}

func isGone(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && (gerr.Code == http.StatusNotFound || gerr.Code == http.StatusGone)
}

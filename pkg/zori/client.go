// Package zori is the embeddable event-instrumentation client: visitor
// identity, sessions, consent gating, visibility classification and event
// dispatch to a collection endpoint.
//
// No method returns an error to the host for tracking failures. Calls that
// cannot proceed log the reason and report false.
package zori

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/AtRiskMedia/zori-go/internal/application/container"
	"github.com/AtRiskMedia/zori-go/internal/domain/commands"
	"github.com/AtRiskMedia/zori-go/internal/domain/entities/consent"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/clock"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/persistence/database"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/persistence/store"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/security"
	"github.com/AtRiskMedia/zori-go/pkg/config"
)

// CloseTimeout bounds how long Close waits for in-flight deliveries.
const CloseTimeout = 10 * time.Second

// Option customizes a client.
type Option func(*options)

type options struct {
	container.Options
	sqlTarget     *database.Target
	sweepInterval time.Duration
	closers       []io.Closer
}

// WithStore uses b for cookies and local state.
func WithStore(b Backend) Option {
	return func(o *options) { o.Backend = b }
}

// WithSQLStore persists state in SQLite (a file path) or libSQL (a libsql://
// or https:// URL). The client closes the connection on Close.
func WithSQLStore(target, authToken string) Option {
	return func(o *options) {
		t := database.Target{AuthToken: authToken}
		if strings.Contains(target, "://") {
			t.URL = target
		} else {
			t.Path = target
		}
		o.sqlTarget = &t
	}
}

// WithStateSweep purges expired cookies from the store every interval, for
// long-lived hosts. Zero disables it.
func WithStateSweep(interval time.Duration) Option {
	return func(o *options) { o.sweepInterval = interval }
}

// WithPage sets the page provider.
func WithPage(p PageProvider) Option {
	return func(o *options) { o.Pages = p }
}

// WithTransport replaces HTTP delivery.
func WithTransport(t Transport) Option {
	return func(o *options) { o.Transport = t }
}

// WithHTTPClient sets the client used by the default HTTP transport.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.HTTPClient = c }
}

// WithClock sets the time source.
func WithClock(c Clock) Option {
	return func(o *options) { o.Clock = c }
}

// WithIDs sets the identifier generator.
func WithIDs(ids security.IDGenerator) Option {
	return func(o *options) { o.IDs = ids }
}

// WithCollector sets the fingerprint collector used on first visit.
func WithCollector(c Collector) Option {
	return func(o *options) { o.Collector = c }
}

// WithLogger sets the channeled logger.
func WithLogger(l *logging.ChanneledLogger) Option {
	return func(o *options) { o.Logger = l }
}

// Client is one client instance. It is safe for concurrent use.
type Client struct {
	c       *container.Container
	closers []io.Closer

	stopSweep func()
	sweepDone chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// New builds a client. It fails only on invalid configuration or an
// unreachable SQL store.
func New(cfg config.Client, opts ...Option) (*Client, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	if o.sqlTarget != nil && o.Backend == nil {
		logger := o.Logger
		if logger == nil {
			logger = logging.Discard()
		}
		clk := o.Clock
		if clk == nil {
			clk = clock.System{}
		}
		backend, err := store.OpenSQLBackend(*o.sqlTarget, clk, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open state store: %w", err)
		}
		o.Backend = backend
		o.closers = append(o.closers, backend)
	}

	c, err := container.NewContainer(cfg, o.Options)
	if err != nil {
		for _, closer := range o.closers {
			closer.Close()
		}
		return nil, err
	}
	client := &Client{c: c, closers: o.closers}

	if purger, ok := o.Backend.(store.Purger); ok && o.sweepInterval > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		client.stopSweep = cancel
		client.sweepDone = make(chan struct{})
		sweeper := store.NewSweeper(purger, o.sweepInterval, c.Logger)
		go func() {
			defer close(client.sweepDone)
			sweeper.Start(ctx)
		}()
	}
	return client, nil
}

// Init builds a client, resolves the visitor, replays everything buffered in q
// in order, attaches q so later pushes run immediately and, when configured,
// tracks the initial page view.
func Init(ctx context.Context, q *Queue, cfg config.Client, opts ...Option) (*Client, error) {
	client, err := New(cfg, opts...)
	if err != nil {
		return nil, err
	}

	client.c.VisitorService.Resolve(ctx)

	if q != nil {
		snapshot := q.drain()
		client.c.CommandService.Replay(ctx, snapshot)
		q.attach(ctx, client)
	}

	if cfg.AutoPageView {
		client.PageView(ctx)
	}

	client.c.Logger.System().Info("Client initialized")
	return client, nil
}

// Track records a named event. It reports false when consent is denied.
func (cl *Client) Track(ctx context.Context, name string, props map[string]any, click *ClickData) bool {
	if name == "" {
		cl.c.Logger.LogError(logging.ChannelDispatch, "track", errors.New("event name is required"), nil)
		return false
	}
	return cl.c.DispatchService.TrackEvent(ctx, name, props, click)
}

// TrackClick records a click.
func (cl *Client) TrackClick(ctx context.Context, click ClickData) bool {
	return cl.c.DispatchService.TrackClick(ctx, click)
}

// PageView records a page view of the current page.
func (cl *Client) PageView(ctx context.Context) bool {
	return cl.c.DispatchService.TrackPageView(ctx)
}

// Identify attaches user identity fields to the visitor.
func (cl *Client) Identify(ctx context.Context, userInfo map[string]any) bool {
	ok, err := cl.c.DispatchService.IdentifyUser(ctx, userInfo)
	if err != nil {
		cl.c.Logger.LogError(logging.ChannelDispatch, "identify", err, nil)
	}
	return ok
}

// GetVisitorID resolves the visitor id, creating it if needed. Each callback
// receives the id.
func (cl *Client) GetVisitorID(ctx context.Context, callbacks ...func(string)) string {
	id := cl.c.VisitorService.Resolve(ctx).ID
	for _, cb := range callbacks {
		if cb != nil {
			cb(id)
		}
	}
	return id
}

// SetConsent records consent preferences. prefs may be Preferences or a
// map with "analytics" and "marketing" keys; anything else is rejected.
func (cl *Client) SetConsent(ctx context.Context, prefs any) bool {
	p, err := consent.PreferencesFrom(prefs)
	if err != nil {
		cl.c.Logger.LogError(logging.ChannelConsent, "set_consent", err, nil)
		return false
	}
	return cl.Do(ctx, commands.SetConsent{Preferences: p})
}

// OptOut denies all tracking and clears the visitor's local identity.
func (cl *Client) OptOut(ctx context.Context) bool {
	return cl.Do(ctx, commands.OptOut{})
}

// HasConsent evaluates the consent gate now.
func (cl *Client) HasConsent(ctx context.Context) bool {
	return cl.c.ConsentService.HasTrackingConsent(ctx)
}

// ConsentState returns the recorded consent choice.
func (cl *Client) ConsentState(ctx context.Context) ConsentRecord {
	return cl.c.ConsentService.LoadConsentState(ctx)
}

// GetSessionID returns the current session id, if a valid session exists.
func (cl *Client) GetSessionID(ctx context.Context) (string, bool) {
	id := cl.c.SessionService.CurrentSessionID(ctx)
	return id, id != ""
}

// Push runs a loosely typed call, as a host would push it onto the queue.
// Unknown methods are logged and report false.
func (cl *Client) Push(ctx context.Context, method string, args ...any) bool {
	out, err := cl.c.CommandService.ExecuteRaw(ctx, commands.Raw{Method: method, Args: args})
	return err == nil && out.OK
}

// Do runs a typed command and reports its boolean outcome.
func (cl *Client) Do(ctx context.Context, cmd Command) bool {
	if cmd == nil {
		return false
	}
	return cl.c.CommandService.Execute(ctx, cmd).OK
}

// Hidden reports that the page became hidden.
func (cl *Client) Hidden(ctx context.Context) {
	cl.c.VisibilityService.OnHidden(ctx)
}

// Visible reports that the page became visible.
func (cl *Client) Visible(ctx context.Context) {
	cl.c.VisibilityService.OnVisible(ctx)
}

// Unload is the termination hook. It emits left_while_hidden when hidden,
// refreshes session activity, ends the session when configured to, and waits
// for in-flight deliveries until ctx ends.
func (cl *Client) Unload(ctx context.Context) {
	cl.c.VisibilityService.OnUnload(ctx)
	cl.c.SessionService.UpdateActivity(ctx)
	if cl.c.Config.EndSessionOnUnload {
		cl.c.SessionService.EndSession(ctx)
	}
	if err := cl.Flush(ctx); err != nil {
		cl.c.Logger.System().Warn("Unload left deliveries in flight", "error", err.Error())
	}
}

// EndSession ends the current session, emitting session_end.
func (cl *Client) EndSession(ctx context.Context) bool {
	return cl.c.SessionService.EndSession(ctx)
}

// Flush waits for in-flight deliveries.
func (cl *Client) Flush(ctx context.Context) error {
	return cl.c.DispatchService.Wait(ctx)
}

// Stats returns delivery statistics.
func (cl *Client) Stats() Stats {
	return cl.c.DispatchService.Stats()
}

// Close flushes pending deliveries (bounded by CloseTimeout) and releases
// stores the client opened.
func (cl *Client) Close() error {
	cl.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), CloseTimeout)
		defer cancel()

		var errs []error
		if err := cl.Flush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush: %w", err))
		}
		if cl.stopSweep != nil {
			cl.stopSweep()
			<-cl.sweepDone
		}
		for _, closer := range cl.closers {
			if err := closer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		cl.closeErr = errors.Join(errs...)
	})
	return cl.closeErr
}

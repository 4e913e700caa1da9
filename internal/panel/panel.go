package panel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"mcpanel/internal/api"
	"mcpanel/internal/config"
	"mcpanel/internal/controlplane"
	"mcpanel/internal/logging"
	"mcpanel/internal/mcstatus"
	"mcpanel/internal/notifications"
	"mcpanel/internal/reconciler"
	"mcpanel/internal/services"
	"mcpanel/internal/snapshots"
)

// pruneEvery is the number of recorded transitions between history prunes.
const pruneEvery = 50

// Option customizes a Panel.
type Option func(*options)

type options struct {
	scheduler reconciler.Scheduler
	notifier  notifications.Service
	players   *mcstatus.Client
}

// WithScheduler replaces the runtime timer used for status polls.
func WithScheduler(s reconciler.Scheduler) Option {
	return func(o *options) { o.scheduler = s }
}

// WithNotifier replaces the configured notification service.
func WithNotifier(n notifications.Service) Option {
	return func(o *options) { o.notifier = n }
}

// WithPlayerLookup replaces the mcstatus client.
func WithPlayerLookup(c *mcstatus.Client) Option {
	return func(o *options) { o.players = c }
}

// Panel coordinates the reconciler, cache, notifier, and API server, and
// enforces single-instance execution.
type Panel struct {
	cfg        *config.Config
	logger     *slog.Logger
	client     *controlplane.Client
	reconciler *reconciler.Reconciler
	store      *snapshots.Store
	notifier   notifications.Service
	players    *mcstatus.Client
	api        *apiServer

	lockPath string
	lock     *flock.Flock

	running   atomic.Bool
	closed    atomic.Bool
	startedAt time.Time
	cancel    context.CancelFunc
	done      chan struct{}
	recorded  int
}

// New constructs a panel. When the cache is enabled the last recorded status
// seeds the reconciler and is shown as stale until the first fetch.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Panel, error) {
	if cfg == nil {
		return nil, errors.New("panel requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	var o options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	client, err := controlplane.NewFromConfig(cfg, logger)
	if err != nil {
		return nil, err
	}

	var (
		store   *snapshots.Store
		initial *reconciler.ServerStatus
	)
	if cfg.Cache.Enabled {
		store, err = snapshots.Open(cfg)
		if err != nil {
			return nil, fmt.Errorf("open snapshot cache: %w", err)
		}
		latest, ok, err := store.Latest(context.Background())
		if err != nil {
			logging.WarnWithContext(logger, "snapshot cache unreadable; starting without history", "cache_read_failed",
				logging.Error(err),
				logging.String("path", store.Path()),
				logging.String(logging.FieldImpact, "status is unknown until the first fetch"),
			)
		} else if ok {
			status := latest.Status
			initial = &status
		}
	}

	recOpts := reconciler.OptionsFromConfig(cfg, logger)
	recOpts.Scheduler = o.scheduler
	recOpts.Initial = initial

	notifier := o.notifier
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	players := o.players
	if players == nil {
		players = mcstatus.New(cfg)
	}

	p := &Panel{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "panel"),
		client:     client,
		reconciler: reconciler.New(client, recOpts),
		store:      store,
		notifier:   notifier,
		players:    players,
		lockPath:   cfg.LockPath(),
		lock:       flock.New(cfg.LockPath()),
	}
	p.api = newAPIServer(cfg, p, logger)
	return p, nil
}

// Start acquires the panel lock, begins serving the API, and triggers the
// first status fetch. A panel cannot be restarted once stopped.
func (p *Panel) Start(ctx context.Context) error {
	if p.closed.Load() {
		return errors.New("panel already stopped")
	}
	if p.running.Load() {
		return errors.New("panel already running")
	}
	if p.done != nil {
		return errors.New("panel already attached")
	}

	ok, err := p.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another mcpanel panel instance is already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	updates, unsubscribe := p.reconciler.Subscribe(32)
	p.done = make(chan struct{})
	go p.consume(context.WithoutCancel(ctx), updates)

	if err := p.api.start(ctx); err != nil {
		unsubscribe()
		<-p.done
		cancel()
		_ = p.lock.Unlock()
		return err
	}

	p.cancel = cancel
	p.startedAt = time.Now()
	p.running.Store(true)
	p.logger.Info("mcpanel panel started",
		logging.String("lock", p.lockPath),
		logging.String("control_plane", p.client.StatusURL()),
	)

	go func() {
		if _, err := p.reconciler.Refresh(ctx); err != nil && !errors.Is(err, reconciler.ErrClosed) {
			logging.WarnWithContext(p.logger, "initial status fetch failed", "initial_refresh_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check control_plane.base_url; polling retries at the fallback interval"),
			)
		}
	}()
	return nil
}

// Attach records and announces updates without serving the API or taking the
// panel lock. The CLI uses it to drive the reconciler when no panel answers.
func (p *Panel) Attach() error {
	if p.closed.Load() {
		return errors.New("panel already stopped")
	}
	if p.running.Load() || p.done != nil {
		return errors.New("panel already running")
	}
	updates, _ := p.reconciler.Subscribe(32)
	p.done = make(chan struct{})
	go p.consume(context.Background(), updates)
	return nil
}

// Stop shuts down the API server and polling and releases the panel lock.
func (p *Panel) Stop() {
	if !p.running.Load() {
		return
	}
	p.closed.Store(true)
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.api.stop()
	p.reconciler.Close()
	if p.done != nil {
		<-p.done
	}
	if err := p.lock.Unlock(); err != nil {
		p.logger.Warn("failed to release panel lock", logging.Error(err))
	}
	p.running.Store(false)
	p.logger.Info("mcpanel panel stopped")
}

// Close releases resources held by the panel.
func (p *Panel) Close() error {
	p.Stop()
	p.closed.Store(true)
	p.reconciler.Close()
	if p.done != nil {
		<-p.done
	}
	if p.store != nil {
		return p.store.Close()
	}
	return nil
}

// Addr returns the API listen address once started.
func (p *Panel) Addr() string {
	return p.api.addr()
}

// Reconciler exposes the panel's reconciler.
func (p *Panel) Reconciler() *reconciler.Reconciler {
	return p.reconciler
}

// Status returns daemon runtime information.
func (p *Panel) Status() api.PanelStatus {
	status := api.PanelStatus{
		Running:      p.running.Load(),
		PID:          os.Getpid(),
		Bind:         p.api.addr(),
		ControlPlane: p.client.StatusURL(),
		LockFilePath: p.lockPath,
		LogPath:      filepath.Join(p.cfg.Paths.LogDir, logging.DaemonLogName),
	}
	if p.store != nil {
		status.CachePath = p.store.Path()
	}
	if !p.startedAt.IsZero() {
		status.StartedAt = p.startedAt.UTC().Format(time.RFC3339)
	}
	return status
}

// ServerStatus returns the current snapshot and poll state.
func (p *Panel) ServerStatus() api.StatusResponse {
	status, ok := p.reconciler.Snapshot()
	return api.NewStatusResponse(status, ok, p.reconciler.State())
}

// Refresh fetches the status now. A refresh that overlaps another fetch or is
// superseded by an action answers with the current snapshot.
func (p *Panel) Refresh(ctx context.Context) (api.StatusResponse, error) {
	_, err := p.reconciler.Refresh(ctx)
	if errors.Is(err, reconciler.ErrFetchInFlight) || errors.Is(err, reconciler.ErrCanceled) {
		err = nil
	}
	return p.ServerStatus(), err
}

// StartServer launches the server with req merged over the [launch] defaults.
func (p *Panel) StartServer(ctx context.Context, req api.StartRequest) (api.StatusResponse, error) {
	_, err := p.reconciler.Start(ctx, req.LaunchRequest(p.cfg.Launch))
	return p.ServerStatus(), err
}

// StopServer stops the server.
func (p *Panel) StopServer(ctx context.Context) (api.StatusResponse, error) {
	_, err := p.reconciler.Stop(ctx)
	return p.ServerStatus(), err
}

// History returns up to limit recorded transitions.
func (p *Panel) History(ctx context.Context, limit int) (api.HistoryResponse, error) {
	if p.store == nil {
		return api.HistoryResponse{}, services.Wrap(services.ErrUnavailable, "panel", "history", "snapshot cache is disabled", nil)
	}
	entries, err := p.store.Recent(ctx, limit)
	if err != nil {
		return api.HistoryResponse{}, err
	}
	return api.FromHistory(entries), nil
}

// Players looks up who is online. The server must be RUNNING.
func (p *Panel) Players(ctx context.Context) (api.PlayersResponse, error) {
	status, ok := p.reconciler.Snapshot()
	if !ok || !status.TaskStatus.Is(reconciler.StatusRunning) {
		return api.PlayersResponse{}, services.Wrap(services.ErrConflict, "panel", "players", "server is not running", nil)
	}
	address := p.cfg.MCStatus.Address
	if address == "" {
		address = status.ServerIP
	}
	if address == "" {
		return api.PlayersResponse{}, services.Wrap(services.ErrUnavailable, "panel", "players", "server address is not known yet", nil)
	}
	result, err := p.players.Players(ctx, address)
	if err != nil {
		return api.PlayersResponse{}, err
	}
	return api.FromPlayers(result), nil
}

func (p *Panel) consume(ctx context.Context, updates <-chan reconciler.Update) {
	defer close(p.done)
	for update := range updates {
		p.handleUpdate(ctx, update)
	}
}

func (p *Panel) handleUpdate(ctx context.Context, update reconciler.Update) {
	if p.store != nil && !update.Current.IsZero() {
		wrote, err := p.store.Record(ctx, update.Current, update.Cause)
		if err != nil {
			logging.WarnWithContext(p.logger, "failed to record status snapshot", "cache_write_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "history will miss this transition"),
			)
		} else if wrote {
			p.recorded++
			if p.recorded%pruneEvery == 0 {
				if removed, err := p.store.Prune(ctx, p.cfg.Cache.HistoryKeep); err != nil {
					p.logger.Warn("failed to prune snapshot history", logging.Error(err))
				} else if removed > 0 {
					p.logger.Debug("pruned snapshot history", logging.Int64("removed", removed))
				}
			}
		}
	}
	if err := notifications.PublishUpdate(ctx, p.notifier, update); err != nil {
		logging.WarnWithContext(p.logger, "notification delivery failed", "notify_failed",
			logging.Error(err),
			logging.String(logging.FieldTaskStatus, string(update.Current.TaskStatus)),
		)
	}
}

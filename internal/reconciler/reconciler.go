package reconciler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"mcpanel/internal/config"
	"mcpanel/internal/controlplane"
	"mcpanel/internal/launch"
	"mcpanel/internal/logging"
	"mcpanel/internal/services"
)

const (
	defaultFallbackInterval = 15 * time.Second
	defaultMinInterval      = time.Second
	defaultMaxInterval      = 5 * time.Minute
	defaultMaxFailures      = 5
)

// Update causes.
const (
	CausePoll    = "poll"
	CauseRefresh = "refresh"
	CauseStart   = "start"
	CauseStop    = "stop"
	CauseWarm    = "warm"
)

// ControlPlane is the subset of the control-plane client the reconciler uses.
type ControlPlane interface {
	Status(ctx context.Context, location string) (controlplane.Result, error)
	Start(ctx context.Context, req launch.Request) (controlplane.Result, error)
	Stop(ctx context.Context) (controlplane.Result, error)
}

// Options tunes polling cadence and wiring. Zero values select defaults.
type Options struct {
	FallbackInterval       time.Duration
	MinInterval            time.Duration
	MaxInterval            time.Duration
	MaxConsecutiveFailures int
	Scheduler              Scheduler
	Logger                 *slog.Logger
	Now                    func() time.Time
	// Initial seeds the snapshot, typically from the on-disk cache. It is
	// marked stale until the first successful fetch.
	Initial *ServerStatus
}

// OptionsFromConfig maps the [poller] section onto Options.
func OptionsFromConfig(cfg *config.Config, logger *slog.Logger) Options {
	return Options{
		FallbackInterval:       cfg.FallbackInterval(),
		MinInterval:            cfg.MinInterval(),
		MaxInterval:            cfg.MaxInterval(),
		MaxConsecutiveFailures: cfg.Poller.MaxConsecutiveFailures,
		Logger:                 logger,
	}
}

// StatusResult is one successful status fetch and the delay it asks for.
type StatusResult struct {
	Status ServerStatus
	// Interval is the delay before the next check: the server hint clamped to
	// the configured bounds, or the fallback when no hint was sent.
	Interval time.Duration
	Hinted   bool
	Location string
}

// PollState describes the polling machinery for display.
type PollState struct {
	Polling             bool      `json:"polling"`
	NextPollAt          time.Time `json:"nextPollAt,omitzero"`
	ActionInFlight      bool      `json:"actionInFlight"`
	ConsecutiveFailures int       `json:"consecutiveFailures"`
	LastError           string    `json:"lastError,omitempty"`
	Location            string    `json:"location,omitempty"`
}

// Update is delivered to subscribers after every applied result.
type Update struct {
	Previous ServerStatus
	Current  ServerStatus
	Cause    string
	Err      error
	// Polling reports whether another check is armed.
	Polling bool
}

// Changed reports whether the lifecycle state moved.
func (u Update) Changed() bool {
	return Changed(u.Previous, u.Current)
}

// Reconciler keeps a local view of the remote server and drives polling
// until a terminal status is observed. One pending task exists at a time.
type Reconciler struct {
	client      ControlPlane
	scheduler   Scheduler
	logger      *slog.Logger
	now         func() time.Time
	fallback    time.Duration
	minInterval time.Duration
	maxInterval time.Duration
	maxFailures int

	baseCtx    context.Context
	cancelBase context.CancelFunc
	inFlight   atomic.Bool

	mu          sync.Mutex
	status      ServerStatus
	hasStatus   bool
	pending     Task
	pendingSeq  uint64
	nextPollAt  time.Time
	generation  uint64
	location    string
	failures    int
	lastErr     error
	fetching    bool
	fetchGen    uint64
	closed      bool
	subscribers map[int]chan Update
	nextSubID   int
}

// New constructs a reconciler. Nothing is fetched until Refresh, an action,
// or ScheduleNext is called.
func New(client ControlPlane, opts Options) *Reconciler {
	r := &Reconciler{
		client:      client,
		scheduler:   opts.Scheduler,
		logger:      logging.NewComponentLogger(opts.Logger, "reconciler"),
		now:         opts.Now,
		fallback:    opts.FallbackInterval,
		minInterval: opts.MinInterval,
		maxInterval: opts.MaxInterval,
		maxFailures: opts.MaxConsecutiveFailures,
		subscribers: make(map[int]chan Update),
	}
	if r.scheduler == nil {
		r.scheduler = SystemScheduler{}
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.fallback <= 0 {
		r.fallback = defaultFallbackInterval
	}
	if r.minInterval <= 0 {
		r.minInterval = defaultMinInterval
	}
	if r.maxInterval <= 0 {
		r.maxInterval = defaultMaxInterval
	}
	if r.maxInterval < r.minInterval {
		r.maxInterval = r.minInterval
	}
	if r.maxFailures <= 0 {
		r.maxFailures = defaultMaxFailures
	}
	if opts.Initial != nil && !opts.Initial.IsZero() {
		r.status = *opts.Initial
		r.status.Stale = true
		r.hasStatus = true
	}
	r.baseCtx, r.cancelBase = context.WithCancel(context.Background())
	return r
}

// Snapshot returns the current status and whether one has been observed.
func (r *Reconciler) Snapshot() (ServerStatus, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status, r.hasStatus
}

// State reports the polling machinery.
func (r *Reconciler) State() PollState {
	r.mu.Lock()
	defer r.mu.Unlock()
	state := PollState{
		Polling:             r.pending != nil,
		NextPollAt:          r.nextPollAt,
		ActionInFlight:      r.inFlight.Load(),
		ConsecutiveFailures: r.failures,
		Location:            r.location,
	}
	if r.lastErr != nil {
		state.LastError = r.lastErr.Error()
	}
	return state
}

// FetchStatus issues one status request and returns the parsed snapshot with
// the interval for the next check. It does not change reconciler state.
func (r *Reconciler) FetchStatus(ctx context.Context) (StatusResult, error) {
	r.mu.Lock()
	loc := r.location
	r.mu.Unlock()
	ctx, release := r.bind(ctx)
	defer release()
	return r.fetch(ctx, loc)
}

func (r *Reconciler) fetch(ctx context.Context, location string) (StatusResult, error) {
	res, err := r.client.Status(ctx, location)
	if err != nil {
		return StatusResult{}, err
	}
	status := FromPayload(res.Payload, r.now())
	if !res.HasPayload {
		status.TaskStatus = StatusUnknown
	}
	interval, hinted := r.intervalFor(res)
	return StatusResult{Status: status, Interval: interval, Hinted: hinted, Location: res.Location}, nil
}

func (r *Reconciler) intervalFor(res controlplane.Result) (time.Duration, bool) {
	if !res.HasRetryAfter {
		return r.fallback, false
	}
	d := res.RetryAfter
	if d < r.minInterval {
		d = r.minInterval
	}
	if d > r.maxInterval {
		d = r.maxInterval
	}
	return d, true
}

// Refresh fetches the status now and applies it, arming the next check when
// the result is transient.
func (r *Reconciler) Refresh(ctx context.Context) (ServerStatus, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ServerStatus{}, ErrClosed
	}
	if r.fetchingCurrentLocked() {
		status := r.status
		r.mu.Unlock()
		return status, ErrFetchInFlight
	}
	gen := r.beginFetchLocked()
	loc := r.location
	r.mu.Unlock()

	ctx, release := r.bind(ctx)
	defer release()
	ctx = withCorrelation(ctx, CauseRefresh)
	res, err := r.fetch(ctx, loc)
	return r.applyFetch(ctx, gen, res, err, CauseRefresh)
}

// ScheduleNext arms a one-shot status check after interval when status is
// transient. A terminal status arms nothing. Any previously pending task is
// cancelled either way. The returned handle is nil when nothing was armed.
func (r *Reconciler) ScheduleNext(status ServerStatus, interval time.Duration) Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	return r.scheduleLocked(status.TaskStatus, interval)
}

func (r *Reconciler) scheduleLocked(status TaskStatus, interval time.Duration) Task {
	r.cancelPendingLocked()
	if status.Terminal() {
		return nil
	}
	if interval <= 0 {
		interval = r.fallback
	}
	r.pendingSeq++
	seq := r.pendingSeq
	gen := r.generation
	task := r.scheduler.Schedule(interval, func() { r.poll(seq, gen) })
	r.pending = task
	r.nextPollAt = r.now().Add(interval)
	return task
}

func (r *Reconciler) cancelPendingLocked() {
	if r.pending != nil {
		r.pending.Cancel()
		r.pending = nil
	}
	r.nextPollAt = time.Time{}
}

// Cancel stops polling. Results of fetches already in flight are discarded.
// Calling Cancel repeatedly is safe.
func (r *Reconciler) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generation++
	r.cancelPendingLocked()
	r.location = ""
	r.failures = 0
}

// Close cancels polling, unblocks in-flight requests, and closes subscriber
// channels. The reconciler cannot be reused.
func (r *Reconciler) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.generation++
	r.cancelPendingLocked()
	for id, ch := range r.subscribers {
		close(ch)
		delete(r.subscribers, id)
	}
	r.mu.Unlock()
	r.cancelBase()
}

// Subscribe registers for updates. Sends never block: when the buffer is full
// the update is dropped for that subscriber. The returned func unsubscribes.
func (r *Reconciler) Subscribe(buffer int) (<-chan Update, func()) {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Update, buffer)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		close(ch)
		return ch, func() {}
	}
	id := r.nextSubID
	r.nextSubID++
	r.subscribers[id] = ch
	return ch, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if existing, ok := r.subscribers[id]; ok {
			delete(r.subscribers, id)
			close(existing)
		}
	}
}

func (r *Reconciler) publishLocked(update Update) {
	update.Polling = r.pending != nil
	for _, ch := range r.subscribers {
		select {
		case ch <- update:
		default:
		}
	}
}

// fetchingCurrentLocked reports whether a fetch of the current generation is
// in flight. A fetch from before a Cancel or action will be discarded, so it
// does not count.
func (r *Reconciler) fetchingCurrentLocked() bool {
	return r.fetching && r.fetchGen == r.generation
}

func (r *Reconciler) beginFetchLocked() uint64 {
	r.fetching = true
	r.fetchGen = r.generation
	return r.fetchGen
}

func (r *Reconciler) poll(seq, gen uint64) {
	r.mu.Lock()
	if r.closed || seq != r.pendingSeq || gen != r.generation {
		r.mu.Unlock()
		return
	}
	r.pending = nil
	r.nextPollAt = time.Time{}
	if r.fetchingCurrentLocked() {
		// The fetch in flight reschedules when it lands.
		r.mu.Unlock()
		return
	}
	r.beginFetchLocked()
	loc := r.location
	r.mu.Unlock()

	ctx := withCorrelation(r.baseCtx, CausePoll)
	res, err := r.fetch(ctx, loc)
	_, _ = r.applyFetch(ctx, gen, res, err, CausePoll)
}

func (r *Reconciler) applyFetch(ctx context.Context, gen uint64, res StatusResult, fetchErr error, cause string) (ServerStatus, error) {
	logger := logging.WithContext(ctx, r.logger)

	r.mu.Lock()
	defer r.mu.Unlock()
	if gen == r.fetchGen {
		r.fetching = false
	}
	if r.closed {
		return r.status, ErrClosed
	}
	if gen != r.generation {
		logger.Debug("discarding status result after cancel", logging.String("cause", cause))
		return r.status, ErrCanceled
	}

	prev := r.status
	if fetchErr != nil && ctx.Err() != nil {
		// The caller gave up; the control plane did not fail.
		if r.pending == nil && r.hasStatus && !r.status.Terminal() {
			r.scheduleLocked(r.status.TaskStatus, r.fallback)
		}
		logger.Debug("status fetch abandoned by caller", logging.String("cause", cause), logging.Error(fetchErr))
		return r.status, ctx.Err()
	}
	if fetchErr != nil {
		r.failures++
		perr := &PollError{Err: fetchErr, Consecutive: r.failures, Exhausted: r.failures >= r.maxFailures}
		r.lastErr = perr
		if !r.hasStatus {
			r.status = ServerStatus{TaskStatus: StatusUnknown}
			r.hasStatus = true
		}
		r.status.Error = fetchErr.Error()
		r.status.Stale = true
		if perr.Exhausted {
			r.cancelPendingLocked()
			logging.ErrorWithContext(logger, "status polling stopped after repeated failures", "poll_exhausted",
				logging.Int("consecutive_failures", r.failures),
				logging.Error(fetchErr),
				logging.String(logging.FieldErrorHint, "check control_plane.base_url and network reachability, then refresh"),
			)
		} else {
			r.scheduleLocked(r.status.TaskStatus, r.fallback)
			logging.WarnWithContext(logger, "status poll failed; will retry", "poll_failed",
				logging.Int("consecutive_failures", r.failures),
				logging.Duration("retry_in", r.fallback),
				logging.Error(fetchErr),
				logging.String(logging.FieldErrorHint, "check control plane availability"),
				logging.String(logging.FieldImpact, "displayed status may be stale"),
			)
		}
		r.publishLocked(Update{Previous: prev, Current: r.status, Cause: cause, Err: perr})
		return r.status, perr
	}

	next := res.Status
	if r.hasStatus {
		next = Merge(prev, next)
	}
	r.status = next
	r.hasStatus = true
	r.failures = 0
	r.lastErr = nil
	if next.Terminal() {
		r.location = ""
	}
	r.scheduleLocked(next.TaskStatus, res.Interval)
	r.logTransition(logger, prev, next, cause, res.Interval)
	r.publishLocked(Update{Previous: prev, Current: next, Cause: cause})
	return next, nil
}

func (r *Reconciler) logTransition(logger *slog.Logger, prev, next ServerStatus, cause string, interval time.Duration) {
	attrs := []logging.Attr{
		logging.String(logging.FieldTaskStatus, string(next.TaskStatus)),
		logging.String("cause", cause),
	}
	if next.ServerIP != "" {
		attrs = append(attrs, logging.String("server_ip", next.ServerIP))
	}
	if r.pending != nil {
		attrs = append(attrs, logging.Duration("next_poll", interval))
	}
	if Changed(prev, next) {
		if prev.TaskStatus != "" {
			attrs = append(attrs, logging.String("previous", string(prev.TaskStatus)))
		}
		logger.Info("server status changed", logging.Args(attrs...)...)
		return
	}
	logger.Debug("server status unchanged", logging.Args(attrs...)...)
}

// bind derives a context that is also cancelled when the reconciler closes.
func (r *Reconciler) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(r.baseCtx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func withCorrelation(ctx context.Context, action string) context.Context {
	ctx = services.WithAction(ctx, action)
	if _, ok := services.RequestIDFromContext(ctx); ok {
		return ctx
	}
	return services.WithRequestID(ctx, uuid.NewString())
}

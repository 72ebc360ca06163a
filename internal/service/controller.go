package service

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Oussamaghaouti/irrig/internal/logger"
	"github.com/Oussamaghaouti/irrig/internal/metrics"
	"github.com/Oussamaghaouti/irrig/internal/models"
	"github.com/Oussamaghaouti/irrig/internal/repository"
	"github.com/Oussamaghaouti/irrig/internal/thingspeak"
)

var (
	ErrSyncInFlight = errors.New("another sync is already in flight")
	ErrNotManual    = errors.New("pump can only be toggled in manual mode")
	ErrInvalidMode  = errors.New(`invalid mode: must be "0" (auto) or "1" (manual)`)
)

// Event types recorded in the audit log.
const (
	EventModeChange = "MODE_CHANGE"
	EventPumpToggle = "PUMP_TOGGLE"
	EventSyncFailed = "SYNC_FAILED"
)

// SyncParams tunes the write-verify-retry executor and the poll loop.
type SyncParams struct {
	Retries         int           // attempts per write cycle
	ModeRetries     int           // elevated budget for mode changes and pump toggles
	Delay           time.Duration // pause between attempts
	VerifyAttempts  int           // re-reads per attempt
	VerifyDelay     time.Duration // pause before each verification re-read
	ConfirmInterval time.Duration // secondary confirmation poll while a mode change is pending
}

// DefaultSyncParams returns the tuning observed to work against the channel's
// 3-15 s propagation delay.
func DefaultSyncParams() SyncParams {
	return SyncParams{
		Retries:         5,
		ModeRetries:     20,
		Delay:           2 * time.Second,
		VerifyAttempts:  3,
		VerifyDelay:     2 * time.Second,
		ConfirmInterval: 5 * time.Second,
	}
}

func (p SyncParams) withDefaults() SyncParams {
	d := DefaultSyncParams()
	if p.Retries <= 0 {
		p.Retries = d.Retries
	}
	if p.ModeRetries <= 0 {
		p.ModeRetries = d.ModeRetries
	}
	if p.Delay <= 0 {
		p.Delay = d.Delay
	}
	if p.VerifyAttempts <= 0 {
		p.VerifyAttempts = d.VerifyAttempts
	}
	if p.VerifyDelay <= 0 {
		p.VerifyDelay = d.VerifyDelay
	}
	if p.ConfirmInterval <= 0 {
		p.ConfirmInterval = d.ConfirmInterval
	}
	return p
}

// Assignment is one field update. Order matters: verification compares only
// the first assignment of an update against the re-read snapshot.
type Assignment struct {
	Key   string
	Value string
}

// PumpSyncController keeps the latest channel snapshot, runs write cycles
// against the eventually-consistent channel, and tracks a pending mode change
// until a read confirms it. The channel is the single source of truth; the
// snapshot is a read-through cache of exactly one record, and the only
// optimistic local state is the displayed mode during a pending change.
type PumpSyncController struct {
	channel Channel
	events  repository.EventRepo
	metrics *metrics.Metrics
	log     *logger.Logger
	params  SyncParams

	mu            sync.Mutex
	snapshot      models.ChannelSnapshot
	phase         models.Phase
	loading       bool
	pendingMode   bool
	expectedMode  string
	displayedMode string
	lastErr       string
	lastSyncAt    time.Time
	lifecycle     context.Context
	confirmStop   chan struct{}
}

func NewPumpSyncController(channel Channel, events repository.EventRepo, m *metrics.Metrics, log *logger.Logger, params SyncParams) *PumpSyncController {
	return &PumpSyncController{
		channel:   channel,
		events:    events,
		metrics:   m,
		log:       log,
		params:    params.withDefaults(),
		phase:     models.PhaseIdle,
		lifecycle: context.Background(),
	}
}

// Run polls the channel every tick until ctx is canceled. It also binds ctx as
// the lifecycle of asynchronous write cycles: cancelling it tears the whole
// controller down, including retries in flight.
func (c *PumpSyncController) Run(ctx context.Context, tick time.Duration) {
	c.mu.Lock()
	c.lifecycle = ctx
	c.mu.Unlock()

	// prime the snapshot before the first tick
	if err := c.refresh(ctx); err != nil {
		c.log.Warnw("initial channel read failed", "err", err)
	}

	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := c.refresh(ctx); err != nil {
				c.log.Warnw("channel poll failed", "err", err)
			}
		}
	}
}

// Status returns the UI-facing view of the controller.
func (c *PumpSyncController) Status() models.ControllerStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return models.ControllerStatus{
		Snapshot:      c.snapshot,
		Phase:         c.phase,
		Loading:       c.loading,
		PendingMode:   c.pendingMode,
		ExpectedMode:  c.expectedMode,
		DisplayedMode: c.displayedMode,
		LastError:     c.lastErr,
		LastSyncAt:    c.lastSyncAt,
	}
}

// Refresh is the on-demand snapshot read. Rejected while a read or write is
// already in flight; the periodic poller bypasses this guard.
func (c *PumpSyncController) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if c.loading || c.phase != models.PhaseIdle {
		c.mu.Unlock()
		return ErrSyncInFlight
	}
	c.mu.Unlock()
	return c.refresh(ctx)
}

// refresh fetches the latest feed and replaces the snapshot. It runs
// regardless of a write cycle in progress: the executor re-reads before every
// write, so an interleaved poll cannot clobber anything.
func (c *PumpSyncController) refresh(ctx context.Context) error {
	c.mu.Lock()
	if c.loading {
		c.mu.Unlock()
		return nil
	}
	c.loading = true
	if c.phase == models.PhaseIdle {
		c.phase = models.PhaseReading
	}
	c.mu.Unlock()

	feed, err := c.channel.ReadLast(ctx)

	c.mu.Lock()
	c.loading = false
	if c.phase == models.PhaseReading {
		c.phase = models.PhaseIdle
	}
	if err != nil {
		c.mu.Unlock()
		c.metrics.Polls.WithLabelValues(metrics.OutcomeError).Inc()
		return err
	}
	c.applySnapshotLocked(models.SnapshotFromFeed(feed))
	c.mu.Unlock()
	c.metrics.Polls.WithLabelValues(metrics.OutcomeOK).Inc()
	return nil
}

// applySnapshotLocked replaces the snapshot wholesale and settles a pending
// mode change if this read reflects the expected mode, no matter which caller
// produced the read.
func (c *PumpSyncController) applySnapshotLocked(s models.ChannelSnapshot) {
	c.snapshot = s
	c.lastSyncAt = time.Now().UTC()
	if c.pendingMode && s.Mode == c.expectedMode {
		c.pendingMode = false
		c.expectedMode = ""
		c.stopConfirmLocked()
	}
	if !c.pendingMode {
		c.displayedMode = s.Mode
	}
}

// SetMode requests a switch between auto ("0") and manual ("1"). A request
// matching the current snapshot mode is a no-op and issues no write. Otherwise
// the displayed mode switches optimistically, the change is marked pending and
// the write cycle runs in the background with the elevated retry budget.
func (c *PumpSyncController) SetMode(mode string) error {
	if mode != models.ModeAuto && mode != models.ModeManual {
		return ErrInvalidMode
	}

	c.mu.Lock()
	if c.phase == models.PhaseWriting || c.phase == models.PhaseVerifying {
		c.mu.Unlock()
		return ErrSyncInFlight
	}
	if c.snapshot.Mode == mode {
		c.mu.Unlock()
		return nil
	}
	c.phase = models.PhaseWriting
	c.pendingMode = true
	c.expectedMode = mode
	c.displayedMode = mode
	ctx := c.lifecycle
	c.startConfirmLocked(ctx)
	c.mu.Unlock()

	go c.runModeChange(ctx, mode)
	return nil
}

func (c *PumpSyncController) runModeChange(ctx context.Context, mode string) {
	err := c.runUpdate(ctx, []Assignment{{thingspeak.FieldMode, mode}}, c.params.ModeRetries)

	c.mu.Lock()
	c.phase = models.PhaseIdle
	if err != nil {
		// roll the tab back to the inverse of what we asked for
		c.displayedMode = invertMode(mode)
		c.lastErr = ErrRetriesExhausted.Error()
	} else {
		c.lastErr = ""
	}
	// pending is cleared regardless of outcome
	c.pendingMode = false
	c.expectedMode = ""
	c.stopConfirmLocked()
	c.mu.Unlock()

	if err != nil {
		c.log.Errorw("mode change failed", "mode", mode, "err", err)
		c.appendEvent(EventSyncFailed, "Mode change did not land", map[string]any{"mode": mode})
		return
	}
	c.log.Infow("mode change confirmed", "mode", mode)
	c.appendEvent(EventModeChange, "Mode changed to "+modeName(mode), map[string]any{"mode": mode})
}

// TogglePump inverts the pump relay. Only reachable in manual mode. There is
// no optimistic overlay for the pump field: the UI keeps deriving it from the
// confirmed snapshot, so a failed cycle needs no rollback.
func (c *PumpSyncController) TogglePump() error {
	c.mu.Lock()
	if c.phase == models.PhaseWriting || c.phase == models.PhaseVerifying {
		c.mu.Unlock()
		return ErrSyncInFlight
	}
	if c.snapshot.Mode != models.ModeManual {
		c.mu.Unlock()
		return ErrNotManual
	}
	next := models.PumpOn
	if c.snapshot.Pump == models.PumpOn {
		next = models.PumpOff
	}
	c.phase = models.PhaseWriting
	ctx := c.lifecycle
	c.mu.Unlock()

	go c.runPumpToggle(ctx, next)
	return nil
}

func (c *PumpSyncController) runPumpToggle(ctx context.Context, next string) {
	err := c.runUpdate(ctx, []Assignment{{thingspeak.FieldPump, next}}, c.params.ModeRetries)

	c.mu.Lock()
	c.phase = models.PhaseIdle
	if err != nil {
		c.lastErr = ErrRetriesExhausted.Error()
	} else {
		c.lastErr = ""
	}
	c.mu.Unlock()

	if err != nil {
		c.log.Errorw("pump toggle failed", "pump", next, "err", err)
		c.appendEvent(EventSyncFailed, "Pump toggle did not land", map[string]any{"pump": next})
		return
	}
	c.log.Infow("pump toggle confirmed", "pump", next)
	c.appendEvent(EventPumpToggle, "Pump switched "+pumpName(next), map[string]any{"pump": next})
}

// runUpdate is the write-verify-retry executor: the whole
// read-merge-write-verify cycle repeats on any failure, with a constant pause,
// until the budget runs out.
func (c *PumpSyncController) runUpdate(ctx context.Context, updates []Assignment, retries int) error {
	start := time.Now()
	defer c.metrics.ObserveSync(start)
	return attempt(ctx, func(ctx context.Context) error {
		return c.writeAndVerify(ctx, updates)
	}, retries, c.params.Delay)
}

func (c *PumpSyncController) writeAndVerify(ctx context.Context, updates []Assignment) error {
	c.setWritePhase(models.PhaseWriting)

	// Re-read first: the update endpoint takes a full parameter set, and a
	// write built on a stale snapshot would clobber fields the hardware side
	// changed in the meantime.
	feed, err := c.channel.ReadLast(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.applySnapshotLocked(models.SnapshotFromFeed(feed))
	c.mu.Unlock()

	params := feedParams(feed)
	for _, a := range updates {
		params.Set(a.Key, a.Value)
	}
	params.Set("created_at", time.Now().UTC().Format(time.RFC3339))

	if _, err := c.channel.Update(ctx, params); err != nil {
		if errors.Is(err, thingspeak.ErrWriteRejected) {
			c.metrics.WriteAttempts.WithLabelValues(metrics.OutcomeRejected).Inc()
		} else {
			c.metrics.WriteAttempts.WithLabelValues(metrics.OutcomeError).Inc()
		}
		return err
	}
	c.metrics.WriteAttempts.WithLabelValues(metrics.OutcomeAccepted).Inc()

	c.setWritePhase(models.PhaseVerifying)

	// Only the first assignment is checked; the update endpoint writes the
	// entry atomically, so one confirmed field proves the whole write landed.
	want := updates[0]
	for i := 0; i < c.params.VerifyAttempts; i++ {
		if err := sleepCtx(ctx, c.params.VerifyDelay); err != nil {
			return err
		}
		got, err := c.channel.ReadLast(ctx)
		if err != nil {
			continue // a failed re-read just burns one verification attempt
		}
		c.mu.Lock()
		c.applySnapshotLocked(models.SnapshotFromFeed(got))
		c.mu.Unlock()
		if got.Field(want.Key) == want.Value {
			c.metrics.Verifications.WithLabelValues(metrics.OutcomeConfirmed).Inc()
			return nil
		}
	}
	c.metrics.Verifications.WithLabelValues(metrics.OutcomeTimeout).Inc()
	return ErrVerifyTimeout
}

// setWritePhase flips between writing and verifying during a cycle.
func (c *PumpSyncController) setWritePhase(p models.Phase) {
	c.mu.Lock()
	c.phase = p
	c.mu.Unlock()
}

// startConfirmLocked begins the secondary confirmation loop that keeps
// re-reading the channel while a mode change is pending; applySnapshotLocked
// stops it once a read reflects the expected mode.
func (c *PumpSyncController) startConfirmLocked(ctx context.Context) {
	c.stopConfirmLocked()
	stop := make(chan struct{})
	c.confirmStop = stop
	interval := c.params.ConfirmInterval

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				_ = c.refresh(ctx)
			}
		}
	}()
}

func (c *PumpSyncController) stopConfirmLocked() {
	if c.confirmStop != nil {
		close(c.confirmStop)
		c.confirmStop = nil
	}
}

func (c *PumpSyncController) appendEvent(typ, desc string, meta any) {
	if c.events == nil {
		return
	}
	e := models.PumpEvent{
		EventID:     uuid.NewString(),
		OccurredAt:  time.Now().UTC(),
		Type:        typ,
		Description: desc,
		Metadata:    meta,
	}
	// Background: the audit record should land even during teardown.
	if err := c.events.Append(context.Background(), e); err != nil {
		c.log.Warnw("event append failed", "type", typ, "err", err)
	}
}

// feedParams copies the non-empty channel fields of a feed into update params.
func feedParams(f thingspeak.Feed) url.Values {
	v := url.Values{}
	for _, name := range thingspeak.FieldNames {
		if s := f.Field(name); s != "" {
			v.Set(name, s)
		}
	}
	return v
}

func invertMode(mode string) string {
	if mode == models.ModeAuto {
		return models.ModeManual
	}
	return models.ModeAuto
}

func modeName(mode string) string {
	if mode == models.ModeManual {
		return "manual"
	}
	return "auto"
}

func pumpName(pump string) string {
	if pump == models.PumpOn {
		return "on"
	}
	return "off"
}

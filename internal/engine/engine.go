// internal/engine/engine.go
package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/exp/slog"

	"github.com/tamzrod/flapbus/internal/bus"
	"github.com/tamzrod/flapbus/internal/clock"
	"github.com/tamzrod/flapbus/internal/letters"
	"github.com/tamzrod/flapbus/internal/metrics"
	"github.com/tamzrod/flapbus/internal/poller"
	"github.com/tamzrod/flapbus/internal/snapshot"
	"github.com/tamzrod/flapbus/internal/status"
	"github.com/tamzrod/flapbus/internal/store"
	"github.com/tamzrod/flapbus/internal/writer"
)

// UnitBus is the bus contract the engine drives.
type UnitBus interface {
	poller.Client
	writer.UnitClient
}

// FaultHandler detects and clears a wedged bus.
type FaultHandler interface {
	CheckAndRecover(ctx context.Context) error
	Faults() bus.Faults
}

// Settings are read at the moment they are needed, never cached.
type Settings interface {
	NumUnits() int
	Alignment() letters.Alignment
}

// Config wires an Engine. Recovery, Status and Metrics are optional.
type Config struct {
	Store      *store.Store
	Cache      *snapshot.Cache
	Bus        UnitBus
	Protocol   bus.Protocol
	Recovery   FaultHandler
	Settings   Settings
	Clock      clock.Source
	StaleAfter uint32 // silence after which a unit counts as stale; 0 disables
	Status     writer.StatusWriter
	Metrics    *metrics.Metrics
	Log        *slog.Logger
}

// Engine keeps the Observed and Pending buffers in step with the hardware.
//
// Two locks: busMu serializes every bus transaction (the bus is half-duplex),
// mu covers buffer mutation plus the cache refresh that follows it, so a
// reader of Serialized never sees one without the other. Stage, Calibrate,
// SetOffset and Serialized never take busMu and never touch the bus.
type Engine struct {
	busMu sync.Mutex
	mu    sync.Mutex

	store    *store.Store
	cache    *snapshot.Cache
	poller   *poller.Poller
	writer   *writer.Writer
	recovery FaultHandler
	settings Settings
	clk      clock.Source
	stale    uint32
	status   writer.StatusWriter
	metrics  *metrics.Metrics
	log      *slog.Logger

	phase   Phase
	staged  map[int]bool // slots staged since the last commit
	lastErr uint16
}

// New validates collaborators and publishes the initial document.
func New(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, errors.New("engine: store required")
	}
	if cfg.Cache == nil {
		return nil, errors.New("engine: cache required")
	}
	if cfg.Settings == nil {
		return nil, errors.New("engine: settings required")
	}
	if cfg.Clock == nil {
		return nil, errors.New("engine: clock required")
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}

	p, err := poller.New(cfg.Bus, cfg.Clock, cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	w, err := writer.New(cfg.Bus, cfg.Protocol, cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	e := &Engine{
		store:    cfg.Store,
		cache:    cfg.Cache,
		poller:   p,
		writer:   w,
		recovery: cfg.Recovery,
		settings: cfg.Settings,
		clk:      cfg.Clock,
		stale:    cfg.StaleAfter,
		staged:   make(map[int]bool),
		status:   cfg.Status,
		metrics:  cfg.Metrics,
		log:      cfg.Log,
	}

	e.mu.Lock()
	e.refreshLocked()
	e.mu.Unlock()

	e.writeStatus(status.Snapshot{Health: status.HealthUnknown})
	return e, nil
}

// ------------------------------------------------------------
// Bus-side operations (driver context only)
// ------------------------------------------------------------

// Poll requests every configured unit and folds the answers into Observed.
// A failed unit keeps its previous entry untouched. After a full cycle
// every unstaged Pending slot is reset to Observed; staged slots wait for
// their commit.
func (e *Engine) Poll(ctx context.Context) poller.PollResult {
	e.busMu.Lock()
	defer e.busMu.Unlock()

	e.mu.Lock()
	prevPhase := e.phase
	e.phase = PhasePolling
	e.mu.Unlock()

	count := e.numUnits()
	res := e.poller.PollOnce(ctx, count)

	responding, shortReads, rotating := 0, 0, 0

	e.mu.Lock()
	for _, r := range res.Units {
		switch {
		case errors.Is(r.Err, bus.ErrShortRead):
			shortReads++
		case r.Err == nil && r.Response.Signal != bus.SignalUnreachable:
			responding++
			if r.Response.Signal == bus.SignalRotating {
				rotating++
			}
		}

		prev, ok := e.store.ObservedAt(r.Address)
		if !ok {
			continue
		}
		next, changed := poller.Merge(prev, r)
		if !changed {
			continue
		}
		if err := e.store.UpdateObserved(next); err != nil {
			e.log.Error("observed update failed", "unit", r.Address, "err", err)
		}
	}

	if res.Err == nil {
		e.store.CopyObservedIntoPendingExcept(e.staged)
		e.writer.Forget()
		e.phase = PhaseReady
	} else {
		e.phase = prevPhase
	}

	switch {
	case shortReads > 0:
		e.lastErr = status.ErrorShortRead
	case responding == count && res.Err == nil:
		e.lastErr = status.ErrorNone
	}
	lastErr := e.lastErr

	observed := e.store.Observed()[:count]
	e.refreshLocked()
	e.mu.Unlock()

	stale := 0
	if e.stale > 0 {
		now := e.clk.Millis()
		for _, u := range observed {
			if u.Stale(now, e.stale) {
				stale++
			}
		}
	}

	if m := e.metrics; m != nil {
		m.Polls.Inc()
		m.ShortReads.Add(float64(shortReads))
		m.UnitsConfigured.Set(float64(count))
		m.UnitsResponding.Set(float64(responding))
		m.UnitsRotating.Set(float64(rotating))
		m.UnitsStale.Set(float64(stale))
		for _, u := range observed {
			m.UnitOffset.WithLabelValues(strconv.Itoa(u.Address)).Set(float64(u.Offset))
		}
	}

	e.writeStatus(status.Snapshot{
		Health:          status.HealthFor(count, responding),
		LastErrorCode:   lastErr,
		BusFaults:       status.Saturate(e.BusFaults().Count),
		UnitsConfigured: status.Saturate(count),
		UnitsResponding: status.Saturate(responding),
		ShortReads:      status.Saturate(shortReads),
	})

	e.log.Debug("poll complete", "units", count, "responding", responding, "short_reads", shortReads, "stale", stale)
	return res
}

// Commit pushes Pending to the configured units. The count is read now,
// not when the values were staged. Failed units are not retried here.
func (e *Engine) Commit(ctx context.Context, force bool) writer.CommitResult {
	e.busMu.Lock()
	defer e.busMu.Unlock()

	e.mu.Lock()
	pending := e.store.Pending()
	observed := e.store.Observed()
	clear(e.staged)
	e.mu.Unlock()

	res := e.writer.Commit(ctx, pending, observed, e.numUnits(), force)

	e.mu.Lock()
	if len(res.Failed) > 0 {
		e.lastErr = status.ErrorCommitFailed
	}
	e.refreshLocked()
	e.mu.Unlock()

	if m := e.metrics; m != nil {
		m.CommitsSent.Add(float64(res.Sent))
		m.CommitsSkipped.Add(float64(res.Skipped))
		m.CommitsFailed.Add(float64(len(res.Failed)))
	}
	if err := res.Err(); err != nil {
		e.log.Warn("commit incomplete", "sent", res.Sent, "failed", len(res.Failed), "err", err)
	}
	return res
}

// RenderText aligns message to the configured units and shows it.
// Characters without a flap leave their unit as it was.
func (e *Engine) RenderText(ctx context.Context, message string, rpm int) writer.ShowResult {
	aligned := letters.Align(e.settings.Alignment(), message, e.numUnits())

	e.busMu.Lock()
	res := e.writer.Show(ctx, aligned, rpm)
	e.busMu.Unlock()

	if m := e.metrics; m != nil {
		m.LettersShown.Add(float64(res.Sent))
		m.LettersUnmapped.Add(float64(len(res.Unmapped)))
	}
	return res
}

// CheckBus looks for a stuck data line and recovers it.
// It returns a wrapped bus.ErrBusFault when a fault was handled.
func (e *Engine) CheckBus(ctx context.Context) error {
	if e.recovery == nil {
		return nil
	}

	e.busMu.Lock()
	err := e.recovery.CheckAndRecover(ctx)
	e.busMu.Unlock()

	if !errors.Is(err, bus.ErrBusFault) {
		return err
	}

	e.mu.Lock()
	e.lastErr = status.ErrorBusFault
	e.refreshLocked()
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.BusFaults.Inc()
	}
	return err
}

// ------------------------------------------------------------
// Request-side operations (never touch the bus)
// ------------------------------------------------------------

// Stage replaces Pending. desired must cover every slot (see Pending for a
// starting copy); a partial slice is rejected. The values reach the hardware
// on the next Commit.
func (e *Engine) Stage(desired []store.UnitState) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stageLocked(desired)
}

// Calibrate sets a unit's zero-position letter and the offset suggested
// for it.
func (e *Engine) Calibrate(address, letterIndex int) error {
	if !letters.Valid(letterIndex) {
		return fmt.Errorf("engine: letter index %d out of range", letterIndex)
	}
	return e.editPending(address, func(u *store.UnitState) {
		u.ZeroPositionLetterIndex = letterIndex
		u.Offset = letters.SuggestedOffset(letterIndex)
	})
}

// SetOffset sets a unit's offset directly.
func (e *Engine) SetOffset(address, offset int) error {
	if offset < 0 || offset > 0xFFFF {
		return fmt.Errorf("engine: offset %d out of range", offset)
	}
	return e.editPending(address, func(u *store.UnitState) {
		u.Offset = offset
	})
}

// ApplyZeroLetters compares wanted calibration letters (address -> flap index)
// with what the units reported in res. A unit whose reported letter differs
// is recalibrated through Calibrate; a matching unit keeps its offset. Every
// unit that answered is removed from want, so units that stayed silent are
// checked again after a later poll. Units on the 3-byte protocol cannot report
// their letter and are left alone.
func (e *Engine) ApplyZeroLetters(res poller.PollResult, want map[int]int) int {
	staged := 0
	for _, r := range res.Units {
		letter, ok := want[r.Address]
		if !ok || r.Err != nil || r.Response.Signal == bus.SignalUnreachable {
			continue
		}
		delete(want, r.Address)

		if r.Response.ZeroLetterIndex < 0 || r.Response.ZeroLetterIndex == letter {
			continue
		}
		if err := e.Calibrate(r.Address, letter); err != nil {
			e.log.Warn("zero letter not applied", "unit", r.Address, "err", err)
			continue
		}
		e.log.Info("zero letter staged", "unit", r.Address, "reported", r.Response.ZeroLetterIndex, "want", letter)
		staged++
	}
	return staged
}

// Offsets lists the Pending offsets of the configured units as "[a,b,c]".
func (e *Engine) Offsets() string {
	pending := e.store.Pending()[:e.numUnits()]

	var b strings.Builder
	b.WriteByte('[')
	for i, u := range pending {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(u.Offset))
	}
	b.WriteByte(']')
	return b.String()
}

// Pending returns a copy of the whole Pending buffer, capacity included.
func (e *Engine) Pending() []store.UnitState {
	return e.store.Pending()
}

// Serialized returns the latest published document.
func (e *Engine) Serialized() string {
	return e.cache.Serialized()
}

// BusFaults returns the recovery counters.
func (e *Engine) BusFaults() bus.Faults {
	if e.recovery == nil {
		return bus.Faults{}
	}
	return e.recovery.Faults()
}

// Phase reports where the engine is in its polling cycle.
func (e *Engine) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// Dirty reports whether a staged value is waiting for a commit.
func (e *Engine) Dirty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.staged) > 0
}

// ------------------------------------------------------------
// internals
// ------------------------------------------------------------

func (e *Engine) editPending(address int, edit func(u *store.UnitState)) error {
	if address < 0 || address >= e.store.Cap() {
		return fmt.Errorf("engine: address %d out of range [0,%d)", address, e.store.Cap())
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	pending := e.store.Pending()
	edit(&pending[address])
	return e.stageLocked(pending)
}

func (e *Engine) stageLocked(desired []store.UnitState) error {
	before := e.store.Pending()
	if err := e.store.SetPending(desired); err != nil {
		return fmt.Errorf("engine: stage: %w", err)
	}
	for i, u := range e.store.Pending() {
		if u != before[i] {
			e.staged[i] = true
		}
	}
	e.refreshLocked()
	return nil
}

// numUnits is the configured count, clamped to capacity.
func (e *Engine) numUnits() int {
	return min(max(e.settings.NumUnits(), 0), e.store.Cap())
}

// refreshLocked republishes the document. Caller holds mu.
func (e *Engine) refreshLocked() {
	f := e.BusFaults()
	err := e.cache.Refresh(snapshot.Input{
		Units:     e.store.Pending()[:e.numUnits()],
		NowMillis: e.clk.Millis(),
		Bus:       snapshot.Bus{Faults: f.Count, LastFaultAtMillis: f.LastAtMillis},
	})
	if err != nil {
		e.log.Error("snapshot refresh failed", "err", err)
	}
}

func (e *Engine) writeStatus(s status.Snapshot) {
	if e.status == nil {
		return
	}
	if err := e.status.WriteStatus(s); err != nil {
		e.log.Warn("status write failed", "err", err)
	}
}

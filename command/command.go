// Package command drives an engine from a channel of control messages.
// Commands are applied between steps only, so every step runs under one
// consistent configuration.
package command

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/pthm-cable/flock/engine"
	"github.com/pthm-cable/flock/systems"
	"github.com/pthm-cable/flock/telemetry"
	"github.com/pthm-cable/flock/wire"
)

// Kind tags the command variants.
type Kind uint8

const (
	Start Kind = iota
	Pause
	Reset
	UpdateParams
	AddResource
)

// String returns the message spelling of the kind.
func (k Kind) String() string {
	switch k {
	case Start:
		return "start"
	case Pause:
		return "pause"
	case Reset:
		return "reset"
	case UpdateParams:
		return "update_params"
	case AddResource:
		return "add_resource"
	}
	return "unknown"
}

// Command is one control message. Params is set for UpdateParams only and
// Resource for AddResource only.
type Command struct {
	Kind     Kind
	Params   *engine.Params
	Resource *systems.ResourceConfig
}

// Runner steps an engine in its own goroutine under channel control. It
// starts paused; a Start command begins stepping.
type Runner struct {
	eng  *engine.Engine
	dt   float32
	seed uint64
	cmds chan Command
	log  *slog.Logger

	// OnStep, when set, observes every step report. Called from the run
	// goroutine.
	OnStep func(engine.StepReport)

	// PublishEvery sets the frame publication cadence in steps. Zero
	// disables publication.
	PublishEvery int

	frameMu sync.Mutex
	frame   []byte
}

// NewRunner wraps an initialized engine. dt is the step size of every
// step; seed is only reported in the reset log line, since Reset replays
// the engine's own last Initialize settings.
func NewRunner(eng *engine.Engine, dt float32, seed uint64, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Runner{
		eng:  eng,
		dt:   dt,
		seed: seed,
		cmds: make(chan Command, 16),
		log:  log,
	}
}

// Send enqueues a command. It blocks if the queue is full.
func (r *Runner) Send(cmd Command) {
	r.cmds <- cmd
}

// Run processes commands and steps the engine until the context ends.
// While paused it blocks on the command channel; while running it steps
// continuously, draining any queued commands at each step boundary.
func (r *Runner) Run(ctx context.Context) {
	running := false

	for {
		if !running {
			select {
			case <-ctx.Done():
				return
			case cmd := <-r.cmds:
				running = r.apply(cmd, running)
			}
			continue
		}

		select {
		case <-ctx.Done():
			return
		case cmd := <-r.cmds:
			running = r.apply(cmd, running)
		default:
			report := r.eng.Step(r.dt)
			if r.OnStep != nil {
				r.OnStep(report)
			}
			r.publish(report.Step)
		}
	}
}

// publish encodes the current snapshot into a frame and swaps it into the
// latest-wins buffer. Slow consumers only ever miss frames, never stall
// the step loop.
func (r *Runner) publish(step int32) {
	if r.PublishEvery <= 0 || step%int32(r.PublishEvery) != 0 {
		return
	}
	snap := r.eng.Snapshot()
	frame := wire.Encode(snap, telemetry.Compute(snap).WireStats())
	r.frameMu.Lock()
	r.frame = frame
	r.frameMu.Unlock()
}

// Latest returns the most recently published frame, or nil before the
// first publication. The buffer is replaced, never mutated, on publish.
func (r *Runner) Latest() []byte {
	r.frameMu.Lock()
	defer r.frameMu.Unlock()
	return r.frame
}

// apply executes one command and returns the new running state.
func (r *Runner) apply(cmd Command, running bool) bool {
	switch cmd.Kind {
	case Start:
		return true
	case Pause:
		return false
	case Reset:
		r.eng.Reset()
		r.log.Info("reset", slog.Uint64("seed", r.seed))
	case UpdateParams:
		if cmd.Params == nil {
			r.log.Warn("update_params command without params")
			break
		}
		if err := r.eng.UpdateParams(*cmd.Params); err != nil {
			r.log.Error("param update rejected", slog.Any("error", err))
		}
	case AddResource:
		if cmd.Resource == nil {
			r.log.Warn("add_resource command without resource")
			break
		}
		id, err := r.eng.AddResource(*cmd.Resource)
		if err != nil {
			r.log.Error("resource rejected", slog.Any("error", err))
			break
		}
		r.log.Info("resource added", slog.Int("id", id))
	}
	return running
}

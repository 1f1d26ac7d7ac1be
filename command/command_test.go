package command

import (
	"context"
	"testing"
	"time"

	"github.com/pthm-cable/flock/components"
	"github.com/pthm-cable/flock/engine"
	"github.com/pthm-cable/flock/systems"
	"github.com/pthm-cable/flock/wire"
)

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	eng, err := engine.New(
		engine.DefaultParams(),
		[]components.AgentType{components.Follower, components.Follower},
		engine.Capacities{MaxGroups: 4, MaxResources: 2, MaxObstacles: 2},
		nil,
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(eng.Close)
	eng.Initialize(0, 9)
	return eng
}

// waitSteps blocks until the runner has stepped past target or the
// deadline expires.
func waitSteps(t *testing.T, eng *engine.Engine, target int32) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for eng.StepCount() < target {
		if time.Now().After(deadline) {
			t.Fatalf("runner stalled at step %d waiting for %d", eng.StepCount(), target)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestKind_String(t *testing.T) {
	cases := []struct {
		kind Kind
		want string
	}{
		{Start, "start"},
		{Pause, "pause"},
		{Reset, "reset"},
		{UpdateParams, "update_params"},
		{AddResource, "add_resource"},
		{Kind(99), "unknown"},
	}
	for _, tc := range cases {
		if got := tc.kind.String(); got != tc.want {
			t.Errorf("kind %d: expected %q, got %q", tc.kind, tc.want, got)
		}
	}
}

func TestRunner_StartsPaused(t *testing.T) {
	eng := newTestEngine(t)
	r := NewRunner(eng, 0.02, 9, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	if got := eng.StepCount(); got != 0 {
		t.Errorf("paused runner must not step, got %d", got)
	}

	cancel()
	<-done
}

func TestRunner_StartPauseCycle(t *testing.T) {
	eng := newTestEngine(t)
	r := NewRunner(eng, 0.02, 9, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	r.Send(Command{Kind: Start})
	waitSteps(t, eng, 5)

	r.Send(Command{Kind: Pause})
	time.Sleep(20 * time.Millisecond)
	paused := eng.StepCount()
	time.Sleep(20 * time.Millisecond)
	if got := eng.StepCount(); got != paused {
		t.Errorf("stepping continued after pause: %d then %d", paused, got)
	}

	r.Send(Command{Kind: Start})
	waitSteps(t, eng, paused+5)

	cancel()
	<-done
}

func TestRunner_ResetWhilePaused(t *testing.T) {
	eng := newTestEngine(t)
	r := NewRunner(eng, 0.02, 9, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	r.Send(Command{Kind: Start})
	waitSteps(t, eng, 5)
	r.Send(Command{Kind: Pause})
	r.Send(Command{Kind: Reset})

	deadline := time.Now().Add(5 * time.Second)
	for eng.StepCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("reset did not rewind, step %d", eng.StepCount())
		}
		time.Sleep(time.Millisecond)
	}

	time.Sleep(20 * time.Millisecond)
	if got := eng.StepCount(); got != 0 {
		t.Errorf("reset must not resume stepping, got %d", got)
	}

	cancel()
	<-done
}

func TestRunner_UpdateParamsApplied(t *testing.T) {
	eng := newTestEngine(t)
	r := NewRunner(eng, 0.02, 9, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	p := eng.Params()
	p.Beta = 3.75
	r.Send(Command{Kind: UpdateParams, Params: &p})
	r.Send(Command{Kind: Start})
	waitSteps(t, eng, 2)

	if got := eng.Params().Beta; got != 3.75 {
		t.Errorf("expected beta 3.75 after update, got %g", got)
	}

	// A nil params payload is logged and ignored.
	r.Send(Command{Kind: UpdateParams})
	waitSteps(t, eng, eng.StepCount()+2)

	cancel()
	<-done
}

func TestRunner_AddResourcePlacesResource(t *testing.T) {
	eng := newTestEngine(t)
	r := NewRunner(eng, 0.02, 9, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	r.Send(Command{Kind: AddResource, Resource: &systems.ResourceConfig{
		Position: components.Vec3{X: 3},
		Amount:   50,
		Radius:   2,
	}})
	r.Send(Command{Kind: Start})
	waitSteps(t, eng, 2)

	snap := eng.Snapshot()
	if len(snap.Resources) != 1 {
		t.Fatalf("expected 1 resource, got %d", len(snap.Resources))
	}
	if snap.Resources[0].Pos.X != 3 {
		t.Errorf("resource position mangled: %+v", snap.Resources[0])
	}

	// A nil resource payload is logged and ignored.
	r.Send(Command{Kind: AddResource})
	waitSteps(t, eng, eng.StepCount()+2)

	cancel()
	<-done
}

func TestRunner_PublishesLatestFrame(t *testing.T) {
	eng := newTestEngine(t)
	r := NewRunner(eng, 0.02, 9, nil)
	r.PublishEvery = 1

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	if r.Latest() != nil {
		t.Error("no frame may be published before the first step")
	}

	r.Send(Command{Kind: Start})
	waitSteps(t, eng, 3)

	buf := r.Latest()
	if buf == nil {
		t.Fatal("expected a published frame")
	}
	f, err := wire.Decode(buf)
	if err != nil {
		t.Fatalf("published frame must decode: %v", err)
	}
	if f.N != 2 {
		t.Errorf("expected 2 agents in the frame, got %d", f.N)
	}
	if f.Step < 1 {
		t.Errorf("expected a positive step, got %d", f.Step)
	}

	cancel()
	<-done
}

func TestRunner_OnStepObservesReports(t *testing.T) {
	eng := newTestEngine(t)
	r := NewRunner(eng, 0.02, 9, nil)

	reports := make(chan engine.StepReport, 64)
	r.OnStep = func(rep engine.StepReport) {
		select {
		case reports <- rep:
		default:
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	r.Send(Command{Kind: Start})

	select {
	case rep := <-reports:
		if rep.Step < 1 {
			t.Errorf("expected a positive step in the report, got %d", rep.Step)
		}
		if rep.Alive != 2 {
			t.Errorf("expected 2 alive, got %d", rep.Alive)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no step report observed")
	}

	cancel()
	<-done
}

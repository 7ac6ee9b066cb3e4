package async_test

import (
	"context"
	"errors"
	"testing"

	"github.com/comalice/fsmx"
	"github.com/comalice/fsmx/async"
)

type start struct{}

type workCtx struct {
	log []string
}

func baseBuilder() *fsmx.Builder[string, any, string, workCtx] {
	b := fsmx.NewBuilder[string, any, string, workCtx]()
	b.SetInitial("Idle")
	fsmx.OnEvent[start](b.From("Idle")).
		Action(func(_ start, c *workCtx) (string, bool) {
			c.log = append(c.log, "action")
			return "base", true
		}).
		To("Active")
	return b
}

func TestDispatchAsyncCommitsBeforeEffect(t *testing.T) {
	m := baseBuilder().Build(workCtx{})
	a := async.NewAdapter(m, nil)

	observed := make(chan string, 1)
	a.BindAsync("Idle", "Active", func(_ context.Context, _ any, _ *workCtx, _ async.CancelToken, _ fsmx.Publisher[string]) (string, bool, error) {
		observed <- m.State()
		return "", false, nil
	})

	task := a.DispatchAsync(context.Background(), start{})

	// The base commit is synchronous: state is already advanced when
	// DispatchAsync returns.
	if m.State() != "Active" {
		t.Errorf("state = %q immediately after DispatchAsync, want Active", m.State())
	}
	if got := <-observed; got != "Active" {
		t.Errorf("fragment observed state %q, want Active", got)
	}

	out, ok, err := task.Await()
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	// The pipeline produced nothing, so the commit output stands.
	if !ok || out != "base" {
		t.Errorf("result = %q (%v), want base", out, ok)
	}
}

func TestDispatchAsyncPipelineOverridesOutput(t *testing.T) {
	m := baseBuilder().Build(workCtx{})
	a := async.NewAdapter(m, nil)
	a.BindAsync("Idle", "Active", func(_ context.Context, _ any, _ *workCtx, _ async.CancelToken, _ fsmx.Publisher[string]) (string, bool, error) {
		return "effect", true, nil
	})

	out, ok, err := a.DispatchAsync(context.Background(), start{}).Await()
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if !ok || out != "effect" {
		t.Errorf("result = %q (%v), want effect", out, ok)
	}
}

func TestDispatchAsyncWithoutBindingCommitsNormally(t *testing.T) {
	m := baseBuilder().Build(workCtx{})
	a := async.NewAdapter(m, nil)

	task := a.DispatchAsync(context.Background(), start{})
	out, ok, err := task.Await()
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if !ok || out != "base" {
		t.Errorf("result = %q (%v), want base", out, ok)
	}
	if m.State() != "Active" {
		t.Errorf("state = %q, want Active", m.State())
	}
}

func TestDispatchAsyncNoMatch(t *testing.T) {
	m := baseBuilder().Build(workCtx{})
	a := async.NewAdapter(m, nil)

	type bogus struct{}
	out, ok, err := a.DispatchAsync(context.Background(), bogus{}).Await()
	if err != nil || ok {
		t.Errorf("result = %q (%v, %v), want empty", out, ok, err)
	}
	if m.State() != "Idle" {
		t.Errorf("state = %q, want Idle", m.State())
	}
}

func TestDispatchAsyncErrorClearsInflight(t *testing.T) {
	m := baseBuilder().Build(workCtx{})
	a := async.NewAdapter(m, nil)

	boom := errors.New("boom")
	a.BindAsync("Idle", "Active", func(_ context.Context, _ any, c *workCtx, _ async.CancelToken, _ fsmx.Publisher[string]) (string, bool, error) {
		c.log = append(c.log, "before failure")
		return "", false, boom
	})

	_, _, err := a.DispatchAsync(context.Background(), start{}).Await()
	if !errors.Is(err, boom) {
		t.Fatalf("Await err = %v, want boom", err)
	}
	if m.AsyncInflight() {
		t.Error("async-inflight flag still set after failed pipeline")
	}
	// The base commit is not unwound and context mutations survive.
	if m.State() != "Active" {
		t.Errorf("state = %q, want Active", m.State())
	}
	want := []string{"action", "before failure"}
	got := m.Context().log
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("log = %v, want %v", got, want)
	}
}

func TestCompletionsRunDuringBaseCommitNotAfterEffect(t *testing.T) {
	b := fsmx.NewBuilder[string, any, string, workCtx]()
	b.SetInitial("Idle")
	fsmx.OnEvent[start](b.From("Idle")).To("Active")
	b.Completion("Active").
		Action(func(c *workCtx) (string, bool) {
			c.log = append(c.log, "completion")
			return "settled", true
		}).
		To("Done")

	m := b.Build(workCtx{})
	a := async.NewAdapter(m, nil)

	release := make(chan struct{})
	a.BindAsync("Idle", "Active", func(_ context.Context, _ any, _ *workCtx, _ async.CancelToken, _ fsmx.Publisher[string]) (string, bool, error) {
		<-release
		return "", false, nil
	})

	task := a.DispatchAsync(context.Background(), start{})

	// The base commit already settled (completions included) before the
	// effect started: the commit output carries the completion result.
	close(release)
	out, ok, err := task.Await()
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if !ok || out != "settled" {
		t.Errorf("result = %q (%v), want settled", out, ok)
	}
	if m.State() != "Done" {
		t.Errorf("state = %q, want Done", m.State())
	}
}

func TestCancelledPipeline(t *testing.T) {
	type gateCtx struct {
		progressed bool
	}

	b := fsmx.NewBuilder[string, any, string, gateCtx]()
	b.SetInitial("Idle")
	fsmx.OnEvent[start](b.From("Idle")).To("Active")
	m := b.Build(gateCtx{})

	src := async.NewCancelSource()
	a := async.NewAdapter(m, src)

	gate := make(chan struct{})
	a.BindAsync("Idle", "Active", func(_ context.Context, _ any, c *gateCtx, tok async.CancelToken, _ fsmx.Publisher[string]) (string, bool, error) {
		c.progressed = true
		<-gate
		if err := async.CheckCancelled(tok); err != nil {
			return "", false, err
		}
		return "finished", true, nil
	})

	task := a.DispatchAsync(context.Background(), start{})
	src.RequestStop()
	close(gate)

	_, _, err := task.Await()
	if !errors.Is(err, async.ErrCancelled) {
		t.Fatalf("Await err = %v, want ErrCancelled", err)
	}
	if m.State() != "Active" {
		t.Errorf("state = %q, want Active (cancellation does not unwind the commit)", m.State())
	}
	if !m.Context().progressed {
		t.Error("context mutation before the cancellation point was lost")
	}
	if m.AsyncInflight() {
		t.Error("async-inflight flag still set after cancellation")
	}
}

func TestCoBuilder(t *testing.T) {
	cb := async.NewBuilder[string, any, string, workCtx]()
	cb.SetInitial("Idle")
	fsmx.OnEvent[start](cb.Base().From("Idle")).
		Action(func(_ start, _ *workCtx) (string, bool) { return "base", true }).
		To("Active")
	async.On[start](cb.From("Idle")).To("Active").
		Emit(func(_ any, _ *workCtx, _ fsmx.Publisher[string]) string {
			return "async"
		}).
		Attach()

	m, a := cb.Build(workCtx{}, nil)
	out, ok, err := a.DispatchAsync(context.Background(), start{}).Await()
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if !ok || out != "async" {
		t.Errorf("result = %q (%v), want async", out, ok)
	}
	if m.State() != "Active" {
		t.Errorf("state = %q, want Active", m.State())
	}
}

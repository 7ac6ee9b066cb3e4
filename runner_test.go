package fsmx_test

import (
	"errors"
	"testing"
	"time"

	"github.com/comalice/fsmx"
)

func TestRunnerDispatchesAndForwardsOutputs(t *testing.T) {
	m := buildTurnstile(t)
	r := fsmx.NewRunner(m, fsmx.WithQueueSize(16), fsmx.WithOutputBuffer(16))
	r.Start()
	defer r.Stop()

	for _, ev := range []any{coin{}, push{}} {
		if err := r.Send(ev); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}

	want := []string{"coin accepted", "pass through"}
	for _, w := range want {
		select {
		case out := <-r.Outputs():
			if out != w {
				t.Errorf("output = %q, want %q", out, w)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %q", w)
		}
	}

	if got := r.State(); got != "Locked" {
		t.Errorf("state = %q, want Locked", got)
	}
}

func TestRunnerBackpressure(t *testing.T) {
	m := buildTurnstile(t)
	// Not started: the queue fills up.
	r := fsmx.NewRunner(m, fsmx.WithQueueSize(1))

	if err := r.Send(coin{}); err != nil {
		t.Fatalf("first Send: %v", err)
	}
	if err := r.Send(coin{}); !errors.Is(err, fsmx.ErrQueueFull) {
		t.Errorf("second Send = %v, want ErrQueueFull", err)
	}
}

func TestRunnerSendAfterStop(t *testing.T) {
	m := buildTurnstile(t)
	r := fsmx.NewRunner(m)
	r.Start()
	r.Stop()
	r.Stop() // idempotent

	if err := r.Send(coin{}); !errors.Is(err, fsmx.ErrRunnerStopped) {
		t.Errorf("Send after Stop = %v, want ErrRunnerStopped", err)
	}
}

func TestRunnerSerializesConcurrentSenders(t *testing.T) {
	type ctxT struct{ n int }

	b := fsmx.NewBuilder[string, any, int, ctxT]()
	b.SetInitial("A")
	fsmx.OnEvent[alpha](b.From("A")).
		Action(func(_ alpha, c *ctxT) (int, bool) {
			c.n++
			return c.n, true
		}).
		SuppressEnterExit().
		To("A")

	m := b.Build(ctxT{})
	r := fsmx.NewRunner(m, fsmx.WithQueueSize(256), fsmx.WithOutputBuffer(256))
	r.Start()
	defer r.Stop()

	const senders, per = 4, 16
	done := make(chan struct{})
	for i := 0; i < senders; i++ {
		go func() {
			for j := 0; j < per; j++ {
				for r.Send(alpha{}) != nil {
					time.Sleep(time.Millisecond)
				}
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < senders; i++ {
		<-done
	}

	seen := 0
	deadline := time.After(2 * time.Second)
	for seen < senders*per {
		select {
		case <-r.Outputs():
			seen++
		case <-deadline:
			t.Fatalf("received %d outputs, want %d", seen, senders*per)
		}
	}
}

package task

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// TestWrapSuccess verifies the success callback fires once with the result.
func TestWrapSuccess(t *testing.T) {
	got := make(chan int, 2)
	Wrap(context.Background(), func(context.Context) (int, error) { return 42, nil },
		func(v int) { got <- v },
		func(err error) { t.Errorf("unexpected error callback: %v", err) })

	select {
	case v := <-got:
		if v != 42 {
			t.Errorf("got %d, want 42", v)
		}
	case <-time.After(time.Second):
		t.Fatal("success callback never fired")
	}
}

// TestWrapError verifies the error callback receives the call's error.
func TestWrapError(t *testing.T) {
	boom := errors.New("boom")
	got := make(chan error, 1)
	Wrap(context.Background(), func(context.Context) (int, error) { return 0, boom },
		func(int) { t.Error("unexpected success callback") },
		func(err error) { got <- err })

	select {
	case err := <-got:
		if !errors.Is(err, boom) {
			t.Errorf("got %v, want boom", err)
		}
	case <-time.After(time.Second):
		t.Fatal("error callback never fired")
	}
}

// TestCancelBeforeSettle verifies that cancelling first suppresses both callbacks.
func TestCancelBeforeSettle(t *testing.T) {
	release := make(chan struct{})
	returned := make(chan struct{})
	var calls atomic.Int32

	cancel := Wrap(context.Background(), func(context.Context) (int, error) {
		defer close(returned)
		<-release
		return 1, nil
	}, func(int) { calls.Add(1) }, func(error) { calls.Add(1) })

	cancel()
	cancel()
	close(release)
	<-returned
	time.Sleep(20 * time.Millisecond)

	if n := calls.Load(); n != 0 {
		t.Errorf("callbacks fired %d times after cancel, want 0", n)
	}
}

// TestCancelAfterSettle verifies that a late cancel is a no-op.
func TestCancelAfterSettle(t *testing.T) {
	done := make(chan struct{})
	cancel := Wrap(context.Background(), func(context.Context) (int, error) { return 1, nil },
		func(int) { close(done) }, nil)
	<-done
	cancel()
	cancel()
}

// TestCancelPropagatesContext verifies the call's context is cancelled too.
func TestCancelPropagatesContext(t *testing.T) {
	seen := make(chan error, 1)
	started := make(chan struct{})
	cancel := Wrap(context.Background(), func(ctx context.Context) (int, error) {
		close(started)
		<-ctx.Done()
		seen <- ctx.Err()
		return 0, ctx.Err()
	}, nil, func(error) { t.Error("error callback after cancel") })

	<-started
	cancel()
	select {
	case err := <-seen:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("ctx.Err() = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("call context was not cancelled")
	}
}

// TestHungCallStaysPending documents that there is no built-in timeout: a call
// that never returns keeps the view loading until it is cancelled.
func TestHungCallStaysPending(t *testing.T) {
	g := NewGroup(context.Background())
	var settled atomic.Bool
	Go(g, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	}, func(int) { settled.Store(true) }, func(error) { settled.Store(true) })

	waited := make(chan struct{})
	go func() {
		g.Wait()
		close(waited)
	}()

	select {
	case <-waited:
		t.Fatal("hung call settled on its own")
	case <-time.After(50 * time.Millisecond):
	}

	g.Close()
	select {
	case <-waited:
	case <-time.After(time.Second):
		t.Fatal("Close did not release the hung call")
	}
	if settled.Load() {
		t.Error("callback fired for a cancelled call")
	}
}

// TestGroupCloseSuppressesCallbacks verifies unmount cancels every in-flight call.
func TestGroupCloseSuppressesCallbacks(t *testing.T) {
	g := NewGroup(context.Background())
	release := make(chan struct{})
	var calls atomic.Int32
	for range 3 {
		Go(g, func(context.Context) (int, error) {
			<-release
			return 1, nil
		}, func(int) { calls.Add(1) }, func(error) { calls.Add(1) })
	}

	g.Close()
	close(release)
	g.Wait()
	if n := calls.Load(); n != 0 {
		t.Errorf("callbacks fired %d times after Close, want 0", n)
	}

	if started := Once(g, "late", func(context.Context) (int, error) { return 1, nil }, nil, nil); started {
		t.Error("Once started a call on a closed group")
	}
}

// TestOnceDeduplicates verifies a concern is fetched once, and again after a failure.
func TestOnceDeduplicates(t *testing.T) {
	g := NewGroup(context.Background())
	defer g.Close()

	var calls atomic.Int32
	fail := true
	fetch := func(context.Context) (string, error) {
		calls.Add(1)
		if fail {
			return "", errors.New("unavailable")
		}
		return "profile", nil
	}

	if !Once(g, "profile", fetch, nil, nil) {
		t.Fatal("first Once did not start")
	}
	g.Wait()
	if g.Fetched("profile") {
		t.Error("failed fetch should clear the fetched flag")
	}

	fail = false
	if !Once(g, "profile", fetch, nil, nil) {
		t.Fatal("retry after failure did not start")
	}
	g.Wait()
	if Once(g, "profile", fetch, nil, nil) {
		t.Error("third Once started although the concern was fetched")
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("fetch ran %d times, want 2", n)
	}
}

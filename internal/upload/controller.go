package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/hookz"

	"crashanalytix-console/internal/model"
	"crashanalytix-console/internal/preview"
)

var (
	ErrNoFileSelected = errors.New("please select a video first")
	ErrUploadInFlight = errors.New("an upload is already in progress")
	ErrClosed         = errors.New("upload controller closed")
	ErrSuperseded     = errors.New("upload result superseded")
)

// Performer runs the single network call of an upload.
type Performer[R any] func(ctx context.Context, filename string, video io.Reader) (R, error)

type Options struct {
	Clock    clockz.Clock
	Logger   zerolog.Logger
	Observer Observer
}

// Controller drives Idle -> Uploading -> {Success, Failed} for one staged
// video at a time. At most one upload is in flight; a completion is applied
// only when its request token is still the latest one.
type Controller[R any] struct {
	kind     Kind
	store    *preview.Store
	perform  Performer[R]
	describe func(R) Outcome
	clock    clockz.Clock
	log      zerolog.Logger
	observer Observer
	hooks    *hookz.Hooks[Event]

	mu     sync.Mutex
	file   *preview.Ref
	state  State[R]
	token  uint64
	cancel context.CancelFunc
	closed bool
}

func newController[R any](kind Kind, store *preview.Store, perform Performer[R], describe func(R) Outcome, opts Options) *Controller[R] {
	clock := opts.Clock
	if clock == nil {
		clock = clockz.RealClock
	}
	observer := opts.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	return &Controller[R]{
		kind:     kind,
		store:    store,
		perform:  perform,
		describe: describe,
		clock:    clock,
		log:      opts.Logger.With().Str("component", "upload").Str("kind", string(kind)).Logger(),
		observer: observer,
		hooks:    hookz.New[Event](),
		state:    idleState[R](),
	}
}

func (c *Controller[R]) Kind() Kind {
	return c.kind
}

func (c *Controller[R]) State() State[R] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// File returns the currently staged video, if any.
func (c *Controller[R]) File() (preview.Ref, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.file == nil {
		return preview.Ref{}, false
	}
	return *c.file, true
}

// SelectFile stages a video and replaces the previous preview, releasing it.
// It is legal in every state and never changes the status.
func (c *Controller[R]) SelectFile(filename string, video io.Reader) (preview.Ref, error) {
	ref, err := c.store.Stage(filename, video)
	if err != nil {
		return preview.Ref{}, err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.release(ref)
		return preview.Ref{}, ErrClosed
	}
	previous := c.file
	c.file = ref
	c.mu.Unlock()

	c.release(previous)
	c.log.Debug().Str("file", ref.Name).Int64("bytes", ref.Size).Msg("video selected")
	return *ref, nil
}

type completion[R any] struct {
	state   State[R]
	applied bool
}

// Submit uploads the staged video and waits for the outcome. Transport
// failures are not returned as errors; they end in StatusFailed. A result
// discarded by Close yields ErrSuperseded.
func (c *Controller[R]) Submit(ctx context.Context) (State[R], error) {
	done, err := c.start(ctx)
	if err != nil {
		return c.State(), err
	}
	final := <-done
	if !final.applied {
		return c.State(), ErrSuperseded
	}
	return final.state, nil
}

// SubmitAsync validates and enters StatusUploading synchronously, then runs
// the upload in the background. The channel receives the final state of
// this request exactly once, whether or not it was applied.
func (c *Controller[R]) SubmitAsync(ctx context.Context) (<-chan State[R], error) {
	done, err := c.start(ctx)
	if err != nil {
		return nil, err
	}
	out := make(chan State[R], 1)
	go func() {
		out <- (<-done).state
	}()
	return out, nil
}

func (c *Controller[R]) start(ctx context.Context) (<-chan completion[R], error) {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return nil, ErrClosed
	case c.file == nil:
		c.mu.Unlock()
		c.observer.UploadRejected(string(c.kind), "no_file")
		return nil, ErrNoFileSelected
	case c.state.InFlight():
		c.mu.Unlock()
		c.observer.UploadRejected(string(c.kind), "in_flight")
		return nil, ErrUploadInFlight
	}

	ref := *c.file
	video, _, err := c.store.Open(ref.ID)
	if err != nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %v", ErrNoFileSelected, err)
	}

	c.token++
	token := c.token
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.state = uploadingState[R](token)
	c.mu.Unlock()

	c.log.Info().Uint64("request", token).Str("file", ref.Name).Msg("upload started")

	done := make(chan completion[R], 1)
	go c.run(runCtx, cancel, token, ref.Name, video, done)
	return done, nil
}

func (c *Controller[R]) run(ctx context.Context, cancel context.CancelFunc, token uint64, filename string, video io.ReadCloser, done chan<- completion[R]) {
	defer cancel()
	defer video.Close()

	start := c.clock.Now()
	result, err := c.perform(ctx, filename, video)
	elapsed := c.clock.Since(start)

	var next State[R]
	if err != nil {
		next = failedState[R](token, model.ErrorSentinel, elapsed)
	} else {
		next = successState(token, result, elapsed)
	}

	c.mu.Lock()
	applied := !c.closed && token == c.token
	if applied {
		c.state = next
		c.cancel = nil
	}
	c.mu.Unlock()

	done <- completion[R]{state: next, applied: applied}

	if !applied {
		c.observer.UploadCompleted(string(c.kind), "discarded", elapsed)
		c.log.Warn().Uint64("request", token).Msg("discarding stale upload result")
		return
	}

	c.observer.UploadCompleted(string(c.kind), string(next.Status), elapsed)

	event := Event{
		Kind:     c.kind,
		Request:  token,
		Status:   next.Status,
		Duration: elapsed,
		Err:      err,
		At:       c.clock.Now(),
	}
	if err != nil {
		event.Outcome = Outcome{Text: model.ErrorSentinel}
		c.log.Error().Err(err).Uint64("request", token).Int64("duration_ms", elapsed.Milliseconds()).Msg("upload failed")
	} else {
		event.Outcome = c.describe(result)
		c.log.Info().Uint64("request", token).Int64("duration_ms", elapsed.Milliseconds()).Str("result", event.Outcome.Text).Msg("upload completed")
	}
	_ = c.hooks.Emit(context.Background(), EventCompleted, event) //nolint:errcheck
}

// OnCompleted registers a handler for applied completions. Handlers run
// asynchronously.
func (c *Controller[R]) OnCompleted(handler func(context.Context, Event) error) error {
	_, err := c.hooks.Hook(EventCompleted, handler)
	return err
}

// Close tears the controller down: the in-flight request is cancelled and
// its result discarded, and the staged preview is released.
func (c *Controller[R]) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	cancel := c.cancel
	c.cancel = nil
	ref := c.file
	c.file = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.hooks.Close()
	if ref == nil {
		return nil
	}
	return c.store.Release(ref.ID)
}

func (c *Controller[R]) release(ref *preview.Ref) {
	if ref == nil {
		return
	}
	if err := c.store.Release(ref.ID); err != nil {
		c.log.Warn().Err(err).Str("preview", ref.ID.String()).Msg("failed to release preview")
	}
}

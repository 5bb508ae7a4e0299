// Package segmenter turns a stream of audio frames into utterances and drives a
// recognition backend over them.
//
// An Engine owns one shared input slot, one voice activity detector and at most
// one decode stream. A producer deposits samples together with start and end of
// stream markers; a single worker claims the slot, filters it through the VAD,
// accumulates speech, decides whether the utterance is over and decodes it.
// Results are reported through Callbacks.
package segmenter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/speech-engine/internal/audio"
	"github.com/lexiqai/speech-engine/internal/backend"
	"github.com/lexiqai/speech-engine/internal/observability"
)

var (
	// ErrAlreadyStarted is returned by Start when the worker is running
	ErrAlreadyStarted = errors.New("segmenter: engine already started")

	// ErrStopped is returned by Start after Stop
	ErrStopped = errors.New("segmenter: engine stopped")

	// ErrNoVAD is returned by New without a voice activity detector
	ErrNoVAD = errors.New("segmenter: voice activity detector is required")
)

// Engine is the segmentation and decode driver
type Engine struct {
	opts      Options
	callbacks Callbacks
	logger    zerolog.Logger
	metrics   *observability.Metrics

	input *audio.InputBuffer

	// step serializes processing steps and Reset
	step    sync.Mutex
	vad     audio.VAD
	session *SessionManager
	timer   *SentenceTimer
	speech  []int16
	events  []func()

	// state is read by the host while steps run
	state    sync.Mutex
	status   SpeechStatus
	text     string
	speaking atomic.Bool // manual mode: the host opened an utterance

	exit atomic.Bool

	// lifecycle guards the worker handles between Start and Stop
	lifecycle sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// New creates an engine over a loaded model. The model is shared and is not
// closed by the engine.
func New(model backend.Model, vad audio.VAD, opts Options, callbacks Callbacks, logger zerolog.Logger) (*Engine, error) {
	if model == nil {
		return nil, ErrModelNotInitialized
	}
	if vad == nil {
		return nil, ErrNoVAD
	}
	switch opts.Mode {
	case ModeManual, ModeSingleSentence, ModeAutomatic:
	default:
		return nil, fmt.Errorf("segmenter: invalid speech mode %v", opts.Mode)
	}
	if opts.InputBufferSize <= 0 {
		return nil, fmt.Errorf("segmenter: input buffer size must be > 0, got %d", opts.InputBufferSize)
	}
	if opts.MaxSpeechBufferSize < 0 {
		opts.MaxSpeechBufferSize = 0
	}

	logger = logger.With().
		Str("component", "segmenter").
		Str("mode", opts.Mode.String()).
		Logger()

	var metrics *observability.Metrics
	if opts.MetricsEnabled {
		metrics = observability.NewEngineMetrics(opts.Mode.String())
	}

	return &Engine{
		opts:      opts,
		callbacks: callbacks,
		logger:    logger,
		metrics:   metrics,
		input:     audio.NewInputBuffer(opts.InputBufferSize),
		vad:       vad,
		session:   NewSessionManager(model, logger, metrics),
		timer:     NewSentenceTimer(opts.SentenceTimeout),
		speech:    make([]int16, 0, opts.MaxSpeechBufferSize),
		status:    StatusNoSpeech,
	}, nil
}

// Mode returns the engine's speech mode
func (e *Engine) Mode() SpeechMode {
	return e.opts.Mode
}

// Status returns the current speech detection status
func (e *Engine) Status() SpeechStatus {
	e.state.Lock()
	defer e.state.Unlock()
	return e.status
}

// IntermediateText returns the last emitted transcript of the open utterance
func (e *Engine) IntermediateText() (string, bool) {
	e.state.Lock()
	defer e.state.Unlock()
	return e.text, e.text != ""
}

// SetSpeechStarted opens or closes a manual utterance. Ignored in other modes.
func (e *Engine) SetSpeechStarted(started bool) {
	e.speaking.Store(started)
}

// Deposit hands samples to the worker without blocking. See audio.InputBuffer.
func (e *Engine) Deposit(samples []int16, sof, eof bool) (int, error) {
	return e.input.Deposit(samples, sof, eof)
}

// DepositWait hands every sample to the worker, waiting while it is busy
func (e *Engine) DepositWait(ctx context.Context, samples []int16, sof, eof bool) error {
	return e.input.DepositWait(ctx, samples, sof, eof)
}

// Start runs the processing worker until ctx ends or Stop is called
func (e *Engine) Start(ctx context.Context) error {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	if e.exit.Load() {
		return ErrStopped
	}
	if e.done != nil {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	e.cancel = cancel
	e.done = done
	e.metrics.RecordEngineStart()

	go e.run(ctx, done)

	e.logger.Info().Msg("segmentation engine started")
	return nil
}

func (e *Engine) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		processed, err := e.ProcessStep()
		if err != nil {
			e.logger.Error().Err(err).Msg("processing step failed")
			e.metrics.RecordError("step_error", "segmenter")
			if e.callbacks.OnError != nil {
				e.callbacks.OnError(err)
			}
		}
		if e.exit.Load() {
			return
		}
		if processed {
			continue
		}
		if err := e.input.Wait(ctx); err != nil {
			return
		}
	}
}

// Stop asks the worker to exit and waits for it. A backend call in flight
// completes first; no new decode starts afterwards. The open stream is closed.
func (e *Engine) Stop() {
	e.closeOnce.Do(func() {
		e.exit.Store(true)

		e.lifecycle.Lock()
		cancel, done := e.cancel, e.done
		e.lifecycle.Unlock()

		if done != nil {
			cancel()
			<-done
			e.metrics.RecordEngineEnd()
		}

		e.step.Lock()
		e.session.Destroy()
		e.step.Unlock()

		e.logger.Info().Msg("segmentation engine stopped")
	})
}

// Reset drops the open utterance: accumulated speech, pending input, the decode
// stream and the intermediate text. Calling it repeatedly has the same effect
// as calling it once.
func (e *Engine) Reset() {
	e.step.Lock()
	e.speech = e.speech[:0]
	e.input.Clear()
	e.session.Destroy()
	e.clearText()
	e.vad.Reset()
	e.timer.Restart()
	e.speaking.Store(false)
	e.setStatus(StatusNoSpeech)
	events := e.takeEvents()
	e.step.Unlock()

	e.logger.Debug().Msg("engine reset")
	dispatch(events)
}

// ProcessStep claims the input slot and processes it. It returns false when
// there was nothing to claim. Step errors leave the engine usable; the host may
// Reset.
func (e *Engine) ProcessStep() (bool, error) {
	claim, ok := e.input.TryClaim()
	if !ok {
		return false, nil
	}
	defer claim.Release()

	e.step.Lock()
	err := e.process(claim.Frame())
	events := e.takeEvents()
	e.step.Unlock()

	// the slot is handed back before the host hears about the step
	claim.Release()
	dispatch(events)
	return true, err
}

func (e *Engine) process(frame audio.Frame) error {
	e.logger.Debug().
		Int("in_size", frame.Size()).
		Int("speech_size", len(e.speech)).
		Bool("sof", frame.SOF).
		Bool("eof", frame.EOF).
		Msg("process frame")

	if frame.SOF {
		e.speech = e.speech[:0]
		e.timer.Restart()
		e.vad.Reset()

		e.session.Destroy()
		e.clearText()
		if err := e.session.Create(); err != nil {
			return err
		}

		if e.opts.Mode == ModeManual {
			e.speaking.Store(true)
		}
	}
	if e.opts.Mode == ModeManual && e.speaking.Load() && e.currentStatus() == StatusNoSpeech {
		e.setStatus(StatusSpeechDetected)
	}

	voiced := e.vad.RemoveSilence(frame.Samples)
	speech := len(voiced) > 0
	e.metrics.RecordFrame(frame.Size(), len(voiced))

	if speech {
		if e.opts.Mode != ModeManual {
			e.setStatus(StatusSpeechDetected)
		}
		e.speech = append(e.speech, voiced...)
		e.timer.Restart()
	}

	d := decide(e.opts.Mode, observation{
		speech:       speech,
		eof:          frame.EOF,
		bufferEmpty:  len(e.speech) == 0,
		hasText:      e.hasText(),
		timerExpired: e.timer.Expired(),
	})

	if d.sentenceTimeout {
		e.logger.Debug().Msg("sentence timeout")
		e.timer.Fire()
		e.metrics.RecordSentenceTimeout()
		if cb := e.callbacks.OnSentenceTimeout; cb != nil {
			e.emit(cb)
		}
	}

	if e.exit.Load() {
		return nil
	}

	oldStatus := e.currentStatus()
	if d.showDecoding {
		e.setStatus(StatusDecoding)
	}

	finalized, err := e.decode(d.finalDecode)
	e.speech = e.speech[:0]
	if err != nil {
		e.setStatus(oldStatus)
		return err
	}

	if d.finalDecode || (e.opts.Mode == ModeManual && !e.speaking.Load()) {
		e.setStatus(StatusNoSpeech)
	} else {
		e.setStatus(oldStatus)
	}

	if d.finalDecode {
		if e.opts.Mode == ModeManual {
			e.speaking.Store(false)
		}
		// Continuous silence in automatic mode has no utterance to flush
		if frame.EOF || finalized {
			e.flush(d.flush)
		}
	}

	return nil
}

// decode feeds the accumulated speech and asks for a transcript. It reports
// whether a stream was finalized.
func (e *Engine) decode(final bool) (bool, error) {
	if final && !e.session.Open() && len(e.speech) == 0 {
		return false, nil
	}

	if err := e.session.Create(); err != nil {
		return false, err
	}

	if len(e.speech) > 0 {
		if err := e.session.Feed(e.speech); err != nil {
			return false, fmt.Errorf("segmenter: feed audio: %w", err)
		}
	}

	kind := "intermediate"
	if final {
		kind = "final"
	}

	start := time.Now()
	var (
		text string
		err  error
	)
	if final {
		text, err = e.session.Finish()
	} else {
		text, err = e.session.Intermediate()
	}
	e.metrics.RecordDecode(kind, start, err == nil)

	if err != nil {
		if final {
			e.clearText()
		}
		return false, fmt.Errorf("segmenter: %s decode: %w", kind, err)
	}

	if e.opts.TextTransform != nil {
		text = e.opts.TextTransform(text)
	}
	e.logger.Debug().Str("kind", kind).Str("text", text).Msg("speech decoded")

	e.setText(text)
	if final {
		e.clearText()
	}
	return final, nil
}

func (e *Engine) flush(kind FlushKind) {
	e.logger.Debug().Str("kind", kind.String()).Msg("flush")
	e.metrics.RecordFlush(kind.String())
	if cb := e.callbacks.OnFlush; cb != nil {
		e.emit(func() { cb(kind) })
	}
}

func (e *Engine) currentStatus() SpeechStatus {
	e.state.Lock()
	defer e.state.Unlock()
	return e.status
}

// setStatus publishes status when it changes
func (e *Engine) setStatus(status SpeechStatus) {
	e.state.Lock()
	changed := e.status != status
	e.status = status
	e.state.Unlock()

	if !changed {
		return
	}
	e.metrics.RecordStatus(status.String())
	if cb := e.callbacks.OnStatusChanged; cb != nil {
		e.emit(func() { cb(status) })
	}
}

func (e *Engine) hasText() bool {
	e.state.Lock()
	defer e.state.Unlock()
	return e.text != ""
}

// setText stores text and publishes it when it is non-empty and differs from
// the stored one
func (e *Engine) setText(text string) {
	e.state.Lock()
	changed := e.text != text
	e.text = text
	e.state.Unlock()

	if !changed || text == "" {
		return
	}
	if cb := e.callbacks.OnIntermediateText; cb != nil {
		e.emit(func() { cb(text) })
	}
}

func (e *Engine) clearText() {
	e.state.Lock()
	e.text = ""
	e.state.Unlock()
}

// emit queues a callback to run once the step lock is released
func (e *Engine) emit(fn func()) {
	e.events = append(e.events, fn)
}

func (e *Engine) takeEvents() []func() {
	events := e.events
	e.events = nil
	return events
}

func dispatch(events []func()) {
	for _, fn := range events {
		fn()
	}
}

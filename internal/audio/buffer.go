package audio

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrBufferClaimed is returned by Deposit while the worker holds the frame
	ErrBufferClaimed = errors.New("audio: input buffer is claimed for processing")

	// ErrBufferFull is returned when a deposit does not fit in the remaining capacity
	ErrBufferFull = errors.New("audio: input buffer is full")

	// ErrFramePending is returned when a deposit would cross an utterance
	// boundary held by the pending frame: anything after an eof, or an sof
	// behind pending data. The worker must take the frame first.
	ErrFramePending = errors.New("audio: pending frame must be processed first")
)

// Frame is the content of the input slot at the moment it was claimed
type Frame struct {
	Samples []int16
	SOF     bool // start of a new utterance stream
	EOF     bool // end of the stream
}

// Size returns the number of samples in the frame
func (f Frame) Size() int {
	return len(f.Samples)
}

// InputBuffer is the staging slot shared by the capture side (producer) and the
// processing worker. The producer appends samples until the worker claims the
// slot; while claimed, deposits are rejected. Release hands the slot back.
type InputBuffer struct {
	mu       sync.Mutex
	samples  []int16
	capacity int
	sof      bool
	eof      bool
	claimed  bool

	// ready is signalled when data lands in an unclaimed slot
	ready chan struct{}
	// released is signalled when a claim is released or space frees up
	released chan struct{}
}

// NewInputBuffer creates an input buffer holding at most capacity samples
func NewInputBuffer(capacity int) *InputBuffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &InputBuffer{
		samples:  make([]int16, 0, capacity),
		capacity: capacity,
		ready:    make(chan struct{}, 1),
		released: make(chan struct{}, 1),
	}
}

// Deposit appends samples and start/end markers to the pending frame.
// Returns the number of samples accepted. Nothing is written while a claim is
// held. The eof marker is only recorded when every sample was accepted. A
// frame never spans two utterances: once eof is pending, or when sof arrives
// behind pending data, the deposit is refused with ErrFramePending.
func (b *InputBuffer) Deposit(samples []int16, sof, eof bool) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.claimed {
		return 0, ErrBufferClaimed
	}
	if b.eof || (sof && (b.sof || len(b.samples) > 0)) {
		return 0, ErrFramePending
	}

	if sof {
		b.sof = true
	}

	space := b.capacity - len(b.samples)
	n := len(samples)
	if n > space {
		n = space
	}
	b.samples = append(b.samples, samples[:n]...)

	var err error
	if n < len(samples) {
		err = ErrBufferFull
	} else if eof {
		b.eof = true
	}

	if n > 0 || sof || b.eof {
		notify(b.ready)
	}

	return n, err
}

// DepositWait deposits every sample, blocking while the slot is claimed, full
// or holding a frame that must be processed first.
// It returns early only when ctx is done.
func (b *InputBuffer) DepositWait(ctx context.Context, samples []int16, sof, eof bool) error {
	for {
		n, err := b.Deposit(samples, sof, eof)
		if err == nil {
			return nil
		}
		if n > 0 {
			// sof has been recorded with the first accepted chunk
			samples = samples[n:]
			sof = false
		}
		if !errors.Is(err, ErrBufferClaimed) && !errors.Is(err, ErrBufferFull) && !errors.Is(err, ErrFramePending) {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.released:
		}
	}
}

// Claim is exclusive ownership of the input slot for one processing step
type Claim struct {
	buf   *InputBuffer
	frame Frame
	done  bool
}

// Frame returns the claimed frame. The sample slice is only valid until Release.
func (c *Claim) Frame() Frame {
	return c.frame
}

// Release clears the slot and returns it to the producer. Safe to call twice.
func (c *Claim) Release() {
	if c == nil || c.done {
		return
	}
	c.done = true
	c.buf.release()
}

// TryClaim marks the slot claimed and returns it when there is something to
// process. It never blocks.
func (b *InputBuffer) TryClaim() (*Claim, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.claimed {
		return nil, false
	}
	if len(b.samples) == 0 && !b.sof && !b.eof {
		return nil, false
	}

	b.claimed = true
	return &Claim{
		buf: b,
		frame: Frame{
			Samples: b.samples,
			SOF:     b.sof,
			EOF:     b.eof,
		},
	}, true
}

// Wait blocks until a deposit may have made a frame available or ctx is done
func (b *InputBuffer) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-b.ready:
		return nil
	}
}

func (b *InputBuffer) release() {
	b.mu.Lock()
	b.samples = b.samples[:0]
	b.sof = false
	b.eof = false
	b.claimed = false
	b.mu.Unlock()

	notify(b.released)
}

// Available returns the number of samples waiting in the slot
func (b *InputBuffer) Available() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.samples)
}

// Space returns how many samples can still be deposited
func (b *InputBuffer) Space() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.claimed {
		return 0
	}
	return b.capacity - len(b.samples)
}

// IsClaimed reports whether a processing step currently owns the slot
func (b *InputBuffer) IsClaimed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.claimed
}

// Clear drops pending samples and markers. A held claim is left untouched.
func (b *InputBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.claimed {
		return
	}
	b.samples = b.samples[:0]
	b.sof = false
	b.eof = false
	notify(b.released)
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

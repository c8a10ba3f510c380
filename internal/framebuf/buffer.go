// Package framebuf is the single-slot hand-off between the render loop and
// frame readers. The producer overwrites, readers take the latest, and nobody
// ever blocks the producer.
package framebuf

import (
	"context"
	"image"
	"sync/atomic"
	"time"

	goutils "go.viam.com/utils"
)

// DefaultPollInterval is the reader cadence, about 30 polls a second.
const DefaultPollInterval = 33 * time.Millisecond

// Frame is one rendered output frame plus the telemetry of the tick that made
// it. Image must not be modified after Publish.
type Frame struct {
	Seq   uint64
	At    time.Time
	Image *image.RGBA

	Angle     float64
	Level     float64
	Pouring   bool
	Triggered bool
}

// Stats counts buffer traffic.
type Stats struct {
	Published uint64
	// Overwritten counts frames replaced before any reader took them.
	Overwritten uint64
}

type slot struct {
	frame Frame
	taken atomic.Bool
}

// Buffer holds at most one frame. The zero value is not usable; use New.
type Buffer struct {
	latest       atomic.Pointer[slot]
	seq          atomic.Uint64
	overwritten  atomic.Uint64
	pollInterval time.Duration
}

// New returns an empty buffer polled at interval (DefaultPollInterval if <= 0).
func New(interval time.Duration) *Buffer {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Buffer{pollInterval: interval}
}

// Publish swaps f in as the latest frame and returns the sequence number it was
// given.
func (b *Buffer) Publish(f Frame) uint64 {
	f.Seq = b.seq.Add(1)
	prev := b.latest.Swap(&slot{frame: f})
	if prev != nil && !prev.taken.Load() {
		b.overwritten.Add(1)
	}
	return f.Seq
}

// Latest returns the current frame, if any.
func (b *Buffer) Latest() (Frame, bool) {
	s := b.latest.Load()
	if s == nil {
		return Frame{}, false
	}
	s.taken.Store(true)
	return s.frame, true
}

// Peek is Latest without marking the frame as taken, for telemetry readers.
func (b *Buffer) Peek() (Frame, bool) {
	s := b.latest.Load()
	if s == nil {
		return Frame{}, false
	}
	return s.frame, true
}

// Clear empties the slot. Readers see "no frame" until the next Publish.
func (b *Buffer) Clear() {
	b.latest.Store(nil)
}

// ClearIf empties the slot only if it still holds frame seq, so a stale
// clear never drops a newer frame.
func (b *Buffer) ClearIf(seq uint64) bool {
	s := b.latest.Load()
	if s == nil || s.frame.Seq != seq {
		return false
	}
	return b.latest.CompareAndSwap(s, nil)
}

// Wait polls until a frame newer than after is available or ctx is done.
func (b *Buffer) Wait(ctx context.Context, after uint64) (Frame, error) {
	for {
		if f, ok := b.Latest(); ok && f.Seq > after {
			return f, nil
		}
		if !goutils.SelectContextOrWait(ctx, b.pollInterval) {
			return Frame{}, ctx.Err()
		}
	}
}

// Stats returns the traffic counters.
func (b *Buffer) Stats() Stats {
	return Stats{Published: b.seq.Load(), Overwritten: b.overwritten.Load()}
}

// Package ring implements the bounded pre-roll audio ring buffer
// (asr_audio_ring, spec.md Section 3 invariant 5): capacity 10 frames
// (~600ms at 60ms/frame), oldest evicted on push past capacity.
package ring

import (
	"encoding/binary"
	"sync"

	"github.com/smallnest/ringbuffer"
)

// DefaultCapacity is 10 frames, ~600ms at 60ms/frame, per spec.md.
const DefaultCapacity = 10

// bytesPerFrame sizes the underlying byte ring generously for 60ms Opus
// frames (typically well under 256 bytes each).
const bytesPerFrame = 512

// Buffer is a fixed-capacity FIFO of audio frames backed by a byte ring
// with a 4-byte little-endian length prefix per frame, the same framing
// xarvis's audioRing adapter uses over the same library. Pushing past
// capacity evicts the oldest frame rather than blocking or erroring.
type Buffer struct {
	mu    sync.Mutex
	cap   int
	count int
	rb    *ringbuffer.RingBuffer
}

// New creates a ring buffer with the given frame capacity.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{
		cap: capacity,
		rb:  ringbuffer.New(capacity * bytesPerFrame),
	}
}

// Push appends a frame, evicting the oldest if the buffer is at capacity.
func (b *Buffer) Push(data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for b.count >= b.cap || b.rb.Free() < len(data)+4 {
		if !b.popLocked() {
			b.rb.Reset()
			b.count = 0
			break
		}
	}

	var sizeBuf [4]byte
	binary.LittleEndian.PutUint32(sizeBuf[:], uint32(len(data)))
	_, _ = b.rb.Write(sizeBuf[:])
	_, _ = b.rb.Write(data)
	b.count++
}

// popLocked discards the oldest frame. Caller must hold mu.
func (b *Buffer) popLocked() bool {
	if b.rb.IsEmpty() {
		return false
	}
	var sizeBuf [4]byte
	if n, err := b.rb.Read(sizeBuf[:]); err != nil || n != 4 {
		return false
	}
	size := binary.LittleEndian.Uint32(sizeBuf[:])
	if size > 0 {
		discard := make([]byte, size)
		if n, err := b.rb.Read(discard); err != nil || uint32(n) != size {
			return false
		}
	}
	b.count--
	return true
}

// Drain returns and clears all buffered frames in arrival order, for replay
// as pre-roll once a streaming ASR session signals it is ready to receive
// audio (spec.md 4.2: "drain pre-roll (up to last 10 frames)").
func (b *Buffer) Drain() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([][]byte, 0, b.count)
	for !b.rb.IsEmpty() {
		var sizeBuf [4]byte
		n, err := b.rb.Read(sizeBuf[:])
		if err != nil || n != 4 {
			break
		}
		size := binary.LittleEndian.Uint32(sizeBuf[:])
		data := make([]byte, size)
		if size > 0 {
			n, err = b.rb.Read(data)
			if err != nil || uint32(n) != size {
				break
			}
		}
		out = append(out, data)
	}
	b.count = 0
	return out
}

// Len reports the number of buffered frames.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Capacity reports the configured frame capacity.
func (b *Buffer) Capacity() int {
	return b.cap
}

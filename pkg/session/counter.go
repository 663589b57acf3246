package session

import (
	"crypto/rand"
	"encoding/binary"
)

const (
	// CounterWindowSize is the number of counters behind the maximum that
	// are still accepted once.
	CounterWindowSize = 32

	// counterInitMax bounds the random initial counter value.
	counterInitMax = 1 << 28
)

// messageCounter is a per-session outbound counter that refuses to wrap.
type messageCounter struct {
	value     uint32
	exhausted bool
}

func newMessageCounter() *messageCounter {
	return &messageCounter{value: randomCounterInit()}
}

func (c *messageCounter) next() (uint32, error) {
	if c.exhausted {
		return 0, ErrCounterExhausted
	}
	current := c.value
	c.value++
	if c.value == 0 {
		c.exhausted = true
	}
	return current, nil
}

func randomCounterInit() uint32 {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 1
	}
	return (binary.LittleEndian.Uint32(buf[:]) & (counterInitMax - 1)) + 1
}

// receptionState is the sliding replay window for one sender.
type receptionState struct {
	maxCounter  uint32
	bitmap      uint32 // bit i set: maxCounter-1-i already seen
	initialized bool
}

// accept reports whether counter is new and records it.
func (r *receptionState) accept(counter uint32) bool {
	if !r.initialized {
		r.maxCounter = counter
		r.bitmap = 0
		r.initialized = true
		return true
	}

	if counter > r.maxCounter {
		shift := counter - r.maxCounter
		if shift > CounterWindowSize {
			r.bitmap = 0
		} else {
			r.bitmap = (r.bitmap << shift) | (1 << (shift - 1))
		}
		r.maxCounter = counter
		return true
	}
	if counter == r.maxCounter {
		return false
	}

	offset := r.maxCounter - counter - 1
	if offset >= CounterWindowSize {
		return false
	}
	mask := uint32(1) << offset
	if r.bitmap&mask != 0 {
		return false
	}
	r.bitmap |= mask
	return true
}

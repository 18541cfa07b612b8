// Package sound models the three tone channels of the sound chip as queues.
// It keeps the bookkeeping SOUND, SQ, RELEASE and ON SQ GOSUB depend on;
// audio synthesis is left to whoever consumes Events.
package sound

import (
	"sync"

	"github.com/antibyte/retrocpc/pkg/cpcvm"
	"github.com/antibyte/retrocpc/pkg/logger"
)

const (
	// Channels is the number of tone channels (A, B, C).
	Channels = 3
	// QueueSize is the number of tones a channel can hold, the playing one included.
	QueueSize = 4

	holdBit    = 0x40
	statusHeld = 0x40
	statusPlay = 0x80

	// frames used for a tone without explicit duration (envelope length)
	envelopeFrames = 10
)

// Event reports a tone start or a bell to the audio backend.
type Event struct {
	Channel int
	Tone    cpcvm.Tone
	Bell    bool
}

type channel struct {
	tones     []cpcvm.Tone
	remaining int
	held      bool
	playing   bool
}

// Queue implements cpcvm.SoundDevice.
type Queue struct {
	mu       sync.Mutex
	channels [Channels]channel
	events   []Event
	bells    int
	log      logger.Scope
}

// NewQueue returns empty channel queues. tag prefixes log lines.
func NewQueue(tag string) *Queue {
	return &Queue{log: logger.For(logger.AreaSound, tag)}
}

func channelsOf(state int) []int {
	var out []int
	for ch := 0; ch < Channels; ch++ {
		if state&(1<<ch) != 0 {
			out = append(out, ch)
		}
	}
	return out
}

// frames converts a SOUND duration (1/100 s, negative: envelope repeats)
// into 1/50 s ticks.
func frames(duration int) int {
	switch {
	case duration > 0:
		return (duration + 1) / 2
	case duration < 0:
		return -duration * envelopeFrames
	}
	return envelopeFrames
}

// TestCanQueue reports whether every channel addressed by state has a free slot.
func (q *Queue) TestCanQueue(state int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, ch := range channelsOf(state) {
		if len(q.channels[ch].tones) >= QueueSize {
			return false
		}
	}
	return true
}

// Enqueue adds a tone to all channels of its state. With the hold bit set the
// channels wait for RELEASE.
func (q *Queue) Enqueue(t cpcvm.Tone) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, ch := range channelsOf(t.State) {
		c := &q.channels[ch]
		if len(c.tones) >= QueueSize {
			q.log.Warn("channel %d full, tone dropped", ch)
			continue
		}
		c.tones = append(c.tones, t)
		if t.State&holdBit != 0 {
			c.held = true
		}
		if !c.playing && !c.held {
			q.start(ch)
		}
	}
}

// start begins the tone at the head of a channel; the caller holds mu.
func (q *Queue) start(ch int) {
	c := &q.channels[ch]
	if len(c.tones) == 0 {
		c.playing = false
		return
	}
	c.playing = true
	c.remaining = frames(c.tones[0].Duration)
	q.events = append(q.events, Event{Channel: ch, Tone: c.tones[0]})
	q.log.Debug("channel %d plays period %d for %d frames", ch, c.tones[0].Period, c.remaining)
}

// Tick advances all channels by one frame.
func (q *Queue) Tick() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for ch := range q.channels {
		c := &q.channels[ch]
		if !c.playing {
			continue
		}
		c.remaining--
		if c.remaining > 0 {
			continue
		}
		c.tones = c.tones[1:]
		q.start(ch)
	}
}

// ChannelStatus returns the SQ value of a channel: free slots in bits 0-2,
// bit 6 when held, bit 7 while a tone plays.
func (q *Queue) ChannelStatus(ch int) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if ch < 0 || ch >= Channels {
		return 0
	}
	c := &q.channels[ch]
	status := QueueSize - len(c.tones)
	if c.held {
		status |= statusHeld
	}
	if c.playing {
		status |= statusPlay
	}
	return status
}

// Release lets held channels of mask (bit 0: A, 1: B, 2: C) start playing.
func (q *Queue) Release(mask int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, ch := range channelsOf(mask) {
		c := &q.channels[ch]
		if !c.held {
			continue
		}
		c.held = false
		if !c.playing {
			q.start(ch)
		}
	}
}

// Bell records a CHR$(7).
func (q *Queue) Bell() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.bells++
	q.events = append(q.events, Event{Bell: true})
}

// Bells returns the number of bells rung so far.
func (q *Queue) Bells() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.bells
}

// Events returns and clears the pending events.
func (q *Queue) Events() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	ev := q.events
	q.events = nil
	return ev
}

// Busy reports whether any channel still has tones.
func (q *Queue) Busy() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, c := range q.channels {
		if len(c.tones) > 0 {
			return true
		}
	}
	return false
}

// Reset empties all channels.
func (q *Queue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.channels = [Channels]channel{}
	q.events = nil
}

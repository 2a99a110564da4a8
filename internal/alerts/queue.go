package alerts

import (
	"log/slog"
	"sync"
	"time"

	"github.com/zexaal/stream-companion/internal/metrics"
)

const (
	defaultAlertDuration = 5 * time.Second
	safetyMargin         = 2 * time.Second
)

// Broadcaster is the overlay-facing side of the queue, implemented by the
// alerts widget server.
type Broadcaster interface {
	Broadcast(payload any)
	HasActiveClients() bool
}

// Queue plays alerts strictly one at a time. Playback is gated on a
// connected overlay: with no clients the queue holds everything until one
// attaches. A safety timer frees the queue if the overlay never acks.
type Queue struct {
	out Broadcaster

	mu          sync.Mutex
	pending     []Alert
	isPlaying   bool
	safetyTimer *time.Timer
}

func NewQueue(out Broadcaster) *Queue {
	return &Queue{out: out}
}

type alertFrame struct {
	Type  string `json:"type"`
	Alert Alert  `json:"alert"`
}

func (q *Queue) Add(alert Alert) {
	slog.Info("Alert queued", "type", alert.Type)
	metrics.AlertsEnqueued.WithLabelValues(alert.Type).Inc()

	q.mu.Lock()
	q.pending = append(q.pending, alert)
	q.mu.Unlock()

	q.process()
}

func (q *Queue) process() {
	q.mu.Lock()
	if q.isPlaying || len(q.pending) == 0 || !q.out.HasActiveClients() {
		q.mu.Unlock()
		return
	}

	next := q.pending[0]
	q.pending = q.pending[1:]
	q.isPlaying = true

	duration := defaultAlertDuration
	if next.DurationMS > 0 {
		duration = time.Duration(next.DurationMS) * time.Millisecond
	}

	if q.safetyTimer != nil {
		q.safetyTimer.Stop()
	}
	q.safetyTimer = time.AfterFunc(duration+safetyMargin, q.safetyTimeout)
	q.mu.Unlock()

	metrics.AlertsPlayed.Inc()
	q.out.Broadcast(alertFrame{Type: "alert", Alert: next})
}

func (q *Queue) safetyTimeout() {
	q.mu.Lock()
	if !q.isPlaying {
		q.mu.Unlock()
		return
	}
	slog.Info("Alert safety timeout")
	metrics.AlertTimeouts.Inc()
	q.isPlaying = false
	q.mu.Unlock()

	q.process()
}

// Finished is called when the overlay acks the end of a playback.
func (q *Queue) Finished() {
	q.mu.Lock()
	q.isPlaying = false
	if q.safetyTimer != nil {
		q.safetyTimer.Stop()
	}
	q.mu.Unlock()

	q.process()
}

// SkipCurrent tells the overlay to cut the running alert and moves on.
func (q *Queue) SkipCurrent() {
	q.out.Broadcast(map[string]string{"type": "skip"})

	q.mu.Lock()
	q.isPlaying = false
	if q.safetyTimer != nil {
		q.safetyTimer.Stop()
	}
	q.mu.Unlock()

	q.process()
}

// ClientConnected resets the playing flag; a fresh overlay cannot be mid
// playback, and a stuck flag from a dead client would wedge the queue.
func (q *Queue) ClientConnected() {
	q.mu.Lock()
	q.isPlaying = false
	q.mu.Unlock()

	q.process()
}

// Len reports queued alerts, not counting one currently playing.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

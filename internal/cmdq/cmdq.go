// internal/cmdq/cmdq.go

// Package cmdq provides the rate-limited job queue that serializes every
// outbound command on a single game-network connection. Commands are
// delayed, never reordered; while the connection is down the queue blocks
// and retries draining with jittered exponential backoff.
package cmdq

import (
	"math/rand"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Job is one outbound command. Errors are the scheduler's business: the
// queue retries draining when blocked, never a job that already ran.
type Job func()

type state int

const (
	stateIdle state = iota
	stateRunning
	stateBlocked
)

// Queue is a FIFO of Jobs drained one at a time with a fixed delay
// between executions. Safe for concurrent use.
type Queue struct {
	mu        sync.Mutex
	jobs      []Job
	state     state
	active    bool // a drain chain (running job or armed timer) exists
	retries   int
	timer     *time.Timer
	rateLimit time.Duration
	backoff   time.Duration
	rng       *rand.Rand
}

// New returns a Queue that waits rateLimit between jobs and uses backoff
// as the base unit for blocked-retry delays.
func New(rateLimit, backoff time.Duration) *Queue {
	return &Queue{
		rateLimit: rateLimit,
		backoff:   backoff,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Schedule appends job and starts draining if nothing is draining yet.
func (q *Queue) Schedule(job Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	if q.state == stateIdle {
		q.state = stateRunning
	}
	q.startChainLocked(0)
}

// Block halts draining. Pending jobs are kept; drain attempts made while
// blocked reschedule themselves with growing jittered delays.
func (q *Queue) Block() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.state = stateBlocked
}

// Release resumes draining after a Block.
func (q *Queue) Release() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.state != stateBlocked {
		return
	}
	q.retries = 0
	q.state = stateRunning
	if !q.active {
		if len(q.jobs) > 0 {
			q.startChainLocked(0)
		} else {
			q.state = stateIdle
		}
		return
	}
	// The chain is parked on a backoff timer; pull it forward.
	if q.timer != nil && q.timer.Stop() {
		q.timer = time.AfterFunc(0, q.drain)
	}
}

// Clear discards all pending jobs and resets the retry counter. The
// blocked/unblocked status is untouched.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = nil
	q.retries = 0
}

// Len reports the number of jobs not yet executed.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// startChainLocked arms the drain timer if no chain is alive. A live
// chain keeps ownership until it parks the queue back to idle, so at
// most one timer or running job exists at any time. Caller holds q.mu.
func (q *Queue) startChainLocked(delay time.Duration) {
	if q.active {
		return
	}
	q.active = true
	q.timer = time.AfterFunc(delay, q.drain)
}

// drain pops and runs the head job, then re-arms itself after rateLimit.
func (q *Queue) drain() {
	q.mu.Lock()
	if q.state == stateBlocked {
		delay := q.blockedDelayLocked()
		q.timer = time.AfterFunc(delay, q.drain)
		q.mu.Unlock()
		return
	}
	if len(q.jobs) == 0 {
		q.state = stateIdle
		q.active = false
		q.mu.Unlock()
		return
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	q.mu.Unlock()

	func() {
		defer func() {
			if r := recover(); r != nil {
				log.Warnf("cmdq: job panicked: %v", r)
			}
		}()
		job()
	}()

	q.mu.Lock()
	q.retries = 0
	if q.state != stateBlocked && len(q.jobs) == 0 {
		q.state = stateIdle
		q.active = false
		q.mu.Unlock()
		return
	}
	q.timer = time.AfterFunc(q.rateLimit, q.drain)
	q.mu.Unlock()
}

// blockedDelayLocked computes uniform(0, retries+1) * backoff and bumps
// the retry counter. Caller holds q.mu.
func (q *Queue) blockedDelayLocked() time.Duration {
	delay := time.Duration(q.rng.Float64() * float64(q.retries+1) * float64(q.backoff))
	q.retries++
	return delay
}

package jobqueue

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
)

// sweepSchedule is how often the Redis processing list is checked.
const sweepSchedule = "@every 1m"

// Manager owns the queue backend and its scheduled maintenance.
type Manager struct {
	queue   Backend
	redisQ  *Queue
	sched   *cron.Cron
	mu      sync.Mutex
	running bool
}

// NewManager picks the Redis queue when client is set and the in-memory queue
// otherwise.
func NewManager(client *redis.Client, workers int) *Manager {
	if client != nil {
		q := NewQueueWithClient(client, workers)
		return &Manager{queue: q, redisQ: q}
	}
	return &Manager{queue: NewMemoryQueue(workers, 0)}
}

// GetQueue returns the managed job queue
func (m *Manager) GetQueue() Backend {
	return m.queue
}

// Start starts the job queue and, for Redis, the stuck-job sweeper.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}
	m.running = true
	log.Info("[JobQueue Manager] Starting job queue")

	m.queue.Start()

	if m.redisQ != nil {
		m.sched = cron.New()
		if _, err := m.sched.AddFunc(sweepSchedule, m.sweepOnce); err != nil {
			log.Errorf("[JobQueue Manager] Could not schedule stuck sweeper: %v", err)
		} else {
			log.Infof("[JobQueue Manager] Stuck sweeper scheduled (%s, maxAge=%s)", sweepSchedule, StuckJobMaxAge)
		}
		m.sched.Start()
	}
}

// Stop stops the scheduler, then the queue. Running jobs are waited for.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	log.Info("[JobQueue Manager] Stopping job queue...")

	if m.sched != nil {
		<-m.sched.Stop().Done()
		m.sched = nil
	}
	m.queue.Stop()
	m.running = false

	log.Info("[JobQueue Manager] Stopped successfully")
}

func (m *Manager) sweepOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	n, err := m.redisQ.SweepStuck(ctx, StuckJobMaxAge)
	if err != nil {
		log.Errorf("[JobQueue Manager] Stuck sweep failed: %v", err)
		return
	}
	if n > 0 {
		log.Infof("[JobQueue Manager] Recovered %d stuck jobs", n)
	}
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

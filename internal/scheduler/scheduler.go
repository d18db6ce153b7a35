package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/dwv2/weather-fusion/internal/cache"
	"github.com/dwv2/weather-fusion/internal/store"
	"github.com/dwv2/weather-fusion/internal/weather"
)

// Scheduler runs the periodic maintenance jobs: sweeping aged readings out
// of the station store and cache, and pre-warming the cache for configured
// coordinates so first queries after startup are hits.
type Scheduler struct {
	scheduler *gocron.Scheduler
	stations  *store.StationStore
	cache     *cache.Cache
	warm      []weather.Coordinate
	interval  time.Duration
}

// New creates a Scheduler. warm may be empty.
func New(stations *store.StationStore, c *cache.Cache, warm []weather.Coordinate, interval time.Duration) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		stations:  stations,
		cache:     c,
		warm:      warm,
		interval:  interval,
	}
}

// Start schedules the maintenance job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if _, err := s.scheduler.Every(s.interval).Do(s.runOnce); err != nil {
		return err
	}
	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

func (s *Scheduler) runOnce() {
	if n := s.stations.Sweep(); n > 0 {
		log.Printf("scheduler: swept %d aged station readings", n)
	}
	if n := s.cache.Sweep(); n > 0 {
		log.Printf("scheduler: evicted %d dead cache entries", n)
	}

	for _, coord := range s.warm {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if _, err := s.cache.Get(ctx, coord); err != nil {
			log.Printf("scheduler: warm fetch failed for %s: %v", coord.Bucket(), err)
		}
		cancel()
	}
}

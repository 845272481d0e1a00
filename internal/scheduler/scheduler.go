package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/google/uuid"

	"github.com/gothamair/airpulse/internal/aq"
)

// runTimeout bounds one full pipeline run for a single area, covering the
// discovery call and the whole enrichment fan-out.
const runTimeout = 60 * time.Second

// SnapshotStore is the subset of the store the scheduler needs.
type SnapshotStore interface {
	SaveSnapshot(snap aq.Snapshot)
}

// Scheduler periodically refreshes snapshots for the configured watch areas.
type Scheduler struct {
	scheduler *gocron.Scheduler
	pipeline  *aq.Pipeline
	store     SnapshotStore
	areas     []aq.WatchArea
	interval  time.Duration

	// OnSnapshot, when set, is invoked after each stored snapshot.
	OnSnapshot func(snap aq.Snapshot)
}

// New creates a new Scheduler.
func New(areas []aq.WatchArea, interval time.Duration, pipeline *aq.Pipeline, store SnapshotStore) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		pipeline:  pipeline,
		store:     store,
		areas:     areas,
		interval:  interval,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if len(s.areas) == 0 {
		log.Println("scheduler: no watch areas configured; nothing to schedule")
		return nil
	}

	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 15
	}

	_, err := s.scheduler.Every(minutes).Minutes().Do(s.refreshAll)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// refreshAll runs the pipeline for every watch area. A failing area logs and
// keeps its last good snapshot; other areas are unaffected.
func (s *Scheduler) refreshAll() {
	log.Println("scheduler: running air-quality refresh job")

	var wg sync.WaitGroup
	for _, area := range s.areas {
		area := area
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.refresh(area)
		}()
	}
	wg.Wait()

	log.Println("scheduler: completed air-quality refresh job")
}

func (s *Scheduler) refresh(area aq.WatchArea) {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	rs, err := s.pipeline.Run(ctx, area.Request)
	if err != nil {
		// Keep the last good snapshot if any.
		log.Printf("scheduler: refresh failed for %s: %v", area.Key(), err)
		return
	}

	snap := aq.Snapshot{
		ID:        uuid.NewString(),
		Area:      area.Key(),
		Request:   area.Request,
		FetchedAt: time.Now().UTC(),
		Result:    rs,
	}
	s.store.SaveSnapshot(snap)

	if s.OnSnapshot != nil {
		s.OnSnapshot(snap)
	}
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

package baseline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/alitto/pond/v2"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"meterdata-etl/config"
	"meterdata-etl/input"
	"meterdata-etl/models"
	"meterdata-etl/repository"
)

// Stores groups the stores the aggregation writes to
type Stores struct {
	Baselines   repository.BaselineRepository
	Diagnostics repository.DiagnosticsRepository
}

type JobConfig struct {
	TaskId         string
	CompanyId      int64
	Devices        map[string][]string
	ModellingUnits map[string][]models.Multiplier
	Workers        int
	Clock          clockwork.Clock
	Metrics        *BaselineMetrics
}

// Stats summarizes one aggregation run
type Stats struct {
	Lines   int
	Dropped int
	Routed  int
	Written int
	Skipped int
}

type sequenced struct {
	seq    int
	record models.AlignRecord
}

// shuffle groups the routed records by modelling unit
type shuffle struct {
	mu     sync.Mutex
	groups map[string][]sequenced
}

func (s *shuffle) emit(unitId string, seq int, record models.AlignRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[unitId] = append(s.groups[unitId], sequenced{seq: seq, record: record})
}

func (s *shuffle) keys() []string {
	keys := make([]string, 0, len(s.groups))
	for key := range s.groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// values returns the records of unitId in input order
func (s *shuffle) values(unitId string) []models.AlignRecord {
	group := s.groups[unitId]
	sort.SliceStable(group, func(i, j int) bool { return group[i].seq < group[j].seq })
	records := make([]models.AlignRecord, len(group))
	for i, value := range group {
		records[i] = value.record
	}
	return records
}

type reduceOutcome struct {
	unitId  string
	written bool
}

// RunBaseline routes the lines of reader to their modelling units and stores a baseline per unit.
// A unit that fails is reported to the diagnostics and skipped; store outages abort the run.
func RunBaseline(ctx context.Context, reader io.Reader, engine BaselineEngine, stores Stores, cfg JobConfig) (Stats, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = config.GetDefaultWorkers()
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewBaselineMetrics(prometheus.NewRegistry())
	}

	orchestrator := NewOrchestrator(engine, stores.Baselines, stores.Diagnostics, cfg.Clock, cfg.TaskId, cfg.CompanyId, cfg.Metrics)

	groups, stats, err := mapLines(ctx, reader, NewRouter(cfg.Devices), orchestrator, cfg)
	if err != nil {
		log.Error(err)
		return stats, err
	}

	pool := pond.NewResultPool[reduceOutcome](cfg.Workers)
	defer pool.StopAndWait()

	group := pool.NewGroupContext(ctx)
	for _, key := range groups.keys() {
		key := key
		records := groups.values(key)
		group.SubmitErr(func() (reduceOutcome, error) {
			return reduce(ctx, orchestrator, key, cfg.ModellingUnits, records)
		})
	}

	outcomes, err := group.Wait()
	if err != nil {
		log.Error(err)
		return stats, err
	}
	for _, outcome := range outcomes {
		if outcome.written {
			stats.Written++
		} else {
			stats.Skipped++
			cfg.Metrics.ModellingUnitsSkipped.Inc()
		}
	}

	log.WithFields(log.Fields{
		"lines":   stats.Lines,
		"dropped": stats.Dropped,
		"routed":  stats.Routed,
		"written": stats.Written,
		"skipped": stats.Skipped,
	}).Info("baseline run finished")
	return stats, nil
}

//mapLines parses the lines with cfg.Workers mappers and groups the records by modelling unit
func mapLines(ctx context.Context, reader io.Reader, router *Router, orchestrator *Orchestrator, cfg JobConfig) (*shuffle, Stats, error) {
	groups := &shuffle{groups: map[string][]sequenced{}}

	lines := make(chan input.Line, cfg.Workers*2)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		readErr <- input.ReadLines(ctx, reader, lines)
	}()

	var mu sync.Mutex
	var stats Stats
	wg := sync.WaitGroup{}
	for worker := 0; worker < cfg.Workers; worker++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var local Stats
			for line := range lines {
				local.Lines++
				cfg.Metrics.LinesReadTotal.Inc()

				record, err := ParseLine(line.Text)
				if err == nil {
					var units []string
					if units, err = router.Route(record); err == nil {
						for _, unitId := range units {
							groups.emit(unitId, line.Number, record)
						}
						local.Routed += len(units)
						cfg.Metrics.RecordsRoutedTotal.Add(float64(len(units)))
						continue
					}
				}
				local.Dropped++
				cfg.Metrics.LineParseErrorsTotal.Inc()
				orchestrator.Error(ctx, fmt.Sprintf("line %d: %v", line.Number, err))
			}
			mu.Lock()
			stats.Lines += local.Lines
			stats.Dropped += local.Dropped
			stats.Routed += local.Routed
			mu.Unlock()
		}()
	}
	wg.Wait()

	if err := <-readErr; err != nil {
		return nil, stats, err
	}
	return groups, stats, nil
}

// reduce runs the orchestrator for one modelling unit key. Any failure other than a store outage,
// panics included, only skips the unit.
func reduce(ctx context.Context, orchestrator *Orchestrator, key string, configured map[string][]models.Multiplier, records []models.AlignRecord) (outcome reduceOutcome, err error) {
	outcome.unitId = key
	defer func() {
		if r := recover(); r != nil {
			orchestrator.Error(ctx, fmt.Sprintf("modelling unit %s: panic: %v", key, r))
			outcome.written = false
			err = nil
		}
	}()

	unit, err := ResolveUnit(key, configured)
	if err == nil {
		outcome.unitId = unit.Id
		err = orchestrator.Run(ctx, unit, records)
	}
	if err != nil {
		if errors.Is(err, repository.ErrStoreUnavailable) {
			return outcome, err
		}
		orchestrator.Error(ctx, fmt.Sprintf("modelling unit %s: %v", outcome.unitId, err))
		return outcome, nil
	}
	outcome.written = true
	return outcome, nil
}

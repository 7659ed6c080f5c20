package baseline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"

	"meterdata-etl/config"
	"meterdata-etl/models"
	"meterdata-etl/repository"
)

// Orchestrator computes and stores the baseline of one modelling unit at a time
type Orchestrator struct {
	engine      BaselineEngine
	baselines   repository.BaselineRepository
	diagnostics repository.DiagnosticsRepository
	clock       clockwork.Clock
	taskId      string
	companyId   int64
	metrics     *BaselineMetrics
}

func NewOrchestrator(engine BaselineEngine, baselines repository.BaselineRepository, diagnostics repository.DiagnosticsRepository,
	clock clockwork.Clock, taskId string, companyId int64, metrics *BaselineMetrics) *Orchestrator {
	return &Orchestrator{
		engine:      engine,
		baselines:   baselines,
		diagnostics: diagnostics,
		clock:       clock,
		taskId:      taskId,
		companyId:   companyId,
		metrics:     metrics,
	}
}

// Run builds the composite of unit from records (in arrival order), has the engine compute its
// baseline and replaces the stored baseline of the unit
func (o *Orchestrator) Run(ctx context.Context, unit models.ModellingUnit, records []models.AlignRecord) error {
	o.Debug(ctx, config.GetDebugStartingTask()+" "+unit.Id)
	composite := Compose(unit, BuildDeviceSeries(records))
	if len(composite.Devices) == 0 {
		return fmt.Errorf("modelling unit %s has no contributing devices", unit.Id)
	}

	o.Debug(ctx, config.GetDebugStartBaseline()+" "+unit.Id)
	start := o.clock.Now()
	fields, err := o.engine.Compute(ctx, NewEngineRequest(unit, o.companyId, composite))
	o.metrics.EngineDuration.Observe(o.clock.Since(start).Seconds())
	if err != nil {
		return err
	}
	o.Debug(ctx, config.GetDebugFinishedBaseline()+" "+unit.Id)

	devices, err := json.Marshal(unit.Multipliers)
	if err != nil {
		return err
	}
	err = o.baselines.UpsertBaseline(ctx, models.BaselineDocument{
		CompanyId:       o.companyId,
		ModellingUnitId: unit.Id,
		Devices:         string(devices),
		Created:         o.clock.Now().UTC(),
		Fields:          fields,
	})
	if err != nil {
		return err
	}
	o.metrics.BaselinesWrittenTotal.Inc()
	log.WithFields(log.Fields{"modellingUnitId": unit.Id, "devices": composite.Devices}).Debug("baseline stored")
	return nil
}

// Debug appends a progress marker for the task. Failures are only logged.
func (o *Orchestrator) Debug(ctx context.Context, message string) {
	if err := o.diagnostics.AppendDebug(ctx, o.taskId, message); err != nil {
		log.WithError(err).Warn("could not write debug marker")
	}
}

// Error appends an error entry for the task. Failures are only logged.
func (o *Orchestrator) Error(ctx context.Context, message string) {
	log.WithField("taskId", o.taskId).Warn(message)
	if err := o.diagnostics.AppendError(ctx, o.taskId, message); err != nil {
		log.WithError(err).Warn("could not write error entry")
	}
}

package baseline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	log "github.com/sirupsen/logrus"

	"meterdata-etl/models"
)

// EnginePoint is one row of a series handed to the baseline engine. Absent values are null.
type EnginePoint struct {
	Timestamp int64    `json:"ts"`
	Value     *float64 `json:"value"`
}

// EngineRequest holds everything the baseline engine receives for one modelling unit
type EngineRequest struct {
	ModellingUnitId string              `json:"modellingUnitId"`
	CompanyId       int64               `json:"companyId"`
	Multipliers     []models.Multiplier `json:"multipliers"`
	Temperature     []EnginePoint       `json:"temperature"`
	Values          []EnginePoint       `json:"values"`
}

// BaselineEngine computes the baseline fields of a modelling unit. It must not write anything itself.
type BaselineEngine interface {
	Compute(ctx context.Context, request EngineRequest) (map[string]interface{}, error)
}

// NewEngineRequest converts the composite of unit to the engine's input
func NewEngineRequest(unit models.ModellingUnit, companyId int64, composite models.CompositeSeries) EngineRequest {
	request := EngineRequest{
		ModellingUnitId: unit.Id,
		CompanyId:       companyId,
		Multipliers:     uniqueMultipliers(unit.Multipliers),
		Temperature:     make([]EnginePoint, 0, len(composite.Temperature)),
		Values:          make([]EnginePoint, 0, len(composite.Values)),
	}
	for _, point := range composite.Temperature {
		request.Temperature = append(request.Temperature, enginePoint(point.Timestamp.Unix(), point.Temperature.Float64, point.Temperature.Valid))
	}
	for _, point := range composite.Values {
		request.Values = append(request.Values, enginePoint(point.Timestamp.Unix(), point.Value.Float64, point.Value.Valid))
	}
	return request
}

func enginePoint(ts int64, value float64, valid bool) EnginePoint {
	if !valid {
		return EnginePoint{Timestamp: ts}
	}
	v := value
	return EnginePoint{Timestamp: ts, Value: &v}
}

// CommandEngine runs an external program that reads an EngineRequest as JSON on stdin and writes
// the baseline fields as a JSON object on stdout
type CommandEngine struct {
	Path string
	Args []string
}

func NewCommandEngine(command string) (*CommandEngine, error) {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return nil, fmt.Errorf("baseline engine command is empty")
	}
	return &CommandEngine{Path: parts[0], Args: parts[1:]}, nil
}

func (e *CommandEngine) Compute(ctx context.Context, request EngineRequest) (map[string]interface{}, error) {
	input, err := json.Marshal(request)
	if err != nil {
		return nil, err
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.Path, e.Args...)
	cmd.Stdin = bytes.NewReader(input)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("baseline engine failed for %s: %w: %s", request.ModellingUnitId, err, strings.TrimSpace(stderr.String()))
	}
	if stderr.Len() > 0 {
		log.WithField("modellingUnitId", request.ModellingUnitId).Debug(strings.TrimSpace(stderr.String()))
	}

	fields := map[string]interface{}{}
	if err := json.Unmarshal(stdout.Bytes(), &fields); err != nil {
		return nil, fmt.Errorf("baseline engine returned invalid output for %s: %w", request.ModellingUnitId, err)
	}
	return fields, nil
}

// Package baseline builds the composite series of every modelling unit and persists the baseline
// computed for it.
package baseline

import (
	"encoding/json"
	"fmt"
	"strings"

	"meterdata-etl/config"
	"meterdata-etl/models"
	"meterdata-etl/utils"
)

// ParseLine parses deviceId<TAB>epochSeconds<TAB>value<TAB>energyType[<TAB>temperature].
// A value or temperature that is not a finite number is absent; the record itself is still valid.
func ParseLine(line string) (models.AlignRecord, error) {
	fields := strings.Split(line, config.GetLineFieldDelimiter())
	if len(fields) < 4 {
		return models.AlignRecord{}, fmt.Errorf("expected at least 4 fields, got %d", len(fields))
	}
	deviceId := strings.TrimSpace(fields[0])
	if deviceId == "" {
		return models.AlignRecord{}, fmt.Errorf("empty device id")
	}
	seconds := utils.ParseFiniteFloat(fields[1])
	if !seconds.Valid {
		return models.AlignRecord{}, fmt.Errorf("invalid timestamp %q", fields[1])
	}

	record := models.AlignRecord{
		DeviceId:   deviceId,
		Timestamp:  utils.EpochToTime(seconds.Float64),
		Value:      utils.ParseFiniteFloat(fields[2]),
		EnergyType: strings.TrimSpace(fields[3]),
	}
	if len(fields) > 4 {
		record.Temperature = utils.ParseFiniteFloat(fields[4])
	}
	return record, nil
}

// Router fans a record out to every modelling unit its device belongs to
type Router struct {
	devices map[string][]string
}

func NewRouter(devices map[string][]string) *Router {
	return &Router{devices: devices}
}

// Route returns the modelling units record must be sent to. A device without units is an error.
func (r *Router) Route(record models.AlignRecord) ([]string, error) {
	units, ok := r.devices[record.DeviceId]
	if !ok || len(units) == 0 {
		return nil, fmt.Errorf("device %s is not part of any modelling unit", record.DeviceId)
	}
	return units, nil
}

// ResolveUnit returns the composition of the modelling unit key. A key of the form
// id~[{"deviceId":...,"multiplier":...}] carries its own multipliers; other keys are looked up in
// configured. A unit without multipliers is returned empty so none of its devices contribute.
func ResolveUnit(key string, configured map[string][]models.Multiplier) (models.ModellingUnit, error) {
	id, embedded, found := strings.Cut(key, config.GetRowKeySeparator())
	if !found {
		return models.ModellingUnit{Id: key, Multipliers: configured[key]}, nil
	}
	var multipliers []models.Multiplier
	if err := json.Unmarshal([]byte(embedded), &multipliers); err != nil {
		return models.ModellingUnit{Id: id}, fmt.Errorf("invalid multipliers for modelling unit %s: %w", id, err)
	}
	return models.ModellingUnit{Id: id, Multipliers: multipliers}, nil
}

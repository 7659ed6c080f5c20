package baseline

import (
	"database/sql"
	"sort"
	"time"

	"meterdata-etl/models"
)

// BuildDeviceSeries splits records per device and orders each series by timestamp. Records are
// expected in arrival order; of several records with the same timestamp the last one is kept.
func BuildDeviceSeries(records []models.AlignRecord) map[string]models.Series {
	perDevice := map[string][]models.AlignRecord{}
	for _, record := range records {
		perDevice[record.DeviceId] = append(perDevice[record.DeviceId], record)
	}

	series := make(map[string]models.Series, len(perDevice))
	for deviceId, deviceRecords := range perDevice {
		sort.SliceStable(deviceRecords, func(i, j int) bool {
			return deviceRecords[i].Timestamp.Before(deviceRecords[j].Timestamp)
		})

		points := make(models.Series, 0, len(deviceRecords))
		for i, record := range deviceRecords {
			if i+1 < len(deviceRecords) && deviceRecords[i+1].Timestamp.Equal(record.Timestamp) {
				continue
			}
			points = append(points, models.SeriesPoint{
				Timestamp:   record.Timestamp,
				Value:       record.Value,
				Temperature: record.Temperature,
			})
		}
		series[deviceId] = points
	}
	return series
}

// uniqueMultipliers keeps one multiplier per device: the last weight listed, at the position the
// device was first listed.
func uniqueMultipliers(multipliers []models.Multiplier) []models.Multiplier {
	weights := make(map[string]float64, len(multipliers))
	unique := make([]models.Multiplier, 0, len(multipliers))
	for _, multiplier := range multipliers {
		if _, seen := weights[multiplier.DeviceId]; !seen {
			unique = append(unique, multiplier)
		}
		weights[multiplier.DeviceId] = multiplier.Multiplier
	}
	for i := range unique {
		unique[i].Multiplier = weights[unique[i].DeviceId]
	}
	return unique
}

// Compose sums the weighted series of the devices listed by unit. Devices without a multiplier are
// ignored and a device listed twice contributes once, with its last weight. The temperature comes from
// the first contributing device in multiplier order.
func Compose(unit models.ModellingUnit, series map[string]models.Series) models.CompositeSeries {
	var composite models.CompositeSeries
	sums := map[int64]sql.NullFloat64{}
	instants := map[int64]time.Time{}

	for _, multiplier := range uniqueMultipliers(unit.Multipliers) {
		deviceSeries, ok := series[multiplier.DeviceId]
		if !ok {
			continue
		}
		if len(composite.Devices) == 0 {
			composite.Temperature = temperatureSeries(deviceSeries)
		}
		composite.Devices = append(composite.Devices, multiplier.DeviceId)

		for _, point := range deviceSeries {
			key := point.Timestamp.UnixNano()
			instants[key] = point.Timestamp
			sum := sums[key]
			if point.Value.Valid {
				sum.Float64 += multiplier.Multiplier * point.Value.Float64
				sum.Valid = true
			}
			sums[key] = sum
		}
	}

	keys := make([]int64, 0, len(sums))
	for key := range sums {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	composite.Values = make(models.Series, 0, len(keys))
	for _, key := range keys {
		composite.Values = append(composite.Values, models.SeriesPoint{Timestamp: instants[key], Value: sums[key]})
	}
	return composite
}

func temperatureSeries(deviceSeries models.Series) models.Series {
	temperature := make(models.Series, 0, len(deviceSeries))
	for _, point := range deviceSeries {
		temperature = append(temperature, models.SeriesPoint{Timestamp: point.Timestamp, Temperature: point.Temperature})
	}
	return temperature
}

package processor

import (
	"sort"
	"strconv"
	"strings"

	"meterdata-etl/config"
	"meterdata-etl/models"
	"meterdata-etl/utils"
)

// AssembleColumnRow turns the channels of an enriched measurement into the cells of one row.
// Channels whose value is not a finite number are left out and returned in excluded.
func AssembleColumnRow(measurement models.EnrichedMeasurement) (row models.ColumnRow, excluded []string) {
	channels := make([]string, 0, len(measurement.Values))
	for channel := range measurement.Values {
		channels = append(channels, channel)
	}
	sort.Strings(channels)

	instant := isInstantPeriod(measurement.Reading.Period)
	family := config.GetColumnFamily() + ":"

	row = models.ColumnRow{}
	sum := 0.0
	for _, channel := range channels {
		value := utils.ToFiniteFloat(measurement.Values[channel])
		if !value.Valid {
			excluded = append(excluded, channel)
			continue
		}
		normalized := utils.NormalizeUnit(measurement.Reading.Unit, value.Float64)
		if instant {
			row[family+channel] = utils.FormatFloat(normalized)
			sum += normalized
		} else {
			row[family+channel+config.GetAccumulatedColumnSuffix()] = utils.FormatFloat(normalized)
		}
	}

	if instant {
		row[family+config.GetSumColumn()] = utils.FormatFloat(sum)
		row[family+config.GetCalculatedColumn()] = config.GetCalculatedPlaceholder()
	}
	return row, excluded
}

func isInstantPeriod(period string) bool {
	for _, p := range config.GetInstantPeriods() {
		if strings.EqualFold(p, period) {
			return true
		}
	}
	return false
}

// RowKey builds the row key of measurement from the configured fields
func RowKey(fields []string, measurement models.EnrichedMeasurement) (string, error) {
	return utils.BuildRowKey(fields, func(field string) (string, bool) {
		return rowKeyField(measurement, field)
	})
}

func rowKeyField(measurement models.EnrichedMeasurement, field string) (string, bool) {
	ts := measurement.Timestamp.Unix()
	switch field {
	case "deviceId":
		return measurement.DeviceId, true
	case "companyId":
		return measurement.CompanyId, true
	case "timestamp":
		return strconv.FormatInt(ts, 10), true
	case "bucket":
		return strconv.FormatInt(utils.Bucket(ts), 10), true
	case "reading":
		return measurement.Measurement.Reading, true
	case "period":
		return measurement.Reading.Period, true
	case "unit":
		return measurement.Reading.Unit, true
	case "type":
		return measurement.Reading.Type, true
	}
	return "", false
}

// TableName returns the table measurement is written to: <reading type>_<company id>
func TableName(measurement models.EnrichedMeasurement) string {
	return measurement.Reading.Type + config.GetTableNameDelimiter() + measurement.CompanyId
}

package input

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"meterdata-etl/models"
	"meterdata-etl/sqls"
)

// SQLSource reads measurements from a relational table with the columns
// reading_id, device_id, company_id, ts (epoch seconds) and measurement_values (JSON object)
type SQLSource struct {
	db        *sql.DB
	table     string
	Malformed int
}

func NewSQLSource(db *sql.DB, table string) *SQLSource {
	return &SQLSource{db: db, table: table}
}

//Count finds the number of measurements to be ingested
func (s *SQLSource) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, sqls.GetSQLCountMeasurements(s.table)).Scan(&count)
	if err != nil {
		log.Error(err)
		return 0, err
	}
	return count, nil
}

//Measurements populates the channel with the measurements that will be ingested
func (s *SQLSource) Measurements(ctx context.Context, batches chan<- []models.Measurement, workload int, reject RejectFunc) error {
	rows, err := s.db.QueryContext(ctx, sqls.GetSQLSelectMeasurements(s.table))
	if err != nil {
		log.Error(err)
		return err
	}
	defer rows.Close()

	batch := make([]models.Measurement, 0, workload)
	var readingId, deviceId, companyId string
	var ts int64
	var values sql.NullString
	for rows.Next() {
		if err := rows.Scan(&readingId, &deviceId, &companyId, &ts, &values); err != nil {
			log.Error(err)
			return err
		}

		measurement := models.Measurement{
			Timestamp: time.Unix(ts, 0).UTC(),
			Reading:   readingId,
			DeviceId:  deviceId,
			CompanyId: companyId,
		}
		if values.Valid && values.String != "" {
			if err := json.Unmarshal([]byte(values.String), &measurement.Values); err != nil {
				s.Malformed++
				log.WithFields(log.Fields{"deviceId": deviceId, "ts": ts, "error": err}).Warn("skipping measurement with malformed values")
				if reject != nil {
					reject(fmt.Sprintf("%s device %s ts %d", s.table, deviceId, ts), err)
				}
				continue
			}
		}

		batch = append(batch, measurement)
		if len(batch) == workload {
			if err := send(ctx, batches, batch); err != nil {
				return err
			}
			batch = make([]models.Measurement, 0, workload)
		}
	}
	if err = rows.Err(); err != nil {
		log.Error(err)
		return fmt.Errorf("error reading measurements from %s: %w", s.table, err)
	}

	if len(batch) > 0 {
		return send(ctx, batches, batch)
	}
	return nil
}

package models

import (
	"database/sql"
	"time"
)

//Measurement is one raw meter record as produced by the telemetry source
type Measurement struct {
	Timestamp time.Time              `json:"timestamp" bson:"timestamp"`
	Reading   string                 `json:"reading" bson:"reading"`
	DeviceId  string                 `json:"deviceId" bson:"deviceId"`
	Values    map[string]interface{} `json:"values" bson:"values"`
	CompanyId string                 `json:"companyId" bson:"companyId"`
}

//Reading is the metadata describing how the values of a measurement must be interpreted
type Reading struct {
	Id     string `bson:"_id"`
	Period string `bson:"period"`
	Unit   string `bson:"unit"`
	Type   string `bson:"type"`
}

//EnrichedMeasurement is a measurement whose reading metadata has been resolved
type EnrichedMeasurement struct {
	Measurement
	Reading Reading
}

//QuarantinedMeasurement is a measurement routed away from the main output because it failed enrichment
type QuarantinedMeasurement struct {
	Id              string                 `json:"_id" bson:"_id"`
	Timestamp       time.Time              `json:"timestamp" bson:"timestamp"`
	Reading         string                 `json:"reading" bson:"reading"`
	DeviceId        string                 `json:"deviceId" bson:"deviceId"`
	Values          map[string]interface{} `json:"values" bson:"values"`
	CompanyId       string                 `json:"companyId" bson:"companyId"`
	Error           string                 `json:"error" bson:"error"`
	ErrorDetectedAt time.Time              `json:"error_detected_at" bson:"error_detected_at"`
}

//ColumnRow maps a qualified column (family:qualifier) to its serialized value
type ColumnRow map[string]string

//AlignRecord is one parsed line of the aggregation input
type AlignRecord struct {
	DeviceId    string
	Timestamp   time.Time
	Value       sql.NullFloat64
	EnergyType  string
	Temperature sql.NullFloat64
}

//Multiplier is the weight of one device inside a modelling unit
type Multiplier struct {
	DeviceId   string  `json:"deviceId" bson:"deviceId"`
	Multiplier float64 `json:"multiplier" bson:"multiplier"`
}

//ModellingUnit is a virtual meter defined as a weighted sum of physical devices
type ModellingUnit struct {
	Id          string
	Multipliers []Multiplier
}

//SeriesPoint is one row of a device or composite series
type SeriesPoint struct {
	Timestamp   time.Time
	Value       sql.NullFloat64
	Temperature sql.NullFloat64
}

//Series is a time-ordered table with one row per distinct timestamp
type Series []SeriesPoint

//CompositeSeries holds the weighted sum of a modelling unit and its representative temperature
type CompositeSeries struct {
	Values      Series
	Temperature Series
	Devices     []string
}

//BaselineDocument is the baseline persisted for a modelling unit and company
type BaselineDocument struct {
	CompanyId       int64
	ModellingUnitId string
	Devices         string
	Created         time.Time
	Fields          map[string]interface{}
}

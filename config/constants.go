package config

//GetRowKeySeparator returns the delimiter used between the fields of a row key
func GetRowKeySeparator() string {
	return "~"
}

//GetColumnFamily returns the single column family of every measurement table
func GetColumnFamily() string {
	return "m"
}

//GetTableNameDelimiter returns the delimiter between reading type and company in a table name
func GetTableNameDelimiter() string {
	return "_"
}

//GetAccumulatedColumnSuffix returns the suffix of columns holding accumulated readings
func GetAccumulatedColumnSuffix() string {
	return "a"
}

//GetSumColumn returns the qualifier of the synthesized sum column
func GetSumColumn() string {
	return "v"
}

//GetCalculatedColumn returns the qualifier of the cumulative-to-instant placeholder column
func GetCalculatedColumn() string {
	return "calc"
}

//GetCalculatedPlaceholder returns the value written in the calculated column until the cumulative ETL fills it
func GetCalculatedPlaceholder() string {
	return "0"
}

//GetInstantPeriods returns the periods for which the sum and calculated columns are synthesized
func GetInstantPeriods() []string {
	return []string{"INSTANT", "PULSE"}
}

//GetDefaultRowKey returns the row key used when the configuration does not define one
func GetDefaultRowKey() []string {
	return []string{"deviceId", "timestamp"}
}

//GetRowKeyFields returns the record fields that can take part in a row key
func GetRowKeyFields() []string {
	return []string{"deviceId", "companyId", "timestamp", "bucket", "reading", "period", "unit", "type"}
}

//IsRowKeyField reports whether field can take part in a row key
func IsRowKeyField(field string) bool {
	for _, f := range GetRowKeyFields() {
		if f == field {
			return true
		}
	}
	return false
}

//GetInputDateLayouts returns the accepted layouts of measurement timestamps given as text
func GetInputDateLayouts() []string {
	return []string{"2006-01-02T15:04:05Z07:00", "2006-01-02 15:04:05", "2006-01-02T15:04:05"}
}

//GetReadingsCollection returns the collection holding reading metadata
func GetReadingsCollection() string {
	return "readings"
}

//GetQuarantineCollection returns the collection holding measurements that failed enrichment
func GetQuarantineCollection() string {
	return "amon_measures_measurements_with_errors"
}

//GetDebugCollection returns the collection holding the per task diagnostic record
func GetDebugCollection() string {
	return "debug"
}

//GetDefaultBaselineCollection returns the collection baselines are written to when outputCollection is empty
func GetDefaultBaselineCollection() string {
	return "baselines"
}

//GetMissingReadingError returns the reason stored on measurements whose reading cannot be resolved
func GetMissingReadingError() string {
	return "No reading information related"
}

//GetDebugStartingTask returns the progress marker written when a modelling unit starts
func GetDebugStartingTask() string {
	return "starting task"
}

//GetDebugStartBaseline returns the progress marker written before the baseline engine runs
func GetDebugStartBaseline() string {
	return "start monthly baseline"
}

//GetDebugFinishedBaseline returns the progress marker written after the baseline engine returns
func GetDebugFinishedBaseline() string {
	return "finished monthly baseline"
}

//GetLineFieldDelimiter returns the delimiter of the aggregation input lines
func GetLineFieldDelimiter() string {
	return "\t"
}

//GetTmpExtension returns the temporary extension of quarantine files
func GetTmpExtension() string {
	return ".tmp"
}

//GetFinalExtension returns the final extension of quarantine files
func GetFinalExtension() string {
	return ".json"
}

//GetQuarantineFilePrefix returns the prefix of quarantine file names
func GetQuarantineFilePrefix() string {
	return "QUARANTINE"
}

//GetFileDateLayout returns the date layout used in file names
func GetFileDateLayout() string {
	return "20060102150405"
}

//GetLogFileName return the name of the log file
func GetLogFileName() string {
	return "./out/meterdata-etl.log"
}

//GetDefaultWorkers returns the number of workers used when WORKERS is not configured
func GetDefaultWorkers() int {
	return 6
}

//GetDefaultWorkload returns the number of measurements handed to a worker at once
func GetDefaultWorkload() int {
	return 500
}

//GetDefaultReadingCacheSize returns the number of readings kept per worker when READING_CACHE_SIZE is not configured
func GetDefaultReadingCacheSize() uint64 {
	return 100000
}

//GetDefaultMaxLogfileSize returns the log size in MB after which the log file is archived
func GetDefaultMaxLogfileSize() int64 {
	return 100
}

//GetDefaultDocumentStorePort returns the port of the document store when none is configured
func GetDefaultDocumentStorePort() int {
	return 27017
}

//GetMaxOpenConnections returns the maximum number of open connections to the relational source
func GetMaxOpenConnections() int {
	return 4
}

//GetMaxIdleConnections returns the maximum number of idle connections to the relational source
func GetMaxIdleConnections() int {
	return 2
}

package sqls

//GetSQLSelectMeasurements returns the SQL statement used to retrieve the raw measurements to ingest
func GetSQLSelectMeasurements(table string) string {

	//Create the main body of the SQL statement
	sql :=
		`SELECT
    m.reading_id,
    m.device_id,
    m.company_id,
    m.ts,
    m.measurement_values
FROM
    ` + table + ` m`

	//Set the order of the SQL statement
	sqlOrder := `
ORDER BY m.device_id, m.ts`

	return sql + sqlOrder
}

//GetSQLCountMeasurements returns the SQL statement used to count the raw measurements to ingest
func GetSQLCountMeasurements(table string) string {
	return "SELECT count(*) FROM " + table
}

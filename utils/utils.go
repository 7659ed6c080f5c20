package utils

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"

	"meterdata-etl/config"
	"meterdata-etl/logger"
)

//ParseTimestamp parses a measurement timestamp given as epoch seconds or as text in one of the
//accepted layouts. Text without a zone is taken as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.Trim(strings.TrimSpace(s), `"`)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if seconds, err := strconv.ParseFloat(s, 64); err == nil {
		return EpochToTime(seconds), nil
	}
	for _, layout := range config.GetInputDateLayouts() {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp format: %s", s)
}

//EpochToTime converts (fractional) epoch seconds to a UTC time
func EpochToTime(seconds float64) time.Time {
	whole := int64(seconds)
	nanos := int64((seconds - float64(whole)) * float64(time.Second))
	return time.Unix(whole, nanos).UTC()
}

//PrintMemUsage logs the memory held by the process, mostly to size workers against the reading caches
func PrintMemUsage(logFileLogger *logger.Logger) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	(*logFileLogger).Info(fmt.Sprintf("Alloc = %v MiB, TotalAlloc = %v MiB, Sys = %v MiB, NumGC = %v",
		bToMb(m.Alloc), bToMb(m.TotalAlloc), bToMb(m.Sys), m.NumGC))
}

func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}

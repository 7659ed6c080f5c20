package utils

import "strings"

// Watts, WattHours, VoltAmpHours, VoltAmps, VoltAmpsReactive and WattHours of heat are stored in kilo
var unitsToDivide = map[string]struct{}{
	"w": {}, "wh": {}, "varh": {}, "va": {}, "var": {}, "whth": {},
}

// Their mega counterparts are scaled up to kilo as well
var unitsToMultiply = map[string]struct{}{
	"mw": {}, "mwh": {}, "mvarh": {}, "mva": {}, "mvar": {}, "mwhth": {},
}

//NormalizeUnit converts value expressed in unit to the kilo scale. Unknown units are returned unchanged.
func NormalizeUnit(unit string, value float64) float64 {
	u := strings.ToLower(unit)
	if _, ok := unitsToDivide[u]; ok {
		return value / 1000.0
	}
	if _, ok := unitsToMultiply[u]; ok {
		return value * 1000.0
	}
	return value
}

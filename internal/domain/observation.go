package domain

import "time"

// Parameter is a provider variable code.
type Parameter string

const (
	ParamTempAvg       Parameter = "T2M"
	ParamTempMax       Parameter = "T2M_MAX"
	ParamTempMin       Parameter = "T2M_MIN"
	ParamPrecipitation Parameter = "PRECTOTCORR"
	ParamHumidity      Parameter = "RH2M"
)

// ClimateParameters is the parameter set requested for every chunk.
var ClimateParameters = []Parameter{
	ParamTempAvg,
	ParamTempMax,
	ParamTempMin,
	ParamPrecipitation,
	ParamHumidity,
}

// DailyObservation is one day of provider data for a state. A parameter
// absent from Values is missing for that day.
type DailyObservation struct {
	State  string
	Date   time.Time
	Values map[Parameter]float64
}

// Value returns the parameter value and whether it was observed.
func (o DailyObservation) Value(p Parameter) (float64, bool) {
	v, ok := o.Values[p]
	return v, ok
}

package model

import "strings"

type Parameter string

func (p Parameter) String() string {
	return string(p)
}

const (
	ParameterPM1              Parameter = "pm1"
	ParameterPM25             Parameter = "pm25"
	ParameterPM10             Parameter = "pm10"
	ParameterNO               Parameter = "no"
	ParameterNO2              Parameter = "no2"
	ParameterNOx              Parameter = "nox"
	ParameterO3               Parameter = "o3"
	ParameterSO2              Parameter = "so2"
	ParameterCO               Parameter = "co"
	ParameterCO2              Parameter = "co2"
	ParameterBC               Parameter = "bc"
	ParameterHumidity         Parameter = "humidity"
	ParameterRelativeHumidity Parameter = "relativehumidity"
	ParameterPressure         Parameter = "pressure"
	ParameterTemperature      Parameter = "temperature"
	ParameterTemp             Parameter = "temp"
	ParameterDewPoint         Parameter = "dewpoint"
)

// nonNegative maps known parameters to whether a negative reading is physically impossible.
var nonNegative = map[Parameter]bool{
	ParameterPM1:              true,
	ParameterPM25:             true,
	ParameterPM10:             true,
	ParameterNO:               true,
	ParameterNO2:              true,
	ParameterNOx:              true,
	ParameterO3:               true,
	ParameterSO2:              true,
	ParameterCO:               true,
	ParameterCO2:              true,
	ParameterBC:               true,
	ParameterHumidity:         true,
	ParameterRelativeHumidity: true,
	ParameterPressure:         true,
	ParameterTemperature:      false,
	ParameterTemp:             false,
	ParameterDewPoint:         false,
}

// NonNegative reports whether negative values of the named parameter are
// physically impossible. Unknown parameters report false.
func NonNegative(name string) bool {
	return nonNegative[Parameter(strings.ToLower(strings.TrimSpace(name)))]
}

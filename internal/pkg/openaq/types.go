package openaq

import (
	"bytes"
	"math"
	"strconv"
	"strings"

	"github.com/segmentio/encoding/json"
)

// Meta is the paging block of every list response. It only advises paging, so
// fields of an unexpected type decode to their zero value.
type Meta struct {
	Name  string `json:"name"`
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Found Found  `json:"found"`
}

func (m *Meta) UnmarshalJSON(data []byte) error {
	*m = Meta{}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	if v, ok := raw["name"]; ok {
		_ = json.Unmarshal(v, &m.Name)
	}
	m.Page = looseInt(raw["page"])
	m.Limit = looseInt(raw["limit"])
	if v, ok := raw["found"]; ok {
		_ = m.Found.UnmarshalJSON(v)
	}
	return nil
}

// looseInt reads a JSON number or numeric string, zero otherwise.
func looseInt(data []byte) int {
	n, err := strconv.Atoi(strings.Trim(strings.TrimSpace(string(data)), `"`))
	if err != nil {
		return 0
	}
	return n
}

// Found is the API's total-result hint. It is either an exact count or a
// lower bound such as ">1000", in which case Known is false.
type Found struct {
	Count int
	Known bool
}

func (f *Found) UnmarshalJSON(data []byte) error {
	*f = Found{}
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if n, err := strconv.Atoi(string(data)); err == nil {
		*f = Found{Count: n, Known: true}
	}
	// strings like ">1000" only say there is more.
	return nil
}

// NullFloat decodes a JSON number, a numeric string or null. Anything else
// decodes to an invalid value instead of failing the page.
type NullFloat struct {
	Float64 float64
	Valid   bool
}

func (n *NullFloat) UnmarshalJSON(data []byte) error {
	*n = NullFloat{}
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	*n = NullFloat{Float64: v, Valid: true}
	return nil
}

func (n NullFloat) Ptr() *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

type Datetime struct {
	UTC   string `json:"utc"`
	Local string `json:"local"`
}

type Period struct {
	Label        string    `json:"label"`
	Interval     string    `json:"interval"`
	DatetimeFrom *Datetime `json:"datetimeFrom"`
	DatetimeTo   *Datetime `json:"datetimeTo"`
}

type ParameterInfo struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Units       string `json:"units"`
	DisplayName string `json:"displayName"`
}

// MeasurementRecord is one entry of /sensors/{id}/measurements. A record whose
// shape cannot be decoded at all is kept with Malformed set.
type MeasurementRecord struct {
	Value     NullFloat      `json:"value"`
	Parameter *ParameterInfo `json:"parameter"`
	Period    *Period        `json:"period"`
	Malformed bool           `json:"-"`
}

func (r *MeasurementRecord) UnmarshalJSON(data []byte) error {
	type plain MeasurementRecord
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		*r = MeasurementRecord{Malformed: true}
		return nil
	}
	*r = MeasurementRecord(p)
	return nil
}

type measurementsResponse struct {
	Meta    Meta                `json:"meta"`
	Results []MeasurementRecord `json:"results"`
}

type Country struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type Location struct {
	ID       int64        `json:"id"`
	Name     string       `json:"name"`
	Locality string       `json:"locality"`
	Country  Country      `json:"country"`
	Sensors  []SensorInfo `json:"sensors"`
}

type Latest struct {
	Datetime *Datetime `json:"datetime"`
	Value    NullFloat `json:"value"`
}

type SensorInfo struct {
	ID        int64         `json:"id"`
	Name      string        `json:"name"`
	Parameter ParameterInfo `json:"parameter"`
	Latest    *Latest       `json:"latest"`
}

type locationsResponse struct {
	Meta    Meta       `json:"meta"`
	Results []Location `json:"results"`
}

type sensorsResponse struct {
	Meta    Meta         `json:"meta"`
	Results []SensorInfo `json:"results"`
}

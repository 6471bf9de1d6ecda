// Package registry loads the named station definitions the fetcher works from.
package registry

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/anicoll/airquality-integration/internal/pkg/config"
	"github.com/anicoll/airquality-integration/internal/pkg/model"
)

// ErrUnknownStation is returned by Resolve for keys missing from the registry.
var ErrUnknownStation = fmt.Errorf("%w: unknown station", config.ErrConfiguration)

type document struct {
	Stations map[string]model.StationConfig `yaml:"stations"`
}

// Registry is an immutable set of stations keyed by station key.
type Registry struct {
	stations map[string]model.StationConfig
}

// Load reads and validates the YAML registry at path.
func Load(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open station registry: %w", config.ErrConfiguration, err)
	}
	defer f.Close()
	return Parse(f)
}

func Parse(r io.Reader) (*Registry, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: decode station registry: %w", config.ErrConfiguration, err)
	}

	stations := make(map[string]model.StationConfig, len(doc.Stations))
	for key, st := range doc.Stations {
		st.Key = key
		if err := validate(st); err != nil {
			return nil, fmt.Errorf("%w: station %q: %w", config.ErrConfiguration, key, err)
		}
		st.Sensors = slices.Clone(st.Sensors)
		stations[key] = st
	}
	return &Registry{stations: stations}, nil
}

func validate(st model.StationConfig) error {
	if strings.TrimSpace(st.Key) == "" {
		return errors.New("empty station key")
	}
	if len(st.Sensors) == 0 {
		return errors.New("no sensors configured")
	}
	for i, s := range st.Sensors {
		if strings.TrimSpace(s.Parameter) == "" {
			return fmt.Errorf("sensor %d: empty parameter", i)
		}
		if s.SensorID <= 0 {
			return fmt.Errorf("sensor %d (%s): sensor_id must be positive", i, s.Parameter)
		}
	}
	if st.TimeZone != "" {
		if _, err := time.LoadLocation(st.TimeZone); err != nil {
			return fmt.Errorf("timezone: %w", err)
		}
	}
	if dup := lo.FindDuplicates(st.Parameters()); len(dup) > 0 {
		return fmt.Errorf("duplicate parameters %v", dup)
	}
	return nil
}

// Resolve returns the station registered under key. It never performs I/O.
func (r *Registry) Resolve(key string) (model.StationConfig, error) {
	st, ok := r.stations[key]
	if !ok {
		return model.StationConfig{}, fmt.Errorf("%w %q", ErrUnknownStation, key)
	}
	st.Sensors = slices.Clone(st.Sensors)
	return st, nil
}

// Keys returns the registered station keys in sorted order.
func (r *Registry) Keys() []string {
	keys := lo.Keys(r.stations)
	slices.Sort(keys)
	return keys
}

// Lookup is Resolve without the error, for callers that treat an unknown
// station as "no expectations".
func (r *Registry) Lookup(key string) (model.StationConfig, bool) {
	st, err := r.Resolve(key)
	return st, err == nil
}

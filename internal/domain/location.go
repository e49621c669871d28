package domain

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-yaml"
)

//go:embed zones.yaml
var defaultZonesYAML []byte

// Location is a state's representative point inside its geopolitical zone.
type Location struct {
	Zone      string
	State     string
	Latitude  float64
	Longitude float64
}

// Zones is the static zone/state/coordinate reference table, in file order.
type Zones []Location

type zonesFile struct {
	Zones []struct {
		Name   string `yaml:"name"`
		States []struct {
			Name string  `yaml:"name"`
			Lat  float64 `yaml:"lat"`
			Lon  float64 `yaml:"lon"`
		} `yaml:"states"`
	} `yaml:"zones"`
}

// DefaultZones returns the embedded reference table.
func DefaultZones() Zones {
	z, err := ParseZones(defaultZonesYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded zones.yaml: %v", err))
	}
	return z
}

// ParseZones decodes a YAML zone table. States must be unique and have
// coordinates inside the valid latitude/longitude range.
func ParseZones(data []byte) (Zones, error) {
	var f zonesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse zones: %w", err)
	}

	var out Zones
	seen := make(map[string]bool)
	for _, z := range f.Zones {
		if z.Name == "" {
			return nil, errors.New("parse zones: zone without name")
		}
		for _, s := range z.States {
			if s.Name == "" {
				return nil, fmt.Errorf("parse zones: zone %s has a state without name", z.Name)
			}
			if seen[s.Name] {
				return nil, fmt.Errorf("parse zones: duplicate state %s", s.Name)
			}
			if s.Lat < -90 || s.Lat > 90 || s.Lon < -180 || s.Lon > 180 {
				return nil, fmt.Errorf("parse zones: state %s has invalid coordinates (%g, %g)", s.Name, s.Lat, s.Lon)
			}
			seen[s.Name] = true
			out = append(out, Location{Zone: z.Name, State: s.Name, Latitude: s.Lat, Longitude: s.Lon})
		}
	}
	if len(out) == 0 {
		return nil, errors.New("parse zones: no states defined")
	}
	return out, nil
}

// Filter keeps the named states (case-insensitive), preserving table order.
// An empty filter returns the table unchanged. Unknown names are an error so
// a typo never silently shrinks a run.
func (z Zones) Filter(states []string) (Zones, error) {
	if len(states) == 0 {
		return z, nil
	}
	want := make(map[string]bool, len(states))
	for _, s := range states {
		want[strings.ToLower(strings.TrimSpace(s))] = true
	}

	var out Zones
	for _, loc := range z {
		key := strings.ToLower(loc.State)
		if want[key] {
			out = append(out, loc)
			delete(want, key)
		}
	}
	if len(want) > 0 {
		unknown := make([]string, 0, len(want))
		for s := range want {
			unknown = append(unknown, s)
		}
		return nil, fmt.Errorf("unknown states: %s", strings.Join(unknown, ", "))
	}
	return out, nil
}

// ZoneNames returns the distinct zone names in table order.
func (z Zones) ZoneNames() []string {
	var names []string
	seen := make(map[string]bool)
	for _, loc := range z {
		if !seen[loc.Zone] {
			seen[loc.Zone] = true
			names = append(names, loc.Zone)
		}
	}
	return names
}

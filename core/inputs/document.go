// Package inputs decodes interval documents: every table of one dispatch
// interval in a single YAML or JSON file.
package inputs

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/spotmarket/core/losses"
	"github.com/kilianp07/spotmarket/core/market"
	"github.com/kilianp07/spotmarket/core/model"
)

// Document holds the input tables of one interval.
type Document struct {
	Interval string `json:"interval" yaml:"interval"`

	Units      []model.Unit      `json:"units" yaml:"units"`
	VolumeBids []model.VolumeBid `json:"volume_bids" yaml:"volume_bids"`
	PriceBids  []model.PriceBid  `json:"price_bids" yaml:"price_bids"`

	// OperatingLimits fills capacity, ramp and joint ramping tables that are
	// not given explicitly.
	OperatingLimits []model.OperatingLimits `json:"operating_limits,omitempty" yaml:"operating_limits,omitempty"`
	Capacity        []model.UnitCapacity    `json:"unit_capacity,omitempty" yaml:"unit_capacity,omitempty"`
	RampUp          []model.RampLimit       `json:"ramp_up,omitempty" yaml:"ramp_up,omitempty"`
	RampDown        []model.RampLimit       `json:"ramp_down,omitempty" yaml:"ramp_down,omitempty"`
	JointRamping    []model.OperatingLimits `json:"joint_ramping,omitempty" yaml:"joint_ramping,omitempty"`

	FCASAvailability      []model.FCASAvailability `json:"fcas_max_availability,omitempty" yaml:"fcas_max_availability,omitempty"`
	RegulationTrapeziums  []model.FCASTrapezium    `json:"regulation_trapeziums,omitempty" yaml:"regulation_trapeziums,omitempty"`
	ContingencyTrapeziums []model.FCASTrapezium    `json:"contingency_trapeziums,omitempty" yaml:"contingency_trapeziums,omitempty"`

	Demand           []model.RegionDemand    `json:"demand" yaml:"demand"`
	FCASRequirements []model.FCASRequirement `json:"fcas_requirements,omitempty" yaml:"fcas_requirements,omitempty"`

	Interconnectors    []model.Interconnector    `json:"interconnectors,omitempty" yaml:"interconnectors,omitempty"`
	LossCoefficients   []model.LossCoefficients  `json:"loss_coefficients,omitempty" yaml:"loss_coefficients,omitempty"`
	DemandCoefficients []model.DemandCoefficient `json:"demand_coefficients,omitempty" yaml:"demand_coefficients,omitempty"`
	// LossDemand defaults to the demand table.
	LossDemand  []model.LossDemand `json:"loss_function_demand,omitempty" yaml:"loss_function_demand,omitempty"`
	BreakPoints []model.BreakPoint `json:"break_points,omitempty" yaml:"break_points,omitempty"`

	ViolationPrices *model.ViolationPrices `json:"violation_prices,omitempty" yaml:"violation_prices,omitempty"`
}

func formatOf(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

// Load reads a single document from a JSON or YAML file.
func Load(path string) (Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return Document{}, err
	}
	defer f.Close()
	return Decode(f, formatOf(path))
}

// Decode reads one document from r.
func Decode(r io.Reader, format string) (Document, error) {
	var doc Document
	switch format {
	case "yaml", "yml":
		if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
			return doc, fmt.Errorf("decode yaml document: %w", err)
		}
	case "json":
		if err := json.NewDecoder(r).Decode(&doc); err != nil {
			return doc, fmt.Errorf("decode json document: %w", err)
		}
	default:
		return doc, fmt.Errorf("unsupported format: %s", format)
	}
	return doc, nil
}

// LoadBatch reads a sequence of documents: a multi-document YAML stream or a
// JSON array.
func LoadBatch(path string) ([]Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeBatch(f, formatOf(path))
}

// DecodeBatch reads a sequence of documents from r.
func DecodeBatch(r io.Reader, format string) ([]Document, error) {
	var docs []Document
	switch format {
	case "yaml", "yml":
		dec := yaml.NewDecoder(r)
		for {
			var doc Document
			err := dec.Decode(&doc)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return nil, fmt.Errorf("decode yaml document %d: %w", len(docs)+1, err)
			}
			docs = append(docs, doc)
		}
	case "json":
		if err := json.NewDecoder(r).Decode(&docs); err != nil {
			return nil, fmt.Errorf("decode json documents: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
	return docs, nil
}

// Tables expands OperatingLimits into the tables left empty.
func (d Document) Tables() (capacity []model.UnitCapacity, up, down []model.RampLimit, joint []model.OperatingLimits) {
	capacity, up, down, joint = d.Capacity, d.RampUp, d.RampDown, d.JointRamping
	for _, l := range d.OperatingLimits {
		if len(d.Capacity) == 0 {
			capacity = append(capacity, l.CapacityLimit())
		}
		if len(d.RampUp) == 0 {
			up = append(up, l.RampUp())
		}
		if len(d.RampDown) == 0 {
			down = append(down, l.RampDown())
		}
	}
	if len(d.JointRamping) == 0 {
		joint = d.OperatingLimits
	}
	return capacity, up, down, joint
}

// LossModels builds the quadratic loss function of every interconnector with
// loss coefficients.
func (d Document) LossModels() ([]model.InterconnectorLoss, error) {
	if len(d.LossCoefficients) == 0 {
		return nil, nil
	}
	demand := d.LossDemand
	if len(demand) == 0 {
		for _, r := range d.Demand {
			demand = append(demand, model.LossDemand{Region: r.Region, Demand: r.Demand})
		}
	}
	return losses.CreateLossFunctions(d.LossCoefficients, d.DemandCoefficients, demand)
}

// Apply sets every table on m in a fixed order. It stops at the first
// rejected table.
func (d Document) Apply(m *market.SpotMarket) error {
	capacity, up, down, joint := d.Tables()
	lossModels, err := d.LossModels()
	if err != nil {
		return err
	}
	steps := []func() error{
		func() error { return m.SetUnitInfo(d.Units) },
		func() error { return m.SetUnitVolumeBids(d.VolumeBids) },
		func() error { return m.SetUnitPriceBids(d.PriceBids) },
		func() error { return m.SetUnitCapacityConstraints(capacity) },
		func() error { return m.SetUnitRampUpConstraints(up) },
		func() error { return m.SetUnitRampDownConstraints(down) },
		func() error { return m.SetFCASMaxAvailability(d.FCASAvailability) },
		func() error { return m.SetEnergyAndRegulationCapacityConstraints(d.RegulationTrapeziums) },
		func() error { return m.SetJointRampingConstraints(joint) },
		func() error { return m.SetJointCapacityConstraints(d.ContingencyTrapeziums) },
		func() error { return m.SetDemandConstraints(d.Demand) },
		func() error { return m.SetFCASRequirementsConstraints(d.FCASRequirements) },
		func() error { return m.SetInterconnectors(d.Interconnectors) },
		func() error { return m.SetInterconnectorLosses(lossModels, d.BreakPoints) },
	}
	if d.ViolationPrices != nil {
		steps = append(steps, func() error { return m.SetConstraintViolationPrices(*d.ViolationPrices) })
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

// WithInitialOutput returns a copy of d whose ramp tables start from the
// given energy dispatch. Units missing from initial keep their value.
func (d Document) WithInitialOutput(initial map[string]float64) Document {
	out := d
	out.OperatingLimits = withInitial(d.OperatingLimits, initial, func(l *model.OperatingLimits) (string, *float64) { return l.Unit, &l.InitialOutput })
	out.JointRamping = withInitial(d.JointRamping, initial, func(l *model.OperatingLimits) (string, *float64) { return l.Unit, &l.InitialOutput })
	out.RampUp = withInitial(d.RampUp, initial, func(l *model.RampLimit) (string, *float64) { return l.Unit, &l.InitialOutput })
	out.RampDown = withInitial(d.RampDown, initial, func(l *model.RampLimit) (string, *float64) { return l.Unit, &l.InitialOutput })
	return out
}

func withInitial[T any](rows []T, initial map[string]float64, field func(*T) (string, *float64)) []T {
	if rows == nil {
		return nil
	}
	out := append(make([]T, 0, len(rows)), rows...)
	for i := range out {
		unit, v := field(&out[i])
		if x, ok := initial[unit]; ok {
			*v = x
		}
	}
	return out
}

package volume

import (
	"fmt"
	"math"

	"quote-engine/core/types"
	"quote-engine/internal/errors"
)

// Detail is the itemised trace of one estimation
type Detail struct {
	SurfaceVolume float64 `json:"surfaceVolume"`
	RoomsVolume   float64 `json:"roomsVolume"`
	ObjectsVolume float64 `json:"objectsVolume"`

	// Weighted is the blended estimate before multipliers
	Weighted float64 `json:"weighted"`

	DensityCoefficient float64 `json:"densityCoefficient"`
	PackingFactor      float64 `json:"packingFactor"`

	// Raw is the estimate after multipliers, before clamping
	Raw float64 `json:"raw"`

	LowerBound float64 `json:"lowerBound"`
	UpperBound float64 `json:"upperBound"`
	Clamped    bool    `json:"clamped"`

	// Volume is the final estimate in m³, 0.1 precision
	Volume float64 `json:"volume"`
}

// Estimator turns a housing description into a volume. It holds no mutable
// state and is safe for concurrent use.
type Estimator struct {
	tables Tables
}

// New creates an estimator from validated tables
func New(t Tables) (*Estimator, error) {
	if err := t.Validate(); err != nil {
		return nil, errors.Wrap(errors.TypeConfig, "invalid volume tables", err)
	}
	return &Estimator{tables: t}, nil
}

// Default creates an estimator with DefaultTables
func Default() *Estimator {
	return &Estimator{tables: DefaultTables()}
}

// Tables returns a copy of the estimator's tables
func (e *Estimator) Tables() Tables {
	return e.tables
}

// Estimate returns the estimated volume in m³
func (e *Estimator) Estimate(in types.EstimationInput) (float64, error) {
	d, err := e.EstimateDetailed(in)
	if err != nil {
		return 0, err
	}
	return d.Volume, nil
}

// EstimateDetailed returns the estimate with every intermediate value
func (e *Estimator) EstimateDetailed(in types.EstimationInput) (Detail, error) {
	if err := e.validate(in); err != nil {
		return Detail{}, err
	}
	t := e.tables

	d := Detail{
		SurfaceVolume:      in.Surface * t.SurfaceFactor,
		RoomsVolume:        e.roomsVolume(in),
		ObjectsVolume:      e.objectsVolume(in),
		DensityCoefficient: t.Density.For(in.Density),
		PackingFactor:      t.PackingFactor,
		LowerBound:         in.Surface * t.MinRatio,
		UpperBound:         in.Surface * t.MaxRatio,
	}
	d.Weighted = d.SurfaceVolume*t.Weights.Surface + d.RoomsVolume*t.Weights.Rooms + d.ObjectsVolume*t.Weights.Objects
	d.Raw = d.Weighted * d.DensityCoefficient * d.PackingFactor

	clamped := d.Raw
	if clamped < d.LowerBound {
		clamped = d.LowerBound
		d.Clamped = true
	} else if clamped > d.UpperBound {
		clamped = d.UpperBound
		d.Clamped = true
	}
	d.Volume = roundWithin(clamped, d.LowerBound, d.UpperBound)
	return d, nil
}

func (e *Estimator) validate(in types.EstimationInput) error {
	t := e.tables
	switch {
	case math.IsNaN(in.Surface) || math.IsInf(in.Surface, 0):
		return errors.InvalidInput("surface", "surface must be a number")
	case in.Surface == 0:
		return errors.InvalidInput("surface", "surface is required")
	case in.Surface < 0:
		return errors.InvalidInput("surface", "surface must be greater than 0")
	case in.Surface < t.MinSurface || in.Surface > t.MaxSurface:
		return errors.InvalidInput("surface", "surface must be between %g and %g m²", t.MinSurface, t.MaxSurface)
	}

	if !in.LivingRoomLevel.IsValid() {
		return errors.InvalidInput("livingRoomLevel", "livingRoomLevel must be one of LIGHT, STANDARD, FULL (got %q)", in.LivingRoomLevel)
	}
	for i, b := range in.Bedrooms {
		if !b.Level.IsValid() {
			field := fmt.Sprintf("bedrooms[%d].level", i)
			return errors.InvalidInput(field, "%s must be one of LIGHT, STANDARD, FULL (got %q)", field, b.Level)
		}
	}
	if !in.Appliances.Fridge.IsValid() {
		return errors.InvalidInput("appliances.fridge", "appliances.fridge must be one of NONE, SIMPLE, AMERICAN (got %q)", in.Appliances.Fridge)
	}
	if !in.SpecialItems.Piano.IsValid() {
		return errors.InvalidInput("specialItems.piano", "specialItems.piano must be one of NONE, UPRIGHT, GRAND (got %q)", in.SpecialItems.Piano)
	}
	if !in.Density.IsValid() {
		return errors.InvalidInput("density", "density must be one of MINIMAL, STANDARD, DENSE, VERY_DENSE (got %q)", in.Density)
	}
	return nil
}

func (e *Estimator) roomsVolume(in types.EstimationInput) float64 {
	t := e.tables
	v := t.LivingRoom.For(in.LivingRoomLevel)
	for _, b := range in.Bedrooms {
		v += t.Bedroom.For(b.Level)
	}
	if in.HasEquippedKitchen {
		v += t.Kitchen
	}
	return v
}

func (e *Estimator) objectsVolume(in types.EstimationInput) float64 {
	a, s, st := e.tables.Appliances, e.tables.SpecialItems, e.tables.Storage
	var v float64

	switch in.Appliances.Fridge {
	case types.FridgeSimple:
		v += a.FridgeSimple
	case types.FridgeAmerican:
		v += a.FridgeAmerican
	}
	v += flag(in.Appliances.WashingMachine, a.WashingMachine)
	v += flag(in.Appliances.Dishwasher, a.Dishwasher)
	v += flag(in.Appliances.Dryer, a.Dryer)
	v += flag(in.Appliances.Oven, a.Oven)
	v += flag(in.Appliances.Freezer, a.Freezer)

	switch in.SpecialItems.Piano {
	case types.PianoUpright:
		v += s.PianoUpright
	case types.PianoGrand:
		v += s.PianoGrand
	}
	v += flag(in.SpecialItems.Safe, s.Safe)
	v += flag(in.SpecialItems.LargeSofa, s.LargeSofa)
	v += flag(in.SpecialItems.BulkyFurniture, s.BulkyFurniture)

	v += flag(in.Storage.Cellar, st.Cellar)
	v += flag(in.Storage.Garage, st.Garage)
	return v
}

func flag(set bool, v float64) float64 {
	if set {
		return v
	}
	return 0
}

// roundWithin rounds to 0.1 m³ without leaving [lo, hi]
func roundWithin(v, lo, hi float64) float64 {
	r := math.Round(v*10) / 10
	if r > hi {
		r = math.Floor(hi*10) / 10
	}
	if r < lo {
		r = math.Ceil(lo*10) / 10
	}
	return r
}

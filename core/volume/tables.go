// Package volume estimates the service volume of a housing description.
// All coefficients live in Tables so regional or unit variants can be
// injected without code changes.
package volume

import (
	"fmt"

	"quote-engine/core/types"
)

// LevelTable maps a furnishing level to a volume in m³
type LevelTable struct {
	Light    float64 `json:"light"`
	Standard float64 `json:"standard"`
	Full     float64 `json:"full"`
}

// For returns the volume for a level. The empty level reads as STANDARD.
func (t LevelTable) For(l types.Level) float64 {
	switch l {
	case types.LevelLight:
		return t.Light
	case types.LevelFull:
		return t.Full
	default:
		return t.Standard
	}
}

// ApplianceTable holds per-appliance volumes in m³
type ApplianceTable struct {
	FridgeSimple   float64 `json:"fridge_simple"`
	FridgeAmerican float64 `json:"fridge_american"`
	WashingMachine float64 `json:"washing_machine"`
	Dishwasher     float64 `json:"dishwasher"`
	Dryer          float64 `json:"dryer"`
	Oven           float64 `json:"oven"`
	Freezer        float64 `json:"freezer"`
}

// SpecialItemTable holds per-item volumes in m³
type SpecialItemTable struct {
	PianoUpright   float64 `json:"piano_upright"`
	PianoGrand     float64 `json:"piano_grand"`
	Safe           float64 `json:"safe"`
	LargeSofa      float64 `json:"large_sofa"`
	BulkyFurniture float64 `json:"bulky_furniture"`
}

// StorageTable holds annex storage volumes in m³
type StorageTable struct {
	Cellar float64 `json:"cellar"`
	Garage float64 `json:"garage"`
}

// DensityTable maps packing behaviour to a multiplier
type DensityTable struct {
	Minimal   float64 `json:"minimal"`
	Standard  float64 `json:"standard"`
	Dense     float64 `json:"dense"`
	VeryDense float64 `json:"very_dense"`
}

// For returns the coefficient for a density. The empty density reads as
// STANDARD.
func (t DensityTable) For(d types.Density) float64 {
	switch d {
	case types.DensityMinimal:
		return t.Minimal
	case types.DensityDense:
		return t.Dense
	case types.DensityVeryDense:
		return t.VeryDense
	default:
		return t.Standard
	}
}

// Weights are the blend weights of the three partial estimates
type Weights struct {
	Surface float64 `json:"surface"`
	Rooms   float64 `json:"rooms"`
	Objects float64 `json:"objects"`
}

// Tables is the immutable configuration of the estimator. It is passed and
// stored by value.
type Tables struct {
	// MinSurface and MaxSurface bound the accepted surface in m²
	MinSurface float64 `json:"min_surface"`
	MaxSurface float64 `json:"max_surface"`

	// SurfaceFactor converts m² into the surface-based m³ estimate
	SurfaceFactor float64 `json:"surface_factor"`

	LivingRoom LevelTable `json:"living_room"`
	Bedroom    LevelTable `json:"bedroom"`
	Kitchen    float64    `json:"kitchen"`

	Appliances   ApplianceTable   `json:"appliances"`
	SpecialItems SpecialItemTable `json:"special_items"`
	Storage      StorageTable     `json:"storage"`

	Weights Weights      `json:"weights"`
	Density DensityTable `json:"density"`

	// PackingFactor is the foisonnement allowance for padding and
	// unusable truck space
	PackingFactor float64 `json:"packing_factor"`

	// MinRatio and MaxRatio clamp the result to [surface*MinRatio, surface*MaxRatio]
	MinRatio float64 `json:"min_ratio"`
	MaxRatio float64 `json:"max_ratio"`
}

// DefaultTables returns the reference coefficients (m², m³)
func DefaultTables() Tables {
	return Tables{
		MinSurface:    10,
		MaxSurface:    500,
		SurfaceFactor: 0.45,
		LivingRoom:    LevelTable{Light: 8, Standard: 12, Full: 16},
		Bedroom:       LevelTable{Light: 6, Standard: 9, Full: 12},
		Kitchen:       4,
		Appliances: ApplianceTable{
			FridgeSimple:   1,
			FridgeAmerican: 2.5,
			WashingMachine: 0.6,
			Dishwasher:     0.5,
			Dryer:          0.6,
			Oven:           0.4,
			Freezer:        1,
		},
		SpecialItems: SpecialItemTable{
			PianoUpright:   7,
			PianoGrand:     14,
			Safe:           3,
			LargeSofa:      2,
			BulkyFurniture: 4,
		},
		Storage:       StorageTable{Cellar: 6, Garage: 10},
		Weights:       Weights{Surface: 0.4, Rooms: 0.4, Objects: 0.2},
		Density:       DensityTable{Minimal: 0.85, Standard: 1.0, Dense: 1.2, VeryDense: 1.35},
		PackingFactor: 1.12,
		MinRatio:      0.25,
		MaxRatio:      0.8,
	}
}

// Validate checks that the tables describe a sane, monotone model
func (t Tables) Validate() error {
	if t.MinSurface <= 0 || t.MaxSurface <= t.MinSurface {
		return fmt.Errorf("surface bounds must satisfy 0 < min < max, got [%g, %g]", t.MinSurface, t.MaxSurface)
	}
	if t.MinRatio <= 0 || t.MaxRatio <= t.MinRatio {
		return fmt.Errorf("clamp ratios must satisfy 0 < min < max, got [%g, %g]", t.MinRatio, t.MaxRatio)
	}
	if t.SurfaceFactor <= 0 || t.PackingFactor <= 0 {
		return fmt.Errorf("surface and packing factors must be positive")
	}
	if t.Weights.Surface < 0 || t.Weights.Rooms < 0 || t.Weights.Objects < 0 {
		return fmt.Errorf("weights must not be negative")
	}
	if t.Density.Minimal <= 0 || t.Density.Standard <= 0 || t.Density.Dense <= 0 || t.Density.VeryDense <= 0 {
		return fmt.Errorf("density coefficients must be positive")
	}

	volumes := []float64{
		t.LivingRoom.Light, t.LivingRoom.Standard, t.LivingRoom.Full,
		t.Bedroom.Light, t.Bedroom.Standard, t.Bedroom.Full,
		t.Kitchen,
		t.Appliances.FridgeSimple, t.Appliances.FridgeAmerican, t.Appliances.WashingMachine,
		t.Appliances.Dishwasher, t.Appliances.Dryer, t.Appliances.Oven, t.Appliances.Freezer,
		t.SpecialItems.PianoUpright, t.SpecialItems.PianoGrand, t.SpecialItems.Safe,
		t.SpecialItems.LargeSofa, t.SpecialItems.BulkyFurniture,
		t.Storage.Cellar, t.Storage.Garage,
	}
	for _, v := range volumes {
		if v < 0 {
			return fmt.Errorf("item volumes must not be negative, got %g", v)
		}
	}
	return nil
}

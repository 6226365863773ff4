// Package types - Estimation input types
package types

// Level is the furnishing density of a room
type Level string

const (
	LevelLight    Level = "LIGHT"
	LevelStandard Level = "STANDARD"
	LevelFull     Level = "FULL"
)

// IsValid checks if the level is known. The empty level is valid and
// means STANDARD.
func (l Level) IsValid() bool {
	switch l {
	case "", LevelLight, LevelStandard, LevelFull:
		return true
	default:
		return false
	}
}

// FridgeType is the kind of fridge to move
type FridgeType string

const (
	FridgeNone     FridgeType = "NONE"
	FridgeSimple   FridgeType = "SIMPLE"
	FridgeAmerican FridgeType = "AMERICAN"
)

// IsValid checks if the fridge type is known (empty means NONE)
func (f FridgeType) IsValid() bool {
	switch f {
	case "", FridgeNone, FridgeSimple, FridgeAmerican:
		return true
	default:
		return false
	}
}

// PianoType is the kind of piano to move
type PianoType string

const (
	PianoNone    PianoType = "NONE"
	PianoUpright PianoType = "UPRIGHT"
	PianoGrand   PianoType = "GRAND"
)

// IsValid checks if the piano type is known (empty means NONE)
func (p PianoType) IsValid() bool {
	switch p {
	case "", PianoNone, PianoUpright, PianoGrand:
		return true
	default:
		return false
	}
}

// Density is the customer's packing behaviour
type Density string

const (
	DensityMinimal   Density = "MINIMAL"
	DensityStandard  Density = "STANDARD"
	DensityDense     Density = "DENSE"
	DensityVeryDense Density = "VERY_DENSE"
)

// IsValid checks if the density is known (empty means STANDARD)
func (d Density) IsValid() bool {
	switch d {
	case "", DensityMinimal, DensityStandard, DensityDense, DensityVeryDense:
		return true
	default:
		return false
	}
}

// Bedroom describes one declared bedroom
type Bedroom struct {
	Level Level `json:"level"`
}

// Appliances lists the household appliances to move
type Appliances struct {
	Fridge         FridgeType `json:"fridge,omitempty"`
	WashingMachine bool       `json:"washingMachine,omitempty"`
	Dishwasher     bool       `json:"dishwasher,omitempty"`
	Dryer          bool       `json:"dryer,omitempty"`
	Oven           bool       `json:"oven,omitempty"`
	Freezer        bool       `json:"freezer,omitempty"`
}

// SpecialItems lists items that need dedicated handling
type SpecialItems struct {
	Piano          PianoType `json:"piano,omitempty"`
	Safe           bool      `json:"safe,omitempty"`
	LargeSofa      bool      `json:"largeSofa,omitempty"`
	BulkyFurniture bool      `json:"bulkyFurniture,omitempty"`
}

// Storage lists annex storage spaces to empty
type Storage struct {
	Cellar bool `json:"cellar,omitempty"`
	Garage bool `json:"garage,omitempty"`
}

// EstimationInput is one volume estimation request, as filled in by the
// customer. A zero Surface means the field was not provided.
type EstimationInput struct {
	// Surface is the living area in m²
	Surface float64 `json:"surface"`

	// LivingRoomLevel is the furnishing level of the living room
	LivingRoomLevel Level `json:"livingRoomLevel,omitempty"`

	// Bedrooms lists every declared bedroom
	Bedrooms []Bedroom `json:"bedrooms,omitempty"`

	// HasEquippedKitchen adds the fixed kitchen contribution
	HasEquippedKitchen bool `json:"hasEquippedKitchen,omitempty"`

	Appliances   Appliances   `json:"appliances"`
	SpecialItems SpecialItems `json:"specialItems"`
	Storage      Storage      `json:"storage"`

	// Density is the behavioural packing-density multiplier
	Density Density `json:"density,omitempty"`
}

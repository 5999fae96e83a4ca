// Package astro provides the astrological domain model for the chart sync
// engine: planet and sign enumerations, angular math on the ecliptic,
// snapshot and chart types, aspect transition detection, and structural
// pattern recognition.
//
// All positions are ecliptic longitudes in degrees, normalized to [0, 360).
// All orb values are in degrees and non-negative.
package astro

import (
	"fmt"
	"math"
	"time"
)

// Planet identifies one of the tracked celestial bodies.
type Planet string

const (
	Sun     Planet = "sun"
	Moon    Planet = "moon"
	Mercury Planet = "mercury"
	Venus   Planet = "venus"
	Mars    Planet = "mars"
	Jupiter Planet = "jupiter"
	Saturn  Planet = "saturn"
	Uranus  Planet = "uranus"
	Neptune Planet = "neptune"
	Pluto   Planet = "pluto"
)

// Planets is the canonical ordering of all tracked bodies. Detection loops
// iterate in this order so output ordering stays deterministic.
var Planets = []Planet{Sun, Moon, Mercury, Venus, Mars, Jupiter, Saturn, Uranus, Neptune, Pluto}

// ParsePlanet maps a lowercase planet name to its enum value.
func ParsePlanet(name string) (Planet, bool) {
	switch Planet(name) {
	case Sun, Moon, Mercury, Venus, Mars, Jupiter, Saturn, Uranus, Neptune, Pluto:
		return Planet(name), true
	}
	return "", false
}

// Personal reports whether the planet is one of the fast-moving personal
// bodies, which receive a base bonus in dominant-planet scoring.
func (p Planet) Personal() bool {
	switch p {
	case Sun, Moon, Mercury, Venus, Mars:
		return true
	}
	return false
}

// Sign is a zodiac sign, indexed 0 (Aries) through 11 (Pisces).
type Sign int

const (
	Aries Sign = iota
	Taurus
	Gemini
	Cancer
	Leo
	Virgo
	Libra
	Scorpio
	Sagittarius
	Capricorn
	Aquarius
	Pisces
)

var signNames = [12]string{
	"Aries", "Taurus", "Gemini", "Cancer", "Leo", "Virgo",
	"Libra", "Scorpio", "Sagittarius", "Capricorn", "Aquarius", "Pisces",
}

func (s Sign) String() string {
	if s < 0 || s > 11 {
		return fmt.Sprintf("Sign(%d)", int(s))
	}
	return signNames[s]
}

// Element is one of the four classical elements.
type Element int

const (
	Fire Element = iota
	Earth
	Air
	Water
)

// Elements is the canonical tally order used for dominant-element
// tie-breaking.
var Elements = []Element{Fire, Earth, Air, Water}

func (e Element) String() string {
	switch e {
	case Fire:
		return "Fire"
	case Earth:
		return "Earth"
	case Air:
		return "Air"
	case Water:
		return "Water"
	}
	return fmt.Sprintf("Element(%d)", int(e))
}

// Quality is one of the three modalities.
type Quality int

const (
	Cardinal Quality = iota
	Fixed
	Mutable
)

// Qualities is the canonical tally order used for dominant-quality
// tie-breaking.
var Qualities = []Quality{Cardinal, Fixed, Mutable}

func (q Quality) String() string {
	switch q {
	case Cardinal:
		return "Cardinal"
	case Fixed:
		return "Fixed"
	case Mutable:
		return "Mutable"
	}
	return fmt.Sprintf("Quality(%d)", int(q))
}

// Element returns the sign's classical element.
func (s Sign) Element() Element {
	switch s {
	case Aries, Leo, Sagittarius:
		return Fire
	case Taurus, Virgo, Capricorn:
		return Earth
	case Gemini, Libra, Aquarius:
		return Air
	default: // Cancer, Scorpio, Pisces
		return Water
	}
}

// Quality returns the sign's modality.
func (s Sign) Quality() Quality {
	switch s {
	case Aries, Cancer, Libra, Capricorn:
		return Cardinal
	case Taurus, Leo, Scorpio, Aquarius:
		return Fixed
	default: // Gemini, Virgo, Sagittarius, Pisces
		return Mutable
	}
}

// AspectKind names one of the six major aspects, each bound to a canonical
// angle.
type AspectKind string

const (
	Conjunction AspectKind = "conjunction"
	Sextile     AspectKind = "sextile"
	Square      AspectKind = "square"
	Trine       AspectKind = "trine"
	Quincunx    AspectKind = "quincunx"
	Opposition  AspectKind = "opposition"
)

// AspectKinds is the canonical evaluation order, ascending by angle.
var AspectKinds = []AspectKind{Conjunction, Sextile, Square, Trine, Quincunx, Opposition}

// Angle returns the exact angle of the aspect in degrees.
func (k AspectKind) Angle() float64 {
	switch k {
	case Conjunction:
		return 0
	case Sextile:
		return 60
	case Square:
		return 90
	case Trine:
		return 120
	case Quincunx:
		return 150
	case Opposition:
		return 180
	}
	return 0
}

// Normalize maps any longitude, positive or negative, into [0, 360).
func Normalize(deg float64) float64 {
	d := math.Mod(deg, 360)
	if d < 0 {
		d += 360
	}
	// Rounding of tiny negatives can land exactly on 360.
	if d >= 360 {
		d = 0
	}
	return d
}

// SignAt derives the zodiac sign occupied by a longitude.
func SignAt(position float64) Sign {
	idx := int(Normalize(position) / 30)
	if idx > 11 {
		idx = 11
	}
	return Sign(idx)
}

// AngularDistance returns the minimum separation between two longitudes,
// always in [0, 180]. Symmetric in its arguments.
func AngularDistance(a, b float64) float64 {
	d := math.Abs(Normalize(a) - Normalize(b))
	if d > 180 {
		d = 360 - d
	}
	return d
}

// OrbTo computes the deviation of an angle from a target aspect angle,
// taking the minimum over the wraparound candidates.
func OrbTo(angle, target float64) float64 {
	return math.Min(
		math.Abs(angle-target),
		math.Min(
			math.Abs(angle-(target+360)),
			math.Abs((angle+360)-target),
		),
	)
}

// Strength classifies how tight an aspect is, derived solely from its orb.
type Strength string

const (
	Strong Strength = "strong"
	Medium Strength = "medium"
	Weak   Strength = "weak"
)

// StrengthForOrb maps an orb in degrees to a strength class.
func StrengthForOrb(orb float64) Strength {
	switch {
	case orb <= 1:
		return Strong
	case orb <= 3:
		return Medium
	default:
		return Weak
	}
}

// PlanetSnapshot is one planet's instantaneous state.
type PlanetSnapshot struct {
	Planet     Planet  `json:"planet"`
	Position   float64 `json:"position"` // ecliptic longitude, [0,360)
	House      *int    `json:"house,omitempty"`
	Retrograde bool    `json:"retrograde"`
	Speed      float64 `json:"speed"` // degrees/day, signed
}

// Sign derives the occupied zodiac sign; it is never stored independently.
func (ps PlanetSnapshot) Sign() Sign {
	return SignAt(ps.Position)
}

// PlanetMap holds one snapshot per planet. Consumers replace whole maps,
// never mutate entries in place.
type PlanetMap map[Planet]PlanetSnapshot

// NeutralSnapshot returns the documented neutral state for a planet:
// position 0 (Aries), house 1, direct motion, zero speed.
func NeutralSnapshot(p Planet) PlanetSnapshot {
	house := 1
	return PlanetSnapshot{Planet: p, Position: 0, House: &house, Retrograde: false, Speed: 0}
}

// NeutralPlanetMap returns a complete map with every known planet in its
// neutral state. Used when the ephemeris collaborator fails so downstream
// snapshot comparisons never see a partial map.
func NeutralPlanetMap() PlanetMap {
	m := make(PlanetMap, len(Planets))
	for _, p := range Planets {
		m[p] = NeutralSnapshot(p)
	}
	return m
}

// Complete fills any planets absent from the map with their neutral state
// and returns the same map.
func (m PlanetMap) Complete() PlanetMap {
	for _, p := range Planets {
		if _, ok := m[p]; !ok {
			m[p] = NeutralSnapshot(p)
		}
	}
	return m
}

// Clone returns a shallow copy of the map.
func (m PlanetMap) Clone() PlanetMap {
	out := make(PlanetMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// ChartAngles holds the cardinal chart angles.
type ChartAngles struct {
	Ascendant  float64 `json:"ascendant"`
	Midheaven  float64 `json:"midheaven"`
	Descendant float64 `json:"descendant"`
	IC         float64 `json:"ic"`
}

// NatalAspect is one aspect in a natal chart's derived aspect list.
type NatalAspect struct {
	First  Planet     `json:"first"`
	Second Planet     `json:"second"`
	Kind   AspectKind `json:"kind"`
	Orb    float64    `json:"orb"`
}

// Touches reports whether the aspect involves the given planet.
func (a NatalAspect) Touches(p Planet) bool {
	return a.First == p || a.Second == p
}

// NatalChart is a fixed chart record. Treated as read-only once a chart is
// registered with the sync registry.
type NatalChart struct {
	Planets    PlanetMap     `json:"planets"`
	Angles     ChartAngles   `json:"angles"`
	HouseCusps []float64     `json:"houseCusps"`
	Aspects    []NatalAspect `json:"aspects"`
}

// ErrIncompleteChart is returned when a natal chart is missing required
// planets and cannot be meaningfully synced.
var ErrIncompleteChart = fmt.Errorf("natal chart is missing required planets")

// Validate checks the chart contains a snapshot for every known planet.
func (c NatalChart) Validate() error {
	for _, p := range Planets {
		if _, ok := c.Planets[p]; !ok {
			return fmt.Errorf("%w: %s", ErrIncompleteChart, p)
		}
	}
	return nil
}

// AspectTransition marks the direction of an aspect's movement relative to
// exactness.
type AspectTransition string

const (
	Forming    AspectTransition = "forming"
	Separating AspectTransition = "separating"
)

// AspectEvent describes a detected aspect transition between a transiting
// planet and a natal planet.
type AspectEvent struct {
	Type          AspectTransition `json:"type"`
	TransitPlanet Planet           `json:"transitPlanet"`
	NatalPlanet   Planet           `json:"natalPlanet"`
	Kind          AspectKind       `json:"aspectType"`
	Orb           float64          `json:"orb"`
	ExactAt       time.Time        `json:"exactDate"`
	Strength      Strength         `json:"strength"`
}

// PatternKind names a structural chart configuration. Only stellium,
// grand-trine and t-square detection is implemented; the remaining kinds
// are declared so callers can enumerate the catalog, and their detectors
// intentionally return nothing.
type PatternKind string

const (
	Stellium        PatternKind = "stellium"
	GrandTrine      PatternKind = "grand-trine"
	TSquare         PatternKind = "t-square"
	GrandCross      PatternKind = "grand-cross"
	Yod             PatternKind = "yod"
	Kite            PatternKind = "kite"
	MysticRectangle PatternKind = "mystic-rectangle"
)

// ChartPattern is one detected structural configuration.
type ChartPattern struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	Kind           PatternKind `json:"type"`
	Planets        []Planet    `json:"planets"`
	Houses         []int       `json:"houses,omitempty"`
	Signs          []Sign      `json:"signs,omitempty"`
	Strength       int         `json:"strength"` // 0-100
	Interpretation string      `json:"interpretation"`
	Keywords       []string    `json:"keywords"`
}

// ShapeKind classifies the overall distribution of planets around the
// wheel.
type ShapeKind string

const (
	Bundle     ShapeKind = "Bundle"
	Bowl       ShapeKind = "Bowl"
	Locomotive ShapeKind = "Locomotive"
	Splash     ShapeKind = "Splash"
)

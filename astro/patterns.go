package astro

import (
	"fmt"
	"log"
	"sort"

	"github.com/google/uuid"
)

// PatternOrb is the allowed deviation for structural pattern geometry.
const PatternOrb = 8.0

// PatternEngine runs structural analysis over one static set of planetary
// positions. The optional aspect list feeds dominant-planet scoring.
type PatternEngine struct {
	planets PlanetMap
	aspects []NatalAspect
}

// NewPatternEngine creates an engine over the given positions.
func NewPatternEngine(planets PlanetMap, aspects []NatalAspect) *PatternEngine {
	return &PatternEngine{planets: planets, aspects: aspects}
}

// DetectAll runs every detector and flattens their results. Each detector
// is isolated: a failure is logged and contributes nothing, so one broken
// detector never suppresses the others.
func (e *PatternEngine) DetectAll() []ChartPattern {
	detectors := []struct {
		name string
		run  func() ([]ChartPattern, error)
	}{
		{"stellium", e.DetectStelliums},
		{"grand-trine", e.DetectGrandTrines},
		{"t-square", e.DetectTSquares},
		{"grand-cross", e.DetectGrandCrosses},
		{"yod", e.DetectYods},
	}

	var all []ChartPattern
	for _, d := range detectors {
		patterns, err := d.run()
		if err != nil {
			log.Printf("⚠️  Pattern detector %s failed: %v", d.name, err)
			continue
		}
		all = append(all, patterns...)
	}
	return all
}

// DominantElement tallies the elements of the occupied signs and returns
// the one with the strictly greatest count. Ties keep the earliest element
// in canonical order; the tie-break is arbitrary but deterministic and must
// stay stable across runs.
func (e *PatternEngine) DominantElement() Element {
	counts := make(map[Element]int, 4)
	for _, p := range Planets {
		snap, ok := e.planets[p]
		if !ok {
			continue
		}
		counts[snap.Sign().Element()]++
	}

	best := Fire
	bestCount := -1
	for _, el := range Elements {
		if counts[el] > bestCount {
			best = el
			bestCount = counts[el]
		}
	}
	return best
}

// DominantQuality tallies modalities the same way DominantElement tallies
// elements.
func (e *PatternEngine) DominantQuality() Quality {
	counts := make(map[Quality]int, 3)
	for _, p := range Planets {
		snap, ok := e.planets[p]
		if !ok {
			continue
		}
		counts[snap.Sign().Quality()]++
	}

	best := Cardinal
	bestCount := -1
	for _, q := range Qualities {
		if counts[q] > bestCount {
			best = q
			bestCount = counts[q]
		}
	}
	return best
}

// ChartShape classifies the overall planet distribution. The reference
// rules fold a max gap above 120° into Bundle even when the raw span says
// otherwise; that quirk is preserved, not corrected.
func (e *PatternEngine) ChartShape() ShapeKind {
	positions := e.sortedPositions()
	if len(positions) < 2 {
		return Bundle
	}

	maxGap := 0.0
	for i := 1; i < len(positions); i++ {
		if gap := positions[i] - positions[i-1]; gap > maxGap {
			maxGap = gap
		}
	}
	// Wrap last-to-first.
	if gap := positions[0] + 360 - positions[len(positions)-1]; gap > maxGap {
		maxGap = gap
	}

	span := positions[len(positions)-1] - positions[0]

	switch {
	case span <= 120 || maxGap > 120:
		return Bundle
	case span <= 240:
		return Bowl
	case maxGap > 60:
		return Locomotive
	default:
		return Splash
	}
}

// DetectStelliums finds groups of three or more planets sharing a sign and,
// independently, groups sharing a house.
func (e *PatternEngine) DetectStelliums() ([]ChartPattern, error) {
	var patterns []ChartPattern

	bySign := make(map[Sign][]Planet)
	byHouse := make(map[int][]Planet)
	for _, p := range Planets {
		snap, ok := e.planets[p]
		if !ok {
			continue
		}
		sign := snap.Sign()
		bySign[sign] = append(bySign[sign], p)
		if snap.House != nil {
			byHouse[*snap.House] = append(byHouse[*snap.House], p)
		}
	}

	for sign := Aries; sign <= Pisces; sign++ {
		group := bySign[sign]
		if len(group) < 3 {
			continue
		}
		patterns = append(patterns, ChartPattern{
			ID:       uuid.NewString(),
			Name:     fmt.Sprintf("Stellium in %s", sign),
			Kind:     Stellium,
			Planets:  group,
			Signs:    []Sign{sign},
			Strength: stelliumStrength(len(group)),
			Interpretation: fmt.Sprintf(
				"A concentration of %d planets in %s intensifies %s themes and focuses the chart's energy through a single sign.",
				len(group), sign, sign.Element()),
			Keywords: []string{"concentration", "focus", "intensity"},
		})
	}

	for house := 1; house <= 12; house++ {
		group := byHouse[house]
		if len(group) < 3 {
			continue
		}
		patterns = append(patterns, ChartPattern{
			ID:       uuid.NewString(),
			Name:     fmt.Sprintf("Stellium in House %d", house),
			Kind:     Stellium,
			Planets:  group,
			Houses:   []int{house},
			Strength: stelliumStrength(len(group)),
			Interpretation: fmt.Sprintf(
				"A concentration of %d planets in house %d draws sustained attention to that life area.",
				len(group), house),
			Keywords: []string{"concentration", "focus", "life-area emphasis"},
		})
	}

	return patterns, nil
}

func stelliumStrength(count int) int {
	s := count * 20
	if s > 100 {
		s = 100
	}
	return s
}

// DetectGrandTrines finds triples whose three pairwise separations are each
// within orb of 120° (or its 240° complement).
func (e *PatternEngine) DetectGrandTrines() ([]ChartPattern, error) {
	var patterns []ChartPattern

	present := e.presentPlanets()
	for i := 0; i < len(present); i++ {
		for j := i + 1; j < len(present); j++ {
			for k := j + 1; k < len(present); k++ {
				a, b, c := present[i], present[j], present[k]
				if !e.trineSeparation(a, b) || !e.trineSeparation(b, c) || !e.trineSeparation(a, c) {
					continue
				}
				element := e.planets[a].Sign().Element()
				patterns = append(patterns, ChartPattern{
					ID:       uuid.NewString(),
					Name:     fmt.Sprintf("Grand Trine in %s", element),
					Kind:     GrandTrine,
					Planets:  []Planet{a, b, c},
					Strength: 85,
					Interpretation: fmt.Sprintf(
						"An effortless flow of %s energy between %s, %s and %s, supporting natural talent in that element.",
						element, a, b, c),
					Keywords: []string{"harmony", "flow", "talent"},
				})
			}
		}
	}

	return patterns, nil
}

// trineSeparation tests whether the raw angle between two planets is within
// orb of 120° or 240°, using the same wraparound-minimum deviation rule as
// aspect detection.
func (e *PatternEngine) trineSeparation(a, b Planet) bool {
	angle := Normalize(absDiff(e.planets[a].Position, e.planets[b].Position))
	return OrbTo(angle, 120) <= PatternOrb || OrbTo(angle, 240) <= PatternOrb
}

// DetectTSquares finds triples with at least one opposition and at least
// two squares among the pairwise separations.
func (e *PatternEngine) DetectTSquares() ([]ChartPattern, error) {
	var patterns []ChartPattern

	present := e.presentPlanets()
	for i := 0; i < len(present); i++ {
		for j := i + 1; j < len(present); j++ {
			for k := j + 1; k < len(present); k++ {
				a, b, c := present[i], present[j], present[k]

				oppositions := 0
				squares := 0
				for _, pair := range [][2]Planet{{a, b}, {b, c}, {a, c}} {
					angle := Normalize(absDiff(e.planets[pair[0]].Position, e.planets[pair[1]].Position))
					if OrbTo(angle, 180) <= PatternOrb {
						oppositions++
					}
					if OrbTo(angle, 90) <= PatternOrb {
						squares++
					}
				}
				if oppositions < 1 || squares < 2 {
					continue
				}

				patterns = append(patterns, ChartPattern{
					ID:       uuid.NewString(),
					Name:     fmt.Sprintf("T-Square: %s, %s, %s", a, b, c),
					Kind:     TSquare,
					Planets:  []Planet{a, b, c},
					Strength: 75,
					Interpretation: fmt.Sprintf(
						"Dynamic tension between %s, %s and %s demands resolution and drives sustained effort.",
						a, b, c),
					Keywords: []string{"tension", "drive", "challenge"},
				})
			}
		}
	}

	return patterns, nil
}

// DetectGrandCrosses is declared for catalog completeness and intentionally
// detects nothing. Callers must not assume the pattern catalog is complete.
func (e *PatternEngine) DetectGrandCrosses() ([]ChartPattern, error) {
	return nil, nil
}

// DetectYods is declared for catalog completeness and intentionally detects
// nothing.
func (e *PatternEngine) DetectYods() ([]ChartPattern, error) {
	return nil, nil
}

// DominantPlanet scores each planet additively: +3 for occupying an angular
// house, +2 per near-exact aspect touching it, +1 per close aspect, +2 base
// for personal planets. The highest total wins, earliest in canonical order
// on a tie.
func (e *PatternEngine) DominantPlanet() (Planet, int) {
	best := Sun
	bestScore := -1

	for _, p := range Planets {
		snap, ok := e.planets[p]
		if !ok {
			continue
		}

		score := 0
		if snap.House != nil {
			switch *snap.House {
			case 1, 4, 7, 10:
				score += 3
			}
		}
		for _, a := range e.aspects {
			if !a.Touches(p) {
				continue
			}
			if a.Orb < 1 {
				score += 2
			} else if a.Orb < 3 {
				score++
			}
		}
		if p.Personal() {
			score += 2
		}

		if score > bestScore {
			best = p
			bestScore = score
		}
	}

	return best, bestScore
}

func (e *PatternEngine) presentPlanets() []Planet {
	out := make([]Planet, 0, len(e.planets))
	for _, p := range Planets {
		if _, ok := e.planets[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

func (e *PatternEngine) sortedPositions() []float64 {
	positions := make([]float64, 0, len(e.planets))
	for _, p := range Planets {
		if snap, ok := e.planets[p]; ok {
			positions = append(positions, Normalize(snap.Position))
		}
	}
	sort.Float64s(positions)
	return positions
}

func absDiff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}

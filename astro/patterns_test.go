package astro

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapHoused(p Planet, pos float64, house int) PlanetSnapshot {
	return PlanetSnapshot{Planet: p, Position: Normalize(pos), House: &house}
}

func planetsAt(positions map[Planet]float64) PlanetMap {
	m := make(PlanetMap, len(positions))
	for p, pos := range positions {
		m[p] = PlanetSnapshot{Planet: p, Position: Normalize(pos)}
	}
	return m
}

func TestDetectStelliums(t *testing.T) {
	engine := NewPatternEngine(PlanetMap{
		Sun:     snapHoused(Sun, 1, 1),
		Moon:    snapHoused(Moon, 5, 1),
		Mercury: snapHoused(Mercury, 9, 1),
		Venus:   snapHoused(Venus, 100, 5),
	}, nil)

	patterns, err := engine.DetectStelliums()
	require.NoError(t, err)
	require.Len(t, patterns, 2, "one sign stellium and one house stellium")

	var signPattern, housePattern *ChartPattern
	for i := range patterns {
		if len(patterns[i].Signs) > 0 {
			signPattern = &patterns[i]
		} else {
			housePattern = &patterns[i]
		}
	}

	require.NotNil(t, signPattern)
	assert.Equal(t, Stellium, signPattern.Kind)
	assert.Equal(t, "Stellium in Aries", signPattern.Name)
	assert.Equal(t, []Sign{Aries}, signPattern.Signs)
	assert.ElementsMatch(t, []Planet{Sun, Moon, Mercury}, signPattern.Planets)
	assert.Equal(t, 60, signPattern.Strength)
	assert.NotEmpty(t, signPattern.ID)

	require.NotNil(t, housePattern)
	assert.Equal(t, "Stellium in House 1", housePattern.Name)
	assert.Equal(t, []int{1}, housePattern.Houses)
	assert.Equal(t, 60, housePattern.Strength)
}

func TestStelliumStrengthCapped(t *testing.T) {
	engine := NewPatternEngine(planetsAt(map[Planet]float64{
		Sun: 2, Moon: 6, Mercury: 10, Venus: 14, Mars: 18, Jupiter: 22,
	}), nil)

	patterns, err := engine.DetectStelliums()
	require.NoError(t, err)
	require.Len(t, patterns, 1)
	assert.Equal(t, 100, patterns[0].Strength, "six planets cap at 100, not 120")
}

func TestStelliumRequiresThree(t *testing.T) {
	engine := NewPatternEngine(planetsAt(map[Planet]float64{Sun: 2, Moon: 6}), nil)
	patterns, err := engine.DetectStelliums()
	require.NoError(t, err)
	assert.Empty(t, patterns)
}

func TestDetectGrandTrines(t *testing.T) {
	engine := NewPatternEngine(planetsAt(map[Planet]float64{
		Sun: 0, Moon: 120, Mercury: 240,
	}), nil)

	patterns, err := engine.DetectGrandTrines()
	require.NoError(t, err)
	require.Len(t, patterns, 1)

	p := patterns[0]
	assert.Equal(t, GrandTrine, p.Kind)
	assert.Equal(t, "Grand Trine in Fire", p.Name)
	assert.Equal(t, []Planet{Sun, Moon, Mercury}, p.Planets)
	assert.Equal(t, 85, p.Strength)
}

func TestGrandTrineBrokenByOrb(t *testing.T) {
	// Moon nine degrees off the trine point falls outside the pattern orb.
	engine := NewPatternEngine(planetsAt(map[Planet]float64{
		Sun: 0, Moon: 129, Mercury: 240,
	}), nil)

	patterns, err := engine.DetectGrandTrines()
	require.NoError(t, err)
	assert.Empty(t, patterns)
}

func TestDetectTSquares(t *testing.T) {
	engine := NewPatternEngine(planetsAt(map[Planet]float64{
		Sun: 0, Moon: 180, Mercury: 90,
	}), nil)

	patterns, err := engine.DetectTSquares()
	require.NoError(t, err)
	require.Len(t, patterns, 1)

	p := patterns[0]
	assert.Equal(t, TSquare, p.Kind)
	assert.Equal(t, []Planet{Sun, Moon, Mercury}, p.Planets)
	assert.Equal(t, 75, p.Strength)
}

func TestTSquareNeedsTwoSquares(t *testing.T) {
	// Opposition present but only one square.
	engine := NewPatternEngine(planetsAt(map[Planet]float64{
		Sun: 0, Moon: 180, Mercury: 45,
	}), nil)

	patterns, err := engine.DetectTSquares()
	require.NoError(t, err)
	assert.Empty(t, patterns)
}

func TestDetectAllCombinesDetectors(t *testing.T) {
	engine := NewPatternEngine(PlanetMap{
		Sun:     snapHoused(Sun, 1, 1),
		Moon:    snapHoused(Moon, 5, 1),
		Mercury: snapHoused(Mercury, 9, 1),
		Venus:   snapHoused(Venus, 125, 5),
		Mars:    snapHoused(Mars, 245, 9),
	}, nil)

	all := engine.DetectAll()

	kinds := map[PatternKind]int{}
	for _, p := range all {
		kinds[p.Kind]++
	}
	assert.Equal(t, 2, kinds[Stellium])
	assert.GreaterOrEqual(t, kinds[GrandTrine], 1, "sun/moon/mercury each trine venus and mars")
	assert.Zero(t, kinds[GrandCross])
	assert.Zero(t, kinds[Yod])
}

func TestChartShape(t *testing.T) {
	tests := []struct {
		name      string
		positions []float64
		want      ShapeKind
	}{
		{"single planet", []float64{10}, Bundle},
		{"tight cluster", []float64{0, 40, 80}, Bundle},
		{"wide span but huge gap", []float64{0, 100, 230}, Bundle},
		{"bowl", []float64{0, 40, 80, 120, 160, 200, 240}, Bowl},
		{"locomotive", []float64{0, 50, 100, 150, 200, 250, 280}, Locomotive},
		{"splash", []float64{0, 40, 80, 120, 160, 200, 240, 280, 320}, Splash},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			positions := make(map[Planet]float64, len(tt.positions))
			for i, pos := range tt.positions {
				positions[Planets[i]] = pos
			}
			engine := NewPatternEngine(planetsAt(positions), nil)
			assert.Equal(t, tt.want, engine.ChartShape())
		})
	}
}

func TestDominantElement(t *testing.T) {
	tests := []struct {
		name      string
		positions map[Planet]float64
		want      Element
	}{
		{
			"fire majority",
			map[Planet]float64{Sun: 0, Moon: 35, Mercury: 125},
			Fire,
		},
		{
			"water majority",
			map[Planet]float64{Sun: 95, Moon: 100, Mercury: 215, Venus: 5},
			Water,
		},
		{
			"tie keeps canonical order",
			map[Planet]float64{Sun: 0, Moon: 35},
			Fire,
		},
		{
			"empty chart defaults to fire",
			map[Planet]float64{},
			Fire,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := NewPatternEngine(planetsAt(tt.positions), nil)
			assert.Equal(t, tt.want, engine.DominantElement())
		})
	}
}

func TestDominantQuality(t *testing.T) {
	tests := []struct {
		name      string
		positions map[Planet]float64
		want      Quality
	}{
		{
			"fixed majority",
			map[Planet]float64{Sun: 35, Moon: 125, Mercury: 0},
			Fixed,
		},
		{
			"three-way tie keeps canonical order",
			map[Planet]float64{Sun: 0, Moon: 125, Mercury: 155},
			Cardinal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := NewPatternEngine(planetsAt(tt.positions), nil)
			assert.Equal(t, tt.want, engine.DominantQuality())
		})
	}
}

func TestDominantPlanet(t *testing.T) {
	engine := NewPatternEngine(PlanetMap{
		Sun:    snapHoused(Sun, 10, 1),
		Saturn: snapHoused(Saturn, 190, 2),
	}, []NatalAspect{
		{First: Sun, Second: Saturn, Kind: Opposition, Orb: 0.5},
	})

	planet, score := engine.DominantPlanet()
	assert.Equal(t, Sun, planet)
	// angular house +3, near-exact aspect +2, personal +2
	assert.Equal(t, 7, score)
}

func TestDominantPlanetOuterCanWin(t *testing.T) {
	engine := NewPatternEngine(PlanetMap{
		Venus:  snapHoused(Venus, 40, 2),
		Saturn: snapHoused(Saturn, 190, 10),
	}, nil)

	planet, score := engine.DominantPlanet()
	assert.Equal(t, Saturn, planet)
	assert.Equal(t, 3, score)
}

func TestDominantPlanetCloseAspectScoresOne(t *testing.T) {
	engine := NewPatternEngine(PlanetMap{
		Jupiter: snapHoused(Jupiter, 10, 3),
		Uranus:  snapHoused(Uranus, 130, 5),
	}, []NatalAspect{
		{First: Jupiter, Second: Uranus, Kind: Trine, Orb: 2.0},
	})

	planet, score := engine.DominantPlanet()
	assert.Equal(t, Jupiter, planet)
	assert.Equal(t, 1, score)
}

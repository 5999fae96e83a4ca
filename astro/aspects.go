package astro

import (
	"math"
	"time"
)

const (
	// MaxOrb is the widest deviation from exact still considered for
	// transition detection.
	MaxOrb = 8.0
	// ExactOrb is the threshold inside which an aspect counts as exact.
	ExactOrb = 1.0
)

// DetectAspectChanges compares two transit snapshots against a natal chart
// and reports every natal-transit pair that is newly approaching or
// departing exactness for one of the six major aspects.
//
// The function is pure with respect to its inputs. Events are returned in
// insertion order: transit planet major, then natal planet, then aspect
// angle ascending. A planet missing from either snapshot skips only the
// pairs it participates in.
func DetectAspectChanges(natal NatalChart, prev, next PlanetMap, now time.Time) []AspectEvent {
	var events []AspectEvent

	for _, transitPlanet := range Planets {
		transit, ok := next[transitPlanet]
		if !ok {
			continue
		}
		prevTransit, hasPrev := prev[transitPlanet]

		for _, natalPlanet := range Planets {
			natalSnap, ok := natal.Planets[natalPlanet]
			if !ok {
				continue
			}

			currentAngle := Normalize(math.Abs(transit.Position - natalSnap.Position))

			for _, kind := range AspectKinds {
				target := kind.Angle()

				currentOrb := OrbTo(currentAngle, target)
				if currentOrb > MaxOrb {
					continue
				}
				if !hasPrev {
					continue
				}

				prevAngle := Normalize(math.Abs(prevTransit.Position - natalSnap.Position))
				prevOrb := OrbTo(prevAngle, target)

				// Forming and separating are mutually exclusive for one
				// pair/angle in a single evaluation.
				switch {
				case currentOrb < prevOrb && currentOrb <= ExactOrb:
					events = append(events, AspectEvent{
						Type:          Forming,
						TransitPlanet: transitPlanet,
						NatalPlanet:   natalPlanet,
						Kind:          kind,
						Orb:           currentOrb,
						ExactAt:       exactDate(currentOrb, transit.Speed, now),
						Strength:      StrengthForOrb(currentOrb),
					})
				case currentOrb > prevOrb && prevOrb <= ExactOrb:
					events = append(events, AspectEvent{
						Type:          Separating,
						TransitPlanet: transitPlanet,
						NatalPlanet:   natalPlanet,
						Kind:          kind,
						Orb:           currentOrb,
						ExactAt:       now, // the exact moment already passed
						Strength:      StrengthForOrb(currentOrb),
					})
				}
			}
		}
	}

	return events
}

// exactDate estimates when a forming aspect reaches exactness from the
// transit planet's daily motion. A stationary planet yields "now".
func exactDate(orb, speed float64, now time.Time) time.Time {
	absSpeed := math.Abs(speed)
	if absSpeed == 0 {
		return now
	}
	days := orb / absSpeed
	return now.Add(time.Duration(days * float64(24) * float64(time.Hour)))
}

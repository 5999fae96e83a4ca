// Package ephemeris wraps the external chart-calculation service. The
// service is a black box: given birth/time/location parameters it returns
// planetary positions, house cusps and angles. Exact ephemeris math lives on
// the remote side.
package ephemeris

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"cosmichub-sync/astro"
)

// BirthParams fully specifies the moment and place a chart is cast for.
type BirthParams struct {
	Year      int     `json:"year"`
	Month     int     `json:"month"`
	Day       int     `json:"day"`
	Hour      int     `json:"hour"`
	Minute    int     `json:"minute"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timezone  string  `json:"timezone"`
	Location  string  `json:"location"`
}

// Calculator is the external collaborator contract.
type Calculator interface {
	CalculateChart(ctx context.Context, params BirthParams) (astro.NatalChart, error)
}

// HTTPCalculator calls the remote chart-calculation API over JSON.
type HTTPCalculator struct {
	endpoint string
	client   *http.Client
	limiter  *rate.Limiter
}

// NewHTTPCalculator creates a calculator client with pooled connections and
// an outbound rate limit.
func NewHTTPCalculator(endpoint string, rps float64, burst int) *HTTPCalculator {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	return &HTTPCalculator{
		endpoint: endpoint,
		client: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// chartResponse mirrors the remote API payload.
type chartResponse struct {
	Planets map[string]struct {
		Position   float64 `json:"position"`
		House      *int    `json:"house,omitempty"`
		Retrograde bool    `json:"retrograde"`
		Speed      float64 `json:"speed"`
	} `json:"planets"`
	Angles struct {
		Ascendant  float64 `json:"ascendant"`
		Midheaven  float64 `json:"midheaven"`
		Descendant float64 `json:"descendant"`
		IC         float64 `json:"ic"`
	} `json:"angles"`
	HouseCusps []float64 `json:"houseCusps"`
	Aspects    []struct {
		First  string  `json:"first"`
		Second string  `json:"second"`
		Kind   string  `json:"type"`
		Orb    float64 `json:"orb"`
	} `json:"aspects"`
}

// CalculateChart posts the birth parameters and converts the response into
// the domain chart type. Unknown planet or aspect names in the payload are
// skipped instead of failing the whole chart.
func (c *HTTPCalculator) CalculateChart(ctx context.Context, params BirthParams) (astro.NatalChart, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return astro.NatalChart{}, fmt.Errorf("ephemeris rate limiter: %w", err)
	}

	body, err := json.Marshal(params)
	if err != nil {
		return astro.NatalChart{}, fmt.Errorf("marshal chart request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/charts/calculate", bytes.NewReader(body))
	if err != nil {
		return astro.NatalChart{}, fmt.Errorf("build chart request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return astro.NatalChart{}, fmt.Errorf("chart calculation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return astro.NatalChart{}, fmt.Errorf("chart calculation returned %d: %s", resp.StatusCode, payload)
	}

	var decoded chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return astro.NatalChart{}, fmt.Errorf("decode chart response: %w", err)
	}

	return decoded.toChart(), nil
}

func (r chartResponse) toChart() astro.NatalChart {
	chart := astro.NatalChart{
		Planets: make(astro.PlanetMap, len(r.Planets)),
		Angles: astro.ChartAngles{
			Ascendant:  r.Angles.Ascendant,
			Midheaven:  r.Angles.Midheaven,
			Descendant: r.Angles.Descendant,
			IC:         r.Angles.IC,
		},
		HouseCusps: r.HouseCusps,
	}

	for name, raw := range r.Planets {
		planet, ok := astro.ParsePlanet(name)
		if !ok {
			continue
		}
		chart.Planets[planet] = astro.PlanetSnapshot{
			Planet:     planet,
			Position:   astro.Normalize(raw.Position),
			House:      raw.House,
			Retrograde: raw.Retrograde,
			Speed:      raw.Speed,
		}
	}

	for _, raw := range r.Aspects {
		first, ok1 := astro.ParsePlanet(raw.First)
		second, ok2 := astro.ParsePlanet(raw.Second)
		if !ok1 || !ok2 {
			continue
		}
		chart.Aspects = append(chart.Aspects, astro.NatalAspect{
			First:  first,
			Second: second,
			Kind:   astro.AspectKind(raw.Kind),
			Orb:    raw.Orb,
		})
	}

	return chart
}

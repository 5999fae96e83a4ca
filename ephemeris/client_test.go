package ephemeris

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cosmichub-sync/astro"
)

func TestHTTPCalculatorCalculateChart(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/charts/calculate", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var params BirthParams
		require.NoError(t, json.NewDecoder(r.Body).Decode(&params))
		assert.Equal(t, 1990, params.Year)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"planets": {
				"sun":    {"position": 280.5, "house": 10, "speed": 1.019},
				"moon":   {"position": 370.0, "house": 1, "speed": 13.2},
				"chiron": {"position": 15.0}
			},
			"angles": {"ascendant": 100.2, "midheaven": 10.5, "descendant": 280.2, "ic": 190.5},
			"houseCusps": [100.2, 130, 160, 190.5, 220, 250, 280.2, 310, 340, 10.5, 40, 70],
			"aspects": [
				{"first": "sun", "second": "moon", "type": "square", "orb": 0.7},
				{"first": "sun", "second": "chiron", "type": "trine", "orb": 2.0}
			]
		}`))
	}))
	defer server.Close()

	calc := NewHTTPCalculator(server.URL, 100, 10)
	chart, err := calc.CalculateChart(context.Background(), BirthParams{Year: 1990, Month: 1, Day: 1})
	require.NoError(t, err)

	require.Len(t, chart.Planets, 2, "unknown planet names are skipped")
	assert.Equal(t, 280.5, chart.Planets[astro.Sun].Position)
	assert.Equal(t, 10.0, chart.Planets[astro.Moon].Position, "positions normalize into [0,360)")

	assert.Equal(t, 100.2, chart.Angles.Ascendant)
	assert.Len(t, chart.HouseCusps, 12)

	require.Len(t, chart.Aspects, 1, "aspects naming unknown planets are skipped")
	assert.Equal(t, astro.Square, chart.Aspects[0].Kind)
	assert.Equal(t, 0.7, chart.Aspects[0].Orb)
}

func TestHTTPCalculatorErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "ephemeris overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	calc := NewHTTPCalculator(server.URL, 100, 10)
	_, err := calc.CalculateChart(context.Background(), BirthParams{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestHTTPCalculatorUnreachable(t *testing.T) {
	calc := NewHTTPCalculator("http://127.0.0.1:1", 100, 10)
	_, err := calc.CalculateChart(context.Background(), BirthParams{})
	require.Error(t, err)
}

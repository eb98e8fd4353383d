package dataset

import (
	"math/rand/v2"

	"shapelab/internal/calibrate"
)

// DefaultSyntheticRows is used when a synthetic dataset does not set Rows.
const DefaultSyntheticRows = 500

var weatherEffect = map[string][2]float64{
	// regression, classification
	"Clear":      {20, 0.5},
	"Cloudy":     {5, 0},
	"Light Rain": {-30, -1},
}

var weatherCategories = []string{"Clear", "Cloudy", "Light Rain"}

// Synthetic generates a small bike-rental-like table with two numeric
// features and one categorical feature. Output is a pure function of the seed.
type Synthetic struct {
	Task calibrate.Task
	Rows int
}

// Load implements Pipeline.
func (s *Synthetic) Load(seed int64) (*Frame, error) {
	n := s.Rows
	if n <= 0 {
		n = DefaultSyntheticRows
	}
	rng := rand.New(rand.NewPCG(uint64(seed), 0xda7a))

	temp := make([]float64, n)
	hum := make([]float64, n)
	weather := make([]string, n)
	target := make([]float64, n)

	for i := range n {
		temp[i] = -8 + 47*rng.Float64()
		hum[i] = 100 * rng.Float64()
		weather[i] = weatherCategories[rng.IntN(len(weatherCategories))]

		effect := weatherEffect[weather[i]]
		if s.Task == calibrate.Classification {
			z := 0.1*(temp[i]-15) - 0.03*(hum[i]-50) + effect[1]
			if rng.Float64() < calibrate.Sigmoid(z) {
				target[i] = 1
			}
			continue
		}
		d := hum[i] - 50
		target[i] = 50 + 3*temp[i] - 0.02*d*d + effect[0] + 10*rng.NormFloat64()
	}

	return &Frame{
		Keys: []string{"Temperature", "Humidity", "Weathersituation"},
		Columns: map[string]*Column{
			"Temperature":      {Key: "Temperature", Kind: Numeric, Numbers: temp},
			"Humidity":         {Key: "Humidity", Kind: Numeric, Numbers: hum},
			"Weathersituation": {Key: "Weathersituation", Kind: Categorical, Labels: weather},
		},
		Target:      target,
		Categorical: CategoricalInfo{"Weathersituation": append([]string(nil), weatherCategories...)},
		Labels: map[string]string{
			"Temperature":      "Temperature (°C)",
			"Humidity":         "Humidity (%)",
			"Weathersituation": "Weather situation",
		},
	}, nil
}

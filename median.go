package binmedian

import (
	"errors"

	"github.com/montanaflynn/stats"
)

// ErrEmpty is returned when a median is requested for an empty sequence.
var ErrEmpty = errors.New("binmedian: empty input")

// Median returns the median of values without modifying them.
// Odd lengths yield the middle element of the ascending sort; even lengths
// yield the mean of the two central elements (numpy convention).
func Median(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, ErrEmpty
	}
	// stats.Median sorts a copy, so values keeps its window order.
	m, err := stats.Median(stats.Float64Data(values))
	if err != nil {
		return 0, err
	}
	return m, nil
}

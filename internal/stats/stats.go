// Package stats reduces batches of latency samples to summary statistics.
package stats

import (
	"fmt"
	"slices"
	"time"
)

// Stats summarizes a batch of latency samples. All values are nanoseconds.
type Stats struct {
	Min  int64
	Max  int64
	Mean int64
	P50  int64
	P99  int64
}

// FromSorted computes Stats from samples sorted in ascending order.
//
// The slice is not re-sorted; callers sort outside of any measured window.
// An empty slice yields the zero Stats. Mean is the integer quotient of the
// sum by the count and truncates toward zero. P50 is the element at index
// n/2 and P99 the element at index floor(n*0.99), which is always in range
// for n >= 1.
func FromSorted(samples []int64) Stats {
	n := len(samples)
	if n == 0 {
		return Stats{}
	}

	var sum int64
	for _, s := range samples {
		sum += s
	}

	return Stats{
		Min:  samples[0],
		Max:  samples[n-1],
		Mean: sum / int64(n),
		P50:  samples[n/2],
		P99:  samples[int(float64(n)*0.99)],
	}
}

// SortAndReduce sorts samples in place and returns their Stats.
func SortAndReduce(samples []int64) Stats {
	slices.Sort(samples)
	return FromSorted(samples)
}

// String renders the stats as durations for human consumption.
func (s Stats) String() string {
	return fmt.Sprintf("min=%v max=%v mean=%v p50=%v p99=%v",
		time.Duration(s.Min), time.Duration(s.Max), time.Duration(s.Mean),
		time.Duration(s.P50), time.Duration(s.P99))
}

package util

import (
	"math"
	"testing"
)

func TestHashStringSeeded(t *testing.T) {
	if HashString("gold", 1) == HashString("gold", 2) {
		t.Errorf("Expected different seeds to produce different hashes")
	}
	if HashString("gold", 42) != HashString("gold", 42) {
		t.Errorf("Expected hashing to be deterministic for the same seed")
	}
}

func TestBucketInRange(t *testing.T) {
	seed := GenerateSeed()
	for _, n := range []int{1, 3, 16, 17} {
		for i := 0; i < 1000; i++ {
			b := Bucket(HashString(string(rune('a'+i%26))+string(rune(i)), seed), n)
			if b < 0 || b >= n {
				t.Fatalf("Bucket %d out of range for n=%d", b, n)
			}
		}
	}
}

func TestNewStats(t *testing.T) {
	stats := NewStats([]float64{2, 4, 4, 4, 5, 5, 7, 9})

	if stats.Mean != 5 {
		t.Errorf("Expected mean 5, got %f", stats.Mean)
	}
	if stats.StdDeviation != 2 {
		t.Errorf("Expected std deviation 2, got %f", stats.StdDeviation)
	}
	if stats.Min != 2 || stats.Max != 9 {
		t.Errorf("Expected min 2 and max 9, got %f and %f", stats.Min, stats.Max)
	}

	if empty := NewStats(nil); empty != (Stats{}) {
		t.Errorf("Expected zero stats for no values, got %+v", empty)
	}
}

func TestDistributionQuality(t *testing.T) {
	even := NewDistributionStats([]float64{10, 10, 10, 10})
	if math.Abs(even.DistributionQuality-1) > 1e-9 {
		t.Errorf("Expected perfect quality for an even distribution, got %f", even.DistributionQuality)
	}

	skewed := NewDistributionStats([]float64{0, 0, 0, 40})
	if skewed.DistributionQuality >= even.DistributionQuality {
		t.Errorf("Expected skewed distribution to rate lower, got %f", skewed.DistributionQuality)
	}
}

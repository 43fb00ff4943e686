package derive

import (
	"math/rand"
	"time"
)

const growthMonths = 12

// Monthly growth rate bounds for the synthetic history.
const (
	growthRateMin = 0.015
	growthRateMax = 0.045
)

// syntheticGrowth fabricates a plausible monthly follower history ending at
// the current count. The series walks backwards, shrinking each month by a
// bounded random growth rate. Reproducibility is a non-goal in production;
// tests inject a seeded source to pin exact values.
func syntheticGrowth(followers int64, now time.Time, rng *rand.Rand) []GrowthPoint {
	if followers <= 0 {
		return nil
	}

	points := make([]GrowthPoint, growthMonths)
	month := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	current := float64(followers)
	for i := growthMonths - 1; i >= 0; i-- {
		points[i] = GrowthPoint{
			Month:     month.Format("2006-01"),
			Followers: int64(current + 0.5),
		}
		rate := growthRateMin + rng.Float64()*(growthRateMax-growthRateMin)
		current /= 1 + rate
		month = month.AddDate(0, -1, 0)
	}
	return points
}

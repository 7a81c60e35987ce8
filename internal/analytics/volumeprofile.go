package analytics

import (
	"math"
	"sort"

	"market-analytics/internal/types"
)

const (
	// DefaultProfileBuckets is the bucket count used when the caller passes
	// a non-positive count.
	DefaultProfileBuckets = 50
	// DefaultValueAreaFraction is the share of total volume the value area
	// must cover.
	DefaultValueAreaFraction = 0.70
)

// BuildVolumeProfile partitions the series' price range into bucketCount
// equal bins, redistributes each candle's volume uniformly across its own
// range, and derives the POC and value area. Returns nil when the series is
// empty or contains no usable candle. Candles with high < low or negative
// volume are skipped and counted.
func BuildVolumeProfile(candles []types.Candle, bucketCount int, valueAreaFraction float64) *types.VolumeProfileView {
	if len(candles) == 0 {
		return nil
	}
	if bucketCount <= 0 {
		bucketCount = DefaultProfileBuckets
	}
	if valueAreaFraction <= 0 || valueAreaFraction > 1 {
		valueAreaFraction = DefaultValueAreaFraction
	}

	skipped := 0
	valid := make([]types.Candle, 0, len(candles))
	for _, c := range candles {
		if c.High < c.Low || c.Vol < 0 {
			skipped++
			continue
		}
		valid = append(valid, c)
	}
	if len(valid) == 0 {
		return nil
	}

	minPrice := math.Inf(1)
	maxPrice := math.Inf(-1)
	for _, c := range valid {
		minPrice = math.Min(minPrice, math.Min(c.Low, c.Close))
		maxPrice = math.Max(maxPrice, math.Max(c.High, c.Close))
	}
	bucketSize := (maxPrice - minPrice) / float64(bucketCount)

	bucketOf := func(price float64) int {
		if bucketSize <= 0 {
			return 0
		}
		i := int((price - minPrice) / bucketSize)
		if i < 0 {
			return 0
		}
		if i >= bucketCount {
			return bucketCount - 1
		}
		return i
	}

	volumes := make([]float64, bucketCount)
	total := 0.0
	for _, c := range valid {
		total += c.Vol
		if c.High == c.Low {
			// Single traded price: the whole candle lands in one bucket.
			volumes[bucketOf(c.Low)] += c.Vol
			continue
		}
		steps := 1
		if bucketSize > 0 {
			if s := int(math.Floor((c.High - c.Low) / bucketSize)); s > 1 {
				steps = s
			}
		}
		per := c.Vol / float64(steps)
		for s := 0; s < steps; s++ {
			volumes[bucketOf(c.Low+float64(s)*bucketSize)] += per
		}
	}

	center := func(i int) float64 {
		if bucketSize <= 0 {
			return minPrice
		}
		return minPrice + (float64(i)+0.5)*bucketSize
	}

	// POC: max volume, lowest price wins ties.
	poc := 0
	for i, v := range volumes {
		if v > volumes[poc] {
			poc = i
		}
	}

	view := &types.VolumeProfileView{
		POC:         types.VolumeBucket{PriceCenter: center(poc), Volume: volumes[poc]},
		TotalVolume: total,
		BucketSize:  bucketSize,
		Skipped:     skipped,
	}

	// Value area: walk buckets outward from the POC by absolute price
	// distance (ties toward the lower price) until the target fraction of
	// volume is covered.
	order := make([]int, bucketCount)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		da := math.Abs(center(order[a]) - center(poc))
		db := math.Abs(center(order[b]) - center(poc))
		if da != db {
			return da < db
		}
		return center(order[a]) < center(order[b])
	})

	target := total * valueAreaFraction
	covered := 0.0
	vaLow, vaHigh := center(poc), center(poc)
	for _, i := range order {
		covered += volumes[i]
		c := center(i)
		vaLow = math.Min(vaLow, c)
		vaHigh = math.Max(vaHigh, c)
		if covered >= target {
			break
		}
	}
	view.ValueAreaLow, view.ValueAreaHigh = vaLow, vaHigh

	view.Buckets = make([]types.VolumeBucket, 0, bucketCount)
	for i, v := range volumes {
		if v == 0 {
			continue
		}
		view.Buckets = append(view.Buckets, types.VolumeBucket{PriceCenter: center(i), Volume: v})
	}
	return view
}

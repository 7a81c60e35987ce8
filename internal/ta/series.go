package ta

import (
	"math"

	"market-analytics/internal/types"
)

// Series transforms. Every function returns a slice aligned index-for-index
// with its input, with math.NaN() at indices before enough history exists.

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// SMASeries is the simple moving average over a sliding window of n closes.
func SMASeries(closes []float64, n int) []float64 {
	out := nanSlice(len(closes))
	if n <= 0 || len(closes) < n {
		return out
	}
	sum := 0.0
	for i, c := range closes {
		sum += c
		if i >= n {
			sum -= closes[i-n]
		}
		if i >= n-1 {
			out[i] = sum / float64(n)
		}
	}
	return out
}

// EMASeries is the exponential moving average with smoothing 2/(n+1),
// seeded with the SMA of the first n closes.
func EMASeries(closes []float64, n int) []float64 {
	out := nanSlice(len(closes))
	if n <= 0 || len(closes) < n {
		return out
	}
	seed := 0.0
	for i := 0; i < n; i++ {
		seed += closes[i]
	}
	prev := seed / float64(n)
	out[n-1] = prev
	k := 2.0 / float64(n+1)
	for i := n; i < len(closes); i++ {
		prev = (closes[i]-prev)*k + prev
		out[i] = prev
	}
	return out
}

// RSISeries is the relative strength index with Wilder's smoothing. The
// first value appears at index period.
func RSISeries(closes []float64, period int) []float64 {
	out := nanSlice(len(closes))
	if period <= 0 || len(closes) < period+1 {
		return out
	}

	avgGain, avgLoss := 0.0, 0.0
	for i := 1; i <= period; i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			avgGain += d
		} else {
			avgLoss -= d
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if d > 0 {
			gain = d
		} else {
			loss = -d
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}

// MACDSeries returns the MACD line (fast EMA minus slow EMA), its signal EMA
// and the histogram. Standard parameters are 12, 26, 9.
func MACDSeries(closes []float64, fast, slow, signal int) (line, sig, hist []float64) {
	n := len(closes)
	line, sig, hist = nanSlice(n), nanSlice(n), nanSlice(n)
	if fast <= 0 || slow <= 0 || signal <= 0 || fast >= slow || n < slow {
		return
	}

	emaFast := EMASeries(closes, fast)
	emaSlow := EMASeries(closes, slow)
	for i := slow - 1; i < n; i++ {
		line[i] = emaFast[i] - emaSlow[i]
	}

	// Signal line is an EMA over the valid portion of the MACD line.
	first := slow - 1
	if n-first < signal {
		return
	}
	seed := 0.0
	for i := first; i < first+signal; i++ {
		seed += line[i]
	}
	prev := seed / float64(signal)
	sigIdx := first + signal - 1
	sig[sigIdx] = prev
	hist[sigIdx] = line[sigIdx] - prev
	k := 2.0 / float64(signal+1)
	for i := sigIdx + 1; i < n; i++ {
		prev = (line[i]-prev)*k + prev
		sig[i] = prev
		hist[i] = line[i] - prev
	}
	return
}

// BollingerSeries returns middle (SMA), upper and lower bands at k standard
// deviations.
func BollingerSeries(closes []float64, n int, k float64) (mid, up, low []float64) {
	length := len(closes)
	mid = SMASeries(closes, n)
	up, low = nanSlice(length), nanSlice(length)
	if n <= 0 || length < n {
		return
	}
	for i := n - 1; i < length; i++ {
		m := mid[i]
		s := 0.0
		for j := i - n + 1; j <= i; j++ {
			d := closes[j] - m
			s += d * d
		}
		sd := math.Sqrt(s / float64(n))
		up[i] = m + k*sd
		low[i] = m - k*sd
	}
	return
}

// VWAPSeries is the cumulative volume-weighted average of the typical price,
// reset at each UTC session (day) boundary. Candles with zero cumulative
// volume yield NaN.
func VWAPSeries(candles []types.Candle) []float64 {
	out := nanSlice(len(candles))
	var pv, vol float64
	var session int64 = math.MinInt64
	for i, c := range candles {
		day := c.Ts / 86_400_000
		if day != session {
			session = day
			pv, vol = 0, 0
		}
		typical := (c.High + c.Low + c.Close) / 3.0
		pv += typical * c.Vol
		vol += c.Vol
		if vol > 0 {
			out[i] = pv / vol
		}
	}
	return out
}

// HeikinAshi converts a candle series to Heikin-Ashi candles. The first
// candle seeds haOpen from its own open and close.
func HeikinAshi(candles []types.Candle) []types.Candle {
	if len(candles) == 0 {
		return nil
	}
	out := make([]types.Candle, len(candles))
	for i, c := range candles {
		haClose := (c.Open + c.High + c.Low + c.Close) / 4.0
		var haOpen float64
		if i == 0 {
			haOpen = (c.Open + c.Close) / 2.0
		} else {
			haOpen = (out[i-1].Open + out[i-1].Close) / 2.0
		}
		out[i] = types.Candle{
			Ts:     c.Ts,
			Open:   haOpen,
			High:   math.Max(c.High, math.Max(haOpen, haClose)),
			Low:    math.Min(c.Low, math.Min(haOpen, haClose)),
			Close:  haClose,
			Vol:    c.Vol,
			Closed: c.Closed,
		}
	}
	return out
}

// Closes extracts the close column of a candle series.
func Closes(candles []types.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

package indicators

import "math"

// Series functions return trimmed outputs: element i corresponds to input index i + (len(in) - len(out)).
// A nil result means the input was too short.

// SMA is the simple moving average.
func SMA(xs []float64, period int) []float64 {
	if period <= 0 || len(xs) < period {
		return nil
	}
	out := make([]float64, 0, len(xs)-period+1)
	sum := 0.0
	for i, v := range xs {
		sum += v
		if i >= period {
			sum -= xs[i-period]
		}
		if i >= period-1 {
			out = append(out, sum/float64(period))
		}
	}
	return out
}

// EMA is the exponential moving average, seeded with the SMA of the first period values.
func EMA(xs []float64, period int) []float64 {
	if period <= 0 || len(xs) < period {
		return nil
	}
	k := 2.0 / float64(period+1)
	seed := 0.0
	for _, v := range xs[:period] {
		seed += v
	}
	prev := seed / float64(period)
	out := make([]float64, 0, len(xs)-period+1)
	out = append(out, prev)
	for _, v := range xs[period:] {
		prev = v*k + prev*(1-k)
		out = append(out, prev)
	}
	return out
}

// wilder smooths with alpha = 1/period, seeded with the mean of the first period values.
func wilder(xs []float64, period int) []float64 {
	if period <= 0 || len(xs) < period {
		return nil
	}
	sum := 0.0
	for _, v := range xs[:period] {
		sum += v
	}
	prev := sum / float64(period)
	out := make([]float64, 0, len(xs)-period+1)
	out = append(out, prev)
	p := float64(period)
	for _, v := range xs[period:] {
		prev = (prev*(p-1) + v) / p
		out = append(out, prev)
	}
	return out
}

// StdDev is the rolling population standard deviation.
func StdDev(xs []float64, period int) []float64 {
	if period <= 1 || len(xs) < period {
		return nil
	}
	out := make([]float64, 0, len(xs)-period+1)
	for i := period; i <= len(xs); i++ {
		out = append(out, stdev(xs[i-period:i]))
	}
	return out
}

func stdev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	mean := 0.0
	for _, v := range xs {
		mean += v
	}
	mean /= float64(len(xs))
	ss := 0.0
	for _, v := range xs {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)))
}

// RSI is Wilder's relative strength index.
func RSI(closes []float64, period int) []float64 {
	if period <= 0 || len(closes) <= period {
		return nil
	}
	gains := make([]float64, 0, len(closes)-1)
	losses := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		gains = append(gains, math.Max(d, 0))
		losses = append(losses, math.Max(-d, 0))
	}
	ag := wilder(gains, period)
	al := wilder(losses, period)
	out := make([]float64, len(ag))
	for i := range ag {
		switch {
		case al[i] == 0 && ag[i] == 0:
			out[i] = 50
		case al[i] == 0:
			out[i] = 100
		default:
			out[i] = 100 - 100/(1+ag[i]/al[i])
		}
	}
	return out
}

// TrueRange returns max(h-l, |h-prevClose|, |l-prevClose|) starting from the second bar.
func TrueRange(highs, lows, closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		pc := closes[i-1]
		tr := math.Max(highs[i]-lows[i], math.Max(math.Abs(highs[i]-pc), math.Abs(lows[i]-pc)))
		out = append(out, tr)
	}
	return out
}

// ATR is Wilder's average true range.
func ATR(highs, lows, closes []float64, period int) []float64 {
	return wilder(TrueRange(highs, lows, closes), period)
}

// MACD returns the MACD line, its signal EMA and the histogram, all aligned to the histogram length.
func MACD(closes []float64, fast, slow, signal int) (line, sig, hist []float64) {
	f := EMA(closes, fast)
	s := EMA(closes, slow)
	if f == nil || s == nil {
		return nil, nil, nil
	}
	off := len(f) - len(s)
	full := make([]float64, len(s))
	for i := range s {
		full[i] = f[i+off] - s[i]
	}
	sig = EMA(full, signal)
	if sig == nil {
		return nil, nil, nil
	}
	line = full[len(full)-len(sig):]
	hist = make([]float64, len(sig))
	for i := range sig {
		hist[i] = line[i] - sig[i]
	}
	return line, sig, hist
}

// Stochastic returns %K over period and %D as the smoothing-period SMA of %K, aligned to %D.
func Stochastic(highs, lows, closes []float64, period, smooth int) (k, d []float64) {
	if period <= 0 || len(closes) < period {
		return nil, nil
	}
	raw := make([]float64, 0, len(closes)-period+1)
	for i := period - 1; i < len(closes); i++ {
		hh, ll := highs[i], lows[i]
		for j := i - period + 1; j < i; j++ {
			hh = math.Max(hh, highs[j])
			ll = math.Min(ll, lows[j])
		}
		if hh == ll {
			raw = append(raw, 50)
			continue
		}
		raw = append(raw, (closes[i]-ll)/(hh-ll)*100)
	}
	d = SMA(raw, smooth)
	if d == nil {
		return nil, nil
	}
	return raw[len(raw)-len(d):], d
}

// CCI is the commodity channel index over typical price.
func CCI(highs, lows, closes []float64, period int) []float64 {
	if period <= 0 || len(closes) < period {
		return nil
	}
	tp := typical(highs, lows, closes)
	out := make([]float64, 0, len(tp)-period+1)
	for i := period; i <= len(tp); i++ {
		w := tp[i-period : i]
		mean := 0.0
		for _, v := range w {
			mean += v
		}
		mean /= float64(period)
		md := 0.0
		for _, v := range w {
			md += math.Abs(v - mean)
		}
		md /= float64(period)
		if md == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, (tp[i-1]-mean)/(0.015*md))
	}
	return out
}

// MFI is the money flow index.
func MFI(highs, lows, closes, volumes []float64, period int) []float64 {
	if period <= 0 || len(closes) <= period {
		return nil
	}
	tp := typical(highs, lows, closes)
	pos := make([]float64, len(tp))
	neg := make([]float64, len(tp))
	for i := 1; i < len(tp); i++ {
		flow := tp[i] * volumes[i]
		switch {
		case tp[i] > tp[i-1]:
			pos[i] = flow
		case tp[i] < tp[i-1]:
			neg[i] = flow
		}
	}
	out := make([]float64, 0, len(tp)-period)
	for i := period; i < len(tp); i++ {
		p, n := 0.0, 0.0
		for j := i - period + 1; j <= i; j++ {
			p += pos[j]
			n += neg[j]
		}
		switch {
		case p == 0 && n == 0:
			out = append(out, 50)
		case n == 0:
			out = append(out, 100)
		default:
			out = append(out, 100-100/(1+p/n))
		}
	}
	return out
}

// Bollinger returns bands at mult population standard deviations around the SMA.
func Bollinger(closes []float64, period int, mult float64) (upper, middle, lower []float64) {
	middle = SMA(closes, period)
	sd := StdDev(closes, period)
	if middle == nil || sd == nil {
		return nil, nil, nil
	}
	upper = make([]float64, len(middle))
	lower = make([]float64, len(middle))
	for i := range middle {
		upper[i] = middle[i] + mult*sd[i]
		lower[i] = middle[i] - mult*sd[i]
	}
	return upper, middle, lower
}

// Profile buckets volume by typical price into bins and returns the point of control
// and the 70% value area bounds. ok is false when there is no volume.
func Profile(highs, lows, closes, volumes []float64, bins int) (poc, vah, val float64, ok bool) {
	if len(closes) == 0 || bins <= 0 {
		return 0, 0, 0, false
	}
	lo, hi := lows[0], highs[0]
	total := 0.0
	for i := range closes {
		lo = math.Min(lo, lows[i])
		hi = math.Max(hi, highs[i])
		total += volumes[i]
	}
	if total <= 0 {
		return 0, 0, 0, false
	}
	if hi == lo {
		return hi, hi, lo, true
	}
	width := (hi - lo) / float64(bins)
	hist := make([]float64, bins)
	tp := typical(highs, lows, closes)
	for i, p := range tp {
		b := int((p - lo) / width)
		if b >= bins {
			b = bins - 1
		}
		if b < 0 {
			b = 0
		}
		hist[b] += volumes[i]
	}
	best := 0
	for i, v := range hist {
		if v > hist[best] {
			best = i
		}
	}
	l, r := best, best
	acc := hist[best]
	for acc < 0.7*total && (l > 0 || r < bins-1) {
		left, right := -1.0, -1.0
		if l > 0 {
			left = hist[l-1]
		}
		if r < bins-1 {
			right = hist[r+1]
		}
		if right > left {
			r++
			acc += right
		} else {
			l--
			acc += left
		}
	}
	center := func(i int) float64 { return lo + (float64(i)+0.5)*width }
	return center(best), lo + float64(r+1)*width, lo + float64(l)*width, true
}

func typical(highs, lows, closes []float64) []float64 {
	out := make([]float64, len(closes))
	for i := range closes {
		out[i] = (highs[i] + lows[i] + closes[i]) / 3
	}
	return out
}

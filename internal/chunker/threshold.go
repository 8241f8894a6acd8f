package chunker

import (
	"math"
	"sort"
	"strings"
)

// ThresholdType 断点阈值的计算方式
type ThresholdType string

const (
	// ThresholdPercentile 距离分布的第 p 百分位
	ThresholdPercentile ThresholdType = "percentile"
	// ThresholdPercent min + p*(max-min)
	ThresholdPercent ThresholdType = "percent"
	// ThresholdStdev mean + k*sd
	ThresholdStdev ThresholdType = "stdev"
)

// 各阈值类型的默认参数
var defaultThresholdAmounts = map[ThresholdType]float64{
	ThresholdPercentile: 95,
	ThresholdPercent:    0.95,
	ThresholdStdev:      3,
}

// ParseThresholdType 解析阈值类型名
func ParseThresholdType(s string) (ThresholdType, error) {
	t := ThresholdType(strings.ToLower(strings.TrimSpace(s)))
	if t == "standard_deviation" {
		t = ThresholdStdev
	}
	if _, ok := defaultThresholdAmounts[t]; !ok {
		return "", newConfigError("breakpoint_threshold_type", "must be one of percentile, percent, stdev, got %q", s)
	}
	return t, nil
}

func validateThreshold(t ThresholdType, amount float64) error {
	if _, err := ParseThresholdType(string(t)); err != nil {
		return err
	}
	if math.IsNaN(amount) {
		return newConfigError("breakpoint_threshold_amount", "must be a number")
	}
	if amount == 0 {
		return nil
	}
	switch t {
	case ThresholdPercentile:
		if amount < 0 || amount > 100 {
			return newConfigError("breakpoint_threshold_amount", "percentile must be within [0, 100], got %v", amount)
		}
	case ThresholdPercent:
		if amount < 0 || amount > 1 {
			return newConfigError("breakpoint_threshold_amount", "percent must be within [0, 1], got %v", amount)
		}
	case ThresholdStdev:
		if amount < 0 {
			return newConfigError("breakpoint_threshold_amount", "stdev multiplier must not be negative, got %v", amount)
		}
	}
	return nil
}

// thresholdAmount 0 表示取类型默认值
func thresholdAmount(t ThresholdType, amount float64) float64 {
	if amount == 0 {
		return defaultThresholdAmounts[t]
	}
	return amount
}

// computeThreshold 根据距离序列计算断点阈值
func computeThreshold(t ThresholdType, amount float64, distances []float64) float64 {
	if len(distances) == 0 {
		return 0
	}
	switch t {
	case ThresholdPercentile:
		return percentile(distances, amount)
	case ThresholdStdev:
		mean, sd := meanStdev(distances)
		return mean + amount*sd
	default:
		lo, hi := distances[0], distances[0]
		for _, d := range distances[1:] {
			lo = math.Min(lo, d)
			hi = math.Max(hi, d)
		}
		return lo + amount*(hi-lo)
	}
}

// percentile 线性插值的百分位数
func percentile(values []float64, p float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*(rank-float64(lo))
}

// meanStdev 均值与总体标准差
func meanStdev(values []float64) (float64, float64) {
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(sq / float64(len(values)))
}

// cosineDistance 1 - 余弦相似度，任一向量为零向量时相似度记为0
func cosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

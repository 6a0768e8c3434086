package scheduler

import (
	"math"
	"slices"
)

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// gini 计算分配比例分布的基尼系数，0 表示完全平均
// G = Σ(2(i+1) - n - 1) * r[i] / (n * Σr)，r 升序
func gini(ratios []float64) float64 {
	n := len(ratios)
	if n == 0 {
		return 0
	}

	sorted := slices.Clone(ratios)
	slices.Sort(sorted)

	sum := 0.0
	weighted := 0.0
	for i, r := range sorted {
		sum += r
		weighted += float64(2*(i+1)-n-1) * r
	}
	if sum == 0 {
		return 0
	}

	return clamp(weighted/(float64(n)*sum), 0, 1)
}

// normalizedEntropy 计算归一化香农熵，只有一种取值时为 0，完全均匀时为 1
func normalizedEntropy(counts map[string]int64) float64 {
	total := int64(0)
	kinds := 0
	for _, c := range counts {
		if c > 0 {
			total += c
			kinds++
		}
	}
	if kinds <= 1 {
		return 0
	}

	h := 0.0
	for _, c := range counts {
		if c <= 0 {
			continue
		}
		p := float64(c) / float64(total)
		h -= p * math.Log(p)
	}

	return clamp(h/math.Log(float64(kinds)), 0, 1)
}

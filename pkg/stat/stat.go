// Package stat holds the numeric primitives shared by every MODL cost model:
// log-factorials and Rissanen's universal code for the positive integers.
// All results are in nats.
package stat

import (
	"fmt"
	"math"
	"sync"
)

const (
	lnFactorialTableSize = 65536
	lnStarTableSize      = 2000

	// c0 recomputed from the exact value at e(3)=65536 plus log(2)^5/(1-log(2)).
	c0 = 2.86511
)

var (
	Log2 = math.Log(2.0)

	lnFactorialOnce  sync.Once
	lnFactorialTable []float64

	lnStarOnce  sync.Once
	lnStarTable []float64
)

// LnFactorial returns log(n!).
func LnFactorial(n int) float64 {
	if n < 0 {
		panic(fmt.Sprintf("stat: LnFactorial of negative value %d", n))
	}
	if n < lnFactorialTableSize {
		lnFactorialOnce.Do(buildLnFactorialTable)
		return lnFactorialTable[n]
	}
	v, _ := math.Lgamma(float64(n) + 1)
	return v
}

func buildLnFactorialTable() {
	lnFactorialTable = make([]float64, lnFactorialTableSize)
	for i := 1; i < lnFactorialTableSize; i++ {
		lnFactorialTable[i] = lnFactorialTable[i-1] + math.Log(float64(i))
	}
}

// LnStar returns log2*(n), the sum of the positive iterated base-2 logarithms of n.
func LnStar(n int) float64 {
	if n <= 0 {
		panic(fmt.Sprintf("stat: LnStar requires n > 0, got %d", n))
	}
	lnStarOnce.Do(buildLnStarTable)
	if n < lnStarTableSize {
		return lnStarTable[n-1]
	}
	return iteratedLog2(float64(n))
}

func iteratedLog2(x float64) float64 {
	cost := 0.0
	l := math.Log(x) / Log2
	for l > 0 {
		cost += l
		l = math.Log(l) / Log2
	}
	return cost
}

func buildLnStarTable() {
	lnStarTable = make([]float64, lnStarTableSize)
	for i := 1; i < lnStarTableSize; i++ {
		lnStarTable[i] = iteratedLog2(float64(i + 1))
	}
}

// LnBinomial returns log C(n, k) through log-factorials.
func LnBinomial(n, k int) float64 {
	if k < 0 || k > n {
		panic(fmt.Sprintf("stat: LnBinomial(%d, %d) out of range", n, k))
	}
	return LnFactorial(n) - LnFactorial(k) - LnFactorial(n-k)
}

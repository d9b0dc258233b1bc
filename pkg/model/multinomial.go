package model

import (
	"fmt"
	"math"
)

// StandardCost is the code length of one undivided multinomial over v categories with n draws.
func StandardCost(n, v int) float64 {
	if n <= 0 || v <= 0 {
		panic(fmt.Sprintf("model: StandardCost(%d, %d) requires n > 0 and v > 0", n, v))
	}
	return lnF(n+v-1) - lnF(n) - lnF(v-1)
}

// HierarchicalCost is the code length of splitting a range into a first group of
// firstSize atoms holding firstFreq instances and a second group holding the rest.
func HierarchicalCost(firstFreq, firstSize, secondFreq, secondSize int) float64 {
	totalSize := firstSize + secondSize
	totalFreq := firstFreq + secondFreq
	cost := math.Log(float64(totalSize)/2.0) + math.Log(float64(totalFreq)+1)
	cost += lnF(totalSize) - lnF(firstSize) - lnF(secondSize)
	cost += StandardCost(firstFreq, firstSize) + StandardCost(secondFreq, secondSize)
	return cost
}

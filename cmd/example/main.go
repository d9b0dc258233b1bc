package main

import (
	"fmt"
	"log"
	"time"

	"modl/pkg/client"
)

func main() {
	fmt.Println("Connecting to MODL...")
	cli, err := client.Dial("localhost:9090")
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer cli.Close()

	counts := []int{50, 30, 10, 5, 5}
	fmt.Printf("Grouping value counts %v\n", counts)
	start := time.Now()
	groups, err := cli.Group("color", counts)
	if err != nil {
		log.Fatalf("Group failed: %v", err)
	}
	fmt.Printf("%d groups, cost %.4f (in %v)\n", groups.K(), groups.Cost, time.Since(start))
	for i, part := range groups.Parts {
		fmt.Printf("  group %d: values [%d, %d], %d instances\n", i, part.First, part.Last, part.Frequency)
	}

	values := []float64{0.1, 0.2, 0.2, 0.3, 0.35, 9.8, 9.9, 10, 10, 10.1}
	fmt.Printf("Histogram of %d values\n", len(values))
	start = time.Now()
	hist, err := cli.Histogram("amount", values)
	if err != nil {
		log.Fatalf("Histogram failed: %v", err)
	}
	fmt.Printf("%d intervals, cost %.4f (in %v)\n", hist.K(), hist.Cost, time.Since(start))
	for _, part := range hist.Parts {
		fmt.Printf("  ]%g, %g]: %d\n", part.LowerBound, part.UpperBound, part.Frequency)
	}
}

package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"time"

	"modl/pkg/protocol"
)

func main() {
	httpAddr := flag.String("http", "http://localhost:8080", "HTTP API base URL")
	tcpAddr := flag.String("tcp", "localhost:9090", "TCP server address")
	nReq := flag.Int("n", 2000, "Number of requests per run")
	flag.Parse()

	fmt.Printf("MODL Protocol Benchmark (N=%d)\n", *nReq)
	fmt.Printf("  HTTP=%s  TCP=%s\n", *httpAddr, *tcpAddr)
	fmt.Println("---------------------------------------------------")

	fmt.Println(">> Starting HTTP Benchmark (JSON over HTTP 1.1)...")
	httpDuration := runHTTPBenchmark(*httpAddr, *nReq)
	fmt.Printf("   HTTP Time: %v | QPS: %.0f\n\n", httpDuration, float64(*nReq)/httpDuration.Seconds())

	fmt.Println(">> Starting TCP Benchmark (Binary Protocol)...")
	tcpDuration := runTCPBenchmark(*tcpAddr, *nReq)
	fmt.Printf("   TCP  Time: %v | QPS: %.0f\n", tcpDuration, float64(*nReq)/tcpDuration.Seconds())

	fmt.Println("---------------------------------------------------")
	speedup := httpDuration.Seconds() / tcpDuration.Seconds()
	fmt.Printf("Conclusion: TCP is %.2fx faster than HTTP\n", speedup)
}

// benchCounts is a skewed distribution so that both bisection levels run.
func benchCounts(i int) []int {
	counts := []int{1000 + i%7, 100, 100, 100, 100, 100}
	for j := 0; j < 20; j++ {
		counts = append(counts, 1)
	}
	return counts
}

func runHTTPBenchmark(httpAddr string, n int) time.Duration {
	start := time.Now()
	client := &http.Client{
		Transport: &http.Transport{
			MaxIdleConnsPerHost: 100,
		},
	}

	for i := 0; i < n; i++ {
		data := map[string]interface{}{
			"name":   fmt.Sprintf("attr-%d", i),
			"counts": benchCounts(i),
		}
		jsonData, _ := json.Marshal(data)

		resp, err := client.Post(httpAddr+"/api/group", "application/json", bytes.NewReader(jsonData))
		if err != nil {
			log.Fatalf("HTTP Req failed: %v", err)
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}
	return time.Since(start)
}

func runTCPBenchmark(addr string, n int) time.Duration {
	start := time.Now()

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		log.Fatalf("TCP Connect failed: %v", err)
	}
	defer conn.Close()

	for i := 0; i < n; i++ {
		key := []byte(fmt.Sprintf("attr-%d", i))
		err := protocol.Encode(conn, protocol.OpGroup, key, protocol.EncodeCounts(benchCounts(i)))
		if err != nil {
			log.Fatalf("TCP Write failed: %v", err)
		}

		resp, err := protocol.Decode(conn)
		if err != nil {
			log.Fatalf("TCP Read failed: %v", err)
		}
		if resp.Op != protocol.RespVal {
			log.Fatalf("TCP search failed: %s", resp.Value)
		}
	}

	return time.Since(start)
}

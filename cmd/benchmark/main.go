// Benchmark tool for testing Clarity against labeled coverage scenarios.
//
// Usage:
//   go run cmd/benchmark/main.go -csv /path/to/scenarios.csv -url http://localhost:8080
//
// This tool:
//   1. Reads labeled coverage scenarios (profile fields plus an expected tier)
//   2. Sends each scenario to Clarity for classification
//   3. Compares Clarity's verdict with the expected tier
//   4. Calculates agreement, a per-tier breakdown, and throughput
//
// CSV columns (header required):
//   carrier,state,planSource,bmi,age,comorbidities,medicationHistory,medication,enrolled,expected
// comorbidities and medicationHistory are semicolon-separated lists.
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Scenario is one labeled row from the scenarios CSV.
type Scenario struct {
	Carrier           string
	State             string
	PlanSource        string
	BMI               float64
	Age               int
	Comorbidities     []string
	MedicationHistory []string
	Medication        string
	Enrolled          bool
	Expected          string
}

// ClassifyRequest is the Clarity API request format.
type ClassifyRequest struct {
	Profile ProfilePayload `json:"profile"`
}

// ProfilePayload mirrors the classify endpoint's profile shape.
type ProfilePayload struct {
	Carrier                    string   `json:"carrier"`
	State                      string   `json:"state"`
	PlanSource                 string   `json:"planSource"`
	BMI                        float64  `json:"bmi"`
	Age                        int      `json:"age"`
	Comorbidities              []string `json:"comorbidities"`
	MedicationHistory          []string `json:"medicationHistory"`
	Medication                 string   `json:"medication"`
	LifestyleProgramEnrollment bool     `json:"lifestyleProgramEnrollment"`
}

// ClassifyResponse is the Clarity API response format.
type ClassifyResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// Metrics tracks benchmark results.
type Metrics struct {
	Agreements    int64
	Disagreements int64

	TotalProcessed int64
	TotalErrors    int64

	ProcessingTimeMs int64

	mu      sync.Mutex
	perTier map[string]*tierStats
}

type tierStats struct {
	Expected int64
	Agreed   int64
}

func (m *Metrics) recordTier(expected string, agreed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.perTier == nil {
		m.perTier = make(map[string]*tierStats)
	}
	st, ok := m.perTier[expected]
	if !ok {
		st = &tierStats{}
		m.perTier[expected] = st
	}
	st.Expected++
	if agreed {
		st.Agreed++
	}
}

func main() {
	// Parse flags
	csvPath := flag.String("csv", "", "Path to labeled scenarios CSV file")
	baseURL := flag.String("url", "http://localhost:8080", "Clarity base URL")
	limit := flag.Int("limit", 10000, "Maximum scenarios to process (0 = all)")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	verbose := flag.Bool("verbose", false, "Print each scenario result")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: benchmark -csv /path/to/scenarios.csv [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║        CLARITY BENCHMARK - Coverage Scenario Agreement        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nCSV File:     %s\n", *csvPath)
	fmt.Printf("Clarity URL:  %s\n", *baseURL)
	fmt.Printf("Workers:      %d\n", *workers)
	fmt.Printf("Limit:        %d\n", *limit)
	fmt.Println()

	// Check Clarity is running
	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Clarity not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Clarity is running:")
		fmt.Println("  cd clarity && go run cmd/clarity/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Clarity is healthy")

	// Read scenarios
	fmt.Printf("\nReading scenarios from %s...\n", *csvPath)
	scenarios, err := readScenariosCSV(*csvPath, *limit)
	if err != nil {
		fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Loaded %d scenarios\n", len(scenarios))

	// Run benchmark
	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(scenarios, *baseURL, *workers, *verbose)
	duration := time.Since(startTime)

	// Print results
	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func readScenariosCSV(path string, limit int) ([]Scenario, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)

	// Read header
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	// Map column indices
	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}

	var scenarios []Scenario

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}

		bmi, _ := strconv.ParseFloat(record[colIndex["bmi"]], 64)
		age, _ := strconv.Atoi(record[colIndex["age"]])
		enrolled := record[colIndex["enrolled"]] == "1" || record[colIndex["enrolled"]] == "true"

		s := Scenario{
			Carrier:           record[colIndex["carrier"]],
			State:             record[colIndex["state"]],
			PlanSource:        record[colIndex["plansource"]],
			BMI:               bmi,
			Age:               age,
			Comorbidities:     splitList(record[colIndex["comorbidities"]]),
			MedicationHistory: splitList(record[colIndex["medicationhistory"]]),
			Medication:        record[colIndex["medication"]],
			Enrolled:          enrolled,
			Expected:          strings.TrimSpace(record[colIndex["expected"]]),
		}

		scenarios = append(scenarios, s)

		if limit > 0 && len(scenarios) >= limit {
			break
		}
	}

	return scenarios, nil
}

func splitList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func runBenchmark(scenarios []Scenario, baseURL string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	// Create work channel
	work := make(chan Scenario, 100)
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for s := range work {
				start := time.Now()
				result, err := classifyScenario(client, baseURL, s)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s/%s -> %v\n", s.Carrier, s.State, err)
					}
					continue
				}

				agreed := result.Status == s.Expected
				if agreed {
					atomic.AddInt64(&metrics.Agreements, 1)
				} else {
					atomic.AddInt64(&metrics.Disagreements, 1)
				}
				metrics.recordTier(s.Expected, agreed)

				if verbose {
					status := "✓"
					if !agreed {
						status = "✗"
					}
					fmt.Printf("%s %-10s %-2s | BMI: %5.1f | Expected: %-14s | Clarity: %-14s | %s\n",
						status,
						s.Carrier,
						s.State,
						s.BMI,
						s.Expected,
						result.Status,
						result.Reason,
					)
				}
			}
		}()
	}

	// Send work
	for _, s := range scenarios {
		work <- s
	}
	close(work)

	// Wait for completion
	wg.Wait()

	return metrics
}

func classifyScenario(client *http.Client, baseURL string, s Scenario) (*ClassifyResponse, error) {
	req := ClassifyRequest{
		Profile: ProfilePayload{
			Carrier:                    s.Carrier,
			State:                      s.State,
			PlanSource:                 s.PlanSource,
			BMI:                        s.BMI,
			Age:                        s.Age,
			Comorbidities:              s.Comorbidities,
			MedicationHistory:          s.MedicationHistory,
			Medication:                 s.Medication,
			LifestyleProgramEnrollment: s.Enrolled,
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/classify", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result ClassifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      BENCHMARK RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 DATASET STATISTICS\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Agreements:       %d\n", m.Agreements)
	fmt.Printf("   Disagreements:    %d\n", m.Disagreements)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)

	scored := m.Agreements + m.Disagreements
	if scored > 0 {
		fmt.Printf("\n🎯 AGREEMENT\n")
		fmt.Printf("   Overall:    %.4f\n", float64(m.Agreements)/float64(scored))

		fmt.Printf("\n   Per expected tier:\n")
		for tier, st := range m.perTier {
			rate := float64(st.Agreed) / float64(st.Expected)
			fmt.Printf("   %-16s %5d scenarios  %.4f\n", tier, st.Expected, rate)
		}
	}

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
		rps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %.2f req/sec\n", rps)
	}

	fmt.Println()
}

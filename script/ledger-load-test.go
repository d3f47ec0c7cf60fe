package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// reserveRequest is the reservation payload
type reserveRequest struct {
	Amount      string `json:"amount"`
	ServiceType string `json:"serviceType"`
	ReferenceID string `json:"referenceId"`
}

type reserveResponse struct {
	EntryID uint64 `json:"entryId"`
}

type auditResponse struct {
	Balance    string `json:"balance"`
	LedgerSum  string `json:"ledgerSum"`
	Consistent bool   `json:"consistent"`
}

// TestResult contains metrics for one reserve-and-settle job
type TestResult struct {
	Success      bool
	Rejected     bool // 402 on reserve, the balance ran out
	ResponseTime time.Duration
	Error        error
}

// TestStats contains aggregated test statistics
type TestStats struct {
	TotalJobs      int
	SuccessfulJobs int
	RejectedJobs   int
	FailedJobs     int
	TotalTime      time.Duration
	ResponseTimes  []time.Duration
	ErrorCounts    map[string]int
	ScenarioStats  map[string]int
	Lock           sync.Mutex
}

// Scenario defines how a reservation is settled
type Scenario struct {
	Name    string
	Reserve string
	Settle  string // confirm or cancel
	Actual  string // confirm at this amount, empty charges the reserved amount
}

func main() {
	concurrency := flag.Int("c", 5, "Number of concurrent goroutines")
	totalJobs := flag.Int("n", 100, "Total number of reserve-and-settle jobs")
	accountsStr := flag.String("a", "load-1,load-2,load-3", "Comma-separated account IDs to spread load across")
	funding := flag.String("fund", "100.00", "Credits purchased for each account before the run")
	baseURL := flag.String("url", "http://localhost:8080", "Base URL for the API")
	delayMs := flag.Int("delay", 50, "Delay between jobs in milliseconds")
	flag.Parse()

	var accounts []string
	for _, id := range strings.Split(*accountsStr, ",") {
		if id = strings.TrimSpace(id); id != "" {
			accounts = append(accounts, id)
		}
	}
	if len(accounts) == 0 {
		accounts = []string{"load-1"}
	}

	scenarios := []Scenario{
		{"Confirm Full", "2.00", "confirm", ""},
		{"Confirm Partial", "5.00", "confirm", "3.25"},
		{"Cancel", "4.00", "cancel", ""},
		{"Confirm Zero", "1.50", "confirm", "0"},
	}

	client := &http.Client{Timeout: 10 * time.Second}

	fmt.Printf("Funding %d accounts with %s credits each\n", len(accounts), *funding)
	for _, id := range accounts {
		if err := fund(client, *baseURL, id, *funding); err != nil {
			fmt.Printf("Setup failed for %s: %v\n", id, err)
			os.Exit(1)
		}
	}

	fmt.Printf("Concurrency: %d goroutines\n", *concurrency)
	fmt.Printf("Total jobs: %d\n", *totalJobs)

	stats := &TestStats{
		TotalJobs:     *totalJobs,
		ErrorCounts:   make(map[string]int),
		ResponseTimes: make([]time.Duration, 0, *totalJobs),
		ScenarioStats: make(map[string]int),
	}

	results := make(chan TestResult, *totalJobs)
	jobs := make(chan int, *totalJobs)

	startTime := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker(client, *baseURL, *delayMs, accounts, scenarios, jobs, results, stats)
		}()
	}

	for i := 0; i < *totalJobs; i++ {
		jobs <- i
	}
	close(jobs)

	var collected sync.WaitGroup
	collected.Add(1)
	go func() {
		defer collected.Done()
		for result := range results {
			stats.Lock.Lock()
			switch {
			case result.Success:
				stats.SuccessfulJobs++
			case result.Rejected:
				stats.RejectedJobs++
			default:
				stats.FailedJobs++
				stats.ErrorCounts[result.Error.Error()]++
			}
			stats.ResponseTimes = append(stats.ResponseTimes, result.ResponseTime)
			stats.Lock.Unlock()
		}
	}()

	wg.Wait()
	close(results)
	collected.Wait()
	stats.TotalTime = time.Since(startTime)

	printResults(stats)

	fmt.Println("\n----------------- AUDIT -----------------")
	consistent := true
	for _, id := range accounts {
		var report auditResponse
		if err := call(client, http.MethodGet, *baseURL+"/admin/accounts/"+id+"/audit", nil, &report); err != nil {
			fmt.Printf("%-12s audit failed: %v\n", id, err)
			consistent = false
			continue
		}
		fmt.Printf("%-12s balance %s, ledger sum %s, consistent %t\n", id, report.Balance, report.LedgerSum, report.Consistent)
		consistent = consistent && report.Consistent
	}
	if !consistent {
		os.Exit(1)
	}
}

func fund(client *http.Client, baseURL, accountID, amount string) error {
	err := call(client, http.MethodPost, baseURL+"/accounts", map[string]string{"accountId": accountID}, nil)
	if err != nil && !strings.Contains(err.Error(), "409") {
		return err
	}
	return call(client, http.MethodPost, baseURL+"/accounts/"+accountID+"/purchases", map[string]string{
		"amount":      amount,
		"referenceId": "load-" + uuid.NewString(),
	}, nil)
}

func worker(client *http.Client, baseURL string, delayMs int, accounts []string,
	scenarios []Scenario, jobs <-chan int, results chan<- TestResult, stats *TestStats) {

	for range jobs {
		if delayMs > 0 {
			time.Sleep(time.Duration(delayMs) * time.Millisecond)
		}

		accountID := accounts[rand.Intn(len(accounts))]
		scenario := scenarios[rand.Intn(len(scenarios))]

		stats.Lock.Lock()
		stats.ScenarioStats[scenario.Name]++
		stats.Lock.Unlock()

		start := time.Now()
		var reserved reserveResponse
		err := call(client, http.MethodPost, baseURL+"/accounts/"+accountID+"/reservations", reserveRequest{
			Amount:      scenario.Reserve,
			ServiceType: "web_extraction",
			ReferenceID: uuid.NewString(),
		}, &reserved)
		if err != nil {
			results <- TestResult{
				Rejected:     strings.Contains(err.Error(), "402"),
				ResponseTime: time.Since(start),
				Error:        err,
			}
			continue
		}

		var body any
		if scenario.Actual != "" {
			body = map[string]string{"actualAmount": scenario.Actual}
		}
		err = call(client, http.MethodPost, fmt.Sprintf("%s/reservations/%d/%s", baseURL, reserved.EntryID, scenario.Settle), body, nil)
		results <- TestResult{
			Success:      err == nil,
			ResponseTime: time.Since(start),
			Error:        err,
		}
	}
}

// call sends a JSON request and decodes a 2xx response into out when it is not nil
func call(client *http.Client, method, url string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequest(method, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("HTTP status code %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func printResults(stats *TestStats) {
	jobsPerSecond := float64(stats.SuccessfulJobs) / stats.TotalTime.Seconds()

	var avg, p50, p90, p99 time.Duration
	if n := len(stats.ResponseTimes); n > 0 {
		sorted := make([]time.Duration, n)
		copy(sorted, stats.ResponseTimes)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var total time.Duration
		for _, d := range sorted {
			total += d
		}
		avg = total / time.Duration(n)
		p50 = sorted[n*50/100]
		p90 = sorted[n*90/100]
		p99 = sorted[n*99/100]
	}

	fmt.Println("\n================= TEST RESULTS =================")
	fmt.Printf("Total Jobs:          %d\n", stats.TotalJobs)
	fmt.Printf("Settled:             %d\n", stats.SuccessfulJobs)
	fmt.Printf("Rejected (402):      %d\n", stats.RejectedJobs)
	fmt.Printf("Failed:              %d\n", stats.FailedJobs)
	fmt.Printf("Total Test Time:     %.2f seconds\n", stats.TotalTime.Seconds())
	fmt.Printf("Settled jobs/sec:    %.2f\n", jobsPerSecond)

	fmt.Println("\n----------------- RESPONSE TIMES -----------------")
	fmt.Printf("Average:             %v\n", avg)
	fmt.Printf("P50:                 %v\n", p50)
	fmt.Printf("P90:                 %v\n", p90)
	fmt.Printf("P99:                 %v\n", p99)

	fmt.Println("\n----------------- SCENARIO DISTRIBUTION -----------------")
	for scenario, count := range stats.ScenarioStats {
		fmt.Printf("%-16s: %d jobs\n", scenario, count)
	}

	if stats.FailedJobs > 0 {
		fmt.Println("\n----------------- ERROR DISTRIBUTION -----------------")
		for errMsg, count := range stats.ErrorCounts {
			fmt.Printf("%-40s: %d\n", errMsg, count)
		}
	}
}

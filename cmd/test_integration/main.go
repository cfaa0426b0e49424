package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const (
	baseURL = "http://localhost:8080"
)

type runSummary struct {
	RunID      string `json:"run_id"`
	Processed  int    `json:"processed"`
	Duplicates int    `json:"duplicates"`
	Assigned   int    `json:"assigned"`
	Unassigned int    `json:"unassigned"`
	Failed     int    `json:"failed"`
}

func main() {
	// Wait for server to start
	time.Sleep(2 * time.Second)

	fmt.Println("Starting Integration Test...")

	batch := fmt.Sprintf("smoke-%d", time.Now().Unix())
	subject := "Name: John Doe Request Type: Billing Issue"
	body := "Sub-Request Type: Invoice Discrepancy SSN: 123-45-6789 Loan Amount: 50,000"

	fmt.Println("1. Ingesting Records...")
	records := []map[string]interface{}{
		{"id": batch + "-a", "from": batch + "@example.com", "subject": subject, "body": body, "classification": "request"},
		{"id": batch + "-b", "from": batch + "@example.com", "subject": subject, "body": body, "classification": "request"},
		{"id": batch + "-c", "from": "other-" + batch + "@example.com", "subject": "Question",
			"body": "Request Type: General Inquiry Sub-Request Type: Something Else"},
	}
	for _, rec := range records {
		if _, ok := sendRequest("POST", "/records", rec, http.StatusCreated); !ok {
			fmt.Println("FAILED: Ingest records")
			os.Exit(1)
		}
	}
	fmt.Println("PASSED: Ingest records")

	fmt.Println("2. Running Pipeline...")
	resp, ok := sendRequest("POST", "/runs", nil, http.StatusOK)
	if !ok {
		fmt.Println("FAILED: Run pipeline")
		os.Exit(1)
	}

	var sum runSummary
	if err := json.Unmarshal(resp, &sum); err != nil {
		fmt.Printf("FAILED: Decode run summary: %v\n", err)
		os.Exit(1)
	}
	if sum.Duplicates < 1 || sum.Assigned < 2 || sum.Unassigned < 1 {
		fmt.Printf("FAILED: Unexpected run summary %+v\n", sum)
		os.Exit(1)
	}
	fmt.Println("PASSED: Run pipeline")

	fmt.Println("3. Checking Health...")
	if _, ok := sendRequest("GET", "/healthz", nil, http.StatusOK); !ok {
		fmt.Println("FAILED: Health")
		os.Exit(1)
	}
	fmt.Println("PASSED: Health")
}

func sendRequest(method, endpoint string, payload interface{}, want int) ([]byte, bool) {
	var body io.Reader
	if payload != nil {
		jsonBytes, _ := json.Marshal(payload)
		body = bytes.NewBuffer(jsonBytes)
	}

	req, err := http.NewRequest(method, baseURL+endpoint, body)
	if err != nil {
		fmt.Printf("Error creating request: %v\n", err)
		return nil, false
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Printf("Error sending request: %v\n", err)
		return nil, false
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != want {
		fmt.Printf("Request failed with status %d: %s\n", resp.StatusCode, string(respBody))
		return nil, false
	}

	fmt.Printf("Response: %s\n", string(respBody))
	return respBody, true
}

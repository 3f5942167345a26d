// Command test_integration smoke-tests a running "moodmap serve" instance.
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

func main() {
	baseURL := os.Getenv("MOODMAP_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	client := &http.Client{Timeout: 30 * time.Second}

	fmt.Println("Starting smoke test against", baseURL)

	steps := []struct {
		name     string
		method   string
		path     string
		payload  interface{}
		optional bool
	}{
		{name: "health", method: http.MethodGet, path: "/healthz"},
		{name: "latest moods", method: http.MethodGet, path: "/moods"},
		{name: "search", method: http.MethodPost, path: "/search", payload: map[string]interface{}{"query": "wildfire evacuation", "k": 3}, optional: true},
		{name: "metrics", method: http.MethodGet, path: "/metrics"},
	}

	failed := false
	for i, s := range steps {
		fmt.Printf("%d. %s...\n", i+1, s.name)
		if err := sendRequest(client, s.method, baseURL+s.path, s.payload); err != nil {
			if s.optional {
				fmt.Printf("SKIPPED: %s (%v)\n", s.name, err)
				continue
			}
			fmt.Printf("FAILED: %s (%v)\n", s.name, err)
			failed = true
			continue
		}
		fmt.Printf("PASSED: %s\n", s.name)
	}
	if failed {
		os.Exit(1)
	}
}

func sendRequest(client *http.Client, method, url string, payload interface{}) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode, respBody)
	}
	if len(respBody) > 300 {
		respBody = respBody[:300]
	}
	fmt.Printf("Response: %s\n", respBody)
	return nil
}

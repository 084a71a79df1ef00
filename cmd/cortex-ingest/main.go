// Package main implements the cortex-ingest client: it reads a JSON batch
// file and posts it to a running cortexstore server.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"
)

type batchFile struct {
	Columns map[string][]interface{} `json:"columns"`
	Tier    string                   `json:"tier,omitempty"`
}

func main() {
	var (
		serverURL string
		batchPath string
		tier      string
		timeout   time.Duration
	)

	flag.StringVar(&serverURL, "server", "http://localhost:8080", "CortexStore server URL")
	flag.StringVar(&batchPath, "batch", "", "Path to JSON batch file (use - for stdin)")
	flag.StringVar(&tier, "tier", "", "Target tier (hot, warm, cold); overrides the file's tier")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "Request timeout")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "cortex-ingest - post a columnar batch to a CortexStore server\n\n")
		fmt.Fprintf(os.Stderr, "Usage: cortex-ingest --batch data.json [options]\n\n")
		fmt.Fprintf(os.Stderr, "The batch file holds {\"columns\": {name: [values...]}, \"tier\": \"hot\"}.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if batchPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	batch, err := readBatch(batchPath)
	if err != nil {
		log.Fatalf("Failed to read batch: %v", err)
	}
	if tier != "" {
		batch.Tier = tier
	}

	payload, err := json.Marshal(batch)
	if err != nil {
		log.Fatalf("Failed to encode batch: %v", err)
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Post(serverURL+"/v1/ingest", "application/json", bytes.NewReader(payload))
	if err != nil {
		log.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("Server rejected batch (%s): %s", resp.Status, bytes.TrimSpace(body))
	}

	fmt.Printf("%s\n", bytes.TrimSpace(body))
}

func readBatch(path string) (*batchFile, error) {
	var raw []byte
	var err error
	if path == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}

	var batch batchFile
	if err := json.Unmarshal(raw, &batch); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(batch.Columns) == 0 {
		// Also accept a bare columns map without the wrapper object.
		var columns map[string][]interface{}
		if err := json.Unmarshal(raw, &columns); err == nil && len(columns) > 0 {
			batch.Columns = columns
		}
	}
	if len(batch.Columns) == 0 {
		return nil, fmt.Errorf("batch file %s has no columns", path)
	}
	return &batch, nil
}

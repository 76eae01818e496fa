package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

func main() {
	baseURL := flag.String("base-url", "http://localhost:3000", "API base URL")
	flag.Parse()

	adminSecret := strings.TrimSpace(os.Getenv("ADMIN_SECRET"))
	if adminSecret == "" {
		fmt.Println("Missing ADMIN_SECRET environment variable")
		os.Exit(1)
	}

	url := strings.TrimSuffix(*baseURL, "/") + "/api/opportunities/refresh"
	req, err := http.NewRequest(http.MethodPost, url, nil)
	if err != nil {
		fmt.Printf("Error creating request: %v\n", err)
		os.Exit(1)
	}
	req.Header.Set("X-Admin-Secret", adminSecret)

	client := &http.Client{Timeout: 2 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Printf("Error sending request: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	fmt.Printf("Response Status: %s\n", resp.Status)
	if resp.StatusCode != http.StatusOK {
		os.Exit(1)
	}

	var body struct {
		Data      []json.RawMessage `json:"data"`
		Refreshed bool              `json:"refreshed"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		fmt.Printf("Error decoding response: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Refreshed: %t, opportunities: %d\n", body.Refreshed, len(body.Data))
}

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"
)

var baseURL = "http://localhost:8080"

func main() {
	if v := os.Getenv("BASE_URL"); v != "" {
		baseURL = v
	}

	// Wait for server to start
	time.Sleep(2 * time.Second)

	// 1. Health Check
	checkEndpoint("GET", "/health", nil, 200)

	// 2. Start from an empty list
	checkEndpoint("POST", "/api/fund/clear", nil, 200)

	// 3. Add a holding, then add it again
	fund := map[string]interface{}{"code": "000311", "name": "景顺长城沪深300", "cost": 1.2345, "share": 1000}
	checkEndpoint("POST", "/api/fund/add", fund, 200)
	checkEndpoint("POST", "/api/fund/add", fund, 200)

	// 4. Validation failures
	checkEndpoint("POST", "/api/fund/add", map[string]interface{}{"code": "311", "name": "x", "cost": 1, "share": 1}, 400)
	checkEndpoint("GET", "/api/fund/search?keyword=a", nil, 400)

	// 5. List and profit
	checkEndpoint("GET", "/api/fund/list", nil, 200)
	checkProfit("000311")

	// 6. Search
	checkEndpoint("GET", "/api/fund/search?keyword="+url.QueryEscape("沪深300"), nil, 200)

	// 7. Delete, then delete again
	checkEndpoint("POST", "/api/fund/delete", map[string]string{"code": "000311"}, 200)
	checkEndpoint("POST", "/api/fund/delete", map[string]string{"code": "000311"}, 404)

	// 8. Verify profit no longer lists it
	if body := checkEndpoint("GET", "/api/fund/profit", nil, 200); bytes.Contains(body, []byte(`"000311"`)) {
		log.Fatalf("deleted fund still listed: %s", string(body))
	}

	fmt.Println("ALL TESTS PASSED")
}

func checkEndpoint(method, path string, body interface{}, expectedStatus int) []byte {
	fmt.Printf("Testing %s %s...\n", method, path)
	var bodyReader io.Reader
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	req, _ := http.NewRequest(method, baseURL+path, bodyReader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != expectedStatus {
		log.Fatalf("Expected status %d, got %d. Body: %s", expectedStatus, resp.StatusCode, string(respBody))
	}
	fmt.Printf("Response: %s\n", string(respBody))
	return respBody
}

func checkProfit(code string) {
	body := checkEndpoint("GET", "/api/fund/profit", nil, 200)
	var res struct {
		Data struct {
			Funds []struct {
				Code      string `json:"code"`
				TotalCost string `json:"total_cost"`
			} `json:"funds"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		log.Fatalf("decode profit: %v", err)
	}
	for _, f := range res.Data.Funds {
		if f.Code == code {
			if f.TotalCost != "1234.50" {
				log.Fatalf("expected total_cost 1234.50 for %s, got %s", code, f.TotalCost)
			}
			return
		}
	}
	log.Fatalf("fund %s missing from profit listing", code)
}

package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"
)

// Submits a sample analysis request against a running instance and polls
// until the job settles. Useful for smoke-testing a fresh deployment.

func main() {
	base := flag.String("base", "http://localhost:8000", "service base URL")
	query := flag.String("query", "How are my snowboards performing this season?", "analysis query")
	shop := flag.String("shop", "snowpeak.myshopify.com", "shop domain")
	flag.Parse()

	payload := map[string]any{
		"query":       *query,
		"shop_domain": *shop,
		"products": []map[string]any{
			{"id": "p1", "title": "Alpine Snowboard", "product_type": "snowboard", "price": 499.0},
			{"id": "p2", "title": "Powder Bindings", "product_type": "bindings", "price": 189.0},
		},
		"collections": []map[string]any{
			{"id": "c1", "title": "Winter Sports"},
		},
	}
	content, _ := json.Marshal(payload)
	body, _ := json.Marshal(map[string]any{
		"messages": []map[string]string{
			{"role": "user", "content": string(content)},
		},
	})

	resp, err := http.Post(*base+"/api/chat/completions", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatalf("submit: %v", err)
	}
	defer resp.Body.Close()

	var submit struct {
		Status  string `json:"status"`
		JobID   string `json:"job_id"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&submit); err != nil {
		log.Fatalf("submit decode: %v", err)
	}
	if resp.StatusCode >= 300 || submit.JobID == "" {
		log.Fatalf("submit rejected: http %d, %+v", resp.StatusCode, submit)
	}
	fmt.Printf("submitted job %s\n", submit.JobID)

	for {
		time.Sleep(time.Second)
		r, err := http.Get(*base + "/api/chat/status/" + submit.JobID)
		if err != nil {
			log.Fatalf("poll: %v", err)
		}
		var status struct {
			Status   string          `json:"status"`
			Progress int             `json:"progress"`
			Result   json.RawMessage `json:"result"`
		}
		err = json.NewDecoder(r.Body).Decode(&status)
		r.Body.Close()
		if err != nil {
			log.Fatalf("poll decode: %v", err)
		}
		fmt.Printf("status=%s progress=%d%%\n", status.Status, status.Progress)

		switch status.Status {
		case "completed", "failed", "timed_out":
			fmt.Println(string(status.Result))
			return
		}
	}
}

//go:build integration

package integration_test

import (
	"encoding/json"
	"net/http"
	"testing"
)

func TestHealthLiveness(t *testing.T) {
	resp, err := http.Get(testServer.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Status    string `json:"status"`
		Timestamp string `json:"timestamp"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "healthy" {
		t.Fatalf("expected status healthy, got %q", body.Status)
	}
	if body.Timestamp == "" {
		t.Fatal("expected a non-empty timestamp")
	}
}

func TestHealthDeep(t *testing.T) {
	resp, err := http.Get(testServer.URL + "/healthz/deep")
	if err != nil {
		t.Fatalf("GET /healthz/deep: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Status string `json:"status"`
		Checks []struct {
			Name   string `json:"name"`
			Status string `json:"status"`
		} `json:"checks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" {
		t.Fatalf("expected status ok with store reachable, got %q", body.Status)
	}
	found := false
	for _, c := range body.Checks {
		if c.Name == "store" {
			found = true
			if c.Status != "ok" {
				t.Errorf("expected store check ok, got %q", c.Status)
			}
		}
	}
	if !found {
		t.Fatal("expected a \"store\" check in the deep health response")
	}
}

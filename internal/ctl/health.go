package ctl

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// HealthResponse mirrors the detailed JSON form of GET /healthz.
type HealthResponse struct {
	Healthy bool                      `json:"healthy"`
	Checks  map[string]map[string]any `json:"checks"`
}

// Health checks daemon liveness and its component checks via GET /healthz.
func Health(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	h, status, err := fetchHealth(baseURL)
	if err != nil {
		if jsonOutput {
			return printJSON(map[string]any{"healthy": false, "url": baseURL, "error": err.Error()})
		}
		return err
	}

	if jsonOutput {
		return printJSON(map[string]any{"healthy": h.Healthy, "url": baseURL, "checks": h.Checks})
	}

	fmt.Println()
	if h.Healthy {
		fmt.Printf("  %s  cadenced is reachable at %s\n", colorize(green, "HEALTHY"), colorize(dim, baseURL))
	} else {
		fmt.Printf("  %s  cadenced returned HTTP %d at %s\n", colorize(red, "UNHEALTHY"), status, colorize(dim, baseURL))
	}

	names := make([]string, 0, len(h.Checks))
	for name := range h.Checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := h.Checks[name]
		mark := colorize(green, "ok  ")
		if ok, _ := c["ok"].(bool); !ok {
			mark = colorize(red, "FAIL")
		}
		var details []string
		for _, k := range []string{"state", "path", "clients", "dropped", "late", "error"} {
			if v, ok := c[k]; ok {
				details = append(details, fmt.Sprintf("%s=%v", k, v))
			}
		}
		fmt.Printf("    %s %s %s\n", mark, padRight(name, 12), colorize(dim, strings.Join(details, " ")))
	}
	fmt.Println()

	return nil
}

func fetchHealth(baseURL string) (HealthResponse, int, error) {
	var h HealthResponse
	req, err := http.NewRequest(http.MethodGet, baseURL+"/healthz", nil)
	if err != nil {
		return h, 0, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := httpClient.Do(req)
	if err != nil {
		return h, 0, err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return h, resp.StatusCode, fmt.Errorf("HTTP %s: %w", resp.Status, err)
	}
	return h, resp.StatusCode, nil
}

package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// statusEnvelope mirrors the API's response envelope for the course status
// endpoint, reduced to the fields the gate cares about.
type statusEnvelope struct {
	Success bool `json:"success"`
	Data    struct {
		Purchased bool `json:"purchased"`
	} `json:"data"`
}

// HTTPStatusFunc builds a StatusFunc that calls GET
// {baseURL}/api/v1/courses/{id}/status with the given bearer token.
func HTTPStatusFunc(baseURL, accessToken string, httpClient *http.Client) StatusFunc {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	return func(ctx context.Context, courseID uint) (bool, error) {
		url := fmt.Sprintf("%s/api/v1/courses/%d/status", baseURL, courseID)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return false, err
		}
		req.Header.Set("Authorization", "Bearer "+accessToken)

		resp, err := httpClient.Do(req)
		if err != nil {
			return false, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return false, fmt.Errorf("status endpoint returned %d", resp.StatusCode)
		}

		var env statusEnvelope
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
			return false, err
		}

		return env.Data.Purchased, nil
	}
}

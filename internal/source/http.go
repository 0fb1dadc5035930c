package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"alertsync-backend/internal/model"
)

// HTTPMonitor fetches normalized monitor alerts from a single JSON endpoint.
// Parsing raw vendor payloads happens upstream of that endpoint and is out
// of scope here.
type HTTPMonitor struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPMonitor(baseURL string, timeout time.Duration) *HTTPMonitor {
	return &HTTPMonitor{BaseURL: baseURL, Client: &http.Client{Timeout: timeout}}
}

func (m *HTTPMonitor) FetchCurrentAlerts(ctx context.Context) ([]model.AlertRecord, error) {
	return fetchAlerts(ctx, m.Client, m.BaseURL+"/alerts", model.OriginMonitor)
}

// HTTPTicketing talks to the incident-management boundary service: one
// endpoint for normalized alerts, two for state changes. A 409 on a state
// change means the alert is already in the target state and counts as
// success.
type HTTPTicketing struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPTicketing(baseURL string, timeout time.Duration) *HTTPTicketing {
	return &HTTPTicketing{BaseURL: baseURL, Client: &http.Client{Timeout: timeout}}
}

func (t *HTTPTicketing) FetchCurrentAlerts(ctx context.Context) ([]model.AlertRecord, error) {
	return fetchAlerts(ctx, t.Client, t.BaseURL+"/alerts", model.OriginTicketing)
}

func (t *HTTPTicketing) Acknowledge(ctx context.Context, externalID, note, actor string) error {
	return t.action(ctx, externalID, "acknowledge", note, actor)
}

func (t *HTTPTicketing) CloseOrResolve(ctx context.Context, externalID, note, actor string) error {
	return t.action(ctx, externalID, "close", note, actor)
}

type actionRequest struct {
	Note  string `json:"note,omitempty"`
	Actor string `json:"actor"`
}

func (t *HTTPTicketing) action(ctx context.Context, externalID, verb, note, actor string) error {
	body, err := json.Marshal(actionRequest{Note: note, Actor: actor})
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/alerts/%s/%s", t.BaseURL, externalID, verb)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	// 409 means already acknowledged/closed, which is the state we wanted.
	if resp.StatusCode == http.StatusConflict {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: unexpected status %d", verb, externalID, resp.StatusCode)
	}
	return nil
}

func fetchAlerts(ctx context.Context, client *http.Client, url string, origin model.Origin) ([]model.AlertRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}
	var alerts []model.AlertRecord
	if err := json.NewDecoder(resp.Body).Decode(&alerts); err != nil {
		return nil, err
	}
	for i := range alerts {
		alerts[i].Origin = origin
		alerts[i].Severity = model.ParseSeverity(string(alerts[i].Severity))
	}
	return alerts, nil
}

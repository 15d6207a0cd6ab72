package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// apiClient talks to /api/chat and /api/chat/action the way the web client does.
type apiClient struct {
	baseURL string
	http    *http.Client
}

type hospital struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type doctor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type actionReply struct {
	Status         int
	Step           string   `json:"step"`
	SessionID      string   `json:"sessionId"`
	Message        string   `json:"message"`
	Doctors        []doctor `json:"doctors"`
	AvailableSlots []string `json:"availableSlots"`
	AppointmentID  string   `json:"appointmentId"`
	Error          string   `json:"error"`
	Code           string   `json:"code"`
}

type actionRequest struct {
	SessionID   string `json:"sessionId"`
	Action      string `json:"action"`
	Value       string `json:"value"`
	UserID      string `json:"userId,omitempty"`
	PatientName string `json:"patientName,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

func (c *apiClient) hospitalsIn(ctx context.Context, city string) ([]hospital, error) {
	body := map[string]any{
		"messages": []map[string]string{{"role": "user", "content": "hospitals in " + city}},
	}
	var out struct {
		Type      string     `json:"type"`
		Reply     string     `json:"reply"`
		Hospitals []hospital `json:"hospitals"`
	}
	status, err := c.post(ctx, "/api/chat", body, &out)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("chat returned %d", status)
	}
	if out.Type != "hospitals" || len(out.Hospitals) == 0 {
		return nil, fmt.Errorf("no hospitals in %s: %s", city, out.Reply)
	}
	return out.Hospitals, nil
}

func (c *apiClient) action(ctx context.Context, req actionRequest) (actionReply, error) {
	var out actionReply
	status, err := c.post(ctx, "/api/chat/action", req, &out)
	out.Status = status
	return out, err
}

func (c *apiClient) post(ctx context.Context, path string, body, out any) (int, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, err
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s response: %w", path, err)
		}
	}
	return resp.StatusCode, nil
}

package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWriteJSON(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		data       any
		wantStatus int
		wantJSON   string
	}{
		{
			name:       "simple object",
			status:     http.StatusOK,
			data:       map[string]string{"message": "OK"},
			wantStatus: http.StatusOK,
			wantJSON:   `{"message":"OK"}`,
		},
		{
			name:       "created with payload",
			status:     http.StatusCreated,
			data:       map[string]any{"link": "http://localhost:4000/l/abcde", "visited": 0},
			wantStatus: http.StatusCreated,
			wantJSON:   `{"link":"http://localhost:4000/l/abcde","visited":0}`,
		},
		{
			name:       "empty array",
			status:     http.StatusOK,
			data:       []string{},
			wantStatus: http.StatusOK,
			wantJSON:   `[]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()

			WriteJSON(rr, tt.status, tt.data)

			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", ct)
			}

			// Compare through a round-trip so field order doesn't matter.
			var got, want any
			if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
				t.Fatalf("unmarshal response: %v", err)
			}
			if err := json.Unmarshal([]byte(tt.wantJSON), &want); err != nil {
				t.Fatalf("unmarshal expected JSON: %v", err)
			}

			gotJSON, _ := json.Marshal(got)
			wantJSON, _ := json.Marshal(want)
			if string(gotJSON) != string(wantJSON) {
				t.Errorf("body = %s, want %s", gotJSON, wantJSON)
			}
		})
	}
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		code        string
		message     string
		details     any
		wantDetails any
	}{
		{
			name:    "plain error",
			status:  http.StatusBadRequest,
			code:    "invalid_input",
			message: "target is required",
		},
		{
			name:        "error with details",
			status:      http.StatusConflict,
			code:        "conflict",
			message:     "masked link already exists",
			details:     map[string]string{"hint": "retry the request"},
			wantDetails: map[string]any{"hint": "retry the request"},
		},
		{
			name:   "empty message",
			status: http.StatusNotFound,
			code:   "not_found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()

			WriteError(rr, tt.status, tt.code, tt.message, tt.details)

			if rr.Code != tt.status {
				t.Errorf("status = %d, want %d", rr.Code, tt.status)
			}

			var resp ErrorResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatalf("unmarshal response: %v", err)
			}

			if resp.Error != tt.code {
				t.Errorf("error = %q, want %q", resp.Error, tt.code)
			}
			if resp.Message != tt.message {
				t.Errorf("message = %q, want %q", resp.Message, tt.message)
			}

			if tt.wantDetails != nil {
				gotJSON, _ := json.Marshal(resp.Details)
				wantJSON, _ := json.Marshal(tt.wantDetails)
				if string(gotJSON) != string(wantJSON) {
					t.Errorf("details = %s, want %s", gotJSON, wantJSON)
				}
			} else if resp.Details != nil {
				t.Errorf("details = %v, want nil", resp.Details)
			}
		})
	}
}

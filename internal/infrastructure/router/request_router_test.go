package router

import (
	"encoding/json"
	"errors"
	"testing"

	"flightprice-service/internal/domain/entity"
	"flightprice-service/internal/usecase"
	"flightprice-service/pkg/logger"
)

func decode(t *testing.T, body string) *entity.RawSearchRequest {
	t.Helper()
	var raw entity.RawSearchRequest
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		t.Fatalf("Failed to decode %s: %v", body, err)
	}
	return &raw
}

func TestGetStrategyPriority(t *testing.T) {
	r := NewDefaultRequestRouter(logger.NewNopLogger())

	tests := []struct {
		name string
		body string
		want string
	}{
		{"wrapped wins over batch", `{"data":{"requests":[{"from_destination":"THR"}]},"requests":[{"from_destination":"MHD"}]}`, "wrapped_batch"},
		{"batch", `{"provider_name":"alibaba","requests":[{"from_destination":"THR"}]}`, "batch"},
		{"empty wrapped falls through", `{"data":{"requests":[]},"origin":"THR"}`, "direct"},
		{"direct", `{"origin":"THR","destination":"MHD","start_date":"2025-12-15"}`, "direct"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := r.GetStrategy(decode(t, tt.body))
			if s == nil || s.Name() != tt.want {
				t.Errorf("Expected %s strategy, got %v", tt.want, s)
			}
		})
	}
}

func TestExtractResolvesFields(t *testing.T) {
	r := NewDefaultRequestRouter(logger.NewNopLogger())

	tests := []struct {
		name       string
		body       string
		origin     string
		dest       string
		date       string
		returnDate string
		userID     string
	}{
		{
			name:   "wrapped legacy frontend",
			body:   `{"data":{"requests":[{"from_destination":"thr","to_destination":"mhd","from_date":"2025-12-15","requested_by_user_id":42}]}}`,
			origin: "THR", dest: "MHD", date: "2025-12-15", userID: "42",
		},
		{
			name:   "top level origin overrides leg",
			body:   `{"origin":"KIH","requests":[{"from_destination":"THR","to_destination":"MHD","start_date":"2025-12-16","to_date":"2025-12-20"}]}`,
			origin: "KIH", dest: "MHD", date: "2025-12-16", returnDate: "2025-12-20", userID: "1",
		},
		{
			name:   "direct camel case dates",
			body:   `{"origin":"THR","destination":"SYZ","departureDate":"2025-12-17","returnDate":"2025-12-19","user_id":"7"}`,
			origin: "THR", dest: "SYZ", date: "2025-12-17", returnDate: "2025-12-19", userID: "7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := decode(t, tt.body)
			q, err := r.GetStrategy(raw).Extract(raw)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if q.Origin != tt.origin || q.Destination != tt.dest {
				t.Errorf("Expected %s-%s, got %s-%s", tt.origin, tt.dest, q.Origin, q.Destination)
			}
			if got := q.DepartureDate.Format("2006-01-02"); got != tt.date {
				t.Errorf("Expected date %s, got %s", tt.date, got)
			}
			if tt.returnDate == "" && q.ReturnDate != nil {
				t.Errorf("Expected no return date, got %v", q.ReturnDate)
			}
			if tt.returnDate != "" && (q.ReturnDate == nil || q.ReturnDate.Format("2006-01-02") != tt.returnDate) {
				t.Errorf("Expected return date %s, got %v", tt.returnDate, q.ReturnDate)
			}
			if q.UserID != tt.userID {
				t.Errorf("Expected user %s, got %s", tt.userID, q.UserID)
			}
			if q.Passengers.Adults != 1 {
				t.Errorf("Expected 1 adult by default, got %d", q.Passengers.Adults)
			}
		})
	}
}

func TestExtractMissingAndInvalid(t *testing.T) {
	r := NewDefaultRequestRouter(logger.NewNopLogger())

	raw := decode(t, `{"origin":"THR","destination":"MHD"}`)
	if _, err := r.GetStrategy(raw).Extract(raw); !errors.Is(err, usecase.ErrMissingSearchParams) {
		t.Errorf("Expected ErrMissingSearchParams, got %v", err)
	}

	raw = decode(t, `{"origin":"THR","destination":"THR","start_date":"2025-12-15"}`)
	if _, err := r.GetStrategy(raw).Extract(raw); !errors.Is(err, usecase.ErrInvalidSearchParams) {
		t.Errorf("Expected ErrInvalidSearchParams, got %v", err)
	}

	raw = decode(t, `{"origin":"THR","destination":"MHD","start_date":"15/12/2025"}`)
	if _, err := r.GetStrategy(raw).Extract(raw); !errors.Is(err, usecase.ErrInvalidSearchParams) {
		t.Errorf("Expected ErrInvalidSearchParams for bad date, got %v", err)
	}
}

package ocr

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestResultMatches(t *testing.T) {
	cases := []struct {
		result    Result
		amount    int64
		reference string
		want      bool
	}{
		{Result{Amount: 500, Reference: "UTR 1234 5678"}, 500, "UTR12345678", true},
		{Result{Amount: 500, Reference: "12345678"}, 500, "UTR12345678", true},
		{Result{Amount: 499, Reference: "UTR12345678"}, 500, "UTR12345678", false},
		{Result{Amount: 500, Reference: "99999"}, 500, "UTR12345678", false},
		{Result{Amount: 500, Reference: ""}, 500, "UTR12345678", false},
	}

	for _, tc := range cases {
		if got := tc.result.Matches(tc.amount, tc.reference); got != tc.want {
			t.Errorf("%+v vs (%d, %q): expected %v, got %v", tc.result, tc.amount, tc.reference, tc.want, got)
		}
	}
}

func TestClientVerify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("missing api key header")
		}
		var req verifyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if req.DeclaredAmount != 250 || req.ImageBase64 == "" {
			t.Errorf("unexpected request %+v", req)
		}
		json.NewEncoder(w).Encode(Result{Amount: 250, Reference: "UTR1"})
	}))
	defer server.Close()

	result, err := NewClient(server.URL, "key").Verify(context.Background(), &Receipt{Image: []byte("png")}, 250, "UTR1")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !result.Matches(250, "UTR1") {
		t.Errorf("expected match, got %+v", result)
	}
}

func TestClientVerifyHonoursDeadline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewClient(server.URL, "").Verify(ctx, &Receipt{ImageURL: "http://x/r.png"}, 1, "r")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Receipt is the payment proof attached to a deposit request. Either the
// raw image or a URL where it was uploaded.
type Receipt struct {
	ImageURL string
	Image    []byte
}

// Result is what the verification service read off a receipt
type Result struct {
	Amount    int64  `json:"amount"`
	Reference string `json:"reference"`
}

// Matches reports whether the receipt confirms the declared deposit. The
// amounts must be equal and one reference must contain the other once
// whitespace is removed.
func (r *Result) Matches(amount int64, reference string) bool {
	if r == nil || r.Amount != amount {
		return false
	}
	read := stripSpaces(r.Reference)
	declared := stripSpaces(reference)
	if read == "" || declared == "" {
		return false
	}
	return strings.Contains(declared, read) || strings.Contains(read, declared)
}

func stripSpaces(s string) string {
	return strings.Join(strings.Fields(s), "")
}

type verifyRequest struct {
	ImageURL          string `json:"image_url,omitempty"`
	ImageBase64       string `json:"image_base64,omitempty"`
	DeclaredAmount    int64  `json:"declared_amount"`
	DeclaredReference string `json:"declared_reference"`
}

// Client calls a receipt verification service over HTTP
type Client struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

func NewClient(url, apiKey string) *Client {
	return &Client{
		url:        url,
		apiKey:     apiKey,
		httpClient: &http.Client{},
	}
}

// Verify sends the receipt for reading. The deadline comes from ctx.
func (c *Client) Verify(ctx context.Context, receipt *Receipt, amount int64, reference string) (*Result, error) {
	req := verifyRequest{
		ImageURL:          receipt.ImageURL,
		DeclaredAmount:    amount,
		DeclaredReference: reference,
	}
	if len(receipt.Image) > 0 {
		req.ImageBase64 = base64.StdEncoding.EncodeToString(receipt.Image)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("verification request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("verification service returned status %d", resp.StatusCode)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode verification response: %w", err)
	}
	return &result, nil
}

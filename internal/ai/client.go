// Package ai talks to the rewrite gateway: given a free-text
// instruction and the current document, the gateway answers either with
// a partial document to merge or with plain prose for the operator.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"nexus/api/internal/proposal"
)

// ErrNoCredential is a local configuration error: the gateway bearer
// token is not set, so no request is attempted.
var ErrNoCredential = errors.New("ai gateway credential not configured")

// Client is the HTTP client for the rewrite gateway.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New builds a client. The token may be empty; Rewrite then fails with
// ErrNoCredential instead of sending an unauthenticated request.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Result is what a rewrite produced: exactly one of Patch (a partial
// document to merge) or Message (prose surfaced to the operator) is
// set.
type Result struct {
	Patch   *proposal.Patch
	Message string
}

type rewriteRequest struct {
	Instruction string             `json:"instruction"`
	SectionID   string             `json:"sectionId,omitempty"`
	Document    *proposal.Document `json:"document"`
}

// Rewrite sends the instruction and the current document to the
// gateway. A JSON-object response becomes a patch; anything else
// (prose, malformed JSON, a bare value) degrades to a message, never an
// error.
func (c *Client) Rewrite(ctx context.Context, instruction, sectionID string, doc *proposal.Document) (Result, error) {
	if c.token == "" {
		return Result{}, ErrNoCredential
	}

	payload, err := json.Marshal(rewriteRequest{
		Instruction: instruction,
		SectionID:   sectionID,
		Document:    doc,
	})
	if err != nil {
		return Result{}, fmt.Errorf("encode rewrite request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rewrite", bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("build rewrite request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("rewrite gateway: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return Result{}, fmt.Errorf("read rewrite response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, fmt.Errorf("rewrite gateway returned %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	return ParseResponse(body), nil
}

// ParseResponse classifies a gateway response body. Only a JSON object
// is treated as a patch; everything else is prose. A JSON object that
// carries none of the document's keys still merges as an empty patch,
// an explicit "nothing to change" answer.
func ParseResponse(body []byte) Result {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Result{Message: strings.TrimSpace(string(body))}
	}
	var patch proposal.Patch
	if err := json.Unmarshal(trimmed, &patch); err != nil {
		return Result{Message: strings.TrimSpace(string(body))}
	}
	return Result{Patch: &patch}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

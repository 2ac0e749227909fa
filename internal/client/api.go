package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/linkup-chat/linkup/internal/chat"
	"github.com/linkup-chat/linkup/pkg/protocol"
)

// API implements the request/response collaborators (message submission
// and history fetch) over the server's HTTP interface.
type API struct {
	baseURL string
	http    *http.Client
}

// NewAPI creates an API client. timeout bounds every request so a
// pending message is never left pending indefinitely.
func NewAPI(baseURL string, timeout time.Duration) *API {
	return &API{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// SubmitMessage implements chat.Submitter.
func (a *API) SubmitMessage(ctx context.Context, out chat.OutgoingMessage) (protocol.Message, error) {
	req := protocol.SubmitRequest{
		ConversationID:   out.ConversationID,
		SenderID:         out.SenderID,
		SenderName:       out.SenderName,
		Body:             out.Body,
		Kind:             out.Kind,
		AttachmentRef:    out.AttachmentRef,
		CorrelationToken: out.CorrelationToken,
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return protocol.Message{}, fmt.Errorf("failed to encode submit request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/messages", bytes.NewReader(payload))
	if err != nil {
		return protocol.Message{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(httpReq)
	if err != nil {
		return protocol.Message{}, fmt.Errorf("submit request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return protocol.Message{}, apiError(resp)
	}

	var body protocol.SubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return protocol.Message{}, fmt.Errorf("failed to decode submit response: %w", err)
	}
	return body.Message, nil
}

// FetchHistory implements chat.HistoryFetcher.
func (a *API) FetchHistory(ctx context.Context, conversationID string) ([]protocol.Message, error) {
	url := fmt.Sprintf("%s/api/conversations/%s/messages", a.baseURL, conversationID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := a.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("history request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}

	var body protocol.HistoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode history response: %w", err)
	}
	return body.Messages, nil
}

func apiError(resp *http.Response) error {
	var body protocol.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != "" {
		return fmt.Errorf("server rejected request: %s (status %d)", body.Error, resp.StatusCode)
	}
	return fmt.Errorf("server rejected request: status %d", resp.StatusCode)
}

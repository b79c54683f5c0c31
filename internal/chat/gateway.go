package chat

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
)

type gateway struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewGateway builds a Transport over the chat gateway's HTTP API.
func NewGateway(baseURL, apiKey string) (Transport, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("chat gateway base url is empty")
	}
	return &gateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
	}, nil
}

type sendMessageRequest struct {
	ChannelID string  `json:"channel_id"`
	Text      string  `json:"text"`
	ReplyTo   *string `json:"reply_to_message_id,omitempty"`
}

type sendMessageResponse struct {
	MessageID string `json:"message_id"`
}

func (g *gateway) SendMessage(ctx context.Context, channelID, text string, replyTo *string) (string, error) {
	payload, err := json.Marshal(sendMessageRequest{
		ChannelID: channelID,
		Text:      text,
		ReplyTo:   replyTo,
	})
	if err != nil {
		return "", fmt.Errorf("encoding message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("building message request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", g.apiKey)

	resp, err := g.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending message: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("chat gateway error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed sendMessageResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decoding message response: %w", err)
	}
	if parsed.MessageID == "" {
		return "", errors.New("chat gateway returned no message id")
	}

	return parsed.MessageID, nil
}

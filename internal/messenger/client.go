package messenger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"geoattend/internal/conversation"
)

// maxMessagesPerCall is the platform limit on messages in one reply or push.
const maxMessagesPerCall = 5

// Client calls the chat platform messaging API.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

// New creates a client with a bounded timeout.
func New(baseURL, token string) *Client {
	return &Client{
		BaseURL: baseURL,
		Token:   token,
		HTTP: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type action struct {
	Type  string `json:"type"`
	Label string `json:"label"`
}

type quickReplyItem struct {
	Type   string `json:"type"`
	Action action `json:"action"`
}

type quickReply struct {
	Items []quickReplyItem `json:"items"`
}

type message struct {
	Type       string      `json:"type"`
	Text       string      `json:"text"`
	QuickReply *quickReply `json:"quickReply,omitempty"`
}

type replyRequest struct {
	ReplyToken string    `json:"replyToken"`
	Messages   []message `json:"messages"`
}

type pushRequest struct {
	To       string    `json:"to"`
	Messages []message `json:"messages"`
}

func toMessages(replies []conversation.Reply) []message {
	out := make([]message, 0, len(replies))
	for _, r := range replies {
		m := message{Type: "text", Text: r.Text}
		if r.AskLocation {
			label := r.QuickReplyLabel
			if label == "" {
				label = "Send location"
			}
			m.QuickReply = &quickReply{Items: []quickReplyItem{{
				Type:   "action",
				Action: action{Type: "location", Label: label},
			}}}
		}
		out = append(out, m)
	}
	if len(out) > maxMessagesPerCall {
		out = out[:maxMessagesPerCall]
	}
	return out
}

// Reply answers an inbound event using its reply token.
func (c *Client) Reply(ctx context.Context, replyToken string, replies []conversation.Reply) error {
	if len(replies) == 0 {
		return nil
	}
	if replyToken == "" {
		return errors.New("reply token required")
	}
	return c.post(ctx, "/v2/bot/message/reply", replyRequest{ReplyToken: replyToken, Messages: toMessages(replies)})
}

// Push sends an unsolicited text message to a participant.
func (c *Client) Push(ctx context.Context, to, text string) error {
	if to == "" {
		return errors.New("recipient required")
	}
	return c.post(ctx, "/v2/bot/message/push", pushRequest{To: to, Messages: []message{{Type: "text", Text: text}}})
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("messaging api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("messaging api error %s: %s", resp.Status, string(bodyBytes))
	}
	return nil
}

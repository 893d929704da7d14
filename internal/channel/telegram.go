// Package channel implements the concrete ports.Channel adapter: a
// Telegram Bot API client for outbound replies and a Gin webhook handler
// that turns inbound updates into domain.InboundMessage values for the
// admission front. No Telegram SDK is vendored; the Bot API is a plain
// JSON-over-HTTPS endpoint, so a small net/http client is enough.
package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/arcadehub/promptengine/internal/domain"
	"github.com/arcadehub/promptengine/internal/ports"
)

// Telegram talks to https://api.telegram.org/bot<token>/... for outbound
// sends, and exposes Webhook as a Gin handler for inbound updates.
type Telegram struct {
	BaseURL string
	HTTP    *http.Client
}

// New returns a Telegram adapter for the given bot token. baseURL lets
// tests point at an httptest server; production callers pass "".
func New(token, baseURL string) *Telegram {
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}
	return &Telegram{
		BaseURL: baseURL + "/bot" + token,
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
}

// Send implements ports.Channel: it posts a sendMessage call to the Bot
// API. Safe to call concurrently from multiple workers; each call is an
// independent HTTP request.
func (t *Telegram) Send(ctx context.Context, chatID, text string) error {
	body, err := json.Marshal(sendMessageRequest{ChatID: chatID, Text: text})
	if err != nil {
		return fmt.Errorf("channel: encode sendMessage: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.BaseURL+"/sendMessage", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("channel: build sendMessage request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("channel: sendMessage: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("channel: read sendMessage response: %w", err)
	}

	var parsed apiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("channel: decode sendMessage response: %w", err)
	}
	if !parsed.OK {
		return fmt.Errorf("channel: telegram rejected sendMessage: %s", parsed.Description)
	}
	return nil
}

// update is the subset of Telegram's webhook Update payload the front
// door needs.
type update struct {
	UpdateID int `json:"update_id"`
	Message  *struct {
		MessageID int    `json:"message_id"`
		Date      int64  `json:"date"`
		Text      string `json:"text"`
		Chat      struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		From struct {
			ID int64 `json:"id"`
		} `json:"from"`
	} `json:"message"`
}

func (u update) toInbound() (domain.InboundMessage, bool) {
	if u.Message == nil || u.Message.Text == "" {
		return domain.InboundMessage{}, false
	}
	return domain.InboundMessage{
		UserID:    strconv.FormatInt(u.Message.From.ID, 10),
		ChatID:    strconv.FormatInt(u.Message.Chat.ID, 10),
		MessageID: strconv.Itoa(u.Message.MessageID),
		Text:      u.Message.Text,
		Timestamp: time.Unix(u.Message.Date, 0).UTC(),
	}, true
}

// Webhook returns a Gin handler that decodes a Telegram Update, hands it to
// front for admission, and replies 200 regardless of the admission outcome
// (Telegram retries on non-2xx; the user-facing reply, if any, goes out
// through Send rather than the webhook response body).
func Webhook(front ports.InboundHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		var u update
		if err := c.ShouldBindJSON(&u); err != nil {
			log.Warn().Err(err).Msg("channel: failed to decode telegram webhook update")
			c.Status(http.StatusOK)
			return
		}

		msg, ok := u.toInbound()
		if !ok {
			c.Status(http.StatusOK)
			return
		}

		if err := front.OnMessage(c.Request.Context(), msg); err != nil {
			log.Error().Err(err).Str("chat_id", msg.ChatID).Msg("channel: OnMessage failed")
		}
		c.Status(http.StatusOK)
	}
}

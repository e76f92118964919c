package mistral

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aurelmarchand/medidocs/internal/llm"
)

// Complete implements llm.ChatClient against Mistral's chat/completions API.
// Text-only messages are sent as plain string content; messages with an image
// attach a multipart content array, which is how the vision models take page
// images.
func (c *Client) Complete(ctx context.Context, req llm.ChatRequest) (string, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.logger.Info("mistral.chat.start",
		"req_id", rid,
		"model", req.Model,
		"messages", len(req.Messages),
		"json_object", req.JSONObject,
	)

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	body := map[string]any{
		"model":       req.Model,
		"messages":    encodeMessages(req.Messages),
		"temperature": req.Temperature,
		"top_p":       req.TopP,
	}
	if req.JSONObject {
		body["response_format"] = map[string]any{"type": "json_object"}
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, err := c.post(ctx, endpoint, body)
	if err != nil {
		c.logger.Error("mistral.chat.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.logger.Error("mistral.chat.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", fmt.Errorf("decode mistral response: %w", err)
	}
	if len(cc.Choices) == 0 {
		c.logger.Error("mistral.chat.no_choices",
			"req_id", rid,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", fmt.Errorf("no choices in mistral response")
	}

	content := strings.TrimSpace(cc.Choices[0].Message.Content)
	c.logger.Info("mistral.chat.ok",
		"req_id", rid,
		"model", req.Model,
		"content_len", len(content),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return content, nil
}

// encodeMessages maps our provider-neutral messages to the wire shape.
func encodeMessages(msgs []llm.Message) []map[string]any {
	out := make([]map[string]any, 0, len(msgs))
	for _, m := range msgs {
		if m.ImageURL == "" {
			out = append(out, map[string]any{"role": m.Role, "content": m.Content})
			continue
		}
		out = append(out, map[string]any{
			"role": m.Role,
			"content": []map[string]any{
				{"type": "text", "text": m.Content},
				{"type": "image_url", "image_url": map[string]any{"url": m.ImageURL}},
			},
		})
	}
	return out
}

func (c *Client) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mistral http error: %w", err)
	}
	defer func(body io.ReadCloser) {
		if cerr := body.Close(); cerr != nil {
			c.logger.Warn("mistral response body close error", "error", cerr)
		}
	}(resp.Body)

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := string(raw)
		if len(detail) > c.cfg.MaxRetrBody {
			detail = detail[:c.cfg.MaxRetrBody] + "...(truncated)"
		}
		return nil, &llm.StatusError{StatusCode: resp.StatusCode, Body: detail}
	}
	return raw, nil
}

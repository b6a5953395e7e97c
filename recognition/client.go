package recognition

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/camden-git/titlesnap/logger"
	"github.com/camden-git/titlesnap/media"
)

// UnknownTitle is the literal answer the model gives when it cannot name the
// movie or show.
const UnknownTitle = "Unknown"

const DefaultPrompt = "What movie or TV show is this image from? " +
	"Reply with only the title. If you cannot tell, reply with exactly \"Unknown\". " +
	"Do not add any explanation."

const defaultTimeout = 30 * time.Second

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 4 << 20

type Options struct {
	Endpoint   string
	APIKey     string
	Model      string
	Prompt     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *logger.Logger
}

// Client sends one image to an OpenAI-compatible chat completions endpoint
// and returns the model's title answer. it never retries.
type Client struct {
	endpoint   string
	apiKey     string
	model      string
	prompt     string
	timeout    time.Duration
	httpClient *http.Client
	log        *logger.Logger
}

func NewClient(opts Options) *Client {
	c := &Client{
		endpoint:   strings.TrimSpace(opts.Endpoint),
		apiKey:     strings.TrimSpace(opts.APIKey),
		model:      strings.TrimSpace(opts.Model),
		prompt:     opts.Prompt,
		timeout:    opts.Timeout,
		httpClient: opts.HTTPClient,
		log:        opts.Logger,
	}
	if c.prompt == "" {
		c.prompt = DefaultPrompt
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.log == nil {
		c.log = logger.Nop()
	}
	return c
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content json.RawMessage `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) buildRequest(transportImage string) chatRequest {
	return chatRequest{
		Model: c.model,
		Messages: []chatMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: c.prompt},
				{Type: "image_url", ImageURL: &imageURL{URL: media.DataURL(transportImage)}},
			},
		}},
	}
}

// Identify returns the trimmed title the model answered with, which may be
// UnknownTitle. every failure is a *Error.
func (c *Client) Identify(ctx context.Context, transportImage string) (string, error) {
	payload, err := json.Marshal(c.buildRequest(transportImage))
	if err != nil {
		return "", &Error{Kind: KindOther, Err: fmt.Errorf("failed to encode request: %w", err)}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", &Error{Kind: KindOther, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", classifyTransportError(err)
	}
	defer resp.Body.Close()

	c.log.Debug("recognition response", "status", resp.StatusCode, "model", c.model, "elapsed", time.Since(start).String())

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return "", errorForStatus(resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", classifyTransportError(err)
	}
	title, err := parseTitle(raw)
	if err != nil {
		return "", &Error{Kind: KindMalformedResponse, StatusCode: resp.StatusCode, Err: err}
	}
	return title, nil
}

// parseTitle extracts choices[0].message.content. content may be a plain
// string or a list of text parts.
func parseTitle(raw []byte) (string, error) {
	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("invalid JSON: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("response has no choices")
	}
	content := parsed.Choices[0].Message.Content
	if len(content) == 0 || string(content) == "null" {
		return "", errors.New("response message has no content")
	}

	var text string
	if err := json.Unmarshal(content, &text); err != nil {
		var parts []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}
		if perr := json.Unmarshal(content, &parts); perr != nil {
			return "", fmt.Errorf("unsupported content shape: %w", err)
		}
		var sb strings.Builder
		for _, p := range parts {
			if p.Type == "" || p.Type == "text" {
				sb.WriteString(p.Text)
			}
		}
		text = sb.String()
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("response content is empty")
	}
	return text, nil
}

func classifyTransportError(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return &Error{Kind: KindOther, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return &Error{Kind: KindTimeout, Err: err}
		}
		return &Error{Kind: KindNetwork, Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return &Error{Kind: KindNetwork, Err: err}
	}
	return &Error{Kind: KindOther, Err: err}
}

// IsUnknown reports whether title is the model's "cannot identify" answer.
func IsUnknown(title string) bool {
	return strings.TrimSpace(title) == UnknownTitle
}

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

// Fallback is the reply used when the dialogue engine answers with no text.
const Fallback = "Không có phản hồi từ chatbot."

// ErrTransport matches every failure to get a usable reply from the
// dialogue engine: timeouts, refused connections, non-2xx statuses and
// bodies that do not decode.
var ErrTransport = errors.New("dialogue engine unavailable")

// TransportError carries the underlying cause; its message is the cause
// alone so it can be shown to the caller verbatim.
type TransportError struct {
	Cause error
}

func (e *TransportError) Error() string        { return e.Cause.Error() }
func (e *TransportError) Unwrap() error        { return e.Cause }
func (e *TransportError) Is(target error) bool { return target == ErrTransport }

func transportErr(format string, args ...any) error {
	return &TransportError{Cause: fmt.Errorf(format, args...)}
}

// Relayer forwards one user message and returns the joined reply text.
type Relayer interface {
	Relay(ctx context.Context, sender, message string) (string, error)
}

type restMessage struct {
	Sender  string `json:"sender"`
	Message string `json:"message"`
}

type restFragment struct {
	RecipientID string  `json:"recipient_id"`
	Text        *string `json:"text"`
}

// RasaClient talks to the dialogue engine's REST input channel.
type RasaClient struct {
	endpoint string
	http     *http.Client
}

// NewRasaClient posts to <baseURL>/webhooks/rest/webhook with the given
// bound on each call.
func NewRasaClient(baseURL string, timeout time.Duration) *RasaClient {
	return &RasaClient{
		endpoint: strings.TrimRight(baseURL, "/") + "/webhooks/rest/webhook",
		http:     &http.Client{Timeout: timeout},
	}
}

func (r *RasaClient) Relay(ctx context.Context, sender, message string) (string, error) {
	buf, err := json.Marshal(restMessage{Sender: sender, Message: message})
	if err != nil {
		return "", fmt.Errorf("encode message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(buf))
	if err != nil {
		return "", transportErr("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		return "", &TransportError{Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", transportErr("%d %s for url: %s", resp.StatusCode, http.StatusText(resp.StatusCode), r.endpoint)
	}

	var fragments []restFragment
	if err := json.NewDecoder(resp.Body).Decode(&fragments); err != nil {
		return "", transportErr("decode reply: %w", err)
	}
	return joinReplies(fragments), nil
}

// joinReplies joins the text of every fragment that has one, in order,
// separated by single spaces. An empty result becomes Fallback.
func joinReplies(fragments []restFragment) string {
	var texts []string
	for _, f := range fragments {
		if f.Text != nil {
			texts = append(texts, *f.Text)
		}
	}
	joined := strings.Join(texts, " ")
	if joined == "" {
		return Fallback
	}
	return joined
}

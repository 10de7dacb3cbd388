package ai

import (
	"Kotofey/core"
	"Kotofey/lib/sl"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const completionTimeout = 30 * time.Second

const breedPrompt = "Назови одну случайную породу кота с случайным прилагательным. " +
	"Ответ должен быть кратким, только название породы с прилагательным. " +
	"Например: 'Печальный мейн-кун' или 'Клоунский сиамец'. " +
	"Не добавляй никаких дополнительных слов."

// GigaChat asks the completion backend for a cat-breed description. The
// client itself is stateless; the bearer token comes from the TokenManager
// on every call.
type GigaChat struct {
	conf   *core.Config
	log    *slog.Logger
	tokens *TokenManager
	client *http.Client
}

func NewGigaChat(conf *core.Config, log *slog.Logger, tokens *TokenManager) *GigaChat {
	transport := &http.Transport{}
	if conf.GigaChat.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &GigaChat{
		conf:   conf,
		log:    log.With(sl.Module("gigachat")),
		tokens: tokens,
		client: &http.Client{
			Timeout:   completionTimeout,
			Transport: transport,
		},
	}
}

func (c *GigaChat) BreedDescription(ctx context.Context) (string, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return "", err
	}

	request := NewCompletionRequest(breedPrompt, c.conf.GigaChat.Model)
	jsonBytes, err := json.Marshal(request)
	if err != nil {
		return "", &core.UpstreamError{Err: fmt.Errorf("marshalling request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.conf.GigaChat.ChatURL, strings.NewReader(string(jsonBytes)))
	if err != nil {
		return "", &core.UpstreamError{Err: fmt.Errorf("making request: %w", err)}
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &core.UpstreamError{Err: fmt.Errorf("getting response: %w", err)}
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.log.Error("closing response body", sl.Err(err))
		}
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", &core.UpstreamError{Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &core.UpstreamError{Err: fmt.Errorf("reading response body: %w", err)}
	}

	var chatCompletion ChatCompletion
	if err := json.Unmarshal(body, &chatCompletion); err != nil {
		return "", &core.UpstreamError{Err: fmt.Errorf("decoding response: %w", err)}
	}
	if chatCompletion.Error != nil && chatCompletion.Error.Code != "" {
		return "", &core.UpstreamError{Err: fmt.Errorf("backend error: %s", chatCompletion.Error.Message)}
	}
	if len(chatCompletion.Choices) == 0 {
		return "", &core.UpstreamError{Err: fmt.Errorf("empty choices")}
	}

	breed := strings.TrimSpace(chatCompletion.Choices[0].Message.Content)
	if breed == "" {
		return "", &core.UpstreamError{Err: fmt.Errorf("empty message content")}
	}

	c.log.With(
		slog.String("model", chatCompletion.Model),
		slog.String("breed", breed),
	).Info("breed description received")

	return breed, nil
}

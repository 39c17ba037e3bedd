package enrich

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"
)

// CohereClient implements both Translator and Generator on top of the Cohere
// chat API. One client serves both capabilities so the pipeline holds a
// single connection pool.
type CohereClient struct {
	client         *cohereclient.Client
	model          string
	targetLanguage string
}

// NewCohereClient builds a chat client. The HTTP client forces HTTP/1.1;
// the Cohere endpoint intermittently resets HTTP/2 streams.
func NewCohereClient(apiKey, model, targetLanguage string) (*CohereClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("cohere api key is required")
	}
	if model == "" {
		return nil, fmt.Errorf("cohere model is required")
	}

	httpClient := &http.Client{
		Timeout: 90 * time.Second,
		Transport: &http.Transport{
			TLSNextProto:      make(map[string]func(authority string, c *tls.Conn) http.RoundTripper),
			ForceAttemptHTTP2: false,
		},
	}

	return &CohereClient{
		client: cohereclient.NewClient(
			cohereclient.WithToken(apiKey),
			cohereclient.WithHTTPClient(httpClient),
		),
		model:          model,
		targetLanguage: targetLanguage,
	}, nil
}

// Translate renders the text in the target language. Text already in the
// target language comes back essentially unchanged, which doubles as
// normalization.
func (c *CohereClient) Translate(ctx context.Context, text string) (string, error) {
	prompt := fmt.Sprintf(
		"Translate the following text into %s. Respond with the translation only, no commentary.\n\n%s",
		c.targetLanguage, text,
	)
	return c.chat(ctx, prompt)
}

// Generate sends the prompt as-is and returns the raw completion.
func (c *CohereClient) Generate(ctx context.Context, prompt string) (string, error) {
	return c.chat(ctx, prompt)
}

func (c *CohereClient) chat(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Chat(ctx, &cohere.ChatRequest{
		Message: prompt,
		Model:   cohere.String(c.model),
	})
	if err != nil {
		return "", fmt.Errorf("cohere chat: %w", err)
	}
	return resp.Text, nil
}

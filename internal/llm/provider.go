package llm

import (
	"context"
	"errors"
	"strings"
	"sync"

	openai "github.com/sashabaranov/go-openai"
)

// Client is the minimal interface the pipeline nodes need to call a chat
// model. It intentionally mirrors the CreateChatCompletion method so that any
// OpenAI-compatible backend (Azure included) can be adapted and tests can
// inject fakes.
type Client interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Options selects the chat backend. Azure settings win when an endpoint is
// present; otherwise BaseURL/APIKey address any OpenAI-compatible server.
type Options struct {
	AzureEndpoint   string
	AzureAPIKey     string
	AzureDeployment string
	AzureAPIVersion string

	BaseURL string
	APIKey  string
	Model   string
}

// RequestModel returns the model (or Azure deployment) name requests should
// carry.
func (o Options) RequestModel() string {
	if strings.TrimSpace(o.AzureEndpoint) != "" {
		return o.AzureDeployment
	}
	return o.Model
}

// OpenAIProvider adapts *openai.Client to the Client interface.
type OpenAIProvider struct {
	Inner *openai.Client
}

func (p *OpenAIProvider) CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return p.Inner.CreateChatCompletion(ctx, request)
}

// New constructs a provider from Options.
func New(opts Options) (*OpenAIProvider, error) {
	if strings.TrimSpace(opts.AzureEndpoint) != "" {
		if strings.TrimSpace(opts.AzureAPIKey) == "" || strings.TrimSpace(opts.AzureDeployment) == "" {
			return nil, errors.New("azure endpoint set but api key or deployment missing")
		}
		cfg := openai.DefaultAzureConfig(opts.AzureAPIKey, opts.AzureEndpoint)
		if v := strings.TrimSpace(opts.AzureAPIVersion); v != "" {
			cfg.APIVersion = v
		}
		return &OpenAIProvider{Inner: openai.NewClientWithConfig(cfg)}, nil
	}
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("llm api key missing")
	}
	cfg := openai.DefaultConfig(opts.APIKey)
	if u := strings.TrimSpace(opts.BaseURL); u != "" {
		cfg.BaseURL = u
	}
	return &OpenAIProvider{Inner: openai.NewClientWithConfig(cfg)}, nil
}

// shared is the process-wide client. Building a client is cheap but callers
// across the query handler, the verifier and the CLI must agree on one
// instance so credential rotation via Reset takes effect everywhere.
var (
	sharedMu sync.Mutex
	shared   Client
)

// Shared returns the process-wide client, constructing it from opts on first
// use. Subsequent calls ignore opts and return the existing instance.
func Shared(opts Options) (Client, error) {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if shared != nil {
		return shared, nil
	}
	p, err := New(opts)
	if err != nil {
		return nil, err
	}
	shared = p
	return shared, nil
}

// Reset discards the shared client. The next Shared call rebuilds it, picking
// up changed credentials.
func Reset() {
	sharedMu.Lock()
	shared = nil
	sharedMu.Unlock()
}

// SetShared installs a specific client as the shared instance. Tests use this
// to route the pipeline through fakes.
func SetShared(c Client) {
	sharedMu.Lock()
	shared = c
	sharedMu.Unlock()
}

package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Embedder turns text into dense vectors for the knowledge engine's vector
// table. Two concrete implementations are wired: a remote OpenAI-compatible
// provider and a local Ollama-compatible provider, selected by
// EmbedderConfig.Provider.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Name() string
	Model() string
	Dimension() int
	MaxBatchSize() int
}

// EmbedderConfig selects and configures one embedding provider.
type EmbedderConfig struct {
	Provider string // "remote" (OpenAI-compatible) or "local" (Ollama-compatible)
	APIKey   string
	BaseURL  string
	Model    string
	Dimension int
}

// NewEmbedder builds the configured provider. Dimension defaults per known
// model names when EmbedderConfig.Dimension is left at zero; an unrecognized
// model with no explicit dimension is rejected, since a wrong dimension
// would silently corrupt every vector search once chunks are embedded
// against it.
func NewEmbedder(cfg EmbedderConfig) (Embedder, error) {
	switch cfg.Provider {
	case "local":
		if cfg.BaseURL == "" {
			cfg.BaseURL = "http://localhost:11434"
		}
		if cfg.Model == "" {
			cfg.Model = "nomic-embed-text"
		}
		dim := cfg.Dimension
		if dim == 0 {
			dim = localModelDimension(cfg.Model)
		}
		if dim == 0 {
			return nil, fmt.Errorf("knowledge: unknown dimension for local embedding model %q", cfg.Model)
		}
		return &localEmbedder{
			baseURL: cfg.BaseURL,
			model:   cfg.Model,
			dim:     dim,
			client:  &http.Client{Timeout: 60 * time.Second},
		}, nil
	case "remote", "":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("knowledge: remote embedding provider requires an API key")
		}
		if cfg.Model == "" {
			cfg.Model = "text-embedding-3-small"
		}
		dim := cfg.Dimension
		if dim == 0 {
			dim = remoteModelDimension(cfg.Model)
		}
		if dim == 0 {
			return nil, fmt.Errorf("knowledge: unknown dimension for remote embedding model %q", cfg.Model)
		}
		conf := openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			conf.BaseURL = cfg.BaseURL
		}
		return &remoteEmbedder{
			client: openai.NewClientWithConfig(conf),
			model:  cfg.Model,
			dim:    dim,
		}, nil
	default:
		return nil, fmt.Errorf("knowledge: unknown embedding provider %q", cfg.Provider)
	}
}

func remoteModelDimension(model string) int {
	switch model {
	case "text-embedding-3-small", "text-embedding-ada-002":
		return 1536
	case "text-embedding-3-large":
		return 3072
	default:
		return 0
	}
}

func localModelDimension(model string) int {
	switch model {
	case "nomic-embed-text":
		return 768
	case "mxbai-embed-large":
		return 1024
	case "all-minilm":
		return 384
	default:
		return 0
	}
}

type remoteEmbedder struct {
	client *openai.Client
	model  string
	dim    int
}

func (p *remoteEmbedder) Name() string      { return "remote" }
func (p *remoteEmbedder) Model() string     { return p.model }
func (p *remoteEmbedder) Dimension() int    { return p.dim }
func (p *remoteEmbedder) MaxBatchSize() int { return 2048 }

func (p *remoteEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("knowledge: remote embedder returned no vectors")
	}
	return out[0], nil
}

func (p *remoteEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(p.model),
	})
	if err != nil {
		return nil, fmt.Errorf("knowledge: remote embed: %w", err)
	}
	out := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			continue
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

type localEmbedder struct {
	baseURL string
	model   string
	dim     int
	client  *http.Client
}

func (p *localEmbedder) Name() string      { return "local" }
func (p *localEmbedder) Model() string     { return p.model }
func (p *localEmbedder) Dimension() int    { return p.dim }
func (p *localEmbedder) MaxBatchSize() int { return 100 }

type localEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type localEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (p *localEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(localEmbedRequest{Model: p.model, Prompt: text})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("knowledge: local embed request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("knowledge: local embed provider status %d: %s", resp.StatusCode, string(data))
	}
	var out localEmbedResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("knowledge: decode local embed response: %w", err)
	}
	return out.Embedding, nil
}

// EmbedBatch issues one request per text: the local provider has no native
// batch endpoint.
func (p *localEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := p.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

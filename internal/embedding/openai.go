package embedding

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/reverb-labs/recall/internal/domain"
)

const (
	// DefaultModel is the OpenAI model used for generating embeddings.
	DefaultModel = openai.SmallEmbedding3
	// DefaultDimensions is the dimension of text-embedding-3-small vectors.
	DefaultDimensions = 1536

	// MaxBatchItems caps how many inputs go into one API call.
	MaxBatchItems = 128
	// MaxItemChars truncates oversized single inputs instead of failing the
	// whole batch.
	MaxItemChars = 32000

	maxAttempts   = 3
	retryBaseWait = 500 * time.Millisecond
	callTimeout   = 30 * time.Second
)

// embeddingAPI is the slice of the OpenAI client the provider needs.
type embeddingAPI interface {
	CreateEmbeddings(ctx context.Context, req openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// OpenAIProvider implements Provider against the OpenAI embeddings API with
// batching and retry. Returned vectors are unit-normalized by the API;
// validation renormalizes defensively anyway.
type OpenAIProvider struct {
	api   embeddingAPI
	model openai.EmbeddingModel
	dims  int
	log   *logrus.Logger
}

// Config configures the OpenAI provider.
type Config struct {
	APIKey     string
	Model      openai.EmbeddingModel
	Dimensions int
}

// NewOpenAIProvider creates a provider from config, filling defaults.
func NewOpenAIProvider(cfg Config, log *logrus.Logger) *OpenAIProvider {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}
	if log == nil {
		log = logrus.New()
	}
	return &OpenAIProvider{
		api:   openai.NewClient(cfg.APIKey),
		model: cfg.Model,
		dims:  cfg.Dimensions,
		log:   log,
	}
}

// Dimensions returns the declared vector dimensionality.
func (p *OpenAIProvider) Dimensions() int { return p.dims }

// EmbedOne embeds a single text.
func (p *OpenAIProvider) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, domain.ErrEmptyDocument
	}
	vecs, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in API batches of at most MaxBatchItems,
// preserving input order. An empty input returns an empty slice.
func (p *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	if len(texts) == 0 {
		return out, nil
	}

	prepared := make([]string, len(texts))
	for i, t := range texts {
		if len(t) > MaxItemChars {
			p.log.WithFields(logrus.Fields{
				"index": i,
				"chars": len(t),
				"limit": MaxItemChars,
			}).Warn("truncating oversized embedding input")
			t = t[:MaxItemChars]
		}
		prepared[i] = t
	}

	for start := 0; start < len(prepared); start += MaxBatchItems {
		end := start + MaxBatchItems
		if end > len(prepared) {
			end = len(prepared)
		}
		vecs, err := p.embedWithRetry(ctx, prepared[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}

	if len(out) != len(texts) {
		return nil, domain.ErrCountMismatch
	}
	return out, nil
}

func (p *OpenAIProvider) embedWithRetry(ctx context.Context, batch []string) ([][]float32, error) {
	var vecs [][]float32
	attempts := 0

	op := func() error {
		attempts++
		callCtx, cancel := context.WithTimeout(ctx, callTimeout)
		defer cancel()

		resp, err := p.api.CreateEmbeddings(callCtx, openai.EmbeddingRequest{
			Input: batch,
			Model: p.model,
		})
		if err != nil {
			if isRetryable(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		if len(resp.Data) != len(batch) {
			return backoff.Permanent(domain.ErrCountMismatch)
		}

		vecs = make([][]float32, len(batch))
		for _, d := range resp.Data {
			if d.Index < 0 || d.Index >= len(vecs) {
				return backoff.Permanent(domain.ErrCountMismatch)
			}
			vecs[d.Index] = d.Embedding
		}
		for _, v := range vecs {
			if err := ValidateVector(v, p.dims); err != nil {
				return backoff.Permanent(err)
			}
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = retryBaseWait
	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, maxAttempts-1), ctx))
	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Err
		}
		var de *domain.DomainError
		if errors.As(err, &de) {
			return nil, err
		}
		if isRetryable(err) {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeProvider,
				fmt.Sprintf("embedding call failed after %d attempts", attempts), err)
		}
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeProviderFatal, "embedding call rejected", err)
	}
	return vecs, nil
}

// isRetryable classifies provider failures: rate limits, server errors, and
// timeouts retry; auth and malformed-request errors fail immediately.
func isRetryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

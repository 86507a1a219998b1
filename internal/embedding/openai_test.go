package embedding

import (
	"context"
	"errors"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reverb-labs/recall/internal/domain"
)

type fakeEmbeddingAPI struct {
	calls     int
	failTimes int
	failWith  error
	respond   func(batch []string) openai.EmbeddingResponse
	batches   [][]string
}

func (f *fakeEmbeddingAPI) CreateEmbeddings(_ context.Context, req openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error) {
	f.calls++
	batch := req.Convert().Input.([]string)
	f.batches = append(f.batches, batch)
	if f.calls <= f.failTimes {
		return openai.EmbeddingResponse{}, f.failWith
	}
	return f.respond(batch), nil
}

func unitResponse(batch []string) openai.EmbeddingResponse {
	resp := openai.EmbeddingResponse{}
	for i := range batch {
		vec := make([]float32, 3)
		vec[i%3] = 1
		resp.Data = append(resp.Data, openai.Embedding{Index: i, Embedding: vec})
	}
	return resp
}

func newTestProvider(api embeddingAPI) *OpenAIProvider {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return &OpenAIProvider{api: api, model: DefaultModel, dims: 3, log: log}
}

func TestEmbedBatch_Empty(t *testing.T) {
	api := &fakeEmbeddingAPI{respond: unitResponse}
	p := newTestProvider(api)

	vecs, err := p.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vecs)
	assert.Zero(t, api.calls)
}

func TestEmbedBatch_OrderPreserved(t *testing.T) {
	// Respond with shuffled indices; placement must follow Index, not
	// response order.
	api := &fakeEmbeddingAPI{
		respond: func(batch []string) openai.EmbeddingResponse {
			resp := unitResponse(batch)
			resp.Data[0], resp.Data[1] = resp.Data[1], resp.Data[0]
			return resp
		},
	}
	p := newTestProvider(api)

	vecs, err := p.EmbedBatch(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{1, 0, 0}, vecs[0])
	assert.Equal(t, []float32{0, 1, 0}, vecs[1])
}

func TestEmbedBatch_RetriesRateLimit(t *testing.T) {
	api := &fakeEmbeddingAPI{
		failTimes: 2,
		failWith:  &openai.APIError{HTTPStatusCode: 429, Message: "rate limited"},
		respond:   unitResponse,
	}
	p := newTestProvider(api)

	vecs, err := p.EmbedBatch(context.Background(), []string{"hello"})
	require.NoError(t, err)
	require.Len(t, vecs, 1)
	assert.Equal(t, 3, api.calls)
}

func TestEmbedBatch_RetriesExhausted(t *testing.T) {
	api := &fakeEmbeddingAPI{
		failTimes: 10,
		failWith:  &openai.APIError{HTTPStatusCode: 500, Message: "server error"},
		respond:   unitResponse,
	}
	p := newTestProvider(api)

	_, err := p.EmbedBatch(context.Background(), []string{"hello"})
	require.Error(t, err)
	assert.Equal(t, 3, api.calls)

	var de *domain.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, domain.ErrCodeProvider, de.Code)
}

func TestEmbedBatch_AuthErrorNotRetried(t *testing.T) {
	api := &fakeEmbeddingAPI{
		failTimes: 10,
		failWith:  &openai.APIError{HTTPStatusCode: 401, Message: "bad key"},
		respond:   unitResponse,
	}
	p := newTestProvider(api)

	_, err := p.EmbedBatch(context.Background(), []string{"hello"})
	require.Error(t, err)
	assert.Equal(t, 1, api.calls)

	var de *domain.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, domain.ErrCodeProviderFatal, de.Code)
}

func TestEmbedBatch_CountMismatchIsPermanent(t *testing.T) {
	api := &fakeEmbeddingAPI{
		respond: func(batch []string) openai.EmbeddingResponse {
			resp := unitResponse(batch)
			resp.Data = resp.Data[:len(resp.Data)-1]
			return resp
		},
	}
	p := newTestProvider(api)

	_, err := p.EmbedBatch(context.Background(), []string{"one", "two"})
	require.ErrorIs(t, err, domain.ErrCountMismatch)
	assert.Equal(t, 1, api.calls)
}

func TestEmbedBatch_SplitsLargeBatches(t *testing.T) {
	api := &fakeEmbeddingAPI{respond: unitResponse}
	p := newTestProvider(api)

	texts := make([]string, MaxBatchItems+5)
	for i := range texts {
		texts[i] = "text"
	}

	vecs, err := p.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	assert.Len(t, vecs, MaxBatchItems+5)
	require.Len(t, api.batches, 2)
	assert.Len(t, api.batches[0], MaxBatchItems)
	assert.Len(t, api.batches[1], 5)
}

func TestEmbedBatch_TruncatesOversizedInput(t *testing.T) {
	api := &fakeEmbeddingAPI{respond: unitResponse}
	p := newTestProvider(api)

	_, err := p.EmbedBatch(context.Background(), []string{strings.Repeat("x", MaxItemChars+100)})
	require.NoError(t, err)
	require.Len(t, api.batches, 1)
	assert.Len(t, api.batches[0][0], MaxItemChars)
}

func TestEmbedOne_EmptyText(t *testing.T) {
	p := newTestProvider(&fakeEmbeddingAPI{respond: unitResponse})

	_, err := p.EmbedOne(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrEmptyDocument)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, isRetryable(&openai.APIError{HTTPStatusCode: 429}))
	assert.True(t, isRetryable(&openai.APIError{HTTPStatusCode: 503}))
	assert.True(t, isRetryable(context.DeadlineExceeded))
	assert.False(t, isRetryable(&openai.APIError{HTTPStatusCode: 400}))
	assert.False(t, isRetryable(&openai.APIError{HTTPStatusCode: 401}))
	assert.False(t, isRetryable(errors.New("plain error")))
}

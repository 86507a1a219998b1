// Package transcribe converts uploaded audio recordings into text.
package transcribe

import (
	"context"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/reverb-labs/recall/internal/domain"
)

// Transcriber produces a transcript from an audio stream.
type Transcriber interface {
	Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error)
}

// Whisper transcribes through the OpenAI audio API.
type Whisper struct {
	client *openai.Client
	model  string
}

// NewWhisper creates a Whisper transcriber.
func NewWhisper(apiKey string) *Whisper {
	return &Whisper{
		client: openai.NewClient(apiKey),
		model:  openai.Whisper1,
	}
}

func (w *Whisper) Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error) {
	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: filename,
		Reader:   audio,
	})
	if err != nil {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeProvider, "transcription failed", err)
	}
	return resp.Text, nil
}

// Disabled is the stub used when no transcription backend is configured.
type Disabled struct{}

func (Disabled) Transcribe(context.Context, string, io.Reader) (string, error) {
	return "", domain.ErrTranscriptionDisabled
}

package llm

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/reverb-labs/recall/internal/domain"
)

const enricherSystemPrompt = `You write retrieval context for chunks of a larger conversation or document.
Given the full document and one chunk of it, write one or two short sentences
situating the chunk: who is involved, what is being discussed, and where in
the conversation it sits. Output the sentences only.`

const (
	// enrichMaxDocumentChars bounds how much surrounding document goes into
	// the prompt.
	enrichMaxDocumentChars = 24000
	enrichMaxSummaryChars  = 600
)

// Enricher generates a short context summary per chunk so that embeddings
// capture surrounding-document meaning, not just the chunk text.
type Enricher struct {
	chat ChatClient
	log  *logrus.Logger
}

// NewEnricher creates a context-summary enricher.
func NewEnricher(chat ChatClient, log *logrus.Logger) *Enricher {
	if log == nil {
		log = logrus.New()
	}
	return &Enricher{chat: chat, log: log}
}

// Summarize produces the context summary for one chunk within its document.
func (e *Enricher) Summarize(ctx context.Context, document, chunk string) (string, error) {
	if len(document) > enrichMaxDocumentChars {
		document = document[:enrichMaxDocumentChars]
	}

	var b strings.Builder
	b.WriteString("<document>\n")
	b.WriteString(document)
	b.WriteString("\n</document>\n\n<chunk>\n")
	b.WriteString(chunk)
	b.WriteString("\n</chunk>")

	out, err := e.chat.Complete(ctx, enricherSystemPrompt, b.String())
	if err != nil {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeProvider, "chunk enrichment failed", err)
	}
	out = strings.TrimSpace(out)
	if len(out) > enrichMaxSummaryChars {
		out = out[:enrichMaxSummaryChars]
	}
	return out, nil
}

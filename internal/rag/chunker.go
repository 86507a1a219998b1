package rag

import (
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// Turn is one speaker-labeled utterance of a structured conversation.
type Turn struct {
	Speaker string
	Content string
}

// Piece is one chunk produced by the Chunker, before embedding and storage.
type Piece struct {
	Text     string
	Metadata map[string]string
}

// ChunkConfig controls chunk sizing. Budgets are token counts.
type ChunkConfig struct {
	TokenBudget   int
	OverlapBudget int
	MaxChunks     int
}

// DefaultChunkConfig provides sane defaults for chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		TokenBudget:   512,
		OverlapBudget: 50,
		MaxChunks:     200,
	}
}

// Chunker splits documents into token-bounded, overlapping pieces. Structured
// speaker turns are never split mid-turn; plain text is split on sentence
// boundaries with an abbreviation exception list.
type Chunker struct {
	cfg     ChunkConfig
	counter TokenCounter
	log     *logrus.Logger

	warnedApprox bool
}

// NewChunker builds a Chunker. A nil counter falls back to the approximate
// chars-per-token estimator.
func NewChunker(cfg ChunkConfig, counter TokenCounter, log *logrus.Logger) *Chunker {
	if cfg.TokenBudget <= 0 {
		cfg = DefaultChunkConfig()
	}
	if cfg.OverlapBudget >= cfg.TokenBudget {
		cfg.OverlapBudget = cfg.TokenBudget / 4
	}
	if counter == nil {
		counter = NewEstimateCounter(0)
	}
	if log == nil {
		log = logrus.New()
	}
	return &Chunker{cfg: cfg, counter: counter, log: log}
}

// ChunkTurns chunks a structured conversation. Boundaries fall only after
// complete turns, preferentially where the speaker changes. Empty input
// yields zero pieces.
func (c *Chunker) ChunkTurns(turns []Turn) []Piece {
	c.noteApproximation()

	type counted struct {
		text    string
		speaker string
		tokens  int
	}
	units := make([]counted, 0, len(turns))
	for _, t := range turns {
		content := strings.TrimSpace(t.Content)
		if content == "" {
			continue
		}
		text := content
		if t.Speaker != "" {
			text = t.Speaker + ": " + content
		}
		units = append(units, counted{text: text, speaker: t.Speaker, tokens: c.counter.Count(text)})
	}
	if len(units) == 0 {
		return nil
	}

	var pieces []Piece
	start := 0
	for start < len(units) {
		if c.cfg.MaxChunks > 0 && len(pieces) >= c.cfg.MaxChunks {
			break
		}

		end := start
		total := 0
		for end < len(units) {
			if total > 0 && total+units[end].tokens > c.cfg.TokenBudget {
				break
			}
			total += units[end].tokens
			end++
		}

		// Prefer cutting at the last speaker change inside the window so a
		// chunk holds complete exchanges, not half of one.
		if end < len(units) && end-start > 1 {
			cut := end
			for i := end; i > start+1; i-- {
				if units[i-1].speaker != units[i-2].speaker {
					cut = i
					break
				}
			}
			end = cut
		}

		texts := make([]string, 0, end-start)
		speakers := make(map[string]struct{})
		for i := start; i < end; i++ {
			texts = append(texts, units[i].text)
			if units[i].speaker != "" {
				speakers[units[i].speaker] = struct{}{}
			}
		}
		meta := map[string]string{
			"token_estimate": strconv.Itoa(total),
		}
		if len(speakers) > 0 {
			names := make([]string, 0, len(speakers))
			for s := range speakers {
				names = append(names, s)
			}
			sort.Strings(names)
			meta["speakers"] = strings.Join(names, ",")
		}
		// A single turn over budget is emitted whole, never truncated.
		if end-start == 1 && total > c.cfg.TokenBudget {
			meta["oversize"] = "true"
			c.log.WithFields(logrus.Fields{
				"tokens": total,
				"budget": c.cfg.TokenBudget,
			}).Warn("turn exceeds token budget, emitting whole")
		}
		pieces = append(pieces, Piece{Text: strings.Join(texts, "\n"), Metadata: meta})

		if end >= len(units) {
			break
		}

		// Carry trailing complete turns into the next chunk as overlap.
		next := end
		overlap := 0
		for next > start+1 && overlap+units[next-1].tokens <= c.cfg.OverlapBudget {
			overlap += units[next-1].tokens
			next--
		}
		if next <= start {
			next = end
		}
		start = next
	}

	return pieces
}

// ChunkText chunks unstructured text on sentence boundaries. Empty input
// yields zero pieces.
func (c *Chunker) ChunkText(text string) []Piece {
	c.noteApproximation()

	sentences := SplitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	tokens := make([]int, len(sentences))
	for i, s := range sentences {
		tokens[i] = c.counter.Count(s)
	}

	var pieces []Piece
	start := 0
	for start < len(sentences) {
		if c.cfg.MaxChunks > 0 && len(pieces) >= c.cfg.MaxChunks {
			break
		}

		end := start
		total := 0
		for end < len(sentences) {
			if total > 0 && total+tokens[end] > c.cfg.TokenBudget {
				break
			}
			total += tokens[end]
			end++
		}

		meta := map[string]string{
			"token_estimate": strconv.Itoa(total),
		}
		if end-start == 1 && total > c.cfg.TokenBudget {
			meta["oversize"] = "true"
			c.log.WithFields(logrus.Fields{
				"tokens": total,
				"budget": c.cfg.TokenBudget,
			}).Warn("sentence exceeds token budget, emitting whole")
		}
		pieces = append(pieces, Piece{Text: strings.Join(sentences[start:end], " "), Metadata: meta})

		if end >= len(sentences) {
			break
		}

		next := end
		overlap := 0
		for next > start+1 && overlap+tokens[next-1] <= c.cfg.OverlapBudget {
			overlap += tokens[next-1]
			next--
		}
		if next <= start {
			next = end
		}
		start = next
	}

	return pieces
}

// Approximate reports whether chunk budgets are measured with an estimated
// tokenizer rather than the embedding model's own.
func (c *Chunker) Approximate() bool {
	return c.counter.Approximate()
}

func (c *Chunker) noteApproximation() {
	if c.counter.Approximate() && !c.warnedApprox {
		c.warnedApprox = true
		c.log.Warn("token counts are approximated; budgets may drift from the model tokenizer")
	}
}

// abbreviations that end with a period but do not end a sentence.
var abbreviations = map[string]struct{}{
	"dr":     {},
	"mr":     {},
	"mrs":    {},
	"ms":     {},
	"prof":   {},
	"sr":     {},
	"jr":     {},
	"st":     {},
	"etc":    {},
	"i.e":    {},
	"e.g":    {},
	"vs":     {},
	"ph.d":   {},
	"m.d":    {},
	"no":     {},
	"approx": {},
}

// SplitSentences splits text on sentence-ending punctuation, skipping
// boundaries that fall inside recognized abbreviations.
func SplitSentences(text string) []string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil
	}

	var sentences []string
	var current []string
	for i, word := range fields {
		current = append(current, word)
		if !endsSentence(word) {
			continue
		}
		// Lone punctuation right at the end still closes the sentence.
		if i == len(fields)-1 {
			continue
		}
		sentences = append(sentences, strings.Join(current, " "))
		current = current[:0]
	}
	if len(current) > 0 {
		sentences = append(sentences, strings.Join(current, " "))
	}
	return sentences
}

func endsSentence(word string) bool {
	trimmed := strings.TrimRight(word, `"')]`)
	if trimmed == "" {
		return false
	}
	last := trimmed[len(trimmed)-1]
	switch last {
	case '!', '?':
		return true
	case '.':
		bare := strings.ToLower(strings.TrimRight(trimmed, "."))
		bare = strings.TrimLeft(bare, `"'([`)
		if _, ok := abbreviations[bare]; ok {
			return false
		}
		// Initials like "J." or "U.S." are not boundaries either.
		if len(bare) == 1 || strings.Contains(bare, ".") {
			return false
		}
		return true
	default:
		return false
	}
}

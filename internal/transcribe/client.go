// Package transcribe sends normalized audio to a speech-to-text provider
// and extracts the transcript and speaker utterances from its response.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/kiranshivaraju/scribe/internal/normalize"
	"github.com/kiranshivaraju/scribe/pkg/models"
)

// ErrTranscriptionFailed wraps every provider or response-shape failure.
var ErrTranscriptionFailed = errors.New("transcription failed")

// UtteranceSplitSeconds is the silence gap that starts a new utterance.
const UtteranceSplitSeconds = 2.5

// Options are the per-request provider settings.
type Options struct {
	Model          string
	Language       string
	Diarize        bool
	SmartFormat    bool
	Punctuate      bool
	Utterances     bool
	UtteranceSplit float64
}

// Provider is a raw speech-to-text backend. The returned value may be any
// shape; Client normalizes it before reading it.
type Provider interface {
	Transcribe(ctx context.Context, audio io.Reader, opts Options) (any, error)
	Name() string
}

// Client issues exactly one provider request per call. It does not retry.
type Client struct {
	provider     Provider
	defaultModel string
	language     string
}

// NewClient returns a Client using defaultModel when a job names none.
func NewClient(p Provider, defaultModel, language string) *Client {
	return &Client{provider: p, defaultModel: defaultModel, language: language}
}

// Transcribe reads the audio at path and returns the full transcript and
// its utterances. A response without utterances yields an empty list.
func (c *Client) Transcribe(ctx context.Context, path, modelSelector string) (string, []models.Utterance, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", nil, fmt.Errorf("%w: opening audio: %v", ErrTranscriptionFailed, err)
	}
	defer f.Close()

	opts := Options{
		Model:          ResolveModel(modelSelector, c.defaultModel),
		Language:       c.language,
		Diarize:        true,
		SmartFormat:    true,
		Punctuate:      true,
		Utterances:     true,
		UtteranceSplit: UtteranceSplitSeconds,
	}

	raw, err := c.provider.Transcribe(ctx, f, opts)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %s: %v", ErrTranscriptionFailed, c.provider.Name(), err)
	}

	doc, ok := normalize.Value(raw).(map[string]any)
	if !ok {
		return "", nil, fmt.Errorf("%w: response is not an object", ErrTranscriptionFailed)
	}
	transcript, err := extractTranscript(doc)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrTranscriptionFailed, err)
	}
	utterances := extractUtterances(doc)

	slog.Info("transcription received",
		"provider", c.provider.Name(),
		"model", opts.Model,
		"chars", len([]rune(transcript)),
		"utterances", len(utterances),
	)
	return transcript, utterances, nil
}

// extractTranscript reads results.channels[0].alternatives[0].transcript.
func extractTranscript(doc map[string]any) (string, error) {
	results, _ := doc["results"].(map[string]any)
	if results == nil {
		return "", errors.New("response has no results")
	}
	channels, _ := results["channels"].([]any)
	if len(channels) == 0 {
		return "", errors.New("response has no channels")
	}
	channel, _ := channels[0].(map[string]any)
	alternatives, _ := channel["alternatives"].([]any)
	if len(alternatives) == 0 {
		return "", errors.New("response has no alternatives")
	}
	alt, _ := alternatives[0].(map[string]any)
	transcript, ok := alt["transcript"].(string)
	if !ok {
		return "", errors.New("response has no transcript")
	}
	return transcript, nil
}

func extractUtterances(doc map[string]any) []models.Utterance {
	out := []models.Utterance{}
	results, _ := doc["results"].(map[string]any)
	items, _ := results["utterances"].([]any)
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		u := models.Utterance{
			Start: toFloat(m["start"]),
			End:   toFloat(m["end"]),
		}
		u.Transcript, _ = m["transcript"].(string)
		u.Transcript = strings.TrimSpace(u.Transcript)
		if u.End < u.Start {
			u.End = u.Start
		}
		if sp, ok := m["speaker"]; ok && sp != nil {
			u.Speaker = fmt.Sprint(sp)
		}
		if c, ok := m["confidence"]; ok && c != nil {
			v := toFloat(c)
			u.Confidence = &v
		}
		out = append(out, u)
	}
	return out
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case uint64:
		return float64(n)
	case interface{ Float64() (float64, error) }:
		f, _ := n.Float64()
		return f
	}
	return 0
}

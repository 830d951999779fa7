package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const defaultDeepgramBaseURL = "https://api.deepgram.com"

// DeepgramConfig holds the settings for the hosted listen endpoint.
type DeepgramConfig struct {
	APIKey  string
	BaseURL string
}

// DeepgramProvider posts audio to a Deepgram-compatible /v1/listen endpoint.
type DeepgramProvider struct {
	cfg        DeepgramConfig
	httpClient *http.Client
}

// NewDeepgramProvider returns a provider using the default transport
// timeouts; uploads of long recordings can take minutes.
func NewDeepgramProvider(cfg DeepgramConfig) *DeepgramProvider {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultDeepgramBaseURL
	}
	return &DeepgramProvider{cfg: cfg, httpClient: &http.Client{}}
}

func (p *DeepgramProvider) Name() string { return "deepgram" }

// ListenResponse mirrors the parts of the listen payload the service reads.
// Unknown fields are kept in Metadata only.
type ListenResponse struct {
	Metadata map[string]any `json:"metadata,omitempty"`
	Results  *ListenResults `json:"results,omitempty"`
}

type ListenResults struct {
	Channels   []ListenChannel   `json:"channels"`
	Utterances []ListenUtterance `json:"utterances,omitempty"`
}

type ListenChannel struct {
	Alternatives []ListenAlternative `json:"alternatives"`
}

type ListenAlternative struct {
	Transcript string       `json:"transcript"`
	Confidence float64      `json:"confidence"`
	Words      []ListenWord `json:"words,omitempty"`
}

type ListenWord struct {
	Word           string   `json:"word"`
	PunctuatedWord string   `json:"punctuated_word,omitempty"`
	Start          float64  `json:"start"`
	End            float64  `json:"end"`
	Confidence     float64  `json:"confidence"`
	Speaker        *int     `json:"speaker,omitempty"`
	SpeakerConf    *float64 `json:"speaker_confidence,omitempty"`
}

type ListenUtterance struct {
	ID         string       `json:"id"`
	Start      float64      `json:"start"`
	End        float64      `json:"end"`
	Confidence float64      `json:"confidence"`
	Channel    int          `json:"channel"`
	Transcript string       `json:"transcript"`
	Speaker    *int         `json:"speaker,omitempty"`
	Words      []ListenWord `json:"words,omitempty"`
}

// ToMap renders the response as a generic mapping.
func (r *ListenResponse) ToMap() (map[string]any, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

type httpStatusError struct {
	StatusCode int
	Body       string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("listen request: http %d: %s", e.StatusCode, e.Body)
}

// Transcribe uploads the audio body and decodes the listen response.
func (p *DeepgramProvider) Transcribe(ctx context.Context, audio io.Reader, opts Options) (any, error) {
	if p.cfg.APIKey == "" {
		return nil, errors.New("listen request: api key required")
	}
	endpoint := p.cfg.BaseURL + "/v1/listen?" + listenQuery(opts).Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, audio)
	if err != nil {
		return nil, fmt.Errorf("listen request: new request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+p.cfg.APIKey)
	req.Header.Set("Content-Type", "audio/wav")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("listen request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("listen request: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &httpStatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var out ListenResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("listen request: decode response: %w", err)
	}
	return &out, nil
}

func listenQuery(opts Options) url.Values {
	q := url.Values{}
	if opts.Model != "" {
		q.Set("model", opts.Model)
	}
	if opts.Language != "" {
		q.Set("language", opts.Language)
	}
	q.Set("diarize", strconv.FormatBool(opts.Diarize))
	q.Set("smart_format", strconv.FormatBool(opts.SmartFormat))
	q.Set("punctuate", strconv.FormatBool(opts.Punctuate))
	q.Set("utterances", strconv.FormatBool(opts.Utterances))
	if opts.UtteranceSplit > 0 {
		q.Set("utt_split", strconv.FormatFloat(opts.UtteranceSplit, 'f', -1, 64))
	}
	return q
}

var _ Provider = (*DeepgramProvider)(nil)

package speech

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/soyeahso/gerald/internal/config"
	"github.com/soyeahso/gerald/internal/logging"
)

// Synthesizer turns text into playable audio through a Mimic3-style TTS
// endpoint.
type Synthesizer struct {
	endpoint   string
	voice      string
	httpClient *http.Client
	log        *logging.Logger
}

// NewSynthesizer creates a speech-synthesis client from config.
func NewSynthesizer(cfg config.SpeechConfig, log *logging.Logger) *Synthesizer {
	return &Synthesizer{
		endpoint:   cfg.TTSEndpoint,
		voice:      cfg.Voice,
		httpClient: &http.Client{},
		log:        log.Sub("tts"),
	}
}

// Synthesize returns WAV audio for the given text.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	params := url.Values{}
	params.Set("text", text)
	params.Set("voice", s.voice)
	params.Set("noiseScale", "0.333")
	params.Set("noiseW", "0.333")
	params.Set("lengthScale", "1.1")
	params.Set("ssml", "false")
	params.Set("audioTarget", "client")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("synthesis request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("synthesis request: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading synthesis response: %w", err)
	}

	s.log.Debug().Int("audioBytes", len(data)).Msg("synthesized speech")
	return data, nil
}

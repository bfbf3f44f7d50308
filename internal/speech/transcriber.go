package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/soyeahso/gerald/internal/config"
	"github.com/soyeahso/gerald/internal/logging"
)

// Transcriber turns raw PCM audio into text through a Whisper-compatible
// transcription endpoint. The client treats non-200 responses and decode
// failures as request failures for the caller to surface to the user.
type Transcriber struct {
	endpoint   string
	model      string
	httpClient *http.Client
	log        *logging.Logger
}

// NewTranscriber creates a transcription client from config.
func NewTranscriber(cfg config.SpeechConfig, log *logging.Logger) *Transcriber {
	return &Transcriber{
		endpoint:   cfg.TranscribeEndpoint,
		model:      cfg.WhisperModel,
		httpClient: &http.Client{},
		log:        log.Sub("stt"),
	}
}

// Transcribe sends 16 kHz, 16-bit, mono PCM audio for transcription.
func (t *Transcriber) Transcribe(ctx context.Context, pcm []byte) (string, error) {
	start := time.Now()

	wav := EncodeWAV(WAVFormat{Channels: 1, Rate: 16000, Depth: 16}, pcm)

	var body bytes.Buffer
	form := multipart.NewWriter(&body)

	part, err := form.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(wav); err != nil {
		return "", err
	}
	if err := form.WriteField("model", t.model); err != nil {
		return "", err
	}
	if err := form.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("transcription request: unexpected status %d", resp.StatusCode)
	}

	var payload struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decoding transcription response: %w", err)
	}

	t.log.Debug().
		Dur("elapsed", time.Since(start)).
		Int("pcmBytes", len(pcm)).
		Msg("transcribed audio")

	return payload.Text, nil
}

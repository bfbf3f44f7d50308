// Package session holds the per-connection orchestrator that ties
// transcription, the conversation interpreter, and asynchronous adapter
// events together.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/soyeahso/gerald/internal/action"
	"github.com/soyeahso/gerald/internal/interpreter"
	"github.com/soyeahso/gerald/internal/logging"
)

// Transport delivers framed messages to a connected client.
type Transport interface {
	SendJSON(v any) error
	SendAudio(data []byte) error
}

// Transcriber turns captured PCM audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, pcm []byte) (string, error)
}

// Synthesizer turns text into playable audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// InterpreterFactory creates a fresh interpreter for a new conversation.
type InterpreterFactory func() *interpreter.Interpreter

// Config controls wake-word gating and conversation lifetime.
type Config struct {
	KeepAliveTTL int64 // seconds the conversation stays hot after activity
	WakeWords    []string
}

type notice struct {
	Type string `json:"type"`
}

// identifyPayload is the only client JSON document the handler accepts.
type identifyPayload struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// Handler orchestrates one client connection: the identify handshake,
// wake-word gating, the conversation lifecycle, and adapter events
// arriving out of band. A Handler exclusively owns its interpreter.
type Handler struct {
	transport      Transport
	dispatcher     *action.Dispatcher
	stt            Transcriber
	tts            Synthesizer
	newInterpreter InterpreterFactory
	cfg            Config
	now            func() int64
	log            *logging.Logger

	closeOnce sync.Once
	done      chan struct{}

	// mu guards identification and conversation state, and serializes
	// interpreter Process calls: a scheduled evaluate must not race a
	// live user utterance on the same transcript.
	mu       sync.Mutex
	name     string
	lastSeen int64
	interp   *interpreter.Interpreter
}

// New creates a handler for a freshly connected transport.
func New(
	transport Transport,
	dispatcher *action.Dispatcher,
	stt Transcriber,
	tts Synthesizer,
	newInterpreter InterpreterFactory,
	cfg Config,
	log *logging.Logger,
) *Handler {
	return &Handler{
		transport:      transport,
		dispatcher:     dispatcher,
		stt:            stt,
		tts:            tts,
		newInterpreter: newInterpreter,
		cfg:            cfg,
		now:            func() int64 { return time.Now().Unix() },
		log:            log.Sub("session"),
		done:           make(chan struct{}),
	}
}

// Run reaps idle conversations on a fixed interval until the connection
// closes or the context is cancelled.
func (h *Handler) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			h.mu.Lock()
			h.reapLocked()
			h.mu.Unlock()
		}
	}
}

// HandleJSON processes a J-tagged frame. Malformed payloads are logged
// and dropped; the connection stays open. A failed identify (duplicate
// client name) is returned as an error so the caller can fail loudly.
func (h *Handler) HandleJSON(ctx context.Context, payload []byte) error {
	var msg identifyPayload
	if err := json.Unmarshal(payload, &msg); err != nil {
		h.log.Warn().Err(err).Msg("malformed json payload")
		return nil
	}
	if msg.Type == "" {
		h.log.Warn().Msg("json payload missing type")
		return nil
	}

	if msg.Type == "identify" {
		return h.handleIdentify(ctx, msg)
	}

	if !h.identified() {
		h.log.Warn().Str("type", msg.Type).Msg("dropping message from unidentified client")
		return nil
	}

	h.log.Warn().Str("type", msg.Type).Msg("unexpected json payload type")
	return nil
}

func (h *Handler) handleIdentify(ctx context.Context, msg identifyPayload) error {
	if msg.Name == "" {
		h.log.Warn().Msg("identify payload missing name")
		return nil
	}

	h.mu.Lock()
	if h.name != "" {
		h.mu.Unlock()
		h.log.Warn().Str("name", msg.Name).Msg("client already identified")
		return nil
	}
	h.name = msg.Name
	h.mu.Unlock()

	if err := h.dispatcher.Subscribe(msg.Name, func(item action.ResultItem) error {
		return h.onAdapterEvent(ctx, item)
	}); err != nil {
		// The name is only kept while the subscription exists; otherwise
		// this handler's close would unsubscribe the session that owns it.
		h.mu.Lock()
		h.name = ""
		h.mu.Unlock()
		return fmt.Errorf("identify %s: %w", msg.Name, err)
	}

	h.log.Info().Str("client", msg.Name).Msg("client identified")

	if err := h.transport.SendJSON(notice{Type: "identified"}); err != nil {
		return err
	}

	// Give the client a beat to switch its speaker on before greeting it.
	time.Sleep(50 * time.Millisecond)
	h.speak(ctx, "Identified by "+msg.Name)
	return nil
}

// HandleAudio transcribes an A-tagged frame and forwards the utterance
// through wake-word gating.
func (h *Handler) HandleAudio(ctx context.Context, payload []byte) {
	if !h.identified() {
		h.log.Warn().Msg("dropping audio from unidentified client")
		return
	}

	text, err := h.stt.Transcribe(ctx, payload)
	if err != nil {
		h.log.Error().Err(err).Msg("transcription failed")
		return
	}

	now := h.now()

	h.mu.Lock()
	// The window is inclusive: an utterance arriving exactly
	// keepAliveTtl seconds after the last one is still hot.
	hot := h.lastSeen+h.cfg.KeepAliveTTL >= now
	if hot {
		h.lastSeen = now
	}
	h.mu.Unlock()

	if !hot {
		if !h.matchesWakeWord(text) {
			h.log.Debug().Str("text", text).Msg("utterance dropped, no wake word")
			return
		}
		h.mu.Lock()
		h.lastSeen = now
		h.mu.Unlock()
	}

	h.log.Info().Str("text", text).Msg("utterance")
	h.forward(ctx, text)
}

// HandleClose releases the client's subscription and stops the reaper.
func (h *Handler) HandleClose() {
	h.closeOnce.Do(func() {
		close(h.done)
		h.mu.Lock()
		name := h.name
		h.mu.Unlock()
		if name != "" {
			h.dispatcher.Unsubscribe(name)
		}
	})
}

func (h *Handler) identified() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.name != ""
}

func (h *Handler) matchesWakeWord(text string) bool {
	lowered := strings.ToLower(text)
	for _, word := range h.cfg.WakeWords {
		if strings.Contains(lowered, word) {
			return true
		}
	}
	return false
}

// forward appends a user utterance to the conversation and acts on the
// interpreter's outcome.
func (h *Handler) forward(ctx context.Context, text string) {
	h.mu.Lock()
	interp, err := h.conversationLocked()
	if err != nil {
		h.mu.Unlock()
		h.log.Error().Err(err).Msg("starting conversation failed")
		return
	}
	if err := interp.AddUserMessage(text); err != nil {
		h.mu.Unlock()
		h.log.Error().Err(err).Msg("appending utterance failed")
		return
	}
	outcome, err := interp.Process(ctx)
	h.mu.Unlock()

	if err != nil {
		h.log.Error().Err(err).Msg("interpreter processing failed")
		return
	}
	h.apply(ctx, outcome)
}

// apply acts on a Process outcome: text is spoken back, actions are
// handed to the dispatcher preserving each call's toolId.
func (h *Handler) apply(ctx context.Context, outcome interpreter.Outcome) {
	switch o := outcome.(type) {
	case interpreter.TextOutcome:
		h.log.Info().Str("text", o.Text).Msg("reply")
		h.speak(ctx, o.Text)

	case interpreter.ActionOutcome:
		h.mu.Lock()
		name := h.name
		h.mu.Unlock()

		for _, call := range o.Actions {
			_, err := h.dispatcher.Invoke(ctx, name, action.Invocation{
				ID:         call.ID,
				Parameters: call.Parameters,
				ToolID:     call.ToolID,
			})
			if err != nil {
				h.log.Error().Err(err).Str("action", call.ID).Msg("action invocation failed")
			}
		}
	}
}

// onAdapterEvent applies a result item delivered through the client's
// subscription, typically from a scheduled job.
func (h *Handler) onAdapterEvent(ctx context.Context, item action.ResultItem) error {
	if !h.identified() {
		return nil
	}

	h.mu.Lock()
	interp, err := h.conversationLocked()
	if err != nil {
		h.mu.Unlock()
		return err
	}

	switch it := item.(type) {
	case action.EndConversationItem:
		interp.End()
		h.mu.Unlock()

	case action.UserMessageItem:
		err = interp.AddUserMessage(it.Message)
		h.mu.Unlock()

	case action.AssistantMessageItem:
		err = interp.AddAssistantMessage(it.Message)
		h.mu.Unlock()

	case action.ToolMessageItem:
		err = interp.AddToolMessage(it.ToolID, it.Message)
		h.mu.Unlock()

	case action.SpeakItem:
		h.mu.Unlock()
		h.speak(ctx, it.Message)

	case action.SoundItem:
		h.mu.Unlock()
		if serr := h.transport.SendAudio(it.Data); serr != nil {
			return serr
		}

	case action.EvaluateItem:
		outcome, perr := interp.Process(ctx)
		h.mu.Unlock()
		if perr != nil {
			return perr
		}
		h.apply(ctx, outcome)

	case action.ScheduleItem:
		// Informational only; the dispatcher already queued it.
		h.mu.Unlock()

	default:
		h.mu.Unlock()
	}

	return err
}

// conversationLocked returns the live interpreter, reaping a stale one
// and creating a fresh conversation when needed. Callers hold mu.
func (h *Handler) conversationLocked() (*interpreter.Interpreter, error) {
	h.reapLocked()

	if h.interp == nil {
		if err := h.transport.SendJSON(notice{Type: "conversation-start"}); err != nil {
			return nil, err
		}

		interp := h.newInterpreter()
		for _, a := range h.dispatcher.Actions() {
			if err := interp.AddAction(a); err != nil {
				return nil, err
			}
		}
		if err := interp.Start(); err != nil {
			return nil, err
		}

		h.interp = interp
		h.log.Info().Msg("conversation started")
	}

	return h.interp, nil
}

// reapLocked discards the interpreter once it has ended or its hot window
// has expired, notifying the client. Callers hold mu.
func (h *Handler) reapLocked() {
	if h.interp == nil {
		return
	}

	ended := h.interp.EndedTime() != 0
	// Same inclusive window as the audio path.
	active := h.lastSeen+h.cfg.KeepAliveTTL >= h.now()
	if !ended && active {
		return
	}

	h.log.Info().Msg("conversation ended")

	if err := h.transport.SendJSON(notice{Type: "conversation-end"}); err != nil {
		h.log.Warn().Err(err).Msg("sending conversation-end failed")
	}

	interp := h.interp
	h.interp = nil

	if !ended {
		interp.End()
	}
}

// speak synthesizes text and streams the audio to the client. Synthesis
// failures are surfaced to the log, not the session.
func (h *Handler) speak(ctx context.Context, text string) {
	audio, err := h.tts.Synthesize(ctx, text)
	if err != nil {
		h.log.Error().Err(err).Msg("speech synthesis failed")
		return
	}
	if err := h.transport.SendAudio(audio); err != nil {
		h.log.Error().Err(err).Msg("sending audio failed")
	}
}

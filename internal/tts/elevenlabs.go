// Package tts turns dialogue lines into PCM audio through ElevenLabs.
package tts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Classroom/internal/audio"
	"github.com/dkeye/Classroom/internal/config"
	"github.com/dkeye/Classroom/internal/dialogue"
	"github.com/dkeye/Classroom/internal/domain"
)

// ElevenLabs implements dialogue.Synthesizer against the text-to-speech REST
// API. It asks for raw little-endian PCM16 mono so no decoder is needed.
type ElevenLabs struct {
	cfg    config.TTSConfig
	client *http.Client
}

func NewElevenLabs(cfg config.TTSConfig, client *http.Client) *ElevenLabs {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 24000
	}
	return &ElevenLabs{cfg: cfg, client: client}
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

type ttsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id,omitempty"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

// settings uses the voice's tuning unless it is entirely unset.
func (e *ElevenLabs) settings(v dialogue.VoiceConfig) voiceSettings {
	if v.Stability == 0 && v.SimilarityBoost == 0 && v.Style == 0 && !v.SpeakerBoost {
		return voiceSettings{
			Stability:       e.cfg.Stability,
			SimilarityBoost: e.cfg.SimilarityBoost,
			Style:           e.cfg.Style,
			UseSpeakerBoost: e.cfg.SpeakerBoost,
		}
	}
	return voiceSettings{
		Stability:       v.Stability,
		SimilarityBoost: v.SimilarityBoost,
		Style:           v.Style,
		UseSpeakerBoost: v.SpeakerBoost,
	}
}

func (e *ElevenLabs) endpoint(voiceID string) (string, error) {
	base := strings.TrimRight(e.cfg.APIURL, "/")
	path := "/v1/text-to-speech/" + url.PathEscape(voiceID)
	if e.cfg.Streaming {
		path += "/stream"
	}
	u, err := url.Parse(base + path)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("output_format", "pcm_"+strconv.Itoa(e.cfg.SampleRate))
	if e.cfg.Streaming && e.cfg.LatencyOptimization > 0 {
		q.Set("optimize_streaming_latency", strconv.Itoa(e.cfg.LatencyOptimization))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Synthesize renders text with voice, falling back to the configured voice for
// empty fields. Every failure wraps dialogue.ErrSynthesis.
func (e *ElevenLabs) Synthesize(ctx context.Context, text string, voice dialogue.VoiceConfig) (*domain.AudioBuffer, error) {
	start := time.Now()
	buf, err := e.synthesize(ctx, text, voice)
	ttsTotalDurationMS.Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		ttsSynthesisTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: %w", dialogue.ErrSynthesis, err)
	}
	ttsSynthesisTotal.WithLabelValues("ok").Inc()
	log.Debug().Str("module", "tts").Int("samples", len(buf.Samples)).Dur("took", time.Since(start)).Msg("synthesized")
	return buf, nil
}

func (e *ElevenLabs) synthesize(ctx context.Context, text string, voice dialogue.VoiceConfig) (*domain.AudioBuffer, error) {
	if e.cfg.APIKey == "" {
		return nil, fmt.Errorf("missing api key")
	}
	voiceID := voice.VoiceID
	if voiceID == "" {
		voiceID = e.cfg.VoiceID
	}
	modelID := voice.ModelID
	if modelID == "" {
		modelID = e.cfg.ModelID
	}
	settings := e.settings(voice)

	endpoint, err := e.endpoint(voiceID)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(ttsRequest{Text: text, ModelID: modelID, VoiceSettings: settings})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("xi-api-key", e.cfg.APIKey)
	req.Header.Set("accept", "audio/pcm")
	req.Header.Set("content-type", "application/json")

	sent := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	ttsFirstByteMS.Observe(float64(time.Since(sent).Milliseconds()))

	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("status=%d body=%s", resp.StatusCode, string(b))
	}
	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(pcm) < 2 {
		return nil, fmt.Errorf("empty audio")
	}
	return &domain.AudioBuffer{
		SampleRate: e.cfg.SampleRate,
		Channels:   1,
		Samples:    audio.PCM16ToFloat(pcm),
	}, nil
}

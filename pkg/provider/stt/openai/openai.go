// Package openai provides an STT provider backed by the OpenAI audio
// transcription API (Whisper).
package openai

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/presidence-ga/iasted/pkg/provider/stt"
)

// DefaultModel is the default transcription model.
const DefaultModel = "whisper-1"

// Ensure Provider implements the stt.Provider interface.
var _ stt.Provider = (*Provider)(nil)

// Provider implements stt.Provider using the OpenAI API. Clips are wrapped
// in a minimal WAV container before upload because the API does not accept
// raw headerless PCM.
type Provider struct {
	client oai.Client
	model  string
}

// config holds optional configuration for the provider.
type config struct {
	baseURL string
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// New constructs a new OpenAI transcription Provider. If model is empty,
// DefaultModel (whisper-1) is used.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai stt: apiKey must not be empty")
	}
	if model == "" {
		model = DefaultModel
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	client := oai.NewClient(reqOpts...)
	return &Provider{client: client, model: model}, nil
}

// Transcribe implements stt.Provider.
func (p *Provider) Transcribe(ctx context.Context, clip stt.Clip) (stt.Result, error) {
	if len(clip.PCM) == 0 {
		return stt.Result{}, nil
	}
	if clip.SampleRate <= 0 || clip.Channels <= 0 {
		return stt.Result{}, fmt.Errorf("openai stt: invalid clip format %dHz %dch", clip.SampleRate, clip.Channels)
	}

	wav := encodeWAV(clip.PCM, clip.SampleRate, clip.Channels)

	params := oai.AudioTranscriptionNewParams{
		File:  oai.File(bytes.NewReader(wav), "clip.wav", "audio/wav"),
		Model: p.model,
	}
	if clip.Language != "" {
		params.Language = oai.String(clip.Language)
	}

	resp, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return stt.Result{}, fmt.Errorf("openai stt: transcribe: %w", err)
	}

	return stt.Result{Text: strings.TrimSpace(resp.Text)}, nil
}

// encodeWAV wraps raw 16-bit PCM in a standard 44-byte RIFF/WAVE header.
func encodeWAV(pcm []byte, sampleRate, channels int) []byte {
	const fmtSize = 16
	dataSize := len(pcm)
	fileSize := 4 + (8 + fmtSize) + (8 + dataSize)
	byteRate := sampleRate * channels * 2
	blockAlign := channels * 2

	buf := make([]byte, 0, 44+dataSize)
	u32 := func(v int) []byte {
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, uint32(v))
		return b
	}
	u16 := func(v int) []byte {
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, uint16(v))
		return b
	}

	buf = append(buf, []byte("RIFF")...)
	buf = append(buf, u32(fileSize)...)
	buf = append(buf, []byte("WAVE")...)
	buf = append(buf, []byte("fmt ")...)
	buf = append(buf, u32(fmtSize)...)
	buf = append(buf, u16(1)...) // PCM format
	buf = append(buf, u16(channels)...)
	buf = append(buf, u32(sampleRate)...)
	buf = append(buf, u32(byteRate)...)
	buf = append(buf, u16(blockAlign)...)
	buf = append(buf, u16(16)...) // bits per sample
	buf = append(buf, []byte("data")...)
	buf = append(buf, u32(dataSize)...)
	buf = append(buf, pcm...)
	return buf
}

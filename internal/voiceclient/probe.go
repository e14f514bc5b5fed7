package voiceclient

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/hammamikhairi/talkbox/internal/domain"
)

// ServerStatus is the JSON document served at the status endpoint. Only a
// 200 matters; the fields are decoded best-effort for the boot log.
type ServerStatus struct {
	Enabled           bool    `json:"enabled"`
	WhisperModel      string  `json:"whisper_model"`
	TTSModel          string  `json:"tts_model"`
	TTSVoice          string  `json:"tts_voice"`
	DefaultModel      string  `json:"voice_default_model"`
	MaxAudioMB        float64 `json:"max_audio_mb"`
	OpenAIConfigured  bool    `json:"openai_configured"`
	VoiceChatPrefix   string  `json:"voice_chat_prefix"`
	decodedFromServer bool
}

// Decoded reports whether the body parsed as a status document.
func (s *ServerStatus) Decoded() bool { return s.decodedFromServer }

// Probe issues GET on the status endpoint with a 5 s timeout. Any 200
// means the server is up.
func (c *Client) Probe(ctx context.Context) (*ServerStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, domain.ProbeTimeout)
	defer cancel()

	scheme := "http"
	if c.cfg.TLS {
		scheme = "https"
	}
	url := fmt.Sprintf("%s://%s%s", scheme, c.address(), c.cfg.StatusEndpoint)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("probe: create request: %w", err)
	}

	hc := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	defer hc.CloseIdleConnections()

	c.log.Debug("probe: GET %s", url)
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("probe: %w: %w", domain.ErrConnect, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, fmt.Errorf("probe: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, Line: resp.Status, Body: string(body)}
	}

	st := &ServerStatus{}
	if err := json.Unmarshal(body, st); err == nil {
		st.decodedFromServer = true
	} else {
		c.log.Debug("probe: status body is not JSON: %v", err)
	}
	return st, nil
}

package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// NewSynthesizer picks a backend by name. Unknown names fall back to
// logging the announcement.
func NewSynthesizer(kind, command, url string) Synthesizer {
	switch kind {
	case "", "stub", "log":
		return logSynthesizer{}
	case "noop":
		return noopSynthesizer{}
	case "exec":
		if command == "" {
			return logSynthesizer{}
		}
		return execSynthesizer{command: command}
	case "webhook":
		if url == "" {
			return logSynthesizer{}
		}
		return webhookSynthesizer{url: strings.TrimRight(url, "/"), client: &http.Client{Timeout: 5 * time.Second}}
	default:
		if strings.HasPrefix(kind, "http://") || strings.HasPrefix(kind, "https://") {
			return webhookSynthesizer{url: strings.TrimRight(kind, "/"), client: &http.Client{Timeout: 5 * time.Second}}
		}
		return logSynthesizer{}
	}
}

type logSynthesizer struct{}

func (logSynthesizer) Voices(ctx context.Context) ([]Voice, error) {
	return nil, nil
}

func (logSynthesizer) Speak(ctx context.Context, utterance Utterance) error {
	voice := "default"
	if utterance.Voice != nil {
		voice = utterance.Voice.Name
	}
	log.Printf("speak lang=%s voice=%q: %s", utterance.Lang, voice, utterance.Text)
	return nil
}

type noopSynthesizer struct{}

func (noopSynthesizer) Voices(ctx context.Context) ([]Voice, error) {
	return nil, nil
}

func (noopSynthesizer) Speak(ctx context.Context, utterance Utterance) error {
	return nil
}

// execSynthesizer drives an espeak compatible command line.
type execSynthesizer struct {
	command string
}

func (s execSynthesizer) Voices(ctx context.Context) ([]Voice, error) {
	out, err := exec.CommandContext(ctx, s.command, "--voices").Output()
	if err != nil {
		return nil, err
	}
	return parseVoiceTable(out), nil
}

func (s execSynthesizer) Speak(ctx context.Context, utterance Utterance) error {
	cmd := exec.CommandContext(ctx, s.command, execArgs(utterance)...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", s.command, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func execArgs(utterance Utterance) []string {
	voice := utterance.Lang
	if utterance.Voice != nil {
		voice = utterance.Voice.Name
	}
	// espeak scales: amplitude 0-200 (100 normal), speed in wpm (175 normal), pitch 0-99 (50 normal).
	args := []string{"-a", strconv.Itoa(int(utterance.Volume * 100)), "-s", strconv.Itoa(int(utterance.Rate * 175)), "-p", strconv.Itoa(int(utterance.Pitch * 50))}
	if voice != "" {
		args = append(args, "-v", strings.ToLower(voice))
	}
	return append(args, utterance.Text)
}

// parseVoiceTable reads the "Pty Language Age/Gender VoiceName File" table
// printed by espeak --voices.
func parseVoiceTable(out []byte) []Voice {
	var voices []Voice
	for i, line := range strings.Split(string(out), "\n") {
		fields := strings.Fields(line)
		if i == 0 || len(fields) < 4 {
			continue
		}
		voices = append(voices, Voice{Name: fields[3], Lang: fields[1]})
	}
	return voices
}

type webhookSynthesizer struct {
	url    string
	client *http.Client
}

func (s webhookSynthesizer) Voices(ctx context.Context) ([]Voice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url+"/voices", nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("voice list rejected: status %d", resp.StatusCode)
	}
	var voices []Voice
	if err := json.NewDecoder(resp.Body).Decode(&voices); err != nil {
		return nil, err
	}
	return voices, nil
}

func (s webhookSynthesizer) Speak(ctx context.Context, utterance Utterance) error {
	body, err := json.Marshal(utterance)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url+"/speak", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return errors.New("speech provider rejected request")
	}
	return nil
}

package voice

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/zull0910/tunos/internal/protocol"
)

type Voice struct {
	Name    string `json:"name"`
	Lang    string `json:"lang"`
	Default bool   `json:"default,omitempty"`
}

// Utterance carries fixed prosody defaults. A nil Voice means the
// platform default voice.
type Utterance struct {
	Text   string  `json:"text"`
	Lang   string  `json:"lang"`
	Voice  *Voice  `json:"voice,omitempty"`
	Volume float64 `json:"volume"`
	Rate   float64 `json:"rate"`
	Pitch  float64 `json:"pitch"`
}

type Synthesizer interface {
	Voices(ctx context.Context) ([]Voice, error)
	Speak(ctx context.Context, utterance Utterance) error
}

type Config struct {
	Preferred string
	Lang      string
	Template  string
	Timeout   time.Duration
}

type Announcer struct {
	synth     Synthesizer
	preferred string
	lang      string
	template  string
	timeout   time.Duration
}

func NewAnnouncer(synth Synthesizer, cfg Config) *Announcer {
	lang := cfg.Lang
	if lang == "" {
		lang = "es-US"
	}
	template := cfg.Template
	if template == "" {
		template = "Paciente {patient}, por favor pase al consultorio {room}."
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if synth == nil {
		synth = noopSynthesizer{}
	}
	return &Announcer{
		synth:     synth,
		preferred: cfg.Preferred,
		lang:      lang,
		template:  template,
		timeout:   timeout,
	}
}

func (a *Announcer) Compose(ctx context.Context, ticket protocol.Ticket) Utterance {
	utterance := Utterance{
		Text:   renderTemplate(a.template, ticket),
		Lang:   a.lang,
		Volume: 1,
		Rate:   1,
		Pitch:  1,
	}
	if voice, ok := a.selectVoice(ctx); ok {
		utterance.Voice = &voice
	}
	return utterance
}

// Announce speaks the call on its own goroutine and never reports back.
// It matches control.Hook.
func (a *Announcer) Announce(ticket protocol.Ticket) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("voice panic ticket=%d: %v", ticket.ID, r)
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		if err := a.Speak(ctx, ticket); err != nil {
			log.Printf("voice announce ticket=%d error=%v", ticket.ID, err)
		}
	}()
}

func (a *Announcer) Speak(ctx context.Context, ticket protocol.Ticket) error {
	return a.synth.Speak(ctx, a.Compose(ctx, ticket))
}

// selectVoice falls back to the platform default when the preferred voice
// is missing or the voice list cannot be read.
func (a *Announcer) selectVoice(ctx context.Context) (Voice, bool) {
	if a.preferred == "" {
		return Voice{}, false
	}
	voices, err := a.synth.Voices(ctx)
	if err != nil {
		log.Printf("voice list unavailable: %v", err)
		return Voice{}, false
	}
	for _, voice := range voices {
		if voice.Name == a.preferred {
			return voice, true
		}
	}
	return Voice{}, false
}

func renderTemplate(template string, ticket protocol.Ticket) string {
	result := template
	result = strings.ReplaceAll(result, "{patient}", ticket.PatientName)
	result = strings.ReplaceAll(result, "{room}", ticket.Room)
	return result
}

package voice

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/zull0910/tunos/internal/protocol"
)

type fakeSynth struct {
	voices   []Voice
	voiceErr error
	spoken   chan Utterance
	block    chan struct{}
}

func (f *fakeSynth) Voices(ctx context.Context) ([]Voice, error) {
	return f.voices, f.voiceErr
}

func (f *fakeSynth) Speak(ctx context.Context, utterance Utterance) error {
	if f.block != nil {
		<-f.block
	}
	if f.spoken != nil {
		f.spoken <- utterance
	}
	return nil
}

var maria = protocol.Ticket{ID: 1, PatientName: "Maria Lopez", Room: "3"}

func TestComposeUsesPreferredVoice(t *testing.T) {
	synth := &fakeSynth{voices: []Voice{
		{Name: "Microsoft Sabina", Lang: "es-MX"},
		{Name: "Google español de Estados Unidos", Lang: "es-US"},
	}}
	a := NewAnnouncer(synth, Config{Preferred: "Google español de Estados Unidos"})
	u := a.Compose(context.Background(), maria)
	if u.Text != "Paciente Maria Lopez, por favor pase al consultorio 3." {
		t.Fatalf("unexpected text %q", u.Text)
	}
	if u.Voice == nil || u.Voice.Name != "Google español de Estados Unidos" {
		t.Fatalf("expected preferred voice, got %+v", u.Voice)
	}
	if u.Lang != "es-US" || u.Volume != 1 || u.Rate != 1 || u.Pitch != 1 {
		t.Fatalf("unexpected prosody %+v", u)
	}
}

func TestComposeFallsBackToDefaultVoice(t *testing.T) {
	cases := []struct {
		name  string
		synth *fakeSynth
	}{
		{"voice missing", &fakeSynth{voices: []Voice{{Name: "Alex", Lang: "en-US"}}}},
		{"empty list", &fakeSynth{}},
		{"list error", &fakeSynth{voiceErr: errors.New("no speech engine")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := NewAnnouncer(tc.synth, Config{Preferred: "Google español de Estados Unidos"})
			if u := a.Compose(context.Background(), maria); u.Voice != nil {
				t.Fatalf("expected default voice, got %+v", u.Voice)
			}
		})
	}
}

func TestComposeCustomTemplate(t *testing.T) {
	a := NewAnnouncer(nil, Config{Template: "{patient} to room {room}", Lang: "en-GB"})
	u := a.Compose(context.Background(), maria)
	if u.Text != "Maria Lopez to room 3" || u.Lang != "en-GB" {
		t.Fatalf("unexpected utterance %+v", u)
	}
}

func TestAnnounceDoesNotBlock(t *testing.T) {
	synth := &fakeSynth{block: make(chan struct{}), spoken: make(chan Utterance, 1)}
	a := NewAnnouncer(synth, Config{})
	done := make(chan struct{})
	go func() {
		a.Announce(maria)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Announce blocked on the synthesizer")
	}
	close(synth.block)
	select {
	case u := <-synth.spoken:
		if u.Text == "" {
			t.Fatalf("expected spoken text")
		}
	case <-time.After(time.Second):
		t.Fatalf("announcement never reached the synthesizer")
	}
}

func TestWebhookSynthesizer(t *testing.T) {
	spoken := make(chan Utterance, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/voices":
			_ = json.NewEncoder(w).Encode([]Voice{{Name: "Paulina", Lang: "es-MX"}})
		case "/speak":
			var u Utterance
			if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			spoken <- u
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	a := NewAnnouncer(NewSynthesizer("webhook", "", srv.URL+"/"), Config{Preferred: "Paulina"})
	if err := a.Speak(context.Background(), maria); err != nil {
		t.Fatalf("speak: %v", err)
	}
	u := <-spoken
	if u.Voice == nil || u.Voice.Name != "Paulina" {
		t.Fatalf("expected Paulina voice, got %+v", u.Voice)
	}
}

func TestNewSynthesizerFallbacks(t *testing.T) {
	cases := []struct {
		kind, command, url string
		want               Synthesizer
	}{
		{"", "", "", logSynthesizer{}},
		{"noop", "", "", noopSynthesizer{}},
		{"exec", "", "", logSynthesizer{}},
		{"exec", "espeak-ng", "", execSynthesizer{command: "espeak-ng"}},
		{"webhook", "", "", logSynthesizer{}},
		{"carrier-pigeon", "", "", logSynthesizer{}},
	}
	for _, tc := range cases {
		if got := NewSynthesizer(tc.kind, tc.command, tc.url); !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("NewSynthesizer(%q)=%#v, want %#v", tc.kind, got, tc.want)
		}
	}
}

func TestExecArgs(t *testing.T) {
	u := Utterance{Text: "hola", Lang: "es-US", Volume: 1, Rate: 1, Pitch: 1}
	want := []string{"-a", "100", "-s", "175", "-p", "50", "-v", "es-us", "hola"}
	if got := execArgs(u); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestParseVoiceTable(t *testing.T) {
	out := []byte("Pty Language       Age/Gender VoiceName          File                 Other Languages\n" +
		" 5  es             --/M      Spanish_(Spain)    roa/es\n" +
		" 5  es-419         --/M      Spanish_(Latin_America) roa/es-419\n")
	want := []Voice{{Name: "Spanish_(Spain)", Lang: "es"}, {Name: "Spanish_(Latin_America)", Lang: "es-419"}}
	if got := parseVoiceTable(out); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

package plugin_test

import (
	"context"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/chriscow/voicemart/pkg/ai/stt"
	"github.com/chriscow/voicemart/pkg/ai/tts"
	"github.com/chriscow/voicemart/pkg/plugin"
	_ "github.com/chriscow/voicemart/pkg/plugin/fake"
	_ "github.com/chriscow/voicemart/pkg/plugin/openai"
)

func TestRegisteredProviders(t *testing.T) {
	is := is.New(t)

	var names []string
	for _, p := range plugin.List("") {
		names = append(names, p.Kind+"/"+p.Name)
		is.True(p.Description != "")
	}
	is.Equal(names, []string{"recognizer/fake", "tts/fake", "tts/openai"})
}

func TestFakeRecognizerReplaysScript(t *testing.T) {
	is := is.New(t)
	rec, err := plugin.NewRecognizer("fake", map[string]any{
		"script": []any{"listen now", "scroll down"},
	})
	is.NoErr(err)
	is.NoErr(rec.Start(context.Background(), stt.Config{Lang: "en-US", Continuous: true}))

	var finals []string
	timeout := time.After(time.Second)
	for len(finals) < 2 {
		select {
		case ev := <-rec.Events():
			if ev.Type == stt.SpeechEventFinal {
				finals = append(finals, ev.Text)
			}
		case <-timeout:
			t.Fatal("script was not replayed")
		}
	}
	is.Equal(finals, []string{"listen now", "scroll down"})

	_, err = plugin.NewRecognizer("fake", map[string]any{"script": 42})
	is.True(err != nil)
}

func TestFakeTTS(t *testing.T) {
	is := is.New(t)
	synth, err := plugin.NewTTS("fake", map[string]any{"frame_delay": "0s"})
	is.NoErr(err)

	frames, err := synth.Synthesize(context.Background(), tts.SynthesizeRequest{Text: "ok"})
	is.NoErr(err)
	n := 0
	for range frames {
		n++
	}
	is.Equal(n, 2) // one frame per character

	_, err = plugin.NewTTS("fake", map[string]any{"frame_delay": "soon"})
	is.True(err != nil)
}

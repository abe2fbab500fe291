// Package fake registers the scripted recognizer and the tone synthesizer
// under the name "fake", for development and the simulate command.
package fake

import (
	"fmt"
	"time"

	sttfake "github.com/chriscow/voicemart/pkg/ai/stt/fake"
	ttsfake "github.com/chriscow/voicemart/pkg/ai/tts/fake"
	"github.com/chriscow/voicemart/pkg/plugin"
)

func newRecognizer(cfg map[string]any) (any, error) {
	switch script := cfg["script"].(type) {
	case nil:
		return sttfake.NewFakeRecognizer(), nil
	case []string:
		return sttfake.NewScriptedRecognizer(script...), nil
	case []any:
		lines := make([]string, 0, len(script))
		for _, v := range script {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("script line %v is %T, not a string", v, v)
			}
			lines = append(lines, s)
		}
		return sttfake.NewScriptedRecognizer(lines...), nil
	default:
		return nil, fmt.Errorf("script must be a list of strings, got %T", script)
	}
}

func newTTS(cfg map[string]any) (any, error) {
	t := ttsfake.NewFakeTTS()
	switch d := cfg["frame_delay"].(type) {
	case time.Duration:
		t.FrameDelay = d
	case string:
		v, err := time.ParseDuration(d)
		if err != nil {
			return nil, fmt.Errorf("frame_delay: %w", err)
		}
		t.FrameDelay = v
	}
	return t, nil
}

func init() {
	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        plugin.KindRecognizer,
		Name:        "fake",
		Factory:     newRecognizer,
		Description: "Scripted recognizer that replays transcripts",
		Version:     "1.0.0",
		Config: map[string]any{
			"script": "transcripts to emit after the first start",
		},
	})

	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        plugin.KindTTS,
		Name:        "fake",
		Factory:     newTTS,
		Description: "Synthesizer that plays a tone per character",
		Version:     "1.0.0",
		Config: map[string]any{
			"frame_delay": "pause between 10ms frames, e.g. 1ms",
		},
	})
}

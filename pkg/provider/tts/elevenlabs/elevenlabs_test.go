package elevenlabs

import (
	"encoding/json"
	"testing"

	"github.com/presidence-ga/iasted/pkg/types"
)

func TestNew_RequiresAPIKey(t *testing.T) {
	t.Parallel()

	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty API key")
	}
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	p, err := New("key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.model != defaultModel {
		t.Errorf("model = %q, want %q", p.model, defaultModel)
	}
	if p.outputFormat != defaultOutputFmt {
		t.Errorf("outputFormat = %q, want %q", p.outputFormat, defaultOutputFmt)
	}
}

func TestNew_Options(t *testing.T) {
	t.Parallel()

	p, err := New("key", WithModel("eleven_multilingual_v2"), WithOutputFormat("pcm_24000"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.model != "eleven_multilingual_v2" {
		t.Errorf("model = %q", p.model)
	}
	if p.outputFormat != "pcm_24000" {
		t.Errorf("outputFormat = %q", p.outputFormat)
	}
}

func TestBuildURLForVoice(t *testing.T) {
	t.Parallel()

	got := buildURLForVoice(DefaultVoiceID, "eleven_flash_v2_5")
	want := "wss://api.elevenlabs.io/v1/text-to-speech/EV6XgOdBELK29O2b4qyM/stream-input?model_id=eleven_flash_v2_5"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSettingsFor_Defaults(t *testing.T) {
	t.Parallel()

	vs := settingsFor(types.VoiceProfile{})
	if vs.Stability != defaultStability {
		t.Errorf("stability = %f, want %f", vs.Stability, defaultStability)
	}
	if vs.SimilarityBoost != defaultSimilarityBoost {
		t.Errorf("similarityBoost = %f, want %f", vs.SimilarityBoost, defaultSimilarityBoost)
	}
}

func TestSettingsFor_ProfileOverrides(t *testing.T) {
	t.Parallel()

	vs := settingsFor(types.VoiceProfile{Stability: 0.9, SimilarityBoost: 0.3})
	if vs.Stability != 0.9 || vs.SimilarityBoost != 0.3 {
		t.Errorf("got %+v, want profile values preserved", vs)
	}
}

func TestTextMessage_FlushShape(t *testing.T) {
	t.Parallel()

	// The flush message must serialize with an explicit empty text field
	// and no voice settings.
	b, err := json.Marshal(textMessage{Text: ""})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"text":""}` {
		t.Errorf("flush payload = %s", b)
	}
}

func TestConvertVoices(t *testing.T) {
	t.Parallel()

	raw := []byte(`{"voices":[{"voice_id":"v1","name":"Aria","category":"premade"},{"voice_id":"v2","name":"Clone"}]}`)
	var vr voicesResponse
	if err := json.Unmarshal(raw, &vr); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	voices := convertVoices(vr)
	if len(voices) != 2 {
		t.Fatalf("expected 2 voices, got %d", len(voices))
	}
	if voices[0].ID != "v1" || voices[0].Name != "Aria" || voices[0].Category != "premade" {
		t.Errorf("voice 0 = %+v", voices[0])
	}
	if voices[1].Category != "" {
		t.Errorf("voice 1 category = %q, want empty", voices[1].Category)
	}
}

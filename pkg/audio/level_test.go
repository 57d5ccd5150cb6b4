package audio_test

import (
	"testing"

	"github.com/presidence-ga/iasted/pkg/audio"
)

func TestLevel_Silence(t *testing.T) {
	pcm := samplesToBytes(make([]int16, 160))
	if got := audio.Level(pcm); got != 0 {
		t.Errorf("silent frame: got level %d, want 0", got)
	}
}

func TestLevel_Empty(t *testing.T) {
	if got := audio.Level(nil); got != 0 {
		t.Errorf("nil input: got level %d, want 0", got)
	}
	if got := audio.Level([]byte{0x01}); got != 0 {
		t.Errorf("single byte: got level %d, want 0", got)
	}
}

func TestLevel_FullScale(t *testing.T) {
	samples := make([]int16, 160)
	for i := range samples {
		samples[i] = 32767
	}
	if got := audio.Level(samplesToBytes(samples)); got != 100 {
		t.Errorf("full-scale frame: got level %d, want clamped 100", got)
	}
}

func TestLevel_SpeechAboveThreshold(t *testing.T) {
	// A tone at ~5% of full scale, typical for speech, must land well above
	// the default silence threshold of 10.
	samples := make([]int16, 320)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = 1600
		} else {
			samples[i] = -1600
		}
	}
	got := audio.Level(samplesToBytes(samples))
	if got <= 10 {
		t.Errorf("speech-like frame: got level %d, want > 10", got)
	}
	if got > 100 {
		t.Errorf("level %d exceeds scale", got)
	}
}

func TestLevel_QuietBelowThreshold(t *testing.T) {
	// Background noise at ~0.1% of full scale must stay below the default
	// silence threshold of 10.
	samples := make([]int16, 320)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = 30
		} else {
			samples[i] = -30
		}
	}
	if got := audio.Level(samplesToBytes(samples)); got > 10 {
		t.Errorf("quiet frame: got level %d, want <= 10", got)
	}
}

func TestRMS_Monotonic(t *testing.T) {
	quiet := make([]int16, 160)
	loud := make([]int16, 160)
	for i := range quiet {
		quiet[i] = 100
		loud[i] = 10000
	}
	q := audio.RMS(samplesToBytes(quiet))
	l := audio.RMS(samplesToBytes(loud))
	if q >= l {
		t.Errorf("RMS not monotonic: quiet %.1f >= loud %.1f", q, l)
	}
}

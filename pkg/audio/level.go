package audio

import "math"

// maxInt16 is the full-scale amplitude of 16-bit PCM, used to normalize RMS
// energy before mapping it onto the 0–100 level scale.
const maxInt16 = 32768.0

// levelGain stretches normalized RMS so that conversational speech lands in
// the upper half of the 0–100 scale. Speech at a normal distance from a
// consumer microphone has an RMS around 0.02–0.1 of full scale; without gain
// the whole useful range would be squeezed below 10.
const levelGain = 500.0

// Level maps the RMS energy of a little-endian int16 PCM chunk onto a 0–100
// scale. The turn-taking controller compares this value against its silence
// threshold (default 10), and the gateway forwards it to clients to drive
// level animations. Empty or misaligned input yields 0.
func Level(pcm []byte) int {
	r := RMS(pcm)
	level := int(math.Round(r / maxInt16 * levelGain))
	if level > 100 {
		level = 100
	}
	return level
}

// RMS computes the root-mean-square amplitude of a little-endian int16 PCM
// chunk in raw sample units (0–32768). Returns 0 for empty input.
func RMS(pcm []byte) float64 {
	if len(pcm) < 2 {
		return 0
	}
	var sum float64
	n := len(pcm) / 2
	for i := 0; i < n; i++ {
		s := int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(n))
}

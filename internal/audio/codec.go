// Package audio implements the Opus<->PCM codec component: 16kHz mono
// 16-bit frames of 960 samples (60ms), matching the wire format the device
// protocol carries in its binary messages.
package audio

import (
	"bytes"
	"fmt"

	"github.com/hraban/opus"
	"github.com/youpy/go-wav"
)

const (
	SampleRate   = 16000
	Channels     = 1
	FrameMs      = 60
	SamplesPerMs = SampleRate / 1000
	FrameSamples = FrameMs * SamplesPerMs // 960
)

// Frame is one 60ms slice of signed 16-bit little-endian PCM, mono, 16kHz.
type Frame struct {
	PCM []int16
}

// Codec wraps a pair of Opus encoder/decoder bound to one session. Unlike
// the teacher's missing `media.EncoderFunc` abstraction (referenced
// throughout hardwarefinal but never defined in the pack), this talks
// directly to the real codec library.
type Codec struct {
	enc *opus.Encoder
	dec *opus.Decoder
}

// NewCodec builds an encoder/decoder pair for one session's outbound and
// inbound audio.
func NewCodec() (*Codec, error) {
	enc, err := opus.NewEncoder(SampleRate, Channels, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("new opus encoder: %w", err)
	}
	dec, err := opus.NewDecoder(SampleRate, Channels)
	if err != nil {
		return nil, fmt.Errorf("new opus decoder: %w", err)
	}
	return &Codec{enc: enc, dec: dec}, nil
}

// Decode turns one Opus packet into a 60ms PCM frame. Packet-loss
// concealment (nil payload) is not handled here; callers drop the frame
// instead, matching spec.md's "no offline guarantees" non-goal.
func (c *Codec) Decode(opusPacket []byte) (Frame, error) {
	pcm := make([]int16, FrameSamples*Channels)
	n, err := c.dec.Decode(opusPacket, pcm)
	if err != nil {
		return Frame{}, fmt.Errorf("opus decode: %w", err)
	}
	return Frame{PCM: pcm[:n*Channels]}, nil
}

// Encode turns one 60ms PCM frame into an Opus packet. The caller is
// responsible for zero-padding the final, possibly-short, frame of a
// stream before calling Encode (spec.md 4.3: "residual tail zero-padded
// only on final flush").
func (c *Codec) Encode(frame Frame) ([]byte, error) {
	if len(frame.PCM) != FrameSamples*Channels {
		return nil, fmt.Errorf("encode: expected %d samples, got %d", FrameSamples*Channels, len(frame.PCM))
	}
	buf := make([]byte, 4000)
	n, err := c.enc.Encode(frame.PCM, buf)
	if err != nil {
		return nil, fmt.Errorf("opus encode: %w", err)
	}
	return buf[:n], nil
}

// PadToFrame zero-pads a short PCM tail up to a full frame, per spec.md's
// final-flush rule.
func PadToFrame(pcm []int16) []int16 {
	if len(pcm) >= FrameSamples {
		return pcm[:FrameSamples]
	}
	padded := make([]int16, FrameSamples)
	copy(padded, pcm)
	return padded
}

// EncodeWAV packages raw mono PCM16 samples as an in-memory WAV file, for
// callers (e.g. voiceprint identification) that need a self-describing
// audio blob rather than raw samples.
func EncodeWAV(pcm []int16, sampleRate int) ([]byte, error) {
	var buf bytes.Buffer
	writer := wav.NewWriter(&buf, uint32(len(pcm)), Channels, uint32(sampleRate), 16)
	data := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		data[2*i] = byte(s)
		data[2*i+1] = byte(s >> 8)
	}
	if _, err := writer.Write(data); err != nil {
		return nil, fmt.Errorf("encode wav: %w", err)
	}
	return buf.Bytes(), nil
}

// SplitFrames slices a raw PCM buffer into full 60ms frames, zero-padding
// only the trailing partial frame.
func SplitFrames(pcm []int16) []Frame {
	var frames []Frame
	for i := 0; i < len(pcm); i += FrameSamples {
		end := i + FrameSamples
		if end > len(pcm) {
			frames = append(frames, Frame{PCM: PadToFrame(pcm[i:])})
			break
		}
		frames = append(frames, Frame{PCM: pcm[i:end]})
	}
	return frames
}

package audio

import (
	"errors"
	"fmt"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

var errNotWAV = errors.New("input is not an integer PCM WAV file")

// wavFormatPCM is the fmt chunk tag for uncompressed integer samples.
// Float (3), A-law (6), mu-law (7), ADPCM and extensible (0xFFFE) files are
// left to ffmpeg; the decoder would read their bits as integers.
const wavFormatPCM = 1

// pcmChunkFrames bounds how many frames are decoded per read.
const pcmChunkFrames = 8192

// convertWAV streams a PCM WAV file through downmix and resampling and
// writes it back out as 16-bit mono at TargetSampleRate.
func convertWAV(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	dec := wav.NewDecoder(in)
	if !dec.IsValidFile() {
		return errNotWAV
	}
	if dec.WavAudioFormat != wavFormatPCM {
		return fmt.Errorf("%w: format tag %d", errNotWAV, dec.WavAudioFormat)
	}
	channels, rate, depth := int(dec.NumChans), int(dec.SampleRate), int(dec.BitDepth)
	if channels < 1 || rate < 1 {
		return errNotWAV
	}

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	enc := wav.NewEncoder(out, TargetSampleRate, TargetBitDepth, TargetChannels, 1)

	werr := streamPCM(dec, enc, channels, rate, depth)
	cerr := enc.Close()
	ferr := out.Close()
	if err := errors.Join(werr, cerr, ferr); err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("converting wav: %w", err)
	}
	return nil
}

func streamPCM(dec *wav.Decoder, enc *wav.Encoder, channels, rate, depth int) error {
	in := &goaudio.IntBuffer{Data: make([]int, pcmChunkFrames*channels)}
	outFormat := &goaudio.Format{NumChannels: TargetChannels, SampleRate: TargetSampleRate}
	rs := newLinearResampler(rate, TargetSampleRate)

	var carry, joined []int
	var mono []float64
	var samples []int
	wrote := false
	write := func() error {
		if len(samples) == 0 && wrote {
			return nil
		}
		wrote = true
		return enc.Write(&goaudio.IntBuffer{Format: outFormat, Data: samples, SourceBitDepth: TargetBitDepth})
	}

	for {
		n, err := dec.PCMBuffer(in)
		if err != nil {
			return fmt.Errorf("decoding wav: %w", err)
		}
		if n == 0 {
			break
		}
		data := in.Data[:n]
		if len(carry) > 0 {
			joined = append(append(joined[:0], carry...), data...)
			data = joined
		}
		whole := len(data) - len(data)%channels
		mono = downmixInto(mono[:0], data[:whole], channels, depth)
		carry = append(carry[:0], data[whole:]...)

		samples = rs.push(mono, samples[:0])
		if err := write(); err != nil {
			return err
		}
	}

	samples = rs.flush(samples[:0])
	return write()
}

// downmix averages interleaved frames into one channel scaled to [-1, 1].
func downmix(data []int, channels, bitDepth int) []float64 {
	return downmixInto(nil, data, channels, bitDepth)
}

func downmixInto(dst []float64, data []int, channels, bitDepth int) []float64 {
	if bitDepth <= 0 {
		bitDepth = 16
	}
	full := math.Pow(2, float64(bitDepth-1))
	frames := len(data) / channels
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			v := float64(data[i*channels+c])
			if bitDepth == 8 {
				// 8-bit WAV is unsigned.
				v -= 128
			}
			sum += v / full
		}
		dst = append(dst, sum/float64(channels))
	}
	return dst
}

// linearResampler converts a mono stream between rates by linear
// interpolation. Output i sits at input position i*from/to; the last input
// sample is held back so positions straddling two chunks interpolate.
type linearResampler struct {
	from, to int
	step     float64
	emitted  int64
	seen     int64
	tail     float64
	window   []float64
}

func newLinearResampler(from, to int) *linearResampler {
	return &linearResampler{from: from, to: to, step: float64(from) / float64(to)}
}

// push consumes in and appends every output sample it completes to dst.
func (r *linearResampler) push(in []float64, dst []int) []int {
	if len(in) == 0 {
		return dst
	}
	base := r.seen
	r.window = r.window[:0]
	if r.seen > 0 {
		r.window = append(r.window, r.tail)
		base--
	}
	r.window = append(r.window, in...)
	r.seen += int64(len(in))
	last := r.seen - 1

	for {
		pos := float64(r.emitted) * r.step
		i0 := int64(pos)
		if i0+1 > last {
			break
		}
		frac := pos - float64(i0)
		v := r.window[i0-base]*(1-frac) + r.window[i0+1-base]*frac
		dst = append(dst, quantize16(v))
		r.emitted++
	}
	r.tail = in[len(in)-1]
	return dst
}

// flush emits the outputs that fall on the final input sample.
func (r *linearResampler) flush(dst []int) []int {
	total := r.seen * int64(r.to) / int64(r.from)
	for ; r.emitted < total; r.emitted++ {
		dst = append(dst, quantize16(r.tail))
	}
	return dst
}

// resample converts a complete mono signal between rates.
func resample(in []float64, fromRate, toRate int) []int {
	rs := newLinearResampler(fromRate, toRate)
	return rs.flush(rs.push(in, []int{}))
}

func quantize16(v float64) int {
	s := math.Round(v * 32767)
	if s > 32767 {
		s = 32767
	}
	if s < -32768 {
		s = -32768
	}
	return int(s)
}

package media

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/remeh/sizedwaitgroup"
	"github.com/viterin/vek/vek32"
	"github.com/vsariola/lumix"
)

var ErrUnsupportedFormat = errors.New("unsupported file format")

// Load decodes the audio file at path, choosing the decoder by the file
// extension.
func Load(path string) (*Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return DecodeWAV(name, f)
	case ".mp3":
		return DecodeMP3(name, f)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
}

// LoadAll loads the files in parallel, at most one per CPU at a time. The
// samples are returned in the order of the paths; the errors of all the
// failed files are joined.
func LoadAll(paths ...string) ([]*Sample, error) {
	ret := make([]*Sample, len(paths))
	errs := make([]error, len(paths))
	wg := sizedwaitgroup.New(runtime.NumCPU())
	for i, p := range paths {
		wg.Add()
		go func(i int, p string) {
			defer wg.Done()
			s, err := Load(p)
			if err != nil {
				errs[i] = fmt.Errorf("cannot load %s: %w", p, err)
				return
			}
			ret[i] = s
		}(i, p)
	}
	wg.Wait()
	return ret, errors.Join(errs...)
}

// DecodeWAV decodes an integer PCM .wav file. 8-bit samples are unsigned,
// centered at 128.
func DecodeWAV(name string, r io.ReadSeeker) (*Sample, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: not a valid wav file", ErrUnsupportedFormat)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("cannot decode wav data: %w", err)
	}
	bitDepth := int(dec.BitDepth)
	if bitDepth == 0 {
		return nil, fmt.Errorf("%w: unknown bit depth", ErrUnsupportedFormat)
	}
	offset := 0
	if bitDepth == 8 {
		offset = 128
	}
	data := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		data[i] = float32(v - offset)
	}
	vek32.MulNumber_Inplace(data, float32(1/math.Pow(2, float64(bitDepth-1))))
	format := lumix.Format{SampleRate: int(dec.SampleRate), Channels: int(dec.NumChans)}
	return NewSample(name, format, data)
}

// DecodeMP3 decodes an .mp3 file. The decoder always produces 16-bit stereo.
func DecodeMP3(name string, r io.Reader) (*Sample, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("cannot decode mp3: %w", err)
	}
	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("cannot decode mp3: %w", err)
	}
	const channels = 2
	frames := len(raw) / (2 * channels)
	data := make([]float32, frames*channels)
	for i := range data {
		data[i] = float32(int16(binary.LittleEndian.Uint16(raw[2*i:])))
	}
	vek32.MulNumber_Inplace(data, 1.0/32768)
	return NewSample(name, lumix.Stereo(dec.SampleRate()), data)
}

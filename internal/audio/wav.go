package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

// WriteWAVHeader writes a 44-byte RIFF/WAV header for signed 16-bit LE mono PCM.
// Pass dataSize=0 as a placeholder when streaming; fixWAVHeader patches it.
func WriteWAVHeader(w io.Writer, sampleRate, dataSize uint32) error {
	const (
		numChannels   = 1
		bitsPerSample = 16
		audioFormat   = 1 // PCM
	)

	byteRate := sampleRate * numChannels * bitsPerSample / 8
	blockAlign := numChannels * bitsPerSample / 8

	h := struct {
		RiffID      [4]byte
		RiffSize    uint32
		WaveID      [4]byte
		FmtID       [4]byte
		FmtSize     uint32
		AudioFormat uint16
		NumChannels uint16
		SampleRate  uint32
		ByteRate    uint32
		BlockAlign  uint16
		BitsPerSamp uint16
		DataID      [4]byte
		DataSize    uint32
	}{
		RiffID:      [4]byte{'R', 'I', 'F', 'F'},
		RiffSize:    36 + dataSize,
		WaveID:      [4]byte{'W', 'A', 'V', 'E'},
		FmtID:       [4]byte{'f', 'm', 't', ' '},
		FmtSize:     16,
		AudioFormat: audioFormat,
		NumChannels: numChannels,
		SampleRate:  sampleRate,
		ByteRate:    byteRate,
		BlockAlign:  uint16(blockAlign),
		BitsPerSamp: bitsPerSample,
		DataID:      [4]byte{'d', 'a', 't', 'a'},
		DataSize:    dataSize,
	}

	return binary.Write(w, binary.LittleEndian, &h)
}

// fixWAVHeader patches the RIFF chunk size (offset 4) and data sub-chunk
// size (offset 40) from the file's actual size.
func fixWAVHeader(f *os.File) error {
	info, err := f.Stat()
	if err != nil {
		return err
	}

	fileSize := info.Size()
	if fileSize < 44 {
		return nil
	}

	dataSize := uint32(fileSize - 44)
	riffSize := uint32(fileSize - 8)

	if _, err := f.Seek(4, io.SeekStart); err != nil {
		return err
	}
	if err := binary.Write(f, binary.LittleEndian, riffSize); err != nil {
		return err
	}

	if _, err := f.Seek(40, io.SeekStart); err != nil {
		return err
	}
	return binary.Write(f, binary.LittleEndian, dataSize)
}

// wavFile streams PCM into a WAV file and finalises the header on Close.
type wavFile struct {
	f *os.File
}

func (w *wavFile) Write(p []byte) (int, error) {
	return w.f.Write(p)
}

func (w *wavFile) Close() error {
	if err := fixWAVHeader(w.f); err != nil {
		_ = w.f.Close()
		return fmt.Errorf("finalize wav header: %w", err)
	}
	return w.f.Close()
}

// Bounce renders clicks at the given timestamps (seconds from 0) into a
// complete WAV stream of length seconds.
func Bounce(w io.Writer, p ClickParams, times []float64, length float64) error {
	total := int64(math.Ceil(length * float64(p.SampleRate)))
	if total < 0 {
		total = 0
	}
	if err := WriteWAVHeader(w, uint32(p.SampleRate), uint32(total*2)); err != nil {
		return fmt.Errorf("write wav header: %w", err)
	}

	m := NewMixer(RenderClick(p))
	for _, t := range times {
		m.Add(int64(math.Round(t * float64(p.SampleRate))))
	}

	const frame = 4096
	buf := make([]float64, frame)
	var out []byte
	for pos := int64(0); pos < total; pos += frame {
		n := min(int64(frame), total-pos)
		chunk := buf[:n]
		clear(chunk)
		m.Mix(pos, chunk)
		out = PCM16(chunk, out)
		if _, err := w.Write(out); err != nil {
			return fmt.Errorf("write pcm: %w", err)
		}
	}
	return nil
}

package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/kozaktomas/biogate/internal/speech"
)

// UploadedMedia is a Source backed by data the browser already captured and
// uploaded. Missing parts behave like a denied device permission.
type UploadedMedia struct {
	Frame      []byte
	Audio      []byte
	Transcript string
	// Transcriber, when set, transcribes Audio server-side instead of
	// relying on the browser transcript.
	Transcriber speech.Transcriber
}

func (u *UploadedMedia) OpenCamera(ctx context.Context) (Camera, error) {
	if len(u.Frame) == 0 {
		return nil, fmt.Errorf("%w: no camera frame uploaded", ErrNoDevice)
	}
	return staticCamera(u.Frame), nil
}

func (u *UploadedMedia) OpenMicrophone(ctx context.Context) (Microphone, error) {
	if len(u.Audio) == 0 {
		return nil, fmt.Errorf("%w: no audio uploaded", ErrNoDevice)
	}
	return staticMicrophone(u.Audio), nil
}

func (u *UploadedMedia) StartRecognition(ctx context.Context) (SpeechRecognizer, error) {
	if u.Transcriber != nil {
		if len(u.Audio) == 0 {
			return nil, fmt.Errorf("%w: no audio to transcribe", ErrNoDevice)
		}
		return &TranscriberRecognizer{Transcriber: u.Transcriber, Clip: u.Audio}, nil
	}
	return staticRecognizer(u.Transcript), nil
}

// FileMedia is a Source reading the frame and the clip from disk.
type FileMedia struct {
	FramePath   string
	AudioPath   string
	Transcript  string
	Transcriber speech.Transcriber
}

func (f *FileMedia) OpenCamera(ctx context.Context) (Camera, error) {
	if f.FramePath == "" {
		return nil, fmt.Errorf("%w: no frame file", ErrNoDevice)
	}
	data, err := os.ReadFile(f.FramePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame: %w", err)
	}
	return staticCamera(data), nil
}

func (f *FileMedia) OpenMicrophone(ctx context.Context) (Microphone, error) {
	if f.AudioPath == "" {
		return nil, fmt.Errorf("%w: no audio file", ErrNoDevice)
	}
	file, err := os.Open(f.AudioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio: %w", err)
	}
	return NewStreamMicrophone(file), nil
}

func (f *FileMedia) StartRecognition(ctx context.Context) (SpeechRecognizer, error) {
	if f.Transcriber != nil {
		data, err := os.ReadFile(f.AudioPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read audio: %w", err)
		}
		return &TranscriberRecognizer{Transcriber: f.Transcriber, Clip: data}, nil
	}
	return staticRecognizer(f.Transcript), nil
}

type staticCamera []byte

func (c staticCamera) Frame(ctx context.Context) ([]byte, error) { return c, nil }
func (c staticCamera) Close() error                              { return nil }

type staticMicrophone []byte

func (m staticMicrophone) Record(ctx context.Context, window time.Duration) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m, nil
}
func (m staticMicrophone) Close() error { return nil }

type staticRecognizer string

func (r staticRecognizer) Result(ctx context.Context) (string, error) { return string(r), nil }
func (r staticRecognizer) Close() error                               { return nil }

// StreamMicrophone records from a live stream. Record reads until the window
// timer fires or the stream ends, whichever comes first.
type StreamMicrophone struct {
	r      io.Reader
	closer io.Closer
}

// NewStreamMicrophone wraps r. If r is an io.Closer it is closed by Close.
func NewStreamMicrophone(r io.Reader) *StreamMicrophone {
	m := &StreamMicrophone{r: r}
	if c, ok := r.(io.Closer); ok {
		m.closer = c
	}
	return m
}

type chunk struct {
	data []byte
	err  error
}

func (m *StreamMicrophone) Record(ctx context.Context, window time.Duration) ([]byte, error) {
	chunks := make(chan chunk)
	stop := make(chan struct{})
	defer close(stop)

	go func() {
		for {
			buf := make([]byte, 32*1024)
			n, err := m.r.Read(buf)
			select {
			case chunks <- chunk{data: buf[:n], err: err}:
			case <-stop:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	timer := time.NewTimer(window)
	defer timer.Stop()

	var clip []byte
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return clip, nil
		case c := <-chunks:
			clip = append(clip, c.data...)
			if errors.Is(c.err, io.EOF) {
				return clip, nil
			}
			if c.err != nil {
				return nil, fmt.Errorf("microphone read failed: %w", c.err)
			}
		}
	}
}

func (m *StreamMicrophone) Close() error {
	if m.closer != nil {
		return m.closer.Close()
	}
	return nil
}

// TranscriberRecognizer produces the transcript with a server-side transcriber.
type TranscriberRecognizer struct {
	Transcriber speech.Transcriber
	Clip        []byte
}

func (t *TranscriberRecognizer) Result(ctx context.Context) (string, error) {
	return t.Transcriber.Transcribe(ctx, t.Clip)
}

func (t *TranscriberRecognizer) Close() error { return nil }

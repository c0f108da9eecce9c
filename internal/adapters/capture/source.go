// Package capture provides local audio streams for voice sessions. Real
// microphone capture lives outside this module; these sources feed opus
// frames from a file or from silence into a pion sample track.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Murmur/internal/core"
)

var ErrAcquisition = errors.New("media acquisition failed")

const frameDuration = 20 * time.Millisecond

// opus TOC for a 20ms CELT frame of silence.
var silenceFrame = []byte{0xf8, 0xff, 0xfe}

// frameReader yields the next opus payload and its play duration.
type frameReader interface {
	next() ([]byte, time.Duration, error)
	close()
}

// Stream is a local audio stream backed by one opus sample track.
type Stream struct {
	*Meter
	id     string
	track  *webrtc.TrackLocalStaticSample
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newStream(ctx context.Context, reader frameReader) (*Stream, error) {
	id := uuid.NewString()
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		"audio", id,
	)
	if err != nil {
		reader.close()
		return nil, fmt.Errorf("%w: %v", ErrAcquisition, err)
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &Stream{Meter: NewMeter(DefaultStaleAfter), id: id, track: track, cancel: cancel}
	s.wg.Add(1)
	go s.pump(ctx, reader)
	return s, nil
}

func (s *Stream) ID() string { return s.id }

func (s *Stream) Tracks() []webrtc.TrackLocal { return []webrtc.TrackLocal{s.track} }

func (s *Stream) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Stream) pump(ctx context.Context, reader frameReader) {
	defer s.wg.Done()
	defer s.Meter.Close()
	defer reader.close()

	logger := log.With().Str("module", "capture").Str("stream", s.id).Logger()
	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("local stream stopped")
			return
		case <-ticker.C:
		}
		payload, d, err := reader.next()
		if err != nil {
			logger.Error().Err(err).Msg("local stream read failed")
			return
		}
		s.Observe(OpusEnergy(len(payload)))
		if err := s.track.WriteSample(media.Sample{Data: payload, Duration: d}); err != nil {
			logger.Debug().Err(err).Msg("write sample")
		}
	}
}

// SilenceSource produces a stream of opus silence frames.
type SilenceSource struct{}

func (SilenceSource) Acquire(ctx context.Context) (core.LocalStream, error) {
	return newStream(ctx, silenceReader{})
}

type silenceReader struct{}

func (silenceReader) next() ([]byte, time.Duration, error) { return silenceFrame, frameDuration, nil }
func (silenceReader) close()                               {}

// OggSource loops an opus-in-ogg file as the local stream.
type OggSource struct {
	Path string
}

func (s OggSource) Acquire(ctx context.Context) (core.LocalStream, error) {
	r, err := openOgg(s.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAcquisition, err)
	}
	return newStream(ctx, r)
}

type oggReader struct {
	path        string
	file        *os.File
	ogg         *oggreader.OggReader
	lastGranule uint64
}

func openOgg(path string) (*oggReader, error) {
	r := &oggReader{path: path}
	if err := r.open(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *oggReader) open() error {
	f, err := os.Open(r.path)
	if err != nil {
		return err
	}
	ogg, _, err := oggreader.NewWith(f)
	if err != nil {
		_ = f.Close()
		return err
	}
	r.file, r.ogg, r.lastGranule = f, ogg, 0
	return nil
}

func (r *oggReader) next() ([]byte, time.Duration, error) {
	page, header, err := r.ogg.ParseNextPage()
	if errors.Is(err, io.EOF) {
		_ = r.file.Close()
		if err := r.open(); err != nil {
			return nil, 0, err
		}
		page, header, err = r.ogg.ParseNextPage()
	}
	if err != nil {
		return nil, 0, err
	}
	samples := header.GranulePosition - r.lastGranule
	r.lastGranule = header.GranulePosition
	d := time.Duration(float64(samples)/48000*1000) * time.Millisecond
	if d <= 0 {
		d = frameDuration
	}
	return page, d, nil
}

func (r *oggReader) close() {
	if r.file != nil {
		_ = r.file.Close()
	}
}

// NewSource picks the file source when a path is configured.
func NewSource(audioFile string) core.MediaSource {
	if audioFile == "" {
		return SilenceSource{}
	}
	return OggSource{Path: audioFile}
}

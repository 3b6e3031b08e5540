package recorder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zaf/g711"

	"github.com/voxloop/voxloop/utils/audio"
)

type fakeSource struct {
	frames chan []byte
	err    error

	gotDeviceID string
}

func (f *fakeSource) Frames(deviceID string) (<-chan []byte, error) {
	f.gotDeviceID = deviceID
	if f.err != nil {
		return nil, f.err
	}
	return f.frames, nil
}

func TestHubRecorder_Record(t *testing.T) {
	source := &fakeSource{frames: make(chan []byte, 4)}
	source.frames <- []byte{0xff, 0xfe, 0xfd}
	source.frames <- []byte{0x7f, 0x7e}

	rec := NewHubRecorder(source, "doll-001")

	clip, err := rec.Record(context.Background(), 50*time.Millisecond)

	require.NoError(t, err)
	assert.Equal(t, "doll-001", source.gotDeviceID)

	pcm, sampleRate, err := audio.DecodeWAV(clip)
	require.NoError(t, err)
	assert.Equal(t, ulawSampleRate, sampleRate)

	// Five µ-law samples decode to five 16-bit PCM samples.
	want := append(
		g711.DecodeUlaw([]byte{0xff, 0xfe, 0xfd}),
		g711.DecodeUlaw([]byte{0x7f, 0x7e})...,
	)
	assert.Equal(t, want, pcm)
}

func TestHubRecorder_RecordRunsFullDuration(t *testing.T) {
	source := &fakeSource{frames: make(chan []byte, 1)}
	source.frames <- []byte{0xff}

	rec := NewHubRecorder(source, "doll-001")

	start := time.Now()
	_, err := rec.Record(context.Background(), 100*time.Millisecond)

	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestHubRecorder_DeviceNotConnected(t *testing.T) {
	errGone := errors.New("device doll-001 is not connected")
	rec := NewHubRecorder(&fakeSource{err: errGone}, "doll-001")

	_, err := rec.Record(context.Background(), time.Second)

	assert.Equal(t, errGone, err)
}

func TestHubRecorder_DisconnectDuringCapture(t *testing.T) {
	source := &fakeSource{frames: make(chan []byte)}
	close(source.frames)

	rec := NewHubRecorder(source, "doll-001")

	_, err := rec.Record(context.Background(), time.Second)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disconnected")
}

func TestHubRecorder_NoAudio(t *testing.T) {
	rec := NewHubRecorder(&fakeSource{frames: make(chan []byte, 1)}, "doll-001")

	_, err := rec.Record(context.Background(), 20*time.Millisecond)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no audio")
}

// Package recorder adapts a frame-streaming capture device into the
// fixed-duration clip recorder the pipeline expects. It is the stand-in for
// the browser recording script in the original setup: the device pushes raw
// µ-law frames over WebSocket and Record slices a clip out of the stream.
package recorder

import (
	"context"
	"fmt"
	"time"

	"github.com/zaf/g711"

	"github.com/voxloop/voxloop/utils/audio"
)

// G.711 is fixed at 8 kHz.
const ulawSampleRate = 8000

// DeviceSource yields µ-law audio frames streamed by a connected device.
type DeviceSource interface {
	Frames(deviceID string) (<-chan []byte, error)
}

// HubRecorder records from one device attached to a WebSocket hub.
type HubRecorder struct {
	source   DeviceSource
	deviceID string
}

func NewHubRecorder(source DeviceSource, deviceID string) *HubRecorder {
	return &HubRecorder{source: source, deviceID: deviceID}
}

// Record drains frames for exactly the requested wall-clock duration and
// returns the decoded clip in a WAV container. The wait always runs the full
// duration; there is no early cancellation and no timeout beyond it.
func (r *HubRecorder) Record(ctx context.Context, duration time.Duration) ([]byte, error) {
	frames, err := r.source.Frames(r.deviceID)
	if err != nil {
		return nil, err
	}

	timer := time.NewTimer(duration)
	defer timer.Stop()

	var pcm []byte
	for {
		select {
		case frame, ok := <-frames:
			if !ok {
				return nil, fmt.Errorf("device %s disconnected during capture", r.deviceID)
			}
			pcm = append(pcm, g711.DecodeUlaw(frame)...)
		case <-timer.C:
			if len(pcm) == 0 {
				return nil, fmt.Errorf("no audio received from device %s", r.deviceID)
			}
			return audio.EncodeWAV(pcm, ulawSampleRate)
		}
	}
}

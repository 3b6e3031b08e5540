package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeWAV_RoundTrip(t *testing.T) {
	pcm := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}

	encoded, err := EncodeWAV(pcm, 8000)
	require.NoError(t, err)

	assert.Equal(t, "RIFF", string(encoded[0:4]))
	assert.Equal(t, "WAVE", string(encoded[8:12]))
	assert.Len(t, encoded, 44+len(pcm))

	decoded, sampleRate, err := DecodeWAV(encoded)
	require.NoError(t, err)
	assert.Equal(t, pcm, decoded)
	assert.Equal(t, 8000, sampleRate)
}

func TestEncodeWAV_Errors(t *testing.T) {
	_, err := EncodeWAV(nil, 8000)
	assert.Error(t, err)

	_, err = EncodeWAV([]byte{0x01, 0x02}, 0)
	assert.Error(t, err)
}

func TestDecodeWAV_Errors(t *testing.T) {
	_, _, err := DecodeWAV([]byte("too short"))
	assert.Error(t, err)

	notWav := make([]byte, 64)
	copy(notWav, "JUNK")
	_, _, err = DecodeWAV(notWav)
	assert.Error(t, err)
}

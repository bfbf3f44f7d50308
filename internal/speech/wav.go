// Package speech holds the HTTP clients for speech-to-text and
// text-to-speech, plus the PCM-to-WAV transcoder the transcriber needs.
package speech

import "encoding/binary"

// WAVFormat describes raw PCM audio for WAV encoding.
type WAVFormat struct {
	Channels int
	Rate     int
	Depth    int
}

const wavHeaderSize = 44

// EncodeWAV prepends a RIFF/WAVE header to raw PCM data.
func EncodeWAV(format WAVFormat, data []byte) []byte {
	if format.Channels == 0 {
		format.Channels = 2
	}
	if format.Rate == 0 {
		format.Rate = 16000
	}
	if format.Depth == 0 {
		format.Depth = 16
	}

	blockAlign := (format.Channels * format.Depth) >> 3
	byteRate := blockAlign * format.Rate
	dataSize := len(data)

	out := make([]byte, wavHeaderSize+len(data))

	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+dataSize))
	copy(out[8:12], "WAVE")

	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16) // PCM subchunk size
	binary.LittleEndian.PutUint16(out[20:22], 1)  // PCM format
	binary.LittleEndian.PutUint16(out[22:24], uint16(format.Channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(format.Rate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:36], uint16(format.Depth))

	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(dataSize))

	copy(out[wavHeaderSize:], data)
	return out
}

package llm

import (
	"encoding/binary"
	"regexp"
	"strconv"
	"strings"
)

var pcmBitsRe = regexp.MustCompile(`audio/L(\d+)`)

type pcmFormat struct {
	bitsPerSample int
	rate          int
}

// parsePCMMimeType reads bits per sample and rate from e.g. "audio/L16;codec=pcm;rate=24000".
func parsePCMMimeType(mimeType string) pcmFormat {
	f := pcmFormat{bitsPerSample: 16, rate: 24000}
	for _, part := range strings.Split(mimeType, ";") {
		part = strings.TrimSpace(part)
		if v, ok := strings.CutPrefix(strings.ToLower(part), "rate="); ok {
			if rate, err := strconv.Atoi(v); err == nil && rate > 0 {
				f.rate = rate
			}
			continue
		}
		if m := pcmBitsRe.FindStringSubmatch(part); len(m) > 1 {
			if bits, err := strconv.Atoi(m[1]); err == nil && bits > 0 {
				f.bitsPerSample = bits
			}
		}
	}
	return f
}

// convertToWAV prepends a mono RIFF/WAVE header to raw little-endian PCM.
func convertToWAV(pcm []byte, mimeType string) []byte {
	f := parsePCMMimeType(mimeType)
	const channels = 1
	blockAlign := channels * f.bitsPerSample / 8
	byteRate := f.rate * blockAlign

	out := make([]byte, 44, 44+len(pcm))
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+len(pcm)))
	copy(out[8:12], "WAVE")
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(out[22:24], channels)
	binary.LittleEndian.PutUint32(out[24:28], uint32(f.rate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:36], uint16(f.bitsPerSample))
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(len(pcm)))
	return append(out, pcm...)
}

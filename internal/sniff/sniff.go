// Package sniff detects the container format of synthesized audio from its
// leading magic bytes.
package sniff

// Format is a detected audio container.
type Format struct {
	MIME  string
	Label string
}

var (
	formatMP3 = Format{MIME: "audio/mpeg", Label: "mp3"}
	formatWAV = Format{MIME: "audio/wav", Label: "wav"}
	formatOGG = Format{MIME: "audio/ogg", Label: "ogg"}
)

// Sniff inspects the first bytes of data and returns the container format.
// Unknown headers default to MP3, the speech provider's usual output. The
// default is a heuristic: callers uploading the bytes must tolerate a
// provider-side rejection as a non-fatal error for that turn.
func Sniff(data []byte) Format {
	if len(data) < 4 {
		return formatMP3
	}

	// MP3 frame sync: 0xFF followed by the top 3 bits of the next byte set.
	if data[0] == 0xFF && data[1]&0xE0 == 0xE0 {
		return formatMP3
	}

	// ID3 tag header.
	if data[0] == 'I' && data[1] == 'D' && data[2] == '3' {
		return formatMP3
	}

	// RIFF container (WAV).
	if data[0] == 'R' && data[1] == 'I' && data[2] == 'F' && data[3] == 'F' {
		return formatWAV
	}

	// Ogg capture pattern.
	if data[0] == 'O' && data[1] == 'g' && data[2] == 'g' && data[3] == 'S' {
		return formatOGG
	}

	return formatMP3
}

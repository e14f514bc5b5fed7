package voiceclient

import (
	"strconv"
	"strings"
)

// Parts is the multipart/form-data body split around the WAV payload.
// The payload itself is never copied: it is streamed between Head and Mid.
type Parts struct {
	Boundary string
	Head     []byte // opening boundary and the audio part headers
	Mid      []byte // CRLF ending the audio part, then the text fields
	Tail     []byte // closing boundary
}

// Boundary derives the form boundary from the monotonic clock.
func Boundary(nowMs int64) string {
	return "----Boundary" + strconv.FormatInt(nowMs, 10)
}

// BuildParts assembles the three ASCII regions. The session_id field is
// present iff sessionID is non-empty; use_rag is always "true".
func BuildParts(boundary, sessionID string) Parts {
	delim := "--" + boundary + "\r\n"

	var head strings.Builder
	head.WriteString(delim)
	head.WriteString(`Content-Disposition: form-data; name="audio"; filename="recording.wav"` + "\r\n")
	head.WriteString("Content-Type: audio/wav\r\n\r\n")

	var mid strings.Builder
	mid.WriteString("\r\n")
	if sessionID != "" {
		mid.WriteString(delim)
		mid.WriteString(`Content-Disposition: form-data; name="session_id"` + "\r\n\r\n")
		mid.WriteString(sessionID + "\r\n")
	}
	mid.WriteString(delim)
	mid.WriteString(`Content-Disposition: form-data; name="use_rag"` + "\r\n\r\n")
	mid.WriteString("true\r\n")

	return Parts{
		Boundary: boundary,
		Head:     []byte(head.String()),
		Mid:      []byte(mid.String()),
		Tail:     []byte("--" + boundary + "--\r\n"),
	}
}

// ContentLength is |Head| + wavSize + |Mid| + |Tail|.
func (p Parts) ContentLength(wavSize int) int {
	return len(p.Head) + wavSize + len(p.Mid) + len(p.Tail)
}

// ContentType is the request Content-Type header value.
func (p Parts) ContentType() string {
	return "multipart/form-data; boundary=" + p.Boundary
}

package downloader

import "regexp"

// sniffLen is how many leading bytes are kept for the format check.
const sniffLen = 64

// A .torrent file is a bencoded dictionary whose first key is a string,
// so it starts with "d<len>:". HTML error pages and challenge pages do not.
var torrentSignature = regexp.MustCompile(`^d[0-9]{1,4}:[a-z]`)

// LooksLikeTorrent reports whether head is the start of a torrent file.
func LooksLikeTorrent(head []byte) bool {
	return torrentSignature.Match(head)
}

// headBuffer records the first sniffLen bytes written to it.
type headBuffer struct {
	buf []byte
}

func (h *headBuffer) Write(p []byte) (int, error) {
	if room := sniffLen - len(h.buf); room > 0 {
		if len(p) < room {
			room = len(p)
		}
		h.buf = append(h.buf, p[:room]...)
	}
	return len(p), nil
}

func (h *headBuffer) Bytes() []byte { return h.buf }

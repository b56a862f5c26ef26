package capture

import (
	"bytes"
	"errors"
)

var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}
)

// errTruncatedJPEG is returned by SplitJPEG when input ends inside a frame.
var errTruncatedJPEG = errors.New("truncated jpeg frame")

// SplitJPEG is a bufio.SplitFunc yielding concatenated JPEG images, as written
// by ffmpeg's image2pipe muxer. Bytes before a start-of-image marker are
// discarded.
func SplitJPEG(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := bytes.Index(data, jpegSOI)
	if start < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		// keep a trailing 0xFF that may begin a marker
		if n := len(data); n > 0 && data[n-1] == 0xFF {
			return n - 1, nil, nil
		}
		return len(data), nil, nil
	}

	end := bytes.Index(data[start+len(jpegSOI):], jpegEOI)
	if end < 0 {
		if atEOF {
			return len(data), nil, errTruncatedJPEG
		}
		if start > 0 {
			return start, nil, nil
		}
		return 0, nil, nil
	}

	stop := start + len(jpegSOI) + end + len(jpegEOI)
	return stop, data[start:stop], nil
}

package parser

import "github.com/corewire/httpcore/pkg/errors"

// parseChunkLen parses a chunk-length line's hex digits (the part before
// any ';' extension, which this engine rejects per spec section 4.B).
func parseChunkLen(line []byte) (int64, error) {
	for _, c := range line {
		if c == ';' {
			return 0, errors.NewParserError("chunk extensions are not supported")
		}
	}
	if len(line) == 0 {
		return 0, errors.NewParserError("empty chunk-size line")
	}

	var n int64
	for _, c := range line {
		var digit int64
		switch {
		case c >= '0' && c <= '9':
			digit = int64(c - '0')
		case c >= 'a' && c <= 'f':
			digit = int64(c-'a') + 10
		case c >= 'A' && c <= 'F':
			digit = int64(c-'A') + 10
		default:
			return 0, errors.NewParserError("invalid hex digit in chunk-size line")
		}
		n = n<<4 | digit
	}
	return n, nil
}

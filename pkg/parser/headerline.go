package parser

import "github.com/corewire/httpcore/pkg/errors"

// isTChar reports whether c is a valid RFC 7230 token character.
func isTChar(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	}
	switch c {
	case '!', '#', '$', '%', '&', '\'', '*', '+', '-', '.', '^', '_', '`', '|', '~':
		return true
	}
	return false
}

func isOWS(c byte) bool {
	return c == ' ' || c == '\t'
}

// isFieldVChar reports whether c is valid inside a header field value:
// VCHAR (0x21-0x7E) or obs-text (0x80-0xFF).
func isFieldVChar(c byte) bool {
	return (c >= 0x21 && c <= 0x7E) || c >= 0x80
}

// parseHeaderLine splits "NAME: OWS VALUE OWS" (line excludes the
// terminating CRLF). Whitespace between the name and the colon is
// rejected per spec section 4.B.
func parseHeaderLine(line []byte) (name, value string, err error) {
	colon := -1
	for i, c := range line {
		if c == ':' {
			colon = i
			break
		}
		if !isTChar(c) {
			return "", "", errors.NewParserErrorStatus("malformed header field name", 400)
		}
	}
	if colon <= 0 {
		return "", "", errors.NewParserErrorStatus("missing ':' in header line", 400)
	}

	nameBytes := line[:colon]
	rest := line[colon+1:]

	start := 0
	for start < len(rest) && isOWS(rest[start]) {
		start++
	}
	end := len(rest)
	for end > start && isOWS(rest[end-1]) {
		end--
	}
	valueBytes := rest[start:end]
	for _, c := range valueBytes {
		if !isFieldVChar(c) && !isOWS(c) {
			return "", "", errors.NewParserErrorStatus("invalid character in header value", 400)
		}
	}

	return string(nameBytes), string(valueBytes), nil
}

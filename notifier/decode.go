package notifier

import (
	"mime"
	"unicode/utf8"

	"github.com/emersion/go-message/charset"
)

// headerDecodeFallback is returned when no decoding step produces valid text.
const headerDecodeFallback = "[Unsupported encoding]"

// decodeHeader decodes an RFC 2047 header value through an ordered, total
// fallback chain: declared charset, then UTF-8, then Latin-1, then a fixed
// placeholder.  It never fails.
func decodeHeader(raw string) string {
	if raw == "" {
		return ""
	}

	dec := mime.WordDecoder{CharsetReader: charset.Reader}
	if decoded, err := dec.DecodeHeader(raw); err == nil && utf8.ValidString(decoded) {
		return decoded
	}

	if utf8.ValidString(raw) {
		return raw
	}

	if decoded := latin1String(raw); utf8.ValidString(decoded) {
		return decoded
	}

	return headerDecodeFallback
}

// latin1String reinterprets each byte as a Latin-1 code point.
func latin1String(raw string) string {
	runes := make([]rune, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		runes = append(runes, rune(raw[i]))
	}
	return string(runes)
}

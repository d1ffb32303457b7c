package wire

import (
	"encoding/base64"
	"strings"
)

// FieldSeparator delimits fields within a single record.
const FieldSeparator = ";"

// MessageSeparator delimits transactions inside a container body. The
// sequence was chosen to be vanishingly unlikely in free-text content.
const MessageSeparator = "|##|"

// separatorReplacement substitutes embedded message separators in field
// values. The substitution is one-way: parsed values keep the replacement.
const separatorReplacement = "|#~|"

var envelopeEncoder = strings.NewReplacer("+", "-", "/", "_", "=", ".")

var envelopeDecoder = strings.NewReplacer("-", "+", "_", "/", ".", "=")

// EncodeEnvelope wraps arbitrary bytes in the transport envelope: standard
// base64 with the three form-unsafe characters substituted.
func EncodeEnvelope(plain []byte) string {
	return envelopeEncoder.Replace(base64.StdEncoding.EncodeToString(plain))
}

// DecodeEnvelope reverses EncodeEnvelope.
func DecodeEnvelope(text string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(envelopeDecoder.Replace(text))
}

// EscapeSeparator rewrites embedded message separators so a field value can
// never split a container body. The rewrite is lossy and intentionally never
// undone after parsing.
func EscapeSeparator(value string) string {
	return strings.ReplaceAll(value, MessageSeparator, separatorReplacement)
}

// EncodeField quotes a field value only when it contains the separator, a
// double quote, or a newline. Internal quotes are doubled.
func EncodeField(value, separator string) string {
	if !strings.Contains(value, separator) &&
		!strings.Contains(value, `"`) &&
		!strings.ContainsAny(value, "\r\n") {
		return value
	}
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

// JoinRecord emits a single delimited record, encoding each field as needed.
// The output round-trips through SplitRecord.
func JoinRecord(fields []string, separator string) string {
	encoded := make([]string, len(fields))
	for i, field := range fields {
		encoded[i] = EncodeField(field, separator)
	}
	return strings.Join(encoded, separator)
}

// SplitRecord parses one delimited record. Double-quoted fields may contain
// the separator, doubled double quotes, and embedded newlines. A record
// ending with the separator yields an empty trailing field.
func SplitRecord(line, separator string) []string {
	if separator == "" {
		separator = FieldSeparator
	}
	var fields []string
	var current strings.Builder
	inQuotes := false

	for i := 0; i < len(line); {
		if inQuotes {
			if line[i] == '"' {
				if i+1 < len(line) && line[i+1] == '"' {
					current.WriteByte('"')
					i += 2
					continue
				}
				inQuotes = false
				i++
				continue
			}
			current.WriteByte(line[i])
			i++
			continue
		}

		if line[i] == '"' && current.Len() == 0 {
			inQuotes = true
			i++
			continue
		}
		if strings.HasPrefix(line[i:], separator) {
			fields = append(fields, current.String())
			current.Reset()
			i += len(separator)
			continue
		}
		current.WriteByte(line[i])
		i++
	}

	fields = append(fields, current.String())
	return fields
}

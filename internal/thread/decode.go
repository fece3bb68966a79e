package thread

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/klauspost/compress/zstd"
)

var (
	// ErrPayloadCorrupt reports a payload that is recognizably compressed
	// but cannot be decompressed. Per-record: the row is skipped.
	ErrPayloadCorrupt = errors.New("payload corrupt")

	// ErrSchemaUnrecognized reports a payload that no known schema
	// definition parses. Per-record: the row is skipped.
	ErrSchemaUnrecognized = errors.New("schema unrecognized")

	// ErrSchemaMismatch is returned by an individual schema parser when the
	// payload does not structurally match that definition; Decode then
	// falls back to the next older definition.
	ErrSchemaMismatch = errors.New("schema mismatch")
)

// zstdMagic is the zstd frame signature (RFC 8878).
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

var zstdDecoder = func() *zstd.Decoder {
	d, err := zstd.NewReader(nil)
	if err != nil {
		panic(fmt.Sprintf("construct zstd decoder: %v", err))
	}
	return d
}()

// schemaChain lists the known schema parsers, newest first.
var schemaChain = []func(payload []byte, opts Options) (*Conversation, error){
	parseCurrent,
	parseLegacy,
}

// Decode turns one stored row into a normalized conversation. Pure
// transform: no side effects, deterministic for identical inputs.
func Decode(id, dataType string, data []byte, opts Options) (*Conversation, error) {
	payload, err := decompressPayload(dataType, data)
	if err != nil {
		return nil, err
	}

	for _, parse := range schemaChain {
		conv, err := parse(payload, opts)
		if err == nil {
			conv.Key = id
			return conv, nil
		}
		if !errors.Is(err, ErrSchemaMismatch) {
			return nil, err
		}
	}
	return nil, ErrSchemaUnrecognized
}

// decompressPayload detects a compressed payload by its container signature
// (or by the stored type hint) and decompresses it; anything else passes
// through unchanged.
func decompressPayload(dataType string, data []byte) ([]byte, error) {
	if !bytes.HasPrefix(data, zstdMagic) && dataType != "zstd" {
		return data, nil
	}
	out, err := zstdDecoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: zstd: %v", ErrPayloadCorrupt, err)
	}
	return out, nil
}

// taggedVariant unpacks an externally tagged value: either a bare string
// (unit variant) or an object with exactly one key. Tags are matched
// case-insensitively because historical writers disagreed on casing.
func taggedVariant(raw json.RawMessage) (string, json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", nil, err
		}
		return strings.ToLower(s), nil, nil
	}

	var m map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &m); err != nil {
		return "", nil, err
	}
	if len(m) != 1 {
		return "", nil, fmt.Errorf("expected single-variant object, got %d keys", len(m))
	}
	for k, v := range m {
		return strings.ToLower(k), v, nil
	}
	return "", nil, nil // unreachable
}

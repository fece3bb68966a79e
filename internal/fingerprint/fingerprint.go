// Package fingerprint computes a stable digest over a conversation's
// semantic content. Two conversations with equal fingerprints are treated as
// identical for sync purposes.
package fingerprint

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"

	"github.com/Napageneral/zedsync/internal/thread"
)

// Fingerprint is a SHA-256 digest rendered as "sha256:<hex>".
type Fingerprint string

func (f Fingerprint) String() string { return string(f) }

// domain separates conversation fingerprints from any other sha256 use.
const domain = "zedsync/conversation/v1"

// New digests the semantically significant fields: title, model, and the
// ordered turn sequence (role plus each segment's kind, header, text, and
// image bytes). Timestamps, git provenance, and usage counters are excluded:
// they drift without representing a content change. Every field is
// length-prefixed, so no two distinct inputs share an encoding.
func New(conv *thread.Conversation) Fingerprint {
	h := sha256.New()
	writeField(h, []byte(domain))
	writeField(h, []byte(conv.Title))
	writeField(h, []byte(conv.Model))

	writeLen(h, len(conv.Turns))
	for _, turn := range conv.Turns {
		writeField(h, []byte(turn.Role))
		writeLen(h, len(turn.Segments))
		for _, seg := range turn.Segments {
			writeField(h, []byte(seg.Kind))
			writeField(h, []byte(seg.Header))
			writeField(h, []byte(seg.Text))
			writeField(h, seg.Image)
		}
	}
	return Fingerprint("sha256:" + hex.EncodeToString(h.Sum(nil)))
}

func writeLen(h hash.Hash, n int) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(n))
	h.Write(buf[:])
}

func writeField(h hash.Hash, b []byte) {
	writeLen(h, len(b))
	h.Write(b)
}

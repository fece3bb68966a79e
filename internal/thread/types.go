// Package thread decodes raw stored payloads into normalized conversations.
// Decoding tries the current thread document schema first and falls back to
// each older known schema; every parser is a pure function.
package thread

import "time"

// Role tags one conversation turn. The set is closed.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// SegmentKind discriminates the body pieces of a turn.
type SegmentKind string

const (
	SegmentText  SegmentKind = "text"
	SegmentCode  SegmentKind = "code"
	SegmentImage SegmentKind = "image"
)

// Segment is one body piece of a turn: prose, a fenced context block, or an
// embedded image (already base64-decoded).
type Segment struct {
	Kind   SegmentKind
	Text   string // text and code content
	Header string // code fence info string, code only
	Image  []byte // raw image bytes, image only
}

// Turn is one message in reading order.
type Turn struct {
	Role     Role
	Segments []Segment
}

// GitContext is version-control provenance captured when the conversation
// started. Pass-through metadata: nothing downstream interprets it.
type GitContext struct {
	Path   string
	Remote string
	Branch string
	Commit string
}

// Conversation is the normalized in-memory form of one thread. It exists
// only for the duration of a run and is discarded after rendering.
type Conversation struct {
	Key       string
	Title     string
	Model     string
	UpdatedAt time.Time
	Turns     []Turn
	Git       *GitContext
}

// Options control normalization.
type Options struct {
	// IncludeContext keeps @-mention context blocks (file, symbol,
	// selection, ...) in the normalized turns.
	IncludeContext bool
}

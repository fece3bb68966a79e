package thread

import (
	"encoding/json"
	"fmt"
)

// legacyDoc is the v0.1.0/v0.2.0 thread document: role-tagged messages made
// of typed segments, with the title stored under "summary".
type legacyDoc struct {
	Version   *string             `json:"version"`
	Summary   *string             `json:"summary"`
	UpdatedAt string              `json:"updated_at"`
	Messages  []legacyMessage     `json:"messages"`
	Model     *modelDoc           `json:"model"`
	Snapshot  *projectSnapshotDoc `json:"initial_project_snapshot"`
}

type legacyMessage struct {
	Role     string          `json:"role"`
	Segments []legacySegment `json:"segments"`
}

type legacySegment struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func parseLegacy(payload []byte, _ Options) (*Conversation, error) {
	var doc legacyDoc
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	if doc.Version == nil || doc.Summary == nil {
		return nil, fmt.Errorf("%w: missing version or summary", ErrSchemaMismatch)
	}
	updatedAt, err := parseTimestamp(doc.UpdatedAt)
	if err != nil {
		return nil, err
	}

	conv := &Conversation{
		Title:     *doc.Summary,
		Model:     doc.Model.String(),
		UpdatedAt: updatedAt,
		Git:       doc.Snapshot.gitContext(),
	}

	for _, msg := range doc.Messages {
		role, err := legacyRole(msg.Role)
		if err != nil {
			return nil, err
		}
		turn := Turn{Role: role}
		for _, seg := range msg.Segments {
			// Thinking and redacted-thinking segments are not content.
			if seg.Type == "text" {
				turn.Segments = append(turn.Segments, Segment{Kind: SegmentText, Text: seg.Text})
			}
		}
		conv.Turns = append(conv.Turns, turn)
	}
	return conv, nil
}

func legacyRole(role string) (Role, error) {
	switch role {
	case "user":
		return RoleUser, nil
	case "assistant":
		return RoleAssistant, nil
	case "system", "tool":
		return RoleSystem, nil
	default:
		return "", fmt.Errorf("%w: unknown role %q", ErrSchemaMismatch, role)
	}
}

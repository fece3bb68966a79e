package thread

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// currentDoc is the current thread document (v0.3.x). Messages are
// externally tagged: {"user": {...}}, {"agent": {...}}, or "resume".
type currentDoc struct {
	Title     *string             `json:"title"`
	Messages  []json.RawMessage   `json:"messages"`
	UpdatedAt string              `json:"updated_at"`
	Model     *modelDoc           `json:"model"`
	Snapshot  *projectSnapshotDoc `json:"initial_project_snapshot"`
}

type modelDoc struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

func (m *modelDoc) String() string {
	if m == nil {
		return ""
	}
	return m.Provider + "/" + m.Model
}

type projectSnapshotDoc struct {
	WorktreeSnapshots []struct {
		WorktreePath string `json:"worktree_path"`
		GitState     *struct {
			RemoteURL     string `json:"remote_url"`
			HeadSHA       string `json:"head_sha"`
			CurrentBranch string `json:"current_branch"`
		} `json:"git_state"`
	} `json:"worktree_snapshots"`
}

// gitContext extracts provenance from the first worktree snapshot. The
// commit is abbreviated to 6 characters.
func (p *projectSnapshotDoc) gitContext() *GitContext {
	if p == nil || len(p.WorktreeSnapshots) == 0 {
		return nil
	}
	wt := p.WorktreeSnapshots[0]
	ctx := &GitContext{Path: wt.WorktreePath}
	if gs := wt.GitState; gs != nil {
		ctx.Remote = gs.RemoteURL
		ctx.Branch = gs.CurrentBranch
		if len(gs.HeadSHA) > 6 {
			ctx.Commit = gs.HeadSHA[:6]
		} else {
			ctx.Commit = gs.HeadSHA
		}
	}
	return ctx
}

func parseTimestamp(value string) (time.Time, error) {
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: updated_at: %v", ErrSchemaMismatch, err)
	}
	return ts.UTC(), nil
}

func parseCurrent(payload []byte, opts Options) (*Conversation, error) {
	var doc currentDoc
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	if doc.Title == nil || doc.Messages == nil {
		return nil, fmt.Errorf("%w: missing title or messages", ErrSchemaMismatch)
	}
	updatedAt, err := parseTimestamp(doc.UpdatedAt)
	if err != nil {
		return nil, err
	}

	conv := &Conversation{
		Title:     *doc.Title,
		Model:     doc.Model.String(),
		UpdatedAt: updatedAt,
		Git:       doc.Snapshot.gitContext(),
	}

	for _, raw := range doc.Messages {
		tag, body, err := taggedVariant(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: message: %v", ErrSchemaMismatch, err)
		}
		switch tag {
		case "user":
			turn, err := parseUserMessage(body, opts)
			if err != nil {
				return nil, err
			}
			conv.Turns = append(conv.Turns, turn)
		case "agent":
			turn, err := parseAgentMessage(body)
			if err != nil {
				return nil, err
			}
			conv.Turns = append(conv.Turns, turn)
		case "resume":
			// Synthetic "continue where you left off" marker; not content.
		default:
			return nil, fmt.Errorf("%w: unknown message tag %q", ErrSchemaMismatch, tag)
		}
	}
	return conv, nil
}

func parseUserMessage(body json.RawMessage, opts Options) (Turn, error) {
	var msg struct {
		Content []json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(body, &msg); err != nil {
		return Turn{}, fmt.Errorf("%w: user message: %v", ErrSchemaMismatch, err)
	}

	turn := Turn{Role: RoleUser}
	for _, raw := range msg.Content {
		tag, inner, err := taggedVariant(raw)
		if err != nil {
			return Turn{}, fmt.Errorf("%w: user content: %v", ErrSchemaMismatch, err)
		}
		switch tag {
		case "text":
			var text string
			if err := json.Unmarshal(inner, &text); err != nil {
				return Turn{}, fmt.Errorf("%w: text content: %v", ErrSchemaMismatch, err)
			}
			turn.Segments = append(turn.Segments, Segment{Kind: SegmentText, Text: text})
		case "mention":
			if !opts.IncludeContext {
				continue
			}
			seg, err := parseMention(inner)
			if err != nil {
				return Turn{}, err
			}
			turn.Segments = append(turn.Segments, seg)
		case "image":
			if seg, ok := parseImage(inner); ok {
				turn.Segments = append(turn.Segments, seg)
			}
		default:
			return Turn{}, fmt.Errorf("%w: unknown user content tag %q", ErrSchemaMismatch, tag)
		}
	}
	return turn, nil
}

func parseAgentMessage(body json.RawMessage) (Turn, error) {
	var msg struct {
		Content []json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(body, &msg); err != nil {
		return Turn{}, fmt.Errorf("%w: agent message: %v", ErrSchemaMismatch, err)
	}

	turn := Turn{Role: RoleAssistant}
	for _, raw := range msg.Content {
		tag, inner, err := taggedVariant(raw)
		if err != nil {
			return Turn{}, fmt.Errorf("%w: agent content: %v", ErrSchemaMismatch, err)
		}
		switch tag {
		case "text":
			var text string
			if err := json.Unmarshal(inner, &text); err != nil {
				return Turn{}, fmt.Errorf("%w: agent text: %v", ErrSchemaMismatch, err)
			}
			turn.Segments = append(turn.Segments, Segment{Kind: SegmentText, Text: text})
		case "thinking", "redactedthinking", "tooluse":
			// Reasoning and tool plumbing are not conversation content.
		default:
			return Turn{}, fmt.Errorf("%w: unknown agent content tag %q", ErrSchemaMismatch, tag)
		}
	}
	return turn, nil
}

// parseMention turns an @-mention into a fenced code segment whose info
// string carries the language (from the file extension) and the location.
func parseMention(body json.RawMessage) (Segment, error) {
	var mention struct {
		URI     json.RawMessage `json:"uri"`
		Content string          `json:"content"`
	}
	if err := json.Unmarshal(body, &mention); err != nil {
		return Segment{}, fmt.Errorf("%w: mention: %v", ErrSchemaMismatch, err)
	}
	return Segment{
		Kind:   SegmentCode,
		Header: mentionHeader(mention.URI),
		Text:   mention.Content,
	}, nil
}

// mentionHeader derives the fence info string from a mention URI. Unknown
// mention kinds degrade to their tag name rather than failing the parse:
// new mention kinds must not knock a whole thread back to the legacy schema.
func mentionHeader(rawURI json.RawMessage) string {
	tag, body, err := taggedVariant(rawURI)
	if err != nil {
		return ""
	}

	var fields struct {
		AbsPath string `json:"abs_path"`
		Path    string `json:"path"`
		URL     string `json:"url"`
		Name    string `json:"name"`
	}
	if body != nil {
		_ = json.Unmarshal(body, &fields)
	}

	var location string
	switch tag {
	case "file", "directory", "symbol", "selection":
		location = fields.AbsPath
	case "textthread":
		location = fields.Path
	case "fetch":
		location = fields.URL
	case "thread", "rule":
		location = fields.Name
	case "pastedimage":
		location = "image"
	case "diagnostics":
		location = "diagnostics"
	case "terminalselection":
		location = "terminal"
	default:
		location = tag
	}

	lang := strings.TrimPrefix(filepath.Ext(location), ".")
	switch tag {
	case "directory", "fetch", "thread", "rule", "pastedimage", "diagnostics", "terminalselection":
		lang = ""
	}

	switch {
	case lang != "" && location != "":
		return lang + " " + location
	case lang != "":
		return lang
	default:
		return location
	}
}

// parseImage decodes a base64 image payload. Undecodable images are dropped
// rather than failing the record.
func parseImage(body json.RawMessage) (Segment, bool) {
	var img struct {
		Source string `json:"source"`
	}
	if err := json.Unmarshal(body, &img); err != nil || img.Source == "" {
		return Segment{}, false
	}
	data, err := base64.StdEncoding.DecodeString(img.Source)
	if err != nil {
		return Segment{}, false
	}
	return Segment{Kind: SegmentImage, Image: data}, true
}

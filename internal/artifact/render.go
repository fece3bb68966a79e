package artifact

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Napageneral/zedsync/internal/fingerprint"
	"github.com/Napageneral/zedsync/internal/thread"
)

// Asset is an embedded binary (image) extracted from a conversation,
// destined for the assets/ subdirectory.
type Asset struct {
	Name string
	Data []byte
}

// Render serializes a conversation into its artifact bytes plus any embedded
// assets. Deterministic: identical inputs always produce identical output,
// which is what makes fingerprint-based diffing trustworthy.
func Render(conv *thread.Conversation, identifier string, fp fingerprint.Fingerprint, tags []string) ([]byte, []Asset, error) {
	var buf bytes.Buffer

	h := Header{
		Title:       conv.Title,
		ID:          conv.Key,
		Fingerprint: string(fp),
		Updated:     conv.UpdatedAt.UTC().Format(time.RFC3339Nano),
		Model:       conv.Model,
		Tags:        tags,
		Git:         gitInfo(conv.Git),
	}

	buf.WriteString("---\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&h); err != nil {
		return nil, nil, fmt.Errorf("encode header: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, nil, fmt.Errorf("encode header: %w", err)
	}
	buf.WriteString("---\n\n")

	var assets []Asset
	for _, turn := range conv.Turns {
		buf.WriteString("## ")
		buf.WriteString(roleHeading(turn.Role))
		buf.WriteString("\n\n")

		for _, seg := range turn.Segments {
			switch seg.Kind {
			case thread.SegmentText:
				buf.WriteString(seg.Text)
				buf.WriteByte('\n')
			case thread.SegmentCode:
				writeFence(&buf, seg)
			case thread.SegmentImage:
				asset, ok := imageAsset(identifier, seg.Image)
				if !ok {
					continue
				}
				fmt.Fprintf(&buf, "![image](./assets/%s)\n", asset.Name)
				assets = append(assets, asset)
			}
		}
		buf.WriteByte('\n')
	}

	return buf.Bytes(), assets, nil
}

func gitInfo(g *thread.GitContext) *GitInfo {
	if g == nil {
		return nil
	}
	return &GitInfo{Path: g.Path, Remote: g.Remote, Branch: g.Branch, Commit: g.Commit}
}

func roleHeading(role thread.Role) string {
	switch role {
	case thread.RoleUser:
		return "User"
	case thread.RoleAssistant:
		return "Assistant"
	default:
		return "System"
	}
}

// writeFence wraps context in a fenced block unless it already carries one.
func writeFence(buf *bytes.Buffer, seg thread.Segment) {
	if strings.HasPrefix(strings.TrimLeft(seg.Text, " \t\r\n"), "```") {
		buf.WriteString(seg.Text)
		buf.WriteByte('\n')
		return
	}
	buf.WriteString("```")
	buf.WriteString(seg.Header)
	buf.WriteByte('\n')
	buf.WriteString(seg.Text)
	buf.WriteString("\n```\n")
}

// imageAsset names an embedded image {identifier}.{hash16}.{ext}: tied to
// the owning conversation, content-addressed, collision-resistant.
func imageAsset(identifier string, data []byte) (Asset, bool) {
	if len(data) == 0 {
		return Asset{}, false
	}
	sum := sha256.Sum256(data)
	name := fmt.Sprintf("%s.%s.%s", identifier, hex.EncodeToString(sum[:8]), sniffExtension(data))
	return Asset{Name: name, Data: data}, true
}

func sniffExtension(data []byte) string {
	switch http.DetectContentType(data) {
	case "image/png":
		return "png"
	case "image/jpeg":
		return "jpg"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	default:
		return "bin"
	}
}

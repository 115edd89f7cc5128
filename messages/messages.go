// Package messages converts an assembled context into chat message lists
// for prompt construction. The conversion is purely positional: sections
// keep their head, middle, tail order and each bucket maps to a chat role.
package messages

import (
	"strings"

	"github.com/BaSui01/contextfit/types"
)

// Role is the chat role of a converted message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat message derived from an assembled context.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// DefaultRoles maps the canonical buckets to chat roles: instructions and
// retrieved knowledge ride along as system context, the task and the
// conversation speak as the user, examples and working notes as the
// assistant.
func DefaultRoles() map[types.BucketID]Role {
	return map[types.BucketID]Role{
		types.BucketSystem:     RoleSystem,
		types.BucketTask:       RoleUser,
		types.BucketTools:      RoleSystem,
		types.BucketHistory:    RoleUser,
		types.BucketMemory:     RoleSystem,
		types.BucketRAG:        RoleSystem,
		types.BucketFewshot:    RoleAssistant,
		types.BucketScratchpad: RoleAssistant,
	}
}

type config struct {
	roles         map[types.BucketID]Role
	placementTags bool
}

// Option configures a conversion.
type Option func(*config)

// WithRoles overlays custom bucket-to-role entries on the default mapping.
func WithRoles(roles map[types.BucketID]Role) Option {
	return func(c *config) {
		for id, role := range roles {
			c.roles[id] = role
		}
	}
}

// WithPlacementTags prefixes every message with its position group, e.g.
// "[head] You are ...".
func WithPlacementTags() Option {
	return func(c *config) { c.placementTags = true }
}

func newConfig(opts []Option) *config {
	c := &config{roles: DefaultRoles()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FromContext converts the assembled context into one message per rendered
// section, in head, middle, tail order. Buckets without a mapping default
// to the system role.
func FromContext(a *types.AssembledContext, opts ...Option) []Message {
	if a == nil || len(a.Sections) == 0 {
		return nil
	}
	cfg := newConfig(opts)
	groups := placementGroups(a)

	var msgs []Message
	for _, sec := range a.Sections {
		content := strings.TrimSpace(sec.Text)
		if content == "" {
			continue
		}
		if cfg.placementTags {
			content = "[" + groups[sec.Bucket] + "] " + content
		}
		msgs = append(msgs, Message{Role: cfg.role(sec.Bucket), Content: content})
	}
	return msgs
}

// Merged converts the assembled context into at most two messages: all
// system- and assistant-roled sections folded into one system message,
// followed by the user-roled sections as one user message. This is the
// most widely compatible shape.
func Merged(a *types.AssembledContext, opts ...Option) []Message {
	if a == nil || len(a.Sections) == 0 {
		return nil
	}
	cfg := newConfig(opts)

	var systemParts, userParts []string
	for _, sec := range a.Sections {
		content := strings.TrimSpace(sec.Text)
		if content == "" {
			continue
		}
		if cfg.role(sec.Bucket) == RoleUser {
			userParts = append(userParts, content)
		} else {
			systemParts = append(systemParts, content)
		}
	}

	var msgs []Message
	if len(systemParts) > 0 {
		msgs = append(msgs, Message{Role: RoleSystem, Content: strings.Join(systemParts, "\n\n")})
	}
	if len(userParts) > 0 {
		msgs = append(msgs, Message{Role: RoleUser, Content: strings.Join(userParts, "\n\n")})
	}
	return msgs
}

// Anthropic converts the assembled context into a user/assistant-only
// conversation: system-roled sections fold into the user turn and
// consecutive same-role messages merge, so the result always alternates.
func Anthropic(a *types.AssembledContext, opts ...Option) []Message {
	if a == nil || len(a.Sections) == 0 {
		return nil
	}
	cfg := newConfig(opts)

	var msgs []Message
	for _, sec := range a.Sections {
		content := strings.TrimSpace(sec.Text)
		if content == "" {
			continue
		}
		role := cfg.role(sec.Bucket)
		if role != RoleAssistant {
			role = RoleUser
		}
		if n := len(msgs); n > 0 && msgs[n-1].Role == role {
			msgs[n-1].Content += "\n\n" + content
			continue
		}
		msgs = append(msgs, Message{Role: role, Content: content})
	}
	return msgs
}

func (c *config) role(id types.BucketID) Role {
	if role, ok := c.roles[id]; ok {
		return role
	}
	return RoleSystem
}

// placementGroups inverts the placement map for tag lookup.
func placementGroups(a *types.AssembledContext) map[types.BucketID]string {
	groups := make(map[types.BucketID]string, len(a.Sections))
	for _, id := range a.Placements.Head {
		groups[id] = "head"
	}
	for _, id := range a.Placements.Middle {
		groups[id] = "middle"
	}
	for _, id := range a.Placements.Tail {
		groups[id] = "tail"
	}
	return groups
}

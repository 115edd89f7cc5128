package messages_test

import (
	"reflect"
	"testing"

	"github.com/BaSui01/contextfit/messages"
	"github.com/BaSui01/contextfit/types"
)

func weatherContext() *types.AssembledContext {
	return &types.AssembledContext{
		Text: "You are a helpful weather assistant.\n\nWhat's the weather in San Francisco?\n\nCurrent weather: 22C, partly cloudy\n\nQ: rain tomorrow? A: unlikely",
		Sections: []types.RenderedSection{
			{Bucket: "system", Text: "You are a helpful weather assistant.", Tokens: 6},
			{Bucket: "task", Text: "What's the weather in San Francisco?", Tokens: 6},
			{Bucket: "rag", Text: "Current weather: 22C, partly cloudy", Tokens: 5},
			{Bucket: "fewshot", Text: "Q: rain tomorrow? A: unlikely", Tokens: 6},
		},
		TotalTokens: 23,
		Placements: types.PlacementMap{
			Head:   []types.BucketID{"system", "task"},
			Middle: []types.BucketID{"rag", "fewshot"},
		},
	}
}

func TestFromContext_DefaultRoles(t *testing.T) {
	t.Parallel()

	got := messages.FromContext(weatherContext())
	want := []messages.Message{
		{Role: messages.RoleSystem, Content: "You are a helpful weather assistant."},
		{Role: messages.RoleUser, Content: "What's the weather in San Francisco?"},
		{Role: messages.RoleSystem, Content: "Current weather: 22C, partly cloudy"},
		{Role: messages.RoleAssistant, Content: "Q: rain tomorrow? A: unlikely"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("messages = %+v", got)
	}
}

func TestFromContext_CustomRolesOverlayDefaults(t *testing.T) {
	t.Parallel()

	got := messages.FromContext(weatherContext(), messages.WithRoles(map[types.BucketID]messages.Role{
		"rag": messages.RoleUser,
	}))
	if got[2].Role != messages.RoleUser {
		t.Fatalf("rag role = %s", got[2].Role)
	}
	// Untouched entries keep their default mapping.
	if got[0].Role != messages.RoleSystem || got[3].Role != messages.RoleAssistant {
		t.Fatalf("defaults lost: %+v", got)
	}
}

func TestFromContext_UnknownBucketDefaultsToSystem(t *testing.T) {
	t.Parallel()

	ctx := &types.AssembledContext{
		Sections: []types.RenderedSection{
			{Bucket: "release_notes", Text: "v2 ships Friday", Tokens: 3},
		},
		Placements: types.PlacementMap{Middle: []types.BucketID{"release_notes"}},
	}
	got := messages.FromContext(ctx)
	if len(got) != 1 || got[0].Role != messages.RoleSystem {
		t.Fatalf("messages = %+v", got)
	}
}

func TestFromContext_PlacementTags(t *testing.T) {
	t.Parallel()

	got := messages.FromContext(weatherContext(), messages.WithPlacementTags())
	if got[0].Content != "[head] You are a helpful weather assistant." {
		t.Fatalf("head tag missing: %q", got[0].Content)
	}
	if got[2].Content != "[middle] Current weather: 22C, partly cloudy" {
		t.Fatalf("middle tag missing: %q", got[2].Content)
	}
}

func TestMerged_TwoMessageShape(t *testing.T) {
	t.Parallel()

	got := messages.Merged(weatherContext())
	want := []messages.Message{
		{
			Role:    messages.RoleSystem,
			Content: "You are a helpful weather assistant.\n\nCurrent weather: 22C, partly cloudy\n\nQ: rain tomorrow? A: unlikely",
		},
		{
			Role:    messages.RoleUser,
			Content: "What's the weather in San Francisco?",
		},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("messages = %+v", got)
	}
}

func TestAnthropic_AlternatingRoles(t *testing.T) {
	t.Parallel()

	got := messages.Anthropic(weatherContext())
	want := []messages.Message{
		{
			Role:    messages.RoleUser,
			Content: "You are a helpful weather assistant.\n\nWhat's the weather in San Francisco?\n\nCurrent weather: 22C, partly cloudy",
		},
		{
			Role:    messages.RoleAssistant,
			Content: "Q: rain tomorrow? A: unlikely",
		},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("messages = %+v", got)
	}
}

func TestConversions_EmptyContext(t *testing.T) {
	t.Parallel()

	if got := messages.FromContext(nil); got != nil {
		t.Fatalf("FromContext(nil) = %+v", got)
	}
	empty := &types.AssembledContext{}
	if got := messages.FromContext(empty); len(got) != 0 {
		t.Fatalf("FromContext(empty) = %+v", got)
	}
	if got := messages.Merged(empty); len(got) != 0 {
		t.Fatalf("Merged(empty) = %+v", got)
	}
	if got := messages.Anthropic(empty); len(got) != 0 {
		t.Fatalf("Anthropic(empty) = %+v", got)
	}
}

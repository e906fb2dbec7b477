package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blacknight/config"
	"blacknight/diff"
	"blacknight/generator"
	"blacknight/store"
)

func TestBuildLLM(t *testing.T) {
	llm, err := buildLLM(config.Config{LLM: &config.LLMConfig{Provider: "mock"}})
	require.NoError(t, err)
	assert.IsType(t, generator.MockLLM{}, llm)

	llm, err = buildLLM(config.Config{LLM: &config.LLMConfig{Provider: "anthropic", Model: "claude-3-haiku", APIKey: "k"}})
	require.NoError(t, err)
	assert.IsType(t, &generator.AnthropicLLM{}, llm)

	_, err = buildLLM(config.Config{LLM: &config.LLMConfig{Provider: "deepseek", Model: "deepseek-chat", APIKey: "k"}})
	assert.ErrorContains(t, err, "base_url")

	_, err = buildLLM(config.Config{LLM: &config.LLMConfig{Provider: "openai", Model: "gpt-4o"}})
	assert.ErrorContains(t, err, "api key")

	_, err = buildLLM(config.Config{LLM: &config.LLMConfig{Provider: "bedrock"}})
	assert.ErrorContains(t, err, "not supported")
}

func TestBuildStore_Memory(t *testing.T) {
	s, closeStore, err := buildStore(context.Background(), config.StoreConfig{})
	require.NoError(t, err)
	defer closeStore()
	assert.IsType(t, &store.MemoryStore{}, s)

	_, _, err = buildStore(context.Background(), config.StoreConfig{Driver: "redis"})
	assert.Error(t, err)
}

func TestDiffOptions(t *testing.T) {
	opts := diffOptions(config.DiffConfig{Granularity: "lines"})
	d := diff.Compute("a\nb", "a\nc", opts...)
	assert.Equal(t, diff.Diff{
		{Kind: diff.Unchanged, Text: "a\n"},
		{Kind: diff.Removed, Text: "b"},
		{Kind: diff.Added, Text: "c"},
	}, d)

	d = diff.Compute("a x c", "a y c", diffOptions(config.DiffConfig{DropOld: true})...)
	assert.Equal(t, "a y c", d.NewText())
	assert.Equal(t, 0, d.Stats().Removed)

	d = diff.Compute("a b c", "a b c d", diffOptions(config.DiffConfig{MaxTokens: 2})...)
	assert.True(t, d.Truncated())

	d = diff.Compute("a b c", "a b c d", diffOptions(config.DiffConfig{MaxTokens: -1})...)
	assert.False(t, d.Truncated())
}

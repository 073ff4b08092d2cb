package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/config"
	"docrag/internal/domain"
)

type stubGenerator struct {
	reply string
	err   error
	calls int
}

func (s *stubGenerator) Name() string { return "stub" }

func (s *stubGenerator) Generate(_ context.Context, _, _ string) (string, error) {
	s.calls++
	return s.reply, s.err
}

type closingGenerator struct {
	stubGenerator
	closed bool
}

func (c *closingGenerator) Close() error {
	c.closed = true
	return nil
}

func TestGuard_Close(t *testing.T) {
	gen := &closingGenerator{}
	require.NoError(t, NewGuard(gen, 0, nil).Close())
	assert.True(t, gen.closed)
	assert.NoError(t, NewGuard(&stubGenerator{}, 0, nil).Close())
}

func TestGuard_PassesThrough(t *testing.T) {
	g := NewGuard(&stubGenerator{reply: "grounded answer"}, 0, nil)
	out, err := g.Generate(context.Background(), "system", "prompt")
	require.NoError(t, err)
	assert.Equal(t, "grounded answer", out)
	assert.Equal(t, "stub", g.Name())
}

func TestGuard_OpensAfterFailures(t *testing.T) {
	stub := &stubGenerator{err: errors.New("503")}
	g := NewGuard(stub, 0, nil)
	for i := 0; i < 5; i++ {
		_, err := g.Generate(context.Background(), "", "q")
		assert.True(t, errors.Is(err, domain.ErrBackendUnavailable))
	}
	assert.Equal(t, 3, stub.calls)
}

func TestGuard_RateLimitHonoursContext(t *testing.T) {
	g := NewGuard(&stubGenerator{reply: "ok"}, 1, nil)
	_, err := g.Generate(context.Background(), "", "first")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = g.Generate(ctx, "", "second")
	assert.True(t, errors.Is(err, domain.ErrBackendUnavailable))
}

func TestFromConfig(t *testing.T) {
	ctx := context.Background()
	gen, err := FromConfig(ctx, config.GeneratorConfig{Type: "none"}, nil)
	require.NoError(t, err)
	assert.Nil(t, gen)

	_, err = FromConfig(ctx, config.GeneratorConfig{Type: "claude-on-a-toaster"}, nil)
	assert.Error(t, err)

	t.Setenv("DOCRAG_TEST_CHAT_KEY", "")
	_, err = FromConfig(ctx, config.GeneratorConfig{
		Type:   "openai",
		OpenAI: &config.OpenAIGeneratorConfig{APIKeyEnv: "DOCRAG_TEST_CHAT_KEY"},
	}, nil)
	assert.ErrorContains(t, err, "DOCRAG_TEST_CHAT_KEY")

	t.Setenv("DOCRAG_TEST_CHAT_KEY", "sk-test")
	gen, err = FromConfig(ctx, config.GeneratorConfig{
		Type:   "openai",
		OpenAI: &config.OpenAIGeneratorConfig{APIKeyEnv: "DOCRAG_TEST_CHAT_KEY"},
	}, nil)
	require.NoError(t, err)
	assert.IsType(t, &Guard{}, gen)
	assert.Equal(t, "openai", gen.Name())
}

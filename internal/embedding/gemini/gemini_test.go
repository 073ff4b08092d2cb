package gemini

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewClient_MissingKey(t *testing.T) {
	t.Setenv("TEST_GEMINI_KEY", "")
	_, err := NewClient(context.Background(), Config{APIKeyEnv: "TEST_GEMINI_KEY"})
	assert.ErrorContains(t, err, "TEST_GEMINI_KEY")
}

func TestClient_Check(t *testing.T) {
	c := &Client{dimension: 2}
	_, err := c.check([]float32{1, 2, 3})
	assert.Error(t, err)

	v, err := c.check([]float32{1, 2})
	assert.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, v)
	assert.Equal(t, "gemini", c.Name())
	assert.Equal(t, 2, c.Dimension())
}

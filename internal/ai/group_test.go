package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubEmbedder struct {
	name    string
	err     error
	batches [][]string
}

func (s *stubEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []float32{float32(len(text))}, nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.batches = append(s.batches, texts)
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		out = append(out, []float32{float32(len(text))})
	}
	return out, nil
}

func (s *stubEmbedder) ModelName() string {
	return s.name
}

func TestGroupEmbedderFallsBack(t *testing.T) {
	bad := &stubEmbedder{name: "bad", err: errors.New("quota")}
	good := &stubEmbedder{name: "good"}
	g := NewGroupEmbedder([]EmbedderEntry{{Name: "bad", Embedder: bad}, {Name: "good", Embedder: good}})

	vec, err := g.Embed(context.Background(), "abc", TaskTypeQuery)
	require.NoError(t, err)
	require.Equal(t, []float32{3}, vec)

	vecs, err := g.EmbedBatch(context.Background(), []string{"a", "bb"}, TaskTypeDocument)
	require.NoError(t, err)
	require.Equal(t, [][]float32{{1}, {2}}, vecs)
	require.Equal(t, "bad|good", g.ModelName())
}

func TestGroupEmbedderReturnsLastError(t *testing.T) {
	last := errors.New("down")
	g := NewGroupEmbedder([]EmbedderEntry{
		{Name: "a", Embedder: &stubEmbedder{err: errors.New("quota")}},
		{Name: "b", Embedder: &stubEmbedder{err: last}},
	})
	_, err := g.EmbedBatch(context.Background(), []string{"x"}, "")
	require.ErrorIs(t, err, last)
}

func TestGroupEmbedderSingleEntryUnwrapped(t *testing.T) {
	only := &stubEmbedder{name: "only"}
	require.Same(t, only, NewGroupEmbedder([]EmbedderEntry{{Name: "only", Embedder: only}}))
	require.Nil(t, NewGroupEmbedder(nil))
}

func TestBatchEmbedSplitsInOrder(t *testing.T) {
	s := &stubEmbedder{}
	out, err := BatchEmbed(context.Background(), s, []string{"a", "bb", "ccc", "dddd", "eeeee"}, TaskTypeDocument, 2)
	require.NoError(t, err)
	require.Len(t, s.batches, 3)
	require.Equal(t, [][]float32{{1}, {2}, {3}, {4}, {5}}, out)
}

func TestNewEmbedProvider(t *testing.T) {
	p, err := NewEmbedProvider("OpenAI", map[string]interface{}{"api_key": "k"})
	require.NoError(t, err)
	require.Equal(t, "openai", p.Name())

	_, err = NewEmbedProvider("nope", map[string]interface{}{})
	require.Error(t, err)
	_, err = NewEmbedProvider("", nil)
	require.Error(t, err)
}

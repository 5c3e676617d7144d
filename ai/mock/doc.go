// Package mock provides a test double for ai.Embedder.
//
// The mock lets tests run without an embedding service and gives
// controlled, deterministic behavior.
//
//	embedder := mock.NewMockEmbedder()
//	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
//	    return nil, errors.New("rate limited")
//	}
//	count := embedder.CallCount()
//
// By default the same text always yields the same unit vector, see Vector.
package mock

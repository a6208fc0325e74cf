package llm

import (
	"context"
	"fmt"

	"github.com/alantheprice/refactord/pkg/fingerprint"
)

// StubGenerator is a deterministic generator that marks each file with an
// AI-REF comment carrying the file's reason id. It never calls a model.
type StubGenerator struct{}

func (StubGenerator) Generate(ctx context.Context, in GenerateInput) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	marker := fmt.Sprintf("%s AI-REF: {agent: 'coder', reason_id: %s}\n",
		commentPrefix(in.Path), fingerprint.ReasonID(in.RequestID, in.Path))
	return marker + in.Content, nil
}

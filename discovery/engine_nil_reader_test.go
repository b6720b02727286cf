package discovery

import (
	"context"
	"testing"

	"github.com/fabrik-ai/fabrik/profile"
	"github.com/stretchr/testify/assert"
)

func TestDiscover_NilReaderYieldsMinimalProfile(t *testing.T) {
	e := New(&pipelineGateway{}, nil, Options{Description: "hinted agent"})

	p := e.Discover(context.Background(),
		profile.SourceRef{Kind: profile.SourceAssistantID, Value: "asst_x"})

	assert.InDelta(t, MinimalConfidence, p.Confidence, 1e-9)
	assert.Equal(t, "hinted agent", p.Description)
}

package profile_test

import (
	"fmt"

	"github.com/fabrik-ai/fabrik/profile"
)

// ExampleAgentProfile_MergeTools demonstrates the first-wins merge rule:
// tool names stay unique and the first discovery of a name keeps its
// description.
func ExampleAgentProfile_MergeTools() {
	p := profile.New(profile.SourceRef{Kind: profile.SourceLocalDir, Value: "."})

	p.MergeTools([]profile.DiscoveredTool{
		{Name: "lookup_order", Description: "from code", Citation: "src/tools.ts"},
	})
	p.MergeTools([]profile.DiscoveredTool{
		{Name: "lookup_order", Description: "from readme", Citation: "README.md"},
		{Name: "initiate_refund"},
	})

	fmt.Println(p.ToolNames())
	fmt.Println(p.Tools[0].Description)

	// Output:
	// [lookup_order initiate_refund]
	// from code
}

// ExampleAgentProfile_ClampConfidence demonstrates that a profile can
// never claim more certainty than its evidence supports.
func ExampleAgentProfile_ClampConfidence() {
	p := profile.New(profile.SourceRef{Kind: profile.SourceHTTPEndpoint, Value: "http://agent.local"})
	p.AddEvidence(profile.Evidence{
		Type:       "probe",
		Source:     "greeting",
		Finding:    "responded in English",
		Confidence: 0.5,
	})

	p.Confidence = 0.9
	p.ClampConfidence()

	fmt.Printf("%.1f\n", p.Confidence)

	// Output: 0.5
}

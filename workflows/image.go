package workflows

import (
	"encoding/base64"
	"fmt"

	"github.com/agentflow/agentflow/agent"
	"github.com/agentflow/agentflow/core"
	"github.com/agentflow/agentflow/model"
	"github.com/agentflow/agentflow/tool"
)

// BulkImageThreshold is the image count above which generation requires
// human approval. Anything beyond a single image counts as bulk.
const BulkImageThreshold = 1

// imageCostPerUnit is the estimated generation cost per image in dollars.
const imageCostPerUnit = 0.02

// tinyImagePNG is a 1x1 transparent PNG used as the generated artifact payload.
var tinyImagePNG, _ = base64.StdEncoding.DecodeString(
	"iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mP8z8BQDwAEhQGAhKmMIQAAAABJRU5ErkJggg==")

// ImageOptions tunes the image generation workflow.
type ImageOptions struct {
	// BulkImageThreshold overrides the approval threshold. Zero or negative
	// keeps the default.
	BulkImageThreshold int
}

// NewImageApprovalTool returns the generate_images_with_approval tool.
// Single-image requests generate immediately; bulk requests above the
// threshold suspend for approval with a cost estimate attached. Generated
// images are saved as session artifacts and their ids returned in the record.
func NewImageApprovalTool(threshold int) *tool.FunctionTool {
	if threshold <= 0 {
		threshold = BulkImageThreshold
	}

	return tool.NewFunctionTool(
		"generate_images_with_approval",
		"Generates images from a description. Bulk requests require human approval before generation starts.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"num_images": map[string]any{
					"type":        "integer",
					"description": "Number of images to generate",
				},
				"description": map[string]any{
					"type":        "string",
					"description": "What the images should depict",
				},
			},
			"required": []string{"num_images", "description"},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			count := int(args["num_images"].(float64))
			description, _ := args["description"].(string)
			cost := float64(count) * imageCostPerUnit

			if count <= threshold {
				ids, err := saveGeneratedImages(tc, fmt.Sprintf("IMG-%d-AUTO", count), count)
				if err != nil {
					return nil, err
				}
				return map[string]any{
					"status":        "approved",
					"generation_id": fmt.Sprintf("IMG-%d-AUTO", count),
					"num_images":    count,
					"artifact_ids":  ids,
					"message":       fmt.Sprintf("Auto-approved: generated %d image", count),
				}, nil
			}

			conf := tc.Confirmation()
			if conf == nil {
				tc.RequestConfirmation(
					fmt.Sprintf("Bulk generation request: %d images of %q, estimated cost $%.2f. Approve?", count, description, cost),
					map[string]any{
						"num_images":    count,
						"description":   description,
						"cost_estimate": cost,
					},
				)
				return map[string]any{
					"status":        "pending",
					"message":       fmt.Sprintf("Bulk generation of %d images requires approval", count),
					"cost_estimate": fmt.Sprintf("$%.2f", cost),
				}, nil
			}

			if conf.Confirmed {
				ids, err := saveGeneratedImages(tc, fmt.Sprintf("IMG-%d-HUMAN", count), count)
				if err != nil {
					return nil, err
				}
				return map[string]any{
					"status":        "approved",
					"generation_id": fmt.Sprintf("IMG-%d-HUMAN", count),
					"num_images":    count,
					"artifact_ids":  ids,
					"cost_estimate": fmt.Sprintf("$%.2f", cost),
					"message":       fmt.Sprintf("Approved: generated %d images", count),
				}, nil
			}
			return map[string]any{
				"status":     "rejected",
				"num_images": count,
				"message":    fmt.Sprintf("Rejected: bulk generation of %d images cancelled", count),
			}, nil
		},
	)
}

// saveGeneratedImages writes count placeholder PNGs to the session artifact
// store and returns their ids.
func saveGeneratedImages(tc *core.ToolContext, generationID string, count int) ([]string, error) {
	ids := make([]string, 0, count)
	for i := range count {
		id := fmt.Sprintf("%s-%d.png", generationID, i+1)
		if err := tc.SaveArtifact(id, tinyImagePNG); err != nil {
			return nil, fmt.Errorf("save artifact %s: %w", id, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// NewImageAgent builds the image generation assistant with the approval-gated
// generation tool registered.
func NewImageAgent(llm model.Model, optFns ...func(o *ImageOptions)) *agent.ModelAgent {
	opts := ImageOptions{BulkImageThreshold: BulkImageThreshold}
	for _, fn := range optFns {
		fn(&opts)
	}

	a := agent.NewModelAgent("image_generation_agent", llm, func(o *agent.ModelAgentOptions) {
		o.Instruction = agent.NewInstructionFromText(`Image generation assistant.

Use the generate_images_with_approval tool for requests.
If status is 'pending', inform the user approval is required and mention the cost estimate.
After generation, report the artifact ids and total cost.`)
		o.AllowTransfer = false
	})
	a.RegisterTool(NewImageApprovalTool(opts.BulkImageThreshold))
	return a
}

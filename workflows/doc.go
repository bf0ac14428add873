// Package workflows ships ready-made agent topologies built from the core
// building blocks: sequential, parallel and loop composites, tool-gated
// approval flows and LLM-directed delegation.
//
// Each constructor returns a fully wired root agent that can be handed to a
// runner.Runner as-is. The workflows share a few conventions:
//
//   - Business tools return status-tagged records ({"status": "success" |
//     "error" | "approved" | "pending" | "rejected", ...}) instead of raising
//     errors, so the model can branch on the outcome.
//   - Units that produce a result declare an output key; downstream units read
//     it through {key} placeholders in their instructions.
//   - Approval-gated tools auto-approve below their threshold and suspend the
//     invocation above it; the runner's Resume delivers the human decision.
//
// The constructors take the language model as a parameter, so the same
// topology runs against any provider adapter (or the mock model in tests).
package workflows

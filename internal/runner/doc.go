// Package runner handles one conversation turn against the generation endpoint.
//
// Flow:
//
//	facts -> memory context -> persona system instruction
//	user(image?, text) -> Generator -> raw reply -> Decode -> Result{Text, Thinking}
//
// Invariant:
//   - only the current user message is sent; prior history never reaches the model.
//   - a reply without tags is still a valid reply (fallback), never an error.
package runner

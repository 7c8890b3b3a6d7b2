// Package tandemrev implements a dual-reviewer LLM orchestration engine: two
// independently configured model backends review the same design proposal or
// code change in parallel, each optionally driving a bounded read-only
// tool-calling exchange against a project index, and a synthesis step combines
// the two reviews into one summary.
//
// Typical usage:
//  1. Load config.Settings from the environment
//  2. Construct a model client (model/openrouter or model/anthropic)
//  3. Build a metadata.Catalog over the client for capability discovery
//  4. Create a review.Coordinator and call Review with a review.Request
//
// The engine owns capability caching, token budgeting, the tool-call bridge
// state machine and partial-failure aggregation. Transport, credential
// bootstrap and on-disk path resolution are deliberately out of scope; see
// examples/dualreview for the wiring.
package tandemrev

// Version is the release version of the tandemrev module.
const Version = "0.3.0"

// Package review implements the dual-reviewer orchestration engine: two
// independently configured reviewer models run concurrently against one
// request, each optionally driving a bounded read-only tool-call exchange
// with a project index, and a synthesizer combines their outputs into a
// single summary.
//
// The Coordinator is the entry point. It resolves model capabilities and
// token budgets per reviewer, runs both invocations under independent
// wall-clock deadlines, and aggregates whatever each reviewer produced.
// One reviewer's failure or timeout never affects the other; the aggregate
// result always carries per-branch status.
package review

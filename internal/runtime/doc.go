/*
Package runtime implements the step loop that drives a tool-using agent.

Each step perceives the current query, retrieves relevant memory, asks the
planner for a single action and either executes a tool call or accepts a
terminal answer. Termination is gated by the requirements of the configured
workflow.

# Failure policy

A failed call is retried on the same step until the per-step cap is reached,
after which the loop moves on. Consecutive failures across steps abort the
session once they reach their cap. A call whose fingerprint (tool name plus
truncated arguments) was attempted too often is skipped as a hard failure,
and a fingerprint proposed repeatedly in a row ends the session with a loop
diagnostic.

Sessions always end with a non-empty answer; errors and panics are recovered
at the outer boundary.
*/
package runtime

/*
Package domain contains the core models shared by every layer of the cortex agent.

It defines the session driven by the orchestration loop, the decisions a planner
can produce, the tools exposed by backends and the error taxonomy used to route
failures. The package performs no I/O.

# Key Entities

  - Session: the working state of one request (step index, memory trace, answer).
  - Action: a planner decision, either a tool call or a terminal answer.
  - Tool / ToolResult: backend tool metadata and the uniform result of a call.
  - MemoryItem: one recorded tool outcome. Items are write-once.
  - Perception: the structured intent extracted from the current query.
*/
package domain

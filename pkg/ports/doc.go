/*
Package ports defines the driven ports (interfaces) of the cortex agent.

These interfaces decouple the orchestration loop from the language model, the
memory backend and the tool transports, so each can be replaced or faked.

# Key Interfaces

  - Planner / ActionPlanner: decide the next action of a session.
  - Perceiver: extract structured intent from free text.
  - MemoryStore: record and retrieve tool outcomes.
  - ToolDispatcher: call tools by name across every configured backend.
  - Transport: reach one backend (process or network).
  - DistributedLocker: coordinate work across replicas.
*/
package ports

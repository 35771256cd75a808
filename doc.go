/*
Package cortex drives a step-wise tool-using agent.

On every step the agent perceives the intent of the current query, retrieves
relevant memory, asks a planner for exactly one action and either calls a
tool or accepts a terminal answer. Tools live behind a registry that merges
any number of backends, reached as MCP subprocesses, over HTTP, or as Go
functions.

# Concept

The planner and perceiver are collaborators that return text: a planner
answers with a single line,

	CALL: create_sheet|title="Standings"|share.with=ops@example.com
	TERMINAL: The sheet is ready.

and the loop turns that line into a call, retries failed calls within
bounded budgets, detects loops and refuses to stop while a required step of
the configured workflow is still unsatisfied. A session always ends with an
answer, even when every collaborator fails.

# Usage

	planner := ports.PlannerFunc(func(ctx context.Context, req ports.PlanRequest) (string, error) {
		if len(req.ToolsUsed) == 0 {
			return "CALL: search|query=weather in lisbon", nil
		}
		return "TERMINAL: It is sunny.", nil
	})

	agent, err := cortex.New(
		cortex.WithPlanner(planner),
		cortex.WithTool(domain.Tool{Name: "search"}, searchFn),
	)
	if err != nil {
		log.Fatal(err)
	}

	res := agent.Run(ctx, "What is the weather in Lisbon?")
	fmt.Println(res.Outcome, res.Answer)

# Backends

Backends are usually declared in a YAML file and loaded with
registry.LoadBackends. Discovery happens in Initialize; a backend that fails
contributes no tools and does not affect the others.
*/
package cortex

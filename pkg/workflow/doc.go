/*
Package workflow implements declarative termination gating.

A workflow lists the steps a session must complete before a terminal answer is
accepted, the identifiers to carry between steps, and per-tool guidance that
is fed back to the planner.

	requirements:
	  - name: sheet_created
	    tools: [create_google_sheet]
	  - name: email_sent
	    tools: [send_email]
	captures:
	  - tool: create_google_sheet
	    field: sheet_id
	    as: sheet_id
	    into: [append_rows]
	guidance:
	  create_google_sheet: "Sheet {{ .sheet_id }} exists. Share its link by email next."

Every requirement is a predicate over the session's memory trace, so the loop
evaluates all of them the same way regardless of the domain.
*/
package workflow

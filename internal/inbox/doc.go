/*
Package inbox turns a pair of messaging tools into an agent front door.

A Poller calls a receive tool in a loop. Every new message runs one agent
session, and the answer is sent back through a send tool using a reply
template that can reference the identifiers the workflow captured:

	Task completed.

	{{ .Answer }}{{ with .Vars.link }}
	Link: {{ . }}{{ end }}

Message ids are remembered in a bounded cache that evicts by age and count.
When a DistributedLocker is configured, a message is claimed before it is
handled so replicas sharing one inbox do not answer twice.
*/
package inbox

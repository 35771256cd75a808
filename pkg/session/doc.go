/*
Package session serializes agent runs that share a session id.

Runs of one id are ordered by a reference-counted in-process mutex and,
when a distributed locker is configured, by a lock held across replicas.
The gateways wrap the agent with Manager.Guard so a client reusing a
session id never sees two runs interleave their memory.
*/
package session

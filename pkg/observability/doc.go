/*
Package observability turns pipeline lifecycle events into metrics and logs.

Metrics registers prometheus collectors and exposes them as domain.LifecycleHooks;
LogHooks writes the same events to a structured logger. Both can be merged and
passed to the executor and parser.
*/
package observability

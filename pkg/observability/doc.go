/*
Package observability provides tools for monitoring the Flow engine.

It includes Prometheus metrics and structured audit logging, both exposed as
domain.LifecycleHooks that can be combined with domain.ChainHooks and passed
to flow.WithLifecycleHooks.
*/
package observability

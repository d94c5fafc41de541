/*
Package observability provides tools for monitoring bots built with palaver.

It includes a Prometheus metrics middleware that times and counts turns and
outbound activities, plus dialog lifecycle hooks that feed the same metrics
or a structured log.
*/
package observability

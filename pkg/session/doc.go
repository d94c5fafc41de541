/*
Package session serializes turns that touch the same conversation.

Bot state uses optimistic concurrency, so two turns of one conversation that
run at the same time make one of them fail with a conflict. The Manager avoids
that by running turns for a key one at a time: a reference counted local
mutex per key, plus an optional distributed lock (see the redis adapter) when
several replicas serve the same conversations.
*/
package session

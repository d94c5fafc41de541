/*
Package turn defines the per-turn context handed to middleware, bot logic and
dialogs.

A Context wraps one inbound activity and exposes three independent outbound
chains (send, update, delete). Each chain runs its handlers in registration
order and ends at the Adapter. A handler that does not call next suppresses
the operation; calling next twice is a protocol violation.

The Context also carries a typed, turn-scoped registry (Key, Set, Get) used by
state scopes and dialog accessors to cache what they loaded for the turn.
*/
package turn

/*
Package state persists per-conversation and per-user data across turns.

A BotState loads one storage record per scope key into a turn-scoped cache,
hands out its properties for the rest of the turn and writes the record back
only when something changed. Writes carry the eTag observed at load time, so a
concurrent writer surfaces as domain.ErrConcurrencyConflict instead of a lost
update. SaveChanges with force writes with the "*" eTag.

Three scopes are provided:

  - ConversationState: {channel}/conversations/{conversation}
  - UserState: {channel}/users/{user}
  - PrivateConversationState: {channel}/conversations/{conversation}/users/{user}
*/
package state

/*
Package domain contains the core value types shared by every layer of palaver.

It defines the channel-agnostic Activity envelope, conversation references,
caller identities and the error taxonomy. The package is kept pure and free of
external dependencies like I/O or persistence, following Hexagonal Architecture
principles.

# Key Entities

  - Activity: a message, event or trace exchanged with a chat channel.
  - ConversationReference: routing information used to reply or resume proactively.
  - Caller: tagged identity of whoever started the turn (user, channel or skill).
  - LifecycleHooks: callbacks fired as dialogs are pushed, popped and notified.
*/
package domain

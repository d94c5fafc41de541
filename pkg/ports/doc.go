/*
Package ports defines the driven ports (interfaces) for palaver.

These interfaces decouple the turn pipeline and dialog machinery from external
implementations, allowing bot state to live in memory, on disk, in Redis or in a
SQL database, and letting hosts coordinate turns across replicas.

# Key Interfaces

  - Storage: key to StoreItem persistence with eTag based optimistic concurrency.
  - Lister: optional enumeration of stored keys (used by the CLI).
  - DistributedLocker: provides distributed locking so only one turn per
    conversation runs at a time across instances.
*/
package ports

/*
Package ports defines the driven ports (interfaces) for the Flow engine.

These interfaces decouple the engine from where assembly documents live,
allowing the same engine to be fed from files, Redis, Loam or memory.

# Key Interfaces

  - AssemblyLoader: Responsible for fetching the raw assembly document.
  - Watchable: Optional capability of a loader to signal that a reload is required.
*/
package ports

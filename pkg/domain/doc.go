/*
Package domain contains the core data model of the Flow engine.

It defines the declarative assembly (a tree of step, switch, subflow and
parallel nodes), the per-request Context addressed by dotted paths, the run
status of a flow, the error taxonomy and the lifecycle events emitted while a
flow executes. This package is kept pure and free of I/O, following
Hexagonal Architecture principles.

# Key Entities

  - Assembly: The immutable list of root nodes parsed from an assembly document.
  - Node: A tagged variant (Step, Switch, SubFlow, Parallel).
  - Context: Mutable request state shared by every node of a run.
  - Status: The lifecycle of a single flow instance.
*/
package domain

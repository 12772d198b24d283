/*
Package flow is an embeddable request-processing pipeline engine.

A host supplies a declarative step sequence (an "assembly"), a registry of
named tasks and a per-request Context. The engine interprets the assembly
against the Context, invoking tasks in declared order, through conditional
branches, sub-flows and parallel groups, and signals completion exactly once.

# Concept

The assembly is loaded through a ports.AssemblyLoader, parsed and validated
into an immutable Snapshot. Every request gets its own Flow bound to the
snapshot that was current when the Flow was created, so a hot reload never
affects requests already in flight.

Tasks follow a two-phase contract: a registry.Factory is configured once at
startup and returns a registry.Handler, which is invoked per step with the
resolved parameters, the Context and a one-shot continuation.

# Usage

	package main

	import (
		"context"
		"log"

		"github.com/aretw0/flow"
		"github.com/aretw0/flow/pkg/adapters/memory"
		"github.com/aretw0/flow/pkg/domain"
		"github.com/aretw0/flow/pkg/registry"
		"github.com/aretw0/flow/pkg/tasks"
	)

	const assembly = `
	assembly:
	  execute:
	    - set-variable:
	        name: message.greeting
	        value: "hello {{message.user}}"
	`

	func main() {
		reg := registry.NewRegistry()
		if err := tasks.RegisterBuiltins(reg, nil); err != nil {
			log.Fatal(err)
		}

		eng, err := flow.New(memory.NewLoader(assembly), reg)
		if err != nil {
			log.Fatal(err)
		}

		data := domain.NewContextFrom(map[string]any{
			"message": map[string]any{"user": "bob"},
		})
		if err := eng.Execute(context.Background(), data); err != nil {
			log.Fatal(err)
		}
		greeting, _ := data.Get("message.greeting")
		log.Println(greeting)
	}
*/
package flow

package flow_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/flow"
	"github.com/aretw0/flow/pkg/adapters/memory"
	"github.com/aretw0/flow/pkg/domain"
	"github.com/aretw0/flow/pkg/registry"
	"github.com/aretw0/flow/pkg/tasks"
)

// ExampleEngine_Execute runs an in-memory assembly against one request Context.
func ExampleEngine_Execute() {
	reg := registry.NewRegistry()
	if err := tasks.RegisterBuiltins(reg, nil); err != nil {
		log.Fatal(err)
	}

	loader := memory.NewLoader(`
assembly:
  execute:
    - set-variable:
        name: message.greeting
        value: "hello {{message.user}}"
    - switch:
        case:
          - condition: 'message.user == "admin"'
            execute:
              - throw: {message: "admins use another route"}
          - otherwise:
              - set-variable: {name: message.role, value: guest}
`)

	eng, err := flow.New(loader, reg)
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
	role, _ := data.Get("message.role")
	fmt.Println(greeting)
	fmt.Println(role)

	// Output:
	// hello bob
	// guest
}

/*
Package tasks provides the built-in tasks of the Flow engine.

Each task is a registry.Factory: its static configuration is decoded once
at registration and the returned handler is invoked once per step.

	reg := registry.NewRegistry()
	if err := tasks.RegisterBuiltins(reg, logger); err != nil {
		log.Fatal(err)
	}

Built-ins:

  - set-variable: writes "value" at the Context path "name".
  - log: emits "message" through slog at the configured level.
  - delay: completes after "duration", or fails when the request is cancelled.
  - throw: fails the step with "message".
  - json-extract: reads a gjson "path" out of "source" and stores it at "target".
*/
package tasks

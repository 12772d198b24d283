/*
Package registry defines the task plugin contract and the Registry that maps
step types to configured handlers.

Tasks are two-phase: a Factory receives static configuration once at startup
and returns a Handler; the Handler is invoked for every step execution with
the resolved parameters, the request Context and a one-shot Continuation.

	reg := registry.NewRegistry()
	err := reg.Register("greet", registry.FactoryFunc(func(cfg map[string]any) (registry.Handler, error) {
		return registry.HandlerFunc(func(ctx context.Context, params map[string]any, data *domain.Context, next registry.Continuation) {
			data.Set("message.greeting", "hello "+fmt.Sprint(params["name"]), true)
			next(nil)
		}), nil
	}), nil)

Step parameters are the keys of the step body in the assembly, except the
reserved "title" key, which labels the node in logs, events and graphs and
is never delivered to the handler.

Registration rejects nil factories, failing factories and non-invocable
handlers with a *domain.DefinitionError, so misconfiguration surfaces before
any request is served.
*/
package registry

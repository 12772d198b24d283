/*
Package dsl provides a fluent Go builder for Flow assemblies.

It produces the same document a YAML file would, so an assembly built in code
goes through the regular parser and can be served from a memory loader. This is
useful for tests, generated pipelines and IDE autocompletion.

Example usage:

	b := dsl.New("1.0.0")
	b.Step("set-variable").Param("name", "user").Param("value", "{{message.user}}")
	b.Switch(func(s *dsl.SwitchBuilder) {
		s.Case(`user == "bob"`, func(l *dsl.List) {
			l.Step("log").Param("message", "hi bob")
		})
		s.Otherwise(func(l *dsl.List) {
			l.Step("throw").Param("message", "unknown user")
		})
	})

	loader, err := b.Build()
	// ... pass loader to flow.New(...)
*/
package dsl

package testutil

import "time"

// WithRegistrationLifecycle adds the journal rows a typical session
// leaves behind: a definition, two kernel bindings, and the reverse
// order removals from closing the session.
func (b *Builder) WithRegistrationLifecycle() *Builder {
	start := time.Now().Add(-time.Minute)

	return b.
		WithEntry("reg-1",
			Action("added"), Kind("def"), Operator("math::add"),
			Namespace("math"), Debug("manifests/math.yaml"),
			CreatedAt(start)).
		WithEntry("reg-2",
			Action("added"), Kind("impl"), Operator("math::add"),
			Namespace("math"), Key("cpu"), Debug("builtin arith.add"),
			CreatedAt(start.Add(time.Second))).
		WithEntry("reg-3",
			Action("added"), Kind("impl"), Operator("math::add"),
			Namespace("math"), Key("cuda"), Debug("builtin arith.add"),
			CreatedAt(start.Add(2*time.Second))).
		WithEntry("reg-3",
			Action("removed"), Kind("impl"), Operator("math::add"),
			Namespace("math"), Key("cuda"), Debug("builtin arith.add"),
			CreatedAt(start.Add(3*time.Second))).
		WithEntry("reg-2",
			Action("removed"), Kind("impl"), Operator("math::add"),
			Namespace("math"), Key("cpu"), Debug("builtin arith.add"),
			CreatedAt(start.Add(4*time.Second))).
		WithEntry("reg-1",
			Action("removed"), Kind("def"), Operator("math::add"),
			Namespace("math"), Debug("manifests/math.yaml"),
			CreatedAt(start.Add(5*time.Second)))
}

// WithMixedOperatorData adds entries spread across two operators and a
// key-wide fallback, for exercising list filters.
func (b *Builder) WithMixedOperatorData() *Builder {
	start := time.Now().Add(-time.Hour)

	return b.
		WithEntry("reg-10",
			Action("added"), Kind("def"), Operator("math::add"),
			Namespace("math"), CreatedAt(start)).
		WithEntry("reg-11",
			Action("added"), Kind("impl"), Operator("math::add"),
			Namespace("math"), Key("cpu"), CreatedAt(start.Add(time.Second))).
		WithEntry("reg-12",
			Action("added"), Kind("def"), Operator("text::upper"),
			Namespace("text"), CreatedAt(start.Add(2*time.Second))).
		WithEntry("reg-13",
			Action("added"), Kind("impl"), Operator("text::upper"),
			Namespace("text"), Key("cpu"), CreatedAt(start.Add(3*time.Second))).
		WithEntry("reg-14",
			Action("added"), Kind("fallback"),
			Key("autograd"), Debug("autograd fallthrough"),
			CreatedAt(start.Add(4*time.Second)))
}

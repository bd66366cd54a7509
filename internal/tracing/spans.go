package tracing

// Span name prefixes, one per subsystem.
const (
	SpanPrefixManifest = "manifest."
	SpanPrefixDispatch = "dispatch."
	SpanPrefixWatch    = "watch."
)

// Attribute keys for manifest spans.
const (
	AttrManifestRoot  = "manifest.root"
	AttrManifestFiles = "manifest.files"
	AttrOperatorCount = "manifest.operators"
)

// Attribute keys for dispatch spans.
const (
	AttrOperator    = "operator.name"
	AttrDispatchKey = "dispatch.key"
)

// Attribute keys for watch-mode spans.
const (
	AttrReloadSeq    = "watch.reload_seq"
	AttrChangedPath  = "watch.changed_path"
	AttrErrorMessage = "error.message"
)

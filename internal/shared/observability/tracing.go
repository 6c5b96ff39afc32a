package observability

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const instrumentationName = "resolvecore"

// Tracer delegates to the global provider, so spans are dropped until one is
// installed with otel.SetTracerProvider.
var Tracer = otel.Tracer(instrumentationName)

// Attribute keys shared by resolution spans.
const (
	AttrPath  = attribute.Key("resolvecore.path")
	AttrStage = attribute.Key("resolvecore.stage")
	AttrDecl  = attribute.Key("resolvecore.declaration")
)

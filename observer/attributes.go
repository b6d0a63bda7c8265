package observer

import "go.opentelemetry.io/otel/attribute"

// Attribute keys for index observability spans and metrics.
var (
	AttrEmbedModel      = attribute.Key("embed.model")
	AttrEmbedProvider   = attribute.Key("embed.provider")
	AttrEmbedTextCount  = attribute.Key("embed.text_count")
	AttrEmbedDimensions = attribute.Key("embed.dimensions")

	AttrSearchTopK    = attribute.Key("search.top_k")
	AttrSearchResults = attribute.Key("search.results")

	AttrChunkCount = attribute.Key("index.chunk_count")
)

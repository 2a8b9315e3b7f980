package center

// Span name and attribute keys recorded when a Center has a tracer.
const (
	SpanPost = "notification.post"

	AttrName      = "notification.name"
	AttrHasSender = "notification.has_sender"
	AttrMatched   = "notification.matched"
	AttrQueued    = "notification.queued"
	AttrFiltered  = "notification.filtered"
)

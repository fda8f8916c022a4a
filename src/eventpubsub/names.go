package eventpubsub

const (
	NewQuoteEvent            = "NewQuoteEvent"
	NewSnapshotEvent         = "NewSnapshotEvent"
	RunCompletedEvent        = "RunCompletedEvent"
	RollbackRecommendedEvent = "RollbackRecommendedEvent"
	Error                    = "DefaultError"
)

package redisstream

// Field constants (avoid typos/allocs)
const (
	fieldID         = "id"
	fieldOrigin     = "origin"
	fieldData       = "data"       // raw []byte to reduce allocs (no base64)
	fieldRecipients = "recipients" // encoded with Config.Codec
	fieldProducedAt = "producedAt" // int64 ns

	fieldDeadReason = "error"
	fieldDeadStream = "orig_stream"
	fieldDeadID     = "orig_id"
)

const AdapterName = "redis-streams"

package logger

// Standard field key constants for structured logging.
const (
	FieldService   = "service"
	FieldComponent = "component"
	FieldJobID     = "job_id"
	FieldChunk     = "chunk"
	FieldProvider  = "provider"
	FieldStatus    = "status"
	FieldOperation = "operation"
	FieldDuration  = "duration_ms"
	FieldError     = "error"
)

// Fields builds a map[string]any from alternating key-value pairs.
//
//	log.Info("chunk done", logger.Fields(logger.FieldChunk, 3, logger.FieldStatus, "ok"))
func Fields(kvs ...any) map[string]any {
	m := make(map[string]any, len(kvs)/2)
	for i := 0; i < len(kvs)-1; i += 2 {
		if key, ok := kvs[i].(string); ok {
			m[key] = kvs[i+1]
		}
	}
	return m
}

package util

// Envelope is the JSON object every handler replies with.
type Envelope map[string]any

func Error(message string) Envelope {
	return Envelope{"error": message}
}

func Data(key string, value any) Envelope {
	return Envelope{key: value}
}

// OK acknowledges a request that has nothing else to return.
func OK() Envelope {
	return Envelope{"success": true}
}

package domain

// KeyPrefix namespaces every key lookalike writes to the key-value store.
const KeyPrefix = "lookalike:"

// HistoryCapacity is the number of past searches a session keeps.
const HistoryCapacity = 5

// Image upload limits enforced before any query reaches the oracle.
const (
	MaxImageBytes = 5 * 1024 * 1024
)

// AllowedImageTypes lists the MIME types accepted for file queries.
var AllowedImageTypes = []string{"image/jpeg", "image/jpg", "image/png", "image/webp"}

package service

// truncateID shortens an identifier for log output. Full tokens,
// signatures and IDs never appear in logs.
func truncateID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

package cache

// keyspace namespaces every key so Scribe can share a Redis database.
const keyspace = "scribe:"

// JobStatusKey is where a job's last mirrored status lives.
func JobStatusKey(jobID string) string {
	return keyspace + "job:" + jobID + ":status"
}

// RateLimitKey holds the per-window request counter for an API key prefix.
func RateLimitKey(keyPrefix string) string {
	return keyspace + "ratelimit:" + keyPrefix
}

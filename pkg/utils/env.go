package utils

import "os"

// GetEnv reads a process environment variable, returning "" if unset.
func GetEnv(key string) string {
	return os.Getenv(key)
}

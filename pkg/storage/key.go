package storage

import (
	"strings"
)

// DefaultNamespace prefixes every Redis key.
const DefaultNamespace = "flags"

// Key identifies a stored payload.
type Key struct {
	// Namespace separates deployments sharing one Redis (default "flags")
	Namespace string

	// Name is the persisted name, e.g. "cn.gif"
	Name string
}

// String generates the Redis key.
// Format: namespace:payload:name
//
// Example:
//
//	flags:payload:cn.gif
func (k Key) String() string {
	ns := strings.Trim(k.Namespace, ":")
	if ns == "" {
		ns = DefaultNamespace
	}
	return ns + ":payload:" + strings.TrimSpace(k.Name)
}

// Pattern returns the SCAN pattern matching every key of namespace.
func Pattern(namespace string) string {
	return Key{Namespace: namespace, Name: "*"}.String()
}

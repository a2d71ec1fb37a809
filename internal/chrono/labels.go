package chrono

import (
	"strconv"
	"strings"
)

// Stream labels.
const (
	ServerLabel       = "SERVER"
	ClientLabelPrefix = "CLIENT"
)

// ClientLabel returns the label of the client with index i.
func ClientLabel(i int) string {
	return ClientLabelPrefix + strconv.Itoa(i)
}

// ClientID returns the id part of a client label ("CLIENT3" -> "3").
func ClientID(label string) (string, bool) {
	if !IsClientLabel(label) {
		return "", false
	}
	return strings.TrimPrefix(label, ClientLabelPrefix), true
}

// IsClientLabel reports whether label names a client stream.
func IsClientLabel(label string) bool {
	return strings.HasPrefix(label, ClientLabelPrefix)
}

package util

import (
	"net"
	"strconv"
)

func NetJoin(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// BoolValue dereferences an optional flag, falling back when unset.
func BoolValue(ptr *bool, fallback bool) bool {
	if ptr == nil {
		return fallback
	}
	return *ptr
}

// IntValue dereferences an optional setting, falling back when unset.
func IntValue(ptr *int, fallback int) int {
	if ptr == nil {
		return fallback
	}
	return *ptr
}

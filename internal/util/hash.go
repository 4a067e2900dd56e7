// Package util provides shared utility functions.
package util

import (
	"fmt"
	"hash/fnv"
	"net"
)

// ContentID derives a non-zero one-byte identifier from data. Zero is
// reserved on the wire for "nothing stored".
func ContentID(data []byte) uint8 {
	h := fnv.New32a()
	h.Write(data)
	id := uint8(h.Sum32())
	if id == 0 {
		id = 1
	}
	return id
}

// Digest returns a short hex fingerprint of data for log lines.
func Digest(data []byte) string {
	h := fnv.New64a()
	h.Write(data)
	return fmt.Sprintf("%016x", h.Sum64())
}

// ConnID computes a 4-byte identifier from a connection's local and remote
// addresses. Used to key event subscribers; it does not need to be reversible.
func ConnID(local, remote net.Addr) uint32 {
	h := fnv.New32a()
	if local != nil {
		h.Write([]byte(local.String()))
	}
	if remote != nil {
		h.Write([]byte(remote.String()))
	}
	return h.Sum32()
}

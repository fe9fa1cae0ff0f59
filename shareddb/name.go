package shareddb

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// nameSuffixLength is the longest suffix NameFor appends to a prefix:
// "_", a pid of up to 10 digits, "_" and 8 hex characters.
const nameSuffixLength = 1 + 10 + 1 + 8

// Owner identifies the process that created a shared database. It is
// stored as the database comment.
type Owner struct {
	Host string
	PID  int
}

// String returns the comment form of o.
func (o Owner) String() string {
	return fmt.Sprintf("testonce host=%s pid=%d", o.Host, o.PID)
}

// ParseOwner parses a database comment written by Owner.String.
func ParseOwner(comment string) (Owner, bool) {
	rest, found := strings.CutPrefix(comment, "testonce host=")
	if !found {
		return Owner{}, false
	}
	host, pidStr, found := strings.Cut(rest, " pid=")
	if !found || host == "" {
		return Owner{}, false
	}
	pid, err := strconv.Atoi(pidStr)
	if err != nil || pid <= 0 {
		return Owner{}, false
	}
	return Owner{Host: host, PID: pid}, true
}

// currentOwner returns the owner record for this process.
func currentOwner() (Owner, error) {
	host, err := os.Hostname()
	if err != nil {
		return Owner{}, fmt.Errorf("failed to get hostname: %w", err)
	}
	return Owner{Host: host, PID: os.Getpid()}, nil
}

// NameFor returns the name of a shared database owned by the process pid.
// token tells apart processes with the same pid on different hosts.
func NameFor(prefix string, pid int, token string) string {
	return fmt.Sprintf("%s_%d_%s", prefix, pid, token)
}

// newToken returns 8 random hex characters.
func newToken() (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate database name: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// ParseName returns the pid embedded in the shared database name datname.
// ok is false if datname is not a shared database for prefix.
func ParseName(prefix, datname string) (pid int, ok bool) {
	rest, found := strings.CutPrefix(datname, prefix+"_")
	if !found {
		return 0, false
	}
	pidStr, token, found := strings.Cut(rest, "_")
	if !found || len(token) != 8 || !isDigits(pidStr) {
		return 0, false
	}
	if _, err := hex.DecodeString(token); err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(pidStr)
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

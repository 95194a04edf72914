package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no artifact exists at the requested key.
var ErrNotFound = errors.New("artifact not found")

// Store holds job input and output files. Every key is scoped to
// (owner, job), so two owners can use the same filename without their
// artifacts ever being conflated.
type Store interface {
	Save(ctx context.Context, ownerID string, jobID uuid.UUID, filename string, r io.Reader) (int64, error)
	Open(ctx context.Context, ownerID string, jobID uuid.UUID, filename string) (io.ReadCloser, int64, error)
	Delete(ctx context.Context, ownerID string, jobID uuid.UUID, filename string) error
}

// objectKey builds the namespaced key and rejects anything that could
// escape the (owner, job) scope: empty names, separators, dot-dot.
func objectKey(ownerID string, jobID uuid.UUID, filename string) (string, error) {
	if strings.TrimSpace(ownerID) == "" {
		return "", fmt.Errorf("empty owner id")
	}
	if strings.ContainsAny(ownerID, "/\\") {
		return "", fmt.Errorf("invalid owner id: %q", ownerID)
	}
	if err := checkFilename(filename); err != nil {
		return "", err
	}
	return ownerID + "/" + jobID.String() + "/" + filename, nil
}

func checkFilename(filename string) error {
	if strings.TrimSpace(filename) == "" {
		return fmt.Errorf("empty filename")
	}
	if strings.ContainsAny(filename, "/\\") || strings.Contains(filename, "..") {
		return fmt.Errorf("invalid filename: %q", filename)
	}
	return nil
}

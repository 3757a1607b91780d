// Package tombstone provides the dead-code candidate data model and the
// runtime tracker that reports invocations of instrumented code.
package tombstone

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/zeebo/blake3"
)

// Status is the lifecycle state of a tombstone record.
type Status string

const (
	// StatusActive marks a registered candidate under observation.
	StatusActive Status = "active"
	// StatusResolved is reserved for manual operator intervention; the
	// pipeline never sets it.
	StatusResolved Status = "resolved"
	// StatusRemoved marks a candidate whose source has been excised.
	StatusRemoved Status = "removed"
)

// Record is a registered dead-code candidate. Records are never deleted
// from the store; status transitions preserve the audit history.
type Record struct {
	TombstoneID  string    `json:"tombstone_id"`
	ProjectName  string    `json:"project_name"`
	FunctionName string    `json:"function_name"`
	FilePath     string    `json:"file_path"`
	LineNumber   int       `json:"line_number"`
	Reason       string    `json:"reason"`
	RegisteredAt time.Time `json:"registered_at"`
	Status       Status    `json:"status"`
}

// Event is one observed invocation of an instrumented element.
// Events are append-only; a single event permanently exonerates its
// tombstone for any reconciliation run that sees it.
type Event struct {
	TombstoneID  string            `json:"tombstone_id"`
	ProjectName  string            `json:"project_name"`
	FunctionName string            `json:"function_name"`
	FilePath     string            `json:"file_path"`
	LineNumber   int               `json:"line_number"`
	TriggeredAt  time.Time         `json:"triggered_at"`
	Context      map[string]string `json:"context,omitempty"`
}

// ID derives the stable tombstone identifier from a candidate's location.
// Registration and the runtime tracker both use this function, so an
// instrumented call site always maps back to its registered record without
// a lookup table.
func ID(project, filePath, functionName string, lineNumber int) string {
	content := fmt.Sprintf("%s:%s:%s:%d", project, filePath, functionName, lineNumber)
	sum := blake3.Sum256([]byte(content))
	return hex.EncodeToString(sum[:8])
}

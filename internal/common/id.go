package common

import (
	"github.com/google/uuid"
)

// NewDiscoveryID generates a unique discovery ID with the "dsc_" prefix
func NewDiscoveryID() string {
	return "dsc_" + uuid.New().String()
}

// NewPageID generates a unique discovered-page ID with the "pag_" prefix
func NewPageID() string {
	return "pag_" + uuid.New().String()
}

// NewScanID generates a unique scan ID with the "scn_" prefix
func NewScanID() string {
	return "scn_" + uuid.New().String()
}

// NewBatchID generates a unique batch scan ID with the "bat_" prefix
func NewBatchID() string {
	return "bat_" + uuid.New().String()
}

// NewJobID generates a unique queue job ID with the "job_" prefix
func NewJobID() string {
	return "job_" + uuid.New().String()
}

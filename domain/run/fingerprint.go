package run

import (
	"crypto/sha256"
	"fmt"

	"goparam/domain/core"
)

// AnalysisFingerprint pins everything a reproducible analysis depends on
type AnalysisFingerprint struct {
	DataHash    core.Hash `json:"data_hash"`
	Target      string    `json:"target"`
	ModelKind   string    `json:"model_kind"`
	Seed        int64     `json:"seed"`
	Fingerprint core.Hash `json:"fingerprint"` // Hash of all above
}

// NewAnalysisFingerprint creates a fingerprint from determinism parameters
func NewAnalysisFingerprint(records Collection, target, modelKind string, seed int64) AnalysisFingerprint {
	dataHash := records.ContentHash()
	return AnalysisFingerprint{
		DataHash:    dataHash,
		Target:      target,
		ModelKind:   modelKind,
		Seed:        seed,
		Fingerprint: computeAnalysisFingerprint(dataHash, target, modelKind, seed),
	}
}

func computeAnalysisFingerprint(dataHash core.Hash, target, modelKind string, seed int64) core.Hash {
	data := fmt.Sprintf("data:%s|target:%s|model:%s|seed:%d", dataHash, target, modelKind, seed)
	hash := sha256.Sum256([]byte(data))
	return core.Hash(fmt.Sprintf("%x", hash))
}

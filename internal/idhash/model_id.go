// Package idhash derives deterministic identifiers. The model ID covers
// everything that shapes a posterior, so refitting identical inputs lands on
// the same storage row instead of a duplicate.
package idhash

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"hash"
	"math"
	"sort"
	"strings"

	"github.com/mr-tron/base58"

	"mediamix-lab/internal/domain"
)

// ModelIDPrefix namespaces model identifiers in shared storage.
const ModelIDPrefix = "mmx1"

// DatasetDigest hashes the full dataset content: timestamps, target, and
// spend and control columns in sorted column order.
func DatasetDigest(data *domain.TimeSeries) string {
	h := sha256.New()
	buf := make([]byte, 8)
	for _, ts := range data.Timestamps {
		binary.BigEndian.PutUint64(buf, uint64(ts.UnixNano()))
		h.Write(buf)
	}
	writeFloats(h, buf, data.Target)
	for _, name := range sortedKeys(data.Spend) {
		h.Write([]byte(name))
		writeFloats(h, buf, data.Spend[name])
	}
	for _, name := range sortedKeys(data.Controls) {
		h.Write([]byte(name))
		writeFloats(h, buf, data.Controls[name])
	}
	return base58.Encode(h.Sum(nil))[:16]
}

// ComputeModelID derives the model identifier from the dataset digest, the
// channel and control structure and the fit configuration. Channel and
// control order does not matter.
func ComputeModelID(datasetDigest string, specs []domain.ChannelSpec, controls []string, cfg domain.FitConfig) string {
	sortedSpecs := make([]domain.ChannelSpec, len(specs))
	copy(sortedSpecs, specs)
	sort.Slice(sortedSpecs, func(i, j int) bool { return sortedSpecs[i].Name < sortedSpecs[j].Name })
	sortedControls := make([]string, len(controls))
	copy(sortedControls, controls)
	sort.Strings(sortedControls)

	parts := []string{datasetDigest}
	for _, s := range sortedSpecs {
		parts = append(parts, fmt.Sprintf("%s:%s:%s:%d", s.Name, s.Adstock, s.Saturation, s.MaxLag))
	}
	parts = append(parts,
		strings.Join(sortedControls, ","),
		fmt.Sprintf("%d:%d:%d:%g:%d:%d", cfg.Draws, cfg.Warmup, cfg.Chains, cfg.TargetAccept, cfg.MaxTreeDepth, cfg.Seed),
		fmt.Sprintf("%d:%g:%t:%g:%g:%t", cfg.Harmonics, cfg.SeasonPeriod, cfg.Trend, cfg.BetaScale, cfg.SigmaFloor, cfg.PreEstimate),
	)

	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return ModelIDPrefix + base58.Encode(sum[:])[:16]
}

func writeFloats(h hash.Hash, buf []byte, xs []float64) {
	for _, x := range xs {
		binary.BigEndian.PutUint64(buf, math.Float64bits(x))
		h.Write(buf)
	}
}

func sortedKeys(m map[string][]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package baseline

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"ppde/internal/classify"
	"ppde/internal/complexity"
	"ppde/internal/detectors"
)

// cacheFormat is bumped whenever observation extraction changes shape.
const cacheFormat = "obs1"

// observation is one detector answer at one site of a file snapshot. It holds
// only what depends on file content; stability and tier are applied per
// commit since they depend on history and configuration.
type observation struct {
	Scope      classify.Scope `json:"s"`
	Lines      int            `json:"l"`
	Cyclomatic int            `json:"c"`
	Detector   string         `json:"d"`
	Value      bool           `json:"v"`
}

// observe runs the registry over a parsed file. Failed detector outcomes are
// dropped and counted.
func observe(registry *detectors.Registry, pf *complexity.ParsedFile) (obs []observation, failed int) {
	registry.Evaluate(pf, func(site complexity.Site, detectorID string, value bool, err error) {
		if err != nil {
			failed++
			return
		}
		obs = append(obs, observation{
			Scope:      site.Scope,
			Lines:      site.Metrics.Lines,
			Cyclomatic: site.Metrics.Cyclomatic,
			Detector:   detectorID,
			Value:      value,
		})
	})
	return obs, failed
}

func contentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Signature identifies the detector set whose observations are cached.
func Signature(registry *detectors.Registry) string {
	return cacheFormat + ":" + strings.Join(registry.IDs(), ",")
}

func encodeObservations(obs []observation) (string, error) {
	if obs == nil {
		obs = []observation{}
	}
	data, err := json.Marshal(obs)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeObservations(s string) ([]observation, error) {
	var obs []observation
	if err := json.Unmarshal([]byte(s), &obs); err != nil {
		return nil, err
	}
	return obs, nil
}

// Package computesim simulates the remote compute-scoring collaborator:
// it normalizes processor, warranty, and shipping signals to [0,1] for a
// batch of candidates and attaches synthetic job metadata.
package computesim

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"procura/internal/types"
)

// Factors drive the normalization. Loadable from a JSON file to match
// the shape served by the data endpoint.
type Factors struct {
	ProcessorWeights map[string]float64 `json:"processor_weights"`
	MaxWarrantyYears float64            `json:"max_warranty_years"`
	MaxShippingDays  float64            `json:"max_shipping_days"`
}

// DefaultFactors returns the built-in scoring table.
func DefaultFactors() Factors {
	return Factors{
		ProcessorWeights: map[string]float64{
			"i9":      0.95,
			"ryzen 9": 0.95,
			"i7":      0.85,
			"ryzen 7": 0.85,
			"i5":      0.70,
			"ryzen 5": 0.70,
		},
		MaxWarrantyYears: 3,
		MaxShippingDays:  10,
	}
}

// defaultProcessorScore applies when no table entry matches.
const defaultProcessorScore = 0.7

// LoadFactors reads a scoring-factors JSON file.
func LoadFactors(path string) (Factors, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Factors{}, fmt.Errorf("failed to read scoring factors %s: %w", path, err)
	}
	var f Factors
	if err := json.Unmarshal(data, &f); err != nil {
		return Factors{}, fmt.Errorf("failed to parse scoring factors %s: %w", path, err)
	}
	if f.MaxWarrantyYears <= 0 || f.MaxShippingDays <= 0 {
		return Factors{}, fmt.Errorf("scoring factors %s: max_warranty_years and max_shipping_days must be positive", path)
	}
	return f, nil
}

// Simulator scores candidate batches.
type Simulator struct {
	factors Factors
	logger  *zap.Logger
}

// NewSimulator creates a simulator with the given factors.
func NewSimulator(factors Factors, logger *zap.Logger) *Simulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if factors.MaxWarrantyYears <= 0 || factors.MaxShippingDays <= 0 {
		factors = DefaultFactors()
	}
	return &Simulator{factors: factors, logger: logger.Named("computesim")}
}

// Score scores every candidate in the batch. Returns one ScoredCandidate
// per input, in input order, all sharing the batch's job metadata.
func (s *Simulator) Score(ctx context.Context, candidates []types.Candidate) ([]types.ScoredCandidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	meta := types.JobMeta{
		JobID:           "job-" + uuid.NewString(),
		Network:         "sim-cluster",
		Cost:            fmt.Sprintf("%.4f credits", 0.001+rand.Float64()*0.009),
		NodeLocation:    "us-east-distributed-cluster",
		ExecutionTimeMS: 0, // filled in below
	}

	scored := make([]types.ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		scored = append(scored, types.ScoredCandidate{
			Candidate: c,
			Scores: types.ComputeScore{
				ProcessorScore: s.processorScore(c.Specs.Processor),
				WarrantyScore:  math.Min(float64(c.WarrantyYrs)/s.factors.MaxWarrantyYears, 1.0),
				ShippingScore:  s.shippingScore(c.ShippingDays),
			},
			Meta: meta,
		})
	}

	elapsed := time.Since(start)
	for i := range scored {
		scored[i].Meta.ExecutionTimeMS = int(elapsed.Milliseconds()) + 100 + rand.Intn(200)
	}

	s.logger.Debug("compute scoring complete",
		zap.String("job_id", meta.JobID),
		zap.Int("candidates", len(scored)))
	return scored, nil
}

// processorScore takes the best matching table entry so the result does
// not depend on map iteration order.
func (s *Simulator) processorScore(processor string) float64 {
	p := strings.ToLower(processor)
	best := 0.0
	matched := false
	for key, val := range s.factors.ProcessorWeights {
		if strings.Contains(p, strings.ToLower(key)) && val > best {
			best = val
			matched = true
		}
	}
	if !matched {
		return defaultProcessorScore
	}
	return best
}

func (s *Simulator) shippingScore(days int) float64 {
	score := (s.factors.MaxShippingDays - float64(days)) / s.factors.MaxShippingDays
	// Round to 2 decimals like the upstream scoring service.
	return math.Round(math.Max(score, 0)*100) / 100
}

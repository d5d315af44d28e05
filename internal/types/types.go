// Package types holds the domain model shared across the procurement
// pipeline: requirements, catalog candidates, stage outputs, and the
// per-request state machine vocabulary.
package types

import "time"

// UseCase is the workload a procurement request is buying for.
type UseCase string

const (
	UseCaseOfficeWork   UseCase = "office-work"
	UseCaseProgramming  UseCase = "programming"
	UseCaseVideoEditing UseCase = "video-editing"
	UseCaseDataScience  UseCase = "data-science"
	UseCaseGaming       UseCase = "gaming"
)

// KnownUseCases lists every use case the catalog understands.
func KnownUseCases() []UseCase {
	return []UseCase{
		UseCaseOfficeWork,
		UseCaseProgramming,
		UseCaseVideoEditing,
		UseCaseDataScience,
		UseCaseGaming,
	}
}

// Requirement is the parsed user requirement. Immutable once a request
// has been created for it.
type Requirement struct {
	Quantity          int     `json:"quantity"`
	MaxBudgetPerUnit  float64 `json:"max_budget_per_unit"`
	UseCase           UseCase `json:"use_case"`
	MinRAMGB          int     `json:"min_ram_gb,omitempty"`
	MinStorageGB      int     `json:"min_storage_gb,omitempty"`
	PreferredBrand    string  `json:"preferred_brand,omitempty"`
	PreferPerformance bool    `json:"prefer_performance"`
}

// Specs is the nested hardware block of a catalog candidate.
type Specs struct {
	Processor  string  `json:"processor"`
	RAMGB      int     `json:"ram_gb"`
	StorageGB  int     `json:"storage_gb"`
	GPU        string  `json:"gpu"`
	ScreenSize float64 `json:"screen_size"`
	WeightLbs  float64 `json:"weight_lbs"`
}

// BulkTier is one bulk-discount tier. Tiers are kept in catalog order;
// the negotiation resolver sorts its own copy.
type BulkTier struct {
	MinQty      int     `json:"min_qty"`
	DiscountPct float64 `json:"discount_pct"`
}

// Candidate is a catalog item eligible for procurement. Produced by the
// discovery stage and immutable thereafter.
type Candidate struct {
	ID           string     `json:"id"`
	Model        string     `json:"model"`
	Brand        string     `json:"brand"`
	Specs        Specs      `json:"specs"`
	Price        float64    `json:"price"`
	Supplier     string     `json:"supplier"`
	Rating       float64    `json:"rating"`
	ReviewCount  int        `json:"review_count"`
	ShippingDays int        `json:"shipping_days"`
	WarrantyYrs  int        `json:"warranty_years"`
	Stock        int        `json:"stock"`
	UseCases     []string   `json:"use_cases"`
	BulkPricing  []BulkTier `json:"bulk_pricing"`
}

// SupportsUseCase reports whether the candidate lists the given use case.
func (c Candidate) SupportsUseCase(uc UseCase) bool {
	for _, s := range c.UseCases {
		if s == string(uc) {
			return true
		}
	}
	return false
}

// JobMeta is opaque metadata attached by the compute-scoring collaborator.
// The core never branches on these fields.
type JobMeta struct {
	JobID           string `json:"compute_job_id"`
	Network         string `json:"network"`
	Cost            string `json:"compute_cost"`
	ExecutionTimeMS int    `json:"execution_time_ms"`
	NodeLocation    string `json:"node_location"`
}

// ComputeScore is the per-candidate output of the compute-scoring stage.
// All three components are normalized to [0,1] by the collaborator.
type ComputeScore struct {
	ProcessorScore float64 `json:"processor_score"`
	WarrantyScore  float64 `json:"warranty_score"`
	ShippingScore  float64 `json:"shipping_score"`
}

// ScoredCandidate pairs a candidate with its compute scores and job metadata.
type ScoredCandidate struct {
	Candidate Candidate    `json:"candidate"`
	Scores    ComputeScore `json:"scores"`
	Meta      JobMeta      `json:"meta"`
}

// SymbolicSource records where a candidate's symbolic score came from.
type SymbolicSource string

const (
	SymbolicSourceEngine   SymbolicSource = "engine"
	SymbolicSourceFallback SymbolicSource = "fallback"
)

// RankedCandidate is one entry in the hybrid scoring engine's output.
// The ranked sequence is immutable after creation.
type RankedCandidate struct {
	Candidate     Candidate      `json:"candidate"`
	FinalScore    float64        `json:"final_score"`
	SymbolicScore float64        `json:"symbolic_score"`
	ComputeScore  float64        `json:"compute_score"`
	ValueScore    float64        `json:"value_score"`
	Source        SymbolicSource `json:"symbolic_source"`
	Rationale     string         `json:"rationale"`
}

// NegotiationOutcome is the bulk-negotiation decision for a request.
// A rejected outcome is a terminal result, not an error.
type NegotiationOutcome struct {
	Accepted       bool    `json:"accepted"`
	OriginalPrice  float64 `json:"original_price"`
	FinalUnitPrice float64 `json:"final_price_per_unit"`
	TotalCost      float64 `json:"total_cost"`
	DiscountPct    float64 `json:"discount_applied_pct"`
	Savings        float64 `json:"savings"`
	Note           string  `json:"note"`
}

// State is a pipeline stage for one request id. Transitions are strictly
// ordered; Settled and Failed are terminal.
type State string

const (
	StateReceived       State = "RECEIVED"
	StateDiscovering    State = "DISCOVERING"
	StateComputeScoring State = "COMPUTE_SCORING"
	StateEvaluating     State = "EVALUATING"
	StateNegotiating    State = "NEGOTIATING"
	StateSettled        State = "SETTLED"
	StateFailed         State = "FAILED"
)

// Terminal reports whether no further stage transitions occur from s.
func (s State) Terminal() bool {
	return s == StateSettled || s == StateFailed
}

// Event is a single timestamped line on a request's event stream.
type Event struct {
	RequestID string    `json:"request_id"`
	Message   string    `json:"message"`
	Done      bool      `json:"done"`
	Error     bool      `json:"error"`
	At        time.Time `json:"at"`
}

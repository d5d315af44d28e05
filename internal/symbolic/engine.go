package symbolic

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	_ "github.com/google/mangle/builtin"
	mengine "github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	"github.com/google/mangle/parse"
	"go.uber.org/zap"

	"procura/internal/types"
)

// Config holds Mangle engine configuration.
type Config struct {
	SchemaPath   string        // optional override for the built-in schema
	QueryTimeout time.Duration // bound on a single evaluation
}

// Engine scores candidates by asserting classification facts into a
// Datalog program and reading back the derived suitability signals.
// Every Score call evaluates against a fresh fact store, so the engine
// is safe for concurrent use; the analyzed program is immutable after
// construction.
type Engine struct {
	programInfo    *analysis.ProgramInfo
	predicateIndex map[string]ast.PredicateSym
	timeout        time.Duration
	logger         *zap.Logger
}

// NewEngine parses and analyzes the knowledge base once at startup.
func NewEngine(cfg Config, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	schema := defaultSchema
	if cfg.SchemaPath != "" {
		data, err := os.ReadFile(cfg.SchemaPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read schema file %s: %w", cfg.SchemaPath, err)
		}
		schema = string(data)
	}

	unit, err := parse.Unit(bytes.NewReader([]byte(schema)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}

	programInfo, err := analysis.AnalyzeOneUnit(unit, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze schema: %w", err)
	}

	index := make(map[string]ast.PredicateSym, len(programInfo.Decls))
	for sym := range programInfo.Decls {
		index[sym.Symbol] = sym
	}

	timeout := cfg.QueryTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &Engine{
		programInfo:    programInfo,
		predicateIndex: index,
		timeout:        timeout,
		logger:         logger.Named("symbolic"),
	}, nil
}

// Name implements Scorer.
func (e *Engine) Name() string { return "mangle" }

// Score implements Scorer. It asserts candidate and preference facts,
// evaluates the rules, and blends derived signals into a [0,1] score per
// candidate.
func (e *Engine) Score(ctx context.Context, candidates []types.Candidate, req types.Requirement) (map[string]float64, error) {
	if len(candidates) == 0 {
		return map[string]float64{}, nil
	}

	store := factstore.NewSimpleInMemoryStore()
	for _, c := range candidates {
		for _, f := range e.classify(c, req) {
			store.Add(f)
		}
	}
	for _, f := range e.preferenceFacts(req) {
		store.Add(f)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	errCh := make(chan error, 1)
	go func() {
		_, err := mengine.EvalProgramWithStats(e.programInfo, store)
		errCh <- err
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return nil, fmt.Errorf("rule evaluation failed: %w", err)
		}
	case <-ctx.Done():
		return nil, fmt.Errorf("rule evaluation timed out after %v: %w", time.Since(start), ctx.Err())
	}

	scores := make(map[string]float64, len(candidates))
	for _, c := range candidates {
		scores[c.ID] = 0
	}

	if err := e.collect(store, "signal", func(id, kind string) {
		if _, ok := scores[id]; ok {
			scores[id] += signalWeights[kind]
		}
	}); err != nil {
		return nil, err
	}
	if err := e.collect(store, "recommended", func(id, _ string) {
		if _, ok := scores[id]; ok {
			scores[id] += recommendedBonus
		}
	}); err != nil {
		return nil, err
	}

	e.logger.Debug("symbolic evaluation complete",
		zap.Int("candidates", len(candidates)),
		zap.Duration("took", time.Since(start)))
	return scores, nil
}

// collect reads all facts of the named predicate, passing the candidate
// id (arg 0) and, for binary predicates, the name constant (arg 1).
func (e *Engine) collect(store factstore.FactStore, predicate string, visit func(id, kind string)) error {
	sym, ok := e.predicateIndex[predicate]
	if !ok {
		return fmt.Errorf("predicate %s is not declared in the schema", predicate)
	}

	return store.GetFacts(ast.NewQuery(sym), func(atom ast.Atom) error {
		if len(atom.Args) == 0 {
			return nil
		}
		id, ok := stringValue(atom.Args[0])
		if !ok {
			return nil
		}
		kind := ""
		if len(atom.Args) > 1 {
			kind, _ = stringValue(atom.Args[1])
		}
		visit(id, kind)
		return nil
	})
}

// classify turns one candidate into its base facts. The boundary between
// Go and Datalog is deliberate: Go handles string matching and numeric
// thresholds, the rules handle the logical combination.
func (e *Engine) classify(c types.Candidate, req types.Requirement) []ast.Atom {
	cpu := "/standard"
	if containsAny(c.Specs.Processor, "i7", "i9", "Ryzen 7", "Ryzen 9") {
		cpu = "/highend"
	}

	gpu := "/integrated"
	if containsAny(c.Specs.GPU, "RTX", "GTX", "Radeon") {
		gpu = "/dedicated"
	}

	ramThreshold := 16
	if req.MinRAMGB > ramThreshold {
		ramThreshold = req.MinRAMGB
	}
	ram := "/modest"
	if c.Specs.RAMGB >= ramThreshold {
		ram = "/ample"
	}

	price := "/over"
	if c.Price <= req.MaxBudgetPerUnit {
		price = "/within"
	}

	reviews := "/weak"
	if c.Rating >= 4.0 && c.ReviewCount >= 200 {
		reviews = "/strong"
	}

	return []ast.Atom{
		e.atom("candidate", ast.String(c.ID)),
		e.atom("cpu_class", ast.String(c.ID), name(cpu)),
		e.atom("gpu_class", ast.String(c.ID), name(gpu)),
		e.atom("ram_band", ast.String(c.ID), name(ram)),
		e.atom("price_band", ast.String(c.ID), name(price)),
		e.atom("review_band", ast.String(c.ID), name(reviews)),
	}
}

func (e *Engine) preferenceFacts(req types.Requirement) []ast.Atom {
	perf := "/false"
	if req.PreferPerformance {
		perf = "/true"
	}
	return []ast.Atom{
		e.atom("pref", name("/prefer_performance"), name(perf)),
	}
}

func (e *Engine) atom(predicate string, args ...ast.BaseTerm) ast.Atom {
	sym, ok := e.predicateIndex[predicate]
	if !ok {
		// Declared predicates are fixed by the schema; an unknown one
		// here is a schema/code mismatch surfaced at the first Score.
		sym = ast.PredicateSym{Symbol: predicate, Arity: len(args)}
	}
	return ast.Atom{Predicate: sym, Args: args}
}

func name(s string) ast.BaseTerm {
	c, err := ast.Name(s)
	if err != nil {
		return ast.String(s)
	}
	return c
}

func stringValue(term ast.BaseTerm) (string, bool) {
	c, ok := term.(ast.Constant)
	if !ok {
		return "", false
	}
	switch c.Type {
	case ast.StringType, ast.NameType:
		return c.Symbol, true
	default:
		return "", false
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

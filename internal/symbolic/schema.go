package symbolic

// defaultSchema is the built-in knowledge base: declarations for the
// base facts the engine asserts per candidate, and the suitability rules
// that derive signal/2 and recommended/1 from them. A custom schema can
// be loaded from disk via Config.SchemaPath.
//
// The Go side handles string matching and numeric thresholds when
// classifying candidates into bands; the rules handle the logical
// combination. A dedicated GPU only counts when the buyer asked for
// performance, or when the machine has the memory to feed it.
const defaultSchema = `
Decl candidate(Id).
Decl cpu_class(Id, Class).
Decl gpu_class(Id, Class).
Decl ram_band(Id, Band).
Decl price_band(Id, Band).
Decl review_band(Id, Band).
Decl pref(Key, Value).
Decl signal(Id, Kind).
Decl recommended(Id).

signal(Id, /cpu_highend) :- cpu_class(Id, /highend).
signal(Id, /ram_ample) :- ram_band(Id, /ample).
signal(Id, /reviews_strong) :- review_band(Id, /strong).
signal(Id, /price_within) :- price_band(Id, /within).

signal(Id, /gpu_dedicated) :- gpu_class(Id, /dedicated), pref(/prefer_performance, /true).
signal(Id, /gpu_dedicated) :- gpu_class(Id, /dedicated), ram_band(Id, /ample).

recommended(Id) :- signal(Id, /cpu_highend), signal(Id, /price_within), signal(Id, /reviews_strong).
`

// signalWeights maps each derived signal to its contribution. The sum of
// all weights plus the recommendation bonus is 1.0, keeping engine
// scores inside [0,1].
var signalWeights = map[string]float64{
	"/cpu_highend":    0.22,
	"/gpu_dedicated":  0.18,
	"/ram_ample":      0.18,
	"/reviews_strong": 0.16,
	"/price_within":   0.16,
}

// recommendedBonus is added when recommended/1 derives for a candidate.
const recommendedBonus = 0.10

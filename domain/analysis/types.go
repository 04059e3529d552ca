package analysis

import (
	"goparam/domain/core"
	"goparam/domain/run"
	"goparam/domain/space"
)

// FeatureImportance is the mean absolute contribution of one encoded column
type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// ParamImportance groups encoded columns back to their source parameter
type ParamImportance struct {
	Param      string  `json:"param"`
	Importance float64 `json:"importance"`
}

// Dependence holds (value, contribution) pairs of one top-ranked feature
type Dependence struct {
	Feature       string    `json:"feature"`
	Values        []float64 `json:"values"`
	Contributions []float64 `json:"contributions"`
	InteractsWith string    `json:"interacts_with,omitempty"`
}

// PartialDependence is the average prediction with one feature forced to each grid value
type PartialDependence struct {
	Feature string    `json:"feature"`
	Grid    []float64 `json:"grid"`
	Average []float64 `json:"average"`
}

// ModelSummary describes the fitted surrogate
type ModelSummary struct {
	Kind          string  `json:"kind"`
	Rows          int     `json:"rows"`
	Features      int     `json:"features"`
	Estimators    int     `json:"estimators"`
	MaxDepth      int     `json:"max_depth"`
	CVFolds       int     `json:"cv_folds,omitempty"`
	CVR2          float64 `json:"cv_r2"`
	CVR2Std       float64 `json:"cv_r2_std"`
	HasCV         bool    `json:"has_cv"`
	LowConfidence bool    `json:"low_confidence"`
	Baseline      float64 `json:"baseline"`
}

// ImportanceReport is the output of the surrogate + attribution phases
type ImportanceReport struct {
	Outcome     Outcome             `json:"outcome"`
	Model       ModelSummary        `json:"model"`
	Ranking     []FeatureImportance `json:"ranking"`
	ByParameter []ParamImportance   `json:"by_parameter"`
	Dependence  []Dependence        `json:"dependence,omitempty"`
	Partial     []PartialDependence `json:"partial,omitempty"`
}

// Candidate is an unseen configuration proposed by the recommender
type Candidate struct {
	Rank          int                  `json:"rank"`
	Params        map[string]run.Value `json:"params"`
	Predicted     float64              `json:"predicted"`
	HasPrediction bool                 `json:"has_prediction"`
}

// Recommendation is the output of the search phase
type Recommendation struct {
	Outcome    Outcome     `json:"outcome"`
	Space      space.Space `json:"space"`
	Source     string      `json:"source"`
	Sampled    int         `json:"sampled"`
	Candidates []Candidate `json:"candidates"`
}

// Refutation is one robustness check of a causal estimate
type Refutation struct {
	Method      string  `json:"method"`
	NewEffect   float64 `json:"new_effect"`
	Passed      bool    `json:"passed"`
	Simulations int     `json:"simulations"`
}

// Counterfactual compares one run's fitted outcome under observed and flipped treatment
type Counterfactual struct {
	Label     string  `json:"label"`
	Treatment float64 `json:"treatment"`
	Actual    float64 `json:"actual"`
	Observed  float64 `json:"observed"`
	Flipped   float64 `json:"counterfactual"`
	Delta     float64 `json:"delta"`
}

// CausalEstimate is the output of the causal phase
type CausalEstimate struct {
	Outcome         Outcome          `json:"outcome"`
	Target          string           `json:"target"`
	Treatment       string           `json:"treatment,omitempty"`
	Rule            string           `json:"rule,omitempty"`
	Rows            int              `json:"rows"`
	Treated         int              `json:"treated"`
	Confounders     []string         `json:"confounders,omitempty"`
	ATE             float64          `json:"ate"`
	StdErr          float64          `json:"std_err"`
	PValue          float64          `json:"p_value"`
	Refutations     []Refutation     `json:"refutations,omitempty"`
	Counterfactuals []Counterfactual `json:"counterfactuals,omitempty"`
}

// MetricSummary describes one metric across the run set
type MetricSummary struct {
	Name   string  `json:"name"`
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// ParamSummary describes the observed values of one parameter
type ParamSummary struct {
	Name     string `json:"name"`
	Distinct int    `json:"distinct"`
	Missing  int    `json:"missing"`
	Numeric  bool   `json:"numeric"`
}

// DatasetSummary is the descriptive overview of the run set
type DatasetSummary struct {
	Runs      int             `json:"runs"`
	Excluded  []run.Exclusion `json:"excluded,omitempty"`
	From      core.Timestamp  `json:"from"`
	To        core.Timestamp  `json:"to"`
	Metrics   []MetricSummary `json:"metrics"`
	Params    []ParamSummary  `json:"params"`
	BestLabel string          `json:"best_label,omitempty"`
	BestValue float64         `json:"best_value"`
}

// Report collects every phase of one analysis invocation
type Report struct {
	ID             core.ReportID           `json:"id"`
	Fingerprint    run.AnalysisFingerprint `json:"fingerprint"`
	Target         string                  `json:"target"`
	CreatedAt      core.Timestamp          `json:"created_at"`
	Summary        DatasetSummary          `json:"summary"`
	Importance     *ImportanceReport       `json:"importance,omitempty"`
	Recommendation *Recommendation         `json:"recommendation,omitempty"`
	Causal         *CausalEstimate         `json:"causal,omitempty"`
}

package testkit

import (
	"testing"

	"goparam/domain/run"
)

func TestRunGenerator_Factorial(t *testing.T) {
	g := NewRunGenerator(DefaultRunConfig())
	runs := g.Generate()

	if len(runs) != 3*3*3*4 {
		t.Fatalf("expected 108 runs, got %d", len(runs))
	}
	keys := runs.ConfigKeys(runs.ParamNames())
	if len(keys) != 108 {
		t.Errorf("expected 108 distinct configurations, got %d", len(keys))
	}
	for _, r := range runs {
		if err := r.Validate(); err != nil {
			t.Errorf("generated record invalid: %v", err)
		}
		f1, _ := r.Metric("llm_f1")
		if d := f1 - g.TrueScore(r.Params); d > 0.02 || d < -0.02 {
			t.Errorf("%s: noise %.4f outside bound", r.Label, d)
		}
	}
}

func TestRunGenerator_GroundTruth(t *testing.T) {
	g := NewRunGenerator(DefaultRunConfig())
	want := []string{"query_mode", "param_chunk_size", "param_rerank_threshold", "top_k"}
	got := g.ExpectedRanking()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected ranking %v, got %v", want, got)
		}
	}

	best := g.BestConfig()
	if !best["query_mode"].Equal(run.Category("hybrid")) || !best["top_k"].Equal(run.Number(15)) {
		t.Errorf("unexpected best config %v", best)
	}
}

func TestRunGenerator_Deterministic(t *testing.T) {
	a := NewRunGenerator(DefaultRunConfig()).Generate()
	b := NewRunGenerator(DefaultRunConfig()).Generate()
	if a.ContentHash() != b.ContentHash() {
		t.Error("expected identical runs for identical seeds")
	}

	cfg := TreatmentRunConfig()
	runs := NewRunGenerator(cfg).Generate()
	if len(runs) != 2*3*4*2 {
		t.Errorf("expected 48 treatment runs, got %d", len(runs))
	}
}

package run

// KnownMetrics are the evaluation scores a ragcheck report carries
var KnownMetrics = []string{
	"llm_f1",
	"llm_recall",
	"llm_precision",
	"llm_mrr",
	"llm_hitrate",
	"graph_recall",
	"graph_mrr",
	"graph_ndcg",
}

// IsKnownMetric reports whether name is one of KnownMetrics
func IsKnownMetric(name string) bool {
	for _, m := range KnownMetrics {
		if m == name {
			return true
		}
	}
	return false
}

package passes

import (
	"fmt"

	"github.com/VictoriaMetrics/metrics"
)

// lvnAliases counts definitions renamed by value numbering because a later
// definition in the same block reuses their name.
var lvnAliases = metrics.NewCounter(`brilopt_lvn_aliases_total`)

// Rewrites returns the counter of instructions rewritten or removed by the
// named pass.
func Rewrites(pass string) *metrics.Counter {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`brilopt_rewrites_total{pass=%q}`, pass))
}

func passRuns(pass string) *metrics.Counter {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`brilopt_pass_runs_total{pass=%q}`, pass))
}

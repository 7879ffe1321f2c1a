package flint

import (
	"fmt"
	"os"
	"time"
)

// globalDebug enables fail-fast checks and per-frame stats logging.
// Set via Stage.SetDebugMode. Plain bool, no atomic: flint is single-threaded.
var globalDebug bool

func debugEnabled() bool {
	return globalDebug
}

// debugStats holds per-frame timing and draw-call metrics.
// Only populated when debug mode is on.
type debugStats struct {
	renderTime   time.Duration
	commandCount int
	drawCalls    int
}

// debugLog prints timing and draw-call stats to stderr.
func debugLog(stats debugStats) {
	_, _ = fmt.Fprintf(os.Stderr,
		"[flint] render: %v | commands: %d | draw calls: %d\n",
		stats.renderTime, stats.commandCount, stats.drawCalls)
}

// debugCheckDisposed panics with a descriptive message when a disposed node is
// used in a tree operation. In release mode callers skip this entirely.
func debugCheckDisposed(n *Node, op string) {
	if n.disposed {
		panic(fmt.Sprintf("flint debug: %s on disposed node %q (ID was %d)", op, n.Name, n.ID))
	}
}

// debugMaxTreeDepth matches the ancestor-walk bound in TransformToSpace;
// deeper trees would break space conversion before they break rendering.
const debugMaxTreeDepth = maxAncestorDepth

func debugCheckTreeDepth(n *Node) {
	depth := 0
	for p := n; p != nil; p = p.Parent {
		depth++
	}
	if depth > debugMaxTreeDepth {
		_, _ = fmt.Fprintf(os.Stderr, "[flint] warning: tree depth %d exceeds %d (node %q)\n",
			depth, debugMaxTreeDepth, n.Name)
	}
}

// countBatches counts contiguous runs of batch-compatible commands in a
// sorted command list: the number of draw calls submission will produce for
// the mergeable geometry.
func countBatches(commands []RenderCommand) int {
	count := 0
	inRun := false
	var runStyle MeshStyle
	var runBlend BlendMode
	for i := range commands {
		cmd := &commands[i]
		if cmd.directImage != nil || cmd.finalFilter != nil || cmd.excludeFromBatch {
			count++
			inRun = false
			continue
		}
		if !inRun || runBlend != cmd.blend || !runStyle.CanBatchWith(cmd.style) {
			count++
			inRun = true
			runStyle = cmd.style
			runBlend = cmd.blend
		}
	}
	return count
}

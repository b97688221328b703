package pipeline

// EdgeKind distinguishes how an edge delivers content from its source
// executor to its target executor.
type EdgeKind string

const (
	// EdgeSequential delivers the source's whole output (a single item or a
	// list) to the target as one message, in arrival order.
	EdgeSequential EdgeKind = "sequential"
	// EdgeParallel is identical to EdgeSequential at the routing level; the
	// parallelism it names lives inside the source ParallelExecutor, not in
	// the edge itself.
	EdgeParallel EdgeKind = "parallel"
	// EdgeJoin marks the target as a fan-in point: the target only runs
	// once it has received one item from every incoming join edge sharing
	// its JoinGroup, pairing arrivals by arrival order.
	EdgeJoin EdgeKind = "join"
	// EdgeConditional only delivers an item when Condition evaluates true
	// against the item's data.
	EdgeConditional EdgeKind = "conditional"
)

// Edge connects one executor's output to another executor's input.
type Edge struct {
	From string
	To   string
	Kind EdgeKind

	// Condition is the routing expression for EdgeConditional edges,
	// evaluated against the content item's Data/SummaryData fields via the
	// condition package. Empty for every other edge kind.
	Condition string

	// JoinGroup names the set of edges a join target waits on together; the
	// factory sets it to the target's ID. The engine does not read it: it
	// groups join edges by To and pairs arrivals by order, so the Nth item
	// received on each incoming join edge of a target forms one join tuple.
	JoinGroup string
}

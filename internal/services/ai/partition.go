package ai

const (
	defaultMiniBatchSize = 5
	maxMiniBatchSize     = 10
	defaultBatchSize     = 100
)

// Partition splits criteria into fixed-size mini-batches. The input order
// is preserved, so the same criteria list always produces the same
// partitioning; checkpoint indices stay valid across restarts.
func Partition(criteria []Criterion, miniBatchSize int) [][]Criterion {
	if miniBatchSize < 1 {
		miniBatchSize = defaultMiniBatchSize
	}
	if miniBatchSize > maxMiniBatchSize {
		miniBatchSize = maxMiniBatchSize
	}

	var batches [][]Criterion
	for start := 0; start < len(criteria); start += miniBatchSize {
		end := start + miniBatchSize
		if end > len(criteria) {
			end = len(criteria)
		}
		batches = append(batches, criteria[start:end])
	}
	return batches
}

// Group collects mini-batches into scheduling batches of at most
// batchSize mini-batches each. Order is preserved and mini-batch indices
// stay global across groups, so checkpoint and cache keys are unaffected
// by the grouping.
func Group(minis [][]Criterion, batchSize int) [][][]Criterion {
	if batchSize < 1 {
		batchSize = defaultBatchSize
	}

	var batches [][][]Criterion
	for start := 0; start < len(minis); start += batchSize {
		end := start + batchSize
		if end > len(minis) {
			end = len(minis)
		}
		batches = append(batches, minis[start:end])
	}
	return batches
}

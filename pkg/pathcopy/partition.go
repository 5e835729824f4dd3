package pathcopy

// partition splits the work set into contiguous, non-overlapping chunks, one
// per worker slot. Chunk size is ceil(n/workers); the last chunk may be
// shorter, and fewer than 'workers' chunks are produced when the work set is
// small. No file is inspected here, it is pure index slicing over the frozen
// work set, so the union of all chunks is exactly the input.
func partition(workSet []string, workers int) [][]string {
	if len(workSet) == 0 {
		return nil
	}
	if workers < 1 {
		workers = 1
	}

	chunkSize := (len(workSet) + workers - 1) / workers
	chunks := make([][]string, 0, workers)
	for start := 0; start < len(workSet); start += chunkSize {
		end := min(start+chunkSize, len(workSet))
		chunks = append(chunks, workSet[start:end])
	}
	return chunks
}

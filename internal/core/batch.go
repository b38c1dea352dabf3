package core

// Artifact is one generated job script ready for submission.
type Artifact struct {
	Name string
	Path string
}

// ChunkArtifacts splits artifacts into batches of at most batchSize, so large
// sweeps can pause between scheduler bursts. A non-positive size keeps
// everything in a single batch.
func ChunkArtifacts(artifacts []Artifact, batchSize int) [][]Artifact {
	if batchSize <= 0 {
		return [][]Artifact{artifacts}
	}
	var batches [][]Artifact
	for i := 0; i < len(artifacts); i += batchSize {
		end := i + batchSize
		if end > len(artifacts) {
			end = len(artifacts)
		}
		batches = append(batches, artifacts[i:end])
	}
	return batches
}

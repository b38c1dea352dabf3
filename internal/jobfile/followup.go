package jobfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// GenerateFollowups scans a directory of completed solution files and renders
// one refinement script per solution, warm-started from that solution file.
// Subdirectories are skipped and files are processed in sorted order. The
// returned count is the number of scripts written.
func GenerateFollowups(r *Renderer, base Params, solutionsDir, outDir, ext string) (int, error) {
	entries, err := os.ReadDir(solutionsDir)
	if err != nil {
		return 0, fmt.Errorf("read solutions dir: %w", err)
	}

	count := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		stem := strings.TrimSuffix(name, filepath.Ext(name))

		p := base
		p.Name = "refine_" + stem
		p.WarmStart = filepath.Join(solutionsDir, stem+".sol")

		content, err := r.RenderRefine(p)
		if err != nil {
			return count, err
		}
		path, err := WriteArtifact(outDir, p.Name, ext, content)
		if err != nil {
			return count, err
		}
		log.Debug().Str("artifact", path).Msg("generated refinement script")
		count++
	}

	log.Info().Int("count", count).Str("dir", outDir).Msg("follow-up generation complete")
	return count, nil
}

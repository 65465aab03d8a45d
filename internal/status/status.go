package status

import (
	"context"
	"fmt"
	"os"

	"github.com/dusk-indust/repomap/internal/graph"
	"github.com/dusk-indust/repomap/internal/walk"
)

// StepInfo describes the completion state of one step of the workflow.
type StepInfo struct {
	Step     int
	Name     string // human-readable name (e.g. "Index")
	Complete bool
	FilePath string // output file, empty for the index step
}

// RepoStatus reports how much of one repository is indexed.
type RepoStatus struct {
	Name    string
	Indexed bool // a repo node exists
	Files   int
	Dirs    int
}

// IndexStatus is the state of one scan root.
type IndexStatus struct {
	Root     string
	Repos    []RepoStatus
	Steps    []StepInfo
	NextStep int // -1 if all complete
}

// Outputs names the artifacts whose presence completes a step.
type Outputs struct {
	Graph    string
	Services string
}

var stepLabels = [3]string{
	"Index",
	"Dependency graph",
	"Service graph",
}

// NextStep returns the first incomplete step, or -1 if all are complete.
func NextStep(steps []StepInfo) int {
	for _, s := range steps {
		if !s.Complete {
			return s.Step
		}
	}
	return -1
}

// Get reads the store and the output paths and reports the status of root.
// The index step is complete when every repository under root has a repo
// node.
func Get(ctx context.Context, store graph.Store, root string, exclude []string, out Outputs) (IndexStatus, error) {
	st := IndexStatus{Root: root}

	byRepo := make(map[string]*RepoStatus)
	for _, dir := range walk.New(root, exclude...).Repos() {
		name, _ := walk.RepoOf(root, dir)
		st.Repos = append(st.Repos, RepoStatus{Name: name})
	}
	for i := range st.Repos {
		byRepo[st.Repos[i].Name] = &st.Repos[i]
	}

	for _, typ := range []graph.NodeType{graph.NodeTypeRepo, graph.NodeTypeDir, graph.NodeTypeFile} {
		recs, err := store.Get(ctx, graph.OfType(typ))
		if err != nil {
			return st, fmt.Errorf("load %s nodes: %w", typ, err)
		}
		for _, rec := range recs {
			name, ok := walk.RepoOf(root, rec.ID)
			rs := byRepo[name]
			if !ok || rs == nil {
				continue
			}
			switch typ {
			case graph.NodeTypeRepo:
				rs.Indexed = true
			case graph.NodeTypeDir:
				rs.Dirs++
			case graph.NodeTypeFile:
				rs.Files++
			}
		}
	}

	indexed := len(st.Repos) > 0
	for _, rs := range st.Repos {
		indexed = indexed && rs.Indexed
	}
	st.Steps = []StepInfo{
		{Step: 0, Name: stepLabels[0], Complete: indexed},
		{Step: 1, Name: stepLabels[1], Complete: exists(out.Graph), FilePath: out.Graph},
		{Step: 2, Name: stepLabels[2], Complete: exists(out.Services), FilePath: out.Services},
	}
	st.NextStep = NextStep(st.Steps)
	return st, nil
}

func exists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

// Package httplink matches outbound HTTP calls to declared routes and to
// sibling services. Both matchers are heuristics: exact normalized paths
// for routes, URL substrings for services.
package httplink

import (
	"cmp"
	"slices"
	"strings"

	"github.com/dusk-indust/repomap/internal/walk"
)

// Service is one top-level repository addressable over HTTP.
type Service struct {
	RepoName string
	Aliases  []string
}

// Registry maps repositories to their aliases and owned files.
type Registry struct {
	root     string
	services map[string]*Service
	files    map[string][]string
}

// NewRegistry groups files by their top-level repository under root. Each
// repository is its own service with its own name as the only alias.
func NewRegistry(root string, files []string) *Registry {
	r := &Registry{
		root:     root,
		services: make(map[string]*Service),
		files:    make(map[string][]string),
	}
	for _, f := range files {
		repo, ok := walk.RepoOf(root, f)
		if !ok {
			continue
		}
		if _, seen := r.services[repo]; !seen {
			r.services[repo] = &Service{RepoName: repo, Aliases: []string{repo}}
		}
		r.files[repo] = append(r.files[repo], f)
	}
	return r
}

// AddAlias registers an extra alias for repo. Unknown repos are ignored.
func (r *Registry) AddAlias(repo, alias string) {
	svc, ok := r.services[repo]
	if !ok || alias == "" || slices.Contains(svc.Aliases, alias) {
		return
	}
	svc.Aliases = append(svc.Aliases, alias)
}

// Services returns the registered services sorted by name.
func (r *Registry) Services() []Service {
	out := make([]Service, 0, len(r.services))
	for _, svc := range r.services {
		out = append(out, Service{RepoName: svc.RepoName, Aliases: slices.Clone(svc.Aliases)})
	}
	slices.SortFunc(out, func(a, b Service) int { return cmp.Compare(a.RepoName, b.RepoName) })
	return out
}

// Files returns the files owned by repo.
func (r *Registry) Files(repo string) []string {
	return slices.Clone(r.files[repo])
}

// RepoOf returns the service owning path.
func (r *Registry) RepoOf(path string) (string, bool) {
	repo, ok := walk.RepoOf(r.root, path)
	if !ok {
		return "", false
	}
	_, known := r.services[repo]
	return repo, known
}

// MatchService returns the service whose alias occurs in url. Longer
// aliases are tried first so "svc-b" wins over "svc"; ties break by
// repository name. A best match on exclude (the caller's own repository)
// reports no match.
func (r *Registry) MatchService(url, exclude string) (string, bool) {
	type candidate struct{ alias, repo string }
	var cands []candidate
	for name, svc := range r.services {
		for _, a := range svc.Aliases {
			cands = append(cands, candidate{alias: a, repo: name})
		}
	}
	slices.SortFunc(cands, func(a, b candidate) int {
		if c := cmp.Compare(len(b.alias), len(a.alias)); c != 0 {
			return c
		}
		return cmp.Compare(a.repo, b.repo)
	})
	for _, c := range cands {
		if !strings.Contains(url, c.alias) {
			continue
		}
		if c.repo == exclude {
			return "", false
		}
		return c.repo, true
	}
	return "", false
}

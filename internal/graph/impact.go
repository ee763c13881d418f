package graph

import (
	"errors"
	"fmt"

	"sonarfix/internal/observability"
)

var ErrImpactTargetNotFound = errors.New("impact target not found")

// ImpactReport lists the blast radius of changing one file. Direct
// holds the files using it straight away; Transitive holds everything
// further up the usage chain, excluding the direct set and the target
// itself.
type ImpactReport struct {
	TargetPath string
	Direct     []string
	Transitive []string
}

func (r ImpactReport) Total() int {
	return len(r.Direct) + len(r.Transitive)
}

type ImpactTargetError struct {
	Target string
}

func (e *ImpactTargetError) Error() string {
	return fmt.Sprintf("%v: %s", ErrImpactTargetNotFound, e.Target)
}

func (e *ImpactTargetError) Unwrap() error {
	return ErrImpactTargetNotFound
}

// Impact analyzes who breaks when path changes. The target may be a
// tracked file path or a fully qualified class name.
func (t *Tracker) Impact(target string) (ImpactReport, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	observability.ImpactQueriesTotal.Inc()

	path := target
	if _, ok := t.files[path]; !ok {
		if byClass, ok := t.classIndex[target]; ok {
			path = byClass
		} else {
			return ImpactReport{}, &ImpactTargetError{Target: target}
		}
	}

	report := ImpactReport{TargetPath: path}
	report.Direct = sortedSet(t.usedBy[path])

	directSet := make(map[string]bool, len(report.Direct))
	for _, p := range report.Direct {
		directSet[p] = true
	}

	queue := append([]string(nil), report.Direct...)
	seen := make(map[string]bool, len(queue))
	for _, p := range queue {
		seen[p] = true
	}
	seen[path] = true // a cycle back to the target adds nothing

	transitive := make(map[string]bool)
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		for next := range t.usedBy[curr] {
			if seen[next] {
				continue
			}
			seen[next] = true
			queue = append(queue, next)
			if !directSet[next] {
				transitive[next] = true
			}
		}
	}
	report.Transitive = sortedSet(transitive)

	return report, nil
}

package rescue

import (
	"github.com/grailbio/base/log"
)

// taskRole names a concurrent mate-rescue task by the output it produces.
type taskRole string

const (
	// roleMappedReconciliation keeps the mapped reads whose unmapped mate
	// passed classification.
	roleMappedReconciliation taskRole = "mapped-reconciliation"
	// roleBothUnmappedR1 keeps the both-unmapped first reads whose mate
	// passed classification.
	roleBothUnmappedR1 taskRole = "both-unmapped-r1"
	// roleBothUnmappedR2 is the converse of roleBothUnmappedR1.
	roleBothUnmappedR2 taskRole = "both-unmapped-r2"
)

type task struct {
	done chan struct{}
	n    int
	err  error
}

// taskMap holds the running tasks of a pipeline. Each task is started once
// and joined once, at a point chosen by the caller.
type taskMap map[taskRole]*task

func (m taskMap) start(role taskRole, fn func() (int, error)) {
	if _, ok := m[role]; ok {
		log.Panicf("task %s started twice", role)
	}
	t := &task{done: make(chan struct{})}
	m[role] = t
	go func() {
		defer close(t.done)
		t.n, t.err = fn()
	}()
}

// wait blocks until the task of the role completes and returns its result.
func (m taskMap) wait(role taskRole) (int, error) {
	t, ok := m[role]
	if !ok {
		log.Panicf("task %s not started", role)
	}
	<-t.done
	delete(m, role)
	if t.err != nil {
		log.Error.Printf("task %s: %v", role, t.err)
	}
	return t.n, t.err
}

// drain waits for every task not yet joined and discards the results. It is
// used on error paths so that no task outlives the pipeline.
func (m taskMap) drain() {
	for role := range m {
		m.wait(role) // nolint: errcheck
	}
}

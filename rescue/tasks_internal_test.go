package rescue

import (
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/require"
)

func TestTaskMapJoinsByRole(t *testing.T) {
	release := make(chan struct{})
	tasks := taskMap{}
	tasks.start(roleMappedReconciliation, func() (int, error) { return 3, nil })
	tasks.start(roleBothUnmappedR1, func() (int, error) {
		<-release
		return 0, errors.New("r1 failed")
	})

	// The mapped task can be joined while the other one is still blocked.
	n, err := tasks.wait(roleMappedReconciliation)
	require.NoError(t, err)
	expect.EQ(t, n, 3)
	expect.EQ(t, len(tasks), 1)

	close(release)
	_, err = tasks.wait(roleBothUnmappedR1)
	require.Error(t, err)
	expect.EQ(t, len(tasks), 0)
}

func TestTaskMapDrain(t *testing.T) {
	finished := make(chan taskRole, 3)
	tasks := taskMap{}
	for _, role := range []taskRole{roleMappedReconciliation, roleBothUnmappedR1, roleBothUnmappedR2} {
		role := role
		tasks.start(role, func() (int, error) {
			finished <- role
			return 0, nil
		})
	}
	tasks.drain()
	expect.EQ(t, len(tasks), 0)
	expect.EQ(t, len(finished), 3)
}

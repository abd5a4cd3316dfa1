package main

import (
	"path/filepath"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/materescue/rescue"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/expect"
)

func TestExitCode(t *testing.T) {
	tmpDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	_, pathErr := rescue.NewFilePaths(rescue.PathOpts{
		Input:        filepath.Join(tmpDir, "missing.bam"),
		HalfMapped:   filepath.Join(tmpDir, "m.bam"),
		HalfUnmapped: filepath.Join(tmpDir, "u.bam"),
		BothUnmapped: filepath.Join(tmpDir, "a.bam"),
	})

	expect.EQ(t, exitCode(nil), 0)
	expect.EQ(t, exitCode(pathErr), exitSetupError)
	expect.EQ(t, exitCode(rescue.ErrNoQualifyingRegions), exitNoResults)
	// A missing file discovered while the pipeline runs is not a setup error.
	expect.EQ(t, exitCode(errors.E(errors.NotExist, "open", "tmp_mapped.bam")), exitRuntimeError)
	expect.EQ(t, exitCode(errors.E(errors.Integrity, "classify")), exitRuntimeError)
}

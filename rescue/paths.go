package rescue

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/grailbio/base/log"
)

// PathOpts lists the paths given to NewFilePaths.
type PathOpts struct {
	// Input is the BAM file to scan.
	Input string
	// WorkingDir is the parent of the temporary directory. Defaults to
	// os.TempDir().
	WorkingDir string
	// HalfMapped receives the mapped reads with unmapped mates that lie in
	// covered regions.
	HalfMapped string
	// HalfUnmapped receives the unmapped mates of the HalfMapped reads.
	HalfUnmapped string
	// BothUnmapped receives the pairs in which both reads are unmapped.
	BothUnmapped string
	// Filtered, if nonempty, receives every read passing the inclusion filter.
	Filtered string
	// Cleanup causes the temporary directory to be removed by
	// FilePaths.Cleanup.
	Cleanup bool
}

// FilePaths holds the absolute paths of the inputs, outputs and temporary
// files of a run.
type FilePaths struct {
	Input        string
	HalfMapped   string
	HalfUnmapped string
	BothUnmapped string
	Filtered     string

	// WorkingDir is a directory created for this run.
	WorkingDir string

	TmpMapped         string
	TmpMappedFiltered string
	TmpUnmapped       string
	TmpBoth1          string
	TmpBoth2          string
	TmpBoth1Filtered  string
	TmpBoth2Filtered  string

	cleanup bool
	created bool
}

// NewFilePaths resolves the paths in opts and checks that the input exists,
// that the directory of every output exists, and that no output would
// overwrite the input. It then creates a fresh working directory. Any problem
// has kind errors.Precondition; see IsPathError.
func NewFilePaths(opts PathOpts) (*FilePaths, error) {
	var err error
	p := &FilePaths{cleanup: opts.Cleanup}
	abs := func(path string) string {
		if path == "" || err != nil {
			return path
		}
		var a string
		if a, err = filepath.Abs(path); err != nil {
			err = pathError(path, "resolve path", err)
		}
		return a
	}
	p.Input = abs(opts.Input)
	p.HalfMapped = abs(opts.HalfMapped)
	p.HalfUnmapped = abs(opts.HalfUnmapped)
	p.BothUnmapped = abs(opts.BothUnmapped)
	p.Filtered = abs(opts.Filtered)
	if err != nil {
		return nil, err
	}

	if p.Input == "" {
		return nil, pathError(opts.Input, "input path is required", nil)
	}
	if _, err := os.Stat(p.Input); err != nil {
		return nil, pathError(p.Input, "input file not found", err)
	}
	for _, out := range []struct{ name, path string }{
		{"half-mapped", p.HalfMapped},
		{"half-unmapped", p.HalfUnmapped},
		{"both-unmapped", p.BothUnmapped},
		{"filtered", p.Filtered},
	} {
		if out.path == "" {
			if out.name == "filtered" {
				continue
			}
			return nil, pathError(out.path, out.name+" output path is required", nil)
		}
		dir := filepath.Dir(out.path)
		if info, err := os.Stat(dir); err != nil {
			return nil, pathError(dir, "output directory not found", err)
		} else if !info.IsDir() {
			return nil, pathError(dir, "not a directory", nil)
		}
		if out.path == p.Input {
			return nil, pathError(out.path, "input file would be overwritten by the "+out.name+" output", nil)
		}
	}

	parent := opts.WorkingDir
	if parent == "" {
		parent = os.TempDir()
	}
	if info, err := os.Stat(parent); err != nil {
		return nil, pathError(parent, "working directory not found", err)
	} else if !info.IsDir() {
		return nil, pathError(parent, "not a directory", nil)
	}
	p.WorkingDir = abs(filepath.Join(parent, "materescue-"+uuid.New().String()))
	if err != nil {
		return nil, err
	}
	if err := os.Mkdir(p.WorkingDir, 0755); err != nil {
		return nil, pathError(p.WorkingDir, "create working directory", err)
	}
	p.created = true
	log.Debug.Printf("created working directory %s", p.WorkingDir)

	tmp := func(name string) string { return filepath.Join(p.WorkingDir, name) }
	p.TmpMapped = tmp("tmp_mapped.bam")
	p.TmpMappedFiltered = tmp("tmp_mapped_filtered.bam")
	p.TmpUnmapped = tmp("tmp_unmapped.bam")
	p.TmpBoth1 = tmp("tmp_both_1.bam")
	p.TmpBoth2 = tmp("tmp_both_2.bam")
	p.TmpBoth1Filtered = tmp("tmp_both_1_filtered.bam")
	p.TmpBoth2Filtered = tmp("tmp_both_2_filtered.bam")
	return p, nil
}

// Cleanup removes the working directory if PathOpts.Cleanup was set.
func (p *FilePaths) Cleanup() error {
	if !p.cleanup || !p.created {
		return nil
	}
	log.Printf("cleaning up %s", p.WorkingDir)
	if err := os.RemoveAll(p.WorkingDir); err != nil {
		return err
	}
	p.created = false
	return nil
}

// Outputs returns the nonempty final output paths.
func (p *FilePaths) Outputs() []string {
	outs := []string{p.HalfMapped, p.HalfUnmapped, p.BothUnmapped}
	if p.Filtered != "" {
		outs = append(outs, p.Filtered)
	}
	return outs
}

package bam

import (
	"context"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
	pkgerrors "github.com/pkg/errors"
)

// Writer writes records to a new BAM file. Finishing the file and indexing it
// are separate steps: Close flushes and closes the file, and BuildIndex may
// then be called on the closed file's path. Thread compatible.
type Writer struct {
	ctx  context.Context
	path string
	out  file.File
	bamw *bam.Writer
	n    int
	err  errors.Once
}

// NewWriter creates the BAM file at path and writes header to it. Existing
// contents of path, if any, are destroyed.
func NewWriter(ctx context.Context, path string, header *sam.Header) (*Writer, error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "create %s", path)
	}
	bamw, err := bam.NewWriter(out.Writer(ctx), header, 1)
	if err != nil {
		out.Close(ctx) // nolint: errcheck
		return nil, pkgerrors.Wrapf(err, "write BAM header to %s", path)
	}
	return &Writer{ctx: ctx, path: path, out: out, bamw: bamw}, nil
}

// Path returns the pathname given to NewWriter.
func (w *Writer) Path() string { return w.path }

// Count returns the number of records written so far.
func (w *Writer) Count() int { return w.n }

// Write appends r to the file. r is serialized before Write returns, so the
// caller may reuse it.
func (w *Writer) Write(r *sam.Record) error {
	if err := w.err.Err(); err != nil {
		return err
	}
	if err := w.bamw.Write(r); err != nil {
		err = pkgerrors.Wrapf(err, "write %s to %s", r.Name, w.path)
		w.err.Set(err)
		return err
	}
	w.n++
	return nil
}

// Close flushes the BAM data and closes the file. It does not build an index.
// Close must be called exactly once; it returns the first error encountered
// by the writer.
func (w *Writer) Close() error {
	w.err.Set(w.bamw.Close())
	w.err.Set(w.out.Close(w.ctx))
	return w.err.Err()
}

// IndexPath returns the pathname of the index for the BAM file at path.
func IndexPath(path string) string {
	return path + ".bai"
}

// BuildIndex reads the BAM file at path and writes its index to
// IndexPath(path). The records must be sorted by coordinate; otherwise an
// error is returned and no index is left behind.
func BuildIndex(ctx context.Context, path string) (err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return pkgerrors.Wrapf(err, "open %s", path)
	}
	defer func() {
		if e := in.Close(ctx); e != nil && err == nil {
			err = e
		}
	}()
	reader, err := bam.NewReader(in.Reader(ctx), 1)
	if err != nil {
		return pkgerrors.Wrapf(err, "read BAM header from %s", path)
	}
	defer reader.Close() // nolint: errcheck

	var (
		index bam.Index
		n     int
	)
	for {
		r, e := reader.Read()
		if e == io.EOF {
			break
		}
		if e != nil {
			return pkgerrors.Wrapf(e, "read %s", path)
		}
		if e := index.Add(r, reader.LastChunk()); e != nil {
			return pkgerrors.Wrapf(e, "index record %d (%s) of %s", n, r.Name, path)
		}
		n++
	}

	indexPath := IndexPath(path)
	out, err := file.Create(ctx, indexPath)
	if err != nil {
		return pkgerrors.Wrapf(err, "create %s", indexPath)
	}
	werr := errors.Once{}
	werr.Set(bam.WriteIndex(out.Writer(ctx), &index))
	werr.Set(out.Close(ctx))
	if werr.Err() != nil {
		if e := file.Remove(ctx, indexPath); e != nil {
			log.Error.Printf("remove %s: %v", indexPath, e)
		}
		return pkgerrors.Wrapf(werr.Err(), "write %s", indexPath)
	}
	log.Debug.Printf("%s: indexed %d records", path, n)
	return nil
}

// Remove deletes the BAM file at path along with its index, if one exists.
func Remove(ctx context.Context, path string) error {
	err := file.Remove(ctx, path)
	if e := file.Remove(ctx, IndexPath(path)); e != nil && !errors.Is(errors.NotExist, e) && err == nil {
		err = e
	}
	return err
}

package rescue

import (
	"github.com/grailbio/base/errors"
)

// ErrNoQualifyingRegions is returned by Run when no genomic position reaches
// the coverage threshold. The pipeline ran to completion but has nothing to
// report.
var ErrNoQualifyingRegions = errors.New("no qualifying reads were found")

// pathError reports a problem with the input, output or working directory
// paths. Such errors are raised before any record is read and have kind
// errors.Precondition.
func pathError(path, msg string, err error) error {
	if err == nil {
		return errors.E(errors.Precondition, msg, path)
	}
	return errors.E(errors.Precondition, err, msg, path)
}

// IsPathError tells whether err reports an unusable input, output or working
// directory path.
func IsPathError(err error) bool {
	return errors.Is(errors.Precondition, err)
}

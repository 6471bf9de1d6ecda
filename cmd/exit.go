package cmd

import (
	"errors"

	"github.com/anicoll/airquality-integration/internal/pkg/config"
	"github.com/anicoll/airquality-integration/internal/pkg/fetcher"
	"github.com/anicoll/airquality-integration/internal/pkg/openaq"
	"github.com/anicoll/airquality-integration/internal/pkg/storage"
)

const (
	ExitOK = iota
	ExitFailure
	ExitConfiguration
	ExitInvalidWindow
	ExitFetch
	ExitPersistence
	ExitFileNotFound
	ExitCorruptFile
)

// ExitCode maps an error returned by a command to the process exit status.
func ExitCode(err error) int {
	var (
		fetchErr   *openaq.FetchError
		persistErr *storage.PersistenceError
		corruptErr *storage.CorruptFileError
	)
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, config.ErrConfiguration):
		return ExitConfiguration
	case errors.Is(err, fetcher.ErrInvalidWindow):
		return ExitInvalidWindow
	case errors.As(err, &fetchErr):
		return ExitFetch
	case errors.As(err, &persistErr):
		return ExitPersistence
	case errors.Is(err, storage.ErrFileNotFound):
		return ExitFileNotFound
	case errors.As(err, &corruptErr):
		return ExitCorruptFile
	}
	return ExitFailure
}

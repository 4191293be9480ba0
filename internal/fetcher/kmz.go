package fetcher

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/feedlint/feedlint/internal/diag"
)

// unwrapKMZ extracts the KML document from a zipped KMZ body via a
// temporary-file round trip. The temp file is removed on every exit
// path. Extraction failure is terminal.
func (f *Fetcher) unwrapKMZ(log *diag.Log, body []byte) ([]byte, *Failure) {
	tmp, err := os.CreateTemp("", "feedlint-kmz-*")
	if err != nil {
		return nil, f.kmzFailure(log, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return nil, f.kmzFailure(log, err)
	}
	if err := tmp.Close(); err != nil {
		return nil, f.kmzFailure(log, err)
	}

	zr, err := zip.OpenReader(tmpName)
	if err != nil {
		return nil, f.kmzFailure(log, err)
	}
	defer zr.Close()

	var kml []byte
	for _, entry := range zr.File {
		if !strings.HasSuffix(entry.Name, ".kml") {
			continue
		}
		data, err := readZipEntry(entry)
		if err != nil {
			return nil, f.kmzFailure(log, err)
		}
		kml = data
	}
	if kml == nil {
		return nil, f.kmzFailure(log, fmt.Errorf("archive contains no .kml entry"))
	}
	return kml, nil
}

func readZipEntry(entry *zip.File) ([]byte, error) {
	rc, err := entry.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (f *Fetcher) kmzFailure(log *diag.Log, err error) *Failure {
	return f.fail(log, FailureArchive,
		diag.New(diag.KindIOError, diag.SeverityError,
			"message", "Problem decoding KMZ", "exception", err.Error()),
		fmt.Errorf("kmz extract: %w", err))
}

/*
Copyright © 2021 the InMAP authors.
This file is part of gridburn.

gridburn is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

gridburn is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with gridburn.  If not, see <http://www.gnu.org/licenses/>.
*/

package cloud

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

// errNotFound is returned by the fetchers when a remote file does
// not exist.
var errNotFound = errors.New("cloud: file not found")

// Stager copies remote input files to a local staging directory and
// uploads local output files to blob storage after they are written.
// Local paths pass through unchanged. A Stager is not safe for
// concurrent use.
type Stager struct {
	// Log receives a message for every file transferred. If nil, the
	// standard logrus logger is used.
	Log logrus.FieldLogger

	dir string

	// uploads holds pairs of local paths and the blob paths they
	// are uploaded to.
	uploads [][2]string
}

func (s *Stager) log() logrus.FieldLogger {
	if s.Log == nil {
		return logrus.StandardLogger()
	}
	return s.Log
}

// subdir returns a new directory inside the staging directory, so that
// files with the same base name do not collide.
func (s *Stager) subdir() (string, error) {
	if s.dir == "" {
		dir, err := ioutil.TempDir("", "gridburn")
		if err != nil {
			return "", fmt.Errorf("cloud: creating staging directory: %w", err)
		}
		s.dir = dir
	}
	return ioutil.TempDir(s.dir, "f")
}

// withExt replaces the extension of path with ext.
func withExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

// Fetch returns a local path for the file at path. Files that exist
// locally, and paths that are neither blobs nor http(s) URLs, are returned
// as is. Otherwise the file is downloaded along with any of the sidecar
// files with the given extensions (e.g. ".shx", ".prj") that exist
// next to it, and the path of the downloaded copy is returned.
func (s *Stager) Fetch(ctx context.Context, path string, sidecarExts ...string) (string, error) {
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	var fetch func(ctx context.Context, src string, w io.Writer) error
	switch {
	case IsBlob(path):
		bucket, key, err := splitBlob(path)
		if err != nil {
			return "", err
		}
		b, err := OpenBucket(ctx, bucket)
		if err != nil {
			return "", err
		}
		defer b.Close()
		path = key
		fetch = func(ctx context.Context, src string, w io.Writer) error {
			return readBlob(ctx, b, src, w)
		}
	case IsHTTP(path):
		fetch = readHTTP
	default:
		return path, nil
	}
	dir, err := s.subdir()
	if err != nil {
		return "", err
	}
	local := filepath.Join(dir, filepath.Base(path))
	if err := download(ctx, fetch, path, local); err != nil {
		return "", fmt.Errorf("cloud: downloading %s: %w", path, err)
	}
	s.log().WithFields(logrus.Fields{"src": path, "dst": local}).Debug("downloaded input file")
	for _, ext := range sidecarExts {
		src := withExt(path, ext)
		err := download(ctx, fetch, src, withExt(local, ext))
		if errors.Is(err, errNotFound) {
			continue
		} else if err != nil {
			return "", fmt.Errorf("cloud: downloading %s: %w", src, err)
		}
		s.log().WithField("src", src).Debug("downloaded sidecar file")
	}
	return local, nil
}

// download copies src to the local file dst. dst is removed if the
// copy fails.
func download(ctx context.Context, fetch func(context.Context, string, io.Writer) error, src, dst string) error {
	w, err := os.Create(dst)
	if err != nil {
		return err
	}
	if err := fetch(ctx, src, w); err != nil {
		w.Close()
		os.Remove(dst)
		return err
	}
	return w.Close()
}

func readBlob(ctx context.Context, b *blob.Bucket, key string, w io.Writer) error {
	r, err := b.NewReader(ctx, key, nil)
	if gcerrors.Code(err) == gcerrors.NotFound {
		return errNotFound
	} else if err != nil {
		return err
	}
	defer r.Close()
	_, err = io.Copy(w, r)
	return err
}

func readHTTP(ctx context.Context, url string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errNotFound
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("http status %s", resp.Status)
	}
	_, err = io.Copy(w, resp.Body)
	return err
}

// Stage returns the local path that an output file destined for path
// should be written to. Non-blob paths are returned as is. For blob
// paths a staging location is returned, and the file and any sidecar
// files with the given extensions are uploaded to path when Upload
// is called.
func (s *Stager) Stage(path string, sidecarExts ...string) (string, error) {
	if !IsBlob(path) {
		return path, nil
	}
	if _, _, err := splitBlob(path); err != nil {
		return "", err
	}
	dir, err := s.subdir()
	if err != nil {
		return "", err
	}
	local := filepath.Join(dir, filepath.Base(path))
	s.uploads = append(s.uploads, [2]string{local, path})
	for _, ext := range sidecarExts {
		s.uploads = append(s.uploads, [2]string{withExt(local, ext), withExt(path, ext)})
	}
	return local, nil
}

// Upload copies every staged output file that exists locally to its
// blob storage destination.
func (s *Stager) Upload(ctx context.Context) error {
	for _, files := range s.uploads {
		if _, err := os.Stat(files[0]); os.IsNotExist(err) {
			continue
		}
		if err := upload(ctx, files[0], files[1]); err != nil {
			return fmt.Errorf("cloud: uploading %s to %s: %w", files[0], files[1], err)
		}
		s.log().WithField("dst", files[1]).Debug("uploaded output file")
	}
	return nil
}

func upload(ctx context.Context, src, dst string) error {
	bucket, key, err := splitBlob(dst)
	if err != nil {
		return err
	}
	b, err := OpenBucket(ctx, bucket)
	if err != nil {
		return err
	}
	defer b.Close()
	r, err := os.Open(src)
	if err != nil {
		return err
	}
	defer r.Close()
	w, err := b.NewWriter(ctx, key, &blob.WriterOptions{})
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// Close removes the staging directory and everything in it.
func (s *Stager) Close() error {
	if s.dir == "" {
		return nil
	}
	err := os.RemoveAll(s.dir)
	s.dir = ""
	return err
}

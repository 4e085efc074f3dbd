// Package artifacts implements the Artifact Store of spec.md §6: audit
// envelopes, training projectmd uploads, and folder-upload file bodies,
// backed by an S3-compatible bucket.
package artifacts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
)

// Store is the narrow surface the Runner, DocOrchestrator, and folder
// upload handler need: put/get raw bytes, plus a JSON convenience on top
// (used for the Runner's audit envelope).
type Store interface {
	Put(ctx context.Context, key string, data io.Reader, contentType string) (string, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
	PutJSON(ctx context.Context, key string, v any) error
	// ListPrefixes returns the immediate child segment of every key under
	// root (e.g. "artifacts/" -> project ids), used by the CleanupService's
	// periodic orphan-artifact sweep to find prefixes whose owning project
	// no longer exists.
	ListPrefixes(ctx context.Context, root string) ([]string, error)
}

// ParseURL accepts both the s3://bucket/key and the virtual-hosted
// https://bucket.s3.region.amazonaws.com/key forms, per spec.md §6.
func ParseURL(raw string) (bucket, key string, err error) {
	if strings.HasPrefix(raw, "s3://") {
		rest := strings.TrimPrefix(raw, "s3://")
		parts := strings.SplitN(rest, "/", 2)
		if len(parts) != 2 {
			return "", "", fmt.Errorf("artifacts: malformed s3:// url %q", raw)
		}
		return parts[0], parts[1], nil
	}

	u, perr := url.Parse(raw)
	if perr != nil {
		return "", "", fmt.Errorf("artifacts: parse url %q: %w", raw, perr)
	}
	host := u.Host
	if idx := strings.Index(host, ".s3."); idx > 0 {
		bucket = host[:idx]
	} else if idx := strings.Index(host, ".s3-"); idx > 0 {
		bucket = host[:idx]
	} else {
		return "", "", fmt.Errorf("artifacts: unrecognized host in url %q", raw)
	}
	return bucket, strings.TrimPrefix(u.Path, "/"), nil
}

// jsonPutter is embedded by every Store implementation to provide the
// PutJSON convenience in terms of Put, avoiding duplicated marshal logic.
type jsonPutter struct {
	put func(ctx context.Context, key string, data io.Reader, contentType string) (string, error)
}

func (j jsonPutter) PutJSON(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("artifacts: marshal json for %s: %w", key, err)
	}
	_, err = j.put(ctx, key, bytes.NewReader(raw), "application/json")
	return err
}

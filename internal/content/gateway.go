package content

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// fetchViaGateway probes the gateway to decide
// file-vs-directory, then stream either a single file or a tar archive into
// dir, extracting directory archives while stripping PaxHeaders entries and
// the leading CID path component.
func fetchViaGateway(ctx context.Context, gatewayURL, cid, dir string) error {
	url := strings.TrimRight(gatewayURL, "/") + "/ipfs/" + cid

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.ipld.raw, application/x-tar, text/html")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway fetch %s: status %d", url, resp.StatusCode)
	}

	if isDirectoryListing(resp) {
		return extractTar(resp.Body, cid, dir)
	}

	return streamFile(resp.Body, filepath.Join(dir, cid))
}

// isDirectoryListing reports whether the gateway served a directory rather
// than a single file body, judged by the Content-Type header alone
// (x-tar or text/html); the body is not inspected.
func isDirectoryListing(resp *http.Response) bool {
	ct := resp.Header.Get("Content-Type")
	if strings.Contains(ct, "x-tar") {
		return true
	}
	return strings.Contains(ct, "text/html")
}

func streamFile(body io.Reader, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, body)
	return err
}

// extractTar unpacks a tar stream into dir, dropping PaxHeaders entries and
// stripping the archive's leading "<cid>/" path component the way the
// daemon's own tar-wrapped `get` output does.
func extractTar(r io.Reader, cid, dir string) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("extract tar: %w", err)
		}
		if strings.Contains(hdr.Name, "PaxHeaders") {
			continue
		}

		name := stripCIDPrefix(hdr.Name, cid)
		if name == "" {
			continue
		}
		target := filepath.Join(dir, name)

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
			if err != nil {
				return err
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return err
			}
			f.Close()
		}
	}
}

// stripCIDPrefix removes the leading "<cid>" or "<cid>/" component from a
// tar entry name.
func stripCIDPrefix(name, cid string) string {
	name = strings.TrimPrefix(name, cid)
	return strings.TrimPrefix(name, "/")
}

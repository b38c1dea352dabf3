package ssh

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/sftp"
	xssh "golang.org/x/crypto/ssh"
)

// PushFile uploads a local file to a remote path via SFTP and verifies the
// upload by re-reading the remote file and comparing SHA-256 digests. Job
// scripts are small, so the extra round trip is cheap compared to debugging
// a truncated submission.
func PushFile(ctx context.Context, client *xssh.Client, localPath, remotePath string) error {
	sf, err := sftp.NewClient(client)
	if err != nil {
		return fmt.Errorf("sftp client: %w", err)
	}
	defer sf.Close()

	if err := sf.MkdirAll(filepath.Dir(remotePath)); err != nil {
		return fmt.Errorf("mkdir remote: %w", err)
	}

	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open local: %w", err)
	}
	defer src.Close()

	dst, err := sf.Create(remotePath)
	if err != nil {
		return fmt.Errorf("create remote: %w", err)
	}

	localSum := sha256.New()
	if _, err := io.Copy(dst, io.TeeReader(src, localSum)); err != nil {
		dst.Close()
		return fmt.Errorf("copy: %w", err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("close remote: %w", err)
	}

	remoteSum, err := remoteDigest(sf, remotePath)
	if err != nil {
		return err
	}
	if want := hex.EncodeToString(localSum.Sum(nil)); remoteSum != want {
		return fmt.Errorf("upload verification failed for %s: digest %s, want %s", remotePath, remoteSum, want)
	}
	return nil
}

func remoteDigest(sf *sftp.Client, remotePath string) (string, error) {
	f, err := sf.Open(remotePath)
	if err != nil {
		return "", fmt.Errorf("reopen remote: %w", err)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("read back remote: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

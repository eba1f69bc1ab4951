package sshexec

import (
	"bufio"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

var knownHostsMu sync.Mutex

// buildHostKeyCallback returns a Trust-On-First-Use callback backed by a
// known_hosts file, creating the file and its directory on first use.
func buildHostKeyCallback(config *ConnectionConfig) (ssh.HostKeyCallback, error) {
	knownHostsPath := config.KnownHostsPath
	if knownHostsPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		knownHostsPath = filepath.Join(homeDir, ".hostfleet", "known_hosts")
	}

	if err := os.MkdirAll(filepath.Dir(knownHostsPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create known_hosts directory: %w", err)
	}
	if _, err := os.Stat(knownHostsPath); os.IsNotExist(err) {
		if err := os.WriteFile(knownHostsPath, []byte{}, 0600); err != nil {
			return nil, fmt.Errorf("failed to create known_hosts file: %w", err)
		}
	}

	return createTOFUCallback(knownHostsPath), nil
}

// createTOFUCallback trusts and records a host's key the first time it is
// seen, and rejects any later connection whose key does not match.
func createTOFUCallback(knownHostsPath string) ssh.HostKeyCallback {
	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		callback, err := knownhosts.New(knownHostsPath)
		if err != nil {
			return trustAndSaveHostKey(knownHostsPath, hostname, remote, key)
		}

		err = callback(hostname, remote, key)
		if err == nil {
			return nil
		}

		if !isKeyNotFoundError(err) {
			fingerprint := fingerprintSHA256(key)
			return fmt.Errorf("HOST KEY VERIFICATION FAILED for %s\n"+
				"  The host key has changed; this may indicate a man-in-the-middle attack.\n"+
				"  Key fingerprint: %s\n"+
				"  If this is expected (host reinstall), remove the old entry from:\n"+
				"    %s\n"+
				"  Original error: %w",
				hostname, fingerprint, knownHostsPath, err)
		}

		return trustAndSaveHostKey(knownHostsPath, hostname, remote, key)
	}
}

func isKeyNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	var keyErr *knownhosts.KeyError
	if errors.As(err, &keyErr) {
		return len(keyErr.Want) == 0
	}
	return false
}

func trustAndSaveHostKey(knownHostsPath, hostname string, remote net.Addr, key ssh.PublicKey) error {
	knownHostsMu.Lock()
	defer knownHostsMu.Unlock()

	lockFile, err := lockKnownHosts(knownHostsPath)
	if err != nil {
		return fmt.Errorf("failed to lock known_hosts: %w", err)
	}
	defer unlockKnownHosts(lockFile)

	callback, err := knownhosts.New(knownHostsPath)
	if err == nil {
		if cbErr := callback(hostname, remote, key); cbErr == nil {
			return nil
		} else if !isKeyNotFoundError(cbErr) {
			return cbErr
		}
	}

	fingerprint := fingerprintSHA256(key)
	fmt.Fprintf(os.Stderr, "hostfleet: trusting new host key for %s (%s)\n", hostname, fingerprint)

	keyType := key.Type()
	keyData := base64.StdEncoding.EncodeToString(key.Marshal())
	normalizedHost := normalizeHostname(hostname, remote)
	line := fmt.Sprintf("%s %s %s\n", normalizedHost, keyType, keyData)

	f, err := os.OpenFile(knownHostsPath, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0600)
	if err != nil {
		return fmt.Errorf("failed to open known_hosts for writing: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("failed to write to known_hosts: %w", err)
	}
	return nil
}

func lockKnownHosts(knownHostsPath string) (*os.File, error) {
	f, err := os.OpenFile(knownHostsPath, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, err
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}

func unlockKnownHosts(f *os.File) {
	if f == nil {
		return
	}
	_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
	_ = f.Close()
}

func normalizeHostname(hostname string, remote net.Addr) string {
	if strings.Contains(hostname, ":") {
		host, port, err := net.SplitHostPort(hostname)
		if err == nil && port != "22" {
			return fmt.Sprintf("[%s]:%s", host, port)
		}
		return host
	}
	if tcpAddr, ok := remote.(*net.TCPAddr); ok {
		if tcpAddr.Port != 22 {
			return fmt.Sprintf("[%s]:%d", hostname, tcpAddr.Port)
		}
	}
	return hostname
}

func fingerprintSHA256(key ssh.PublicKey) string {
	hash := sha256.Sum256(key.Marshal())
	return "SHA256:" + base64.StdEncoding.EncodeToString(hash[:])
}

// RemoveHostKey drops a host's entry from known_hosts, for use after a
// deliberate host reinstall invalidates the previously trusted key.
func RemoveHostKey(knownHostsPath, hostname string) error {
	knownHostsMu.Lock()
	defer knownHostsMu.Unlock()

	lockFile, err := lockKnownHosts(knownHostsPath)
	if err != nil {
		return fmt.Errorf("failed to lock known_hosts: %w", err)
	}
	defer unlockKnownHosts(lockFile)

	data, err := os.ReadFile(knownHostsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var newLines []string
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			newLines = append(newLines, line)
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			newLines = append(newLines, line)
			continue
		}
		host := fields[0]
		if host == hostname || host == fmt.Sprintf("[%s]", hostname) ||
			strings.HasPrefix(host, hostname+":") || strings.HasPrefix(host, fmt.Sprintf("[%s]:", hostname)) {
			continue
		}
		newLines = append(newLines, line)
	}

	return os.WriteFile(knownHostsPath, []byte(strings.Join(newLines, "\n")+"\n"), 0600)
}

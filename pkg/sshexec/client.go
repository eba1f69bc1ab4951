package sshexec

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"context"

	"golang.org/x/crypto/ssh"
)

// Client wraps one SSH connection to a single host under a single
// credential set and implements Runner.
type Client struct {
	config   *ConnectionConfig
	conn     *ssh.Client
	pingFunc func(ctx context.Context) error
}

// NewClient dials a host and authenticates with either a private key, a
// password, or both (key first, password as a fallback auth method).
func NewClient(config *ConnectionConfig) (*Client, error) {
	var auths []ssh.AuthMethod

	if config.KeyPath != "" {
		key, err := os.ReadFile(config.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read private key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		auths = append(auths, ssh.PublicKeys(signer))
	}
	if config.Password != "" {
		auths = append(auths, ssh.Password(config.Password))
	}
	if len(auths) == 0 {
		return nil, fmt.Errorf("no credentials configured for %s@%s", config.User, config.Address)
	}

	hostKeyCallback, err := buildHostKeyCallback(config)
	if err != nil {
		return nil, fmt.Errorf("failed to set up host key verification: %w", err)
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	sshConfig := &ssh.ClientConfig{
		User:            config.User,
		Auth:            auths,
		HostKeyCallback: hostKeyCallback,
		Timeout:         timeout,
	}

	addr := fmt.Sprintf("%s:%d", config.Address, config.Port)
	conn, err := ssh.Dial("tcp", addr, sshConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to dial SSH %s: %w", addr, err)
	}

	return &Client{config: config, conn: conn}, nil
}

// Run executes a command and waits for it to finish, or for ctx to be
// cancelled, in which case the remote process is sent SIGKILL best-effort.
func (c *Client) Run(ctx context.Context, command string) (*CommandResult, error) {
	result := &CommandResult{Command: command}

	start := time.Now()
	defer func() { result.Duration = time.Since(start) }()

	session, err := c.conn.NewSession()
	if err != nil {
		result.Error = fmt.Errorf("failed to create session: %w", err)
		return result, result.Error
	}
	defer session.Close()

	stdoutPipe, err := session.StdoutPipe()
	if err != nil {
		result.Error = fmt.Errorf("failed to create stdout pipe: %w", err)
		return result, result.Error
	}
	stderrPipe, err := session.StderrPipe()
	if err != nil {
		result.Error = fmt.Errorf("failed to create stderr pipe: %w", err)
		return result, result.Error
	}

	if err := session.Start(command); err != nil {
		result.Error = fmt.Errorf("failed to start command: %w", err)
		return result, result.Error
	}

	type output struct {
		stdout, stderr string
		err            error
	}
	outputChan := make(chan output, 1)

	go func() {
		stdoutBytes, _ := io.ReadAll(stdoutPipe)
		stderrBytes, _ := io.ReadAll(stderrPipe)
		err := session.Wait()
		outputChan <- output{stdout: string(stdoutBytes), stderr: string(stderrBytes), err: err}
	}()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		result.Error = ctx.Err()
		return result, result.Error

	case out := <-outputChan:
		result.Stdout = strings.TrimSpace(out.stdout)
		result.Stderr = strings.TrimSpace(out.stderr)
		if out.err != nil {
			var exitErr *ssh.ExitError
			if errors.As(out.err, &exitErr) {
				result.ExitCode = exitErr.ExitStatus()
			} else {
				result.ExitCode = -1
			}
			result.Error = out.err
		}
	}

	return result, result.Error
}

// Ping checks the connection is still alive, unblocking promptly even if
// the underlying connection is wedged by closing it on context cancellation.
func (c *Client) Ping(ctx context.Context) error {
	if c.pingFunc != nil {
		return c.pingFunc(ctx)
	}
	if c.conn == nil {
		return errors.New("ssh connection not initialized")
	}

	errCh := make(chan error, 1)
	go func() {
		_, _, err := c.conn.SendRequest("keepalive@hostfleet", true, nil)
		errCh <- err
	}()

	select {
	case <-ctx.Done():
		_ = c.conn.Close()
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// RunScript uploads script to a temp path and executes it, cleaning up the
// remote file afterward on a best-effort basis.
func (c *Client) RunScript(ctx context.Context, script string) (*CommandResult, error) {
	tempPath := fmt.Sprintf("/tmp/hostfleet-script-%d.sh", time.Now().UnixNano())

	localTemp := filepath.Join(os.TempDir(), filepath.Base(tempPath))
	if err := os.WriteFile(localTemp, []byte(script), 0700); err != nil {
		return nil, fmt.Errorf("failed to write script to temp file: %w", err)
	}
	defer os.Remove(localTemp)

	if err := c.Upload(ctx, UploadOptions{LocalPath: localTemp, RemotePath: tempPath, Mode: 0700}); err != nil {
		return nil, fmt.Errorf("failed to upload script: %w", err)
	}

	result, err := c.Run(ctx, tempPath)
	_, _ = c.Run(ctx, fmt.Sprintf("rm -f %s", tempPath))
	return result, err
}

// Upload transfers a file via the SCP protocol.
func (c *Client) Upload(ctx context.Context, opts UploadOptions) error {
	data, err := os.ReadFile(opts.LocalPath)
	if err != nil {
		return fmt.Errorf("failed to read local file: %w", err)
	}
	info, err := os.Stat(opts.LocalPath)
	if err != nil {
		return fmt.Errorf("failed to stat local file: %w", err)
	}

	mode := opts.Mode
	if mode == 0 {
		mode = uint32(info.Mode().Perm())
	}

	remoteDir := filepath.Dir(opts.RemotePath)
	if _, err := c.Run(ctx, fmt.Sprintf("mkdir -p %s", ShellQuote(remoteDir))); err != nil {
		return fmt.Errorf("failed to create remote directory: %w", err)
	}

	session, err := c.conn.NewSession()
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	defer session.Close()

	stdinPipe, err := session.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	if err := session.Start(fmt.Sprintf("scp -t %s", ShellQuote(opts.RemotePath))); err != nil {
		return fmt.Errorf("failed to start scp: %w", err)
	}

	filename := filepath.Base(opts.RemotePath)
	fmt.Fprintf(stdinPipe, "C%04o %d %s\n", mode, len(data), filename)
	if _, err := stdinPipe.Write(data); err != nil {
		return fmt.Errorf("failed to write file data: %w", err)
	}
	fmt.Fprint(stdinPipe, "\x00")
	stdinPipe.Close()

	if err := session.Wait(); err != nil {
		return fmt.Errorf("scp failed: %w", err)
	}

	if opts.Owner != "" {
		chownCmd := fmt.Sprintf("chown %s %s", ShellQuote(opts.Owner), ShellQuote(opts.RemotePath))
		if opts.Group != "" {
			chownCmd = fmt.Sprintf("chown %s:%s %s", ShellQuote(opts.Owner), ShellQuote(opts.Group), ShellQuote(opts.RemotePath))
		}
		if _, err := c.Run(ctx, chownCmd); err != nil {
			return fmt.Errorf("failed to change ownership: %w", err)
		}
	}

	return nil
}

// Close closes the underlying SSH connection.
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/sys/unix"

	"subtrans/internal/config"
	"subtrans/internal/services"
	"subtrans/internal/services/gemini"
)

// CheckProvider verifies each key against the provider's model endpoint with
// a 30-second timeout and a single attempt per key.
func CheckProvider(ctx context.Context, cfg config.Provider, keys []string) Result {
	const name = "Translation provider"

	var usable []string
	for _, key := range keys {
		if trimmed := strings.TrimSpace(key); trimmed != "" {
			usable = append(usable, trimmed)
		}
	}
	if len(usable) == 0 {
		return Result{Name: name, Detail: "no API keys configured"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := gemini.NewClient(gemini.Config{BaseURL: cfg.BaseURL, TimeoutSeconds: 30}, gemini.WithRetryMaxAttempts(1))
	accepted := 0
	var lastErr error
	for _, key := range usable {
		err := client.HealthCheck(checkCtx, key, cfg.Model)
		if err == nil {
			accepted++
			continue
		}
		lastErr = err
		if !errors.Is(err, services.ErrCredential) {
			// The endpoint itself is failing; more keys will not help.
			return Result{Name: name, Detail: summarizeProviderError(err)}
		}
	}
	if accepted == 0 {
		return Result{Name: name, Detail: fmt.Sprintf("all %d keys rejected (%s)", len(usable), summarizeProviderError(lastErr))}
	}
	if accepted < len(usable) {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%d of %d keys accepted", accepted, len(usable))}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s reachable, %d keys accepted", cfg.Model, accepted)}
}

// CheckBroker verifies the AMQP broker accepts a connection.
func CheckBroker(ctx context.Context, url string) Result {
	const name = "Broker"

	if strings.TrimSpace(url) == "" {
		return Result{Name: name, Detail: "missing url"}
	}

	type dialResult struct {
		conn *amqp.Connection
		err  error
	}
	done := make(chan dialResult, 1)
	go func() {
		conn, err := amqp.DialConfig(url, amqp.Config{Dial: amqp.DefaultDial(5 * time.Second)})
		done <- dialResult{conn: conn, err: err}
	}()

	select {
	case <-ctx.Done():
		return Result{Name: name, Detail: "check cancelled"}
	case res := <-done:
		if res.err != nil {
			return Result{Name: name, Detail: fmt.Sprintf("connect failed (%v)", res.err)}
		}
		_ = res.conn.Close()
		return Result{Name: name, Passed: true, Detail: "Reachable"}
	}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckBinary reports whether command resolves on PATH. Optional binaries
// only degrade features when missing.
func CheckBinary(name, command string, optional bool) Result {
	command = strings.TrimSpace(command)
	result := Result{Name: name, Optional: optional}
	if command == "" {
		result.Detail = "command not configured"
		return result
	}
	resolved, err := exec.LookPath(command)
	if err != nil {
		result.Detail = fmt.Sprintf("binary %q not found", command)
		return result
	}
	result.Passed = true
	result.Detail = resolved
	return result
}

func summarizeProviderError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (provider unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (provider unreachable)"
	}
	return err.Error()
}

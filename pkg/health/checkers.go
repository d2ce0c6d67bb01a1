package health

import (
	"context"
	"fmt"
	"os"
	"time"
)

// CustomChecker adapts a function to Checker.
type CustomChecker struct {
	name      string
	checkFunc func(ctx context.Context) (Status, string, error)
}

// NewCustomChecker creates a checker from checkFunc. A non-nil error always
// yields StatusUnhealthy.
func NewCustomChecker(name string, checkFunc func(ctx context.Context) (Status, string, error)) *CustomChecker {
	return &CustomChecker{name: name, checkFunc: checkFunc}
}

// Check implements Checker.
func (c *CustomChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	status, message, err := c.checkFunc(ctx)

	result := CheckResult{
		Name:     c.name,
		Status:   status,
		Message:  message,
		Duration: time.Since(start),
	}
	if err != nil {
		result.Status = StatusUnhealthy
		result.Error = err.Error()
	}
	return result
}

// Name implements Checker.
func (c *CustomChecker) Name() string {
	return c.name
}

// NewDirectoryChecker reports degraded when path is missing or not a
// directory. The API keeps working without it, only static requests 404.
func NewDirectoryChecker(name, path string) *CustomChecker {
	return NewCustomChecker(name, func(context.Context) (Status, string, error) {
		info, err := os.Stat(path)
		if err != nil {
			return StatusDegraded, fmt.Sprintf("%s is not accessible", path), nil
		}
		if !info.IsDir() {
			return StatusDegraded, fmt.Sprintf("%s is not a directory", path), nil
		}
		return StatusHealthy, "OK", nil
	})
}

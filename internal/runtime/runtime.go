// Package runtime detects, once per process, which environment the service is
// executing in (development, test or production) and enforces the constraint
// that production launches only happen inside a container.
package runtime

import (
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
)

// Environment is the detected runtime environment.
type Environment string

const (
	// EnvDevelopment is the default environment on a bare host.
	EnvDevelopment Environment = "development"
	// EnvTest is active under a test harness or CI.
	EnvTest Environment = "test"
	// EnvProduction is the deployed environment; only valid inside a container.
	EnvProduction Environment = "production"
)

// AuthMode selects how strictly permission checks are enforced.
type AuthMode string

const (
	// AuthModeDisabled bypasses permission checks entirely. Honoured only in
	// the test environment.
	AuthModeDisabled AuthMode = "disabled"
	// AuthModePermissive is the production default.
	AuthModePermissive AuthMode = "permissive"
	// AuthModeStrict is reserved for future use and currently behaves like
	// permissive.
	AuthModeStrict AuthMode = "strict"
)

// ErrInvalidRuntime is returned when production is declared on a bare host.
var ErrInvalidRuntime = errors.New("production environment requires a container")

// envVars are the operator-facing environment declarations, in priority order.
var envVars = []string{"SMS_ENV", "APP_ENV", "ENVIRONMENT", "ENV"} //nolint:gochecknoglobals

// containerMarkerFiles are well-known files whose presence indicates a container.
var containerMarkerFiles = []string{"/.dockerenv", "/run/.containerenv"} //nolint:gochecknoglobals

// Probe supplies the host facts detection is based on. The zero value is not
// usable; HostProbe returns the real one. Tests substitute their own.
type Probe struct {
	// Getenv looks up an environment variable.
	Getenv func(string) string
	// InContainer reports whether container heuristics fire.
	InContainer func() bool
	// UnderTest reports whether a test harness is running the process.
	UnderTest func() bool
}

// HostProbe returns the probe backed by the real process environment.
func HostProbe() Probe {
	return Probe{
		Getenv:      os.Getenv,
		InContainer: inContainer,
		UnderTest:   testing.Testing,
	}
}

var (
	detectOnce sync.Once   //nolint:gochecknoglobals
	detected   Environment //nolint:gochecknoglobals
	resetMu    sync.Mutex  //nolint:gochecknoglobals
)

// Current returns the cached runtime environment, detecting it on first call.
// The cache is invalidated only by Reset (tests only).
func Current() Environment {
	detectOnce.Do(func() {
		detected = Detect(HostProbe())
	})

	return detected
}

// Reset clears the cached environment so the next Current call re-detects.
// Intended for tests only.
func Reset() {
	resetMu.Lock()
	defer resetMu.Unlock()

	detectOnce = sync.Once{}
	detected = ""
}

// AssertValid verifies the detected environment is launchable on this host.
// Production outside a container returns ErrInvalidRuntime.
func AssertValid() error {
	return Validate(Current(), inContainer())
}

// Validate checks one environment against the container fact.
func Validate(env Environment, containerised bool) error {
	if env == EnvProduction && !containerised {
		return ErrInvalidRuntime
	}

	return nil
}

// Detect computes the environment from harness markers, operator declarations,
// container heuristics and CI markers, in that order.
func Detect(probe Probe) Environment {
	if truthy(probe.Getenv("TESTING")) || probe.UnderTest() {
		return EnvTest
	}

	for _, name := range envVars {
		if env, ok := normalise(probe.Getenv(name)); ok {
			return env
		}
	}

	if probe.InContainer() {
		return EnvProduction
	}

	if truthy(probe.Getenv("CI")) {
		return EnvTest
	}

	return EnvDevelopment
}

// CurrentAuthMode returns the configured AUTH_MODE. The disabled mode is a
// test-only bypass: outside the test environment it degrades to permissive.
func CurrentAuthMode() AuthMode {
	return ParseAuthMode(os.Getenv("AUTH_MODE"), Current())
}

// ParseAuthMode normalises an AUTH_MODE value for the given environment.
func ParseAuthMode(value string, env Environment) AuthMode {
	switch AuthMode(strings.ToLower(strings.TrimSpace(value))) {
	case AuthModeDisabled:
		if env != EnvTest {
			return AuthModePermissive
		}

		return AuthModeDisabled
	case AuthModeStrict:
		return AuthModeStrict
	default:
		return AuthModePermissive
	}
}

// inContainer reports whether container-detection heuristics fire on this host.
func inContainer() bool {
	for _, marker := range containerMarkerFiles {
		if _, err := os.Stat(marker); err == nil {
			return true
		}
	}

	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return true
	}

	if data, err := os.ReadFile("/proc/1/cgroup"); err == nil {
		content := string(data)
		if strings.Contains(content, "docker") || strings.Contains(content, "kubepods") ||
			strings.Contains(content, "containerd") {
			return true
		}
	}

	return false
}

// normalise maps operator-supplied environment names onto the three canonical
// environments. Unknown values are ignored so the next source is consulted.
func normalise(value string) (Environment, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "prod", "production", "release", "docker", "fullstack":
		return EnvProduction, true
	case "dev", "development", "local":
		return EnvDevelopment, true
	case "test", "testing", "ci":
		return EnvTest, true
	default:
		return "", false
	}
}

func truthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProbe builds a Probe from a static environment map and host facts.
func fakeProbe(env map[string]string, containerised, underTest bool) Probe {
	return Probe{
		Getenv:      func(name string) string { return env[name] },
		InContainer: func() bool { return containerised },
		UnderTest:   func() bool { return underTest },
	}
}

func TestDetect(t *testing.T) {
	testCases := []struct {
		name          string
		env           map[string]string
		containerised bool
		underTest     bool
		expected      Environment
	}{
		{
			name:     "bare host defaults to development",
			env:      map[string]string{},
			expected: EnvDevelopment,
		},
		{
			name:      "test harness marker wins",
			env:       map[string]string{"SMS_ENV": "production"},
			underTest: true,
			expected:  EnvTest,
		},
		{
			name:     "TESTING variable forces test",
			env:      map[string]string{"TESTING": "1", "SMS_ENV": "production"},
			expected: EnvTest,
		},
		{
			name:     "SMS_ENV production",
			env:      map[string]string{"SMS_ENV": "production"},
			expected: EnvProduction,
		},
		{
			name:     "SMS_ENV outranks APP_ENV",
			env:      map[string]string{"SMS_ENV": "dev", "APP_ENV": "production"},
			expected: EnvDevelopment,
		},
		{
			name:     "docker synonym maps to production",
			env:      map[string]string{"APP_ENV": "docker"},
			expected: EnvProduction,
		},
		{
			name:     "fullstack synonym maps to production",
			env:      map[string]string{"ENVIRONMENT": "fullstack"},
			expected: EnvProduction,
		},
		{
			name:     "local synonym maps to development",
			env:      map[string]string{"ENV": "local"},
			expected: EnvDevelopment,
		},
		{
			name:     "ci synonym maps to test",
			env:      map[string]string{"SMS_ENV": "CI"},
			expected: EnvTest,
		},
		{
			name:     "unknown value falls through",
			env:      map[string]string{"SMS_ENV": "staging"},
			expected: EnvDevelopment,
		},
		{
			name:          "container heuristics imply production",
			env:           map[string]string{},
			containerised: true,
			expected:      EnvProduction,
		},
		{
			name:     "CI marker implies test",
			env:      map[string]string{"CI": "true"},
			expected: EnvTest,
		},
		{
			name:     "surrounding whitespace and case are ignored",
			env:      map[string]string{"SMS_ENV": "  PRODUCTION  "},
			expected: EnvProduction,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := Detect(fakeProbe(tc.env, tc.containerised, tc.underTest))
			assert.Equal(t, tc.expected, env)
		})
	}
}

func TestValidate(t *testing.T) {
	// Production on a bare host must refuse to boot.
	err := Validate(EnvProduction, false)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidRuntime)

	assert.NoError(t, Validate(EnvProduction, true))
	assert.NoError(t, Validate(EnvDevelopment, false))
	assert.NoError(t, Validate(EnvTest, false))
}

func TestParseAuthMode(t *testing.T) {
	testCases := []struct {
		name     string
		value    string
		env      Environment
		expected AuthMode
	}{
		{"default is permissive", "", EnvProduction, AuthModePermissive},
		{"disabled honoured in test env", "disabled", EnvTest, AuthModeDisabled},
		{"disabled degrades outside test env", "disabled", EnvProduction, AuthModePermissive},
		{"strict recognised", "strict", EnvProduction, AuthModeStrict},
		{"case insensitive", " Permissive ", EnvDevelopment, AuthModePermissive},
		{"unknown value is permissive", "paranoid", EnvProduction, AuthModePermissive},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ParseAuthMode(tc.value, tc.env))
		})
	}
}

func TestCurrentCachesDetection(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	// Under "go test" the harness marker fires, so Current always resolves to
	// the test environment, and repeated calls return the cached value.
	first := Current()
	assert.Equal(t, EnvTest, first)
	assert.Equal(t, first, Current())
}

package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseConfig(t *testing.T) {
	tests := []struct {
		description    string
		input          string
		expectedResult Config
		expectedError  bool
	}{
		{
			description:    "named single core",
			input:          "warboy:0:1",
			expectedResult: NamedConfig(ArchWarboy, 0, SingleCoreRange(1)),
		},
		{
			description:    "named fused with legacy alias",
			input:          "npu:1:0-1",
			expectedResult: NamedConfig(ArchWarboy, 1, mustCoreRange(t, 0, 1)),
		},
		{
			description:    "named without architecture",
			input:          "0:0-1",
			expectedResult: NamedConfig("", 0, mustCoreRange(t, 0, 1)),
		},
		{
			description:    "named rngd",
			input:          "rngd:2:4-7",
			expectedResult: NamedConfig(ArchRngd, 2, mustCoreRange(t, 4, 7)),
		},
		{
			description:    "unnamed without core count",
			input:          "warboy*12",
			expectedResult: UnnamedConfig(ArchWarboy, 1, FiniteCount(12)),
		},
		{
			description:    "unnamed fused",
			input:          "warboy(2)*4",
			expectedResult: UnnamedConfig(ArchWarboy, 2, FiniteCount(4)),
		},
		{
			description:    "unnamed rngd quad",
			input:          " rngd(4)*2 ",
			expectedResult: UnnamedConfig(ArchRngd, 4, FiniteCount(2)),
		},
		{description: "architecture only", input: "warboy", expectedError: true},
		{description: "missing count", input: "warboy*", expectedError: true},
		{description: "missing architecture", input: "*1", expectedError: true},
		{description: "unknown architecture", input: "some_npu*10", expectedError: true},
		{description: "unbalanced parenthesis", input: "warboy(2*10", expectedError: true},
		{description: "bare number", input: "0", expectedError: true},
		{description: "trailing colon", input: "npu0:", expectedError: true},
		{description: "trailing dash", input: "npu:0:0-1-", expectedError: true},
		{description: "reversed range", input: "npu:0:1-0", expectedError: true},
		{description: "missing cores", input: "npu:0", expectedError: true},
		{description: "not fusible", input: "warboy(4)*1", expectedError: true},
		{description: "zero count", input: "warboy(1)*0", expectedError: true},
		{description: "count overflow", input: "warboy(1)*256", expectedError: true},
		{description: "empty", input: "", expectedError: true},
	}

	for _, tc := range tests {
		t.Run(tc.description, func(t *testing.T) {
			actual, err := ParseConfig(tc.input)
			if tc.expectedError {
				assert.ErrorIs(t, err, ParseError)
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, tc.expectedResult, actual)
		})
	}
}

func TestDeviceConfigRoundTrip(t *testing.T) {
	inputs := []string{
		"warboy(1)*2",
		"warboy(2)*4",
		"0:0-1",
		"warboy:0:1",
		"rngd(4)*2",
		"warboy:0:0,rngd:1:4-7,warboy(2)*1",
		"3:1,rngd(1)*8",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			cfg, err := ParseDeviceConfig(input)
			require.NoError(t, err)
			assert.Equal(t, input, cfg.String())

			reparsed, err := ParseDeviceConfig(cfg.String())
			require.NoError(t, err)
			assert.Equal(t, cfg, reparsed)
		})
	}
}

func TestDeviceConfigNormalization(t *testing.T) {
	tests := []struct {
		description    string
		input          string
		expectedResult string
	}{
		{
			description:    "whitespace around clauses",
			input:          " warboy(1)*2 , warboy:0:0 ",
			expectedResult: "warboy:0:0,warboy(1)*2",
		},
		{
			description:    "implicit core count",
			input:          "warboy*3",
			expectedResult: "warboy(1)*3",
		},
		{
			description:    "aliases normalise",
			input:          "npu:0:0-1,Renegade(2)*1",
			expectedResult: "warboy:0:0-1,rngd(2)*1",
		},
		{
			description:    "named clauses move first, keeping their order",
			input:          "warboy(2)*1,1:0,warboy*2,0:1",
			expectedResult: "1:0,0:1,warboy(2)*1,warboy(1)*2",
		},
	}

	for _, tc := range tests {
		t.Run(tc.description, func(t *testing.T) {
			cfg, err := ParseDeviceConfig(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.expectedResult, cfg.String())

			// the normalised text is not the input, but it parses back to the same config
			reparsed, err := ParseDeviceConfig(cfg.String())
			require.NoError(t, err)
			assert.Equal(t, cfg, reparsed)
		})
	}
}

// The "all" count renders but has no parse grammar.
func TestDeviceConfigAllCountIsNotParseable(t *testing.T) {
	cfg := NewDeviceConfig(UnnamedConfig(ArchWarboy, 1, AllCount()))
	assert.Equal(t, "warboy(1)*all", cfg.String())

	_, err := ParseDeviceConfig(cfg.String())
	assert.ErrorIs(t, err, ParseError)
}

func TestConfigFit(t *testing.T) {
	single0, err := NewDeviceFile("/dev/npu0pe0")
	require.NoError(t, err)
	fused0, err := NewDeviceFile("/dev/npu0pe0-1")
	require.NoError(t, err)
	multi0, err := NewDeviceFile("/dev/npu0")
	require.NoError(t, err)
	single1, err := NewDeviceFile("/dev/npu1pe0")
	require.NoError(t, err)

	tests := []struct {
		description string
		config      Config
		arch        Arch
		file        DeviceFile
		expected    bool
	}{
		{"named exact", NamedConfig(ArchWarboy, 0, SingleCoreRange(0)), ArchWarboy, single0, true},
		{"named other index", NamedConfig(ArchWarboy, 0, SingleCoreRange(0)), ArchWarboy, single1, false},
		{"named other range", NamedConfig(ArchWarboy, 0, SingleCoreRange(0)), ArchWarboy, fused0, false},
		{"named other arch", NamedConfig(ArchRngd, 0, SingleCoreRange(0)), ArchWarboy, single0, false},
		{"named any arch", NamedConfig("", 0, SingleCoreRange(0)), ArchRngd, single0, true},
		{"unnamed single", UnnamedConfig(ArchWarboy, 1, FiniteCount(1)), ArchWarboy, single1, true},
		{"unnamed width mismatch", UnnamedConfig(ArchWarboy, 2, FiniteCount(1)), ArchWarboy, single0, false},
		{"unnamed fused", UnnamedConfig(ArchWarboy, 2, FiniteCount(1)), ArchWarboy, fused0, true},
		{"unnamed never fits multi core", UnnamedConfig(ArchWarboy, 2, FiniteCount(1)), ArchWarboy, multi0, false},
		{"unnamed other arch", UnnamedConfig(ArchRngd, 1, FiniteCount(1)), ArchWarboy, single0, false},
	}

	for _, tc := range tests {
		t.Run(tc.description, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.config.Fit(tc.arch, tc.file))
		})
	}
}

func TestConfigCount(t *testing.T) {
	assert.Equal(t, FiniteCount(1), NamedConfig(ArchWarboy, 0, SingleCoreRange(0)).Count())
	assert.Equal(t, FiniteCount(5), UnnamedConfig(ArchWarboy, 1, FiniteCount(5)).Count())
	assert.True(t, UnnamedConfig(ArchWarboy, 1, AllCount()).Count().IsAll())
}

func TestDeviceConfigYAML(t *testing.T) {
	type request struct {
		Devices DeviceConfig `yaml:"devices"`
	}

	var actual request
	require.NoError(t, yaml.Unmarshal([]byte("devices: warboy(2)*1,warboy:1:0\n"), &actual))
	assert.Equal(t, "warboy:1:0,warboy(2)*1", actual.Devices.String())

	out, err := yaml.Marshal(actual)
	require.NoError(t, err)
	assert.Contains(t, string(out), "warboy:1:0,warboy(2)*1")

	assert.Error(t, yaml.Unmarshal([]byte("devices: warboy\n"), &actual))
}

func TestDefaultDeviceConfig(t *testing.T) {
	assert.Equal(t, "warboy(2)*1", DefaultDeviceConfig().String())
}

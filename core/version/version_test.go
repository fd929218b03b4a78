package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emenda-labs/nuver/core/changespec"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Version
		wantErr bool
	}{
		{in: "2.3.1", want: Version{Major: 2, Minor: 3, Patch: 1}},
		{in: "1.0.0-beta.2", want: Version{Major: 1, Prerelease: "beta.2"}},
		{in: "1.0.0-rc1+sha.abc", want: Version{Major: 1, Prerelease: "rc1", Build: "sha.abc"}},
		{in: "0.0.0", want: Version{}},
		{in: "1.2.3.4", wantErr: true},
		{in: "1.2", wantErr: true},
		{in: "1", wantErr: true},
		{in: "v1.2.3", wantErr: true},
		{in: "01.2.3", wantErr: true},
		{in: "", wantErr: true},
		{in: "latest", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidVersion)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, got.String())
		})
	}
}

func TestNext(t *testing.T) {
	tests := []struct {
		name     string
		severity changespec.Severity
		current  string
		def      string
		want     string
	}{
		{name: "none bumps patch", severity: changespec.SeverityNone, current: "2.3.1", want: "2.3.2"},
		{name: "patch bumps patch", severity: changespec.SeverityPatch, current: "2.3.1", want: "2.3.2"},
		{name: "minor", severity: changespec.SeverityMinor, current: "2.3.1", want: "2.4.0"},
		{name: "major", severity: changespec.SeverityMajor, current: "2.3.1", want: "3.0.0"},
		{name: "label kept", severity: changespec.SeverityMinor, current: "1.4.7-preview", want: "1.5.0-preview"},
		{name: "build dropped", severity: changespec.SeverityPatch, current: "1.0.0+abc", want: "1.0.1"},
		{name: "new uses default", severity: changespec.SeverityNew, def: "0.1.0-alpha", want: "0.1.0-alpha"},
		{name: "new falls back to 1.0.0", severity: changespec.SeverityNew, want: "1.0.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Next(tt.severity, tt.current, tt.def)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNext_Monotonicity(t *testing.T) {
	cur, err := Parse("4.5.6")
	require.NoError(t, err)

	major, err := cur.Bump(changespec.SeverityMajor)
	require.NoError(t, err)
	assert.Equal(t, Version{Major: 5}, major)

	minor, err := cur.Bump(changespec.SeverityMinor)
	require.NoError(t, err)
	assert.Equal(t, Version{Major: 4, Minor: 6}, minor)

	patch, err := cur.Bump(changespec.SeverityPatch)
	require.NoError(t, err)
	assert.Equal(t, Version{Major: 4, Minor: 5, Patch: 7}, patch)
}

func TestNext_Errors(t *testing.T) {
	_, err := Next(changespec.SeverityMajor, "1.0.0.0", "")
	assert.ErrorIs(t, err, ErrInvalidVersion)

	_, err = Next(changespec.SeverityNew, "", "1.0")
	assert.ErrorIs(t, err, ErrInvalidVersion)

	_, err = Next(changespec.Severity(17), "1.0.0", "")
	assert.ErrorIs(t, err, changespec.ErrUnknownSeverity)
}

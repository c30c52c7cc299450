package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	t.Parallel()

	s := Default()
	require.NoError(t, Validate(&s))
	require.Equal(t, SigVersionTapscript, s.SigVersion)
	require.True(t, s.CleanStackFlag)
}

func TestValidateRejectsUnknownSigVersion(t *testing.T) {
	t.Parallel()

	s := Default()
	s.SigVersion = "not-a-real-version"
	require.Error(t, Validate(&s))
}

func TestValidateRejectsNonPositiveSampleLimit(t *testing.T) {
	t.Parallel()

	s := Default()
	s.MaxSamplesForDynamicStackAccess = 0
	require.Error(t, Validate(&s))

	s.MaxSamplesForDynamicStackAccess = -1
	require.Error(t, Validate(&s))
}

func TestValidateIncompleteScriptDisablesCleanStack(t *testing.T) {
	t.Parallel()

	s := Default()
	require.True(t, s.CleanStackFlag)

	s.IsIncompleteScript = true
	require.NoError(t, Validate(&s))
	require.False(t, s.CleanStackFlag, "an incomplete script has no final stack to clean-stack check")
}

func TestValidateAcceptsEveryDeclaredSigVersion(t *testing.T) {
	t.Parallel()

	for _, sv := range []SigVersion{SigVersionBase, SigVersionWitnessV0, SigVersionTapscript} {
		sv := sv
		s := Default()
		s.SigVersion = sv
		require.NoError(t, Validate(&s), "sigversion %q should be accepted", sv)
	}
}

package domain_test

import (
	"testing"

	"github.com/castellan/castellan/internal/auth/domain"
	"github.com/stretchr/testify/require"
)

func TestParseAuthenticationMethod(t *testing.T) {
	for _, valid := range []string{
		"password", "mfa",
		"social:google", "social:facebook", "social:github", "social:twitter",
	} {
		m, err := domain.ParseAuthenticationMethod(valid)
		require.NoError(t, err)
		require.Equal(t, valid, m.String())
	}

	_, err := domain.ParseAuthenticationMethod("social:myspace")
	require.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = domain.ParseAuthenticationMethod("")
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestAssuranceLevels(t *testing.T) {
	require.Equal(t, domain.AssuranceSingleFactor, domain.MethodPassword.AssuranceLevel())
	require.Equal(t, domain.AssuranceSingleFactor, domain.MethodSocialGoogle.AssuranceLevel())
	require.Equal(t, domain.AssuranceSingleFactor, domain.MethodSocialTwitter.AssuranceLevel())
	require.Equal(t, domain.AssuranceMultiFactor, domain.MethodMFA.AssuranceLevel())
}

func TestSameAssuranceGroupsSingleFactorMethods(t *testing.T) {
	// password and social methods are interchangeable
	require.True(t, domain.MethodPassword.SameAssurance(domain.MethodSocialGitHub))
	require.True(t, domain.MethodSocialGoogle.SameAssurance(domain.MethodSocialFacebook))

	// mfa is not interchangeable with any single-factor method
	require.False(t, domain.MethodMFA.SameAssurance(domain.MethodPassword))
	require.False(t, domain.MethodMFA.SameAssurance(domain.MethodSocialGoogle))
	require.True(t, domain.MethodMFA.SameAssurance(domain.MethodMFA))
}

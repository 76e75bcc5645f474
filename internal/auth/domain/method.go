package domain

import "fmt"

// AuthenticationMethod identifies how a session was established.
type AuthenticationMethod string

const (
	MethodPassword       AuthenticationMethod = "password"
	MethodMFA            AuthenticationMethod = "mfa"
	MethodSocialGoogle   AuthenticationMethod = "social:google"
	MethodSocialFacebook AuthenticationMethod = "social:facebook"
	MethodSocialGitHub   AuthenticationMethod = "social:github"
	MethodSocialTwitter  AuthenticationMethod = "social:twitter"
)

// Assurance levels. Password and every social method establish identity at
// the same coarse tier; MFA ranks above them.
const (
	AssuranceSingleFactor = 1
	AssuranceMultiFactor  = 2
)

var knownMethods = map[AuthenticationMethod]int{
	MethodPassword:       AssuranceSingleFactor,
	MethodSocialGoogle:   AssuranceSingleFactor,
	MethodSocialFacebook: AssuranceSingleFactor,
	MethodSocialGitHub:   AssuranceSingleFactor,
	MethodSocialTwitter:  AssuranceSingleFactor,
	MethodMFA:            AssuranceMultiFactor,
}

// ParseAuthenticationMethod validates s against the known method set.
func ParseAuthenticationMethod(s string) (AuthenticationMethod, error) {
	m := AuthenticationMethod(s)
	if _, ok := knownMethods[m]; !ok {
		return "", fmt.Errorf("authentication method %q: %w", s, ErrInvalidArgument)
	}
	return m, nil
}

// SocialMethod returns the method for a social provider name ("google",
// "github", ...).
func SocialMethod(provider string) (AuthenticationMethod, error) {
	return ParseAuthenticationMethod("social:" + provider)
}

func (m AuthenticationMethod) String() string { return string(m) }

// AssuranceLevel returns the coarse identity-assurance tier of the method.
// Unknown methods rank at 0, below every real method.
func (m AuthenticationMethod) AssuranceLevel() int {
	return knownMethods[m]
}

// SameAssurance reports whether two methods are interchangeable for session
// validation. The comparison is by assurance level, not exact method: a
// password session satisfies a request demanding social:github, but an MFA
// session never satisfies a single-factor request and vice versa.
func (m AuthenticationMethod) SameAssurance(other AuthenticationMethod) bool {
	return m.AssuranceLevel() == other.AssuranceLevel()
}

// Package render substitutes named placeholders in outreach message text
// with values derived from a restaurant. Resolution never fails: unknown
// variables and failed derivations are left in the text verbatim so a bad
// template can never abort sequence creation.
package render

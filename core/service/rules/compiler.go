// Package rules compiles categorization rules into provider-native search
// expressions. Compilation is pure; the recency bound is ANDed on by the
// pipeline, never here.
package rules

import (
	"fmt"
	"strings"

	"mailpilot/core/domain"
	"mailpilot/pkg/apperr"
)

// Compile renders a rule as a search expression for the given provider. The
// expression is opaque to everything but that provider's adapter. selfEmail
// is the mailbox owner's address; the Graph rendering needs it for recipient
// filters (Gmail has a literal "me" operator).
//
// Every optional clause joins the primary match and each other clause with
// the rule's single AND/OR logic flag. A rule with no optional clauses
// ignores the flag entirely.
func Compile(rule domain.Rule, provider domain.Provider, selfEmail string) (string, error) {
	value := strings.TrimSpace(rule.MatchValue)
	if value == "" {
		return "", apperr.InvalidInput("match_value", "must not be empty")
	}

	switch provider {
	case domain.ProviderGmail:
		return compileGmail(rule, value)
	case domain.ProviderOutlook:
		return compileGraph(rule, value, selfEmail)
	default:
		return "", apperr.InvalidInput("provider", fmt.Sprintf("unsupported provider %q", provider))
	}
}

// =============================================================================
// Gmail rendering
// =============================================================================

func compileGmail(rule domain.Rule, value string) (string, error) {
	var clauses []string

	switch rule.MatchType {
	case domain.MatchSender:
		clauses = append(clauses, "from:"+value)
	case domain.MatchDomain:
		clauses = append(clauses, "from:*@"+strings.TrimPrefix(value, "@"))
	case domain.MatchKeyword:
		clauses = append(clauses, gmailPhrase(value))
	default:
		return "", apperr.InvalidInput("match_type", fmt.Sprintf("unknown match type %q", rule.MatchType))
	}

	switch rule.RecipientFilter {
	case domain.RecipientToMe:
		clauses = append(clauses, "to:me")
	case domain.RecipientCcMe:
		clauses = append(clauses, "cc:me")
	case domain.RecipientToOrCc:
		clauses = append(clauses, "(to:me OR cc:me)")
	}

	if s := strings.TrimSpace(rule.SubjectContains); s != "" {
		clauses = append(clauses, "subject:"+gmailPhrase(s))
	}
	if b := strings.TrimSpace(rule.BodyContains); b != "" {
		clauses = append(clauses, gmailPhrase(b))
	}

	if len(clauses) == 1 {
		return clauses[0], nil
	}
	if rule.ConditionLogic == domain.LogicOr {
		return "(" + strings.Join(clauses, " OR ") + ")", nil
	}
	// Gmail ANDs space-separated terms
	return strings.Join(clauses, " "), nil
}

// gmailPhrase quotes a value for full-text matching. Embedded double quotes
// would terminate the phrase, so they are stripped.
func gmailPhrase(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, "") + `"`
}

// =============================================================================
// Graph OData rendering
// =============================================================================

func compileGraph(rule domain.Rule, value, selfEmail string) (string, error) {
	var clauses []string

	switch rule.MatchType {
	case domain.MatchSender:
		clauses = append(clauses, fmt.Sprintf("from/emailAddress/address eq '%s'", odataEscape(value)))
	case domain.MatchDomain:
		d := strings.TrimPrefix(value, "@")
		clauses = append(clauses, fmt.Sprintf("contains(from/emailAddress/address,'@%s')", odataEscape(d)))
	case domain.MatchKeyword:
		k := odataEscape(value)
		clauses = append(clauses, fmt.Sprintf("(contains(subject,'%s') or contains(body/content,'%s'))", k, k))
	default:
		return "", apperr.InvalidInput("match_type", fmt.Sprintf("unknown match type %q", rule.MatchType))
	}

	if rule.RecipientFilter != "" && rule.RecipientFilter != domain.RecipientAny {
		if selfEmail == "" {
			return "", apperr.InvalidInput("self_email", "required for recipient filters on outlook")
		}
		me := odataEscape(selfEmail)
		toMe := fmt.Sprintf("toRecipients/any(r: r/emailAddress/address eq '%s')", me)
		ccMe := fmt.Sprintf("ccRecipients/any(r: r/emailAddress/address eq '%s')", me)
		switch rule.RecipientFilter {
		case domain.RecipientToMe:
			clauses = append(clauses, toMe)
		case domain.RecipientCcMe:
			clauses = append(clauses, ccMe)
		case domain.RecipientToOrCc:
			clauses = append(clauses, "("+toMe+" or "+ccMe+")")
		}
	}

	if s := strings.TrimSpace(rule.SubjectContains); s != "" {
		clauses = append(clauses, fmt.Sprintf("contains(subject,'%s')", odataEscape(s)))
	}
	if b := strings.TrimSpace(rule.BodyContains); b != "" {
		clauses = append(clauses, fmt.Sprintf("contains(body/content,'%s')", odataEscape(b)))
	}

	if len(clauses) == 1 {
		return clauses[0], nil
	}
	op := " and "
	if rule.ConditionLogic == domain.LogicOr {
		op = " or "
	}
	return strings.Join(clauses, op), nil
}

// odataEscape doubles single quotes so a value cannot break out of an OData
// string literal.
func odataEscape(value string) string {
	return strings.ReplaceAll(value, "'", "''")
}

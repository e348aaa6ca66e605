package rules

import (
	"testing"

	"mailpilot/core/domain"
	"mailpilot/pkg/apperr"
)

const selfEmail = "me@corp.com"

func TestCompileGmail(t *testing.T) {
	tests := []struct {
		name string
		rule domain.Rule
		want string
	}{
		{
			name: "sender only",
			rule: domain.Rule{MatchType: domain.MatchSender, MatchValue: "a@b.com"},
			want: "from:a@b.com",
		},
		{
			name: "domain match",
			rule: domain.Rule{MatchType: domain.MatchDomain, MatchValue: "acme.com"},
			want: "from:*@acme.com",
		},
		{
			name: "domain with leading at sign",
			rule: domain.Rule{MatchType: domain.MatchDomain, MatchValue: "@acme.com"},
			want: "from:*@acme.com",
		},
		{
			name: "keyword is quoted full-text",
			rule: domain.Rule{MatchType: domain.MatchKeyword, MatchValue: "quarterly report"},
			want: `"quarterly report"`,
		},
		{
			name: "keyword strips embedded quotes",
			rule: domain.Rule{MatchType: domain.MatchKeyword, MatchValue: `say "hello"`},
			want: `"say hello"`,
		},
		{
			name: "sender and to-me",
			rule: domain.Rule{
				MatchType: domain.MatchSender, MatchValue: "a@b.com",
				RecipientFilter: domain.RecipientToMe, ConditionLogic: domain.LogicAnd,
			},
			want: "from:a@b.com to:me",
		},
		{
			name: "sender or cc-me",
			rule: domain.Rule{
				MatchType: domain.MatchSender, MatchValue: "a@b.com",
				RecipientFilter: domain.RecipientCcMe, ConditionLogic: domain.LogicOr,
			},
			want: "(from:a@b.com OR cc:me)",
		},
		{
			name: "to-or-cc keeps its own grouping",
			rule: domain.Rule{
				MatchType: domain.MatchSender, MatchValue: "a@b.com",
				RecipientFilter: domain.RecipientToOrCc, ConditionLogic: domain.LogicAnd,
			},
			want: "from:a@b.com (to:me OR cc:me)",
		},
		{
			name: "all clauses ANDed",
			rule: domain.Rule{
				MatchType: domain.MatchDomain, MatchValue: "acme.com",
				RecipientFilter: domain.RecipientToMe,
				SubjectContains: "invoice", BodyContains: "overdue",
				ConditionLogic: domain.LogicAnd,
			},
			want: `from:*@acme.com to:me subject:"invoice" "overdue"`,
		},
		{
			name: "all clauses ORed",
			rule: domain.Rule{
				MatchType: domain.MatchSender, MatchValue: "a@b.com",
				SubjectContains: "invoice", BodyContains: "overdue",
				ConditionLogic: domain.LogicOr,
			},
			want: `(from:a@b.com OR subject:"invoice" OR "overdue")`,
		},
		{
			name: "single clause ignores logic flag",
			rule: domain.Rule{
				MatchType: domain.MatchSender, MatchValue: "a@b.com",
				RecipientFilter: domain.RecipientAny, ConditionLogic: domain.LogicOr,
			},
			want: "from:a@b.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compile(tt.rule, domain.ProviderGmail, selfEmail)
			if err != nil {
				t.Fatalf("Compile() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Compile() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCompileGraph(t *testing.T) {
	tests := []struct {
		name string
		rule domain.Rule
		want string
	}{
		{
			name: "sender only",
			rule: domain.Rule{MatchType: domain.MatchSender, MatchValue: "a@b.com"},
			want: "from/emailAddress/address eq 'a@b.com'",
		},
		{
			name: "domain match",
			rule: domain.Rule{MatchType: domain.MatchDomain, MatchValue: "acme.com"},
			want: "contains(from/emailAddress/address,'@acme.com')",
		},
		{
			name: "keyword searches subject and body",
			rule: domain.Rule{MatchType: domain.MatchKeyword, MatchValue: "invoice"},
			want: "(contains(subject,'invoice') or contains(body/content,'invoice'))",
		},
		{
			name: "single quotes escaped",
			rule: domain.Rule{MatchType: domain.MatchSender, MatchValue: "o'brien@b.com"},
			want: "from/emailAddress/address eq 'o''brien@b.com'",
		},
		{
			name: "sender and to-me",
			rule: domain.Rule{
				MatchType: domain.MatchSender, MatchValue: "a@b.com",
				RecipientFilter: domain.RecipientToMe, ConditionLogic: domain.LogicAnd,
			},
			want: "from/emailAddress/address eq 'a@b.com' and toRecipients/any(r: r/emailAddress/address eq 'me@corp.com')",
		},
		{
			name: "to-or-cc grouped",
			rule: domain.Rule{
				MatchType: domain.MatchSender, MatchValue: "a@b.com",
				RecipientFilter: domain.RecipientToOrCc, ConditionLogic: domain.LogicAnd,
			},
			want: "from/emailAddress/address eq 'a@b.com' and (toRecipients/any(r: r/emailAddress/address eq 'me@corp.com') or ccRecipients/any(r: r/emailAddress/address eq 'me@corp.com'))",
		},
		{
			name: "subject and body clauses ORed",
			rule: domain.Rule{
				MatchType: domain.MatchKeyword, MatchValue: "invoice",
				SubjectContains: "urgent", BodyContains: "overdue",
				ConditionLogic: domain.LogicOr,
			},
			want: "(contains(subject,'invoice') or contains(body/content,'invoice')) or contains(subject,'urgent') or contains(body/content,'overdue')",
		},
		{
			name: "single clause ignores logic flag",
			rule: domain.Rule{
				MatchType: domain.MatchDomain, MatchValue: "acme.com",
				ConditionLogic: domain.LogicOr,
			},
			want: "contains(from/emailAddress/address,'@acme.com')",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compile(tt.rule, domain.ProviderOutlook, selfEmail)
			if err != nil {
				t.Fatalf("Compile() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Compile() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCompileErrors(t *testing.T) {
	// empty match value
	_, err := Compile(domain.Rule{MatchType: domain.MatchSender, MatchValue: "  "}, domain.ProviderGmail, selfEmail)
	if !apperr.IsCode(err, apperr.CodeInvalidInput) {
		t.Errorf("empty match value: error = %v, want INVALID_INPUT", err)
	}

	// unknown provider
	_, err = Compile(domain.Rule{MatchType: domain.MatchSender, MatchValue: "a@b.com"}, domain.Provider("yahoo"), selfEmail)
	if !apperr.IsCode(err, apperr.CodeInvalidInput) {
		t.Errorf("unknown provider: error = %v, want INVALID_INPUT", err)
	}

	// unknown match type
	_, err = Compile(domain.Rule{MatchType: domain.MatchType("regex"), MatchValue: "x"}, domain.ProviderGmail, selfEmail)
	if !apperr.IsCode(err, apperr.CodeInvalidInput) {
		t.Errorf("unknown match type: error = %v, want INVALID_INPUT", err)
	}

	// recipient filter on outlook needs the account email
	_, err = Compile(domain.Rule{
		MatchType: domain.MatchSender, MatchValue: "a@b.com",
		RecipientFilter: domain.RecipientToMe,
	}, domain.ProviderOutlook, "")
	if !apperr.IsCode(err, apperr.CodeInvalidInput) {
		t.Errorf("missing self email: error = %v, want INVALID_INPUT", err)
	}
}

package advisor

import (
	"fmt"
	"strings"

	"taxthink-server/internal/domain/taxsession"
)

// jurisdictionProfile holds the domain knowledge injected into the system
// prompt for one tax jurisdiction.
type jurisdictionProfile struct {
	TaxSystem        string
	Currency         string
	KeyAreas         string
	CommonDeductions string
	ComplianceItems  string
}

// welcomeProfile holds the jurisdiction-specific parts of the welcome message.
type welcomeProfile struct {
	Jurisdiction string
	Examples     string
}

var jurisdictionProfiles = map[taxsession.Jurisdiction]jurisdictionProfile{
	taxsession.JurisdictionUS: {
		TaxSystem:        "United States federal and state tax system",
		Currency:         "USD",
		KeyAreas:         "federal income tax, state taxes, IRS codes, deductions, credits, retirement accounts (401k, IRA), business entity types (LLC, S-Corp, C-Corp), self-employment tax, estimated quarterly payments",
		CommonDeductions: "home office, business expenses, equipment depreciation, professional development, business insurance, vehicle expenses, business meals",
		ComplianceItems:  "Form 1040, Schedule C (business), quarterly estimated payments, state filing requirements, business license requirements",
	},
	taxsession.JurisdictionIN: {
		TaxSystem:        "Indian tax system including Income Tax Act and GST",
		Currency:         "INR",
		KeyAreas:         "Income Tax Act sections, GST, TDS (Tax Deducted at Source), advance tax, ITR forms, professional tax, business registration, MSME benefits",
		CommonDeductions: "Section 80C (ELSS, PPF, insurance), Section 80D (health insurance), home loan interest, professional expenses, business equipment",
		ComplianceItems:  "ITR filing, GST returns, TDS compliance, advance tax payments, professional tax registration, business compliance certificates",
	},
}

var welcomeProfiles = map[taxsession.Jurisdiction]welcomeProfile{
	taxsession.JurisdictionUS: {
		Jurisdiction: "United States",
		Examples:     "personal income tax, business deductions, retirement planning, state tax considerations",
	},
	taxsession.JurisdictionIN: {
		Jurisdiction: "India",
		Examples:     "Income Tax Act compliance, GST planning, TDS optimization, business registration benefits",
	},
}

// profileFor falls back to the US profile for unknown jurisdictions so that
// generation never fails on a bad stored value.
func profileFor(jurisdiction taxsession.Jurisdiction) jurisdictionProfile {
	if p, ok := jurisdictionProfiles[jurisdiction]; ok {
		return p
	}
	return jurisdictionProfiles[taxsession.JurisdictionUS]
}

func welcomeProfileFor(jurisdiction taxsession.Jurisdiction) welcomeProfile {
	if p, ok := welcomeProfiles[jurisdiction]; ok {
		return p
	}
	return welcomeProfiles[taxsession.JurisdictionUS]
}

// buildSystemPrompt renders the full system prompt for a jurisdiction and
// display currency.
func buildSystemPrompt(jurisdiction taxsession.Jurisdiction, currency taxsession.Currency) string {
	profile := profileFor(jurisdiction)

	return fmt.Sprintf(`You are TaxThink AI, an expert tax thinking companion specializing in %s. Your role is to help users think through tax situations systematically by asking contextual questions and providing structured guidance.

CONTEXT: %s with %s currency.

KEY EXPERTISE AREAS:
%s

COMMON DEDUCTIONS & CREDITS:
%s

COMPLIANCE REQUIREMENTS:
%s

YOUR APPROACH:
1. Ask targeted, contextual questions to gather necessary information
2. Break complex tax situations into manageable categories
3. Provide structured thinking frameworks
4. Identify optimization opportunities
5. Highlight compliance requirements and deadlines
6. Suggest actionable next steps

RESPONSE FORMAT:
Always respond with a JSON object containing:
{
  "content": "Your main response with structured guidance and questions",
  "thinkingMode": "Current analysis focus (e.g., 'Business Tax Optimization', 'Personal Deduction Planning')",
  "categories": ["relevant tax categories being discussed"],
  "actionItems": ["specific tasks the user should complete"],
  "keyInsights": ["important findings or opportunities identified"],
  "nextQuestions": ["follow-up questions to ask based on user's response"]
}

Remember to:
- Use %s currency format
- Reference appropriate %s tax codes and forms
- Consider jurisdiction-specific tax planning strategies
- Be professional but conversational
- Focus on practical, actionable guidance`,
		profile.TaxSystem,
		profile.TaxSystem,
		profile.Currency,
		profile.KeyAreas,
		profile.CommonDeductions,
		profile.ComplianceItems,
		strings.ToUpper(string(currency)),
		strings.ToUpper(string(jurisdiction)),
	)
}

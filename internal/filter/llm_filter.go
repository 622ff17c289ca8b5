package filter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cloudwego/eino/components/model"
	einoschema "github.com/cloudwego/eino/schema"

	"job-match-go/internal/domain"
	"job-match-go/internal/logger"
)

// maxCandidatesPerPrompt caps how many jobs are described in one prompt.
// Beyond this the reasoning service's decisions get unreliable.
const maxCandidatesPerPrompt = 20

// defaultCallTimeout bounds the reasoning-service call. The filter fails
// open on expiry, so a generous bound costs latency, not correctness.
const defaultCallTimeout = 30 * time.Second

const systemPrompt = `You are a senior technical recruiter reviewing job matches for a candidate. ` +
	`For each job decide whether it is genuinely appropriate given the candidate's profile. ` +
	`Filter out jobs with a clear seniority mismatch or an unrelated domain. ` +
	`Respond with a single JSON object and nothing else.`

const promptTemplate = `Candidate profile:
- Skills: %s
- Experience level: %s
- Years of experience: %.1f
- Recent titles: %s

Candidate jobs (pre-scored by an automated matcher):
%s

For every job above, output one decision. Respond with exactly this JSON shape:
{
  "decisions": [
    {"job_id": "<id>", "decision": "KEEP" or "FILTER_OUT", "reason": "<short reason>", "confidence_adjustment": "INCREASE" or "DECREASE" or "NONE"}
  ]
}
All field names and string values must use double quotes. Do not wrap the JSON in markdown fences or add any text outside the JSON object.`

// filterDecision is one per-job verdict parsed from the reasoning service.
type filterDecision struct {
	JobID                string `json:"job_id"`
	Decision             string `json:"decision"`
	Reason               string `json:"reason"`
	ConfidenceAdjustment string `json:"confidence_adjustment"`
}

type filterResponse struct {
	Decisions []filterDecision `json:"decisions"`
}

// LLMFilter implements AppropriatenessFilter against an external reasoning
// service. Every failure mode (call error, timeout, malformed or incomplete
// output) fails open: the original candidates come back truncated to topK
// with no adjustment.
type LLMFilter struct {
	llmModel    model.ToolCallingChatModel
	callTimeout time.Duration
}

var _ AppropriatenessFilter = (*LLMFilter)(nil)

// LLMFilterOption customizes an LLMFilter.
type LLMFilterOption func(*LLMFilter)

// WithCallTimeout bounds each reasoning-service call.
func WithCallTimeout(d time.Duration) LLMFilterOption {
	return func(f *LLMFilter) {
		if d > 0 {
			f.callTimeout = d
		}
	}
}

// NewLLMFilter creates a filter backed by the given chat model.
func NewLLMFilter(llmModel model.ToolCallingChatModel, opts ...LLMFilterOption) *LLMFilter {
	f := &LLMFilter{
		llmModel:    llmModel,
		callTimeout: defaultCallTimeout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Filter asks the reasoning service for a keep/drop verdict on up to 20
// candidates and applies confidence adjustments one step at a time.
func (f *LLMFilter) Filter(ctx context.Context, profile *domain.ResumeProfile, candidates []*domain.MatchResult, topK int) (*Result, error) {
	if len(candidates) == 0 {
		return &Result{}, nil
	}
	if f.llmModel == nil {
		logger.Logger.Warn().Msg("appropriateness filter has no model configured, passing candidates through")
		return &Result{Kept: truncate(candidates, topK), FailedOpen: true}, nil
	}

	prompt := buildFilterPrompt(profile, candidates)

	callCtx, cancel := context.WithTimeout(ctx, f.callTimeout)
	defer cancel()

	messages := []*einoschema.Message{
		einoschema.SystemMessage(systemPrompt),
		einoschema.UserMessage(prompt),
	}

	response, err := f.llmModel.Generate(callCtx, messages)
	if err != nil {
		logger.Logger.Warn().Err(err).Msg("reasoning service call failed, filter failing open")
		return &Result{Kept: truncate(candidates, topK), FailedOpen: true}, nil
	}
	if response == nil || response.Content == "" {
		logger.Logger.Warn().Msg("reasoning service returned empty response, filter failing open")
		return &Result{Kept: truncate(candidates, topK), FailedOpen: true}, nil
	}

	decisions, err := parseFilterResponse(response.Content)
	if err != nil {
		logger.Logger.Warn().Err(err).Msg("reasoning service response unparseable, filter failing open")
		return &Result{Kept: truncate(candidates, topK), FailedOpen: true}, nil
	}

	return applyDecisions(candidates, decisions, topK), nil
}

// buildFilterPrompt renders the profile and at most 20 candidates into the
// user message.
func buildFilterPrompt(profile *domain.ResumeProfile, candidates []*domain.MatchResult) string {
	described := candidates
	if len(described) > maxCandidatesPerPrompt {
		described = described[:maxCandidatesPerPrompt]
	}

	var jobs strings.Builder
	for i, c := range described {
		fmt.Fprintf(&jobs, "%d. job_id=%s | %s at %s | score %.2f | overlapping skills: %s\n",
			i+1, c.JobID, c.Title, c.Company, c.Score, strings.Join(c.MatchedSkills, ", "))
	}

	skills := "none listed"
	if len(profile.Skills) > 0 {
		skills = strings.Join(profile.Skills, ", ")
	}
	titles := "none listed"
	if len(profile.Titles) > 0 {
		titles = strings.Join(profile.Titles, ", ")
	}

	return fmt.Sprintf(promptTemplate, skills, profile.ExperienceLevel, profile.YearsExperience, titles, jobs.String())
}

// parseFilterResponse extracts and decodes the decision JSON. Malformed
// string literals get one sanitization pass before giving up.
func parseFilterResponse(content string) ([]filterDecision, error) {
	content = strings.TrimPrefix(content, "\uFEFF")

	jsonStr := extractJSON(content)
	if jsonStr == "" {
		return nil, fmt.Errorf("no JSON object in response")
	}
	if !utf8.ValidString(jsonStr) {
		jsonStr = strings.ToValidUTF8(jsonStr, "")
	}

	var parsed filterResponse
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
		fixed := sanitizeJSON(jsonStr)
		if fixErr := json.Unmarshal([]byte(fixed), &parsed); fixErr != nil {
			return nil, fmt.Errorf("unmarshal failed after sanitization: %w", err)
		}
	}
	if len(parsed.Decisions) == 0 {
		return nil, fmt.Errorf("response contains no decisions")
	}
	return parsed.Decisions, nil
}

// applyDecisions partitions candidates by verdict. Jobs the service did not
// mention are kept unchanged; an absent verdict is not a rejection.
func applyDecisions(candidates []*domain.MatchResult, decisions []filterDecision, topK int) *Result {
	byJob := make(map[string]filterDecision, len(decisions))
	for _, d := range decisions {
		byJob[d.JobID] = d
	}

	result := &Result{}
	for _, c := range candidates {
		d, ok := byJob[c.JobID]
		if !ok {
			result.Kept = append(result.Kept, c)
			continue
		}
		if strings.EqualFold(strings.TrimSpace(d.Decision), "FILTER_OUT") {
			result.Rejected = append(result.Rejected, Rejection{Match: c, Reason: d.Reason})
			continue
		}

		adjusted := *c
		switch strings.ToUpper(strings.TrimSpace(d.ConfidenceAdjustment)) {
		case "INCREASE":
			adjusted.Confidence = c.Confidence.Bump(1)
		case "DECREASE":
			adjusted.Confidence = c.Confidence.Bump(-1)
		}
		adjusted.FilterReason = d.Reason
		result.Kept = append(result.Kept, &adjusted)
	}

	result.Kept = truncate(result.Kept, topK)
	return result
}

// extractJSON returns the first balanced top-level JSON object in text.
func extractJSON(text string) string {
	start := strings.Index(text, "{")
	if start == -1 {
		return ""
	}
	level := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case '{':
			level++
		case '}':
			level--
			if level == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

// sanitizeJSON rewrites unescaped double quotes inside string literals as \".
// A quote only terminates a string when the next non-space character is one
// of the structural characters :, ,, ] or }.
func sanitizeJSON(src string) string {
	var b strings.Builder
	inStr := false
	escaped := false

	for i := 0; i < len(src); i++ {
		c := src[i]

		switch {
		case c == '"' && !escaped:
			if !inStr {
				inStr = true
				b.WriteByte(c)
			} else {
				j := i + 1
				for j < len(src) && (src[j] == ' ' || src[j] == '\t' || src[j] == '\n' || src[j] == '\r') {
					j++
				}
				if j < len(src) && (src[j] == ':' || src[j] == ',' || src[j] == ']' || src[j] == '}') {
					inStr = false
					b.WriteByte(c)
				} else {
					b.WriteString("\\\"")
				}
			}
			escaped = false

		case c == '\\' && !escaped:
			escaped = true
			b.WriteByte(c)

		default:
			b.WriteByte(c)
			escaped = false
		}
	}

	return b.String()
}

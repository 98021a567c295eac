package pipeline

import "fmt"

// Stage names as they appear in updates, stage results, and gate queries.
const (
	StageAnalysis = "analysis"
	StageResearch = "research"
	StageCritic   = "critic"
	StageMonitor  = "monitor"
	StageRatings  = "ratings"
	StageSummary  = "summary"
)

// monitorExcerptLen bounds how much of each prior response the monitor
// stage quotes back into its prompt.
const monitorExcerptLen = 500

// Stage is one step of the fixed analysis sequence.
type Stage struct {
	// Name identifies the stage everywhere it is observable.
	Name string

	// Blurb is streamed in the stage's thinking update.
	Blurb string

	// SystemPrompt is the stage's role prompt, sent as the system message.
	SystemPrompt string

	// BuildPrompt produces the user prompt from the problem and prior stage
	// outputs keyed by stage name.
	BuildPrompt func(problem string, prior map[string]string) string
}

// DefaultStages returns the built-in sequence: analysis, research, critic,
// monitor, summary. When includeRatings is set, a ratings stage is inserted
// before summary.
func DefaultStages(includeRatings bool) []Stage {
	stages := []Stage{
		analysisStage(),
		researchStage(),
		criticStage(),
		monitorStage(),
	}
	if includeRatings {
		stages = append(stages, ratingsStage())
	}
	return append(stages, summaryStage())
}

func analysisStage() Stage {
	return Stage{
		Name:  StageAnalysis,
		Blurb: "Analyzing the problem and breaking it down into sub-problems...",
		SystemPrompt: `You are an Analysis Agent in a multi-agent thinking system.
Your role is to:
1. Understand the problem and break it down into sub-problems
2. Build a structured thinking and solution plan
3. Identify key components and relationships
4. Define clear objectives and success criteria

Be thorough, systematic, and clear in your analysis. Focus on understanding the problem deeply before proposing solutions.`,
		BuildPrompt: func(problem string, prior map[string]string) string {
			return fmt.Sprintf(`Analyze the following problem in depth:

Problem: %s

Please provide:
1. A clear understanding of what the problem is asking
2. Breakdown into key sub-problems or components
3. A structured plan for approaching this problem
4. Key assumptions and constraints
5. Success criteria for a good solution`, problem)
		},
	}
}

func researchStage() Stage {
	return Stage{
		Name:  StageResearch,
		Blurb: "Gathering relevant knowledge, existing information, and professional assumptions...",
		SystemPrompt: `You are a Research Agent in a multi-agent thinking system.
Your role is to:
1. Gather relevant knowledge, existing information, professional assumptions
2. Collect theoretical insights or external data (if needed)
3. Identify relevant frameworks, approaches, or methodologies
4. Find examples, case studies, or patterns
5. Note gaps in knowledge that might need further investigation

Be comprehensive in your research approach. Think about what information would be valuable for solving this problem.`,
		BuildPrompt: func(problem string, prior map[string]string) string {
			return fmt.Sprintf(`Based on the problem and analysis, gather relevant knowledge and context.

Problem: %s

Analysis:
%s

Please provide:
1. Relevant theoretical frameworks or approaches that apply
2. Key concepts, principles, or methodologies that could be useful
3. Important assumptions or constraints to consider
4. Any relevant examples, case studies, or patterns
5. Gaps in knowledge that might need external data or further investigation
6. Professional insights or best practices related to this type of problem`, problem, prior[StageAnalysis])
		},
	}
}

func criticStage() Stage {
	return Stage{
		Name:  StageCritic,
		Blurb: "Critically evaluating the solution, identifying weaknesses and contradictions...",
		SystemPrompt: `You are a Critic Agent in a multi-agent thinking system.
Your role is to:
1. Critically evaluate the proposed solution
2. Identify weaknesses, contradictions, or false assumptions
3. Find potential risks or possible issues
4. Suggest improvements and alternative perspectives

Be thorough, constructive, and honest in your critique. Your goal is to improve the quality of thinking.`,
		BuildPrompt: func(problem string, prior map[string]string) string {
			return fmt.Sprintf(`Critically evaluate the current thinking and approach.

Problem: %s

Analysis:
%s

Research:
%s

Please provide:
1. Weaknesses or gaps in the current approach
2. Contradictions or logical inconsistencies
3. False assumptions or missing considerations
4. Potential risks or unintended consequences
5. Alternative perspectives or approaches to consider
6. Specific suggestions for improvement`, problem, prior[StageAnalysis], prior[StageResearch])
		},
	}
}

func monitorStage() Stage {
	return Stage{
		Name:  StageMonitor,
		Blurb: "Supervising the thinking process...",
		SystemPrompt: `You are a Monitor Agent in a multi-agent thinking system.
Your role is to:
1. Supervise the thinking process
2. Identify if the process is stuck in loops or deviating from the topic
3. Decide whether another iteration is needed or if the process can stop
4. Ensure the process is making progress toward meaningful insights

Be decisive and clear. Your decision should be based on whether meaningful progress is being made.`,
		BuildPrompt: func(problem string, prior map[string]string) string {
			return fmt.Sprintf(`Review the complete thinking process and provide a summary assessment.

Problem: %s

Complete analysis:
Analysis: %s...
Research: %s...
Critique: %s...

Please provide:
1. Overall assessment of the thinking process quality
2. Key strengths of the approach
3. Any concerns or limitations identified
4. Confidence level in the solution
5. Summary of the process completion`,
				problem,
				excerpt(prior[StageAnalysis]),
				excerpt(prior[StageResearch]),
				excerpt(prior[StageCritic]))
		},
	}
}

func ratingsStage() Stage {
	return Stage{
		Name:  StageRatings,
		Blurb: "Evaluating and rating each agent's contribution...",
		SystemPrompt: `You are a Final Ratings Agent in a multi-agent thinking system.
Your role is to:
1. Evaluate and rate each of the 4 agents (Analysis, Research, Critic, Monitor) based on how well they performed their specific tasks
2. Provide ratings on a scale of 1-10 for each agent
3. Give specific feedback on what each agent did well and what could be improved
4. Assess the overall quality and completeness of each agent's contribution
5. Consider how well each agent fulfilled its specific role and responsibilities

Be fair, constructive, and specific in your ratings. Focus on the quality of the work, not just the length of responses.`,
		BuildPrompt: func(problem string, prior map[string]string) string {
			return fmt.Sprintf(`Evaluate and rate each of the 4 agents based on how well they performed their specific roles.

**IMPORTANT: You must provide a numerical rating from 1 to 10 for each agent.**
- 1-3: Poor performance, significant issues
- 4-5: Below average, needs improvement
- 6-7: Average performance, acceptable
- 8-9: Good to excellent performance
- 10: Outstanding, exceptional performance

Original Problem: %s

## Analysis Agent Response:
%s

## Research Agent Response:
%s

## Critic Agent Response:
%s

## Monitor Agent Response:
%s

For each agent, provide:
1. **Rating**: A single number from 1 to 10
2. **Strengths**: What the agent did well
3. **Weaknesses**: Areas where the agent could improve
4. **Role Fulfillment**: How well the agent fulfilled its specific role and responsibilities
5. **Quality Assessment**: Overall quality of the response (clarity, depth, relevance, completeness)

Format your response with clear sections for each agent using ## headers for agent names and ### for sub-sections.
Use **bold** for emphasis on important points.`,
				problem,
				orNA(prior[StageAnalysis]),
				orNA(prior[StageResearch]),
				orNA(prior[StageCritic]),
				orNA(prior[StageMonitor]))
		},
	}
}

// summaryStage runs under the analysis role prompt, as the original
// synthesis step did.
func summaryStage() Stage {
	return Stage{
		Name:         StageSummary,
		Blurb:        "Summarizing all agent responses into final answer...",
		SystemPrompt: analysisStage().SystemPrompt,
		BuildPrompt: func(problem string, prior map[string]string) string {
			return fmt.Sprintf(`Based on the complete analysis by all 4 agents, provide a comprehensive final answer.

Original Problem: %s

Analysis Agent Response:
%s

Research Agent Response:
%s

Critic Agent Response:
%s

Monitor Agent Response:
%s

Provide a final, complete answer that:
1. Synthesizes all insights from the 4 agents into a coherent response
2. Directly answers the original problem with clear conclusions
3. Highlights key findings and actionable recommendations
4. Is well-structured with clear sections using ## for main headers and ### for sub-headers
5. Uses **bold** for emphasis on important points
6. Provides a complete answer - do NOT ask for additional information or clarification
7. Treat this as the final response - be definitive and comprehensive

Format your response like a professional analysis with proper markdown headers (## and ###) and bold text (**text**).`,
				problem,
				orNA(prior[StageAnalysis]),
				orNA(prior[StageResearch]),
				orNA(prior[StageCritic]),
				orNA(prior[StageMonitor]))
		},
	}
}

func excerpt(s string) string {
	s = orNA(s)
	if len(s) > monitorExcerptLen {
		return s[:monitorExcerptLen]
	}
	return s
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

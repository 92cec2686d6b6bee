package chain

const readmeMapPrompt = `Summarize this: {{.Docs}}`

const readmeCollapsePrompt = `
The following is set of summaries.
Take these and distill it into a final, consolidated summary of the Subject, implemented features, used skills.
----------
{{.Docs}}
----------
CONSOLIDATED SUMMARY:
`

const readmeCombinePrompt = `
You are an useful repository readme file generator.

You must generate README.md template according to repository content according to files below, in Korean.

Take the summaries and generate README.md following paragraphs:
  - 주제 (within 10 words)
  - 서비스 설명 (within 100 words)
  - 프로젝트 전체 구현 기능 (within 10 items)
  - 기술 스택 (within 10 items)
  - 기대 효과 (within 100 words)

Each paragraph should be separated with "##"(Heading level 2).
'프로젝트 전체 구현 기능' paragraph should contains brief comment about benefits of the functions.
'기대 효과' paragraph should contain expected experience and benefits from the app's features to users.

Summaries:
{{.Docs}}

----------
README.md:
`

const commitMapPrompt = `These are git diff of some code. Summary the feature and judge the quality of the code: {{.Docs}}`

const commitCollapsePrompt = `
The following is set of summary of implemented features and judgements of some source codes.
Take these and distill it into a final, consolidated summary of features and judgements.
The criteria of judgement are: Readability, Reusability, Performance, Testability, Exception Handling.
----------
{{.Docs}}
----------
CONSOLIDATED SUMMARY:
`

const commitCombinePrompt = `You are an useful software analyzer and code judge.

You must explain what the code implemented for.
And you must judge the code of the given commits, following some criteria, and brief a comment.

The explanation of the code should be clear what the code are for, and what skills are used to implement.

The criteria of the judgement are:
 * Readability: How easy is it to read and understand the code?
 * Reusability: How much the code has been reused, and have few duplicates?
 * Performance: How quick the code perform its intended function?
 * Testability: Is the code easy to test and debug?
 * Exception Handling: Are there proper exception handling mechanisms implemented in the code?

The scores must be integers, out of 100.

The output form should be following JSON.:
{
    "explanation": <code explanation>
    "score": {
        "readability": <readability score>
        "reusability": <reusability score>
        "performance": <performance score>
        "testability": <testability score>
        "exception": <exception handling score>
        "scoreComment": <brief comment about judgement>
    }
}

The 'explanation' and 'scoreComment' must be Korean.
Answer with only JSON.

Summaries:
{{.Docs}}

Answer:
`

// Chains holds the two analysis pipelines.
type Chains struct {
	Readme *Pipeline
	Commit *Pipeline
}

// NewChains builds the README and commit-scoring pipelines with the given
// token budget.
func NewChains(tokenMax int) Chains {
	return Chains{
		Readme: MustPipeline("readme", readmeMapPrompt, readmeCollapsePrompt, readmeCombinePrompt, tokenMax),
		Commit: MustPipeline("commit", commitMapPrompt, commitCollapsePrompt, commitCombinePrompt, tokenMax),
	}
}

package git

import (
	"fmt"
	"strings"
)

// PREnvironment CI 中的 PR/MR 信息
type PREnvironment struct {
	Provider   string `json:"provider"`
	BaseBranch string `json:"base_branch"`
	HeadBranch string `json:"head_branch"`
	Number     string `json:"number"`
	RepoOwner  string `json:"repo_owner"`
	RepoName   string `json:"repo_name"`
}

// DetectPREnvironment 识别 GitHub Actions 的 pull_request 事件和 GitLab CI 的 MR 流水线
func DetectPREnvironment(getenv func(string) string) (PREnvironment, bool) {
	if getenv("GITHUB_ACTIONS") == "true" && getenv("GITHUB_EVENT_NAME") == "pull_request" {
		env := PREnvironment{
			Provider:   "github",
			BaseBranch: getenv("GITHUB_BASE_REF"),
			HeadBranch: getenv("GITHUB_HEAD_REF"),
			Number:     getenv("GITHUB_PR_NUMBER"),
		}
		if env.Number == "" {
			// refs/pull/<n>/merge
			if parts := strings.Split(getenv("GITHUB_REF"), "/"); len(parts) == 4 && parts[1] == "pull" {
				env.Number = parts[2]
			}
		}
		env.RepoOwner, env.RepoName, _ = strings.Cut(getenv("GITHUB_REPOSITORY"), "/")
		return env, true
	}

	if getenv("GITLAB_CI") != "" && getenv("CI_MERGE_REQUEST_IID") != "" {
		env := PREnvironment{
			Provider:   "gitlab",
			BaseBranch: getenv("CI_MERGE_REQUEST_TARGET_BRANCH_NAME"),
			HeadBranch: getenv("CI_MERGE_REQUEST_SOURCE_BRANCH_NAME"),
			Number:     getenv("CI_MERGE_REQUEST_IID"),
		}
		env.RepoOwner, env.RepoName, _ = strings.Cut(getenv("CI_PROJECT_PATH"), "/")
		return env, true
	}

	return PREnvironment{}, false
}

// PRComment 把报告包装成 PR 评论的 Markdown
func PRComment(report string, env PREnvironment) string {
	var b strings.Builder
	b.WriteString("## 🤖 C++ Code Review Agent - 自动审查报告\n\n")
	fmt.Fprintf(&b, "**分析范围**: `%s` → `%s`\n", env.BaseBranch, env.HeadBranch)
	if env.Number != "" {
		fmt.Fprintf(&b, "**PR编号**: #%s\n", env.Number)
	}
	b.WriteString("\n---\n\n```\n")
	b.WriteString(strings.TrimRight(report, "\n"))
	b.WriteString("\n```\n\n---\n")
	b.WriteString("*本报告由 C++ Code Review Agent 自动生成*\n")
	return b.String()
}

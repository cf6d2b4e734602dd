package github

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var (
	ErrUnknownQuery = errors.New("unknown query")
	ErrMissingParam = errors.New("query parameter not provided")
)

// Query names.
const (
	QueryViewer             = "viewer"
	QueryReposContributedTo = "repos_contributed_to"
	QueryUserRepositoryList = "user_repository_list"
	QueryRepoBranchList     = "repo_branch_list"
	QueryRepoCommitList     = "repo_commit_list"
	QueryRepoDefaultBranch  = "repo_default_branch"
)

// queries holds the GraphQL documents; $name placeholders are substituted by
// render. $pagination marks a query as paginated.
var queries = map[string]string{
	QueryViewer: `
{
    viewer {
        login
        id
        email
        name
        isHireable
        repositories(ownerAffiliations: OWNER) {
            totalDiskUsage
        }
        publicRepos: repositories(privacy: PUBLIC, ownerAffiliations: OWNER) {
            totalCount
        }
        privateRepos: repositories(privacy: PRIVATE, ownerAffiliations: OWNER) {
            totalCount
        }
    }
}`,
	// Only recent repositories are listed (contributed within about a year).
	QueryReposContributedTo: `
{
    user(login: "$username") {
        repositoriesContributedTo(orderBy: {field: CREATED_AT, direction: DESC}, $pagination, includeUserRepositories: true) {
            nodes {
                primaryLanguage {
                    name
                }
                name
                owner {
                    login
                }
                isPrivate
                isFork
            }
            pageInfo {
                endCursor
                hasNextPage
            }
        }
    }
}`,
	// Does not include repositories contributed to via pull requests.
	QueryUserRepositoryList: `
{
    user(login: "$username") {
        repositories(orderBy: {field: CREATED_AT, direction: DESC}, $pagination, affiliations: [OWNER, COLLABORATOR], isFork: false) {
            nodes {
                primaryLanguage {
                    name
                }
                name
                owner {
                    login
                }
                isPrivate
            }
            pageInfo {
                endCursor
                hasNextPage
            }
        }
    }
}`,
	QueryRepoBranchList: `
{
    repository(owner: "$owner", name: "$name") {
        refs(refPrefix: "refs/heads/", orderBy: {direction: DESC, field: TAG_COMMIT_DATE}, $pagination) {
            nodes {
                name
            }
            pageInfo {
                endCursor
                hasNextPage
            }
        }
    }
}`,
	QueryRepoCommitList: `
{
    repository(owner: "$owner", name: "$name") {
        ref(qualifiedName: "refs/heads/$branch") {
            target {
                ... on Commit {
                    history(author: { id: "$id" }, $pagination) {
                        nodes {
                            ... on Commit {
                                additions
                                deletions
                                committedDate
                                oid
                            }
                        }
                        pageInfo {
                            endCursor
                            hasNextPage
                        }
                    }
                }
            }
        }
    }
}`,
	QueryRepoDefaultBranch: `
{
    repository(owner: "$owner", name: "$name") {
        defaultBranchRef {
            name
        }
    }
}`,
}

var placeholder = regexp.MustCompile(`\$[a-z_]+`)

func isPaginated(name string) bool {
	return strings.Contains(queries[name], "$pagination")
}

// render substitutes params into the named query. Every placeholder of the
// query must have a param. Values land inside GraphQL string literals and are
// escaped, except $pagination which holds raw arguments.
func render(name string, params map[string]string) (string, error) {
	q, ok := queries[name]
	if !ok {
		return "", fmt.Errorf("%s: %w", name, ErrUnknownQuery)
	}
	for _, p := range placeholder.FindAllString(q, -1) {
		if _, ok := params[p[1:]]; !ok {
			return "", fmt.Errorf("%s %s: %w", name, p, ErrMissingParam)
		}
	}

	// Longer keys first so $name never clobbers a $names placeholder.
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		v := params[k]
		if k != "pagination" {
			v = literalEscaper.Replace(v)
		}
		pairs = append(pairs, "$"+k, v)
	}
	return strings.NewReplacer(pairs...).Replace(q), nil
}

var literalEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

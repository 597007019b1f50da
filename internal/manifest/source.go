package manifest

import (
	"github.com/go-git/go-git/v5"
)

// HeadCommit returns the git HEAD hash of the source tree containing dir, or
// an empty string when the tree is not a repository. The commit stamp is
// informational; builds work the same without it.
func HeadCommit(dir string) string {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return ""
	}
	head, err := repo.Head()
	if err != nil {
		return ""
	}
	return head.Hash().String()
}

package history

import (
	"regexp"
	"strings"

	"github.com/richinex/patchscout/model"
)

var (
	commitLine     = regexp.MustCompile(`^commit ([0-9a-f]{40})`)
	metaLine       = regexp.MustCompile(`^(Author|AuthorDate|Commit|CommitDate|Date|Merge):`)
	nameStatusLine = regexp.MustCompile(`^[ACDMRTUX][0-9]*\t`)
)

// parseLog splits default-format `git log`/`git show` output into commits.
// Name-status lines are picked up when the command was run with
// --name-status; diff text, if any, is ignored.
func parseLog(out string) []model.Commit {
	var (
		commits []model.Commit
		cur     *model.Commit
		meta    []string
		message []string
	)

	flush := func() {
		if cur == nil {
			return
		}
		cur.Meta = strings.Join(meta, "\n")
		cur.Message = FilterFooters(strings.Join(message, "\n"))
		commits = append(commits, *cur)
		cur, meta, message = nil, nil, nil
	}

	for _, line := range strings.Split(out, "\n") {
		if m := commitLine.FindStringSubmatch(line); m != nil {
			flush()
			cur = &model.Commit{SHA: m[1]}
			continue
		}
		if cur == nil {
			continue
		}
		switch {
		case metaLine.MatchString(line):
			meta = append(meta, line)
		case strings.HasPrefix(line, "    "):
			message = append(message, strings.TrimPrefix(line, "    "))
		case nameStatusLine.MatchString(line):
			cur.Changes = append(cur.Changes, parseChange(line))
		case strings.TrimSpace(line) == "":
			if len(message) > 0 {
				message = append(message, "")
			}
		}
	}
	flush()
	return commits
}

func parseChange(line string) model.Change {
	fields := strings.Split(line, "\t")
	ch := model.Change{Status: fields[0]}
	switch len(fields) {
	case 2:
		ch.Path = fields[1]
	default:
		ch.OldPath = fields[1]
		ch.Path = fields[len(fields)-1]
	}
	return ch
}

// isProfileRoll reports whether every changed file is a PGO profile.
func isProfileRoll(c model.Commit) bool {
	if len(c.Changes) == 0 {
		return false
	}
	for _, ch := range c.Changes {
		if !strings.HasSuffix(ch.Path, ".pgo.txt") {
			return false
		}
	}
	return true
}

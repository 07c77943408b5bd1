// Package history answers commit log, detail and diff queries against a
// Chromium checkout, memoizing results in size-bounded caches.
//
// Information Hiding:
// - git command lines and output formats hidden
// - Cache lookups, opportunistic population and fill coalescing hidden
// - Profile-roll filtering hidden
package history

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/richinex/patchscout/internal/logging"
	"github.com/richinex/patchscout/model"
	"github.com/richinex/patchscout/vcs"
)

// ErrCursorNotFound is returned when a "continue after" commit is absent
// from the list it is supposed to belong to.
var ErrCursorNotFound = errors.New("Commit to continue from not found")

// Service runs history queries through a vcs.Runner.
type Service struct {
	runner vcs.Runner
	root   string
	outDir string
	caches *Caches
	group  singleflight.Group
}

// NewService creates a history service for the checkout at root. outDir is
// the build output directory relative to root, used to resolve paths found
// in build errors.
func NewService(runner vcs.Runner, root, outDir string, caches *Caches) *Service {
	if caches == nil {
		caches = NewCaches(DefaultCacheConfig())
	}
	return &Service{
		runner: runner,
		root:   root,
		outDir: outDir,
		caches: caches,
	}
}

// Root returns the checkout root.
func (s *Service) Root() string {
	return s.root
}

// RangeCommits returns the ordered SHAs between r.Start and r.End, newest
// first, without profile-only rolls. The full scan also fills the detail
// cache for every commit it sees.
func (s *Service) RangeCommits(ctx context.Context, r model.VersionRange) ([]string, error) {
	if err := validateRange(r); err != nil {
		return nil, err
	}
	key := r.Key()
	if shas, ok := s.caches.Logs.Get(key); ok {
		return shas, nil
	}

	v, err, _ := s.group.Do("log:"+key, func() (interface{}, error) {
		out, err := s.runner.Run(ctx, "git log --name-status "+key, s.root)
		if err != nil {
			return nil, err
		}

		commits := parseLog(out)
		shas := make([]string, 0, len(commits))
		dropped := 0
		for _, c := range commits {
			if isProfileRoll(c) {
				dropped++
				continue
			}
			s.caches.Details.Set(c.SHA, c)
			shas = append(shas, c.SHA)
		}
		s.caches.Logs.Set(key, shas)

		logging.Debug("range scanned", "range", key, "commits", len(shas), "profile_rolls", dropped)
		return shas, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

// CommitDetails returns the message and name-status of one commit.
func (s *Service) CommitDetails(ctx context.Context, sha string) (model.Commit, error) {
	if err := vcs.ValidateCommitSHA(sha); err != nil {
		return model.Commit{}, err
	}
	if c, ok := s.caches.Details.Get(sha); ok {
		return c, nil
	}

	v, err, _ := s.group.Do("detail:"+sha, func() (interface{}, error) {
		out, err := s.runner.Run(ctx, "git show --no-patch --name-status --no-color "+sha, s.root)
		if err != nil {
			return model.Commit{}, err
		}
		commits := parseLog(out)
		if len(commits) == 0 {
			return model.Commit{}, fmt.Errorf("unexpected git show output for %s", sha)
		}
		c := commits[0]
		s.caches.Details.Set(sha, c)
		return c, nil
	})
	if err != nil {
		return model.Commit{}, err
	}
	return v.(model.Commit), nil
}

// Diff returns the commit's patch with diff and index header lines removed.
func (s *Service) Diff(ctx context.Context, sha string) (string, error) {
	if err := vcs.ValidateCommitSHA(sha); err != nil {
		return "", err
	}
	if d, ok := s.caches.Diffs.Get(sha); ok {
		return d, nil
	}

	v, err, _ := s.group.Do("diff:"+sha, func() (interface{}, error) {
		out, err := s.runner.Run(ctx, "git show --format= --no-color "+sha, s.root)
		if err != nil {
			return "", err
		}
		d := FilterDiff(out)
		s.caches.Diffs.Set(sha, d)
		return d, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Hydrate resolves details for each SHA in order.
func (s *Service) Hydrate(ctx context.Context, shas []string) ([]model.Commit, error) {
	commits := make([]model.Commit, 0, len(shas))
	for _, sha := range shas {
		c, err := s.CommitDetails(ctx, sha)
		if err != nil {
			return nil, err
		}
		commits = append(commits, c)
	}
	return commits, nil
}

// FileLog returns the footer-filtered log entries of one file within r.
// The file must live in the main checkout.
func (s *Service) FileLog(ctx context.Context, r model.VersionRange, filename string) ([]string, error) {
	if err := validateRange(r); err != nil {
		return nil, err
	}
	if err := vcs.EnsureFileInTree(s.root, filename); err != nil {
		return nil, err
	}

	out, err := s.runner.Run(ctx, "git log --no-color "+r.Key()+" -- "+vcs.Quote(filename), s.root)
	if err != nil {
		return nil, err
	}
	return splitLogBlocks(out), nil
}

// FileDiff returns a commit's changes to one file. The commit header is
// footer-filtered; the patch is returned as git printed it.
func (s *Service) FileDiff(ctx context.Context, sha, filename string) (string, error) {
	if err := vcs.ValidateCommitSHA(sha); err != nil {
		return "", err
	}
	if err := vcs.EnsureFileInTree(s.root, filename); err != nil {
		return "", err
	}

	out, err := s.runner.Run(ctx, "git show --no-color "+sha+" -- "+vcs.Quote(filename), s.root)
	if err != nil {
		return "", err
	}
	header, diff := splitShow(out)
	header = FilterFooters(header)
	if diff == "" {
		return header, nil
	}
	return strings.TrimSpace(header + "\n\n" + diff), nil
}

// ImplicatedCommits returns SHAs in r touching files named in a build error,
// in order of the files' first mention, without duplicates. Results are
// cached per range and file list, so every page of one analysis runs the
// per-file queries once.
func (s *Service) ImplicatedCommits(ctx context.Context, r model.VersionRange, errorText string) ([]string, error) {
	if err := validateRange(r); err != nil {
		return nil, err
	}
	files := BuildErrorFilenames(errorText, s.outDir)
	if len(files) == 0 {
		return nil, nil
	}
	key := r.Key() + "\x00" + strings.Join(files, "\x00")
	if shas, ok := s.caches.Implicated.Get(key); ok {
		return shas, nil
	}

	v, err, _ := s.group.Do("implicated:"+key, func() (interface{}, error) {
		seen := make(map[string]bool)
		shas := []string{}
		for _, f := range files {
			out, err := s.runner.Run(ctx, "git log --format=%H "+r.Key()+" -- "+vcs.Quote(f), s.root)
			if err != nil {
				return nil, err
			}
			for _, sha := range strings.Fields(out) {
				if !seen[sha] {
					seen[sha] = true
					shas = append(shas, sha)
				}
			}
		}
		s.caches.Implicated.Set(key, shas)
		logging.Debug("implicated commits", "files", len(files), "commits", len(shas))
		return shas, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

// TruncateAfter drops every entry up to and including the one identified by
// cursor. Entries are either plain SHAs or log blocks starting with
// "commit <sha>"; cursor may be an abbreviated SHA.
func TruncateAfter(entries []string, cursor string) ([]string, error) {
	if cursor != "" {
		for i, e := range entries {
			if strings.HasPrefix(strings.TrimPrefix(e, "commit "), cursor) {
				return entries[i+1:], nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrCursorNotFound, cursor)
}

func splitLogBlocks(out string) []string {
	var (
		blocks []string
		cur    []string
	)
	flush := func() {
		if len(cur) > 0 {
			if b := FilterFooters(strings.Join(cur, "\n")); b != "" {
				blocks = append(blocks, b)
			}
		}
		cur = nil
	}
	for _, line := range strings.Split(out, "\n") {
		if commitLine.MatchString(line) {
			flush()
		}
		cur = append(cur, line)
	}
	flush()
	return blocks
}

func validateRange(r model.VersionRange) error {
	if err := vcs.ValidateVersion(r.Start); err != nil {
		return err
	}
	return vcs.ValidateVersion(r.End)
}

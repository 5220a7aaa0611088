package catalog

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/assetgrabber/assetgrabber/internal/cache"
	"github.com/assetgrabber/assetgrabber/internal/common"
)

// runner executes the svn binary. Tests swap this to avoid spawning
// processes.
type runner func(ctx context.Context, args ...string) ([]byte, error)

var defaultRunner runner = func(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "svn", args...)
	output, err := cmd.Output()
	if err != nil {
		detail := ""
		if ee, ok := err.(*exec.ExitError); ok {
			detail = string(ee.Stderr)
		}
		return nil, fmt.Errorf("svn %s failed: %w\n%s", strings.Join(args, " "), err, detail)
	}
	return output, nil
}

var headRevisionRe = regexp.MustCompile(`r?([0-9]+) \|`)

// ChangeLog returns the raw changelog covering (lastRevision, HEAD]. The
// request is issued as (lastRevision+1):HEAD; a process failure is a
// remote-query failure with no partial result.
func (c *Client) ChangeLog(ctx context.Context, lastRevision int) (string, error) {
	target := lastRevision + 1
	out, err := c.run(ctx, "log", "-v", "-q", c.svnURL, "-r", fmt.Sprintf("%d:HEAD", target))
	if err != nil {
		return "", fmt.Errorf("%w: changelog %d:HEAD: %v", common.ErrRemoteQuery, target, err)
	}
	return string(out), nil
}

// HeadRevision queries the repository's current revision. The raw HEAD log
// is cached; force bypasses the cache.
func (c *Client) HeadRevision(ctx context.Context, force bool) (int, error) {
	var output []byte

	if !force {
		if cached, mtime, err := c.cache.Get(changeLogKey); err == nil && cache.Fresh(mtime, c.ttl) {
			output = cached
		}
	}

	if output == nil {
		out, err := c.run(ctx, "log", "-v", "-q", c.svnURL, "-r", "HEAD")
		if err != nil {
			return 0, fmt.Errorf("%w: head revision: %v", common.ErrRemoteQuery, err)
		}
		output = out
		if err := c.cache.Put(changeLogKey, output); err != nil {
			return 0, fmt.Errorf("cache changelog: %w", err)
		}
	}

	// The revision header is the second line of the log output,
	// "r<digits> | <author> | <date> ...".
	lines := strings.Split(string(output), "\n")
	if len(lines) < 2 {
		return 0, fmt.Errorf("%w: head revision: short log output", common.ErrRemoteQuery)
	}
	m := headRevisionRe.FindStringSubmatch(lines[1])
	if m == nil {
		return 0, fmt.Errorf("%w: head revision: no revision header in %q", common.ErrRemoteQuery, lines[1])
	}
	rev, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("%w: head revision: %v", common.ErrRemoteQuery, err)
	}
	return rev, nil
}

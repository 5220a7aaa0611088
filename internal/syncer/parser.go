package syncer

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"
)

var (
	// "   M /akismet/trunk/akismet.php" — one touched path under a slug.
	actionLineRe = regexp.MustCompile(`^   [ADMR] /([^/]+)/`)
	// "r3100200 | plugin-bot | ..." — the header covering the lines below it.
	revisionLineRe = regexp.MustCompile(`^r([0-9]+) \|`)
)

// changeLogParser is a two-state line parser for svn changelog output:
// awaiting-revision until a revision header is seen, then have-revision(R)
// for the action lines that follow. Headers precede the paths they cover,
// so the state simply carries forward until the next header.
type changeLogParser struct {
	revision int
	haveRev  bool
}

// feed consumes one line. It returns a (slug, revision) pair when the line
// is an action marker covered by a known revision header.
func (p *changeLogParser) feed(line string) (slug string, revision int, ok bool) {
	if m := revisionLineRe.FindStringSubmatch(line); m != nil {
		// header parse never fails once the regexp matched
		p.revision, _ = strconv.Atoi(m[1])
		p.haveRev = true
		return "", 0, false
	}
	if m := actionLineRe.FindStringSubmatch(line); m != nil && p.haveRev {
		return m[1], p.revision, true
	}
	return "", 0, false
}

// parseChangeLog scans a raw changelog and returns each touched slug mapped
// to the highest revision that touched it, together with the highest
// revision seen anywhere in the window.
func parseChangeLog(raw string) (map[string]int, int) {
	touched := map[string]int{}
	maxRevision := 0

	p := &changeLogParser{}
	sc := bufio.NewScanner(strings.NewReader(raw))
	for sc.Scan() {
		line := sc.Text()
		slug, revision, ok := p.feed(line)
		if ok && revision > touched[slug] {
			touched[slug] = revision
		}
		if p.haveRev && p.revision > maxRevision {
			maxRevision = p.revision
		}
	}

	return touched, maxRevision
}

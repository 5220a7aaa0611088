package syncer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleLog = `------------------------------------------------------------------------
r3100001 | author-a | 2024-08-01 10:00:00 +0000 (Thu, 01 Aug 2024)
Changed paths:
   M /akismet/trunk/akismet.php
   A /akismet/tags/5.3/akismet.php
------------------------------------------------------------------------
r3100002 | author-b | 2024-08-01 10:05:00 +0000 (Thu, 01 Aug 2024)
Changed paths:
   D /hello-dolly/trunk/hello.php
------------------------------------------------------------------------
r3100003 | author-c | 2024-08-01 10:10:00 +0000 (Thu, 01 Aug 2024)
Changed paths:
   R /wp-super-cache/trunk/wp-cache.php
   M /akismet/trunk/readme.txt
------------------------------------------------------------------------
`

func TestParseChangeLog_AttributesRevisions(t *testing.T) {
	touched, maxRevision := parseChangeLog(sampleLog)

	require.Equal(t, 3100003, maxRevision)
	require.Equal(t, map[string]int{
		"akismet":        3100003, // touched twice, highest wins
		"hello-dolly":    3100002,
		"wp-super-cache": 3100003,
	}, touched)
}

func TestParseChangeLog_ActionLineBeforeHeaderIgnored(t *testing.T) {
	raw := "   M /orphan/trunk/file.php\n" + sampleLog
	touched, _ := parseChangeLog(raw)
	require.NotContains(t, touched, "orphan")
}

func TestParseChangeLog_SlugsWithDashesAndDigits(t *testing.T) {
	raw := `r42 | a | date
Changed paths:
   A /wp-2fa-plugin/trunk/main.php
`
	touched, maxRevision := parseChangeLog(raw)
	require.Equal(t, 42, maxRevision)
	require.Equal(t, map[string]int{"wp-2fa-plugin": 42}, touched)
}

func TestParseChangeLog_NonMatchingLines(t *testing.T) {
	raw := `------------------------------------------------------------------------
some banner text
r7 | a | date
Changed paths:
  M /too-shallow-indent/x
    M /too-deep-indent/x
   X /unknown-action/x
   M /real/trunk/f.php
`
	touched, maxRevision := parseChangeLog(raw)
	require.Equal(t, 7, maxRevision)
	require.Equal(t, map[string]int{"real": 7}, touched)
}

func TestParseChangeLog_Empty(t *testing.T) {
	touched, maxRevision := parseChangeLog("")
	require.Empty(t, touched)
	require.Zero(t, maxRevision)
}

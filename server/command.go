package server

import (
	"regexp"
	"strings"
)

// Verb is the operation named by a control-connection command line.
type Verb int

const (
	VerbUnknown Verb = iota
	VerbUSER
	VerbPASS
	VerbQUIT
	VerbCWD
	VerbPWD
	VerbLIST
	VerbRETR
	VerbSTOR
	VerbPASV
	VerbPORT
	VerbFEAT
	VerbAUTH
	VerbNOOP
	VerbABOR
)

var verbNames = [...]string{
	VerbUnknown: "UNKNOWN",
	VerbUSER:    "USER",
	VerbPASS:    "PASS",
	VerbQUIT:    "QUIT",
	VerbCWD:     "CWD",
	VerbPWD:     "PWD",
	VerbLIST:    "LIST",
	VerbRETR:    "RETR",
	VerbSTOR:    "STOR",
	VerbPASV:    "PASV",
	VerbPORT:    "PORT",
	VerbFEAT:    "FEAT",
	VerbAUTH:    "AUTH",
	VerbNOOP:    "NOOP",
	VerbABOR:    "ABOR",
}

func (v Verb) String() string {
	if int(v) < 0 || int(v) >= len(verbNames) {
		return verbNames[VerbUnknown]
	}
	return verbNames[v]
}

// Command is a decoded command line.
type Command struct {
	Verb Verb
	Args []string
}

// commandPatterns is tried in order and the first match wins. Patterns are
// anchored at the start of the line only, so trailing text is ignored.
var commandPatterns = []struct {
	verb Verb
	re   *regexp.Regexp
}{
	{VerbUSER, regexp.MustCompile(`^USER\s+(\S+)`)},
	{VerbPASS, regexp.MustCompile(`^PASS\s+(\S+)`)},
	{VerbQUIT, regexp.MustCompile(`^QUIT\s*`)},
	{VerbCWD, regexp.MustCompile(`^CWD\s+(\S+)`)},
	{VerbPWD, regexp.MustCompile(`^PWD\s*`)},
	{VerbLIST, regexp.MustCompile(`^LIST\s*(\S*)`)},
	{VerbRETR, regexp.MustCompile(`^RETR\s+(\S+)`)},
	{VerbSTOR, regexp.MustCompile(`^STOR\s+(\S+)`)},
	{VerbPASV, regexp.MustCompile(`^PASV`)},
	{VerbPORT, regexp.MustCompile(`^PORT\s+(\d+),(\d+),(\d+),(\d+),(\d+),(\d+)`)},
	{VerbFEAT, regexp.MustCompile(`^FEAT`)},
	{VerbAUTH, regexp.MustCompile(`^AUTH\s+(\S+)`)},
	{VerbNOOP, regexp.MustCompile(`^NOOP\s*`)},
	{VerbABOR, regexp.MustCompile(`^ABOR`)},
}

// ParseCommand decodes one control line. Verbs are case-sensitive and a
// line matching no pattern yields VerbUnknown; it never fails.
func ParseCommand(line string) Command {
	line = strings.TrimRight(line, "\r\n")

	for _, p := range commandPatterns {
		m := p.re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		cmd := Command{Verb: p.verb}
		for _, arg := range m[1:] {
			if arg != "" {
				cmd.Args = append(cmd.Args, arg)
			}
		}
		return cmd
	}

	return Command{Verb: VerbUnknown}
}

// Arg returns the i-th argument, or "" when absent.
func (c Command) Arg(i int) string {
	if i < 0 || i >= len(c.Args) {
		return ""
	}
	return c.Args[i]
}
